// Package ast defines the syntax-tree shape the compiler consumes.
//
// The parser that produces this tree is an external collaborator: pywasmc
// never parses source text itself. Trees arrive as JSON, decoded with
// Unmarshal, matching a closed set of node kinds.
package ast

import "encoding/json"

// Kind identifies the syntactic form of a Node. The set is closed and
// mirrors the parser's node-kind enumeration exactly.
type Kind string

const (
	// Constants.
	KindInt      Kind = "Int"
	KindFloat    Kind = "Float"
	KindString   Kind = "String"
	KindBool     Kind = "Bool"
	KindNone     Kind = "None"
	KindEllipsis Kind = "Ellipsis"
	KindBytes    Kind = "Bytes"

	KindName Kind = "Name"

	KindUnaryOp   Kind = "UnaryOp"
	KindBinOp     Kind = "BinOp"
	KindBoolOp    Kind = "BoolOp"
	KindCompareOp Kind = "CompareOp"
	KindWalrus    Kind = "Walrus"
	KindIfExpr    Kind = "IfExpr"

	KindAttribute Kind = "Attribute"
	KindSubscript Kind = "Subscript"
	KindSlice     Kind = "Slice"
	KindCall      Kind = "Call"
	KindLambda    Kind = "Lambda"

	KindList  Kind = "List"
	KindSet   Kind = "Set"
	KindDict  Kind = "Dict"
	KindTuple Kind = "Tuple"

	KindFString   Kind = "FString"
	KindFormatted Kind = "FormattedValue"

	KindListComp Kind = "ListComp"
	KindSetComp  Kind = "SetComp"
	KindDictComp Kind = "DictComp"
	KindGenExp   Kind = "GeneratorExp"

	KindStarred Kind = "Starred"
	KindYield   Kind = "Yield"
	KindYieldFr Kind = "YieldFrom"

	// Statements.
	KindAssign       Kind = "Assign"
	KindAugAssign    Kind = "AugAssign"
	KindAnnAssign    Kind = "AnnAssign"
	KindExprStmt     Kind = "ExprStmt"
	KindIf           Kind = "If"
	KindWhile        Kind = "While"
	KindFor          Kind = "For"
	KindBreak        Kind = "Break"
	KindContinue     Kind = "Continue"
	KindReturn       Kind = "Return"
	KindPass         Kind = "Pass"
	KindAssert       Kind = "Assert"
	KindTry          Kind = "Try"
	KindWith         Kind = "With"
	KindRaise        Kind = "Raise"
	KindImport       Kind = "Import"
	KindGlobal       Kind = "Global"
	KindNonlocal     Kind = "Nonlocal"
	KindFunctionDef  Kind = "FunctionDef"
	KindClassDef     Kind = "ClassDef"
	KindMatch        Kind = "Match"
	KindDelete       Kind = "Delete"

	// Match patterns.
	KindPatternName     Kind = "PatternName"
	KindPatternSequence Kind = "PatternSequence"
	KindPatternMapping  Kind = "PatternMapping"
	KindPatternClass    Kind = "PatternClass"
	KindPatternOr       Kind = "PatternOr"
	KindPatternAs       Kind = "PatternAs"
	KindPatternStar     Kind = "PatternStar"
	KindPatternValue    Kind = "PatternValue"
)

// Pos is a source location, carried through for diagnostics.
type Pos struct {
	Line, Col int
}

// Node is one syntax-tree node. Only the fields relevant to Kind are
// populated; the rest are left at their zero value. This mirrors the
// teacher's tagged-union `Node` with an `Op` discriminant, flattened for
// JSON decoding instead of a closed Go sum type, since the wire shape is
// produced by an external parser we don't control.
type Node struct {
	Kind Kind `json:"kind"`
	Pos  Pos  `json:"pos,omitempty"`

	// Literal payloads.
	Int    int64   `json:"int,omitempty"`
	Float  float64 `json:"float,omitempty"`
	Str    string  `json:"str,omitempty"`
	Bool   bool    `json:"bool,omitempty"`
	Bytes  []byte  `json:"bytes,omitempty"`

	// Name / identifier.
	Id string `json:"id,omitempty"`

	// Operators.
	Op string `json:"op,omitempty"` // e.g. "+", "and", "==", "not"

	Left  *Node `json:"left,omitempty"`
	Right *Node `json:"right,omitempty"`

	// CompareOp / BoolOp: chained operator lists.
	Ops     []string `json:"ops,omitempty"`
	Values  []*Node  `json:"values,omitempty"`
	Operand *Node     `json:"operand,omitempty"` // UnaryOp

	// Walrus.
	Target *Node `json:"target,omitempty"`
	Value  *Node `json:"value,omitempty"`

	// IfExpr.
	Test   *Node `json:"test,omitempty"`
	Body   []*Node `json:"body,omitempty"`
	OrElse []*Node `json:"orelse,omitempty"`
	Then   *Node   `json:"then,omitempty"`
	Else   *Node   `json:"else_,omitempty"`

	// Attribute / Subscript.
	Obj   *Node  `json:"obj,omitempty"`
	Attr  string `json:"attr,omitempty"`
	Index *Node  `json:"index,omitempty"`

	// Slice.
	Lower *Node `json:"lower,omitempty"`
	Upper *Node `json:"upper,omitempty"`
	Step  *Node `json:"step,omitempty"`

	// Call.
	Func      *Node            `json:"func,omitempty"`
	Args      []*Node          `json:"args,omitempty"`
	Keywords  map[string]*Node `json:"keywords,omitempty"`
	Starargs  *Node            `json:"starargs,omitempty"`

	// Lambda / FunctionDef.
	Params       []Param `json:"params,omitempty"`
	Decorators   []*Node `json:"decorators,omitempty"`
	Name         string  `json:"name,omitempty"`
	IsAsync      bool    `json:"is_async,omitempty"`
	ReturnsGen   bool    `json:"returns_gen,omitempty"` // filled in by analysis, not the parser

	// Collections.
	Elts     []*Node `json:"elts,omitempty"`
	Keys     []*Node `json:"keys,omitempty"`

	// F-strings.
	Parts []*Node `json:"parts,omitempty"` // mix of String and FormattedValue
	Spec  string  `json:"spec,omitempty"`  // format spec, e.g. ".2f"

	// Comprehensions.
	Generators []Comprehension `json:"generators,omitempty"`
	Elt        *Node           `json:"elt,omitempty"`
	KeyExpr    *Node           `json:"key_expr,omitempty"`
	ValExpr    *Node           `json:"val_expr,omitempty"`

	// Assignment.
	Targets []*Node `json:"targets,omitempty"`

	// For / While.
	Iter  *Node   `json:"iter,omitempty"`
	Cond  *Node   `json:"cond,omitempty"`

	// Try.
	Handlers []ExceptHandler `json:"handlers,omitempty"`
	Finally  []*Node         `json:"finally,omitempty"`

	// With.
	Items []WithItem `json:"items,omitempty"`

	// Raise.
	Exc   *Node `json:"exc,omitempty"`
	Cause *Node `json:"cause,omitempty"`

	// Import.
	Module  string   `json:"module,omitempty"`
	Names   []string `json:"names,omitempty"`

	// Global/Nonlocal.
	Idents []string `json:"idents,omitempty"`

	// ClassDef.
	Bases    []*Node `json:"bases,omitempty"`
	ClassBody []*Node `json:"class_body,omitempty"`

	// Match.
	Subject *Node      `json:"subject,omitempty"`
	Cases   []MatchCase `json:"cases,omitempty"`

	// Pattern fields (reused across pattern kinds).
	PatName     string      `json:"pat_name,omitempty"`
	PatPatterns []*Node     `json:"pat_patterns,omitempty"`
	PatKeys     []*Node     `json:"pat_keys,omitempty"`
	PatCls      *Node       `json:"pat_cls,omitempty"`
	PatAlias    string      `json:"pat_alias,omitempty"`
}

// Param describes one formal parameter of a function/lambda.
type Param struct {
	Name     string `json:"name"`
	Default  *Node  `json:"default,omitempty"`
	IsStar   bool   `json:"is_star,omitempty"`
	IsDStar  bool   `json:"is_dstar,omitempty"`
}

// Comprehension is one `for ... in ... [if ...]` clause of a comprehension.
type Comprehension struct {
	Target *Node   `json:"target"`
	Iter   *Node   `json:"iter"`
	Ifs    []*Node `json:"ifs,omitempty"`
}

// ExceptHandler is one `except Type as name:` clause.
type ExceptHandler struct {
	Type *Node   `json:"type,omitempty"` // nil => bare except
	Name string  `json:"name,omitempty"`
	Body []*Node `json:"body"`
}

// WithItem is one `expr as target` clause of a with-statement.
type WithItem struct {
	ContextExpr *Node `json:"context_expr"`
	OptionalVar *Node `json:"optional_var,omitempty"`
}

// MatchCase is one `case pattern [if guard]:` clause.
type MatchCase struct {
	Pattern *Node   `json:"pattern"`
	Guard   *Node   `json:"guard,omitempty"`
	Body    []*Node `json:"body"`
}

// Module is a whole compilation unit: a module body plus its name for
// diagnostics and for stamping into the emitted WAT's identity section.
type Module struct {
	Name string  `json:"name"`
	Body []*Node `json:"body"`
}

// Decode parses AST-JSON bytes into a Module.
func Decode(data []byte) (*Module, error) {
	var m Module
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
