// Package codegen turns an analyzed function or module body into WAT text:
// expression codegen leaves exactly one tagged value on the operand stack
// per expression, statement codegen emits the appropriate control flow, and
// generator codegen lowers yield-bearing bodies into a resumable state
// machine.
//
// Grounded on compile/internal/riscv64/ggen.go's emit-one-form-at-a-time,
// dispatch-by-op-kind style; the sink is a textual Buffer instead of an
// obj.Prog list because the output here is WAT source.
package codegen

import (
	"pywasmc/internal/analysis"
	"pywasmc/internal/ast"
	"pywasmc/internal/codegen/target"
	"pywasmc/internal/diag"
)

// FuncSig records what a codegen site needs to know about a user function
// to decide between a direct call and an indirect call through the
// function table.
type FuncSig struct {
	Index        int
	NumParams    int
	FirstDefault int // index of first parameter with a default, or NumParams
	IsGenerator  bool
	ParamNames   []string // for keyword-argument binding at a direct call site
}

// Compiler holds the tables shared across an entire module compilation:
// known function signatures, the function-table index assignment, and the
// growing list of emitted functions. It is the module-level analogue of
// compile/internal/gc's package-level bookkeeping (symbol tables threaded
// through every codegen call).
type Compiler struct {
	Funcs      map[string]*FuncSig
	Classes    map[string]bool
	ClassSlots map[string][]string
	NextIdx    int
	Out        []Function
	CompIdx    int
	LabelIdx   int
	YieldFrIdx int
	Target     *target.Target

	// Strings holds every distinct string/bytes literal seen during this
	// compilation, in first-seen order; its index is what codegen emits as
	// the operand to $rt_intern_string/$rt_intern_bytes. Built into the
	// $rt_init_strings function once the whole module has compiled.
	Strings   []string
	stringIdx map[string]int
}

// InternString assigns s a stable table index, reusing one already
// assigned to an identical literal.
func (c *Compiler) InternString(s string) int {
	if c.stringIdx == nil {
		c.stringIdx = map[string]int{}
	}
	if idx, ok := c.stringIdx[s]; ok {
		return idx
	}
	idx := len(c.Strings)
	c.stringIdx[s] = idx
	c.Strings = append(c.Strings, s)
	return idx
}

// Function is one emitted WAT function, ready for internal/ld to place in
// the module's function section and (if exported indirectly) the function
// table.
type Function struct {
	Name        string
	Body        string // full "(func ...)" WAT text
	NumParams   int
	IsGenerator bool
	FreeVars    []string
}

// NewCompiler returns a Compiler with its builtin function-table prefix
// reserved: user function index zero follows a fixed prefix of built-in
// indices.
func NewCompiler() *Compiler {
	return &Compiler{
		Funcs:      map[string]*FuncSig{},
		Classes:    map[string]bool{},
		ClassSlots: map[string][]string{},
		NextIdx:    len(BuiltinFuncNames),
		Target:     target.Lookup(""),
	}
}

// BuiltinFuncNames is the fixed prefix of the function table (indices
// 0..len-1), in the order internal/ld's elemSection fills them — every
// entry here must have a matching $fn___builtin_<name> wrapper in the
// runtime library so a builtin used as a first-class value dispatches
// through $rt_call_indirect the same as a user closure.
var BuiltinFuncNames = []string{
	"len", "abs", "bool", "ord", "chr", "callable", "repr", "str", "print",
	"isinstance", "iter", "next", "sorted", "range",
}

// FuncCtx is the per-function-body compilation context threaded through
// expression and statement codegen: the analyzed scope, the output buffer,
// generator state (nil outside a generator body), and a back-pointer to
// the module-level Compiler for name resolution against other functions
// and classes.
type FuncCtx struct {
	C     *Compiler
	Scope *analysis.Scope
	Buf   *Buffer
	Gen   *GenCtx // non-nil inside a generator body
	Class *ClassCtx
	// EnclosingFree is the set of names resolved via the env chain:
	// local -> nonlocal via env chain -> global -> builtin.
	EnclosingFree map[string]bool
	loops         []loopLabels
	// finallies is the stack of active finally (and with-exit) cleanup
	// frames enclosing the point currently being compiled, innermost last.
	// return/break/continue codegen walks this stack (down to a loop's own
	// finallyFloor for break/continue) emitting each frame's cleanup body
	// before the actual branch/return, so cleanup runs on every exit path
	// instead of only the fall-through one.
	finallies []finallyFrame
}

// finallyFrame is one pending cleanup: either a try statement's finally
// body, or a with statement's __exit__ call, captured as a closure over
// the codegen call that emits it so return/break/continue can replay it
// out of order relative to normal fall-through.
type finallyFrame struct {
	emit func()
}

// ClassCtx carries the class currently being compiled into (for `self`/
// `super()` resolution inside its methods).
type ClassCtx struct {
	Name     string
	BaseName string
}

// resolveName implements the "Name loads" resolution order.
type nameKind int

const (
	nameLocal nameKind = iota
	nameNonlocal
	nameGlobal
	nameBuiltin
)

func (f *FuncCtx) resolveName(id string) nameKind {
	if f.Scope != nil {
		if f.Scope.Globals[id] {
			return nameGlobal
		}
		if f.Scope.Locals[id] || f.Scope.Params[id] {
			return nameLocal
		}
		if f.Scope.Nonlocals[id] || f.EnclosingFree[id] {
			return nameNonlocal
		}
	}
	if isBuiltinName(id) {
		return nameBuiltin
	}
	return nameGlobal
}

func isBuiltinName(id string) bool {
	for _, b := range BuiltinFuncNames {
		if b == id {
			return true
		}
	}
	return false
}

func (f *FuncCtx) newLabel(prefix string) string {
	f.C.LabelIdx++
	return label(prefix, f.C.LabelIdx)
}

// EmitModuleBody compiles the top-level statement list of a module into
// the current function context — the entry point cmd/pywasmc wraps in the
// "___main__" function, which the assembled module's start function calls.
func (f *FuncCtx) EmitModuleBody(body []*ast.Node) {
	f.emitStmts(rewriteYieldFrom(body))
}

func (f *FuncCtx) fatalUnimplemented(n *ast.Node, what string) {
	pos := ast.Pos{}
	if n != nil {
		pos = n.Pos
	}
	diag.Fatalf("%d:%d: unimplemented: %s", pos.Line, pos.Col, what)
}

func wasmLocalName(id string) string {
	return "$" + id
}

// emitInternedString pushes the interned string value for s: a module-wide
// table index (assigned by Compiler.InternString, deduplicated across the
// whole compilation) resolved to the actual (ref null $rt_any) string object
// by $rt_intern_string at runtime. Every place that needs a literal name or
// attribute as a real operand -- not just as text in the instruction stream
// -- goes through this instead of interpolating the literal directly.
func (f *FuncCtx) emitInternedString(s string) {
	f.Buf.Emit("i32.const %d", f.C.InternString(s))
	f.Buf.Emit("call $rt_intern_string")
}
