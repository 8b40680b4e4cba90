// Package analysis implements the static pre-emission pass over a
// function or module body that collects locals, global/nonlocal
// declarations, iterator and comprehension locals, with-statement locals,
// free variables for closures, generator detection, and __slots__
// extraction. Scope.Hints is allocated for per-node type hints, but the
// walk records none.
//
// Grounded on compile/internal/gc's scope/Class bookkeeping style (package-
// level tables keyed by name) adapted to a single tree-walker per body.
package analysis

import (
	"pywasmc/internal/ast"
	"pywasmc/internal/types"
)

// WithLocal is the pair of synthetic locals reserved for one `with` item.
type WithLocal struct {
	CtxVar  string // holds the context manager value
	ExitVar string // holds the bound __exit__ method
}

// CompLocals is the set of synthetic locals reserved for one comprehension,
// numbered sequentially in traversal order.
type CompLocals struct {
	Index       int
	LoopVars    []string // one per generator clause
	IterVars    []string // one per generator clause
	Accumulator string
}

// Scope is the result of analyzing one function or module body.
type Scope struct {
	Locals      map[string]bool
	Params      map[string]bool
	Globals     map[string]bool
	Nonlocals   map[string]bool
	IterLocals  []string // one synthetic local per non-range for-loop
	Comps       []*CompLocals
	WithLocals  []WithLocal
	FreeVars    map[string]bool
	IsGenerator bool
	Slots       []string
	Hints       map[*ast.Node]types.Hint

	compCounter int
}

func newScope() *Scope {
	return &Scope{
		Locals:    map[string]bool{},
		Params:    map[string]bool{},
		Globals:   map[string]bool{},
		Nonlocals: map[string]bool{},
		FreeVars:  map[string]bool{},
		Hints:     map[*ast.Node]types.Hint{},
	}
}

// AnalyzeModule analyzes a module body as the outermost scope.
func AnalyzeModule(body []*ast.Node) *Scope {
	return analyzeBody(nil, body)
}

// AnalyzeFunction analyzes a function/lambda body given its formal
// parameters.
func AnalyzeFunction(params []ast.Param, body []*ast.Node) *Scope {
	return analyzeBody(params, body)
}

func analyzeBody(params []ast.Param, body []*ast.Node) *Scope {
	s := newScope()
	for _, p := range params {
		s.Params[p.Name] = true
	}

	w := &walker{s: s}
	w.collectGlobalsNonlocals(body)
	w.collectLocals(body)
	w.detectGenerator(body)
	w.collectFreeVars(body)
	return s
}

type walker struct {
	s *Scope
}

// ---- global/nonlocal declarations -----------------------------------

func (w *walker) collectGlobalsNonlocals(body []*ast.Node) {
	walkStmts(body, func(n *ast.Node) bool {
		switch n.Kind {
		case ast.KindGlobal:
			for _, id := range n.Idents {
				w.s.Globals[id] = true
			}
		case ast.KindNonlocal:
			for _, id := range n.Idents {
				w.s.Nonlocals[id] = true
			}
		case ast.KindFunctionDef, ast.KindClassDef:
			return false // don't descend: "at any depth except inside nested functions"
		}
		return true
	})
}

// ---- locals -----------------------------------------------------------

func (w *walker) collectLocals(body []*ast.Node) {
	for _, stmt := range body {
		w.collectLocalsStmt(stmt)
	}
}

func (w *walker) bindLocal(name string) {
	if w.s.Globals[name] || w.s.Nonlocals[name] || w.s.Params[name] {
		return
	}
	w.s.Locals[name] = true
}

func (w *walker) bindTarget(t *ast.Node) {
	if t == nil {
		return
	}
	switch t.Kind {
	case ast.KindName:
		w.bindLocal(t.Id)
	case ast.KindTuple, ast.KindList:
		for _, e := range t.Elts {
			w.bindTarget(e)
		}
	case ast.KindStarred:
		w.bindTarget(t.Value)
	case ast.KindSubscript, ast.KindAttribute:
		// not a new local; the container/object must already be bound.
	}
}

func (w *walker) collectLocalsStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindAssign:
		for _, t := range n.Targets {
			w.bindTarget(t)
		}
		w.walkCompsIn(n.Value)
	case ast.KindAugAssign, ast.KindAnnAssign:
		w.bindTarget(n.Target)
		w.walkCompsIn(n.Value)
	case ast.KindFor:
		w.bindTarget(n.Target)
		if !isRangeCall(n.Iter) {
			w.s.IterLocals = append(w.s.IterLocals, iterLocalName(n.Target))
		}
		w.collectLocals(n.Body)
		w.collectLocals(n.OrElse)
	case ast.KindWhile:
		w.collectLocals(n.Body)
		w.collectLocals(n.OrElse)
	case ast.KindIf:
		w.collectLocals(n.Body)
		w.collectLocals(n.OrElse)
	case ast.KindTry:
		w.collectLocals(n.Body)
		for _, h := range n.Handlers {
			if h.Name != "" {
				w.bindLocal(h.Name)
			}
			w.collectLocals(h.Body)
		}
		w.collectLocals(n.OrElse)
		w.collectLocals(n.Finally)
	case ast.KindWith:
		for _, item := range n.Items {
			w.bindTarget(item.OptionalVar)
			w.s.WithLocals = append(w.s.WithLocals, WithLocal{
				CtxVar:  syntheticName("with_ctx", len(w.s.WithLocals)),
				ExitVar: syntheticName("with_exit", len(w.s.WithLocals)),
			})
		}
		w.collectLocals(n.Body)
	case ast.KindMatch:
		for _, c := range n.Cases {
			w.bindPattern(c.Pattern)
			w.collectLocals(c.Body)
		}
	case ast.KindFunctionDef:
		w.bindLocal(n.Name)
	case ast.KindClassDef:
		w.bindLocal(n.Name)
		w.extractSlots(n)
	case ast.KindImport:
		for _, name := range n.Names {
			w.bindLocal(name)
		}
	case ast.KindExprStmt:
		w.walkCompsIn(n.Value)
		if n.Value == nil && n.Test != nil {
			w.walkCompsIn(n.Test)
		}
	case ast.KindReturn:
		w.walkCompsIn(n.Value)
	case ast.KindRaise, ast.KindAssert, ast.KindDelete:
		// no bindings
	}
}

func (w *walker) bindPattern(p *ast.Node) {
	if p == nil {
		return
	}
	switch p.Kind {
	case ast.KindPatternName:
		if p.PatName != "_" {
			w.bindLocal(p.PatName)
		}
	case ast.KindPatternAs:
		if p.PatAlias != "" {
			w.bindLocal(p.PatAlias)
		}
		w.bindPattern(p.Obj)
	case ast.KindPatternSequence, ast.KindPatternClass:
		for _, sub := range p.PatPatterns {
			w.bindPattern(sub)
		}
	case ast.KindPatternMapping:
		for _, sub := range p.PatPatterns {
			w.bindPattern(sub)
		}
	case ast.KindPatternOr:
		for _, sub := range p.Values {
			w.bindPattern(sub)
		}
	case ast.KindPatternStar:
		if p.PatName != "" && p.PatName != "_" {
			w.bindLocal(p.PatName)
		}
	}
}

func (w *walker) extractSlots(classDef *ast.Node) {
	for _, stmt := range classDef.ClassBody {
		if stmt.Kind != ast.KindAssign || len(stmt.Targets) != 1 {
			continue
		}
		if stmt.Targets[0].Kind != ast.KindName || stmt.Targets[0].Id != "__slots__" {
			continue
		}
		val := stmt.Value
		if val == nil || (val.Kind != ast.KindTuple && val.Kind != ast.KindList) {
			continue
		}
		for _, e := range val.Elts {
			if e.Kind == ast.KindString {
				w.s.Slots = append(w.s.Slots, e.Str)
			}
		}
	}
}

// walkCompsIn registers comprehension locals found anywhere inside an
// expression, without treating the expression itself as a statement.
func (w *walker) walkCompsIn(e *ast.Node) {
	walkExpr(e, func(n *ast.Node) bool {
		switch n.Kind {
		case ast.KindListComp, ast.KindSetComp, ast.KindDictComp, ast.KindGenExp:
			w.registerComprehension(n)
		case ast.KindLambda:
			return false // nested scope, not recursed into for locals
		}
		return true
	})
}

func (w *walker) registerComprehension(n *ast.Node) {
	idx := w.s.compCounter
	w.s.compCounter++
	cl := &CompLocals{Index: idx, Accumulator: syntheticName("comp_acc", idx)}
	for gi, gen := range n.Generators {
		loopVar := syntheticName("comp_loop", idx*100+gi)
		iterVar := syntheticName("comp_iter", idx*100+gi)
		cl.LoopVars = append(cl.LoopVars, loopVar)
		cl.IterVars = append(cl.IterVars, iterVar)
		w.bindTarget(gen.Target)
		if gen.Target != nil && (gen.Target.Kind == ast.KindTuple || gen.Target.Kind == ast.KindList) {
			for ei := range gen.Target.Elts {
				w.s.Locals[syntheticName("comp_unpack", idx*1000+gi*10+ei)] = true
			}
		}
	}
	w.s.Comps = append(w.s.Comps, cl)
	w.s.Locals[cl.Accumulator] = true
	for _, v := range cl.LoopVars {
		w.s.Locals[v] = true
	}
	for _, v := range cl.IterVars {
		w.s.Locals[v] = true
	}
}

// ---- generator detection ----------------------------------------------

func (w *walker) detectGenerator(body []*ast.Node) {
	walkStmts(body, func(n *ast.Node) bool {
		switch n.Kind {
		case ast.KindYield, ast.KindYieldFr:
			w.s.IsGenerator = true
			return false
		case ast.KindFunctionDef, ast.KindClassDef, ast.KindLambda:
			return false // generator-ness is syntactic to this body only, not nested defs
		}
		return true
	})
}

// ---- free variables -----------------------------------------------------

func (w *walker) collectFreeVars(body []*ast.Node) {
	bound := func(name string) bool {
		return w.s.Locals[name] || w.s.Params[name] || w.s.Globals[name]
	}
	var visit func(n *ast.Node)
	visit = func(n *ast.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case ast.KindName:
			if !bound(n.Id) {
				w.s.FreeVars[n.Id] = true
			}
			return
		case ast.KindFunctionDef, ast.KindLambda:
			nested := AnalyzeFunction(n.Params, bodyOf(n))
			for fv := range nested.FreeVars {
				if !bound(fv) {
					w.s.FreeVars[fv] = true
				}
			}
			return
		case ast.KindClassDef:
			for _, b := range n.Bases {
				visit(b)
			}
			nested := AnalyzeModule(n.ClassBody)
			for fv := range nested.FreeVars {
				if !bound(fv) {
					w.s.FreeVars[fv] = true
				}
			}
			return
		}
		forEachChild(n, visit)
	}
	for _, stmt := range body {
		forEachChild(stmt, visit)
		visit(stmt)
	}
}

func bodyOf(n *ast.Node) []*ast.Node {
	if n.Kind == ast.KindLambda {
		if n.Value != nil {
			return []*ast.Node{{Kind: ast.KindReturn, Value: n.Value}}
		}
		return nil
	}
	return n.Body
}

// ---- helpers ------------------------------------------------------------

func isRangeCall(n *ast.Node) bool {
	return n != nil && n.Kind == ast.KindCall && n.Func != nil &&
		n.Func.Kind == ast.KindName && n.Func.Id == "range"
}

func iterLocalName(target *ast.Node) string {
	if target != nil && target.Kind == ast.KindName {
		return "__iter_" + target.Id + "__"
	}
	return "__iter_unpack__"
}

func syntheticName(prefix string, n int) string {
	return prefix + "_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
