package codegen

import "pywasmc/internal/ast"

// rewriteYieldFrom is the "yield from" transform: every `yield from
// iterable` becomes `for __yieldfrom_N__ in iterable: yield __yieldfrom_N__`,
// and `x = yield from iterable` becomes the same loop followed by
// `x = None` (return-value capture from the delegated generator is not
// implemented; see DESIGN.md's Open Questions section).
func rewriteYieldFrom(body []*ast.Node) []*ast.Node {
	r := &yfRewriter{}
	return r.rewriteList(body)
}

type yfRewriter struct{ n int }

func (r *yfRewriter) next() string {
	r.n++
	return "__yieldfrom_" + itoaGen(r.n) + "__"
}

func (r *yfRewriter) rewriteList(body []*ast.Node) []*ast.Node {
	out := make([]*ast.Node, 0, len(body))
	for _, s := range body {
		out = append(out, r.rewriteStmt(s))
	}
	return out
}

func (r *yfRewriter) rewriteStmt(s *ast.Node) *ast.Node {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case ast.KindExprStmt:
		if s.Value != nil && s.Value.Kind == ast.KindYieldFr {
			return r.makeForLoop(s.Value.Value, nil)
		}
	case ast.KindAssign:
		if s.Value != nil && s.Value.Kind == ast.KindYieldFr && len(s.Targets) == 1 {
			loop := r.makeForLoop(s.Value.Value, nil)
			// Wrap as a synthetic block: the loop followed by `target = None`.
			// Statement codegen treats a node whose Kind is KindFor specially;
			// to also carry the trailing assignment we fold it into OrElse,
			// which always runs after a for-loop completes normally.
			loop.OrElse = append(loop.OrElse, &ast.Node{
				Kind:    ast.KindAssign,
				Targets: []*ast.Node{s.Targets[0]},
				Value:   &ast.Node{Kind: ast.KindNone},
			})
			return loop
		}
	case ast.KindIf:
		s.Body = r.rewriteList(s.Body)
		s.OrElse = r.rewriteList(s.OrElse)
	case ast.KindWhile:
		s.Body = r.rewriteList(s.Body)
		s.OrElse = r.rewriteList(s.OrElse)
	case ast.KindFor:
		s.Body = r.rewriteList(s.Body)
		s.OrElse = r.rewriteList(s.OrElse)
	case ast.KindTry:
		s.Body = r.rewriteList(s.Body)
		for i := range s.Handlers {
			s.Handlers[i].Body = r.rewriteList(s.Handlers[i].Body)
		}
		s.OrElse = r.rewriteList(s.OrElse)
		s.Finally = r.rewriteList(s.Finally)
	case ast.KindWith:
		s.Body = r.rewriteList(s.Body)
	}
	return s
}

func (r *yfRewriter) makeForLoop(iterable *ast.Node, _ *ast.Node) *ast.Node {
	name := r.next()
	target := &ast.Node{Kind: ast.KindName, Id: name}
	return &ast.Node{
		Kind:   ast.KindFor,
		Target: target,
		Iter:   iterable,
		Body: []*ast.Node{{
			Kind:  ast.KindExprStmt,
			Value: &ast.Node{Kind: ast.KindYield, Value: &ast.Node{Kind: ast.KindName, Id: name}},
		}},
	}
}

func itoaGen(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// ---- generator detection helpers (used by compileGeneratorBody) ---------

func containsYield(n *ast.Node) bool {
	found := false
	walkGen(n, func(c *ast.Node) bool {
		if c.Kind == ast.KindYield || c.Kind == ast.KindYieldFr {
			found = true
			return false
		}
		if c.Kind == ast.KindFunctionDef || c.Kind == ast.KindClassDef || c.Kind == ast.KindLambda {
			return false
		}
		return true
	})
	return found
}

// walkGen is a lightweight pre-order walk over codegen's post-rewrite
// trees (internal/analysis keeps its own walker unexported).
func walkGen(n *ast.Node, visit func(*ast.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for _, c := range directChildren(n) {
		walkGen(c, visit)
	}
}

func directChildren(n *ast.Node) []*ast.Node {
	var cs []*ast.Node
	add := func(x *ast.Node) {
		if x != nil {
			cs = append(cs, x)
		}
	}
	addMany := func(xs []*ast.Node) {
		for _, x := range xs {
			add(x)
		}
	}
	add(n.Left)
	add(n.Right)
	add(n.Operand)
	addMany(n.Values)
	add(n.Target)
	add(n.Value)
	add(n.Test)
	add(n.Then)
	add(n.Else)
	addMany(n.Body)
	addMany(n.OrElse)
	add(n.Obj)
	add(n.Index)
	add(n.Lower)
	add(n.Upper)
	add(n.Step)
	add(n.Func)
	addMany(n.Args)
	addMany(n.Elts)
	addMany(n.Keys)
	add(n.Elt)
	add(n.KeyExpr)
	add(n.ValExpr)
	for _, g := range n.Generators {
		add(g.Iter)
		addMany(g.Ifs)
	}
	addMany(n.Targets)
	add(n.Iter)
	for _, h := range n.Handlers {
		add(h.Type)
		addMany(h.Body)
	}
	addMany(n.Finally)
	for _, it := range n.Items {
		add(it.ContextExpr)
		add(it.OptionalVar)
	}
	add(n.Exc)
	add(n.Cause)
	for _, c := range n.Cases {
		add(c.Pattern)
		add(c.Guard)
		addMany(c.Body)
	}
	return cs
}

// ---- generator state machine ---------------------------------------------

// GenCtx carries per-generator-body codegen state: the current
// state-assignment counter and the original parameter list, threaded
// through emitYield so each suspend point can re-pack exactly the values
// the body was entered with (the same shape the wrapper built the
// generator's initial locals chain in).
type GenCtx struct {
	nextState int
	Params    []ast.Param
}

// emitYield packs the body's live parameter locals into a chain matching
// the wrapper's front-to-back order, stashes it and the resume state on
// the generator, then returns the yielded value. Everything textually
// after the "return" is resume code: unreachable on this pass, live only
// when a later rt_gen_next call dispatches straight past it via the
// staircase's state-comparison br_if.
func (f *FuncCtx) emitYield(n *ast.Node) {
	if f.Gen == nil {
		f.fatalUnimplemented(n, "yield outside a generator body")
		return
	}
	f.Gen.nextState++
	state := f.Gen.nextState
	f.Buf.Emit("local.get $gen")
	f.Buf.Emit("global.get $rt_EmptyList")
	for i := len(f.Gen.Params) - 1; i >= 0; i-- {
		f.Buf.Emit("local.get %s", wasmLocalName(f.Gen.Params[i].Name))
		f.Buf.Emit("call $rt_pair_cons")
	}
	f.Buf.Emit("call $rt_gen_pack_locals")
	f.Buf.Emit("local.get $gen")
	f.Buf.Emit("i32.const %d", state)
	f.Buf.Emit("call $rt_gen_set_state")
	f.emitExpr(n.Value)
	f.Buf.Emit("return")
	f.Buf.Emit(";; resume point for state %d", state)
	// Send semantics: rt_gen_clear_sent returns sent_value and clears it;
	// that value is the yield expression's single result.
	f.Buf.Emit("call $rt_gen_clear_sent")
}

// compileGeneratorBody compiles a generator function into a wrapper (packs
// params into a saved-locals chain and returns a fresh Generator struct)
// and a body (dispatches on state, runs to the next yield or exhaustion).
func compileGeneratorBody(fc *FuncCtx, name string, params []ast.Param, body []*ast.Node) {
	bodyIdx := fc.C.NextIdx
	fc.C.NextIdx++

	// Wrapper: a real closure body taking $env like any other function,
	// packing the arguments it was called with into the locals chain and
	// handing the env off separately (the generator struct's own field),
	// since the body function below has no $env parameter of its own --
	// call_indirect dispatch (rt_gen_next) needs every generator body to
	// share one fixed (gen) -> value signature regardless of arity.
	fc.Buf.Open("(func $fn_%s (param $env (ref null $rt_any)) %s (result (ref null $rt_any))",
		sanitize(name), paramList(params))
	fc.Buf.Emit("global.get $rt_EmptyList")
	for i := len(params) - 1; i >= 0; i-- {
		fc.Buf.Emit("local.get %s", wasmLocalName(params[i].Name))
		fc.Buf.Emit("call $rt_pair_cons")
	}
	fc.Buf.Emit("local.get $env")
	fc.Buf.Emit("i32.const %d", bodyIdx)
	fc.Buf.Emit("i32.const 0 ;; initial state")
	fc.Buf.Emit("call $rt_make_generator")
	fc.Buf.Close()

	// Body: (gen) -> value. Parameters are ordinary locals here, not real
	// function parameters -- rt_gen_next's call_indirect only ever passes
	// the generator itself, so every suspended parameter value has to come
	// back out of the saved-locals chain at entry instead.
	bodyBuf := NewBuffer()
	bodyFc := &FuncCtx{C: fc.C, Scope: fc.Scope, Buf: bodyBuf, Class: fc.Class, EnclosingFree: fc.EnclosingFree}
	bodyFc.Gen = &GenCtx{Params: params}
	bodyBuf.Open("(func $fn_%s_body (param $gen (ref null $rt_any)) (result (ref null $rt_any))",
		sanitize(name))
	bodyBuf.Emit("(local $env (ref null $rt_any))")
	for _, p := range params {
		bodyBuf.Emit("(local %s (ref null $rt_any))", wasmLocalName(p.Name))
	}
	declareLocals(bodyFc, fc.Scope)
	bodyBuf.Emit("(local $__state i32)")
	bodyBuf.Emit("(local $__gen_locals (ref null $rt_any))")
	bodyBuf.Emit("local.get $gen")
	bodyBuf.Emit("call $rt_gen_env")
	bodyBuf.Emit("local.set $env")
	bodyBuf.Emit("local.get $gen")
	bodyBuf.Emit("call $rt_gen_unpack_locals")
	bodyBuf.Emit("local.set $__gen_locals")
	for _, p := range params {
		bodyBuf.Emit("local.get $__gen_locals")
		bodyBuf.Emit("call $rt_pair_head")
		bodyBuf.Emit("local.set %s", wasmLocalName(p.Name))
		bodyBuf.Emit("local.get $__gen_locals")
		bodyBuf.Emit("call $rt_pair_tail")
		bodyBuf.Emit("local.set $__gen_locals")
	}
	bodyBuf.Emit("local.get $gen")
	bodyBuf.Emit("call $rt_gen_state")
	bodyBuf.Emit("local.set $__state")

	emitGeneratorDispatch(bodyFc, body)

	bodyBuf.Emit("local.get $gen")
	bodyBuf.Emit("i32.const -1")
	bodyBuf.Emit("call $rt_gen_set_state")
	bodyBuf.Emit("call $rt_raise_stop_iteration")
	bodyBuf.Close()

	fc.C.Out = append(fc.C.Out, Function{
		Name: sanitize(name) + "_body", Body: bodyBuf.String(),
		NumParams: len(params), IsGenerator: true,
	})
}

// emitGeneratorDispatch implements the "staircase" lowering: nested blocks,
// one per yield point, so a single br skips straight to the code following
// that yield. This realizes a br-table-over-state dispatch for simple
// generators, and extends to one level of yield-bearing while/for loop: the
// loop body is split at the yield point, with its iterator local folded
// into the saved locals. Deeper nesting (yield inside if/try, or a loop
// nested inside another yield-bearing loop) is a known generator-codegen
// limitation and aborts compilation rather than emitting silently-wrong
// code.
func emitGeneratorDispatch(f *FuncCtx, body []*ast.Node) {
	segments := splitGeneratorSegments(f, body)
	emitStaircase(f, segments)
}

type gensegKind int

const (
	segPlain gensegKind = iota
	segLoop
)

type genSegment struct {
	kind gensegKind
	stmt *ast.Node   // for segLoop
	body []*ast.Node // for segPlain
}

func splitGeneratorSegments(f *FuncCtx, body []*ast.Node) []genSegment {
	var segs []genSegment
	var run []*ast.Node
	flush := func() {
		if len(run) > 0 {
			segs = append(segs, genSegment{kind: segPlain, body: run})
			run = nil
		}
	}
	for _, s := range body {
		switch s.Kind {
		case ast.KindWhile, ast.KindFor:
			if containsYield(s) {
				flush()
				segs = append(segs, genSegment{kind: segLoop, stmt: s})
				continue
			}
		case ast.KindIf, ast.KindTry, ast.KindWith:
			if containsYield(s) {
				f.fatalUnimplemented(s, "yield nested inside if/try/with is a known generator-codegen limitation")
			}
		}
		run = append(run, s)
	}
	flush()
	return segs
}

// emitStaircase emits the nested-block lowering for a flat segment list. A
// plain segment may itself contain several straight-line yields; each gets
// its own nested block exactly like the single-loop case, just one level
// shallower since plain segments don't loop back.
func emitStaircase(f *FuncCtx, segments []genSegment) {
	for _, seg := range segments {
		switch seg.kind {
		case segPlain:
			emitPlainStaircase(f, seg.body)
		case segLoop:
			emitLoopStaircase(f, seg.stmt)
		}
	}
}

func emitPlainStaircase(f *FuncCtx, stmts []*ast.Node) {
	// Find direct yield-bearing statements at this level: ExprStmt(Yield)
	// or Assign(Yield). Everything else runs unconditionally.
	type point struct {
		idx int
	}
	var points []point
	for i, s := range stmts {
		if isYieldStmt(s) {
			points = append(points, point{idx: i})
		}
	}
	if len(points) == 0 {
		f.emitStmts(stmts)
		return
	}
	// Nest one block per yield point, outer-to-inner from the LAST point
	// to the FIRST: branching to a point's label exits exactly that block
	// (and everything nested inside it), landing right after it closes —
	// i.e. at the start of the code following that yield.
	labels := make([]string, len(points))
	for i := range points {
		labels[i] = f.newLabel("gen_after")
	}
	for i := len(labels) - 1; i >= 0; i-- {
		f.Buf.Open("block %s", labels[i])
	}
	pos := 0
	for pi, pt := range points {
		f.Gen.nextState++
		state := f.Gen.nextState
		f.Buf.Emit("local.get $__state")
		f.Buf.Emit("i32.const %d", state)
		f.Buf.Emit("i32.ge_s")
		f.Buf.Emit("br_if %s", labels[pi])
		f.emitStmts(stmts[pos:pt.idx])
		f.emitStmt(stmts[pt.idx]) // the yielding statement itself
		f.Buf.Close()
		pos = pt.idx + 1
	}
	f.emitStmts(stmts[pos:])
}

func isYieldStmt(s *ast.Node) bool {
	switch s.Kind {
	case ast.KindExprStmt:
		return s.Value != nil && s.Value.Kind == ast.KindYield
	case ast.KindAssign:
		return s.Value != nil && s.Value.Kind == ast.KindYield
	}
	return false
}

// emitLoopStaircase implements the single-level yield-bearing while/for
// case: the loop's iterator/counter local is part of the saved locals
// (declareLocals already reserved it), and a resume lands directly inside
// the loop body past the statements that precede the yield, then falls
// through to the normal loop-back branch.
func emitLoopStaircase(f *FuncCtx, loopNode *ast.Node) {
	for _, s := range loopNode.Body {
		switch s.Kind {
		case ast.KindWhile, ast.KindFor, ast.KindIf, ast.KindTry, ast.KindWith:
			if containsYield(s) {
				f.fatalUnimplemented(s, "yield nested inside a statement of a yield-bearing loop body is a generator-codegen limitation")
			}
		}
	}
	blockLbl := f.newLabel("genloop_end")
	topLbl := f.newLabel("genloop_top")
	f.loops = append(f.loops, loopLabels{breakLbl: blockLbl, continueLbl: topLbl, finallyFloor: len(f.finallies)})
	defer func() { f.loops = f.loops[:len(f.loops)-1] }()

	f.Buf.Open("block %s", blockLbl)
	f.Buf.Open("loop %s", topLbl)

	if loopNode.Kind == ast.KindWhile {
		f.emitExpr(loopNode.Test)
		f.Buf.Emit("call $rt_truthy")
		f.Buf.Emit("i32.eqz")
		f.Buf.Emit("br_if %s", blockLbl)
	} else {
		iterLocal := wasmLocalName(iterLocalFor(loopNode.Target))
		f.Buf.Emit("local.get %s", iterLocal)
		f.Buf.Emit("call $rt_iter_done")
		f.Buf.Emit("br_if %s", blockLbl)
		f.Buf.Emit("local.get %s", iterLocal)
		f.Buf.Emit("call $rt_iter_head")
		f.emitStoreTarget(loopNode.Target)
		f.Buf.Emit("local.get %s", iterLocal)
		f.Buf.Emit("call $rt_iter_advance")
		f.Buf.Emit("local.set %s", iterLocal)
	}

	emitPlainStaircase(f, loopNode.Body)

	f.Buf.Emit("br %s", topLbl)
	f.Buf.Close()
	f.Buf.Close()
	f.emitStmts(loopNode.OrElse)
}
