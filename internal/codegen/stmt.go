package codegen

import "pywasmc/internal/ast"

type loopLabels struct {
	breakLbl, continueLbl string
	// finallyFloor is len(f.finallies) at the point this loop was entered:
	// break/continue only replay the frames pushed since then, not ones
	// belonging to an enclosing try/with the loop itself is nested in.
	finallyFloor int
}

// runFinalliesFrom replays every pending finally/with-exit cleanup from the
// top of the stack down to (but not including) floor, innermost first —
// the same order Python itself unwinds nested finally blocks in.
func (f *FuncCtx) runFinalliesFrom(floor int) {
	for i := len(f.finallies) - 1; i >= floor; i-- {
		f.finallies[i].emit()
	}
}

// emitStmts emits each statement of a statement list in order.
func (f *FuncCtx) emitStmts(body []*ast.Node) {
	for _, s := range body {
		f.emitStmt(s)
	}
}

func (f *FuncCtx) emitStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindPass:
		// no-op

	case ast.KindExprStmt:
		f.emitExpr(n.Value)
		f.Buf.Emit("drop")

	case ast.KindAssign:
		f.emitAssign(n)
	case ast.KindAugAssign:
		f.emitAugAssign(n)
	case ast.KindAnnAssign:
		if n.Value != nil {
			f.emitAssign(&ast.Node{Kind: ast.KindAssign, Targets: []*ast.Node{n.Target}, Value: n.Value})
		}

	case ast.KindIf:
		f.emitExpr(n.Test)
		f.Buf.Emit("call $rt_truthy")
		f.Buf.Open("if")
		f.Buf.Emit("then")
		f.emitStmts(n.Body)
		if len(n.OrElse) > 0 {
			f.Buf.Emit("else")
			f.emitStmts(n.OrElse)
		}
		f.Buf.Close()

	case ast.KindWhile:
		f.emitWhile(n)

	case ast.KindFor:
		f.emitFor(n)

	case ast.KindBreak:
		if len(f.loops) == 0 {
			f.fatalUnimplemented(n, "break outside loop")
			return
		}
		lp := f.loops[len(f.loops)-1]
		f.runFinalliesFrom(lp.finallyFloor)
		f.Buf.Emit("br %s", lp.breakLbl)
	case ast.KindContinue:
		if len(f.loops) == 0 {
			f.fatalUnimplemented(n, "continue outside loop")
			return
		}
		lp := f.loops[len(f.loops)-1]
		f.runFinalliesFrom(lp.finallyFloor)
		f.Buf.Emit("br %s", lp.continueLbl)

	case ast.KindReturn:
		f.emitExpr(n.Value)
		if len(f.finallies) > 0 {
			f.Buf.Emit("local.set $__ret_tmp")
			f.runFinalliesFrom(0)
			f.Buf.Emit("local.get $__ret_tmp")
		}
		f.Buf.Emit("return")

	case ast.KindAssert:
		f.emitExpr(n.Test)
		f.Buf.Emit("call $rt_truthy")
		f.Buf.Emit("i32.eqz")
		f.Buf.Open("if")
		f.Buf.Emit("then")
		if n.Value != nil {
			f.emitExpr(n.Value)
		} else {
			f.Buf.Emit("ref.null $rt_any")
		}
		f.Buf.Emit("call $rt_raise_assertion_error")
		f.Buf.Close()

	case ast.KindTry:
		f.emitTry(n)

	case ast.KindWith:
		f.emitWith(n)

	case ast.KindRaise:
		f.emitRaise(n)

	case ast.KindImport:
		for _, name := range n.Names {
			f.Buf.Emit("ref.null $rt_any ;; import stub: %s", name)
			f.Buf.Emit("local.set %s", wasmLocalName(name))
		}

	case ast.KindGlobal, ast.KindNonlocal:
		// declarations only; no code emitted

	case ast.KindFunctionDef:
		f.emitFunctionDef(n)

	case ast.KindClassDef:
		f.emitClassDef(n)

	case ast.KindMatch:
		f.emitMatch(n)

	case ast.KindDelete:
		for _, t := range n.Targets {
			f.emitDeleteTarget(t)
		}

	default:
		f.fatalUnimplemented(n, "statement kind "+string(n.Kind))
	}
}

// ---- assignment (targets: name, tuple, list, starred,
// subscript, attribute) --------------------------------------------------

func (f *FuncCtx) emitAssign(n *ast.Node) {
	f.emitExpr(n.Value)
	f.Buf.Emit("local.set $__assign_tmp")
	for _, t := range n.Targets {
		f.Buf.Emit("local.get $__assign_tmp")
		f.emitStoreTarget(t)
	}
}

func (f *FuncCtx) emitStoreTarget(t *ast.Node) {
	switch t.Kind {
	case ast.KindName:
		switch f.resolveName(t.Id) {
		case nameLocal:
			f.Buf.Emit("local.set %s", wasmLocalName(t.Id))
		case nameNonlocal:
			f.Buf.Emit("local.get $env")
			f.emitInternedString(t.Id)
			f.Buf.Emit("call $rt_env_store")
		default:
			f.Buf.Emit("global.set $g_%s", sanitize(t.Id))
		}
	case ast.KindTuple, ast.KindList:
		f.emitUnpack(t.Elts)
	case ast.KindSubscript:
		f.Buf.Emit("local.set $__store_val")
		f.emitExpr(t.Obj)
		f.emitExpr(t.Index)
		f.Buf.Emit("local.get $__store_val")
		f.Buf.Emit("call $rt_subscript_set")
	case ast.KindAttribute:
		f.Buf.Emit("local.set $__store_val")
		f.emitExpr(t.Obj)
		f.emitInternedString(t.Attr)
		f.Buf.Emit("local.get $__store_val")
		f.Buf.Emit("call $rt_setattr")
	case ast.KindStarred:
		f.emitStoreTarget(t.Value)
	}
}

func (f *FuncCtx) emitUnpack(elts []*ast.Node) {
	f.Buf.Emit("local.set $__unpack_src")
	starIdx := -1
	for i, e := range elts {
		if e.Kind == ast.KindStarred {
			starIdx = i
		}
	}
	for i, e := range elts {
		f.Buf.Emit("local.get $__unpack_src")
		if starIdx >= 0 && i == starIdx {
			f.Buf.Emit("i32.const %d", i)
			f.Buf.Emit("i32.const %d", len(elts)-i-1)
			f.Buf.Emit("call $rt_unpack_star")
		} else {
			idx := i
			if starIdx >= 0 && i > starIdx {
				idx = i - len(elts) // negative index from the end
			}
			f.Buf.Emit("i32.const %d", idx)
			f.Buf.Emit("call $rt_unpack_index")
		}
		f.emitStoreTarget(e)
	}
}

func (f *FuncCtx) emitAugAssign(n *ast.Node) {
	f.emitExpr(n.Target)
	f.emitExpr(n.Value)
	f.Buf.Emit("call $rt_%s_dispatch", binOpName(n.Op))
	f.emitStoreTarget(n.Target)
}

// ---- loops ----------------------------------------------------------------

func (f *FuncCtx) emitWhile(n *ast.Node) {
	blockLbl := f.newLabel("while_end")
	loopLbl := f.newLabel("while_top")
	f.loops = append(f.loops, loopLabels{breakLbl: blockLbl, continueLbl: loopLbl, finallyFloor: len(f.finallies)})
	f.Buf.Open("block %s", blockLbl)
	f.Buf.Open("loop %s", loopLbl)
	f.emitExpr(n.Test)
	f.Buf.Emit("call $rt_truthy")
	f.Buf.Emit("i32.eqz")
	f.Buf.Emit("br_if %s", blockLbl)
	f.emitStmts(n.Body)
	f.Buf.Emit("br %s", loopLbl)
	f.Buf.Close()
	f.Buf.Close()
	f.loops = f.loops[:len(f.loops)-1]
	f.emitStmts(n.OrElse)
}

func (f *FuncCtx) emitFor(n *ast.Node) {
	if isRangeCallExpr(n.Iter) {
		f.emitRangeFor(n)
		return
	}
	blockLbl := f.newLabel("for_end")
	loopLbl := f.newLabel("for_top")
	iterLocal := wasmLocalName(iterLocalFor(n.Target))
	f.emitExpr(n.Iter)
	f.Buf.Emit("call $rt_iter_prepare")
	f.Buf.Emit("local.set %s", iterLocal)
	f.loops = append(f.loops, loopLabels{breakLbl: blockLbl, continueLbl: loopLbl, finallyFloor: len(f.finallies)})
	f.Buf.Open("block %s", blockLbl)
	f.Buf.Open("loop %s", loopLbl)
	f.Buf.Emit("local.get %s", iterLocal)
	f.Buf.Emit("call $rt_iter_done")
	f.Buf.Emit("br_if %s", blockLbl)
	f.Buf.Emit("local.get %s", iterLocal)
	f.Buf.Emit("call $rt_iter_head")
	f.emitStoreTarget(n.Target)
	f.Buf.Emit("local.get %s", iterLocal)
	f.Buf.Emit("call $rt_iter_advance")
	f.Buf.Emit("local.set %s", iterLocal)
	f.emitStmts(n.Body)
	f.Buf.Emit("br %s", loopLbl)
	f.Buf.Close()
	f.Buf.Close()
	f.loops = f.loops[:len(f.loops)-1]
	f.emitStmts(n.OrElse)
}

func (f *FuncCtx) emitRangeFor(n *ast.Node) {
	args := n.Iter.Args
	var lo, hi, step *ast.Node
	switch len(args) {
	case 1:
		hi = args[0]
	case 2:
		lo, hi = args[0], args[1]
	default:
		lo, hi, step = args[0], args[1], args[2]
	}
	ctr := wasmLocalName(counterNameFor(n.Target))
	if lo != nil {
		f.emitExpr(lo)
	} else {
		f.Buf.Emit("i32.const 0")
		f.Buf.Emit("call $rt_pack_int")
	}
	f.Buf.Emit("local.set %s", ctr)
	blockLbl := f.newLabel("range_end")
	loopLbl := f.newLabel("range_top")
	f.loops = append(f.loops, loopLabels{breakLbl: blockLbl, continueLbl: loopLbl, finallyFloor: len(f.finallies)})
	f.Buf.Open("block %s", blockLbl)
	f.Buf.Open("loop %s", loopLbl)
	f.Buf.Emit("local.get %s", ctr)
	f.emitExpr(hi)
	f.Buf.Emit("call $rt_compare_lt")
	f.Buf.Emit("call $rt_truthy")
	f.Buf.Emit("i32.eqz")
	f.Buf.Emit("br_if %s", blockLbl)
	f.Buf.Emit("local.get %s", ctr)
	f.emitStoreTarget(n.Target)
	f.emitStmts(n.Body)
	f.Buf.Emit("local.get %s", ctr)
	if step != nil {
		f.emitExpr(step)
	} else {
		f.Buf.Emit("i32.const 1")
		f.Buf.Emit("call $rt_pack_int")
	}
	f.Buf.Emit("call $rt_add_dispatch")
	f.Buf.Emit("local.set %s", ctr)
	f.Buf.Emit("br %s", loopLbl)
	f.Buf.Close()
	f.Buf.Close()
	f.loops = f.loops[:len(f.loops)-1]
	f.emitStmts(n.OrElse)
}

func isRangeCallExpr(n *ast.Node) bool {
	return n != nil && n.Kind == ast.KindCall && n.Func != nil && n.Func.Kind == ast.KindName && n.Func.Id == "range"
}

func iterLocalFor(target *ast.Node) string {
	if target != nil && target.Kind == ast.KindName {
		return "__iter_" + target.Id + "__"
	}
	return "__iter_unpack__"
}

func counterNameFor(target *ast.Node) string {
	if target != nil && target.Kind == ast.KindName {
		return target.Id
	}
	return "__range_ctr__"
}

// ---- try/except/else/finally -----------------------------------------------

// emitTry lowers try/except/else/finally onto a try_table that catches into
// an enclosing block typed (result (ref null $rt_any)): a null block result
// means the body completed without raising, any other value is the caught
// exception. finally is registered on f.finallies for the duration of the
// body and every handler, so an early return/break/continue anywhere inside
// replays it before actually exiting (see runFinalliesFrom); it also runs
// explicitly here on both the normal-completion path and the no-handler-
// matched path, so a propagating exception passes through it exactly once.
// An exception raised by a handler body itself (as opposed to exiting via
// return/break/continue) is not re-caught by this try, so it currently
// skips finally — the same bounded gap every nested-unwind path like this
// one has until the handler chain grows its own try_table layer.
func (f *FuncCtx) emitTry(n *ast.Node) {
	hasFinally := len(n.Finally) > 0
	if hasFinally {
		f.finallies = append(f.finallies, finallyFrame{emit: func() { f.emitStmts(n.Finally) }})
	}

	tryLbl := f.newLabel("try")
	f.Buf.Open("block %s (result (ref null $rt_any))", tryLbl)
	f.C.Target.TryCatch(f.Buf, "$rt_exn", func() {
		f.emitStmts(n.Body)
		f.Buf.Emit("ref.null $rt_any ;; sentinel: body completed without raising")
	})
	f.Buf.Close()
	f.Buf.Emit("local.set $__exc_tmp")

	f.Buf.Emit("local.get $__exc_tmp")
	f.Buf.Emit("ref.is_null")
	f.Buf.Open("if")
	f.Buf.Emit("then")
	f.emitStmts(n.OrElse)
	if len(n.Handlers) > 0 {
		f.Buf.Emit("else")
		f.Buf.Emit("call $rt_exn_current")
		f.Buf.Emit("local.set $__exc_prev")
		f.Buf.Emit("local.get $__exc_tmp")
		f.Buf.Emit("call $rt_exn_set_current")

		handledLbl := f.newLabel("try_handled")
		f.Buf.Open("block %s", handledLbl)
		for _, h := range n.Handlers {
			if h.Type != nil {
				f.Buf.Emit("local.get $__exc_tmp")
				f.emitExpr(h.Type)
				f.Buf.Emit("call $rt_exn_matches")
				f.Buf.Open("if")
				f.Buf.Emit("then")
			}
			if h.Name != "" {
				f.Buf.Emit("local.get $__exc_tmp")
				f.Buf.Emit("local.set %s", wasmLocalName(h.Name))
			}
			f.emitStmts(h.Body)
			f.Buf.Emit("local.get $__exc_prev")
			f.Buf.Emit("call $rt_exn_set_current")
			f.Buf.Emit("br %s", handledLbl)
			if h.Type != nil {
				f.Buf.Close()
			}
		}
		// No handler matched: pop this try's own finally frame first so
		// compiling the finally body here (which may itself return) replays
		// only outer frames, not this one recursively, then run it once
		// before the exception keeps propagating instead of being silently
		// swallowed. The frame is pushed back afterwards so the normal and
		// handled paths below still get their own copy of finally.
		if hasFinally {
			f.finallies = f.finallies[:len(f.finallies)-1]
			f.emitStmts(n.Finally)
			f.finallies = append(f.finallies, finallyFrame{emit: func() { f.emitStmts(n.Finally) }})
		}
		f.Buf.Emit("local.get $__exc_prev")
		f.Buf.Emit("call $rt_exn_set_current")
		f.Buf.Emit("local.get $__exc_tmp")
		f.Buf.Emit("throw $rt_exn")
		f.Buf.Close()
	}
	f.Buf.Close()

	if hasFinally {
		f.finallies = f.finallies[:len(f.finallies)-1]
		f.emitStmts(n.Finally)
	}
}

// ---- with -------------------------------------------------------------

// emitWith lowers each context manager left to right, nesting one inside
// the next the same way Python desugars `with a, b:` into nested
// single-item withs. rt_getattr returns methods unbound, so the context
// manager is passed explicitly as the first argument: __enter__ gets only
// that, and __exit__ gets it plus three positional arguments
// -- ref.null on clean exit, the caught exception object repeated three
// times on an exceptional one, since this runtime doesn't split an
// exception into separate type/value/traceback objects the way Python
// does. __exit__'s own call is also registered as a finally frame for the
// body's dynamic extent, so an early return/break/continue inside still
// runs it; an exception from the body is caught, __exit__ decides by its
// truthiness whether to suppress it, and it otherwise keeps propagating.
func (f *FuncCtx) emitWith(n *ast.Node) {
	f.emitWithItem(n, 0)
}

func (f *FuncCtx) emitWithItem(n *ast.Node, i int) {
	if i == len(n.Items) {
		f.emitStmts(n.Body)
		return
	}
	item := n.Items[i]

	f.emitExpr(item.ContextExpr)
	f.Buf.Emit("local.set $__with_ctx%d", i)
	f.Buf.Emit("local.get $__with_ctx%d", i)
	f.emitInternedString("__exit__")
	f.Buf.Emit("call $rt_getattr")
	f.Buf.Emit("local.set $__with_exit%d", i)
	f.Buf.Emit("local.get $__with_ctx%d", i)
	f.emitInternedString("__enter__")
	f.Buf.Emit("call $rt_getattr")
	f.Buf.Emit("global.get $rt_EmptyList")
	f.Buf.Emit("local.get $__with_ctx%d", i)
	f.Buf.Emit("call $rt_pair_cons")
	f.Buf.Emit("call $rt_call_indirect")
	if item.OptionalVar != nil {
		f.emitStoreTarget(item.OptionalVar)
	} else {
		f.Buf.Emit("drop")
	}

	exitCall := func(pushExc func()) {
		f.Buf.Emit("local.get $__with_exit%d", i)
		f.Buf.Emit("global.get $rt_EmptyList")
		pushExc()
		f.Buf.Emit("call $rt_pair_cons")
		pushExc()
		f.Buf.Emit("call $rt_pair_cons")
		pushExc()
		f.Buf.Emit("call $rt_pair_cons")
		f.Buf.Emit("local.get $__with_ctx%d", i)
		f.Buf.Emit("call $rt_pair_cons")
		f.Buf.Emit("call $rt_call_indirect")
	}
	pushNull := func() { f.Buf.Emit("ref.null $rt_any") }

	f.finallies = append(f.finallies, finallyFrame{emit: func() {
		exitCall(pushNull)
		f.Buf.Emit("drop")
	}})

	withLbl := f.newLabel("with")
	f.Buf.Open("block %s (result (ref null $rt_any))", withLbl)
	f.C.Target.TryCatch(f.Buf, "$rt_exn", func() {
		f.emitWithItem(n, i+1)
		f.Buf.Emit("ref.null $rt_any ;; sentinel: body completed without raising")
	})
	f.Buf.Close()
	f.Buf.Emit("local.set $__exc_tmp")
	f.finallies = f.finallies[:len(f.finallies)-1]

	f.Buf.Emit("local.get $__exc_tmp")
	f.Buf.Emit("ref.is_null")
	f.Buf.Open("if")
	f.Buf.Emit("then")
	exitCall(pushNull)
	f.Buf.Emit("drop")
	f.Buf.Emit("else")
	exitCall(func() { f.Buf.Emit("local.get $__exc_tmp") })
	f.Buf.Emit("call $rt_truthy")
	f.Buf.Open("if")
	f.Buf.Emit("then")
	// __exit__ returned truthy: the exception is suppressed.
	f.Buf.Emit("else")
	f.Buf.Emit("local.get $__exc_tmp")
	f.Buf.Emit("throw $rt_exn")
	f.Buf.Close()
	f.Buf.Close()
}

// ---- raise ------------------------------------------------------------

func (f *FuncCtx) emitRaise(n *ast.Node) {
	if n.Exc == nil {
		f.Buf.Emit("call $rt_exn_current")
		f.Buf.Emit("throw $rt_exn")
		return
	}
	f.emitExpr(n.Exc)
	if n.Cause != nil {
		f.emitExpr(n.Cause)
		f.Buf.Emit("call $rt_exn_set_cause")
	}
	f.Buf.Emit("throw $rt_exn")
}

// ---- del: deletes a name, subscript, or attribute target. An attribute
// delete goes through rt_delattr, which removes the name from a dict-backed
// instance's attribute dict and raises AttributeError when it is absent;
// slotted instances and property deleters are not handled there ----------

func (f *FuncCtx) emitDeleteTarget(t *ast.Node) {
	switch t.Kind {
	case ast.KindAttribute:
		f.emitExpr(t.Obj)
		f.emitInternedString(t.Attr)
		f.Buf.Emit("call $rt_delattr")
	case ast.KindSubscript:
		f.emitExpr(t.Obj)
		f.emitExpr(t.Index)
		f.Buf.Emit("call $rt_delitem")
	case ast.KindName:
		f.Buf.Emit("ref.null $rt_any")
		f.emitStoreTarget(t)
	}
}
