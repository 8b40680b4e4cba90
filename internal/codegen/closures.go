package codegen

import (
	"pywasmc/internal/analysis"
	"pywasmc/internal/ast"
)

// compileFunctionBody compiles one function/lambda body into a new WAT
// function, registers it in the Compiler's function table, and returns its
// assigned index plus the scope used to compute the env it captures.
// Each nested function or lambda becomes its own WAT function.
func (c *Compiler) compileFunctionBody(name string, params []ast.Param, body []*ast.Node, enclosing *FuncCtx) (*FuncSig, *analysis.Scope) {
	scope := analysis.AnalyzeFunction(params, body)
	idx := c.NextIdx
	c.NextIdx++

	fc := &FuncCtx{
		C:     c,
		Scope: scope,
		Buf:   NewBuffer(),
		Class: enclosing.classOrNil(),
	}
	if enclosing != nil {
		fc.EnclosingFree = unionFree(enclosing.EnclosingFree, enclosing.Scope)
	}
	if scope.IsGenerator {
		compileGeneratorBody(fc, name, params, body)
	} else {
		fc.Buf.Open("(func $fn_%s (param $env (ref null $rt_any)) %s (result (ref null $rt_any))",
			sanitize(name), paramList(params))
		declareLocals(fc, scope)
		fc.emitStmts(rewriteYieldFrom(body))
		fc.Buf.Emit("ref.null $rt_any ;; implicit None return")
		fc.Buf.Close()
	}

	sig := &FuncSig{
		Index:        idx,
		NumParams:    len(params),
		FirstDefault: firstDefault(params),
		IsGenerator:  scope.IsGenerator,
		ParamNames:   paramNames(params),
	}
	c.Out = append(c.Out, Function{
		Name:        sanitize(name),
		Body:        fc.Buf.String(),
		NumParams:   len(params),
		IsGenerator: scope.IsGenerator,
		FreeVars:    setToSlice(scope.FreeVars),
	})
	return sig, scope
}

func (f *FuncCtx) classOrNil() *ClassCtx {
	if f == nil {
		return nil
	}
	return f.Class
}

func unionFree(base map[string]bool, s *analysis.Scope) map[string]bool {
	out := map[string]bool{}
	for k := range base {
		out[k] = true
	}
	if s != nil {
		for k := range s.FreeVars {
			out[k] = true
		}
		for k := range s.Locals {
			out[k] = true
		}
		for k := range s.Params {
			out[k] = true
		}
	}
	return out
}

func setToSlice(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func paramNames(params []ast.Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

func firstDefault(params []ast.Param) int {
	for i, p := range params {
		if p.Default != nil {
			return i
		}
	}
	return len(params)
}

func paramList(params []ast.Param) string {
	s := ""
	for _, p := range params {
		s += "(param " + wasmLocalName(p.Name) + " (ref null $rt_any)) "
	}
	return s
}

// declareLocals declares every scratch local statement/expression codegen
// reuses across a function body once up front, alongside the analyzed
// locals. It reserves $__with_ctx/$__with_exit pairs for withMaxItems
// nested context managers, matching the bounded arity the rest of this
// runtime already accepts for call_indirect.
const withMaxItems = 4

// DeclareModuleLocals is declareLocals exposed for the top-level module
// function, which cmd/pywasmc assembles outside of compileFunctionBody.
func DeclareModuleLocals(f *FuncCtx, s *analysis.Scope) {
	declareLocals(f, s)
}

func declareLocals(f *FuncCtx, s *analysis.Scope) {
	for name := range s.Locals {
		f.Buf.Emit("(local %s (ref null $rt_any))", wasmLocalName(name))
	}
	for _, it := range s.IterLocals {
		f.Buf.Emit("(local %s (ref null $rt_any))", wasmLocalName(it))
	}
	f.Buf.Emit("(local $__boolop_tmp (ref null $rt_any))")
	for i := 0; i < 4; i++ {
		f.Buf.Emit("(local $__cmp_tmp%d (ref null $rt_any))", i)
	}
	f.Buf.Emit("(local $__assign_tmp (ref null $rt_any))")
	f.Buf.Emit("(local $__store_val (ref null $rt_any))")
	f.Buf.Emit("(local $__unpack_src (ref null $rt_any))")
	f.Buf.Emit("(local $__decorated_tmp (ref null $rt_any))")
	f.Buf.Emit("(local $__fstr_sb (ref null $rt_any))")
	f.Buf.Emit("(local $__method_fn (ref null $rt_any))")
	f.Buf.Emit("(local $__self_tmp (ref null $rt_any))")
	f.Buf.Emit("(local $__init_fn (ref null $rt_any))")
	f.Buf.Emit("(local $__walrus_tmp__ (ref null $rt_any))")
	f.Buf.Emit("(local $__ret_tmp (ref null $rt_any))")
	f.Buf.Emit("(local $__exc_tmp (ref null $rt_any))")
	f.Buf.Emit("(local $__exc_prev (ref null $rt_any))")
	f.Buf.Emit("(local $__match_subject (ref null $rt_any))")
	f.Buf.Emit("(local $__match_tmp (ref null $rt_any))")
	f.Buf.Emit("(local $__range_ctr__ (ref null $rt_any))")
	for i := 0; i < withMaxItems; i++ {
		f.Buf.Emit("(local $__with_ctx%d (ref null $rt_any))", i)
		f.Buf.Emit("(local $__with_exit%d (ref null $rt_any))", i)
	}
}

// emitClosureLiteral compiles the nested body, then at the definition site
// packs the captured free variables into an env and wraps (env, func_idx)
// into a Closure.
func (f *FuncCtx) emitClosureLiteral(name string, params []ast.Param, body []*ast.Node) {
	sig, scope := f.C.compileFunctionBody(name, params, body, f)
	f.Buf.Emit("global.get $rt_EmptyList")
	for fv := range scope.FreeVars {
		f.emitInternedString(fv)
		f.emitNameLoad(fv)
		f.Buf.Emit("call $rt_env_push")
	}
	f.Buf.Emit("i32.const %d", sig.Index)
	f.Buf.Emit("call $rt_make_closure")
}

// ---- comprehensions --------------------------------------------------------

type compKind int

const (
	compKindList compKind = iota
	compKindSet
	compKindDict
	compKindGen
)

func (f *FuncCtx) emitComprehension(n *ast.Node, kind compKind) {
	cl := f.findCompLocals(n)
	switch kind {
	case compKindList:
		f.Buf.Emit("call $rt_list_new")
	case compKindSet:
		f.Buf.Emit("call $rt_set_new")
	case compKindDict:
		f.Buf.Emit("call $rt_dict_new")
	case compKindGen:
		// A generator expression lowers to the same accumulator-producing
		// loop but the result becomes an eagerly-built list: no true
		// laziness in this single-pass emitter.
		f.Buf.Emit("call $rt_list_new")
	}
	f.Buf.Emit("local.set %s", wasmLocalName(cl.Accumulator))

	var emitClause func(i int)
	emitClause = func(i int) {
		if i == len(n.Generators) {
			switch kind {
			case compKindDict:
				f.Buf.Emit("local.get %s", wasmLocalName(cl.Accumulator))
				f.emitExpr(n.KeyExpr)
				f.emitExpr(n.ValExpr)
				f.Buf.Emit("call $rt_dict_set")
			default:
				f.Buf.Emit("local.get %s", wasmLocalName(cl.Accumulator))
				f.emitExpr(n.Elt)
				if kind == compKindSet {
					f.Buf.Emit("call $rt_set_add")
				} else {
					f.Buf.Emit("call $rt_list_append")
				}
			}
			return
		}
		gen := n.Generators[i]
		loopVar, iterVar := cl.LoopVars[i], cl.IterVars[i]
		f.emitExpr(gen.Iter)
		f.Buf.Emit("call $rt_iter_prepare")
		f.Buf.Emit("local.set %s", wasmLocalName(iterVar))
		loopLbl := f.newLabel("comp_loop")
		blockLbl := f.newLabel("comp_block")
		f.Buf.Open("block %s", blockLbl)
		f.Buf.Open("loop %s", loopLbl)
		f.Buf.Emit("local.get %s", wasmLocalName(iterVar))
		f.Buf.Emit("call $rt_iter_done")
		f.Buf.Emit("br_if %s", blockLbl)
		f.Buf.Emit("local.get %s", wasmLocalName(iterVar))
		f.Buf.Emit("call $rt_iter_head")
		f.Buf.Emit("local.set %s", wasmLocalName(loopVar))
		f.Buf.Emit("local.get %s", wasmLocalName(iterVar))
		f.Buf.Emit("call $rt_iter_advance")
		f.Buf.Emit("local.set %s", wasmLocalName(iterVar))
		for _, cond := range gen.Ifs {
			f.emitExpr(cond)
			f.Buf.Emit("call $rt_truthy")
			f.Buf.Emit("i32.eqz")
			f.Buf.Emit("br_if %s", loopLbl)
		}
		emitClause(i + 1)
		f.Buf.Emit("br %s", loopLbl)
		f.Buf.Close()
		f.Buf.Close()
	}
	emitClause(0)
	f.Buf.Emit("local.get %s", wasmLocalName(cl.Accumulator))
}

// emitFunctionDef handles a function-definition statement, including
// defaulted parameters: compile the body, register its signature (for
// direct-call optimization at call sites), and bind the resulting closure
// to the definition name.
func (f *FuncCtx) emitFunctionDef(n *ast.Node) {
	sig, _ := f.C.compileFunctionBody(n.Name, n.Params, n.Body, f)
	f.C.Funcs[n.Name] = sig
	for i := sig.FirstDefault; i < len(n.Params); i++ {
		f.compileDefaultThunk(n.Name, i, n.Params[i].Default)
	}
	f.emitClosureLiteralForDef(n)
}

func (f *FuncCtx) compileDefaultThunk(fnName string, paramIdx int, def *ast.Node) {
	dc := &FuncCtx{C: f.C, Scope: f.Scope, Buf: NewBuffer(), Class: f.Class, EnclosingFree: f.EnclosingFree}
	dc.Buf.Open("(func $fn_%s_default%d (result (ref null $rt_any))", sanitize(fnName), paramIdx)
	dc.emitExpr(def)
	dc.Buf.Close()
	f.C.Out = append(f.C.Out, Function{Name: sanitize(fnName) + "_default" + itoaGen(paramIdx), Body: dc.Buf.String()})
}

func (f *FuncCtx) emitClosureLiteralForDef(n *ast.Node) {
	scope := analysis.AnalyzeFunction(n.Params, n.Body)
	sig := f.C.Funcs[n.Name]
	f.Buf.Emit("global.get $rt_EmptyList")
	for fv := range scope.FreeVars {
		f.emitInternedString(fv)
		f.emitNameLoad(fv)
		f.Buf.Emit("call $rt_env_push")
	}
	f.Buf.Emit("i32.const %d", sig.Index)
	f.Buf.Emit("call $rt_make_closure")
	f.applyDecorators(n.Decorators)
	f.Buf.Emit("local.set %s", wasmLocalName(n.Name))
}

// applyDecorators implements decorator application in innermost-applied-
// first order: the last decorator listed sits closest to the def and wraps
// first, the first listed wraps last, matching the source's
// `@a @b def f(): ...` == `f = a(b(f))`.
func (f *FuncCtx) applyDecorators(decorators []*ast.Node) {
	for i := len(decorators) - 1; i >= 0; i-- {
		f.Buf.Emit("local.set $__decorated_tmp")
		f.emitExpr(decorators[i])
		f.Buf.Emit("local.get $__decorated_tmp")
		f.Buf.Emit("call $rt_call1")
	}
}

func (f *FuncCtx) findCompLocals(n *ast.Node) *analysis.CompLocals {
	if f.Scope == nil {
		return &analysis.CompLocals{Accumulator: "__comp_acc_fallback__"}
	}
	// The analyzer numbers comprehensions in the same traversal order
	// codegen now walks them in, so matching by position is sufficient.
	for _, c := range f.Scope.Comps {
		if len(c.LoopVars) == len(n.Generators) {
			return c
		}
	}
	return &analysis.CompLocals{Accumulator: "__comp_acc_fallback__"}
}
