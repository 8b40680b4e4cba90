package codegen

import (
	"strings"
	"testing"

	"pywasmc/internal/analysis"
	"pywasmc/internal/ast"
)

func newTestFuncCtx() *FuncCtx {
	c := NewCompiler()
	return &FuncCtx{C: c, Scope: analysis.AnalyzeFunction(nil, nil), Buf: NewBuffer()}
}

func TestEmitIntLiteral(t *testing.T) {
	f := newTestFuncCtx()
	f.emitExpr(&ast.Node{Kind: ast.KindInt, Int: 41})
	if !strings.Contains(f.Buf.String(), "41") {
		t.Errorf("expected the literal value in output, got:\n%s", f.Buf.String())
	}
}

func TestEmitBinOpDispatchesToRuntimeHelper(t *testing.T) {
	f := newTestFuncCtx()
	f.emitExpr(&ast.Node{
		Kind: ast.KindBinOp, Op: "+",
		Left:  &ast.Node{Kind: ast.KindInt, Int: 1},
		Right: &ast.Node{Kind: ast.KindInt, Int: 2},
	})
	out := f.Buf.String()
	if !strings.Contains(out, "call $rt_add_dispatch") {
		t.Errorf("expected a call to $rt_add_dispatch, got:\n%s", out)
	}
}

func TestEmitNameLoadBuiltinVsLocal(t *testing.T) {
	scope := analysis.AnalyzeFunction([]ast.Param{{Name: "x"}}, nil)
	f := &FuncCtx{C: NewCompiler(), Scope: scope, Buf: NewBuffer()}
	f.emitExpr(&ast.Node{Kind: ast.KindName, Id: "x"})
	if !strings.Contains(f.Buf.String(), "$x") {
		t.Errorf("expected a local load for param x, got:\n%s", f.Buf.String())
	}
	f.emitExpr(&ast.Node{Kind: ast.KindName, Id: "len"})
	if !strings.Contains(f.Buf.String(), "call $rt_make_builtin_closure") {
		t.Errorf("expected a builtin closure for len, got:\n%s", f.Buf.String())
	}
}

func TestEmitIfStatementEmitsBranches(t *testing.T) {
	f := newTestFuncCtx()
	f.emitStmt(&ast.Node{
		Kind: ast.KindIf,
		Test: &ast.Node{Kind: ast.KindBool, Bool: true},
		Body: []*ast.Node{{Kind: ast.KindPass}},
		OrElse: []*ast.Node{{Kind: ast.KindPass}},
	})
	out := f.Buf.String()
	if !strings.Contains(out, "if") {
		t.Errorf("expected an if form, got:\n%s", out)
	}
}

func TestEmitWhileLoopUsesBreakContinueLabels(t *testing.T) {
	f := newTestFuncCtx()
	f.emitStmt(&ast.Node{
		Kind: ast.KindWhile,
		Test: &ast.Node{Kind: ast.KindBool, Bool: true},
		Body: []*ast.Node{{Kind: ast.KindBreak}},
	})
	out := f.Buf.String()
	if !strings.Contains(out, "loop") || !strings.Contains(out, "br") {
		t.Errorf("expected a loop with at least one br, got:\n%s", out)
	}
}

func TestCompileFunctionBodyRegistersClosure(t *testing.T) {
	c := NewCompiler()
	enclosing := &FuncCtx{C: c, Scope: analysis.AnalyzeFunction(nil, nil), Buf: NewBuffer()}
	sig, scope := c.compileFunctionBody("add_one",
		[]ast.Param{{Name: "n"}},
		[]*ast.Node{{Kind: ast.KindReturn, Value: &ast.Node{Kind: ast.KindBinOp, Op: "+",
			Left: &ast.Node{Kind: ast.KindName, Id: "n"}, Right: &ast.Node{Kind: ast.KindInt, Int: 1}}}},
		enclosing)
	if sig.NumParams != 1 {
		t.Errorf("NumParams = %d, want 1", sig.NumParams)
	}
	if scope.IsGenerator {
		t.Error("add_one should not be detected as a generator")
	}
	if len(c.Out) != 1 {
		t.Fatalf("len(c.Out) = %d, want 1", len(c.Out))
	}
	if !strings.Contains(c.Out[0].Body, "fn_add_one") {
		t.Errorf("expected the emitted function to be named fn_add_one, got:\n%s", c.Out[0].Body)
	}
}

func TestEmitCallWithKeywordArgumentsAppendsThemOntoTheChain(t *testing.T) {
	f := newTestFuncCtx()
	f.emitExpr(&ast.Node{
		Kind: ast.KindCall,
		Func: &ast.Node{Kind: ast.KindName, Id: "some_closure"},
		Args: []*ast.Node{{Kind: ast.KindInt, Int: 1}},
		Keywords: map[string]*ast.Node{
			"flag": {Kind: ast.KindBool, Bool: true},
		},
	})
	out := f.Buf.String()
	if !strings.Contains(out, "call $rt_pair_cons") {
		t.Fatalf("expected the keyword value consed onto the arg chain, got:\n%s", out)
	}
	if !strings.Contains(out, "call $rt_call_indirect") {
		t.Errorf("expected an indirect call for an unknown callee, got:\n%s", out)
	}
}

func TestEmitDirectCallFillsUnfilledParamFromKeyword(t *testing.T) {
	f := newTestFuncCtx()
	f.C.Funcs["greet"] = &FuncSig{NumParams: 2, FirstDefault: 2, ParamNames: []string{"name", "greeting"}}
	f.emitDirectCall(&ast.Node{
		Func: &ast.Node{Kind: ast.KindName, Id: "greet"},
		Args: []*ast.Node{{Kind: ast.KindString, Str: "Ada"}},
		Keywords: map[string]*ast.Node{
			"greeting": {Kind: ast.KindString, Str: "hi"},
		},
	}, f.C.Funcs["greet"])
	out := f.Buf.String()
	if strings.Contains(out, "_default1") {
		t.Errorf("keyword-supplied param should not fall back to its default thunk, got:\n%s", out)
	}
	if !strings.Contains(out, "call $fn_greet") {
		t.Errorf("expected the direct call itself, got:\n%s", out)
	}
}

func TestEmitInstantiateCallsInitWithSelfThreaded(t *testing.T) {
	f := newTestFuncCtx()
	f.C.Classes["Point"] = true
	f.C.ClassSlots["Point"] = []string{"x", "y"}
	f.emitInstantiate(&ast.Node{
		Func: &ast.Node{Kind: ast.KindName, Id: "Point"},
		Args: []*ast.Node{{Kind: ast.KindInt, Int: 1}, {Kind: ast.KindInt, Int: 2}},
	})
	out := f.Buf.String()
	if !strings.Contains(out, "call $rt_slotted_new") {
		t.Errorf("expected a slotted allocation for a class with __slots__, got:\n%s", out)
	}
	if !strings.Contains(out, "call $rt_class_find_method") {
		t.Errorf("expected a non-raising __init__ lookup, got:\n%s", out)
	}
	if !strings.Contains(out, "local.get $__self_tmp") {
		t.Errorf("expected the new instance to be threaded through, got:\n%s", out)
	}
}

func TestCompileGeneratorBodyPacksAndUnpacksParamsAcrossYield(t *testing.T) {
	c := NewCompiler()
	enclosing := &FuncCtx{C: c, Scope: analysis.AnalyzeFunction(nil, nil), Buf: NewBuffer()}
	sig, scope := c.compileFunctionBody("counting",
		[]ast.Param{{Name: "n"}},
		[]*ast.Node{{
			Kind:  ast.KindExprStmt,
			Value: &ast.Node{Kind: ast.KindYield, Value: &ast.Node{Kind: ast.KindName, Id: "n"}},
		}},
		enclosing)
	if !scope.IsGenerator {
		t.Fatal("a body containing yield should be detected as a generator")
	}
	if sig.IsGenerator != true {
		t.Errorf("FuncSig.IsGenerator = false, want true")
	}
	var wrapper, body string
	for _, fn := range c.Out {
		if fn.Name == "counting" {
			wrapper = fn.Body
		}
		if fn.Name == "counting_body" {
			body = fn.Body
		}
	}
	if !strings.Contains(wrapper, "call $rt_make_generator") {
		t.Errorf("expected the wrapper to construct a Generator, got:\n%s", wrapper)
	}
	if !strings.Contains(body, "call $rt_gen_env") || !strings.Contains(body, "call $rt_pair_head") {
		t.Errorf("expected the body to restore env and unpack saved params at entry, got:\n%s", body)
	}
	if !strings.Contains(body, "call $rt_gen_pack_locals") {
		t.Errorf("expected the yield point to re-pack locals before suspending, got:\n%s", body)
	}
}

func TestMatchNamePatternBindsAndFallsThrough(t *testing.T) {
	f := newTestFuncCtx()
	f.emitMatch(&ast.Node{
		Kind:    ast.KindMatch,
		Subject: &ast.Node{Kind: ast.KindInt, Int: 1},
		Cases: []ast.MatchCase{
			{Pattern: &ast.Node{Kind: ast.KindPatternName, PatName: "n"}, Body: []*ast.Node{{Kind: ast.KindPass}}},
		},
	})
	out := f.Buf.String()
	if !strings.Contains(out, "local.set $n") {
		t.Errorf("expected a name-pattern bind to $n, got:\n%s", out)
	}
}
