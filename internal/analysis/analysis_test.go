package analysis

import (
	"testing"

	"pywasmc/internal/ast"
)

func TestAnalyzeFunctionLocalsAndParams(t *testing.T) {
	// def f(x):
	//     y = x + 1
	//     return y
	body := []*ast.Node{
		{Kind: ast.KindAssign,
			Targets: []*ast.Node{{Kind: ast.KindName, Id: "y"}},
			Value: &ast.Node{Kind: ast.KindBinOp, Op: "+",
				Left: &ast.Node{Kind: ast.KindName, Id: "x"}, Right: &ast.Node{Kind: ast.KindInt, Int: 1}}},
		{Kind: ast.KindReturn, Value: &ast.Node{Kind: ast.KindName, Id: "y"}},
	}
	s := AnalyzeFunction([]ast.Param{{Name: "x"}}, body)
	if !s.Params["x"] {
		t.Error("x should be a param")
	}
	if !s.Locals["y"] {
		t.Error("y should be a local")
	}
	if s.IsGenerator {
		t.Error("plain function should not be detected as a generator")
	}
}

func TestAnalyzeFunctionFreeVars(t *testing.T) {
	// def outer():
	//     n = 0
	//     def inner():
	//         return n
	//     return inner
	inner := &ast.Node{
		Kind: ast.KindFunctionDef, Name: "inner",
		Body: []*ast.Node{{Kind: ast.KindReturn, Value: &ast.Node{Kind: ast.KindName, Id: "n"}}},
	}
	body := []*ast.Node{
		{Kind: ast.KindAssign, Targets: []*ast.Node{{Kind: ast.KindName, Id: "n"}}, Value: &ast.Node{Kind: ast.KindInt, Int: 0}},
		inner,
		{Kind: ast.KindReturn, Value: &ast.Node{Kind: ast.KindName, Id: "inner"}},
	}
	s := AnalyzeFunction(nil, body)
	if !s.Locals["n"] {
		t.Error("n should be a local of outer")
	}
	// inner's own analysis (computed inline during free-var collection)
	// should surface n as free via outer's FreeVars bookkeeping once outer
	// itself is captured by something enclosing it; here we only check
	// that outer's locals aren't mistakenly marked free within outer.
	if s.FreeVars["n"] {
		t.Error("n is bound in outer's own scope and must not be free there")
	}
}

func TestAnalyzeGeneratorDetection(t *testing.T) {
	body := []*ast.Node{
		{Kind: ast.KindExprStmt, Value: &ast.Node{Kind: ast.KindYield, Value: &ast.Node{Kind: ast.KindInt, Int: 1}}},
	}
	s := AnalyzeFunction(nil, body)
	if !s.IsGenerator {
		t.Error("function containing a yield should be detected as a generator")
	}
}

func TestAnalyzeGeneratorDoesNotCrossNestedDef(t *testing.T) {
	nested := &ast.Node{Kind: ast.KindFunctionDef, Name: "g", Body: []*ast.Node{
		{Kind: ast.KindExprStmt, Value: &ast.Node{Kind: ast.KindYield}},
	}}
	s := AnalyzeFunction(nil, []*ast.Node{nested})
	if s.IsGenerator {
		t.Error("a yield inside a nested def must not make the outer function a generator")
	}
}

func TestAnalyzeGlobalDeclaration(t *testing.T) {
	body := []*ast.Node{
		{Kind: ast.KindGlobal, Idents: []string{"counter"}},
		{Kind: ast.KindAssign, Targets: []*ast.Node{{Kind: ast.KindName, Id: "counter"}}, Value: &ast.Node{Kind: ast.KindInt, Int: 1}},
	}
	s := AnalyzeFunction(nil, body)
	if !s.Globals["counter"] {
		t.Error("counter should be recorded as global")
	}
	if s.Locals["counter"] {
		t.Error("a global-declared name must not also become a local")
	}
}

func TestComprehensionLocalsNumberedInOrder(t *testing.T) {
	// [x for x in xs]
	comp := &ast.Node{
		Kind: ast.KindListComp,
		Elt:  &ast.Node{Kind: ast.KindName, Id: "x"},
		Generators: []ast.Comprehension{
			{Target: &ast.Node{Kind: ast.KindName, Id: "x"}, Iter: &ast.Node{Kind: ast.KindName, Id: "xs"}},
		},
	}
	body := []*ast.Node{{Kind: ast.KindExprStmt, Value: comp}}
	s := AnalyzeFunction(nil, body)
	if len(s.Comps) != 1 {
		t.Fatalf("len(Comps) = %d, want 1", len(s.Comps))
	}
	if s.Comps[0].Index != 0 {
		t.Errorf("first comprehension Index = %d, want 0", s.Comps[0].Index)
	}
	if !s.Locals[s.Comps[0].Accumulator] {
		t.Error("comprehension accumulator should be registered as a local")
	}
}
