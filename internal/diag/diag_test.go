package diag

import (
	"testing"

	"pywasmc/internal/ast"
)

func TestBagAccumulates(t *testing.T) {
	var b Bag
	if b.HasErrors() {
		t.Fatal("HasErrors() = true on empty bag")
	}
	b.Errorf(ast.Pos{Line: 3, Col: 5}, "unexpected %s", "token")
	b.Errorf(ast.Pos{}, "no position")

	if !b.HasErrors() {
		t.Fatal("HasErrors() = false after Errorf")
	}
	errs := b.Errors()
	if len(errs) != 2 {
		t.Fatalf("len(Errors()) = %d, want 2", len(errs))
	}
	if errs[0].Error() != "3:5: unexpected token" {
		t.Errorf("errs[0].Error() = %q", errs[0].Error())
	}
	if errs[1].Error() != "no position" {
		t.Errorf("errs[1].Error() = %q", errs[1].Error())
	}
}
