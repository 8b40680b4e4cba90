package ld

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pywasmc/internal/codegen"
	"pywasmc/internal/codegen/target"
)

func TestAssembleOrdersFunctionsByName(t *testing.T) {
	m := Module{
		Name: "demo",
		Functions: []codegen.Function{
			{Name: "zebra", Body: "(func $fn_zebra)"},
			{Name: "apple", Body: "(func $fn_apple)"},
		},
	}
	out, err := Assemble(m, target.Lookup("full"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	appleAt := strings.Index(out, "(func $fn_apple)")
	zebraAt := strings.Index(out, "(func $fn_zebra)")
	if appleAt < 0 || zebraAt < 0 {
		t.Fatalf("expected both function bodies present, got:\n%s", out)
	}
	if appleAt > zebraAt {
		t.Errorf("expected apple to sort before zebra in the assembled module")
	}
}

func TestAssembleIsDeterministicAcrossRuns(t *testing.T) {
	m := Module{
		Name: "demo",
		Functions: []codegen.Function{
			{Name: "b", Body: "(func $fn_b)"},
			{Name: "a", Body: "(func $fn_a)"},
		},
	}
	out1, err := Assemble(m, target.Lookup("full"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out2, err := Assemble(m, target.Lookup("full"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if out1 != out2 {
		t.Error("two Assemble calls over identical input produced different output")
	}
}

func TestAssembleWritesStartExport(t *testing.T) {
	m := Module{Name: "demo", MainFunc: "___main__"}
	out, err := Assemble(m, target.Lookup("full"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !strings.Contains(out, "(start $_start)") {
		t.Errorf("expected a (start $_start) clause, got:\n%s", out)
	}
	if !strings.Contains(out, "call $fn____main__") {
		t.Errorf("expected _start to call the main function, got:\n%s", out)
	}
}

func TestAssembleStampsIdentityComment(t *testing.T) {
	m := Module{Name: "demo", Identity: Identity{Path: "example.com/demo", Version: "v1.2.3"}}
	out, err := Assemble(m, target.Lookup("full"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !strings.HasPrefix(out, ";; module example.com/demo@v1.2.3") {
		t.Errorf("expected a leading identity comment, got:\n%s", out[:60])
	}
}

func TestValidateIdentity(t *testing.T) {
	cases := []struct {
		id      Identity
		wantErr bool
	}{
		{Identity{}, false},
		{Identity{Path: "example.com/demo", Version: "v1.0.0"}, false},
		{Identity{Path: "not a valid path!!"}, true},
		{Identity{Path: "example.com/demo", Version: "not-semver"}, true},
	}
	for _, c := range cases {
		err := ValidateIdentity(c.id)
		if (err != nil) != c.wantErr {
			t.Errorf("ValidateIdentity(%+v) error = %v, wantErr %v", c.id, err, c.wantErr)
		}
	}
}

func TestPhaseTimerWriteProfile(t *testing.T) {
	var timer PhaseTimer
	timer.Record("analyze", 10*time.Millisecond)
	timer.Record("codegen", 25*time.Millisecond)
	var buf bytes.Buffer
	if err := timer.WriteProfile(&buf); err != nil {
		t.Fatalf("WriteProfile: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected a non-empty serialized profile")
	}
}
