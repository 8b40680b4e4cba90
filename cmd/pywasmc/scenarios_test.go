package main

import (
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

// TestEndToEndScenarios compiles each testdata/scenarios.txtar entry through
// the full decode/analyze/codegen/assemble pipeline and checks the assembled
// WAT contains every line of its want.txt.
func TestEndToEndScenarios(t *testing.T) {
	ar, err := txtar.ParseFile("testdata/scenarios.txtar")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	scenarios := map[string]struct{ input, want []byte }{}
	for _, f := range ar.Files {
		dir, leaf, ok := strings.Cut(f.Name, "/")
		if !ok {
			continue
		}
		s := scenarios[dir]
		switch leaf {
		case "input.json":
			s.input = f.Data
		case "want.txt":
			s.want = f.Data
		}
		scenarios[dir] = s
	}
	if len(scenarios) == 0 {
		t.Fatal("no scenarios parsed from scenarios.txtar")
	}

	for name, s := range scenarios {
		t.Run(name, func(t *testing.T) {
			if len(s.input) == 0 {
				t.Fatal("missing input.json")
			}
			out, err := compileModule(s.input, "full")
			if err != nil {
				t.Fatalf("compileModule: %v", err)
			}
			for _, line := range strings.Split(strings.TrimSpace(string(s.want)), "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if !strings.Contains(out, line) {
					t.Errorf("assembled output missing expected fragment %q", line)
				}
			}
		})
	}
}
