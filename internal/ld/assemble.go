// Package ld assembles the pieces internal/codegen emits — the runtime
// library, the compiled user functions, and their free-variable/closure
// metadata — into one linear WAT module text: imports, types, globals, the
// function table, every function body, and the module's start function.
//
// Grounded on cmd/link/internal/ld's typelink pass: build one deterministic,
// reachable-symbol table (there a sorted-by-type-string typelink/itablink
// array, here the indirect-call function table) from whatever codegen
// marked reachable, rather than emitting in discovery order.
package ld

import (
	"fmt"
	"sort"
	"strings"

	"pywasmc/internal/codegen"
	"pywasmc/internal/codegen/target"
	"pywasmc/internal/runtime/wat"
)

// Module is everything internal/ld needs from a finished compilation to
// assemble a WAT text module.
type Module struct {
	Name      string
	Identity  Identity
	Functions []codegen.Function
	// InitStrings is the full "(func $rt_init_strings ...)" WAT text built
	// from the compiler's final string table (see cmd/pywasmc's
	// buildInitStrings) — emitted once, before $_start calls it.
	InitStrings string
	MainFunc    string // name of the function to invoke from the $_start start function
}

// Assemble stitches the runtime library and the compiled module together
// into a single WAT text, with a function table sized and ordered
// deterministically by function name (mirroring typelink's sort-by-string
// key so two compiles of the same source byte-for-byte match).
func Assemble(m Module, tgt *target.Target) (string, error) {
	runtime, err := wat.Source()
	if err != nil {
		return "", fmt.Errorf("loading runtime library: %w", err)
	}

	var b strings.Builder
	b.WriteString(IdentityComment(m.Identity))
	fmt.Fprintf(&b, "(module $%s\n", sanitizeModName(m.Name))
	b.WriteString(runtime)
	b.WriteString("\n;; ---- compiled user functions ----\n")

	sorted := make([]codegen.Function, len(m.Functions))
	copy(sorted, m.Functions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, fn := range sorted {
		b.WriteString(fn.Body)
		b.WriteByte('\n')
	}

	if m.InitStrings != "" {
		b.WriteString(m.InitStrings)
		b.WriteByte('\n')
	}

	if tgt != nil && tgt.FuncTable != nil {
		tbuf := codegen.NewBuffer()
		tgt.FuncTable(tbuf, len(codegen.BuiltinFuncNames)+len(sorted))
		b.WriteString(tbuf.String())
	}
	b.WriteString(elemSection(sorted))

	if m.MainFunc != "" {
		fmt.Fprintf(&b, "(func $_start\n  (call $rt_init_strings)\n  (call $rt_init)\n  (call $fn_%s (ref.null $rt_any))\n  drop)\n", sanitize(m.MainFunc))
		b.WriteString("(start $_start)\n")
	}

	b.WriteString(")\n")
	return b.String(), nil
}

// elemSection emits the table's element segment: the builtin-function
// wrappers first, reserving indices 0..len(BuiltinFuncNames)-1 (what
// Compiler.NewCompiler reserves via NextIdx), then one funcref per compiled
// user function in the same deterministic order used to size the table —
// index i past the builtin prefix is user function i in this list, and
// that index is what $func_idx in a Closure value refers to.
func elemSection(fns []codegen.Function) string {
	var b strings.Builder
	b.WriteString("(elem (i32.const 0)")
	for _, name := range codegen.BuiltinFuncNames {
		fmt.Fprintf(&b, " $fn___builtin_%s", name)
	}
	for _, fn := range fns {
		fmt.Fprintf(&b, " $fn_%s", fn.Name)
	}
	b.WriteString(")\n")
	return b.String()
}

func sanitizeModName(s string) string {
	return sanitize(s)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
