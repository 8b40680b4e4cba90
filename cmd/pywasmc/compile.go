package main

import (
	"fmt"
	"strings"

	"pywasmc/internal/analysis"
	"pywasmc/internal/ast"
	"pywasmc/internal/codegen"
	"pywasmc/internal/codegen/target"
	"pywasmc/internal/ld"
)

// bootstrapClassNames is interned first, in this exact order, so the
// indices $rt_init hardcodes (0..8) for the builtin exception hierarchy
// land where $rt_init_strings actually puts them regardless of what the
// user module itself interns.
var bootstrapClassNames = []string{
	"object", "Exception", "StopIteration", "AttributeError", "KeyError",
	"IndexError", "TypeError", "ValueError", "AssertionError",
}

// compileModule runs the same decode/analyze/codegen/assemble pipeline main
// drives from the CLI flags, exposed as a plain function so tests can drive
// it directly without going through os.Args and flag.Parse.
func compileModule(astBytes []byte, targetName string) (string, error) {
	return compileModuleWithIdentity(astBytes, targetName, ld.Identity{})
}

// compileModuleWithIdentity is compileModule plus a stamped module identity,
// the path main takes when -module/-version were supplied on the CLI.
func compileModuleWithIdentity(astBytes []byte, targetName string, identity ld.Identity) (string, error) {
	mod, err := ast.Decode(astBytes)
	if err != nil {
		return "", fmt.Errorf("parsing: %w", err)
	}
	scope := analysis.AnalyzeModule(mod.Body)

	c := codegen.NewCompiler()
	c.Target = target.Lookup(targetName)
	for _, name := range bootstrapClassNames {
		c.InternString(name)
	}

	fc := &codegen.FuncCtx{C: c, Scope: scope, Buf: codegen.NewBuffer()}
	fc.Buf.Open("(func $fn___main__ (param $env (ref null $rt_any)) (result (ref null $rt_any))")
	codegen.DeclareModuleLocals(fc, scope)
	fc.EmitModuleBody(mod.Body)
	fc.Buf.Emit("ref.null $rt_any")
	fc.Buf.Close()
	c.Out = append(c.Out, codegen.Function{Name: "___main__", Body: fc.Buf.String()})

	return ld.Assemble(ld.Module{
		Name:        mod.Name,
		Identity:    identity,
		Functions:   c.Out,
		InitStrings: buildInitStrings(c.Strings),
		MainFunc:    "___main__",
	}, c.Target)
}

// buildInitStrings renders $rt_init_strings: one interned-string literal
// per slot in the compiler's string table, in table order, so
// $rt_intern_string's offset operand indexes straight into it.
func buildInitStrings(strs []string) string {
	var b strings.Builder
	b.WriteString("(func $rt_init_strings\n")
	if len(strs) == 0 {
		b.WriteString("  (global.set $rt_string_table (array.new $rt_arr (ref.null $rt_any) (i32.const 0)))\n")
		b.WriteString(")\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  (global.set $rt_string_table (array.new_fixed $rt_arr %d\n", len(strs))
	for _, s := range strs {
		b.WriteString("    (struct.new $rt_string (i32.const 5) ")
		b.WriteString(literalBytesArray(s))
		b.WriteString(")\n")
	}
	b.WriteString("  ))\n")
	b.WriteString(")\n")
	return b.String()
}

func literalBytesArray(s string) string {
	raw := []byte(s)
	if len(raw) == 0 {
		return "(array.new $rt_bytes (i32.const 0) (i32.const 0))"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "(array.new_fixed $rt_bytes %d", len(raw))
	for _, by := range raw {
		fmt.Fprintf(&b, " (i32.const %d)", by)
	}
	b.WriteString(")")
	return b.String()
}
