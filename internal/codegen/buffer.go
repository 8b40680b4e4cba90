package codegen

import (
	"fmt"
	"strings"
)

// Buffer accumulates the WAT text of one function body, tracking nesting
// depth so emitted S-expressions stay readably indented. This plays the
// role compile/internal/riscv64's *gc.Progs plays for a real architecture
// backend — an incremental per-function sink that codegen appends to one
// instruction (here, one WAT form) at a time — except the sink is text,
// since the output here is WAT source, not a relocatable object.
type Buffer struct {
	b     strings.Builder
	depth int
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Emit writes one already-formatted line, indented to the current depth.
func (b *Buffer) Emit(format string, args ...interface{}) {
	b.b.WriteString(strings.Repeat("  ", b.depth))
	fmt.Fprintf(&b.b, format, args...)
	b.b.WriteByte('\n')
}

// Open emits an opening form and increases indent for the forms that follow.
func (b *Buffer) Open(format string, args ...interface{}) {
	b.Emit(format, args...)
	b.depth++
}

// Close decreases indent and emits a closing parenthesis.
func (b *Buffer) Close() {
	b.depth--
	b.Emit(")")
}

// String returns the accumulated text.
func (b *Buffer) String() string { return b.b.String() }

// label produces a stable, human-legible WAT block/loop label.
func label(prefix string, n int) string {
	return fmt.Sprintf("$%s%d", prefix, n)
}
