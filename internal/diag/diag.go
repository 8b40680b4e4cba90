// Package diag collects and reports compiler diagnostics.
//
// Grounded on compile/internal/types.Fatalf's function-variable indirection
// and cmd/asm/main.go's accumulate-then-report ok/diag pattern.
package diag

import (
	"fmt"
	"log"

	"pywasmc/internal/ast"
	"pywasmc/internal/types"
)

func init() {
	types.Fatalf = Fatalf
}

// Error is one recoverable diagnostic: an unimplemented AST shape or a
// static check that should abort compilation without continuing, but
// without crashing the process the way Fatalf does.
type Error struct {
	Pos     ast.Pos
	Message string
}

func (e *Error) Error() string {
	if e.Pos.Line != 0 {
		return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Col, e.Message)
	}
	return e.Message
}

// Bag accumulates diagnostics across one compilation, mirroring cmd/asm's
// diag bool plus failedFile bookkeeping but keyed per-error instead of a
// single flag.
type Bag struct {
	errs []*Error
}

// Errorf appends a non-fatal error at pos.
func (b *Bag) Errorf(pos ast.Pos, format string, args ...interface{}) {
	b.errs = append(b.errs, &Error{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic was recorded.
func (b *Bag) HasErrors() bool { return len(b.errs) > 0 }

// Errors returns all recorded diagnostics in recording order.
func (b *Bag) Errors() []*Error { return b.errs }

// Report logs every recorded diagnostic via the package logger, the way
// cmd/asm logs "assembly of %s failed" once parsing finishes.
func (b *Bag) Report() {
	for _, e := range b.errs {
		log.Print(e.Error())
	}
}

// Fatalf aborts compilation immediately for an internal invariant
// violation — a malformed AST shape the analyzer or codegen cannot make
// sense of. Unlike Bag.Errorf, this never returns.
func Fatalf(format string, args ...interface{}) {
	log.Fatalf("pywasmc: fatal: "+format, args...)
}
