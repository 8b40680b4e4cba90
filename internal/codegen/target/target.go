// Package target holds the small per-capability emission knobs that vary
// with which optional WASM proposals the host engine has turned on. Mirrors
// the per-architecture Init(arch *gc.Arch) pattern: each capability file
// populates function-pointer fields on a shared Target value rather than
// branching on a capability flag at every call site.
package target

// Target collects the emission choices pywasmc makes once per compilation,
// decided by which of the three proposals (gc, exception-handling,
// reference-types) the requested engine profile enables.
type Target struct {
	Name string

	// StructType emits the WAT type-section entry for a GC struct with the
	// given field list, or a linear-memory layout comment if GC is off.
	StructType func(buf Emitter, name string, fields []Field)

	// TryCatch emits the try/catch wrapper around body, using try_table with
	// catch clauses on engines with exception-handling, or delegating to a
	// host-import trampoline otherwise.
	TryCatch func(buf Emitter, tag string, body func())

	// FuncTable emits the module-level function table declaration sized for
	// n entries, as a native funcref table on engines with reference-types,
	// or as an i32-indexed call_indirect table otherwise.
	FuncTable func(buf Emitter, n int)
}

// Emitter is the subset of *codegen.Buffer the target package depends on,
// kept narrow to avoid an import cycle with internal/codegen.
type Emitter interface {
	Emit(format string, args ...interface{})
	Open(format string, args ...interface{})
	Close()
}

// Field is one member of a GC struct type.
type Field struct {
	Name     string
	WatType  string
	Mutable  bool
}

var registry = map[string]*Target{}

func register(t *Target) { registry[t.Name] = t }

// Lookup returns the named target profile, or the "full" profile (every
// proposal enabled) if name is empty or unknown.
func Lookup(name string) *Target {
	if t, ok := registry[name]; ok {
		return t
	}
	return registry["full"]
}
