package target

// reftypesFuncTable declares the module's indirect-call table as a native
// funcref table sized for n entries, available once the reference-types
// proposal is on (funcref as a first-class table element type, growable
// and settable from code rather than only patched at link time).
func reftypesFuncTable(buf Emitter, n int) {
	buf.Emit("table $functab %d %d funcref", n, n)
}
