package target

// exnTryTable lowers a try/catch region to the exception-handling
// proposal's try_table instruction, catching the named tag and falling
// through to body's own catch-arm emission (the caller has already decided
// which WAT it wants inside).
func exnTryTable(buf Emitter, tag string, body func()) {
	buf.Open("try_table (catch %s 0)", tag)
	body()
	buf.Close()
}
