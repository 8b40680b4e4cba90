package target

// gcFull assumes the WASM GC proposal: struct types get real (struct ...)
// type-section entries with typed, nullable-ref fields.
func init() {
	register(&Target{
		Name:       "full",
		StructType: gcStructType,
		TryCatch:   exnTryTable,
		FuncTable:  reftypesFuncTable,
	})
}

// gcStructType declares a struct as a subtype of $rt_any so every tagged
// value, slotted class instance included, shares one common reference type
// that ref.cast and (ref null $rt_any) parameters can narrow from.
func gcStructType(buf Emitter, name string, fields []Field) {
	buf.Open("type $%s (sub $rt_any (struct", name)
	for _, f := range fields {
		if f.Mutable {
			buf.Emit("(field $%s (mut %s))", f.Name, f.WatType)
		} else {
			buf.Emit("(field $%s %s)", f.Name, f.WatType)
		}
	}
	buf.Close()
}
