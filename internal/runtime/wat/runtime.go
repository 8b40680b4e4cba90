// Package wat embeds the hand-written WAT runtime library that every
// compiled module links against: the tagged-value struct types and the
// rt_* helper functions codegen emits calls to.
package wat

import "embed"

//go:embed values.wat numerics.wat collections.wat strings.wat objects.wat exceptions.wat generators.wat hostbridge.wat
var files embed.FS

// Order is the fixed concatenation order for the runtime sources: later
// files may reference types and globals declared in earlier ones (objects
// depends on collections' $rt_dict and $rt_arr; generators and exceptions
// depend on values' $rt_any; hostbridge goes last since it declares memory).
var Order = []string{
	"values.wat",
	"numerics.wat",
	"collections.wat",
	"strings.wat",
	"objects.wat",
	"exceptions.wat",
	"generators.wat",
	"hostbridge.wat",
}

// Source concatenates the runtime library in link order.
func Source() (string, error) {
	var out []byte
	for _, name := range Order {
		b, err := files.ReadFile(name)
		if err != nil {
			return "", err
		}
		out = append(out, b...)
		out = append(out, '\n')
	}
	return string(out), nil
}
