package ld

import (
	"fmt"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
)

// Identity is the stamped module name and version the assembler writes into
// a custom WAT section (as a comment, since wat2wasm has no custom-section
// syntax of its own) for downstream tooling to read without re-parsing the
// whole module.
type Identity struct {
	Path    string
	Version string
}

// ValidateIdentity checks the -module and -version flags the same way the
// Go toolchain checks an import path and a pseudo-version: module.CheckPath
// rejects anything that couldn't round-trip through a module cache, and
// semver.IsValid rejects a version string that isn't a real semver tag.
func ValidateIdentity(id Identity) error {
	if id.Path == "" {
		return nil
	}
	if err := module.CheckPath(id.Path); err != nil {
		return fmt.Errorf("invalid -module %q: %w", id.Path, err)
	}
	if id.Version != "" && !semver.IsValid(id.Version) {
		return fmt.Errorf("invalid -version %q: not a semantic version", id.Version)
	}
	return nil
}

// IdentityComment renders the identity as a leading WAT comment line,
// stamped at the top of the assembled module.
func IdentityComment(id Identity) string {
	if id.Path == "" {
		return ""
	}
	if id.Version == "" {
		return fmt.Sprintf(";; module %s\n", id.Path)
	}
	return fmt.Sprintf(";; module %s@%s\n", id.Path, id.Version)
}
