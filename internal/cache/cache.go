// Package cache content-addresses compiled modules by the AST bytes and
// compiler version that produced them, so a repeat `pywasmc` invocation on
// unchanged source skips straight to the cached .wat output. Grounded on
// cmd/internal/buildid's build-ID-is-a-content-hash approach, substituting
// blake2b for the toolchain's own hash since this module already depends on
// golang.org/x/crypto for it.
package cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// ID is a content hash identifying one compiled module.
type ID string

// Sum hashes the AST bytes together with a version tag, so a compiler
// upgrade invalidates every cache entry without needing to walk and delete
// them individually.
func Sum(astBytes []byte, version string) ID {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write(astBytes)
	return ID(hex.EncodeToString(h.Sum(nil)))
}

// Dir is an on-disk cache rooted at a directory, one file per ID.
type Dir struct {
	Root string
}

func (d Dir) path(id ID) string {
	return filepath.Join(d.Root, string(id)+".wat")
}

// Get returns the cached WAT text for id, or ok=false on a miss.
func (d Dir) Get(id ID) (text string, ok bool) {
	b, err := os.ReadFile(d.path(id))
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Put writes text under id, creating the cache root if needed.
func (d Dir) Put(id ID, text string) error {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	tmp := d.path(id) + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return os.Rename(tmp, d.path(id))
}
