// Package linker places cached mod files into a mods directory.
package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// Linker deploys a cached file to its place in the mods directory.
// Deploy replaces dst atomically: readers see either the old file or the new one.
type Linker interface {
	Deploy(src, dst string) error
	Method() domain.LinkMethod
}

// New creates a linker for the given method
func New(method domain.LinkMethod) Linker {
	switch method {
	case domain.LinkHardlink:
		return NewHardlink()
	case domain.LinkSymlink:
		return NewSymlink()
	default:
		return NewCopy()
	}
}

// replace runs create against a temporary name next to dst, then renames it over dst
func replace(dst string, create func(tmp string) error) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	tmp := dst + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing leftover %s: %w", tmp, err)
	}
	if err := create(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
