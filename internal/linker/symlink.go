package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// SymlinkLinker deploys mods using symbolic links into the cache
type SymlinkLinker struct{}

// NewSymlink creates a new symlink linker
func NewSymlink() *SymlinkLinker {
	return &SymlinkLinker{}
}

// Deploy creates a symlink at dst pointing to the absolute path of src
func (l *SymlinkLinker) Deploy(src, dst string) error {
	target, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", src, err)
	}
	return replace(dst, func(tmp string) error {
		if err := os.Symlink(target, tmp); err != nil {
			return fmt.Errorf("creating symlink: %w", err)
		}
		return nil
	})
}

// Method returns the link method
func (l *SymlinkLinker) Method() domain.LinkMethod {
	return domain.LinkSymlink
}
