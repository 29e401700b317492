package linker

import (
	"fmt"
	"os"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// HardlinkLinker deploys mods using hard links into the cache.
// The cache and the mods directory must share a filesystem.
type HardlinkLinker struct{}

// NewHardlink creates a new hardlink linker
func NewHardlink() *HardlinkLinker {
	return &HardlinkLinker{}
}

// Deploy creates a hard link from src to dst
func (l *HardlinkLinker) Deploy(src, dst string) error {
	return replace(dst, func(tmp string) error {
		if err := os.Link(src, tmp); err != nil {
			return fmt.Errorf("creating hardlink: %w", err)
		}
		return nil
	})
}

// Method returns the link method
func (l *HardlinkLinker) Method() domain.LinkMethod {
	return domain.LinkHardlink
}
