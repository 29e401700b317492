package linker

import (
	"fmt"
	"io"
	"os"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// CopyLinker deploys mods by copying files
type CopyLinker struct{}

// NewCopy creates a new copy linker
func NewCopy() *CopyLinker {
	return &CopyLinker{}
}

// Deploy copies src to dst
func (l *CopyLinker) Deploy(src, dst string) error {
	return replace(dst, func(tmp string) (err error) {
		srcFile, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("opening source: %w", err)
		}
		defer srcFile.Close()

		dstFile, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("creating destination: %w", err)
		}
		defer func() {
			if cerr := dstFile.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("closing destination: %w", cerr)
			}
		}()

		if _, err := io.Copy(dstFile, srcFile); err != nil {
			return fmt.Errorf("copying file: %w", err)
		}
		return nil
	})
}

// Method returns the link method
func (l *CopyLinker) Method() domain.LinkMethod {
	return domain.LinkCopy
}
