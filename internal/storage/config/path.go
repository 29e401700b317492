// Package config provides the global settings file and instance file parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// ParseInstancePath validates an instance file path and returns it made absolute.
// It returns an error wrapping domain.ErrInvalidConfig if:
//   - The path is empty
//   - The path contains parent directory traversal (..)
//   - The file does not exist
//   - The path points to a directory instead of a file
//   - The file does not have a .yaml or .yml extension
func ParseInstancePath(path string) (string, error) {
	if path == "" {
		return "", invalid("instance path cannot be empty")
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", invalid("instance path contains invalid traversal")
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving instance path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", invalid("instance file does not exist")
		}
		return "", err
	}

	if info.IsDir() {
		return "", invalid("instance path is a directory, not a file")
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if ext != ".yaml" && ext != ".yml" {
		return "", invalid("instance file must have .yaml or .yml extension")
	}

	return abs, nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, msg)
}
