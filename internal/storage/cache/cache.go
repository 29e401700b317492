// Package cache stores downloaded mod files keyed by content hash.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// Cache manages the central mod file cache.
// Files with a known SHA-1 live under objects/<hh>/<sha1>; files without one are
// keyed by their download URL under urls/<hh>/<sha1(url)>/<name>.
type Cache struct {
	basePath string
}

// New creates a new cache manager
func New(basePath string) *Cache {
	return &Cache{basePath: basePath}
}

// BasePath returns the cache root directory
func (c *Cache) BasePath() string {
	return c.basePath
}

// ObjectPath returns where content with the given SHA-1 is stored
func (c *Cache) ObjectPath(hash string) string {
	hash = strings.ToLower(hash)
	return filepath.Join(c.basePath, "objects", shard(hash), hash)
}

// URLPath returns where an unhashed download of url named name is stored
func (c *Cache) URLPath(url, name string) string {
	sum := sha1.Sum([]byte(url))
	key := hex.EncodeToString(sum[:])
	return filepath.Join(c.basePath, "urls", shard(key), key, filepath.Base(name))
}

// ModPath returns the cache location of a mod's file
func (c *Cache) ModPath(mod domain.Mod) string {
	if mod.SHA1 != "" {
		return c.ObjectPath(mod.SHA1)
	}
	return c.URLPath(mod.DownloadURL, mod.FileName())
}

// Exists checks if a cached file is present
func (c *Cache) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes a cached file
func (c *Cache) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting cached file: %w", err)
	}
	return nil
}

// Size returns the number of cached files and their total size
func (c *Cache) Size() (files int, bytes int64, err error) {
	err = filepath.WalkDir(c.basePath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		bytes += info.Size()
		return nil
	})

	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("calculating cache size: %w", err)
	}

	return files, bytes, nil
}

func shard(key string) string {
	if len(key) < 2 {
		return "00"
	}
	return key[:2]
}
