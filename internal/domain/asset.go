package domain

import (
	"fmt"
	"strings"
)

// AssetDownloadable describes one file of the base runtime (asset object or library)
type AssetDownloadable struct {
	URL       string
	LocalPath string // Relative to the install directory, slash separated
	Hash      string // Hex SHA-1
	Size      int64
}

// AssetGroup is a set of catalog entries sharing one content hash.
// Primary is the first entry seen; Aliases are the other paths with identical content.
type AssetGroup struct {
	Primary AssetDownloadable
	Aliases []AssetDownloadable
}

// AssetIndex maps local paths to downloadables, preserving insertion order
type AssetIndex struct {
	order   []string
	objects map[string]AssetDownloadable
}

// NewAssetIndex creates an empty index
func NewAssetIndex() *AssetIndex {
	return &AssetIndex{objects: make(map[string]AssetDownloadable)}
}

// Add inserts an entry. Paths must be unique.
func (a *AssetIndex) Add(d AssetDownloadable) error {
	if _, ok := a.objects[d.LocalPath]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAsset, d.LocalPath)
	}
	a.order = append(a.order, d.LocalPath)
	a.objects[d.LocalPath] = d
	return nil
}

// Get returns the entry for a local path
func (a *AssetIndex) Get(localPath string) (AssetDownloadable, bool) {
	d, ok := a.objects[localPath]
	return d, ok
}

// Len returns the number of entries
func (a *AssetIndex) Len() int {
	return len(a.order)
}

// Objects returns every entry in insertion order
func (a *AssetIndex) Objects() []AssetDownloadable {
	out := make([]AssetDownloadable, 0, len(a.order))
	for _, p := range a.order {
		out = append(out, a.objects[p])
	}
	return out
}

// UniqueObjects groups entries by content hash so byte-identical assets are fetched once.
// Groups come back in order of first occurrence; hash comparison ignores case.
func (a *AssetIndex) UniqueObjects() []AssetGroup {
	var groups []AssetGroup
	byHash := make(map[string]int)

	for _, p := range a.order {
		d := a.objects[p]
		key := strings.ToLower(d.Hash)
		if idx, ok := byHash[key]; ok && key != "" {
			groups[idx].Aliases = append(groups[idx].Aliases, d)
			continue
		}
		byHash[key] = len(groups)
		groups = append(groups, AssetGroup{Primary: d})
	}

	return groups
}
