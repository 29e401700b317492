package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"runtime"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

type versionJSON struct {
	Libraries []library `json:"libraries"`
}

type library struct {
	Name      string `json:"name"`
	Downloads struct {
		Artifact *artifact `json:"artifact"`
	} `json:"downloads"`
	Rules []rule `json:"rules"`
}

type artifact struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type rule struct {
	Action string `json:"action"`
	OS     *struct {
		Name string `json:"name"`
	} `json:"os"`
}

// ParseLibraries reads the libraries of a Minecraft version JSON for the running OS.
// Each artifact is placed at libraries/<path>.
func ParseLibraries(r io.Reader) (*domain.AssetIndex, error) {
	return ParseLibrariesFor(r, osName(runtime.GOOS))
}

// ParseLibrariesFor is ParseLibraries for the given launcher OS name ("linux", "osx", "windows")
func ParseLibrariesFor(r io.Reader, osName string) (*domain.AssetIndex, error) {
	var doc versionJSON
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parsing libraries: %v", domain.ErrInvalidConfig, err)
	}

	index := domain.NewAssetIndex()
	for _, lib := range doc.Libraries {
		a := lib.Downloads.Artifact
		if a == nil || !allowed(lib.Rules, osName) {
			continue
		}
		if a.URL == "" {
			// Provided by the installer, nothing to download
			continue
		}

		hash := strings.ToLower(a.SHA1)
		if hash != "" && !isSHA1(hash) {
			return nil, fmt.Errorf("%w: library %s has invalid sha1 %q", domain.ErrInvalidConfig, lib.Name, a.SHA1)
		}
		name, err := cleanName(a.Path)
		if err != nil {
			return nil, err
		}

		localPath := path.Join("libraries", name)
		if _, ok := index.Get(localPath); ok {
			continue
		}
		if err := index.Add(domain.AssetDownloadable{URL: a.URL, LocalPath: localPath, Hash: hash, Size: a.Size}); err != nil {
			return nil, err
		}
	}

	return index, nil
}

// allowed applies launcher rules: without rules a library is always used, otherwise the
// last matching rule decides and nothing matching means disallowed
func allowed(rules []rule, osName string) bool {
	if len(rules) == 0 {
		return true
	}
	ok := false
	for _, r := range rules {
		if r.OS != nil && r.OS.Name != osName {
			continue
		}
		ok = r.Action == "allow"
	}
	return ok
}

func osName(goos string) string {
	switch goos {
	case "darwin":
		return "osx"
	default:
		return goos
	}
}
