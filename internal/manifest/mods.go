package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// ModList is the mods JSON document:
//
//	{"mods": [{"name": "...", "downloadURL": "...", "sha1": "...", "size": 1}],
//	 "curseFiles": [{"projectID": 1, "fileID": 2}]}
type ModList struct {
	Mods       []domain.Mod          `json:"mods"`
	CurseFiles []domain.CurseModInfo `json:"curseFiles"`
}

// ParseMods decodes and validates a mods JSON document
func ParseMods(r io.Reader) (*ModList, error) {
	var list ModList
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: parsing mods manifest: %v", domain.ErrInvalidConfig, err)
	}

	for i := range list.Mods {
		mod := &list.Mods[i]
		mod.Name = strings.TrimSpace(mod.Name)
		mod.SHA1 = strings.ToLower(strings.TrimSpace(mod.SHA1))
		mod.SourceID = domain.SourceDirect

		if mod.Name == "" {
			return nil, fmt.Errorf("%w: mod %d has no name", domain.ErrInvalidConfig, i+1)
		}
		if strings.ContainsAny(mod.Name, `/\`) {
			return nil, fmt.Errorf("%w: mod name %q contains a path separator", domain.ErrInvalidConfig, mod.Name)
		}
		if mod.DownloadURL == "" {
			return nil, fmt.Errorf("%w: mod %s has no downloadURL", domain.ErrInvalidConfig, mod.Name)
		}
		if mod.SHA1 != "" && !isSHA1(mod.SHA1) {
			return nil, fmt.Errorf("%w: mod %s has invalid sha1 %q", domain.ErrInvalidConfig, mod.Name, mod.SHA1)
		}
		if mod.Size < 0 {
			return nil, fmt.Errorf("%w: mod %s has negative size", domain.ErrInvalidConfig, mod.Name)
		}
	}

	for _, c := range list.CurseFiles {
		if c.ProjectID <= 0 || c.FileID <= 0 {
			return nil, fmt.Errorf("%w: invalid curse file %d/%d", domain.ErrInvalidConfig, c.ProjectID, c.FileID)
		}
	}

	return &list, nil
}

func isSHA1(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
