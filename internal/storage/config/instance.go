package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"

	"gopkg.in/yaml.v3"
)

// Instance describes one game directory to install and keep updated
type Instance struct {
	Path string `yaml:"-"` // The instance file this was loaded from

	Dir            string           `yaml:"dir"`
	ForgeVersion   string           `yaml:"forge_version"`
	VanillaVersion string           `yaml:"vanilla_version,omitempty"`
	Generation     string           `yaml:"generation,omitempty"`
	NoGui          *bool            `yaml:"no_gui,omitempty"`
	FileDeleter    *bool            `yaml:"file_deleter,omitempty"`
	AssetIndex     string           `yaml:"asset_index,omitempty"`   // Path or URL of an asset index JSON
	Libraries      string           `yaml:"libraries,omitempty"`     // Path or URL of a libraries catalog JSON
	ModsManifest   string           `yaml:"mods_manifest,omitempty"` // Path or URL of a mods JSON
	Mods           []ModConfig      `yaml:"mods,omitempty"`
	CurseMods      []CurseModConfig `yaml:"curse_mods,omitempty"`
}

// ModConfig is the YAML representation of a mod
type ModConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	SHA1 string `yaml:"sha1,omitempty"`
	Size int64  `yaml:"size,omitempty"`
}

// CurseModConfig is the YAML representation of a CurseForge file reference
type CurseModConfig struct {
	ProjectID int `yaml:"project_id"`
	FileID    int `yaml:"file_id"`
}

// LoadInstance reads and validates an instance file.
// Relative paths inside the file are resolved against the file's directory.
func LoadInstance(path string) (*Instance, error) {
	path, err := ParseInstancePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading instance: %w", err)
	}

	var inst Instance
	if err := yaml.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("%w: parsing instance %s: %v", domain.ErrInvalidConfig, path, err)
	}
	inst.Path = path

	if strings.TrimSpace(inst.Dir) == "" {
		return nil, fmt.Errorf("%w: instance %s has no dir", domain.ErrInvalidConfig, path)
	}
	if strings.TrimSpace(inst.ForgeVersion) == "" {
		return nil, fmt.Errorf("%w: instance %s has no forge_version", domain.ErrInvalidConfig, path)
	}

	base := filepath.Dir(path)
	inst.Dir = resolve(base, inst.Dir)
	inst.AssetIndex = resolveLocation(base, inst.AssetIndex)
	inst.Libraries = resolveLocation(base, inst.Libraries)
	inst.ModsManifest = resolveLocation(base, inst.ModsManifest)

	for i, m := range inst.Mods {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: mod %d has no name", domain.ErrInvalidConfig, i+1)
		}
	}

	return &inst, nil
}

// Save writes the instance back to its file, or to path when Path is empty
func (inst *Instance) Save(path string) error {
	if path == "" {
		path = inst.Path
	}
	if path == "" {
		return errors.New("instance has no path")
	}

	data, err := yaml.Marshal(inst)
	if err != nil {
		return fmt.Errorf("marshaling instance: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating instance dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing instance: %w", err)
	}
	return nil
}

// VersionConfig converts the instance into the input of domain.NewVersionSpec.
// extraMods are appended after the inline mods, typically from ModsManifest.
func (inst *Instance) VersionConfig(mavenURL string, extraMods []domain.Mod, extraCurse []domain.CurseModInfo) (domain.VersionConfig, error) {
	gen, err := domain.ParseGeneration(inst.Generation)
	if err != nil {
		return domain.VersionConfig{}, err
	}

	mods := make([]domain.Mod, 0, len(inst.Mods)+len(extraMods))
	for _, m := range inst.Mods {
		mods = append(mods, domain.Mod{
			Name:        m.Name,
			DownloadURL: m.URL,
			SHA1:        m.SHA1,
			Size:        m.Size,
			SourceID:    domain.SourceDirect,
		})
	}
	mods = append(mods, extraMods...)

	curse := make([]domain.CurseModInfo, 0, len(inst.CurseMods)+len(extraCurse))
	for _, c := range inst.CurseMods {
		curse = append(curse, domain.CurseModInfo{ProjectID: c.ProjectID, FileID: c.FileID})
	}
	curse = append(curse, extraCurse...)

	return domain.VersionConfig{
		ForgeVersion:   inst.ForgeVersion,
		VanillaVersion: inst.VanillaVersion,
		Generation:     gen,
		MavenURL:       mavenURL,
		NoGui:          inst.NoGui,
		FileDeleter:    inst.FileDeleter,
		Mods:           mods,
		CurseMods:      curse,
	}, nil
}

func resolve(base, path string) string {
	path = expandPath(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// resolveLocation resolves a local path and leaves http(s) URLs alone
func resolveLocation(base, loc string) string {
	if loc == "" || IsURL(loc) {
		return loc
	}
	return resolve(base, loc)
}

// IsURL reports whether loc is an http(s) URL rather than a file path
func IsURL(loc string) bool {
	u, err := url.Parse(loc)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
