package domain

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	// DefaultMavenURL hosts the Forge installers
	DefaultMavenURL = "https://files.minecraftforge.net/maven"
	// DefaultPatchesURL serves the compatibility overlay applied to new-generation installers
	DefaultPatchesURL = "https://flowarg.github.io/minecraft/launcher/patches.jar"
)

// Generation selects the installer protocol of a Forge version
type Generation int

const (
	GenerationNew Generation = iota // 1.12.2-14.23.5.2851 -> 1.16
	GenerationOld                   // 1.7 -> 1.12.2
)

func (g Generation) String() string {
	switch g {
	case GenerationNew:
		return "new"
	case GenerationOld:
		return "old"
	default:
		return "unknown"
	}
}

// ParseGeneration converts a string to Generation. Empty means new.
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "new":
		return GenerationNew, nil
	case "old":
		return GenerationOld, nil
	default:
		return GenerationNew, fmt.Errorf("%w: unknown forge generation %q", ErrInvalidConfig, s)
	}
}

// CompatibilityPrefixes returns the version prefixes known to install cleanly
func (g Generation) CompatibilityPrefixes() []string {
	switch g {
	case GenerationOld:
		return []string{"1.7", "1.8", "1.9", "1.10", "1.11", "1.12"}
	default:
		return []string{"1.16", "1.15", "1.14", "1.12.2-14.23.5.285"}
	}
}

// DefaultFileDeleter reports whether stale mods are deleted when not configured explicitly
func (g Generation) DefaultFileDeleter() bool {
	return g == GenerationNew
}

// CleanupPolicy decides when the installer workspace is removed
type CleanupPolicy int

const (
	CleanOnSuccess CleanupPolicy = iota // Default: keep the workspace after a failure for diagnosis
	CleanAlways
)

func (p CleanupPolicy) String() string {
	if p == CleanAlways {
		return "always"
	}
	return "on_success"
}

// ParseCleanupPolicy converts a string to CleanupPolicy
func ParseCleanupPolicy(s string) CleanupPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "always") {
		return CleanAlways
	}
	return CleanOnSuccess
}

// VersionConfig is the input for NewVersionSpec.
// Nil pointer fields take their documented default.
type VersionConfig struct {
	ForgeVersion   string         // "14.23.5.2855" or "1.12.2-14.23.5.2855"
	VanillaVersion string         // Required when ForgeVersion has no "-"
	Generation     Generation     // Default: GenerationNew
	MavenURL       string         // Default: DefaultMavenURL
	NoGui          *bool          // Default: true
	FileDeleter    *bool          // Default: Generation.DefaultFileDeleter()
	Mods           []Mod          // Default: none
	CurseMods      []CurseModInfo // Default: none
}

// VersionSpec is a validated, immutable Forge install request
type VersionSpec struct {
	Raw                   string
	ForgeVersion          string // Normalised "<vanilla>-<forge>"
	VanillaVersion        string
	Generation            Generation
	InstallerURL          string
	CompatibilityPrefixes []string
	NoGui                 bool
	FileDeleter           bool
	Mods                  []Mod
	CurseMods             []CurseModInfo
}

var versionPattern = regexp.MustCompile(`^[0-9A-Za-z._+-]+$`)

// NewVersionSpec validates cfg and derives the installer URL.
// Errors wrap ErrMalformedVersion.
func NewVersionSpec(cfg VersionConfig) (*VersionSpec, error) {
	raw := strings.TrimSpace(cfg.ForgeVersion)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty forge version", ErrMalformedVersion)
	}

	vanilla := strings.TrimSpace(cfg.VanillaVersion)
	forgeVersion := raw
	if !strings.Contains(raw, "-") {
		if vanilla == "" {
			return nil, fmt.Errorf("%w: %q needs a vanilla version prefix", ErrMalformedVersion, raw)
		}
		forgeVersion = vanilla + "-" + raw
	}
	if vanilla == "" {
		vanilla, _, _ = strings.Cut(forgeVersion, "-")
	}

	if !versionPattern.MatchString(forgeVersion) {
		return nil, fmt.Errorf("%w: invalid characters in %q", ErrMalformedVersion, forgeVersion)
	}

	installerURL, err := InstallerURL(cfg.MavenURL, forgeVersion)
	if err != nil {
		return nil, err
	}

	noGui := true
	if cfg.NoGui != nil {
		noGui = *cfg.NoGui
	}
	fileDeleter := cfg.Generation.DefaultFileDeleter()
	if cfg.FileDeleter != nil {
		fileDeleter = *cfg.FileDeleter
	}

	return &VersionSpec{
		Raw:                   cfg.ForgeVersion,
		ForgeVersion:          forgeVersion,
		VanillaVersion:        vanilla,
		Generation:            cfg.Generation,
		InstallerURL:          installerURL,
		CompatibilityPrefixes: cfg.Generation.CompatibilityPrefixes(),
		NoGui:                 noGui,
		FileDeleter:           fileDeleter,
		Mods:                  append([]Mod(nil), cfg.Mods...),
		CurseMods:             append([]CurseModInfo(nil), cfg.CurseMods...),
	}, nil
}

// InstallerURL builds the maven URL of a Forge installer jar
func InstallerURL(mavenURL, forgeVersion string) (string, error) {
	if mavenURL == "" {
		mavenURL = DefaultMavenURL
	}

	base, err := url.Parse(strings.TrimRight(mavenURL, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: parsing maven URL: %v", ErrMalformedVersion, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return "", fmt.Errorf("%w: maven URL %q is not an http(s) URL", ErrMalformedVersion, mavenURL)
	}

	base.Path = path.Join(base.Path, "net/minecraftforge/forge", forgeVersion, "forge-"+forgeVersion+"-installer.jar")
	return base.String(), nil
}

// IsCompatible reports whether the version matches one of the generation's known-good prefixes
func (v *VersionSpec) IsCompatible() bool {
	for _, prefix := range v.CompatibilityPrefixes {
		if strings.HasPrefix(v.ForgeVersion, prefix) {
			return true
		}
	}
	return false
}

// MarkerPath is the installed library whose presence means this version is installed,
// relative to the install directory
func (v *VersionSpec) MarkerPath() string {
	return path.Join("libraries/net/minecraftforge/forge", v.ForgeVersion, "forge-"+v.ForgeVersion+".jar")
}
