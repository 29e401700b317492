package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FLOWUPDATER_WORKERS
const EnvPrefix = "FLOWUPDATER"

// Config holds global application settings.
// Values come from config.yaml and are then overridden by the environment.
type Config struct {
	JavaPath         string        `yaml:"java_path" envconfig:"JAVA_PATH"`
	JavaMaxHeap      string        `yaml:"java_max_heap" envconfig:"JAVA_MAX_HEAP"`
	InstallerTimeout time.Duration `yaml:"installer_timeout" envconfig:"INSTALLER_TIMEOUT"`
	Workers          int           `yaml:"workers" envconfig:"WORKERS"`
	LinkMethodStr    string        `yaml:"link_method" envconfig:"LINK_METHOD"`
	CachePath        string        `yaml:"cache_path" envconfig:"CACHE_PATH"`
	CleanupPolicyStr string        `yaml:"cleanup_policy" envconfig:"CLEANUP_POLICY"`
	MavenURL         string        `yaml:"maven_url" envconfig:"MAVEN_URL"`
	PatchesURL       string        `yaml:"patches_url" envconfig:"PATCHES_URL"`
	ResourcesURL     string        `yaml:"resources_url,omitempty" envconfig:"RESOURCES_URL"`
	LogLevel         string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	CurseForgeAPIKey string        `yaml:"curseforge_api_key,omitempty" envconfig:"CURSEFORGE_API_KEY"`
	MetricsTextfile  string        `yaml:"metrics_textfile,omitempty" envconfig:"METRICS_TEXTFILE"`

	LinkMethod    domain.LinkMethod    `yaml:"-" ignored:"true"`
	CleanupPolicy domain.CleanupPolicy `yaml:"-" ignored:"true"`
}

// Defaults returns the configuration used when no config file exists
func Defaults() *Config {
	return &Config{
		JavaPath:         "java",
		JavaMaxHeap:      "256M",
		InstallerTimeout: 10 * time.Minute,
		Workers:          4,
		LinkMethodStr:    domain.LinkCopy.String(),
		CleanupPolicyStr: domain.CleanOnSuccess.String(),
		MavenURL:         domain.DefaultMavenURL,
		PatchesURL:       domain.DefaultPatchesURL,
		LogLevel:         "info",
	}
}

// Load reads configuration from the given directory and applies environment overrides
func Load(configDir string) (*Config, error) {
	cfg := Defaults()

	configPath := filepath.Join(configDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.LinkMethod = domain.ParseLinkMethod(strings.ToLower(strings.TrimSpace(c.LinkMethodStr)))
	c.CleanupPolicy = domain.ParseCleanupPolicy(c.CleanupPolicyStr)
	c.CachePath = expandPath(c.CachePath)

	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", domain.ErrInvalidConfig, c.Workers)
	}
	if c.InstallerTimeout <= 0 {
		return fmt.Errorf("%w: installer_timeout must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// Save writes configuration to the given directory
func (c *Config) Save(configDir string) error {
	c.LinkMethodStr = c.LinkMethod.String()
	c.CleanupPolicyStr = c.CleanupPolicy.String()

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// expandPath replaces a leading ~ with the user's home directory
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
