package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/linker"
	"github.com/DonovanMods/flowupdater/internal/manifest"
	"github.com/DonovanMods/flowupdater/internal/metrics"
	"github.com/DonovanMods/flowupdater/internal/source"
	"github.com/DonovanMods/flowupdater/internal/source/curseforge"
	"github.com/DonovanMods/flowupdater/internal/storage/cache"
	"github.com/DonovanMods/flowupdater/internal/storage/config"
	"github.com/DonovanMods/flowupdater/internal/storage/db"

	"github.com/charmbracelet/log"
)

// ServiceConfig holds configuration for the core service
type ServiceConfig struct {
	ConfigDir  string       // Directory for configuration files
	DataDir    string       // Directory for database and persistent data
	CacheDir   string       // Directory for the download cache, unless config sets cache_path
	Logger     *log.Logger  // Default: a stderr logger at the configured log_level
	HTTPClient *http.Client // Default: http.DefaultClient
}

// Service wires configuration, storage and sources into ready-to-use pipeline components
type Service struct {
	config     *config.Config
	db         *db.DB
	cache      *cache.Cache
	registry   *source.Registry
	metrics    *metrics.Metrics
	logger     *log.Logger
	httpClient *http.Client

	configDir string
	dataDir   string
}

// NewService creates a new core service instance
func NewService(cfg ServiceConfig) (*Service, error) {
	appConfig, err := config.Load(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
		level, err := log.ParseLevel(appConfig.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: log_level: %v", domain.ErrInvalidConfig, err)
		}
		logger.SetLevel(level)
	}

	database, err := db.New(filepath.Join(cfg.DataDir, "flowupdater.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	cacheDir := cfg.CacheDir
	if appConfig.CachePath != "" {
		cacheDir = appConfig.CachePath
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	s := &Service{
		config:     appConfig,
		db:         database,
		cache:      cache.New(cacheDir),
		registry:   source.NewRegistry(),
		metrics:    metrics.New(),
		logger:     logger,
		httpClient: httpClient,
		configDir:  cfg.ConfigDir,
		dataDir:    cfg.DataDir,
	}

	if err := s.registerCurseForge(); err != nil {
		database.Close()
		return nil, err
	}
	return s, nil
}

// registerCurseForge (re)creates the CurseForge source with the current API key
func (s *Service) registerCurseForge() error {
	apiKey, err := s.APIKey(curseforge.SourceID)
	if err != nil {
		return err
	}
	s.registry.Register(curseforge.New(s.httpClient, apiKey,
		curseforge.WithCache(s.db),
		curseforge.WithLogger(s.logger),
	))
	return nil
}

// Close releases resources held by the service
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// APIKey returns the key for a source: the configured one, else the one saved in the database
func (s *Service) APIKey(sourceID string) (string, error) {
	if sourceID == curseforge.SourceID && s.config.CurseForgeAPIKey != "" {
		return s.config.CurseForgeAPIKey, nil
	}
	key, err := s.db.APIKey(sourceID)
	if err != nil {
		return "", fmt.Errorf("loading %s API key: %w", sourceID, err)
	}
	return key, nil
}

// SaveAPIKey stores a source's API key in the database and re-registers the source
func (s *Service) SaveAPIKey(sourceID, apiKey string) error {
	if err := s.db.SaveAPIKey(sourceID, apiKey); err != nil {
		return err
	}
	return s.registerCurseForge()
}

// DeleteAPIKey removes a source's saved API key
func (s *Service) DeleteAPIKey(sourceID string) error {
	if err := s.db.DeleteAPIKey(sourceID); err != nil {
		return err
	}
	return s.registerCurseForge()
}

// GetSource retrieves a source by ID
func (s *Service) GetSource(id string) (source.ModSource, error) {
	return s.registry.Get(id)
}

// ListSources returns all registered sources
func (s *Service) ListSources() []source.ModSource {
	return s.registry.List()
}

// Updater builds the install pipeline from the configuration
func (s *Service) Updater() *Updater {
	downloader := NewDownloader(s.httpClient, WithDownloadLogger(s.logger), WithDownloadMetrics(s.metrics))

	var resolver CurseResolver
	if src, err := s.registry.Get(curseforge.SourceID); err == nil {
		resolver = src
	}

	forge := NewForgeInstaller(ForgeInstallerConfig{
		Downloader: downloader,
		Runner: NewRunner(RunnerConfig{
			JavaPath: s.config.JavaPath,
			MaxHeap:  s.config.JavaMaxHeap,
			Timeout:  s.config.InstallerTimeout,
			Logger:   s.logger,
		}),
		Mods: NewModInstaller(ModInstallerConfig{
			Downloader: downloader,
			Cache:      s.cache,
			Linker:     linker.New(s.config.LinkMethod),
			Workers:    s.config.Workers,
			Logger:     s.logger,
			Metrics:    s.metrics,
		}),
		Reconciler: NewReconciler(s.logger, s.metrics),
		Resolver:   resolver,
		PatchesURL: s.config.PatchesURL,
		Cleanup:    s.config.CleanupPolicy,
		Logger:     s.logger,
		Metrics:    s.metrics,
	})

	return NewUpdater(UpdaterConfig{
		Forge:           forge,
		Assets:          NewAssetInstaller(downloader, s.config.Workers, s.logger, s.metrics),
		Manifests:       s.manifests(),
		History:         s.db,
		MetricsTextfile: s.config.MetricsTextfile,
		Logger:          s.logger,
		Metrics:         s.metrics,
	})
}

func (s *Service) manifests() *manifest.Fetcher {
	return manifest.NewFetcher(s.httpClient, manifest.WithResourcesURL(s.config.ResourcesURL))
}

// Request converts an instance file into an update request
func (s *Service) Request(inst *config.Instance) (UpdateRequest, error) {
	version, err := inst.VersionConfig(s.config.MavenURL, nil, nil)
	if err != nil {
		return UpdateRequest{}, err
	}
	return UpdateRequest{
		Dir:          inst.Dir,
		Version:      version,
		AssetIndex:   inst.AssetIndex,
		Libraries:    inst.Libraries,
		ModsManifest: inst.ModsManifest,
	}, nil
}

// Install runs the full pipeline for an instance
func (s *Service) Install(ctx context.Context, inst *config.Instance, callback domain.ProgressCallback) (*UpdateResult, error) {
	req, err := s.Request(inst)
	if err != nil {
		return nil, err
	}
	return s.Updater().Update(ctx, req, callback)
}

// Verify classifies the mods directory of an instance without changing anything.
// CurseForge references are resolved, from the database cache when possible.
func (s *Service) Verify(ctx context.Context, inst *config.Instance) (*Reconciliation, error) {
	var extraMods []domain.Mod
	var extraCurse []domain.CurseModInfo
	if inst.ModsManifest != "" {
		list, err := s.manifests().Mods(ctx, inst.ModsManifest)
		if err != nil {
			return nil, fmt.Errorf("loading mods manifest: %w", err)
		}
		extraMods, extraCurse = list.Mods, list.CurseFiles
	}

	version, err := inst.VersionConfig(s.config.MavenURL, extraMods, extraCurse)
	if err != nil {
		return nil, err
	}

	mods := version.Mods
	if len(version.CurseMods) > 0 {
		src, err := s.registry.Get(curseforge.SourceID)
		if err != nil {
			return nil, err
		}
		resolved, err := src.ResolveFiles(ctx, version.CurseMods)
		if err != nil {
			return nil, fmt.Errorf("resolving CurseForge mods: %w", err)
		}
		mods = append(mods, resolved...)
	}

	return NewReconciler(s.logger, s.metrics).Classify(filepath.Join(inst.Dir, "mods"), mods)
}

// History returns the latest install runs for dir, all directories when dir is empty
func (s *Service) History(dir string, limit int) ([]domain.InstallRecord, error) {
	return s.db.ListInstalls(dir, limit)
}

// LastInstall returns the latest install run for dir, nil when there is none
func (s *Service) LastInstall(dir string) (*domain.InstallRecord, error) {
	return s.db.LastInstall(dir)
}

// InstalledMods returns the mods recorded as installed in dir
func (s *Service) InstalledMods(dir string) ([]domain.InstalledMod, error) {
	return s.db.GetInstalledMods(dir)
}

// Config returns the loaded configuration
func (s *Service) Config() *config.Config {
	return s.config
}

// Cache returns the download cache
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Metrics returns the process metrics
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Logger returns the service logger
func (s *Service) Logger() *log.Logger {
	return s.logger
}

// DB returns the database
func (s *Service) DB() *db.DB {
	return s.db
}

// ConfigDir returns the configuration directory
func (s *Service) ConfigDir() string {
	return s.configDir
}

// DataDir returns the data directory
func (s *Service) DataDir() string {
	return s.dataDir
}
