package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/linker"
	"github.com/DonovanMods/flowupdater/internal/metrics"
	"github.com/DonovanMods/flowupdater/internal/storage/cache"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ModInstallerConfig configures a ModInstaller
type ModInstallerConfig struct {
	Downloader *Downloader
	Cache      *cache.Cache  // Optional: when nil mods are downloaded straight into the mods directory
	Linker     linker.Linker // Default: copy
	Workers    int           // Default: DefaultWorkers
	Logger     *log.Logger
	Metrics    *metrics.Metrics
}

// ModInstallResult lists what Install did, by file name
type ModInstallResult struct {
	Installed []string
	Skipped   []string // Already present and verified
}

// ModInstaller places a flat list of mods into a mods directory
type ModInstaller struct {
	downloader *Downloader
	cache      *cache.Cache
	linker     linker.Linker
	workers    int
	logger     *log.Logger
	metrics    *metrics.Metrics
	fetches    singleflight.Group
}

// NewModInstaller creates a ModInstaller from cfg
func NewModInstaller(cfg ModInstallerConfig) *ModInstaller {
	m := &ModInstaller{
		downloader: cfg.Downloader,
		cache:      cfg.Cache,
		linker:     cfg.Linker,
		workers:    cfg.Workers,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if m.downloader == nil {
		m.downloader = NewDownloader(nil, WithDownloadLogger(cfg.Logger), WithDownloadMetrics(cfg.Metrics))
	}
	if m.linker == nil {
		m.linker = linker.NewCopy()
	}
	if m.workers <= 0 {
		m.workers = DefaultWorkers
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	return m
}

// Install downloads every mod not already verified in modsDir. Each file is verified
// before it is moved into the mods directory, so a failed or partial download never
// replaces an existing file. Install returns after every worker has finished.
func (m *ModInstaller) Install(ctx context.Context, mods []domain.Mod, modsDir string, tracker *ProgressTracker) (*ModInstallResult, error) {
	mods, err := uniqueMods(mods)
	if err != nil {
		return nil, err
	}
	tracker.Step(domain.StepMods, len(mods))

	var mu sync.Mutex
	result := &ModInstallResult{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, mod := range mods {
		g.Go(func() error {
			skipped, err := m.installMod(ctx, mod, modsDir)
			if err != nil {
				m.metrics.ObserveDownload("mod", metrics.ResultFailed)
				return fmt.Errorf("installing mod %s: %w", mod.Name, err)
			}

			mu.Lock()
			if skipped {
				result.Skipped = append(result.Skipped, mod.FileName())
				m.metrics.ObserveDownload("mod", metrics.ResultSkipped)
			} else {
				result.Installed = append(result.Installed, mod.FileName())
				m.metrics.ObserveDownload("mod", metrics.ResultOK)
			}
			mu.Unlock()

			tracker.Increment()
			return nil
		})
	}

	err = g.Wait()
	sort.Strings(result.Installed)
	sort.Strings(result.Skipped)
	return result, err
}

func (m *ModInstaller) installMod(ctx context.Context, mod domain.Mod, modsDir string) (skipped bool, err error) {
	dst := filepath.Join(modsDir, mod.FileName())
	if ModMatches(dst, mod) {
		m.logger.Debug("mod already installed", "mod", mod.FileName())
		return true, nil
	}
	if mod.DownloadURL == "" {
		return false, errors.New("no download URL")
	}

	if m.cache == nil {
		if _, err := m.downloader.DownloadVerified(ctx, mod.DownloadURL, dst, mod.SHA1, mod.Size); err != nil {
			return false, err
		}
		return false, nil
	}

	cached := m.cache.ModPath(mod)
	_, err, _ = m.fetches.Do(cached, func() (any, error) {
		return nil, m.fetchToCache(ctx, mod, cached)
	})
	if err != nil {
		return false, err
	}

	if err := m.linker.Deploy(cached, dst); err != nil {
		return false, fmt.Errorf("deploying: %w", err)
	}
	m.logger.Info("installed mod", "mod", mod.FileName())
	return false, nil
}

func (m *ModInstaller) fetchToCache(ctx context.Context, mod domain.Mod, cached string) error {
	if m.cache.Exists(cached) {
		if ModMatches(cached, mod) {
			return nil
		}
		m.logger.Warn("cached mod failed verification, downloading again", "mod", mod.FileName())
		if err := m.cache.Delete(cached); err != nil {
			return err
		}
	}

	res, err := m.downloader.DownloadVerified(ctx, mod.DownloadURL, cached, mod.SHA1, mod.Size)
	if err != nil {
		return err
	}
	m.logger.Debug("cached mod", "mod", mod.FileName(), "size", humanize.Bytes(uint64(res.Size)))
	return nil
}

// uniqueMods drops repeated file names; two different mods claiming one file name is an error
func uniqueMods(mods []domain.Mod) ([]domain.Mod, error) {
	seen := make(map[string]domain.Mod, len(mods))
	out := make([]domain.Mod, 0, len(mods))
	for _, mod := range mods {
		key := strings.ToLower(mod.FileName())
		if prev, ok := seen[key]; ok {
			if !strings.EqualFold(prev.SHA1, mod.SHA1) || prev.DownloadURL != mod.DownloadURL {
				return nil, fmt.Errorf("%w: conflicting mods for %s", domain.ErrInvalidConfig, mod.FileName())
			}
			continue
		}
		seen[key] = mod
		out = append(out, mod)
	}
	return out, nil
}
