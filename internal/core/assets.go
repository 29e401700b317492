package core

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/linker"
	"github.com/DonovanMods/flowupdater/internal/metrics"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent downloads when no worker count is configured
const DefaultWorkers = 4

// AssetInstaller downloads a catalog of asset objects or libraries into an install directory
type AssetInstaller struct {
	downloader *Downloader
	copier     linker.Linker
	workers    int
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// NewAssetInstaller creates an AssetInstaller running at most workers downloads at once
func NewAssetInstaller(downloader *Downloader, workers int, logger *log.Logger, m *metrics.Metrics) *AssetInstaller {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AssetInstaller{
		downloader: downloader,
		copier:     linker.NewCopy(),
		workers:    workers,
		logger:     logger,
		metrics:    m,
	}
}

// Install makes every catalog entry present and verified under baseDir.
// Entries sharing a hash are downloaded once and copied to the other paths.
// Verified files are left alone. The tracker is advanced once per catalog entry.
func (a *AssetInstaller) Install(ctx context.Context, index *domain.AssetIndex, baseDir string, tracker *ProgressTracker, step domain.Step) error {
	tracker.Step(step, index.Len())
	if index.Len() == 0 {
		return nil
	}

	groups := index.UniqueObjects()
	a.logger.Info("installing files", "step", step.String(), "files", index.Len(), "unique", len(groups))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, group := range groups {
		g.Go(func() error {
			return a.installGroup(ctx, group, baseDir, tracker)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("installing %s: %w", step, err)
	}
	return nil
}

func (a *AssetInstaller) installGroup(ctx context.Context, group domain.AssetGroup, baseDir string, tracker *ProgressTracker) error {
	primary := group.Primary
	primaryPath := filepath.Join(baseDir, filepath.FromSlash(primary.LocalPath))

	if FileMatches(primaryPath, primary.Hash, primary.Size) {
		a.metrics.ObserveDownload("asset", metrics.ResultSkipped)
	} else {
		if _, err := a.downloader.DownloadVerified(ctx, primary.URL, primaryPath, primary.Hash, primary.Size); err != nil {
			a.metrics.ObserveDownload("asset", metrics.ResultFailed)
			return fmt.Errorf("%s: %w", primary.LocalPath, err)
		}
		a.metrics.ObserveDownload("asset", metrics.ResultOK)
	}
	tracker.Increment()

	for _, alias := range group.Aliases {
		aliasPath := filepath.Join(baseDir, filepath.FromSlash(alias.LocalPath))
		if !FileMatches(aliasPath, alias.Hash, alias.Size) {
			if err := a.copier.Deploy(primaryPath, aliasPath); err != nil {
				return fmt.Errorf("%s: %w", alias.LocalPath, err)
			}
		}
		tracker.Increment()
	}

	return nil
}
