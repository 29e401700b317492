package core

import (
	"context"
	"fmt"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/manifest"
	"github.com/DonovanMods/flowupdater/internal/metrics"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// History records install runs. *db.DB implements it.
type History interface {
	StartInstall(rec *domain.InstallRecord) error
	FinishInstall(rec *domain.InstallRecord) error
	SaveInstalledMods(dir, runID string, mods []domain.Mod) error
	DeleteInstalledMods(dir string, fileNames []string) error
}

// UpdaterConfig holds the collaborators of an Updater
type UpdaterConfig struct {
	Forge           *ForgeInstaller
	Assets          *AssetInstaller
	Manifests       *manifest.Fetcher
	History         History // Optional
	MetricsTextfile string  // Optional: written after every run
	Logger          *log.Logger
	Metrics         *metrics.Metrics
}

// UpdateRequest is one install of a Forge version into a game directory
type UpdateRequest struct {
	Dir          string
	Version      domain.VersionConfig
	AssetIndex   string // Optional path or URL of an asset index
	Libraries    string // Optional path or URL of a version JSON listing libraries
	ModsManifest string // Optional path or URL of a mods list, appended to Version's mods
}

// UpdateResult reports what an update did
type UpdateResult struct {
	RunID     string
	Spec      *domain.VersionSpec
	Assets    int // Asset index entries present after the run
	Libraries int // Library artifacts present after the run
	Install   *InstallResult
}

// Updater runs the whole pipeline: manifests, assets, libraries, Forge and mods
type Updater struct {
	forge     *ForgeInstaller
	assets    *AssetInstaller
	manifests *manifest.Fetcher
	history   History
	textfile  string
	logger    *log.Logger
	metrics   *metrics.Metrics
}

// NewUpdater creates an Updater, filling unset collaborators with defaults
func NewUpdater(cfg UpdaterConfig) *Updater {
	u := &Updater{
		forge:     cfg.Forge,
		assets:    cfg.Assets,
		manifests: cfg.Manifests,
		history:   cfg.History,
		textfile:  cfg.MetricsTextfile,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if u.logger == nil {
		u.logger = log.Default()
	}
	if u.forge == nil {
		u.forge = NewForgeInstaller(ForgeInstallerConfig{Logger: u.logger, Metrics: u.metrics})
	}
	if u.assets == nil {
		u.assets = NewAssetInstaller(u.forge.downloader, DefaultWorkers, u.logger, u.metrics)
	}
	if u.manifests == nil {
		u.manifests = manifest.NewFetcher(nil)
	}
	return u
}

// Update installs req, reporting progress to callback (nil for none).
//
// The steps are reported in order: preparation, assets, libraries, forge (only when
// Forge is installed), mods and end. An unsupported version is skipped before any
// download without touching req.Dir, reporting only preparation and end.
// Every run gets a record in the history.
func (u *Updater) Update(ctx context.Context, req UpdateRequest, callback domain.ProgressCallback) (res *UpdateResult, err error) {
	tracker := NewProgressTracker(callback)
	tracker.Init()

	res = &UpdateResult{RunID: uuid.NewString()}
	logger := u.logger.With("run", res.RunID[:8], "dir", req.Dir)

	rec := &domain.InstallRecord{
		RunID:        res.RunID,
		Dir:          req.Dir,
		ForgeVersion: req.Version.ForgeVersion,
		Generation:   req.Version.Generation.String(),
		State:        "running",
		StartedAt:    time.Now().UTC(),
	}
	u.record("starting install record", func(h History) error { return h.StartInstall(rec) })

	defer func() {
		u.finish(rec, res, err)
		if u.textfile == "" {
			return
		}
		if werr := u.metrics.WriteTextfile(u.textfile); werr != nil {
			logger.Warn("writing metrics textfile", "path", u.textfile, "err", werr)
		}
	}()

	spec, assets, libraries, err := u.prepare(ctx, req, tracker)
	if err != nil {
		return res, fmt.Errorf("preparing update: %w", err)
	}
	res.Spec = spec
	rec.ForgeVersion = spec.ForgeVersion

	if spec.IsCompatible() {
		if err := u.installCatalog(ctx, assets, req.Dir, tracker, domain.StepAssets); err != nil {
			return res, err
		}
		res.Assets = catalogLen(assets)

		if err := u.installCatalog(ctx, libraries, req.Dir, tracker, domain.StepLibraries); err != nil {
			return res, err
		}
		res.Libraries = catalogLen(libraries)
	}

	res.Install, err = u.forge.Install(ctx, spec, req.Dir, tracker)
	if err != nil {
		return res, err
	}

	tracker.Step(domain.StepEnd, 0)
	logger.Info("update finished", "forge", spec.ForgeVersion, "state", res.Install.State.String())
	return res, nil
}

// prepare loads the manifests named by req and validates the version
func (u *Updater) prepare(ctx context.Context, req UpdateRequest, tracker *ProgressTracker) (spec *domain.VersionSpec, assets, libraries *domain.AssetIndex, err error) {
	total := 0
	for _, loc := range []string{req.ModsManifest, req.AssetIndex, req.Libraries} {
		if loc != "" {
			total++
		}
	}
	tracker.Step(domain.StepPreparation, total)

	version := req.Version
	if req.ModsManifest != "" {
		list, err := u.manifests.Mods(ctx, req.ModsManifest)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading mods manifest: %w", err)
		}
		version.Mods = append(append([]domain.Mod(nil), version.Mods...), list.Mods...)
		version.CurseMods = append(append([]domain.CurseModInfo(nil), version.CurseMods...), list.CurseFiles...)
		tracker.Increment()
	}

	spec, err = domain.NewVersionSpec(version)
	if err != nil {
		return nil, nil, nil, err
	}
	if !spec.IsCompatible() {
		return spec, nil, nil, nil
	}

	if req.AssetIndex != "" {
		if assets, err = u.manifests.Assets(ctx, req.AssetIndex); err != nil {
			return nil, nil, nil, fmt.Errorf("loading asset index: %w", err)
		}
		tracker.Increment()
	}
	if req.Libraries != "" {
		if libraries, err = u.manifests.Libraries(ctx, req.Libraries); err != nil {
			return nil, nil, nil, fmt.Errorf("loading libraries: %w", err)
		}
		tracker.Increment()
	}
	return spec, assets, libraries, nil
}

func (u *Updater) installCatalog(ctx context.Context, index *domain.AssetIndex, dir string, tracker *ProgressTracker, step domain.Step) error {
	if index == nil {
		tracker.Step(step, 0)
		return nil
	}
	return u.assets.Install(ctx, index, dir, tracker, step)
}

// finish completes the history record of a run and the installed-mods table
func (u *Updater) finish(rec *domain.InstallRecord, res *UpdateResult, err error) {
	rec.FinishedAt = time.Now().UTC()
	rec.State = StateFailed.String()
	if install := res.Install; install != nil {
		rec.State = install.State.String()
		if install.State == StateFailed {
			rec.FailedIn = install.FailedIn.String()
		}
		rec.Skipped = install.Skipped
		rec.ForgeSkipped = install.ForgeSkipped
		if install.Mods != nil {
			rec.ModsInstalled = len(install.Mods.Installed)
			rec.ModsSkipped = len(install.Mods.Skipped)
		}
		if install.Reconciliation != nil {
			rec.StaleDeleted = len(install.Reconciliation.Deleted)
		}
	}
	if err != nil {
		rec.Error = err.Error()
	}
	u.record("finishing install record", func(h History) error { return h.FinishInstall(rec) })

	if err != nil || res.Install == nil {
		return
	}
	if len(res.Install.Resolved) > 0 && res.Install.Mods != nil {
		u.record("saving installed mods", func(h History) error {
			return h.SaveInstalledMods(rec.Dir, rec.RunID, res.Install.Resolved)
		})
	}
	if res.Install.Reconciliation != nil && len(res.Install.Reconciliation.Deleted) > 0 {
		u.record("forgetting deleted mods", func(h History) error {
			return h.DeleteInstalledMods(rec.Dir, res.Install.Reconciliation.Deleted)
		})
	}
}

// record calls fn with the history when one is configured. History failures are
// logged and never fail the install.
func (u *Updater) record(what string, fn func(History) error) {
	if u.history == nil {
		return
	}
	if err := fn(u.history); err != nil {
		u.logger.Warn(what, "err", err)
	}
}

func catalogLen(index *domain.AssetIndex) int {
	if index == nil {
		return 0
	}
	return index.Len()
}
