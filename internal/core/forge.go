package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/metrics"

	"github.com/charmbracelet/log"
)

// InstallState is a step of the Forge install state machine
type InstallState int

const (
	StateCreated InstallState = iota
	StateCompatibilityChecked
	StateWorkspaceStaged
	StateInstallerDownloaded
	StatePatchesDownloaded
	StatePatched
	StateInstallerRun
	StateModsInstalled
	StateDone
	StateFailed
)

func (s InstallState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCompatibilityChecked:
		return "compatibility_checked"
	case StateWorkspaceStaged:
		return "workspace_staged"
	case StateInstallerDownloaded:
		return "installer_downloaded"
	case StatePatchesDownloaded:
		return "patches_downloaded"
	case StatePatched:
		return "patched"
	case StateInstallerRun:
		return "installer_run"
	case StateModsInstalled:
		return "mods_installed"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InstallResult reports how far an install got
type InstallResult struct {
	State          InstallState
	FailedIn       InstallState // Last state reached before failing
	Skipped        bool         // Version not supported; nothing was touched
	Reason         error        // Why the install was skipped
	ForgeSkipped   bool         // Forge was already installed
	Resolved       []domain.Mod // Every mod of the version, CurseForge references resolved
	Mods           *ModInstallResult
	Reconciliation *Reconciliation
}

// CurseResolver turns CurseForge file references into downloadable mods
type CurseResolver interface {
	ResolveFiles(ctx context.Context, refs []domain.CurseModInfo) ([]domain.Mod, error)
}

// Workspace is the scratch tree used to stage and patch an installer.
// It is owned by one install run at a time.
type Workspace struct {
	Root                 string
	InstallerDir         string
	RawInstallerPath     string
	PatchesPath          string
	PatchedInstallerPath string
}

// NewWorkspace lays out the workspace under targetDir/.flowupdater
func NewWorkspace(targetDir string) Workspace {
	root := filepath.Join(targetDir, ".flowupdater")
	return Workspace{
		Root:                 root,
		InstallerDir:         filepath.Join(root, "installer"),
		RawInstallerPath:     filepath.Join(root, "forge-installer.jar"),
		PatchesPath:          filepath.Join(root, "patches.jar"),
		PatchedInstallerPath: filepath.Join(root, "forge-installer-patched.jar"),
	}
}

// ForgeInstallerConfig holds the collaborators of a ForgeInstaller
type ForgeInstallerConfig struct {
	Downloader *Downloader
	Extractor  *Extractor
	Runner     *Runner
	Mods       *ModInstaller
	Reconciler *Reconciler
	Resolver   CurseResolver // Optional: required only when a version lists CurseForge mods
	PatchesURL string        // Default: domain.DefaultPatchesURL
	Cleanup    domain.CleanupPolicy
	Logger     *log.Logger
	Metrics    *metrics.Metrics
}

// ForgeInstaller installs a Forge version and its mods into a game directory
type ForgeInstaller struct {
	downloader *Downloader
	extractor  *Extractor
	patcher    *Patcher
	runner     *Runner
	mods       *ModInstaller
	reconciler *Reconciler
	resolver   CurseResolver
	patchesURL string
	cleanup    domain.CleanupPolicy
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// NewForgeInstaller creates a ForgeInstaller, filling unset collaborators with defaults
func NewForgeInstaller(cfg ForgeInstallerConfig) *ForgeInstaller {
	f := &ForgeInstaller{
		downloader: cfg.Downloader,
		extractor:  cfg.Extractor,
		runner:     cfg.Runner,
		mods:       cfg.Mods,
		reconciler: cfg.Reconciler,
		resolver:   cfg.Resolver,
		patchesURL: cfg.PatchesURL,
		cleanup:    cfg.Cleanup,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	if f.downloader == nil {
		f.downloader = NewDownloader(nil, WithDownloadLogger(f.logger), WithDownloadMetrics(f.metrics))
	}
	if f.extractor == nil {
		f.extractor = NewExtractor()
	}
	f.patcher = NewPatcher(f.extractor)
	if f.runner == nil {
		f.runner = NewRunner(RunnerConfig{Logger: f.logger})
	}
	if f.mods == nil {
		f.mods = NewModInstaller(ModInstallerConfig{Downloader: f.downloader, Logger: f.logger, Metrics: f.metrics})
	}
	if f.reconciler == nil {
		f.reconciler = NewReconciler(f.logger, f.metrics)
	}
	if f.patchesURL == "" {
		f.patchesURL = domain.DefaultPatchesURL
	}
	return f
}

// Install runs the state machine for spec against targetDir.
//
// An unsupported version ends in StateDone with Skipped set and the filesystem untouched.
// When the Forge library marker already exists the Forge stages are skipped, so a second
// run downloads nothing. The mods stage always runs and skips verified mods.
// A failure leaves the workspace in place unless the cleanup policy is CleanAlways.
func (f *ForgeInstaller) Install(ctx context.Context, spec *domain.VersionSpec, targetDir string, tracker *ProgressTracker) (*InstallResult, error) {
	if tracker == nil {
		tracker = NewProgressTracker(nil)
	}
	res := &InstallResult{State: StateCreated}
	logger := f.logger.With("forge", spec.ForgeVersion, "generation", spec.Generation.String())

	if !spec.IsCompatible() {
		res.State = StateDone
		res.Skipped = true
		res.Reason = fmt.Errorf("%w: %s (%s generation)", domain.ErrUnsupportedVersion, spec.ForgeVersion, spec.Generation)
		logger.Warn("skipping forge install", "reason", res.Reason)
		return res, nil
	}
	res.State = StateCompatibilityChecked

	marker := filepath.Join(targetDir, filepath.FromSlash(spec.MarkerPath()))
	if fileExists(marker) {
		logger.Info("forge already installed", "marker", spec.MarkerPath())
		res.ForgeSkipped = true
	} else if err := f.installForge(ctx, spec, targetDir, marker, res, tracker, logger); err != nil {
		return f.fail(res, err)
	}

	if err := f.installMods(ctx, spec, targetDir, res, tracker, logger); err != nil {
		return f.fail(res, err)
	}

	res.State = StateDone
	return res, nil
}

func (f *ForgeInstaller) fail(res *InstallResult, err error) (*InstallResult, error) {
	res.FailedIn = res.State
	res.State = StateFailed
	return res, err
}

func (f *ForgeInstaller) installForge(ctx context.Context, spec *domain.VersionSpec, targetDir, marker string, res *InstallResult, tracker *ProgressTracker, logger *log.Logger) (err error) {
	ws := NewWorkspace(targetDir)
	start := time.Now()

	defer func() {
		outcome := metrics.ResultOK
		if err != nil {
			outcome = metrics.ResultFailed
		}
		f.metrics.ObserveInstall(spec.Generation.String(), outcome, time.Since(start))

		if err == nil || f.cleanup == domain.CleanAlways {
			if rerr := os.RemoveAll(ws.Root); rerr != nil {
				logger.Warn("removing workspace", "path", ws.Root, "err", rerr)
			}
		} else {
			logger.Warn("keeping workspace for inspection", "path", ws.Root)
		}
	}()

	// A workspace left by an earlier failed run is discarded
	if err := os.RemoveAll(ws.Root); err != nil {
		return fmt.Errorf("clearing workspace: %w", err)
	}
	if err := os.MkdirAll(ws.InstallerDir, 0755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	res.State = StateWorkspaceStaged

	switch spec.Generation {
	case domain.GenerationOld:
		tracker.Step(domain.StepForge, 3)
		err = f.installOld(ctx, spec, targetDir, marker, ws, res, tracker, logger)
	default:
		tracker.Step(domain.StepForge, 4)
		err = f.installNew(ctx, spec, targetDir, marker, ws, res, tracker, logger)
	}
	return err
}

// installNew downloads the installer and the patch overlay, patches the installer and runs it
func (f *ForgeInstaller) installNew(ctx context.Context, spec *domain.VersionSpec, targetDir, marker string, ws Workspace, res *InstallResult, tracker *ProgressTracker, logger *log.Logger) error {
	logger.Info("downloading forge installer", "url", spec.InstallerURL)
	if _, err := f.downloader.Download(ctx, spec.InstallerURL, ws.RawInstallerPath, nil); err != nil {
		return fmt.Errorf("downloading forge installer: %w", err)
	}
	res.State = StateInstallerDownloaded
	tracker.Increment()

	if _, err := f.downloader.Download(ctx, f.patchesURL, ws.PatchesPath, nil); err != nil {
		return fmt.Errorf("downloading patches: %w", err)
	}
	res.State = StatePatchesDownloaded
	tracker.Increment()

	logger.Info("patching installer")
	if err := f.patcher.Patch(ws.RawInstallerPath, ws.PatchesPath, ws.InstallerDir, ws.PatchedInstallerPath); err != nil {
		return fmt.Errorf("patching installer: %w", err)
	}
	res.State = StatePatched
	tracker.Increment()

	var flags []string
	if spec.NoGui {
		flags = append(flags, "--nogui")
	}
	if _, err := f.runner.Run(ctx, ws.PatchedInstallerPath, targetDir, nil, flags); err != nil {
		return fmt.Errorf("running forge installer: %w", err)
	}
	res.State = StateInstallerRun
	tracker.Increment()

	if !fileExists(marker) {
		return fmt.Errorf("%w: installer finished but %s is missing", domain.ErrProcessExecution, spec.MarkerPath())
	}
	return nil
}

// installOld runs the unmodified installer headless, then puts the universal jar in
// place itself when the installer did not. Legacy installers reject --installClient,
// so a non-zero exit only fails the install when the jar cannot be placed either.
func (f *ForgeInstaller) installOld(ctx context.Context, spec *domain.VersionSpec, targetDir, marker string, ws Workspace, res *InstallResult, tracker *ProgressTracker, logger *log.Logger) error {
	logger.Info("downloading forge installer", "url", spec.InstallerURL)
	if _, err := f.downloader.Download(ctx, spec.InstallerURL, ws.RawInstallerPath, nil); err != nil {
		return fmt.Errorf("downloading forge installer: %w", err)
	}
	res.State = StateInstallerDownloaded
	tracker.Increment()

	_, runErr := f.runner.Run(ctx, ws.RawInstallerPath, targetDir, []string{"-Djava.awt.headless=true"}, nil)
	if runErr != nil {
		runErr = fmt.Errorf("running forge installer: %w", runErr)
		var procErr *domain.ProcessError
		if !errors.As(runErr, &procErr) || !procErr.Started {
			return runErr
		}
		logger.Warn("legacy forge installer failed, using its universal jar", "err", runErr)
	}
	res.State = StateInstallerRun
	tracker.Increment()

	if !fileExists(marker) {
		if err := f.placeUniversalJar(spec, ws, marker); err != nil {
			return errors.Join(runErr, err)
		}
		logger.Info("placed forge library from installer", "path", spec.MarkerPath())
	}
	tracker.Increment()
	return nil
}

func (f *ForgeInstaller) placeUniversalJar(spec *domain.VersionSpec, ws Workspace, marker string) error {
	candidates := []string{
		"forge-" + spec.ForgeVersion + "-universal.jar",
		"forge-" + spec.ForgeVersion + ".jar",
	}
	for _, name := range candidates {
		found, err := f.extractor.ExtractFile(ws.RawInstallerPath, name, marker)
		if err != nil {
			return fmt.Errorf("extracting %s: %w", name, err)
		}
		if found {
			return nil
		}
	}
	return &domain.ArchiveError{
		Archive: ws.RawInstallerPath,
		Err:     fmt.Errorf("no %s in installer", candidates[0]),
	}
}

func (f *ForgeInstaller) installMods(ctx context.Context, spec *domain.VersionSpec, targetDir string, res *InstallResult, tracker *ProgressTracker, logger *log.Logger) error {
	mods := append([]domain.Mod(nil), spec.Mods...)
	if len(spec.CurseMods) > 0 {
		if f.resolver == nil {
			return fmt.Errorf("%w: %d CurseForge mods listed but no CurseForge client is configured", domain.ErrAuthRequired, len(spec.CurseMods))
		}
		resolved, err := f.resolver.ResolveFiles(ctx, spec.CurseMods)
		if err != nil {
			return fmt.Errorf("resolving CurseForge mods: %w", err)
		}
		mods = append(mods, resolved...)
	}
	res.Resolved = mods

	modsDir := filepath.Join(targetDir, "mods")
	result, err := f.mods.Install(ctx, mods, modsDir, tracker)
	res.Mods = result
	if err != nil {
		return err
	}
	res.State = StateModsInstalled
	logger.Info("mods installed", "installed", len(result.Installed), "skipped", len(result.Skipped))

	if !spec.FileDeleter {
		return nil
	}
	rec, err := f.reconciler.Reconcile(modsDir, mods, true)
	res.Reconciliation = rec
	if err != nil {
		return fmt.Errorf("reconciling mods: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
