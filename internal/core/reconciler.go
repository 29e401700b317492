package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/metrics"

	"github.com/charmbracelet/log"
)

// Reconciliation partitions the regular files of a mods directory.
// Every file is in exactly one of Verified and Stale.
type Reconciliation struct {
	Verified []string // File names matching an expected mod by name and content
	Stale    []string // Everything else
	Deleted  []string // Stale files removed by Reconcile
}

// Reconciler compares a mods directory against the expected mod list
type Reconciler struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewReconciler creates a Reconciler. Both arguments may be nil.
func NewReconciler(logger *log.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{logger: logger, metrics: m}
}

// Classify sorts each regular file of modsDir into Verified or Stale.
// Each file's fate depends only on that file and the mod list, so the result does not
// depend on directory listing order. A missing modsDir has nothing to classify.
func (r *Reconciler) Classify(modsDir string, mods []domain.Mod) (*Reconciliation, error) {
	entries, err := os.ReadDir(modsDir)
	if errors.Is(err, os.ErrNotExist) {
		return &Reconciliation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading mods directory: %w", err)
	}

	result := &Reconciliation{}
	for _, entry := range entries {
		name := entry.Name()
		if !isModFile(filepath.Join(modsDir, name), entry) {
			continue
		}
		if r.verified(filepath.Join(modsDir, name), name, mods) {
			result.Verified = append(result.Verified, name)
		} else {
			result.Stale = append(result.Stale, name)
		}
	}

	sort.Strings(result.Verified)
	sort.Strings(result.Stale)
	return result, nil
}

// isModFile accepts regular files and symlinks deployed by the symlink linker
func isModFile(path string, entry fs.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err != nil || info.Mode().IsRegular()
}

func (r *Reconciler) verified(path, name string, mods []domain.Mod) bool {
	for _, mod := range mods {
		if mod.MatchesFile(name) && ModMatches(path, mod) {
			return true
		}
	}
	return false
}

// Reconcile classifies modsDir and, when deleteStale is set, removes every stale file.
// Deletion is one-way; callers gate it behind the file deleter setting.
func (r *Reconciler) Reconcile(modsDir string, mods []domain.Mod, deleteStale bool) (*Reconciliation, error) {
	result, err := r.Classify(modsDir, mods)
	if err != nil {
		return nil, err
	}
	if !deleteStale {
		return result, nil
	}

	for _, name := range result.Stale {
		path := filepath.Join(modsDir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return result, fmt.Errorf("deleting stale mod %s: %w", name, err)
		}
		r.logger.Info("deleted stale mod", "file", name)
		result.Deleted = append(result.Deleted, name)
	}
	r.metrics.StaleDeleted(len(result.Deleted))

	return result, nil
}
