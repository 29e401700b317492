package domain

import "time"

// InstallRecord is one install run against a game directory
type InstallRecord struct {
	RunID         string
	Dir           string
	ForgeVersion  string
	Generation    string
	State         string // Final state of the run, e.g. "done" or "failed"
	FailedIn      string // Last state reached before failing
	Skipped       bool
	ForgeSkipped  bool
	ModsInstalled int
	ModsSkipped   int
	StaleDeleted  int
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time // Zero while the run is in progress
}

// Succeeded reports whether the run finished without error
func (r *InstallRecord) Succeeded() bool {
	return !r.FinishedAt.IsZero() && r.Error == ""
}

// Duration is how long the run took, zero while in progress
func (r *InstallRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// InstalledMod is a mod file placed in a game directory by an install run
type InstalledMod struct {
	Dir         string
	FileName    string
	SHA1        string
	Size        int64
	SourceID    string
	URL         string
	RunID       string
	InstalledAt time.Time
}
