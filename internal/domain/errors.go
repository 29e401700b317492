package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedVersion   = errors.New("malformed version")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrNetwork            = errors.New("network error")
	ErrArchive            = errors.New("archive error")
	ErrVerification       = errors.New("verification failed")
	ErrProcessExecution   = errors.New("process execution failed")
	ErrProcessTimeout     = errors.New("process timed out")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrAuthRequired       = errors.New("authentication required")
	ErrModNotFound        = errors.New("mod not found")
	ErrDuplicateAsset     = errors.New("duplicate asset path")
)

// NetworkError describes a failed HTTP fetch.
type NetworkError struct {
	URL        string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetching %s", e.URL)
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}

// Retryable reports whether the failure is worth another attempt.
// Transport errors, 5xx and 429 are; other HTTP statuses are not.
func (e *NetworkError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// VerificationError reports a hash or size mismatch for a file.
type VerificationError struct {
	Path         string
	ExpectedHash string
	ActualHash   string
	ExpectedSize int64
	ActualSize   int64
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verifying %s: expected sha1 %s (%d bytes), got %s (%d bytes)",
		e.Path, e.ExpectedHash, e.ExpectedSize, e.ActualHash, e.ActualSize)
}

func (e *VerificationError) Unwrap() error { return ErrVerification }

// ArchiveError reports a corrupt or unsupported archive entry.
type ArchiveError struct {
	Archive string
	Entry   string // empty when the archive itself is unreadable
	Err     error
}

func (e *ArchiveError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive %s: entry %s: %v", e.Archive, e.Entry, e.Err)
	}
	return fmt.Sprintf("archive %s: %v", e.Archive, e.Err)
}

func (e *ArchiveError) Unwrap() []error { return []error{ErrArchive, e.Err} }

// ProcessError reports a subprocess that could not start or exited non-zero.
type ProcessError struct {
	Command  string
	Started  bool // False when the process could not be started
	ExitCode int  // -1 when the process never started or was killed by a signal
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	switch {
	case !e.Started:
		return fmt.Sprintf("starting %s: %v", e.Command, e.Err)
	case e.ExitCode < 0:
		return fmt.Sprintf("%s terminated: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

func (e *ProcessError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProcessExecution}
	}
	return []error{ErrProcessExecution, e.Err}
}
