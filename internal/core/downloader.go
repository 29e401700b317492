package core

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 200 * time.Millisecond
)

// DownloadProgress represents the current state of a download
type DownloadProgress struct {
	TotalBytes int64   // Total size in bytes (0 if unknown)
	Downloaded int64   // Bytes downloaded so far
	Percentage float64 // Completion percentage (0-100)
}

// ProgressFunc is called periodically during download with progress updates
type ProgressFunc func(DownloadProgress)

// DownloadResult contains the outcome of a download
type DownloadResult struct {
	Path     string // Final file path
	Size     int64  // Bytes downloaded
	Checksum string // SHA-1 of downloaded file
	Attempts int
}

// Downloader handles HTTP file downloads with retries
type Downloader struct {
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	logger         *log.Logger
	metrics        *metrics.Metrics
}

// DownloaderOption configures a Downloader
type DownloaderOption func(*Downloader)

// WithMaxAttempts sets how many times a retryable failure is attempted (minimum 1)
func WithMaxAttempts(n int) DownloaderOption {
	return func(d *Downloader) {
		if n < 1 {
			n = 1
		}
		d.maxAttempts = n
	}
}

// WithInitialBackoff sets the first retry delay; later delays grow exponentially
func WithInitialBackoff(delay time.Duration) DownloaderOption {
	return func(d *Downloader) { d.initialBackoff = delay }
}

// WithDownloadLogger sets the logger
func WithDownloadLogger(logger *log.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = logger }
}

// WithDownloadMetrics records byte counts and verification failures
func WithDownloadMetrics(m *metrics.Metrics) DownloaderOption {
	return func(d *Downloader) { d.metrics = m }
}

// NewDownloader creates a new Downloader with the given HTTP client
// If httpClient is nil, http.DefaultClient is used
func NewDownloader(httpClient *http.Client, opts ...DownloaderOption) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	d := &Downloader{
		httpClient:     httpClient,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.Default()
	}
	return d
}

// Download fetches a file from the URL and saves it to destPath without verifying it.
// Progress updates are sent to the optional progressFn callback.
func (d *Downloader) Download(ctx context.Context, url, destPath string, progressFn ProgressFunc) (*DownloadResult, error) {
	return d.fetch(ctx, url, destPath, progressFn, nil)
}

// DownloadVerified fetches url into destPath, only moving the file into place when its
// SHA-1 and size match. An empty expectedHash skips the hash check and a non-positive
// expectedSize skips the size check. A mismatch is retried like a network failure and
// finally reported as *domain.VerificationError; destPath is never left half-written.
func (d *Downloader) DownloadVerified(ctx context.Context, url, destPath, expectedHash string, expectedSize int64) (*DownloadResult, error) {
	check := func(res *DownloadResult) error {
		if (expectedHash != "" && !strings.EqualFold(res.Checksum, expectedHash)) ||
			(expectedSize > 0 && res.Size != expectedSize) {
			d.metrics.VerificationFailed()
			return &domain.VerificationError{
				Path:         destPath,
				ExpectedHash: expectedHash,
				ActualHash:   res.Checksum,
				ExpectedSize: expectedSize,
				ActualSize:   res.Size,
			}
		}
		return nil
	}
	return d.fetch(ctx, url, destPath, nil, check)
}

func (d *Downloader) fetch(ctx context.Context, url, destPath string, progressFn ProgressFunc, check func(*DownloadResult) error) (*DownloadResult, error) {
	var result *DownloadResult
	attempts := 0

	op := func() error {
		attempts++
		res, err := d.attempt(ctx, url, destPath, progressFn, check)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			var netErr *domain.NetworkError
			if errors.As(err, &netErr) && !netErr.Retryable() {
				return backoff.Permanent(err)
			}
			if !errors.As(err, &netErr) && !errors.Is(err, domain.ErrVerification) {
				// Local I/O failures won't improve by retrying
				return backoff.Permanent(err)
			}
			d.logger.Debug("download attempt failed", "url", url, "attempt", attempts, "err", err)
			return err
		}
		result = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.initialBackoff
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(d.maxAttempts-1)), ctx)

	if err := backoff.Retry(op, retry); err != nil {
		return nil, err
	}

	result.Attempts = attempts
	d.metrics.AddBytes(result.Size)
	d.logger.Debug("downloaded file", "url", url, "path", destPath, "size", humanize.Bytes(uint64(result.Size)))
	return result, nil
}

func (d *Downloader) attempt(ctx context.Context, url, destPath string, progressFn ProgressFunc, check func(*DownloadResult) error) (*DownloadResult, error) {
	// Create the request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	// Execute the request
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	// Check for HTTP errors
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	// Create destination directory if needed
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	// Create a temporary file first for atomic write
	tempPath := destPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer func() {
		file.Close()
		os.Remove(tempPath) // Clean up temp file on error
	}()

	hasher := sha1.New()
	reader := &progressReader{
		reader:     resp.Body,
		totalBytes: resp.ContentLength,
		progressFn: progressFn,
	}

	written, err := io.Copy(file, io.TeeReader(reader, hasher))
	if err != nil {
		return nil, &domain.NetworkError{URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}

	// Close the file before renaming
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("closing file: %w", err)
	}

	result := &DownloadResult{
		Path:     destPath,
		Size:     written,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}

	if check != nil {
		if err := check(result); err != nil {
			return nil, err
		}
	}

	// Atomically move temp file to final destination
	if err := os.Rename(tempPath, destPath); err != nil {
		return nil, fmt.Errorf("renaming file: %w", err)
	}

	return result, nil
}

// progressReader wraps an io.Reader to track download progress
type progressReader struct {
	reader     io.Reader
	totalBytes int64
	downloaded int64
	progressFn ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.downloaded += int64(n)
		if r.progressFn != nil {
			progress := DownloadProgress{
				TotalBytes: r.totalBytes,
				Downloaded: r.downloaded,
			}
			if r.totalBytes > 0 {
				progress.Percentage = float64(r.downloaded) / float64(r.totalBytes) * 100
			}
			r.progressFn(progress)
		}
	}
	return n, err
}
