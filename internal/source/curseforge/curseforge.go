// Package curseforge resolves CurseForge file references into downloadable mods.
package curseforge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/DonovanMods/flowupdater/internal/domain"

	"github.com/charmbracelet/log"
)

// SourceID identifies CurseForge in the source registry and in installed mod records
const SourceID = "curseforge"

// ErrDistributionDisabled is returned for files whose author disabled third-party downloads
var ErrDistributionDisabled = errors.New("mod author has disabled third-party downloads; download it manually from CurseForge")

// FileCache stores resolved files between runs
type FileCache interface {
	CachedCurseFile(ref domain.CurseModInfo) (*domain.Mod, error)
	SaveCurseFile(ref domain.CurseModInfo, mod domain.Mod) error
}

// CurseForge implements source.ModSource
type CurseForge struct {
	client *Client
	cache  FileCache
	logger *log.Logger
}

// Option configures a CurseForge source
type Option func(*CurseForge)

// WithCache keeps resolved files in cache so later runs skip the API
func WithCache(cache FileCache) Option {
	return func(c *CurseForge) {
		c.cache = cache
	}
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(c *CurseForge) {
		c.logger = logger
	}
}

// WithBaseURL points the client at another API host
func WithBaseURL(baseURL string) Option {
	return func(c *CurseForge) {
		c.client.baseURL = baseURL
	}
}

// New creates a new CurseForge source
func New(httpClient *http.Client, apiKey string, opts ...Option) *CurseForge {
	c := &CurseForge{client: NewClient(httpClient, apiKey)}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// ID returns the source identifier
func (c *CurseForge) ID() string {
	return SourceID
}

// Name returns the display name
func (c *CurseForge) Name() string {
	return "CurseForge"
}

// IsAuthenticated returns true if an API key is configured
func (c *CurseForge) IsAuthenticated() bool {
	return c.client.IsAuthenticated()
}

// ResolveFiles turns file references into mods named after the file, carrying the
// file's SHA-1 and length. The result has one mod per reference, in order.
func (c *CurseForge) ResolveFiles(ctx context.Context, refs []domain.CurseModInfo) ([]domain.Mod, error) {
	resolved := make([]*domain.Mod, len(refs))
	var pending []int

	for i, ref := range refs {
		if c.cache != nil {
			mod, err := c.cache.CachedCurseFile(ref)
			if err != nil {
				c.logger.Warn("reading curse file cache", "project", ref.ProjectID, "file", ref.FileID, "err", err)
			} else if mod != nil {
				resolved[i] = mod
				continue
			}
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		if !c.client.IsAuthenticated() {
			return nil, fmt.Errorf("%w: CurseForge API key required to resolve %d files", domain.ErrAuthRequired, len(pending))
		}
		if err := c.fetch(ctx, refs, pending, resolved); err != nil {
			return nil, err
		}
	}

	mods := make([]domain.Mod, len(resolved))
	for i, mod := range resolved {
		mods[i] = *mod
	}
	return mods, nil
}

// fetch resolves refs[i] for every i in pending, storing the results in resolved
func (c *CurseForge) fetch(ctx context.Context, refs []domain.CurseModInfo, pending []int, resolved []*domain.Mod) error {
	ids := make([]int, len(pending))
	for n, i := range pending {
		ids[n] = refs[i].FileID
	}

	files, err := c.client.GetFiles(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int]*File, len(files))
	for i := range files {
		byID[files[i].ID] = &files[i]
	}

	for _, i := range pending {
		ref := refs[i]
		file, ok := byID[ref.FileID]
		if !ok || file.ModID != ref.ProjectID {
			return fmt.Errorf("%w: curseforge file %d of project %d", domain.ErrModNotFound, ref.FileID, ref.ProjectID)
		}

		url := file.DownloadURL
		if url == "" {
			url, err = c.client.GetDownloadURL(ctx, ref.ProjectID, ref.FileID)
			if err != nil {
				return fmt.Errorf("%s: %w", c.describe(ctx, ref), err)
			}
		}

		mod := &domain.Mod{
			Name:        file.FileName,
			DownloadURL: url,
			SHA1:        file.SHA1(),
			Size:        file.FileLength,
			SourceID:    SourceID,
		}
		resolved[i] = mod
		c.logger.Debug("resolved curse file", "project", ref.ProjectID, "file", ref.FileID, "name", mod.Name)

		if c.cache != nil {
			if err := c.cache.SaveCurseFile(ref, *mod); err != nil {
				c.logger.Warn("caching curse file", "name", mod.Name, "err", err)
			}
		}
	}
	return nil
}

// describe names a reference for error messages, using the project name when available
func (c *CurseForge) describe(ctx context.Context, ref domain.CurseModInfo) string {
	if mod, err := c.client.GetMod(ctx, ref.ProjectID); err == nil && mod.Name != "" {
		return fmt.Sprintf("%s (project %d, file %d)", mod.Name, ref.ProjectID, ref.FileID)
	}
	return fmt.Sprintf("project %d, file %d", ref.ProjectID, ref.FileID)
}
