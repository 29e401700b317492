// Package manifest loads the install inputs: the mods list, the asset index and the
// libraries catalog. Each may live in a local file or behind an http(s) URL.
package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// maxManifestSize bounds how much of a manifest is read into memory
const maxManifestSize = 32 << 20

// Fetcher reads manifests from files or URLs
type Fetcher struct {
	httpClient   *http.Client
	resourcesURL string
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithResourcesURL sets the host serving asset objects, DefaultResourcesURL when empty
func WithResourcesURL(url string) FetcherOption {
	return func(f *Fetcher) {
		f.resourcesURL = url
	}
}

// NewFetcher creates a Fetcher. A nil client uses http.DefaultClient.
func NewFetcher(httpClient *http.Client, opts ...FetcherOption) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	f := &Fetcher{httpClient: httpClient}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open returns a reader for loc, which is either a file path or an http(s) URL
func (f *Fetcher) Open(ctx context.Context, loc string) (io.ReadCloser, error) {
	if !isURL(loc) {
		file, err := os.Open(loc)
		if err != nil {
			return nil, fmt.Errorf("opening manifest: %w", err)
		}
		return file, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{URL: loc, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &domain.NetworkError{URL: loc, StatusCode: resp.StatusCode}
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxManifestSize), resp.Body}, nil
}

// Mods loads a mods list from loc
func (f *Fetcher) Mods(ctx context.Context, loc string) (*ModList, error) {
	r, err := f.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ParseMods(r)
}

// Assets loads an asset index from loc
func (f *Fetcher) Assets(ctx context.Context, loc string) (*domain.AssetIndex, error) {
	r, err := f.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ParseAssetIndex(r, f.resourcesURL)
}

// Libraries loads a libraries catalog from loc
func (f *Fetcher) Libraries(ctx context.Context, loc string) (*domain.AssetIndex, error) {
	r, err := f.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ParseLibraries(r)
}

func isURL(loc string) bool {
	u, err := url.Parse(loc)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
