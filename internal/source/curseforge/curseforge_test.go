package curseforge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/source/curseforge"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFile struct {
	ID          int    `json:"id"`
	ModID       int    `json:"modId"`
	FileName    string `json:"fileName"`
	FileLength  int64  `json:"fileLength"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Hashes      []struct {
		Value string `json:"value"`
		Algo  int    `json:"algo"`
	} `json:"hashes"`
}

// fakeAPI serves POST /v1/mods/files and the download-url and mod endpoints
type fakeAPI struct {
	mu       sync.Mutex
	files    map[int]apiFile
	urls     map[int]string // fileID -> download-url response; missing means 403
	requests int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/mods/files":
		var body struct {
			FileIDs []int `json:"fileIds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var data []apiFile
		for _, id := range body.FileIDs {
			if file, ok := f.files[id]; ok {
				data = append(data, file)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	case r.URL.Path == "/v1/mods/238222/files/3043174/download-url":
		if url, ok := f.urls[3043174]; ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": url})
			return
		}
		w.WriteHeader(http.StatusForbidden)
	case r.URL.Path == "/v1/mods/238222":
		_, _ = w.Write([]byte(`{"data": {"id": 238222, "name": "Just Enough Items"}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func jeiFile(url string) apiFile {
	file := apiFile{ID: 3043174, ModID: 238222, FileName: "jei-1.16.5.jar", FileLength: 850000, DownloadURL: url}
	file.Hashes = append(file.Hashes, struct {
		Value string `json:"value"`
		Algo  int    `json:"algo"`
	}{Value: "abcd", Algo: 1})
	return file
}

type memoryCache struct {
	mods map[domain.CurseModInfo]domain.Mod
}

func (m *memoryCache) CachedCurseFile(ref domain.CurseModInfo) (*domain.Mod, error) {
	mod, ok := m.mods[ref]
	if !ok {
		return nil, nil
	}
	return &mod, nil
}

func (m *memoryCache) SaveCurseFile(ref domain.CurseModInfo, mod domain.Mod) error {
	m.mods[ref] = mod
	return nil
}

func newSource(t *testing.T, api *fakeAPI, apiKey string, opts ...curseforge.Option) *curseforge.CurseForge {
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	opts = append(opts,
		curseforge.WithBaseURL(server.URL),
		curseforge.WithLogger(log.NewWithOptions(&bytes.Buffer{}, log.Options{})),
	)
	return curseforge.New(server.Client(), apiKey, opts...)
}

var jeiRef = domain.CurseModInfo{ProjectID: 238222, FileID: 3043174}

func TestResolveFiles(t *testing.T) {
	api := &fakeAPI{files: map[int]apiFile{3043174: jeiFile("https://cdn.example.com/jei.jar")}}
	src := newSource(t, api, "key")

	assert.Equal(t, "curseforge", src.ID())
	assert.True(t, src.IsAuthenticated())

	mods, err := src.ResolveFiles(context.Background(), []domain.CurseModInfo{jeiRef})
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, domain.Mod{
		Name:        "jei-1.16.5.jar",
		DownloadURL: "https://cdn.example.com/jei.jar",
		SHA1:        "abcd",
		Size:        850000,
		SourceID:    curseforge.SourceID,
	}, mods[0])
}

func TestResolveFiles_UsesCache(t *testing.T) {
	api := &fakeAPI{files: map[int]apiFile{3043174: jeiFile("https://cdn.example.com/jei.jar")}}
	cache := &memoryCache{mods: make(map[domain.CurseModInfo]domain.Mod)}
	src := newSource(t, api, "key", curseforge.WithCache(cache))

	_, err := src.ResolveFiles(context.Background(), []domain.CurseModInfo{jeiRef})
	require.NoError(t, err)
	require.Equal(t, 1, api.count())
	assert.Contains(t, cache.mods, jeiRef)

	mods, err := src.ResolveFiles(context.Background(), []domain.CurseModInfo{jeiRef})
	require.NoError(t, err)
	assert.Equal(t, "jei-1.16.5.jar", mods[0].Name)
	assert.Equal(t, 1, api.count(), "second resolution is served from the cache")

	// Cached entries need no API key
	offline := newSource(t, &fakeAPI{}, "", curseforge.WithCache(cache))
	_, err = offline.ResolveFiles(context.Background(), []domain.CurseModInfo{jeiRef})
	assert.NoError(t, err)
}

func TestResolveFiles_RequiresKey(t *testing.T) {
	api := &fakeAPI{}
	src := newSource(t, api, "")

	_, err := src.ResolveFiles(context.Background(), []domain.CurseModInfo{jeiRef})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Zero(t, api.count())
}

func TestResolveFiles_NotFound(t *testing.T) {
	wrongProject := jeiFile("https://cdn.example.com/jei.jar")
	wrongProject.ModID = 1

	for name, files := range map[string]map[int]apiFile{
		"unknown file":  {},
		"wrong project": {3043174: wrongProject},
	} {
		t.Run(name, func(t *testing.T) {
			src := newSource(t, &fakeAPI{files: files}, "key")
			_, err := src.ResolveFiles(context.Background(), []domain.CurseModInfo{jeiRef})
			assert.ErrorIs(t, err, domain.ErrModNotFound)
		})
	}
}

func TestResolveFiles_DownloadURLFallback(t *testing.T) {
	api := &fakeAPI{
		files: map[int]apiFile{3043174: jeiFile("")},
		urls:  map[int]string{3043174: "https://cdn.example.com/fallback.jar"},
	}
	src := newSource(t, api, "key")

	mods, err := src.ResolveFiles(context.Background(), []domain.CurseModInfo{jeiRef})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/fallback.jar", mods[0].DownloadURL)
}

func TestResolveFiles_DistributionDisabled(t *testing.T) {
	api := &fakeAPI{files: map[int]apiFile{3043174: jeiFile("")}}
	src := newSource(t, api, "key")

	_, err := src.ResolveFiles(context.Background(), []domain.CurseModInfo{jeiRef})
	require.Error(t, err)
	assert.ErrorIs(t, err, curseforge.ErrDistributionDisabled)
	assert.Contains(t, err.Error(), "Just Enough Items")
}
