package curseforge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DonovanMods/flowupdater/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), apiKey)
	client.baseURL = server.URL
	return client
}

func TestClient_GetFiles(t *testing.T) {
	client := newTestClient(t, "test-api-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/mods/files", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body getFilesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []int{3043174, 3222222}, body.FileIDs)

		_, _ = w.Write([]byte(`{
			"data": [{
				"id": 3043174,
				"modId": 238222,
				"fileName": "jei-1.16.5-7.6.1.71.jar",
				"fileLength": 850000,
				"downloadUrl": "https://edge.forgecdn.net/files/3043/174/jei-1.16.5-7.6.1.71.jar",
				"hashes": [{"value": "0123", "algo": 2}, {"value": "abcd", "algo": 1}]
			}]
		}`))
	})

	files, err := client.GetFiles(context.Background(), []int{3043174, 3222222})
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, 238222, files[0].ModID)
	assert.Equal(t, "jei-1.16.5-7.6.1.71.jar", files[0].FileName)
	assert.Equal(t, int64(850000), files[0].FileLength)
	assert.Equal(t, "abcd", files[0].SHA1())
}

func TestClient_GetFiles_Empty(t *testing.T) {
	client := newTestClient(t, "key", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	files, err := client.GetFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestClient_GetModFile(t *testing.T) {
	client := newTestClient(t, "test-api-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mods/238222/files/3043174", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": {"id": 3043174, "modId": 238222, "fileName": "jei.jar"}}`))
	})

	file, err := client.GetModFile(context.Background(), 238222, 3043174)
	require.NoError(t, err)
	assert.Equal(t, "jei.jar", file.FileName)
	assert.Empty(t, file.SHA1())
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		path   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			apiKey: "bad",
			status: http.StatusUnauthorized,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrAuthRequired) },
		},
		{
			name:   "forbidden without key",
			status: http.StatusForbidden,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrAuthRequired) },
		},
		{
			name:   "forbidden download url",
			apiKey: "key",
			path:   "download-url",
			status: http.StatusForbidden,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrDistributionDisabled) },
		},
		{
			name:   "not found",
			apiKey: "key",
			status: http.StatusNotFound,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrModNotFound) },
		},
		{
			name:   "server error",
			apiKey: "key",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrNetwork)
				assert.Contains(t, err.Error(), "502")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.apiKey, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			var err error
			if tt.path == "download-url" {
				_, err = client.GetDownloadURL(context.Background(), 1, 2)
			} else {
				_, err = client.GetMod(context.Background(), 1)
			}
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_GetDownloadURL(t *testing.T) {
	client := newTestClient(t, "key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mods/238222/files/3043174/download-url", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": "https://edge.forgecdn.net/files/3043/174/jei.jar"}`))
	})

	url, err := client.GetDownloadURL(context.Background(), 238222, 3043174)
	require.NoError(t, err)
	assert.Equal(t, "https://edge.forgecdn.net/files/3043/174/jei.jar", url)
}
