package curseforge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

const (
	defaultBaseURL = "https://api.curseforge.com"
)

// Client wraps the CurseForge REST API v1
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient creates a new CurseForge API client
func NewClient(httpClient *http.Client, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
}

// IsAuthenticated returns true if an API key is configured
func (c *Client) IsAuthenticated() bool {
	return c.apiKey != ""
}

// doRequest performs an HTTP request with authentication. A non-nil body is sent as JSON.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) (err error) {
	reqURL := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{URL: reqURL, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing response body: %w", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: CurseForge API key required", domain.ErrAuthRequired)

	case resp.StatusCode == http.StatusForbidden:
		// 403 means no key, a bad key, or an author who disabled third-party distribution
		if c.apiKey == "" {
			return fmt.Errorf("%w: CurseForge API key required", domain.ErrAuthRequired)
		}
		if strings.HasSuffix(path, "/download-url") {
			return ErrDistributionDisabled
		}
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if len(text) > 0 {
			return fmt.Errorf("%w: access denied (check API key): %s", domain.ErrAuthRequired, text)
		}
		return fmt.Errorf("%w: access denied (check API key is valid)", domain.ErrAuthRequired)

	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: resource not found", domain.ErrModNotFound)

	case resp.StatusCode != http.StatusOK:
		return &domain.NetworkError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// GetMod fetches a single project by ID
func (c *Client) GetMod(ctx context.Context, modID int) (*Mod, error) {
	path := fmt.Sprintf("/v1/mods/%d", modID)

	var resp APIResponse[Mod]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("getting mod: %w", err)
	}
	return &resp.Data, nil
}

// GetModFile fetches a specific file for a mod
func (c *Client) GetModFile(ctx context.Context, modID, fileID int) (*File, error) {
	path := fmt.Sprintf("/v1/mods/%d/files/%d", modID, fileID)

	var resp APIResponse[File]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("getting mod file: %w", err)
	}
	return &resp.Data, nil
}

// GetFiles fetches several files by ID in one request. Unknown IDs are left out of the result.
func (c *Client) GetFiles(ctx context.Context, fileIDs []int) ([]File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	var resp APIResponse[[]File]
	if err := c.doRequest(ctx, http.MethodPost, "/v1/mods/files", getFilesRequest{FileIDs: fileIDs}, &resp); err != nil {
		return nil, fmt.Errorf("getting files: %w", err)
	}
	return resp.Data, nil
}

// GetDownloadURL fetches the download URL for a mod file
func (c *Client) GetDownloadURL(ctx context.Context, modID, fileID int) (string, error) {
	path := fmt.Sprintf("/v1/mods/%d/files/%d/download-url", modID, fileID)

	var resp StringDownloadURL
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", fmt.Errorf("getting download URL: %w", err)
	}
	return resp.Data, nil
}
