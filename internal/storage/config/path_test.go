package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

func TestParseInstancePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		setup   func(t *testing.T) string // returns path to use
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid absolute path to existing file",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				path := filepath.Join(dir, "instance.yaml")
				if err := os.WriteFile(path, []byte("dir: /games/pack"), 0644); err != nil {
					t.Fatalf("failed to create test file: %v", err)
				}
				return path
			},
			wantErr: false,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
			errMsg:  "instance path cannot be empty",
		},
		{
			name:    "path with parent directory traversal",
			path:    "/etc/../etc/instance.yaml",
			wantErr: true,
			errMsg:  "instance path contains invalid traversal",
		},
		{
			name: "path to non-existent file",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				return filepath.Join(dir, "nonexistent.yaml")
			},
			wantErr: true,
			errMsg:  "instance file does not exist",
		},
		{
			name: "path to directory instead of file",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			wantErr: true,
			errMsg:  "instance path is a directory, not a file",
		},
		{
			name: "path with unsupported extension",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				path := filepath.Join(dir, "instance.json")
				if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
					t.Fatalf("failed to create test file: %v", err)
				}
				return path
			},
			wantErr: true,
			errMsg:  "instance file must have .yaml or .yml extension",
		},
		{
			name: "valid path with .yml extension",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				path := filepath.Join(dir, "instance.yml")
				if err := os.WriteFile(path, []byte("dir: /games/pack"), 0644); err != nil {
					t.Fatalf("failed to create test file: %v", err)
				}
				return path
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if tt.setup != nil {
				path = tt.setup(t)
			}

			got, err := ParseInstancePath(path)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseInstancePath(%q) expected error, got nil", path)
					return
				}
				if !errors.Is(err, domain.ErrInvalidConfig) {
					t.Errorf("ParseInstancePath(%q) error %v does not wrap ErrInvalidConfig", path, err)
				}
				if tt.errMsg != "" && !strings.HasSuffix(err.Error(), tt.errMsg) {
					t.Errorf("ParseInstancePath(%q) error = %q, want suffix %q", path, err.Error(), tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Errorf("ParseInstancePath(%q) unexpected error: %v", path, err)
				return
			}

			if got != path {
				t.Errorf("ParseInstancePath(%q) = %q, want %q", path, got, path)
			}
		})
	}
}

func TestParseInstancePath_RelativeIsMadeAbsolute(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "instance.yaml"), []byte("dir: x"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	got, err := ParseInstancePath("instance.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(got) || filepath.Base(got) != "instance.yaml" {
		t.Errorf("ParseInstancePath returned %q", got)
	}
}
