package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	fsb "github.com/input-output-hk/catalyst-forge-libs/fs/billy"
)

const validConfig = `repository: https://github.com/example/catalog.git
workspace: catalog
branch: main
recoveryFallback: true
pollInterval: 30
dataDir: /var/lib/gitmirror
logLevel: debug
committer:
  name: Catalog Bot
  email: bot@example.com
auth:
  token: ${GITMIRROR_TEST_TOKEN}
  allowedHosts:
    - github.com
`

// setupTestFS creates a memory filesystem holding the given files.
func setupTestFS(t *testing.T, files map[string]string) fs.Filesystem {
	t.Helper()
	fsys := fsb.NewInMemoryFS()

	for name, content := range files {
		if err := fsys.WriteFile(name, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write fixture %s to memory fs: %v", name, err)
		}
	}

	return fsys
}

// TestLoad_Valid tests loading a complete configuration.
func TestLoad_Valid(t *testing.T) {
	t.Setenv("GITMIRROR_TEST_TOKEN", "s3cret")
	fs := setupTestFS(t, map[string]string{"mirror.yaml": validConfig})

	cfg, err := Load(context.Background(), fs, "mirror.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Repository != "https://github.com/example/catalog.git" {
		t.Errorf("Repository = %q", cfg.Repository)
	}
	if cfg.Workspace != "catalog" || cfg.Branch != "main" {
		t.Errorf("Workspace/Branch = %q/%q", cfg.Workspace, cfg.Branch)
	}
	if !cfg.RecoveryFallback {
		t.Error("RecoveryFallback should be true")
	}
	if cfg.PollInterval.Std() != 30*time.Second {
		t.Errorf("PollInterval = %v; want 30s", cfg.PollInterval.Std())
	}
	if cfg.Committer.Name != "Catalog Bot" || cfg.Committer.Email != "bot@example.com" {
		t.Errorf("Committer = %+v", cfg.Committer)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("Auth.Token = %q; want expanded value", cfg.Auth.Token)
	}
	if len(cfg.Auth.AllowedHosts) != 1 || cfg.Auth.AllowedHosts[0] != "github.com" {
		t.Errorf("Auth.AllowedHosts = %v", cfg.Auth.AllowedHosts)
	}
}

// TestLoad_SkipExpansion tests that references survive when expansion is off.
func TestLoad_SkipExpansion(t *testing.T) {
	t.Setenv("GITMIRROR_TEST_TOKEN", "s3cret")
	fs := setupTestFS(t, map[string]string{"mirror.yaml": validConfig})

	cfg, err := LoadWithOptions(context.Background(), fs, "mirror.yaml", LoadOptions{SkipExpansion: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.Token != "${GITMIRROR_TEST_TOKEN}" {
		t.Errorf("Auth.Token = %q; want raw reference", cfg.Auth.Token)
	}
}

// TestLoad_Errors tests the failure modes of loading.
func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    LoadOptions
		wantErr error
	}{
		{
			name:    "unknown key",
			content: "repository: file:///r\nworkspace: w\ncolour: blue\n",
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "malformed yaml",
			content: "repository: [unterminated\n",
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "bad duration",
			content: "repository: file:///r\nworkspace: w\npollInterval: soon\n",
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "missing workspace",
			content: "repository: file:///r\n",
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "empty document",
			content: "",
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "empty document without validation",
			content: "",
			opts:    LoadOptions{SkipValidation: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := setupTestFS(t, map[string]string{"mirror.yaml": tt.content})

			_, err := LoadWithOptions(context.Background(), fs, "mirror.yaml", tt.opts)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Load() = %v; want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoad_NotFound tests that a missing file is reported as ErrNotFound.
func TestLoad_NotFound(t *testing.T) {
	fs := setupTestFS(t, nil)

	_, err := Load(context.Background(), fs, "missing.yaml")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() = %v; want ErrNotFound", err)
	}
}

// TestLoad_OSFilesystem tests loading through a filesystem rooted at /.
func TestLoad_OSFilesystem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.yaml")
	if err := os.WriteFile(path, []byte("repository: https://example.com/r.git\nworkspace: w\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(context.Background(), fsb.NewOSFS("/"), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Repository != "https://example.com/r.git" || cfg.Workspace != "w" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	_, err = Load(context.Background(), fsb.NewOSFS("/"), path+".missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() = %v; want ErrNotFound", err)
	}
}

// TestLoad_Cancelled tests that a cancelled context stops loading.
func TestLoad_Cancelled(t *testing.T) {
	fs := setupTestFS(t, map[string]string{"mirror.yaml": validConfig})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Load(ctx, fs, "mirror.yaml"); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() = %v; want context.Canceled", err)
	}
}
