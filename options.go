package gitmirror

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/executor"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultRemoteName is the single remote every mirror tracks.
	DefaultRemoteName = "origin"

	// DefaultBranch is the branch watched when none is configured.
	DefaultBranch = "master"

	// DefaultAppName names the directory below the XDG data home that
	// anchors relative workspaces.
	DefaultAppName = "gitmirror"
)

// AuthProvider resolves authentication methods for remote operations.
type AuthProvider interface {
	// Method returns the transport.AuthMethod for the given remote URL.
	// Returns nil if no authentication is needed for this URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// CommandRunner runs a program with arguments. It is the process-spawn
// seam used by the recovery fallback.
type CommandRunner interface {
	Execute(ctx context.Context, args []string, opts ...executor.Option) (*executor.Result, error)
}

// Signature identifies the author and committer of commits and annotated
// tags created by the mirror.
type Signature struct {
	// Name is the author's or committer's name.
	Name string

	// Email is the author's or committer's email address.
	Email string

	// When is the timestamp for the signature. Zero means "now".
	When time.Time
}

// Options configures a mirrored repository.
type Options struct {
	// Workspace is the REQUIRED working directory of the mirror. A relative
	// path is resolved against DataDir.
	Workspace string

	// DataDir anchors relative workspace paths.
	// Defaults to $XDG_DATA_HOME/gitmirror.
	DataDir string

	// Remote is the REQUIRED URL of the tracked remote. file: URLs are
	// normalized, see NormalizeRemoteURL.
	Remote string

	// Branch is the watched branch name. Defaults to DefaultBranch.
	Branch string

	// Recovery enables the out-of-process reset fallback when a
	// synchronization fails.
	Recovery bool

	// Auth is an optional provider that resolves per-URL AuthMethod.
	Auth AuthProvider

	// Git runs the external git binary for the recovery fallback.
	// Defaults to executor.NewWrappedExecutor("git").
	Git CommandRunner

	// Committer signs commits and annotated tags.
	// Defaults to "gitmirror <gitmirror@localhost>".
	Committer Signature

	// StorerCacheSize sets the LRU objects cache entries.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int

	// Progress receives sideband output of network operations. Optional.
	Progress io.Writer

	// Logger is an optional structured logger. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.Workspace == "" {
		return WrapError(ErrWorkspace, "workspace is required")
	}

	if o.Remote == "" {
		return WrapError(ErrInvalidOptions, "remote URL is required")
	}

	if strings.ContainsAny(o.Branch, " ~^:?*[\\") || strings.HasPrefix(o.Branch, "-") {
		return WrapErrorf(ErrInvalidRef, "invalid branch name %q", o.Branch)
	}

	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidOptions, "StorerCacheSize cannot be negative")
	}

	return nil
}

// applyDefaults sets default values for any unset fields in Options.
func (o *Options) applyDefaults() {
	if o.Branch == "" {
		o.Branch = DefaultBranch
	}

	if o.DataDir == "" {
		o.DataDir = filepath.Join(xdg.DataHome, DefaultAppName)
	}

	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}

	if o.Git == nil {
		o.Git = executor.NewWrappedExecutor("git")
	}

	if o.Committer.Name == "" {
		o.Committer.Name = DefaultAppName
	}

	if o.Committer.Email == "" {
		o.Committer.Email = DefaultAppName + "@localhost"
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	o.Remote = NormalizeRemoteURL(o.Remote)
	o.Workspace = ResolveWorkspace(o.DataDir, o.Workspace)
}

// NormalizeRemoteURL rewrites a file: URL with fewer than three slashes
// after the scheme to the canonical file:/// form. Other URLs are returned
// unchanged.
func NormalizeRemoteURL(remote string) string {
	const scheme = "file:"
	if !strings.HasPrefix(remote, scheme) || strings.HasPrefix(remote, scheme+"///") {
		return remote
	}
	return scheme + "///" + strings.TrimLeft(strings.TrimPrefix(remote, scheme), "/")
}

// ResolveWorkspace returns workspace as an absolute, cleaned path. Relative
// paths are anchored at dataDir.
func ResolveWorkspace(dataDir, workspace string) string {
	if filepath.IsAbs(workspace) {
		return filepath.Clean(workspace)
	}
	return filepath.Join(dataDir, workspace)
}
