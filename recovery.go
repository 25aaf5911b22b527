package gitmirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/executor"
	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/fsbridge"
)

// indexLock is the lock file an interrupted store operation leaves behind.
const indexLock = "index.lock"

// runRecovery forcibly resets the workspace with the external git binary after a
// failed synchronization. A stale index lock is removed first. The reset
// targets the remote tracking tip when one has been fetched, otherwise the
// current HEAD. The exit status of git is logged and not acted upon; only a
// failure to remove the lock or to start the process is returned.
func (r *Repository) runRecovery(ctx context.Context, h *handle, cause error) error {
	r.log.WarnContext(ctx, "synchronization failed, running recovery", "error", cause)

	tracking := plumbing.NewRemoteReferenceName(DefaultRemoteName, r.opts.Branch)
	_, tipErr := h.repo.Reference(tracking, true)

	// The external process rewrites the store behind go-git's back.
	r.invalidate(cause)

	lock := filepath.Join(r.opts.Workspace, fsbridge.DotGit, indexLock)
	if err := os.Remove(lock); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrRecovery, lock, err)
	}

	args := []string{"reset", "--hard"}
	if tipErr == nil {
		args = append(args, DefaultRemoteName+"/"+r.opts.Branch)
	}

	res, err := r.opts.Git.Execute(ctx, args, executor.WithWorkingDir(r.opts.Workspace))
	if res == nil {
		return fmt.Errorf("%w: %v", ErrRecovery, err)
	}

	if res.ExitCode != 0 {
		r.log.ErrorContext(ctx, "recovery command exited with failure",
			"args", args, "exit_code", res.ExitCode, "stderr", res.Stderr)
		if res.ExitCode < 0 {
			return fmt.Errorf("%w: %v", ErrRecovery, err)
		}
		return nil
	}

	r.log.InfoContext(ctx, "recovery completed", "args", args)
	return nil
}
