package gitmirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Update brings the mirror up to date with the watched branch of the remote
// and returns the commits that became reachable from HEAD, newest first.
//
// The first synchronization fetches the remote and checks out the branch tip.
// Later ones pull the branch into the local branch, fast-forward only. ok is
// false when there is nothing to mirror yet: the branch does not exist on
// the remote or the remote is empty. An unchanged HEAD yields ok == true and
// an empty list.
//
// When synchronization fails and Options.Recovery is set, the workspace is
// reset with the git binary and the update continues with whatever HEAD the
// reset produced. Otherwise the failure is returned wrapping ErrSync.
func (r *Repository) Update(ctx context.Context) ([]CommitRef, bool, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return nil, false, err
	}

	oldHead, hadHead, err := r.headHash(h)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrSync, err)
	}

	var syncErr error
	if hadHead {
		r.log.DebugContext(ctx, "pulling", "head", oldHead.String())
		syncErr = r.pull(ctx, h)
	} else {
		r.log.DebugContext(ctx, "mirror is empty, fetching")
		var found bool
		found, syncErr = r.initialSync(ctx, h)
		if syncErr == nil && !found {
			r.log.DebugContext(ctx, "branch not present on remote")
			return nil, false, nil
		}
	}

	if syncErr != nil {
		if !r.opts.Recovery {
			r.invalidate(syncErr)
			return nil, false, fmt.Errorf("%w: %w", ErrSync, syncErr)
		}

		if err := r.runRecovery(ctx, h, syncErr); err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrSync, err)
		}

		h, err = r.handle(ctx)
		if err != nil {
			return nil, false, err
		}
	}

	newHead, ok, err := r.headHash(h)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrSync, err)
	}
	if !ok {
		return nil, false, nil
	}

	if hadHead && newHead == oldHead {
		r.log.DebugContext(ctx, "already up to date", "head", newHead.String())
		return []CommitRef{}, true, nil
	}

	var from *plumbing.Hash
	if hadHead {
		from = &oldHead
	}

	commits, err := logRange(ctx, h, from, newHead)
	if err != nil {
		return nil, false, err
	}

	r.log.InfoContext(ctx, "mirror updated", "head", newHead.String(), "commits", len(commits))
	return commits, true, nil
}

// initialSync fetches the remote into an empty mirror and checks out the tip
// of the watched branch. found is false if the remote has no such branch.
func (r *Repository) initialSync(ctx context.Context, h *handle) (bool, error) {
	err := r.fetch(ctx, h)
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	tracking := plumbing.NewRemoteReferenceName(DefaultRemoteName, r.opts.Branch)
	tip, err := h.repo.Reference(tracking, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, WrapErrorf(err, "failed to read %s", tracking)
	}

	if err := (materializer{h: h}).checkout(ctx, plumbing.ZeroHash, tip.Hash(), FailOnConflict); err != nil {
		return true, err
	}

	branch := plumbing.NewBranchReferenceName(r.opts.Branch)
	if err := h.repo.Storer.SetReference(plumbing.NewHashReference(branch, tip.Hash())); err != nil {
		return true, WrapError(err, "failed to create branch")
	}
	if err := h.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch)); err != nil {
		return true, WrapError(err, "failed to set HEAD")
	}

	return true, nil
}

// pull fetches and fast-forwards the watched branch. The fetch happens first
// so a recovery after a refused merge resets to the fresh tip. The merge is
// refused when tracked files carry local modifications, since go-git moves
// the branch before it discovers them.
func (r *Repository) pull(ctx context.Context, h *handle) error {
	if err := r.fetch(ctx, h); err != nil {
		return err
	}

	dirty, err := (materializer{h: h}).dirty()
	if err != nil {
		return err
	}
	if len(dirty) > 0 {
		return WrapErrorf(ErrCheckoutConflict, "local changes in %d path(s), first %s", len(dirty), dirty[0])
	}

	auth, err := r.authFor(r.Remote())
	if err != nil {
		return err
	}

	err = h.wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    DefaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(r.opts.Branch),
		Auth:          auth,
		Progress:      r.opts.Progress,
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return WrapError(err, "pull failed")
}

// fetch updates the remote tracking references of origin. An up to date
// remote is not an error.
func (r *Repository) fetch(ctx context.Context, h *handle) error {
	auth, err := r.authFor(r.Remote())
	if err != nil {
		return err
	}

	err = h.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: DefaultRemoteName,
		Auth:       auth,
		Progress:   r.opts.Progress,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return err
	default:
		return WrapError(err, "fetch failed")
	}
}

// authFor resolves credentials for remote. Nil means anonymous access.
//
//nolint:ireturn // go-git requires transport.AuthMethod
func (r *Repository) authFor(remote string) (transport.AuthMethod, error) {
	if r.opts.Auth == nil {
		return nil, nil
	}
	m, err := r.opts.Auth.Method(remote)
	if err != nil {
		return nil, WrapError(err, "failed to get authentication method")
	}
	return m, nil
}
