package gitmirror

import (
	"context"
	"errors"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Log lists the commits reachable from to but not from from, newest first by
// committer time. A nil from lists the whole history of to down to its root
// commits. The result never contains from itself.
func (r *Repository) Log(ctx context.Context, from *plumbing.Hash, to plumbing.Hash) ([]CommitRef, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}
	return logRange(ctx, h, from, to)
}

func logRange(ctx context.Context, h *handle, from *plumbing.Hash, to plumbing.Hash) ([]CommitRef, error) {
	var (
		iter object.CommitIter
		err  error
	)

	if from == nil {
		iter, err = h.repo.Log(&git.LogOptions{From: to, Order: git.LogOrderCommitterTime})
		if err != nil {
			return nil, WrapErrorf(ErrUnknownRevision, "log from %s", to)
		}
	} else {
		start, err := h.repo.CommitObject(to)
		if err != nil {
			return nil, WrapErrorf(ErrUnknownRevision, "log from %s", to)
		}

		seen, err := ancestors(h, *from)
		if err != nil {
			return nil, err
		}
		iter = object.NewCommitIterCTime(start, seen, nil)
	}
	defer iter.Close()

	var commits []CommitRef
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, newCommitRef(c))
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to walk history")
	}

	return commits, nil
}

// ancestors returns the set of commits reachable from hash, hash included.
// An unknown hash yields an empty set so the whole history of the other
// boundary is reported.
func ancestors(h *handle, hash plumbing.Hash) (map[plumbing.Hash]bool, error) {
	seen := make(map[plumbing.Hash]bool)

	c, err := h.repo.CommitObject(hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return seen, nil
	}
	if err != nil {
		return nil, WrapError(err, "failed to read commit")
	}

	iter := object.NewCommitPreorderIter(c, nil, nil)
	defer iter.Close()

	for {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			return seen, nil
		}
		if err != nil {
			return nil, WrapError(err, "failed to walk history")
		}
		seen[c.Hash] = true
	}
}
