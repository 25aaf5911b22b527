package gitmirror

import (
	"context"
	"errors"
	"os"
	"path"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/fsbridge"
)

// Add writes files into the working directory and commits them as one
// revision with message. Keys are paths relative to the workspace root;
// absolute or escaping paths fail with ErrInvalidPath before anything is
// written. Each file is written to a temporary sibling and swapped into
// place; leftovers of an interrupted earlier write are removed first. An empty map, or content identical to HEAD, creates no commit and
// returns nil.
func (r *Repository) Add(ctx context.Context, message string, files map[string][]byte) (*CommitRef, error) {
	if len(files) == 0 {
		return nil, nil
	}

	cleaned := make(map[string][]byte, len(files))
	for p, data := range files {
		c, err := fsbridge.CleanRelative(p)
		if err != nil {
			return nil, WrapError(ErrInvalidPath, err.Error())
		}
		if fsbridge.IsScratch(c) {
			return nil, WrapErrorf(ErrInvalidPath, "%q uses the reserved prefix %s", c, fsbridge.ScratchPrefix)
		}
		if _, dup := cleaned[c]; dup {
			return nil, WrapErrorf(ErrInvalidPath, "%q given twice", c)
		}
		cleaned[c] = data
	}

	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}

	stale, err := fsbridge.RemoveScratch(h.fs)
	if err != nil {
		return nil, WrapError(err, "failed to clean workspace")
	}
	if len(stale) > 0 {
		r.log.Warn("removed files left by an interrupted write", "files", stale)
	}

	paths := sortedKeys(cleaned)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := fsbridge.ReplaceFile(h.fs, p, cleaned[p], 0o644); err != nil {
			return nil, WrapErrorf(err, "failed to write %s", p)
		}
	}

	for _, p := range paths {
		if _, err := h.wt.Add(p); err != nil {
			return nil, WrapErrorf(err, "failed to stage %s", p)
		}
	}

	return r.commit(ctx, h, message)
}

// Remove deletes paths, files or whole directories, from the working
// directory and commits the removal as one revision. Every path must exist
// or the call fails with ErrMissingFile before anything is staged.
func (r *Repository) Remove(ctx context.Context, message string, paths ...string) (*CommitRef, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}

	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		c, err := fsbridge.CleanRelative(p)
		if err != nil {
			return nil, WrapError(ErrInvalidPath, err.Error())
		}
		if _, err := h.fs.Lstat(c); err != nil {
			return nil, WrapErrorf(ErrMissingFile, "%s", p)
		}
		cleaned = append(cleaned, c)
	}

	for _, p := range cleaned {
		if _, err := h.wt.Remove(p); err != nil {
			if !errors.Is(err, index.ErrEntryNotFound) {
				return nil, WrapErrorf(err, "failed to stage removal of %s", p)
			}
			// Untracked: nothing to stage, only the file goes.
			if err := h.fs.Remove(p); err != nil && !isNotExist(err) {
				return nil, WrapErrorf(err, "failed to remove %s", p)
			}
		}
		// Untracked leftovers keep a removed directory alive otherwise.
		if err := util.RemoveAll(h.fs, p); err != nil {
			return nil, WrapErrorf(err, "failed to remove %s", p)
		}
		fsbridge.PruneEmptyDirs(h.fs, path.Dir(p))
	}

	return r.commit(ctx, h, message)
}

// commit records the index as a new revision on the current branch. It
// returns nil if the index matches HEAD.
func (r *Repository) commit(ctx context.Context, h *handle, message string) (*CommitRef, error) {
	sig := r.signature()
	hash, err := h.wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if errors.Is(err, git.ErrEmptyCommit) {
		r.log.DebugContext(ctx, "nothing to commit")
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(err, "failed to commit")
	}

	c, err := h.repo.CommitObject(hash)
	if err != nil {
		return nil, WrapError(err, "failed to read new commit")
	}

	ref := newCommitRef(c)
	r.log.InfoContext(ctx, "committed", "commit", ref.String(), "subject", ref.Subject())
	return &ref, nil
}

func (r *Repository) signature() *object.Signature {
	when := r.opts.Committer.When
	if when.IsZero() {
		when = time.Now()
	}
	return &object.Signature{Name: r.opts.Committer.Name, Email: r.opts.Committer.Email, When: when}
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
