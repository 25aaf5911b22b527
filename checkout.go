package gitmirror

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/fsbridge"
)

// CheckoutMode selects how a checkout treats local modifications.
type CheckoutMode int

const (
	// FailOnConflict aborts before writing anything if a local
	// modification would be overwritten.
	FailOnConflict CheckoutMode = iota

	// Overwrite discards local modifications.
	Overwrite
)

// materializer writes trees onto the working directory of a handle.
type materializer struct {
	h *handle
}

// checkout makes the index and working tree match the tree of commit to.
// from is the commit currently materialized, or the zero hash if none.
// Files tracked at from but absent at to are removed. HEAD and branch
// references are left exactly as they were.
func (m materializer) checkout(ctx context.Context, from, to plumbing.Hash, mode CheckoutMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := m.h.repo.CommitObject(to)
	if err != nil {
		return WrapErrorf(ErrUnknownRevision, "checkout %s", to)
	}
	targetTree, err := target.Tree()
	if err != nil {
		return WrapError(err, "failed to read target tree")
	}

	if mode == FailOnConflict {
		conflicts, err := m.conflicts(targetTree)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return WrapErrorf(ErrCheckoutConflict, "%d path(s), first %s", len(conflicts), conflicts[0])
		}
	}

	var previous map[string]plumbing.Hash
	if !from.IsZero() {
		if c, err := m.h.repo.CommitObject(from); err == nil {
			if t, err := c.Tree(); err == nil {
				previous, _ = treeFiles(t)
			}
		}
	}

	if err := m.resetKeepingRefs(to); err != nil {
		return err
	}

	return m.removeStale(previous, targetTree)
}

// resetKeepingRefs runs a hard reset to commit with HEAD temporarily
// detached, so only the index and working tree change. HEAD is restored
// afterwards and the branch it points to is never touched.
func (m materializer) resetKeepingRefs(commit plumbing.Hash) error {
	s := m.h.repo.Storer

	head, err := s.Reference(plumbing.HEAD)
	if err != nil {
		return WrapError(err, "failed to read HEAD")
	}

	if err := s.SetReference(plumbing.NewHashReference(plumbing.HEAD, commit)); err != nil {
		return WrapError(err, "failed to detach HEAD")
	}

	resetErr := m.h.wt.Reset(&git.ResetOptions{Commit: commit, Mode: git.HardReset})

	if err := s.SetReference(head); err != nil {
		return WrapError(err, "failed to restore HEAD")
	}
	if resetErr != nil {
		return WrapError(resetErr, "failed to reset worktree")
	}
	return nil
}

// conflicts lists dirty paths whose on-disk content differs from the target
// tree. Those are exactly the modifications a hard reset would destroy.
func (m materializer) conflicts(target *object.Tree) ([]string, error) {
	status, err := m.h.wt.Status()
	if err != nil {
		return nil, WrapError(err, "failed to compute worktree status")
	}

	var out []string
	for p, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}

		want := plumbing.ZeroHash
		if e, err := findEntry(target, p); err == nil && e != nil {
			want = e.Hash
		}

		have, err := m.diskHash(p)
		if err != nil {
			return nil, err
		}
		// A locally deleted file loses nothing when it is restored.
		if !have.IsZero() && have != want {
			out = append(out, p)
		}
	}

	sort.Strings(out)
	return out, nil
}

// dirty lists tracked paths with unstaged or staged modifications.
func (m materializer) dirty() ([]string, error) {
	status, err := m.h.wt.Status()
	if err != nil {
		return nil, WrapError(err, "failed to compute worktree status")
	}

	var out []string
	for p, st := range status {
		if st.Worktree == git.Untracked {
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// diskHash returns the blob hash of the file at p, or the zero hash if the
// file does not exist.
func (m materializer) diskHash(p string) (plumbing.Hash, error) {
	fi, err := m.h.fs.Lstat(p)
	if err != nil {
		return plumbing.ZeroHash, nil
	}
	if fi.IsDir() {
		return plumbing.ZeroHash, nil
	}

	data, err := util.ReadFile(m.h.fs, p)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("read %s: %w", p, err)
	}
	return plumbing.ComputeHash(plumbing.BlobObject, data), nil
}

// removeStale deletes files of the previous tree that the target tree does
// not contain, then prunes directories left empty.
func (m materializer) removeStale(previous map[string]plumbing.Hash, target *object.Tree) error {
	if len(previous) == 0 {
		return nil
	}

	current, err := treeFiles(target)
	if err != nil {
		return WrapError(err, "failed to list target tree")
	}

	for p := range previous {
		if _, ok := current[p]; ok {
			continue
		}
		if err := m.h.fs.Remove(p); err != nil && !isNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		fsbridge.PruneEmptyDirs(m.h.fs, path.Dir(p))
	}
	return nil
}
