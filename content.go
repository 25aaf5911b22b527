package gitmirror

import (
	"context"
	"fmt"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	fsb "github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/fsbridge"
)

// Exists reports whether path names a file or directory in the tree of rev.
// An empty rev means HEAD. An unresolvable rev is an error wrapping
// ErrUnknownRevision, never a false result.
func (r *Repository) Exists(ctx context.Context, path, rev string) (bool, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return false, err
	}

	c, err := resolveCommit(h, rev)
	if err != nil {
		return false, err
	}

	tree, err := c.Tree()
	if err != nil {
		return false, WrapError(err, "failed to read tree")
	}

	e, err := findEntry(tree, path)
	if err != nil {
		return false, WrapErrorf(err, "failed to look up %s", path)
	}
	return e != nil, nil
}

// Read returns the content of the file at path in the tree of rev. An empty
// rev means HEAD. A missing path yields ErrPathNotFound; an unresolvable rev
// yields ErrUnknownRevision.
func (r *Repository) Read(ctx context.Context, path, rev string) ([]byte, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}

	c, err := resolveCommit(h, rev)
	if err != nil {
		return nil, err
	}

	tree, err := c.Tree()
	if err != nil {
		return nil, WrapError(err, "failed to read tree")
	}

	return readBlob(tree, path)
}

// Export captures the working tree as of rev into an in-memory snapshot.
// See ExportTo.
func (r *Repository) Export(ctx context.Context, rev string) (*Snapshot, error) {
	return r.ExportTo(ctx, rev, fsb.NewInMemoryFS())
}

// ExportTo copies the working tree as of rev, store metadata excluded, into
// dst. dst must come from the fs/billy package, any other implementation
// fails with ErrInvalidOptions. For a rev other than HEAD the working
// directory is switched to rev, copied and switched back, discarding local
// modifications. If switching back fails the handle is dropped and the error
// wraps ErrInconsistentWorkspace.
func (r *Repository) ExportTo(ctx context.Context, rev string, dst fs.Filesystem) (*Snapshot, error) {
	raw, err := fsbridge.ToBillyFilesystem(dst)
	if err != nil {
		return nil, WrapError(ErrInvalidOptions, err.Error())
	}

	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}

	head, ok, err := r.headHash(h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, WrapError(ErrUnknownRevision, "mirror has no commits")
	}

	target, err := resolveCommit(h, rev)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Commit: newCommitRef(target), FS: dst, raw: raw}

	if target.Hash == head {
		if err := fsbridge.CopyTree(h.fs, raw); err != nil {
			return nil, WrapError(err, "failed to copy working tree")
		}
		return snap, nil
	}

	m := materializer{h: h}
	r.log.DebugContext(ctx, "exporting historical revision", "rev", target.Hash.String(), "head", head.String())

	copyErr := m.checkout(ctx, head, target.Hash, Overwrite)
	if copyErr == nil {
		copyErr = fsbridge.CopyTree(h.fs, raw)
	}

	// Restore regardless of the context state.
	if err := m.checkout(context.WithoutCancel(ctx), target.Hash, head, Overwrite); err != nil {
		r.invalidate(err)
		return nil, fmt.Errorf("%w: restore %s: %w", ErrInconsistentWorkspace, head, err)
	}

	if copyErr != nil {
		return nil, WrapErrorf(copyErr, "failed to export %s", target.Hash)
	}
	return snap, nil
}
