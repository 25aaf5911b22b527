package gitmirror

import (
	"errors"
	"io"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// resolveCommit resolves rev to a commit, peeling annotated tags. An empty
// rev means HEAD.
func resolveCommit(h *handle, rev string) (*object.Commit, error) {
	if rev == "" {
		rev = string(plumbing.HEAD)
	}

	hash, err := h.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, WrapErrorf(ErrUnknownRevision, "resolve %q", rev)
	}

	c, err := peelToCommit(h, *hash)
	if err != nil {
		return nil, WrapErrorf(ErrUnknownRevision, "resolve %q", rev)
	}
	return c, nil
}

// peelToCommit follows tag objects until it reaches a commit. It returns
// plumbing.ErrObjectNotFound if hash is unknown and plumbing.ErrInvalidType
// if the chain ends at a tree or blob.
func peelToCommit(h *handle, hash plumbing.Hash) (*object.Commit, error) {
	for {
		obj, err := h.repo.Object(plumbing.AnyObject, hash)
		if err != nil {
			return nil, err
		}

		switch o := obj.(type) {
		case *object.Commit:
			return o, nil
		case *object.Tag:
			hash = o.Target
		default:
			return nil, plumbing.ErrInvalidType
		}
	}
}

// cleanTreePath normalizes a caller supplied path for tree lookups.
func cleanTreePath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
}

// findEntry walks p inside tree. It returns nil without error when the path
// does not exist or resolves to the zero identifier.
func findEntry(tree *object.Tree, p string) (*object.TreeEntry, error) {
	p = cleanTreePath(p)
	if p == "" {
		return &object.TreeEntry{Name: "", Mode: filemode.Dir, Hash: tree.Hash}, nil
	}

	e, err := tree.FindEntry(p)
	switch {
	case err == nil:
	case errors.Is(err, object.ErrEntryNotFound),
		errors.Is(err, object.ErrDirectoryNotFound),
		errors.Is(err, plumbing.ErrObjectNotFound):
		return nil, nil
	default:
		return nil, err
	}

	if e.Hash.IsZero() {
		return nil, nil
	}
	return e, nil
}

// readBlob returns the content of the file at p in tree.
func readBlob(tree *object.Tree, p string) ([]byte, error) {
	e, err := findEntry(tree, p)
	if err != nil {
		return nil, err
	}
	if e == nil || !e.Mode.IsFile() {
		return nil, WrapErrorf(ErrPathNotFound, "%s", p)
	}

	f, err := tree.TreeEntryFile(e)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, WrapErrorf(ErrPathNotFound, "%s", p)
		}
		return nil, err
	}

	rd, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	return io.ReadAll(rd)
}

// treeFiles returns the paths of all blobs in tree.
func treeFiles(tree *object.Tree) (map[string]plumbing.Hash, error) {
	files := make(map[string]plumbing.Hash)
	if tree == nil {
		return files, nil
	}

	err := tree.Files().ForEach(func(f *object.File) error {
		files[f.Name] = f.Hash
		return nil
	})
	return files, err
}
