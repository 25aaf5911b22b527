// Package fsbridge binds the mirror's on-disk layout to go-billy filesystems:
// the object store under <workspace>/.git and the working tree itself.
package fsbridge

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// MinCacheSize is the floor applied to invalid object cache sizes.
const MinCacheSize = 100

// DotGit is the store directory name inside a workspace.
const DotGit = ".git"

// NewStorage creates a git storage with an LRU cache for objects.
func NewStorage(billyFS billy.Filesystem, cacheSize int) *filesystem.Storage {
	if cacheSize <= 0 {
		cacheSize = MinCacheSize
	}

	objCache := cache.NewObjectLRU(cache.FileSize(cacheSize))
	return filesystem.NewStorage(billyFS, objCache)
}

// Layout is a workspace split into its working tree and its store.
type Layout struct {
	Worktree billy.Filesystem
	Store    *filesystem.Storage
}

// Split chroots the store to .git inside worktree.
func Split(worktree billy.Filesystem, cacheSize int) (*Layout, error) {
	dotGit, err := worktree.Chroot(DotGit)
	if err != nil {
		return nil, err
	}
	return &Layout{
		Worktree: worktree,
		Store:    NewStorage(dotGit, cacheSize),
	}, nil
}

// HasStore reports whether worktree contains a store directory.
func HasStore(worktree billy.Filesystem) bool {
	fi, err := worktree.Stat(DotGit)
	return err == nil && fi.IsDir()
}
