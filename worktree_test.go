package gitmirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/fsbridge"
)

// TestAdd tests committing new and changed files.
func TestAdd(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	base := remote.commit("Initial commit", map[string]string{"a.txt": "a"})

	when := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := syncedMirror(t, remote, func(o *Options) { o.Committer.When = when })

	ref, err := repo.Add(ctx, "docs: add guide", map[string][]byte{
		"a.txt":               []byte("changed"),
		"docs/guide/intro.md": []byte("# Intro\n"),
	})
	require.NoError(t, err)
	require.NotNil(t, ref)

	assert.Equal(t, "docs: add guide", ref.Message)
	assert.Equal(t, "Mirror User", ref.Author.Name)
	assert.Equal(t, "mirror@example.com", ref.Committer.Email)
	assert.True(t, when.Equal(ref.Committer.When))
	assert.Equal(t, []plumbing.Hash{base}, ref.Parents)
	require.NotNil(t, ref.Conventional)
	assert.Equal(t, "docs", ref.Conventional.Type)

	head, ok, err := repo.Head(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ref.Hash, head.Hash)

	data, err := repo.Read(ctx, "docs/guide/intro.md", "")
	require.NoError(t, err)
	assert.Equal(t, "# Intro\n", string(data))

	data, err = repo.Read(ctx, "a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "changed", string(data))

	assert.Equal(t, "changed", readWorkspaceFile(t, repo, "a.txt"))

	entries, err := os.ReadDir(filepath.Join(repo.Workspace(), "docs", "guide"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary or backup files should remain")
}

// TestAddNoop tests the cases that create no commit.
func TestAddNoop(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	remote.commit("Initial commit", map[string]string{"a.txt": "a"})
	repo := syncedMirror(t, remote)

	ref, err := repo.Add(ctx, "empty", nil)
	require.NoError(t, err)
	assert.Nil(t, ref)

	ref, err = repo.Add(ctx, "same content", map[string][]byte{"a.txt": []byte("a")})
	require.NoError(t, err)
	assert.Nil(t, ref)
}

// TestAddInvalidPath tests that bad paths are rejected before anything is
// written.
func TestAddInvalidPath(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "absolute", path: "/etc/passwd"},
		{name: "escaping", path: "../outside.txt"},
		{name: "store", path: ".git/config"},
		{name: "empty", path: ""},
		{name: "reserved prefix", path: "docs/.gitmirror-notes.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			remote := newTestRemote(t)
			remote.commit("Initial commit", map[string]string{"a.txt": "a"})
			repo := syncedMirror(t, remote)

			ref, err := repo.Add(ctx, "bad", map[string][]byte{
				"ok.txt": []byte("fine"),
				tt.path:  []byte("bad"),
			})
			require.Error(t, err)
			assert.Nil(t, ref)
			assert.True(t, errors.Is(err, ErrInvalidPath), "got %v", err)

			_, statErr := os.Stat(filepath.Join(repo.Workspace(), "ok.txt"))
			assert.True(t, os.IsNotExist(statErr), "nothing should be written")
		})
	}
}

// TestAddRemovesScratchFiles tests that files left behind by an interrupted
// write never reach a snapshot and are cleaned up by the next Add.
func TestAddRemovesScratchFiles(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	remote.commit("Initial commit", map[string]string{"docs/index.md": "i"})
	repo := syncedMirror(t, remote)

	stale := "docs/" + fsbridge.ScratchPrefix + "bak-index.md12345"
	writeWorkspaceFile(t, repo, stale, "old")

	snap, err := repo.Export(ctx, "")
	require.NoError(t, err)
	files, err := snap.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/index.md"}, files)

	ref, err := repo.Add(ctx, "docs: update index", map[string][]byte{"docs/index.md": []byte("new")})
	require.NoError(t, err)
	require.NotNil(t, ref)

	_, err = os.Stat(filepath.Join(repo.Workspace(), filepath.FromSlash(stale)))
	assert.True(t, os.IsNotExist(err), "stale backup should be removed")

	entries, err := os.ReadDir(filepath.Join(repo.Workspace(), "docs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.md", entries[0].Name())
}

// TestAddOnEmptyMirror tests that the first commit of an empty mirror
// creates the watched branch.
func TestAddOnEmptyMirror(t *testing.T) {
	ctx := context.Background()
	repo := newTestMirror(t, newTestRemote(t).URL(), func(o *Options) { o.Branch = "main" })

	ref, err := repo.Add(ctx, "Initial commit", map[string][]byte{"a.txt": []byte("a")})
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Empty(t, ref.Parents)

	h, err := repo.handle(ctx)
	require.NoError(t, err)
	head, err := h.repo.Head()
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main", head.Name().String())
}

// TestRemove tests committing the removal of files and directories.
func TestRemove(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	remote.commit("Initial commit", map[string]string{
		"keep.txt":         "keep",
		"old.txt":          "old",
		"drafts/a.md":      "a",
		"drafts/deep/b.md": "b",
	})
	repo := syncedMirror(t, remote)

	ref, err := repo.Remove(ctx, "chore: clean up", "old.txt", "drafts")
	require.NoError(t, err)
	require.NotNil(t, ref)

	for _, p := range []string{"old.txt", "drafts/a.md", "drafts"} {
		ok, err := repo.Exists(ctx, p, "")
		require.NoError(t, err)
		assert.False(t, ok, "%s should be gone from HEAD", p)

		_, statErr := os.Stat(filepath.Join(repo.Workspace(), filepath.FromSlash(p)))
		assert.True(t, os.IsNotExist(statErr), "%s should be gone from disk", p)
	}

	ok, err := repo.Exists(ctx, "drafts/a.md", "HEAD~1")
	require.NoError(t, err)
	assert.True(t, ok, "history keeps removed files")

	ok, err = repo.Exists(ctx, "keep.txt", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestRemoveMissingFile tests that a missing path fails the whole call
// before anything is staged.
func TestRemoveMissingFile(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	first := remote.commit("Initial commit", map[string]string{"a.txt": "a"})
	repo := syncedMirror(t, remote)

	ref, err := repo.Remove(ctx, "remove", "a.txt", "missing.txt")
	require.Error(t, err)
	assert.Nil(t, ref)
	assert.True(t, errors.Is(err, ErrMissingFile), "got %v", err)

	assert.Equal(t, "a", readWorkspaceFile(t, repo, "a.txt"))

	head, _, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, head.Hash)

	_, err = repo.Remove(ctx, "remove", "/a.txt")
	assert.True(t, errors.Is(err, ErrInvalidPath), "got %v", err)
}

// TestRemoveUntracked tests that removing an untracked file deletes it
// without creating a commit.
func TestRemoveUntracked(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	remote.commit("Initial commit", map[string]string{"a.txt": "a"})
	repo := syncedMirror(t, remote)

	writeWorkspaceFile(t, repo, "scratch.txt", "tmp")

	ref, err := repo.Remove(ctx, "remove scratch", "scratch.txt")
	require.NoError(t, err)
	assert.Nil(t, ref)

	_, statErr := os.Stat(filepath.Join(repo.Workspace(), "scratch.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
