package fsbridge

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWorkspace(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		fs, err := OpenWorkspace(dir)
		require.NoError(t, err)
		require.NotNil(t, fs)

		fi, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	})

	t.Run("rejects regular file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		_, err := OpenWorkspace(file)
		assert.Error(t, err)
	})
}

func TestCleanRelative(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a.txt", want: "a.txt"},
		{in: "dir/./b.txt", want: "dir/b.txt"},
		{in: "dir/../c.txt", want: "c.txt"},
		{in: "/etc/passwd", wantErr: true},
		{in: "../outside", wantErr: true},
		{in: "a/../../outside", wantErr: true},
		{in: ".git/config", wantErr: true},
		{in: ".", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanRelative(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReplaceFile(t *testing.T) {
	fs := memfs.New()

	require.NoError(t, ReplaceFile(fs, "dir/file.txt", []byte("one"), 0o644))
	got, err := util.ReadFile(fs, "dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	require.NoError(t, ReplaceFile(fs, "dir/file.txt", []byte("two"), 0o644))
	got, err = util.ReadFile(fs, "dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := fs.ReadDir("dir")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary or backup files should remain")
}

// failingSwapFS fails the rename of a temporary file onto its final name.
type failingSwapFS struct {
	billy.Filesystem
}

func (f failingSwapFS) Rename(from, to string) error {
	if strings.HasPrefix(path.Base(from), ScratchPrefix+"tmp-") {
		return errors.New("rename refused")
	}
	return f.Filesystem.Rename(from, to)
}

func TestReplaceFile_SwapFailureRestoresOriginal(t *testing.T) {
	mem := memfs.New()
	require.NoError(t, util.WriteFile(mem, "dir/file.txt", []byte("original"), 0o644))

	err := ReplaceFile(failingSwapFS{mem}, "dir/file.txt", []byte("replacement"), 0o644)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rename refused")

	got, err := util.ReadFile(mem, "dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	entries, err := mem.ReadDir("dir")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.txt", entries[0].Name())
}

func TestReplaceFile_SwapFailureWithoutOriginal(t *testing.T) {
	mem := memfs.New()

	err := ReplaceFile(failingSwapFS{mem}, "new.txt", []byte("x"), 0o644)
	require.Error(t, err)

	entries, err := mem.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveScratch(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "docs/index.md", []byte("i"), 0o644))
	require.NoError(t, util.WriteFile(fs, "docs/"+ScratchPrefix+"bak-index.md", []byte("old"), 0o644))
	require.NoError(t, util.WriteFile(fs, ScratchPrefix+"tmp-123", []byte("partial"), 0o644))
	require.NoError(t, util.WriteFile(fs, ".git/"+ScratchPrefix+"keep", []byte("g"), 0o644))

	files, err := ListFiles(fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/index.md"}, files, "scratch files are not content")

	dst := memfs.New()
	require.NoError(t, CopyTree(fs, dst))
	_, err = dst.Stat("docs/" + ScratchPrefix + "bak-index.md")
	assert.True(t, os.IsNotExist(err))

	removed, err := RemoveScratch(fs)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ScratchPrefix + "tmp-123", "docs/" + ScratchPrefix + "bak-index.md"}, removed)

	_, err = fs.Stat("docs/" + ScratchPrefix + "bak-index.md")
	assert.True(t, os.IsNotExist(err))
	_, err = fs.Stat(".git/" + ScratchPrefix + "keep")
	assert.NoError(t, err, "the store directory is left alone")

	removed, err = RemoveScratch(fs)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestReplaceFile_Directory(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("taken", 0o755))

	err := ReplaceFile(fs, "taken", []byte("x"), 0o644)
	assert.Error(t, err)

	entries, err := fs.ReadDir(".")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPruneEmptyDirs(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("a/b/c", 0o755))
	require.NoError(t, util.WriteFile(fs, "a/keep.txt", []byte("k"), 0o644))

	PruneEmptyDirs(fs, "a/b/c")

	_, err := fs.Stat("a/b")
	assert.True(t, os.IsNotExist(err))
	_, err = fs.Stat("a/keep.txt")
	assert.NoError(t, err)
}

func TestCopyTreeAndListFiles(t *testing.T) {
	src := memfs.New()
	require.NoError(t, util.WriteFile(src, "root.txt", []byte("r"), 0o644))
	require.NoError(t, util.WriteFile(src, "sub/nested.txt", []byte("n"), 0o644))
	require.NoError(t, util.WriteFile(src, ".git/HEAD", []byte("ref"), 0o644))
	require.NoError(t, src.MkdirAll("empty", 0o755))

	dst := memfs.New()
	require.NoError(t, CopyTree(src, dst))

	files, err := ListFiles(dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"root.txt", "sub/nested.txt"}, files)

	fi, err := dst.Stat("empty")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	srcFiles, err := ListFiles(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"root.txt", "sub/nested.txt"}, srcFiles)
}
