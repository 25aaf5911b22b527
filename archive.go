package gitmirror

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/fsbridge"
)

// Snapshot is the exported content of one revision.
type Snapshot struct {
	// Commit is the revision the snapshot was taken at.
	Commit CommitRef

	// FS holds the files, rooted at the workspace root.
	FS fs.Filesystem

	raw billy.Filesystem
}

// Files returns the sorted paths of all files in the snapshot.
func (s *Snapshot) Files() ([]string, error) {
	return fsbridge.ListFiles(s.raw)
}

// ReadFile returns the content of name.
func (s *Snapshot) ReadFile(name string) ([]byte, error) {
	return s.FS.ReadFile(name)
}

// WriteZip writes the snapshot as a zip archive. Directories get their own
// entries so empty ones survive.
func (s *Snapshot) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)

	err := util.Walk(s.raw, "/", func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel := strings.TrimPrefix(filepath.ToSlash(name), "/")
		if rel == "" {
			return nil
		}
		if rel == fsbridge.DotGit && fi.IsDir() {
			return filepath.SkipDir
		}

		hdr, err := zip.FileInfoHeader(fi)
		if err != nil {
			return err
		}
		hdr.Name = rel

		if fi.IsDir() {
			hdr.Name += "/"
			_, err := zw.CreateHeader(hdr)
			return err
		}
		if !fi.Mode().IsRegular() || fsbridge.IsScratch(rel) {
			return nil
		}

		hdr.Method = zip.Deflate
		out, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}

		in, err := s.raw.Open(rel)
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = io.Copy(out, in)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return WrapError(err, "failed to write archive")
	}

	return zw.Close()
}
