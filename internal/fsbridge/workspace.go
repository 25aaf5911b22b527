package fsbridge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// OpenWorkspace creates dir if needed and returns an OS filesystem rooted at
// it. It fails if dir exists and is not a directory.
//
//nolint:ireturn // billy.Filesystem is the go-git currency
func OpenWorkspace(dir string) (billy.Filesystem, error) {
	fi, err := os.Stat(dir)
	switch {
	case err == nil && !fi.IsDir():
		return nil, fmt.Errorf("%s is not a directory", dir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	return osfs.New(dir), nil
}

// CleanRelative validates a slash separated path relative to a workspace
// root and returns its cleaned form. It rejects absolute paths, paths that
// escape the root, and paths into the store directory.
func CleanRelative(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	if path.IsAbs(p) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", fmt.Errorf("absolute path %q", p)
	}

	cleaned := path.Clean(filepath.ToSlash(p))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes the workspace", p)
	}
	if cleaned == DotGit || strings.HasPrefix(cleaned, DotGit+"/") {
		return "", fmt.Errorf("path %q is inside the store", p)
	}
	return cleaned, nil
}

// ScratchPrefix starts the names of the temporary and backup files written
// by ReplaceFile. Such files are never part of the content.
const ScratchPrefix = ".gitmirror-"

// IsScratch reports whether name is a ReplaceFile temporary or backup file.
func IsScratch(name string) bool {
	return strings.HasPrefix(path.Base(filepath.ToSlash(name)), ScratchPrefix)
}

// ReplaceFile writes data to name through a temporary sibling and renames it
// into place. An existing file is moved to a uniquely named backup first and
// restored if the final rename fails, so name never holds partial content.
func ReplaceFile(fs billy.Filesystem, name string, data []byte, perm os.FileMode) error {
	dir := path.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", name, err)
	}

	tmp, err := util.TempFile(fs, dir, ScratchPrefix+"tmp-")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if ch, ok := fs.(billy.Change); ok {
		_ = ch.Chmod(tmpName, perm)
	}

	backup := ""
	if fi, err := fs.Lstat(name); err == nil {
		if fi.IsDir() {
			_ = fs.Remove(tmpName)
			return fmt.Errorf("%s is a directory", name)
		}
		backup, err = reserveName(fs, dir, ScratchPrefix+"bak-")
		if err != nil {
			_ = fs.Remove(tmpName)
			return fmt.Errorf("back up %s: %w", name, err)
		}
		if err := fs.Rename(name, backup); err != nil {
			_ = fs.Remove(tmpName)
			return fmt.Errorf("back up %s: %w", name, err)
		}
	}

	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName)
		if backup != "" {
			if rerr := fs.Rename(backup, name); rerr != nil {
				return fmt.Errorf("swap %s: %w (restore failed: %v)", name, err, rerr)
			}
		}
		return fmt.Errorf("swap %s: %w", name, err)
	}

	if backup != "" {
		_ = fs.Remove(backup)
	}
	return nil
}

// reserveName returns a fresh, unused file name in dir.
func reserveName(fs billy.Filesystem, dir, prefix string) (string, error) {
	f, err := util.TempFile(fs, dir, prefix)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := fs.Remove(name); err != nil {
		return "", err
	}
	return name, nil
}

// RemoveScratch deletes temporary and backup files an interrupted
// ReplaceFile left anywhere in fs, the store directory excluded. It returns
// the removed paths.
func RemoveScratch(fs billy.Filesystem) ([]string, error) {
	var stale []string
	err := util.Walk(fs, "/", func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(filepath.ToSlash(name), "/")
		if rel == DotGit && fi.IsDir() {
			return filepath.SkipDir
		}
		if !fi.IsDir() && IsScratch(rel) {
			stale = append(stale, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, name := range stale {
		if err := fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return stale, nil
}

// PruneEmptyDirs removes dir and its parents while they are empty, stopping
// at the filesystem root.
func PruneEmptyDirs(fs billy.Filesystem, dir string) {
	for dir != "." && dir != "/" && dir != "" {
		entries, err := fs.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := fs.Remove(dir); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

// CopyTree copies every regular file of src into dst, skipping the store
// directory and scratch files. Directories are created in dst even when empty.
func CopyTree(src, dst billy.Filesystem) error {
	return util.Walk(src, "/", func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel := strings.TrimPrefix(filepath.ToSlash(name), "/")
		if rel == "" {
			return nil
		}
		if rel == DotGit || strings.HasPrefix(rel, DotGit+"/") {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if fi.IsDir() {
			return dst.MkdirAll(rel, 0o755)
		}
		if !fi.Mode().IsRegular() || IsScratch(rel) {
			return nil
		}
		return copyFile(src, dst, rel, fi.Mode().Perm())
	})
}

func copyFile(src, dst billy.Filesystem, name string, perm os.FileMode) error {
	in, err := src.Open(name)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := dst.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ListFiles returns the slash separated paths of all regular files in fs,
// sorted, excluding the store directory and scratch files.
func ListFiles(fs billy.Filesystem) ([]string, error) {
	var files []string
	err := util.Walk(fs, "/", func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(filepath.ToSlash(name), "/")
		if rel == DotGit && fi.IsDir() {
			return filepath.SkipDir
		}
		if fi.Mode().IsRegular() && !IsScratch(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
