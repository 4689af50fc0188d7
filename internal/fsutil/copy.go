package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDirMode is used for directories created by the pipeline.
const DefaultDirMode os.FileMode = 0o755

var (
	errNotDirectory            = errors.New("not a directory")
	errDestinationInsideSource = errors.New("destination is inside the source tree")
	errSymlinkCycle            = errors.New("symbolic link cycle")
)

// ResetDir removes dir with all its contents and recreates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}

	if err := os.MkdirAll(dir, DefaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	return nil
}

// CopyFile copies src to dst, replacing dst, and carries over the permission
// bits and modification time of src.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	return CopyMetadata(info, dst)
}

// CopyMetadata applies the permission bits and modification time of info to dst.
func CopyMetadata(info fs.FileInfo, dst string) error {
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}

	if err := os.Chtimes(dst, time.Time{}, info.ModTime()); err != nil {
		return fmt.Errorf("chtimes %s: %w", dst, err)
	}

	return nil
}

// CopyTree recursively copies the directory src to dst, which must not exist.
// Symbolic links are followed and their targets copied. A dst inside src and
// a link pointing back at one of its ancestors are rejected.
func CopyTree(src, dst string) error {
	inside, err := isWithin(src, dst)
	if err != nil {
		return err
	}

	if inside {
		return fmt.Errorf("copy tree %s to %s: %w", src, dst, errDestinationInsideSource)
	}

	return copyTree(src, dst, nil)
}

func copyTree(src, dst string, ancestors []fs.FileInfo) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("copy tree %s: %w", src, errNotDirectory)
	}

	for _, ancestor := range ancestors {
		if os.SameFile(ancestor, info) {
			return fmt.Errorf("copy tree %s: %w", src, errSymlinkCycle)
		}
	}

	ancestors = append(ancestors, info)

	if err = os.MkdirAll(dst, DefaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", src, err)
	}

	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		// Stat follows symlinks, so linked directories are descended into.
		entryInfo, err := os.Stat(from)
		if err != nil {
			return fmt.Errorf("stat %s: %w", from, err)
		}

		if entryInfo.IsDir() {
			err = copyTree(from, to, ancestors)
		} else {
			err = CopyFile(from, to)
		}

		if err != nil {
			return err
		}
	}

	// Directory times are applied last, after children stop touching them.
	return CopyMetadata(info, dst)
}

// isWithin reports whether path is dir itself or lies below it, after
// resolving symbolic links in both.
func isWithin(dir, path string) (bool, error) {
	resolvedDir, err := resolve(dir)
	if err != nil {
		return false, err
	}

	resolvedPath, err := resolve(path)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(resolvedDir, resolvedPath)
	if err != nil {
		return false, nil
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return false, nil
	}

	return true, nil
}

// resolve returns the absolute form of path with symbolic links evaluated in
// its longest existing prefix.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	var missing []string

	for current := abs; ; current = filepath.Dir(current) {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}

		if filepath.Dir(current) == current {
			return abs, nil
		}

		missing = append([]string{filepath.Base(current)}, missing...)
	}
}
