package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/desktop-packager/internal/domain/bundle"
)

// TestEnsureExists returns a typed error naming the missing path.
func TestEnsureExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, EnsureExists(dir, "the root"))

	missing := filepath.Join(dir, "index.html")
	err := EnsureExists(missing, "the UI entry point (index.html)")
	require.ErrorIs(t, err, bundle.ErrMissingPath)

	var pathErr *bundle.MissingPathError
	require.ErrorAs(t, err, &pathErr)
	require.Equal(t, missing, pathErr.Path)
	require.Equal(t, "the UI entry point (index.html)", pathErr.Description)
}

// TestExpandPath resolves home-relative and relative paths to absolute ones.
func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/engines/stockfish")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "engines", "stockfish"), got)

	got, err = ExpandPath("relative/engine")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(got))
	require.Equal(t, "engine", filepath.Base(got))
}

// TestResetDir empties an existing directory and creates a missing one.
func TestResetDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "dist", "win-x64")
	require.NoError(t, ResetDir(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("old"), 0o600))

	require.NoError(t, ResetDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestCopyTree copies nested files and preserves modes and modification times.
func TestCopyTree(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "assets")
	writeFile(t, filepath.Join(src, "css", "app.css"), "body{}")
	writeFile(t, filepath.Join(src, "js", "app.js"), "main()")
	writeFile(t, filepath.Join(src, "logo.png"), "png")

	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "logo.png"), stamp, stamp))
	require.NoError(t, os.Chtimes(filepath.Join(src, "css"), stamp, stamp))

	dst := filepath.Join(t.TempDir(), "assets")
	require.NoError(t, CopyTree(src, dst))

	requireFile(t, filepath.Join(dst, "css", "app.css"), "body{}")
	requireFile(t, filepath.Join(dst, "js", "app.js"), "main()")
	requireFile(t, filepath.Join(dst, "logo.png"), "png")

	info, err := os.Stat(filepath.Join(dst, "logo.png"))
	require.NoError(t, err)
	require.True(t, info.ModTime().Equal(stamp))

	info, err = os.Stat(filepath.Join(dst, "css"))
	require.NoError(t, err)
	require.True(t, info.ModTime().Equal(stamp))

	require.Error(t, CopyTree(filepath.Join(src, "logo.png"), filepath.Join(t.TempDir(), "x")))
}

// TestCopyTree_FollowsSymlinks copies link targets instead of links.
func TestCopyTree_FollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}

	t.Parallel()

	base := t.TempDir()
	writeFile(t, filepath.Join(base, "shared", "nnue.bin"), "weights")

	src := filepath.Join(base, "engine")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.Symlink(filepath.Join(base, "shared"), filepath.Join(src, "nets")))

	dst := filepath.Join(t.TempDir(), "engine")
	require.NoError(t, CopyTree(src, dst))

	info, err := os.Lstat(filepath.Join(dst, "nets"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
	requireFile(t, filepath.Join(dst, "nets", "nnue.bin"), "weights")
}

// TestCopyTree_RejectsDestinationInsideSource refuses to copy a tree into itself.
func TestCopyTree_RejectsDestinationInsideSource(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "dist")
	writeFile(t, filepath.Join(src, "win-x64", "index.html"), "<html></html>")

	err := CopyTree(src, filepath.Join(src, "win-x64", "dist"))
	require.ErrorIs(t, err, errDestinationInsideSource)
	require.NoDirExists(t, filepath.Join(src, "win-x64", "dist"))

	require.ErrorIs(t, CopyTree(src, src), errDestinationInsideSource)

	// A sibling whose name shares the prefix is outside.
	require.NoError(t, CopyTree(src, src+"-copy"))
	requireFile(t, filepath.Join(src+"-copy", "win-x64", "index.html"), "<html></html>")
}

// TestCopyTree_RejectsSymlinkCycle stops at a link that points back at an ancestor.
func TestCopyTree_RejectsSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}

	t.Parallel()

	src := filepath.Join(t.TempDir(), "engine")
	writeFile(t, filepath.Join(src, "nets", "nnue.bin"), "weights")
	require.NoError(t, os.Symlink(src, filepath.Join(src, "nets", "loop")))

	err := CopyTree(src, filepath.Join(t.TempDir(), "engine"))
	require.ErrorIs(t, err, errSymlinkCycle)
}

// TestCopyFile keeps the executable bit.
func TestCopyFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "stockfish")
	require.NoError(t, os.WriteFile(src, []byte("elf"), 0o755))

	dst := filepath.Join(dir, "copy")
	require.NoError(t, os.WriteFile(dst, []byte("previous contents that are longer"), 0o600))
	require.NoError(t, CopyFile(src, dst))

	requireFile(t, dst, "elf")

	info, err := os.Stat(dst)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func requireFile(t *testing.T, path, contents string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, contents, string(data))
}
