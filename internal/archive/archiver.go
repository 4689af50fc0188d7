package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/oshokin/desktop-packager/internal/domain/bundle"
	"github.com/oshokin/desktop-packager/internal/fsutil"
	"github.com/oshokin/desktop-packager/internal/logger"
)

// Archiver owns the archive file at path.
type Archiver struct {
	// path is the archive location; any existing file there is replaced.
	path string
	// modified pins every entry timestamp when non-zero.
	modified time.Time
	// displayRoot shortens the logged archive path when set.
	displayRoot string
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithModTime pins the modification time of every entry.
func WithModTime(modified time.Time) Option {
	return func(a *Archiver) {
		a.modified = modified
	}
}

// WithDisplayRoot logs the archive path relative to root.
func WithDisplayRoot(root string) Option {
	return func(a *Archiver) {
		a.displayRoot = root
	}
}

// NewArchiver creates an archiver writing to path.
func NewArchiver(path string, opts ...Option) *Archiver {
	a := &Archiver{
		path: filepath.Clean(path),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// entry is a payload item scheduled for the archive.
type entry struct {
	// name is the slash-separated path relative to the payload root.
	name string
	// path is the filesystem location.
	path string
	// info describes the item.
	info fs.FileInfo
}

// Archive deletes any previous archive and writes every entry below
// payloadRoot into a fresh one.
func (a *Archiver) Archive(ctx context.Context, payloadRoot string) (*bundle.Archive, error) {
	entries, err := collect(payloadRoot)
	if err != nil {
		return nil, err
	}

	if err = os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove previous archive: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(a.path), fsutil.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	if err = a.write(ctx, entries); err != nil {
		return nil, err
	}

	info, err := os.Stat(a.path)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	logger.InfoKV(ctx, "Created "+a.displayPath(),
		"entries", len(entries), "size", humanize.Bytes(uint64(info.Size()))) //nolint:gosec // File sizes are non-negative.

	return &bundle.Archive{
		Path:    a.path,
		Entries: len(entries),
		Size:    info.Size(),
	}, nil
}

// collect lists every file and directory below root, sorted by entry name.
func collect(root string) ([]entry, error) {
	var entries []entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		name := filepath.ToSlash(rel)
		if info.IsDir() {
			name += "/"
		}

		entries = append(entries, entry{name: name, path: path, info: info})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk payload %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].name < entries[j].name
	})

	return entries, nil
}

func (a *Archiver) write(ctx context.Context, entries []entry) (err error) {
	out, err := os.Create(a.path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()

	zw := zip.NewWriter(out)

	for _, e := range entries {
		logger.DebugKV(ctx, "Adding archive entry", "name", e.name)

		if err = a.writeEntry(zw, e); err != nil {
			_ = zw.Close()

			return err
		}
	}

	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	return nil
}

func (a *Archiver) writeEntry(zw *zip.Writer, e entry) error {
	header, err := zip.FileInfoHeader(e.info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", e.name, err)
	}

	header.Name = e.name
	header.Method = zip.Deflate

	if e.info.IsDir() {
		header.Method = zip.Store
	}

	if !a.modified.IsZero() {
		header.Modified = a.modified
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", e.name, err)
	}

	if e.info.IsDir() {
		return nil
	}

	in, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.path, err)
	}

	defer func() {
		_ = in.Close()
	}()

	if _, err = io.Copy(w, in); err != nil {
		return fmt.Errorf("compress %s: %w", e.name, err)
	}

	return nil
}

func (a *Archiver) displayPath() string {
	if a.displayRoot == "" {
		return a.path
	}

	rel, err := filepath.Rel(a.displayRoot, a.path)
	if err != nil {
		return a.path
	}

	return rel
}
