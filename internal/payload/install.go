package payload

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/desktop-packager/internal/fsutil"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// executableMode is the permission of the staged executable.
	executableMode os.FileMode = 0o755

	// checksumHash verifies the executable written into the payload.
	checksumHash crypto.Hash = crypto.SHA512
)

var (
	errHashUnavailable  = errors.New("hash function unavailable")
	errChecksumMismatch = errors.New("checksum mismatch")
)

// applyFunc writes the update read from r to the target described by options.
type applyFunc func(r io.Reader, options goupdate.Options) error

// Checksum returns the checksumHash digest of data.
func Checksum(data []byte) ([]byte, error) {
	if !checksumHash.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := checksumHash.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// installExecutable writes src to dst through apply. The checksum is taken
// from a separate read of src, so apply rejects a stream that changed in
// between, and the written file is hashed again afterwards. The modification
// time of src is carried over.
func installExecutable(src, dst string, apply applyFunc) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	checksum, err := Checksum(data)
	if err != nil {
		return err
	}

	// go-update swaps the new binary in place of an existing target.
	placeholder, err := os.Create(filepath.Clean(dst))
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if err = placeholder.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	if err = applyFrom(src, dst, checksum, apply); err != nil {
		return err
	}

	if err = removeLeftovers(dst); err != nil {
		return err
	}

	if err = verifyChecksum(dst, checksum); err != nil {
		return err
	}

	return fsutil.CopyMetadata(&modeOverride{FileInfo: info, mode: executableMode}, dst)
}

func applyFrom(src, dst string, checksum []byte, apply applyFunc) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	options := goupdate.Options{
		TargetPath: dst,
		TargetMode: executableMode,
		Checksum:   checksum,
		Hash:       checksumHash,
	}

	if err = apply(in, options); err != nil {
		return fmt.Errorf("install %s: %w", dst, err)
	}

	return nil
}

// verifyChecksum hashes the file at path and compares it with expected.
func verifyChecksum(path string, expected []byte) error {
	written, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	actual, err := Checksum(written)
	if err != nil {
		return err
	}

	if !bytes.Equal(actual, expected) {
		return fmt.Errorf("verify %s: %w", path, errChecksumMismatch)
	}

	return nil
}

// removeLeftovers deletes the replaced placeholder go-update may keep next to dst.
func removeLeftovers(dst string) error {
	dir, name := filepath.Split(dst)

	for _, leftover := range []string{
		dst + ".old",
		filepath.Join(dir, "."+name+".old"),
		filepath.Join(dir, "."+name+".new"),
	} {
		if err := os.Remove(leftover); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", leftover, err)
		}
	}

	return nil
}

// modeOverride reports a fixed permission for an otherwise unchanged FileInfo.
type modeOverride struct {
	fs.FileInfo

	mode os.FileMode
}

func (m *modeOverride) Mode() os.FileMode {
	return m.mode
}
