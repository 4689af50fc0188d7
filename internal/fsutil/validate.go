package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/desktop-packager/internal/domain/bundle"
)

// EnsureExists fails with *bundle.MissingPathError when path does not exist.
// Any other stat failure is returned wrapped.
func EnsureExists(path, description string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return &bundle.MissingPathError{
			Path:        path,
			Description: description,
		}
	}

	return fmt.Errorf("stat %s: %w", path, err)
}

// ExpandPath expands a leading ~ to the user's home directory and returns an
// absolute, cleaned path.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", path, err)
		}

		path = filepath.Join(home, path[1:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	return abs, nil
}
