package process

import (
	"errors"
	"os"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

var errListing = errors.New("access denied")

// fakeProcess implements ps.Process for tests.
type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

// TestFinder_Running matches executables case-insensitively and skips this process.
func TestFinder_Running(t *testing.T) {
	t.Parallel()

	finder := NewFinder(func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: 10, name: "StockfishStudio.exe"},
			fakeProcess{pid: 11, name: "stockfishstudio.EXE"},
			fakeProcess{pid: 12, name: "explorer.exe"},
			fakeProcess{pid: os.Getpid(), name: "StockfishStudio.exe"},
		}, nil
	})

	pids, err := finder.Running("StockfishStudio.exe")
	require.NoError(t, err)
	require.Equal(t, []int{10, 11}, pids)

	pids, err = finder.Running("missing.exe")
	require.NoError(t, err)
	require.Empty(t, pids)
}

// TestFinder_ListError wraps lister failures.
func TestFinder_ListError(t *testing.T) {
	t.Parallel()

	finder := NewFinder(func() ([]ps.Process, error) { return nil, errListing })

	_, err := finder.Running("x.exe")
	require.ErrorIs(t, err, errListing)
}

// TestFinder_Host lists real processes without failing.
func TestFinder_Host(t *testing.T) {
	t.Parallel()

	_, err := NewFinder(nil).Running("desktop-packager-test-nonexistent")
	require.NoError(t, err)
}
