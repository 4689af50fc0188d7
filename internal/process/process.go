package process

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-ps"
)

// Lister returns the processes currently running on the host.
type Lister func() ([]ps.Process, error)

// Finder looks up running processes by executable name.
type Finder struct {
	list Lister
}

// NewFinder returns a Finder backed by list, or by ps.Processes when list is nil.
func NewFinder(list Lister) *Finder {
	if list == nil {
		list = ps.Processes
	}

	return &Finder{list: list}
}

// Running returns the IDs of processes whose executable is name, excluding the
// current process. Names compare case-insensitively, as Windows does.
func (f *Finder) Running(name string) ([]int, error) {
	processList, err := f.list()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	var found []int

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !strings.EqualFold(process.Executable(), name) {
			continue
		}

		found = append(found, process.Pid())
	}

	return found, nil
}
