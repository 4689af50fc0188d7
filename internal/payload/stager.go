package payload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/desktop-packager/internal/domain/bundle"
	"github.com/oshokin/desktop-packager/internal/fsutil"
	"github.com/oshokin/desktop-packager/internal/logger"
	"github.com/oshokin/desktop-packager/internal/process"
)

// AssetsDirName is the payload subdirectory holding the UI asset tree.
const AssetsDirName = "assets"

// ProcessFinder reports running processes by executable name.
type ProcessFinder interface {
	Running(name string) ([]int, error)
}

// Stager owns the payload directory and populates it from a StagingPlan.
type Stager struct {
	// root is the payload directory, removed and recreated on every run.
	root string
	// executableName is the distributed file name of the artifact.
	executableName string
	// processes is consulted before the reset to warn about a locked executable.
	processes ProcessFinder
	// apply installs the executable into the payload.
	apply applyFunc
}

// Option configures a Stager.
type Option func(*Stager)

// WithProcessFinder replaces the host process lookup.
func WithProcessFinder(finder ProcessFinder) Option {
	return func(s *Stager) {
		s.processes = finder
	}
}

// NewStager creates a stager writing into root and naming the executable executableName.
func NewStager(root, executableName string, opts ...Option) *Stager {
	s := &Stager{
		root:           filepath.Clean(root),
		executableName: executableName,
		processes:      process.NewFinder(nil),
		apply:          goupdate.Apply,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Root returns the payload directory.
func (s *Stager) Root() string {
	return s.root
}

// Stage validates the UI inputs, resets the payload directory and copies
// every input of plan into it. Engines are validated one at a time as they
// are copied, in order, so the last engine with a given base name wins.
func (s *Stager) Stage(ctx context.Context, plan *bundle.StagingPlan) (*bundle.Payload, error) {
	uiDescription := fmt.Sprintf("the UI entry point (%s)", filepath.Base(plan.UIEntry))
	if err := fsutil.EnsureExists(plan.UIEntry, uiDescription); err != nil {
		return nil, err
	}

	if err := fsutil.EnsureExists(plan.Assets, "the UI assets directory"); err != nil {
		return nil, err
	}

	s.warnIfExecutableRunning(ctx)

	logger.InfoKV(ctx, "Resetting payload directory", "path", s.root)

	if err := fsutil.ResetDir(s.root); err != nil {
		return nil, err
	}

	executable := filepath.Join(s.root, s.executableName)

	logger.InfoKV(ctx, "Installing executable", "from", plan.Artifact.Path, "to", executable)

	if err := installExecutable(plan.Artifact.Path, executable, s.apply); err != nil {
		return nil, err
	}

	if err := s.stageUI(ctx, plan); err != nil {
		return nil, err
	}

	if err := s.stageEngines(ctx, plan.Engines); err != nil {
		return nil, err
	}

	return &bundle.Payload{
		Root:       s.root,
		Executable: executable,
	}, nil
}

// stageUI copies the UI entry file and replaces the asset tree.
func (s *Stager) stageUI(ctx context.Context, plan *bundle.StagingPlan) error {
	entry := filepath.Join(s.root, filepath.Base(plan.UIEntry))

	logger.DebugKV(ctx, "Copying UI entry point", "from", plan.UIEntry, "to", entry)

	if err := fsutil.CopyFile(plan.UIEntry, entry); err != nil {
		return err
	}

	assets := filepath.Join(s.root, AssetsDirName)
	if err := os.RemoveAll(assets); err != nil {
		return fmt.Errorf("remove %s: %w", assets, err)
	}

	logger.DebugKV(ctx, "Copying UI assets", "from", plan.Assets, "to", assets)

	return fsutil.CopyTree(plan.Assets, assets)
}

// stageEngines copies each engine payload into the payload root under its base name.
func (s *Stager) stageEngines(ctx context.Context, engines []string) error {
	seen := make(map[string]string, len(engines))

	for _, engine := range engines {
		if err := fsutil.EnsureExists(engine, fmt.Sprintf("engine payload '%s'", engine)); err != nil {
			return err
		}

		name := filepath.Base(engine)
		if previous, ok := seen[name]; ok {
			logger.WarnKV(ctx, "Engine payloads share a name, the last one wins",
				"name", name, "overwritten", previous, "engine", engine)
		}

		seen[name] = engine

		if err := s.stageEngine(ctx, engine, filepath.Join(s.root, name)); err != nil {
			return err
		}
	}

	return nil
}

func (s *Stager) stageEngine(ctx context.Context, engine, destination string) error {
	info, err := os.Stat(engine)
	if err != nil {
		return fmt.Errorf("stat %s: %w", engine, err)
	}

	// Same-named entries are replaced whole, whatever their kind.
	if err = os.RemoveAll(destination); err != nil {
		return fmt.Errorf("remove %s: %w", destination, err)
	}

	logger.InfoKV(ctx, "Staging engine payload", "from", engine, "to", destination, "dir", info.IsDir())

	if info.IsDir() {
		return fsutil.CopyTree(engine, destination)
	}

	return fsutil.CopyFile(engine, destination)
}

// warnIfExecutableRunning logs when a process with the staged executable's name is alive.
// Windows refuses to delete a running binary, so the reset is likely to fail.
func (s *Stager) warnIfExecutableRunning(ctx context.Context) {
	if s.processes == nil {
		return
	}

	pids, err := s.processes.Running(s.executableName)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list running processes", "error", err)
		return
	}

	if len(pids) > 0 {
		logger.WarnKV(ctx, "The packaged executable is running, resetting the payload may fail",
			"executable", s.executableName, "pids", pids)
	}
}
