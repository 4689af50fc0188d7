package packager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/desktop-packager/internal/config"
	"github.com/oshokin/desktop-packager/internal/domain/bundle"
)

// fakeInvoker stands in for the toolchain.
type fakeInvoker struct {
	// artifact is written with contents "MZ" and returned on success.
	artifact string
	// err is returned instead of building when set.
	err error
	// requests records every build request.
	requests []*bundle.BuildRequest
}

func (f *fakeInvoker) Build(_ context.Context, request *bundle.BuildRequest) (bundle.BuildArtifact, error) {
	f.requests = append(f.requests, request)

	if f.err != nil {
		return bundle.BuildArtifact{}, f.err
	}

	if err := os.MkdirAll(filepath.Dir(f.artifact), 0o755); err != nil {
		return bundle.BuildArtifact{}, err
	}

	if err := os.WriteFile(f.artifact, []byte("MZ"), 0o755); err != nil { //nolint:gosec // Executable fixture.
		return bundle.BuildArtifact{}, err
	}

	return bundle.BuildArtifact{Path: f.artifact}, nil
}

// noProcesses reports nothing running.
type noProcesses struct{}

func (noProcesses) Running(string) ([]int, error) { return nil, nil }

// repoFixture lays out a desktop repository below a temp root.
func repoFixture(t *testing.T) (*config.Config, *fakeInvoker) {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default(root)
	epoch := int64(1700000000)
	cfg.SourceDateEpoch = &epoch

	writeFile(t, filepath.Join(root, "index.html"), "<html></html>")
	writeFile(t, filepath.Join(root, "assets", "a.png"), "png")

	invoker := &fakeInvoker{
		artifact: filepath.Join(root, "desktop", "target", config.DefaultTarget, "release", "stockfish_studio.exe"),
	}

	return cfg, invoker
}

func options(cfg *config.Config, invoker *fakeInvoker) *Options {
	return &Options{
		Config:        cfg,
		Target:        config.DefaultTarget,
		Profile:       config.DefaultProfile,
		Invoker:       invoker,
		ProcessFinder: noProcesses{},
	}
}

// TestRun_FullPipeline builds, stages and archives.
func TestRun_FullPipeline(t *testing.T) {
	t.Parallel()

	cfg, invoker := repoFixture(t)
	engine := filepath.Join(t.TempDir(), "engineA")
	writeFile(t, filepath.Join(engine, "bin"), "engine")

	opts := options(cfg, invoker)
	opts.Engines = []string{engine}

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, invoker.requests, 1)
	require.Equal(t, "stockfish_studio", invoker.requests[0].Package)
	require.Equal(t, []string{"desktop"}, invoker.requests[0].Features)
	require.Equal(t, config.DefaultTarget, invoker.requests[0].Target)
	require.Equal(t, config.DefaultProfile, invoker.requests[0].Profile)

	require.Equal(t, cfg.PayloadPath(), result.Payload.Root)
	require.Equal(t, filepath.Join(cfg.PayloadPath(), "StockfishStudio.exe"), result.Payload.Executable)
	require.FileExists(t, filepath.Join(cfg.PayloadPath(), "engineA", "bin"))

	require.NotNil(t, result.Archive)
	require.Equal(t, cfg.ArchivePath(), result.Archive.Path)
	require.Equal(t, 6, result.Archive.Entries)
	require.FileExists(t, cfg.ArchivePath())
}

// TestRun_SkipZip stops after staging without creating an archive.
func TestRun_SkipZip(t *testing.T) {
	t.Parallel()

	cfg, invoker := repoFixture(t)
	opts := options(cfg, invoker)
	opts.SkipZip = true

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Nil(t, result.Archive)
	require.FileExists(t, filepath.Join(cfg.PayloadPath(), "StockfishStudio.exe"))
	require.FileExists(t, filepath.Join(cfg.PayloadPath(), "index.html"))
	require.NoFileExists(t, cfg.ArchivePath())
}

// TestRun_ToolMissing fails before any filesystem mutation.
func TestRun_ToolMissing(t *testing.T) {
	t.Parallel()

	cfg, invoker := repoFixture(t)
	invoker.err = &bundle.ToolMissingError{Tool: "cargo"}

	marker := filepath.Join(cfg.PayloadPath(), "previous-run.txt")
	writeFile(t, marker, "keep")

	_, err := Run(context.Background(), options(cfg, invoker))
	require.ErrorIs(t, err, bundle.ErrToolMissing)
	require.Equal(t, bundle.ExitValidation, bundle.ExitCode(err))
	require.FileExists(t, marker)
	require.NoFileExists(t, cfg.ArchivePath())
}

// TestRun_BuildFailed propagates the toolchain exit code.
func TestRun_BuildFailed(t *testing.T) {
	t.Parallel()

	cfg, invoker := repoFixture(t)
	invoker.err = &bundle.BuildFailedError{Command: []string{"cargo", "build"}, ExitCode: 101}

	_, err := Run(context.Background(), options(cfg, invoker))
	require.ErrorIs(t, err, bundle.ErrBuildFailed)
	require.Equal(t, 101, bundle.ExitCode(err))
	require.NoDirExists(t, cfg.PayloadPath())
}

// TestRun_MissingAssets aborts before the payload is created.
func TestRun_MissingAssets(t *testing.T) {
	t.Parallel()

	cfg, invoker := repoFixture(t)
	require.NoError(t, os.RemoveAll(cfg.AssetsPath()))

	_, err := Run(context.Background(), options(cfg, invoker))
	require.ErrorIs(t, err, bundle.ErrMissingPath)
	require.NoDirExists(t, cfg.PayloadPath())
	require.NoFileExists(t, cfg.ArchivePath())
}

// TestRun_InvalidOptions rejects bad input before invoking the toolchain.
func TestRun_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), nil)
	require.ErrorIs(t, err, errOptionsNotSet)

	cfg, invoker := repoFixture(t)
	opts := options(cfg, invoker)
	opts.Target = ""

	_, err = Run(context.Background(), opts)
	require.Error(t, err)
	require.Empty(t, invoker.requests)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}
