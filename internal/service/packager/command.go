package packager

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/oshokin/desktop-packager/internal/archive"
	"github.com/oshokin/desktop-packager/internal/config"
	"github.com/oshokin/desktop-packager/internal/domain/bundle"
	"github.com/oshokin/desktop-packager/internal/fsutil"
	"github.com/oshokin/desktop-packager/internal/logger"
	"github.com/oshokin/desktop-packager/internal/payload"
	"github.com/oshokin/desktop-packager/internal/toolchain"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Config is the source-tree layout and distribution naming.
	Config *config.Config
	// Target is the target triple passed to the toolchain.
	Target string
	// Profile is the build profile passed to the toolchain.
	Profile string
	// SkipZip stops the pipeline after staging.
	SkipZip bool
	// Engines are extra payloads copied next to the executable, in order.
	Engines []string
	// Invoker overrides the toolchain; nil runs cargo as configured.
	Invoker toolchain.Invoker
	// ProcessFinder overrides the running-executable lookup used before staging.
	ProcessFinder payload.ProcessFinder
}

// packager holds the resolved inputs of one pipeline run.
// It is unexported: callers use Run, which encapsulates setup and validation.
type packager struct {
	// cfg is the validated configuration.
	cfg *config.Config
	// request is the toolchain invocation.
	request *bundle.BuildRequest
	// engines are absolute engine payload paths in input order.
	engines []string
	// skipZip stops after staging.
	skipZip bool
	// invoker builds the executable.
	invoker toolchain.Invoker
	// stager assembles the payload.
	stager *payload.Stager
	// archiver writes the archive.
	archiver *archive.Archiver
}

var errOptionsNotSet = errors.New("packager options are not set")

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) (*bundle.Result, error) {
	ctx = logger.WithName(ctx, "desktop-packager")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	pkg, err := newPackager(opts)
	if err != nil {
		return nil, err
	}

	result, err := pkg.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Packaging failed", "error", err)

		return nil, err
	}

	logger.InfoKV(ctx, "Packaging completed", "payload", result.Payload.Root)

	return result, nil
}

// newPackager validates opts and wires the pipeline steps. It touches no files.
func newPackager(opts *Options) (*packager, error) {
	if opts == nil || opts.Config == nil {
		return nil, errOptionsNotSet
	}

	cfg := opts.Config
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	request := cfg.BuildRequest(opts.Target, opts.Profile)
	if err := request.Validate(); err != nil {
		return nil, err
	}

	engines := make([]string, 0, len(opts.Engines))

	for _, engine := range opts.Engines {
		resolved, err := fsutil.ExpandPath(engine)
		if err != nil {
			return nil, err
		}

		engines = append(engines, resolved)
	}

	invoker := opts.Invoker
	if invoker == nil {
		invoker = toolchain.NewCargo(cfg.Toolchain, cfg.CratePath(), cfg.ArtifactName)
	}

	var stagerOptions []payload.Option
	if opts.ProcessFinder != nil {
		stagerOptions = append(stagerOptions, payload.WithProcessFinder(opts.ProcessFinder))
	}

	return &packager{
		cfg:      cfg,
		request:  request,
		engines:  engines,
		skipZip:  opts.SkipZip,
		invoker:  invoker,
		stager:   payload.NewStager(cfg.PayloadPath(), cfg.ExecutableName(), stagerOptions...),
		archiver: archive.NewArchiver(cfg.ArchivePath(), archive.WithModTime(cfg.ArchiveTime()), archive.WithDisplayRoot(cfg.RootDir)),
	}, nil
}

// Run builds, stages and archives.
func (p *packager) Run(ctx context.Context) (*bundle.Result, error) {
	logger.InfoKV(ctx, "Building desktop executable",
		"package", p.request.Package, "target", p.request.Target, "profile", p.request.Profile)

	artifact, err := p.invoker.Build(ctx, p.request)
	if err != nil {
		return nil, fmt.Errorf("build desktop executable: %w", err)
	}

	logger.InfoKV(ctx, "Staging payload", "path", p.stager.Root(), "engines", len(p.engines))

	staged, err := p.stager.Stage(ctx, &bundle.StagingPlan{
		Artifact: artifact,
		UIEntry:  p.cfg.UIEntryPath(),
		Assets:   p.cfg.AssetsPath(),
		Engines:  p.engines,
	})
	if err != nil {
		return nil, fmt.Errorf("stage payload: %w", err)
	}

	result := &bundle.Result{Payload: staged}

	if p.skipZip {
		logger.Info(ctx, "Skipping archive creation")

		return result, nil
	}

	result.Archive, err = p.archiver.Archive(ctx, staged.Root)
	if err != nil {
		return nil, fmt.Errorf("archive payload: %w", err)
	}

	return result, nil
}
