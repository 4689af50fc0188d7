package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oshokin/desktop-packager/internal/domain/bundle"
	"github.com/oshokin/desktop-packager/internal/logger"
)

// Invoker builds a package and returns the produced executable.
type Invoker interface {
	Build(ctx context.Context, request *bundle.BuildRequest) (bundle.BuildArtifact, error)
}

// LookPathFunc resolves an executable name on PATH.
type LookPathFunc func(file string) (string, error)

// Cargo invokes `cargo build` in a crate directory.
type Cargo struct {
	// Tool is the toolchain executable name or path.
	Tool string
	// Dir is the crate directory; cargo writes target/ below it.
	Dir string
	// ArtifactName is the executable file name cargo produces.
	ArtifactName string
	// LookPath resolves Tool; defaults to exec.LookPath.
	LookPath LookPathFunc
	// Stdout and Stderr receive the toolchain output; default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewCargo returns a Cargo invoker writing toolchain output to the process streams.
func NewCargo(tool, dir, artifactName string) *Cargo {
	return &Cargo{
		Tool:         tool,
		Dir:          dir,
		ArtifactName: artifactName,
		LookPath:     exec.LookPath,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
}

// Build runs the toolchain for request and verifies the artifact it leaves behind.
func (c *Cargo) Build(ctx context.Context, request *bundle.BuildRequest) (bundle.BuildArtifact, error) {
	if err := request.Validate(); err != nil {
		return bundle.BuildArtifact{}, err
	}

	toolPath, err := c.resolveTool()
	if err != nil {
		return bundle.BuildArtifact{}, err
	}

	args := Args(request)
	command := append([]string{c.Tool}, args...)

	logger.Infof(ctx, "$ %s", strings.Join(command, " "))

	cmd := exec.CommandContext(ctx, toolPath, args...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err = cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return bundle.BuildArtifact{}, &bundle.BuildFailedError{
				Command:  command,
				ExitCode: exitErr.ExitCode(),
				Err:      err,
			}
		}

		return bundle.BuildArtifact{}, fmt.Errorf("run %s: %w", c.Tool, err)
	}

	artifact := ArtifactPath(c.Dir, request.Target, request.Profile, c.ArtifactName)
	if err = checkArtifact(artifact); err != nil {
		return bundle.BuildArtifact{}, err
	}

	logger.InfoKV(ctx, "Located build artifact", "path", artifact)

	return bundle.BuildArtifact{Path: artifact}, nil
}

func (c *Cargo) resolveTool() (string, error) {
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	path, err := lookPath(c.Tool)
	if err != nil {
		return "", &bundle.ToolMissingError{Tool: c.Tool}
	}

	return path, nil
}

// Args returns the `cargo build` arguments for request, in a stable order.
func Args(request *bundle.BuildRequest) []string {
	args := []string{"build", "--package", request.Package}

	if !request.DefaultFeatures {
		args = append(args, "--no-default-features")
	}

	if len(request.Features) > 0 {
		args = append(args, "--features", strings.Join(request.Features, ","))
	}

	return append(args, "--target", request.Target, "--profile", request.Profile)
}

// ProfileDir maps a cargo profile name to its output directory name.
func ProfileDir(profile string) string {
	switch profile {
	case "dev", "test":
		return "debug"
	case "bench":
		return "release"
	default:
		return profile
	}
}

// ArtifactPath is where cargo places the executable for target and profile.
func ArtifactPath(crateDir, target, profile, artifactName string) string {
	return filepath.Join(crateDir, "target", target, ProfileDir(profile), artifactName)
}

func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &bundle.ArtifactNotFoundError{Path: path}
		}

		return fmt.Errorf("stat artifact: %w", err)
	}

	if !info.Mode().IsRegular() {
		return &bundle.ArtifactNotFoundError{Path: path, Reason: "it is not a regular file"}
	}

	return nil
}
