package bundle

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ExitOK is returned when the pipeline succeeds.
	ExitOK = 0
	// ExitFailure is returned for errors outside the taxonomy.
	ExitFailure = 1
	// ExitValidation is returned for local validation failures.
	ExitValidation = 2
)

var (
	// ErrToolMissing matches failures to resolve the toolchain executable.
	ErrToolMissing = errors.New("required tool is missing")
	// ErrBuildFailed matches a toolchain invocation that exited non-zero.
	ErrBuildFailed = errors.New("build failed")
	// ErrArtifactNotFound matches a successful build without the expected output file.
	ErrArtifactNotFound = errors.New("build artifact not found")
	// ErrMissingPath matches a required input path that does not exist.
	ErrMissingPath = errors.New("required path is missing")
)

// ToolMissingError reports a toolchain executable absent from PATH.
type ToolMissingError struct {
	Tool string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("required tool '%s' was not found on PATH", e.Tool)
}

// Is reports whether target is ErrToolMissing.
func (e *ToolMissingError) Is(target error) bool {
	return target == ErrToolMissing
}

// BuildFailedError reports a toolchain invocation that exited non-zero.
type BuildFailedError struct {
	// Command is the full argument vector, tool name included.
	Command []string
	// ExitCode is the child's exit status, or -1 when it was terminated by a signal.
	ExitCode int
	// Err is the underlying exec error.
	Err error
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("command '%s' failed with exit code %d", strings.Join(e.Command, " "), e.ExitCode)
}

// Is reports whether target is ErrBuildFailed.
func (e *BuildFailedError) Is(target error) bool {
	return target == ErrBuildFailed
}

func (e *BuildFailedError) Unwrap() error {
	return e.Err
}

// ArtifactNotFoundError reports that the toolchain succeeded without producing the expected file.
type ArtifactNotFoundError struct {
	Path string
	// Reason is set when the path exists but is not a regular file.
	Reason string
}

func (e *ArtifactNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("expected built executable at %s, but %s", e.Path, e.Reason)
	}

	return fmt.Sprintf("expected built executable at %s, but the file was not found", e.Path)
}

// Is reports whether target is ErrArtifactNotFound.
func (e *ArtifactNotFoundError) Is(target error) bool {
	return target == ErrArtifactNotFound
}

// MissingPathError reports a required input that does not exist.
type MissingPathError struct {
	Path        string
	Description string
}

func (e *MissingPathError) Error() string {
	return fmt.Sprintf("expected to find %s at %s, but the path does not exist", e.Description, e.Path)
}

// Is reports whether target is ErrMissingPath.
func (e *MissingPathError) Is(target error) bool {
	return target == ErrMissingPath
}

// ExitCode maps an error chain to the process exit status.
// Build failures propagate the toolchain's own exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var buildErr *BuildFailedError
	if errors.As(err, &buildErr) {
		if buildErr.ExitCode > 0 {
			return buildErr.ExitCode
		}

		return ExitFailure
	}

	switch {
	case errors.Is(err, ErrToolMissing),
		errors.Is(err, ErrMissingPath),
		errors.Is(err, ErrArtifactNotFound):
		return ExitValidation
	default:
		return ExitFailure
	}
}
