package bundle

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

//nolint:gochecknoglobals // validator.Validate caches struct metadata and is safe for reuse.
var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

// PathElementTag validates that a string is a single file name, never "." or "..".
const PathElementTag = "pathelem"

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		structCheck = validator.New(validator.WithRequiredStructEnabled())

		if err := structCheck.RegisterValidation(PathElementTag, isPathElement); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", PathElementTag, err))
		}
	})

	return structCheck
}

func isPathElement(fl validator.FieldLevel) bool {
	return IsPathElement(fl.Field().String())
}

// IsPathElement reports whether name names an entry directly inside a directory.
func IsPathElement(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name && filepath.VolumeName(name) == ""
}

// BuildRequest describes a single toolchain invocation.
type BuildRequest struct {
	// Package is the toolchain package to build.
	Package string `validate:"required"`
	// Features is the feature set passed to the toolchain.
	Features []string
	// DefaultFeatures keeps the package's default features enabled.
	DefaultFeatures bool
	// Target is the target triple, e.g. x86_64-pc-windows-msvc.
	Target string `validate:"required"`
	// Profile is the optimization profile, e.g. release.
	Profile string `validate:"required"`
}

// Validate checks that the request carries every field the toolchain needs.
func (r *BuildRequest) Validate() error {
	if err := Validator().Struct(r); err != nil {
		return fmt.Errorf("invalid build request: %w", err)
	}

	return nil
}

// BuildArtifact points at the executable produced by the toolchain.
type BuildArtifact struct {
	// Path is the absolute path of the built executable.
	Path string
}

// StagingPlan lists every input copied into the payload.
type StagingPlan struct {
	// Artifact is the executable to install under the product name.
	Artifact BuildArtifact
	// UIEntry is the UI entry file (index.html).
	UIEntry string
	// Assets is the UI asset directory.
	Assets string
	// Engines are extra payloads placed next to the executable, in precedence order.
	Engines []string
}

// Payload is the staged, unzip-and-run directory.
type Payload struct {
	// Root is the payload directory.
	Root string
	// Executable is the staged executable inside Root.
	Executable string
}

// Archive describes a written distribution archive.
type Archive struct {
	// Path is the archive location.
	Path string
	// Entries is the number of entries written.
	Entries int
	// Size is the archive size in bytes.
	Size int64
}

// Result is the outcome of a pipeline run.
type Result struct {
	// Payload is the staged directory.
	Payload *Payload
	// Archive is nil when archiving was skipped.
	Archive *Archive
}
