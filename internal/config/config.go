package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/desktop-packager/internal/domain/bundle"
)

// Config holds the source-tree layout and distribution naming used by the pipeline.
type Config struct {
	// RootDir is the repository root; relative paths below resolve against it.
	RootDir string `yaml:"root_dir"`
	// Toolchain is the build tool executable looked up on PATH.
	Toolchain string `yaml:"toolchain" validate:"required"`
	// CrateDir is the directory the toolchain runs in.
	CrateDir string `yaml:"crate_dir" validate:"required"`
	// PackageName is the package passed to the toolchain.
	PackageName string `yaml:"package_name" validate:"required"`
	// Features is the feature set passed to the toolchain.
	Features []string `yaml:"features"`
	// DefaultFeatures keeps the package's default features enabled.
	DefaultFeatures bool `yaml:"default_features"`
	// ArtifactName is the executable file name the toolchain produces.
	ArtifactName string `yaml:"artifact_name" validate:"required"`
	// ProductName is the distributed executable and archive name.
	ProductName string `yaml:"product_name" validate:"required,pathelem"`
	// UIEntry is the UI entry file copied into the payload root.
	UIEntry string `yaml:"ui_entry" validate:"required"`
	// AssetsDir is the UI asset directory copied as assets/.
	AssetsDir string `yaml:"assets_dir" validate:"required"`
	// DistDir holds the payload directory and the archive.
	DistDir string `yaml:"dist_dir" validate:"required"`
	// PayloadDir is the payload directory name inside DistDir. It is removed
	// on every run, so it must be a single path element.
	PayloadDir string `yaml:"payload_dir" validate:"required,pathelem"`
	// ArchiveSuffix is appended to ProductName to name the archive.
	ArchiveSuffix string `yaml:"archive_suffix" validate:"required"`
	// SourceDateEpoch pins archive entry timestamps (Unix seconds). Unset keeps file times.
	SourceDateEpoch *int64 `yaml:"source_date_epoch,omitempty" validate:"omitempty,gte=0"`
}

const (
	// DefaultConfigFilename is the default filename for packager settings.
	DefaultConfigFilename = "desktop-packager.yaml"

	// DefaultTarget is the target triple built when --target is not given.
	DefaultTarget = "x86_64-pc-windows-msvc"

	// DefaultProfile is the profile built when --profile is not given.
	DefaultProfile = "release"

	// DefaultFilePermissions is the file permission for written config files.
	DefaultFilePermissions = 0o600

	// SourceDateEpochEnv overrides SourceDateEpoch when set.
	SourceDateEpochEnv = "SOURCE_DATE_EPOCH"

	// payloadExecutableExt is appended to ProductName for the staged executable.
	payloadExecutableExt = ".exe"
)

// minArchiveTime is the earliest timestamp a zip entry can carry (MS-DOS epoch).
//
//nolint:gochecknoglobals // Constant value, time.Time cannot be a const.
var minArchiveTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns the layout of the desktop repository rooted at root.
func Default(root string) *Config {
	return &Config{
		RootDir:         root,
		Toolchain:       "cargo",
		CrateDir:        "desktop",
		PackageName:     "stockfish_studio",
		Features:        []string{"desktop"},
		DefaultFeatures: false,
		ArtifactName:    "stockfish_studio.exe",
		ProductName:     "StockfishStudio",
		UIEntry:         "index.html",
		AssetsDir:       "assets",
		DistDir:         "dist",
		PayloadDir:      "win-x64",
		ArchiveSuffix:   "-win64.zip",
	}
}

// Load reads configuration from path on top of the defaults and validates it.
// An unset root_dir resolves to the directory holding the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default("")
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if !filepath.IsAbs(cfg.RootDir) {
		cfg.RootDir = filepath.Join(filepath.Dir(path), filepath.FromSlash(cfg.RootDir))
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	// Persist the root relative to the file so the settings can be committed.
	persisted := *cfg

	if absPath, err := filepath.Abs(path); err == nil {
		if rel, err := filepath.Rel(filepath.Dir(absPath), cfg.RootDir); err == nil {
			persisted.RootDir = filepath.ToSlash(rel)
		}
	}

	data, err := yaml.Marshal(&persisted)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields, absolutizes RootDir and applies the
// SOURCE_DATE_EPOCH override.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := bundle.Validator().Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}

	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return fmt.Errorf("resolve root dir: %w", err)
	}

	cfg.RootDir = root

	if raw, ok := os.LookupEnv(SourceDateEpochEnv); ok && raw != "" {
		epoch, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || epoch < 0 {
			return fmt.Errorf("invalid %s %q", SourceDateEpochEnv, raw)
		}

		cfg.SourceDateEpoch = &epoch
	}

	return nil
}

// Path resolves p against RootDir unless it is already absolute.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.RootDir, p)
}

// CratePath is the directory the toolchain runs in.
func (c *Config) CratePath() string {
	return c.Path(c.CrateDir)
}

// UIEntryPath is the UI entry file.
func (c *Config) UIEntryPath() string {
	return c.Path(c.UIEntry)
}

// AssetsPath is the UI asset directory.
func (c *Config) AssetsPath() string {
	return c.Path(c.AssetsDir)
}

// DistPath is the distribution output directory.
func (c *Config) DistPath() string {
	return c.Path(c.DistDir)
}

// PayloadPath is the staged payload directory.
func (c *Config) PayloadPath() string {
	return filepath.Join(c.DistPath(), c.PayloadDir)
}

// ArchivePath is the distribution archive.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.DistPath(), c.ProductName+c.ArchiveSuffix)
}

// ExecutableName is the distributed file name of the built executable.
func (c *Config) ExecutableName() string {
	return c.ProductName + payloadExecutableExt
}

// ArchiveTime returns the pinned archive timestamp, or the zero time when unset.
// Timestamps before 1980-01-01 are raised to it.
func (c *Config) ArchiveTime() time.Time {
	if c.SourceDateEpoch == nil {
		return time.Time{}
	}

	pinned := time.Unix(*c.SourceDateEpoch, 0).UTC()
	if pinned.Before(minArchiveTime) {
		return minArchiveTime
	}

	return pinned
}

// BuildRequest assembles the toolchain request for the given target and profile.
func (c *Config) BuildRequest(target, profile string) *bundle.BuildRequest {
	return &bundle.BuildRequest{
		Package:         c.PackageName,
		Features:        append([]string(nil), c.Features...),
		DefaultFeatures: c.DefaultFeatures,
		Target:          target,
		Profile:         profile,
	}
}
