package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/desktop-packager/internal/config"
	"github.com/oshokin/desktop-packager/internal/domain/bundle"
	"github.com/oshokin/desktop-packager/internal/logger"
	"github.com/oshokin/desktop-packager/internal/service/packager"
	"github.com/oshokin/desktop-packager/internal/version"
)

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// rootDir overrides the repository root from the configuration.
	rootDir string
	// target is the target triple to compile.
	target string
	// profile is the cargo profile to build.
	profile string
	// skipZip stops after staging the payload directory.
	skipZip bool
	// engines are extra binaries or folders placed next to the executable.
	engines []string
	// logLevel is the minimum level of log output.
	logLevel string

	// rootCmd represents the base command for building the Windows bundle.
	rootCmd = &cobra.Command{
		Use:   "desktop-packager",
		Short: "Build and package the desktop application for Windows.",
		Long: `Cross-compiles the desktop crate, stages the UI assets next to the executable
and emits a zip archive ready for distribution.

The payload directory (dist/win-x64 by default) is recreated from scratch on
every run. Pass --skip-zip to stop after staging.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyLogLevel(); err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				Config:  cfg,
				Target:  target,
				Profile: profile,
				SkipZip: skipZip,
				Engines: engines,
			}

			_, err = packager.Run(ctx, options)

			return err
		},
	}

	// initConfigCmd writes the default configuration file.
	initConfigCmd = &cobra.Command{
		Use:   "init-config [file]",
		Short: "Write the default configuration to a YAML file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			cfg := config.Default(".")
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

			return nil
		},
	}
)

// Execute runs the desktop-packager CLI and exits with the status matching the failure.
func Execute() {
	if code := execute(os.Args[1:], os.Stderr); code != bundle.ExitOK {
		os.Exit(code)
	}
}

// execute runs the root command with args and returns the process exit status.
func execute(args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)

		return bundle.ExitCode(err)
	}

	return bundle.ExitOK
}

// loadConfig reads --config, or the default file when present, and applies --root.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath

	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(config.DefaultConfigFilename); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("stat %s: %w", config.DefaultConfigFilename, err)
			}

			path = ""
		}
	}

	cfg := config.Default(".")

	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if rootDir != "" {
		cfg.RootDir = rootDir
	}

	return cfg, nil
}

func applyLogLevel() error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&rootDir, "root", "", "repository root (default: root_dir from the configuration, or the current directory)")
	flags.StringVar(&target, "target", config.DefaultTarget, "Rust target triple to compile")
	flags.StringVar(&profile, "profile", config.DefaultProfile, "Cargo profile to build")
	flags.BoolVar(&skipZip, "skip-zip", false, "skip creating the zip archive (stages files under dist/win-x64 only)")
	flags.StringArrayVar(&engines, "engine", nil, "additional engine binary or folder to place next to the executable (repeatable)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(initConfigCmd)
	version.AttachCobraVersionCommand(rootCmd)
}
