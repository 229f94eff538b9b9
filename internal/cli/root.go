// Package cli implements the heic-converter command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"heic_converter/internal/config"
)

// version is set at build time with -ldflags "-X heic_converter/internal/cli.version=...".
var version = "dev"

var (
	configPath string
	logLevel   string
	verbose    bool

	// appConfig is loaded before any subcommand runs.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "heic-converter",
	Short: "Convert HEIC photos to PNG or JPEG and back",
	Long: `heic-converter converts batches of HEIC images to PNG or JPEG, or PNG/JPEG
images to HEIC, and saves the results as individual files, a ZIP archive or
a PDF document with one image per page.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.heic-converter/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the config file and installs the logger.
func setup(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	slog.Debug("Configuration loaded", "path", path, "target", cfg.Target, "mode", cfg.Mode)

	appConfig = cfg
	return nil
}
