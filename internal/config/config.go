// Package config loads the heic-converter settings file.
//
// Settings are stored as TOML, by default in ~/.heic-converter/config.toml.
// A missing file yields the defaults. Out of range values are reset to their
// defaults and reported with a warning.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"heic_converter/internal/codec"
	"heic_converter/internal/converter"
	"heic_converter/internal/packager"
)

const (
	dirName  = ".heic-converter"
	fileName = "config.toml"
)

// Config is the on-disk application configuration.
type Config struct {
	Target    string     `toml:"target"`
	Mode      string     `toml:"mode"`
	OutputDir string     `toml:"output_dir"`
	LogLevel  string     `toml:"log_level"`
	Convert   Conversion `toml:"conversion"`
	Package   Packaging  `toml:"packaging"`
}

// Conversion mirrors converter.Config.
type Conversion struct {
	JPEGQuality float64 `toml:"jpeg_quality"`
	PNGQuality  float64 `toml:"png_quality"`
	HEICQuality float64 `toml:"heic_quality"`
	GroupSize   int     `toml:"group_size"`
}

// Packaging mirrors packager.Config. DownloadInterval uses time.ParseDuration syntax.
type Packaging struct {
	PageMarginMM     float64 `toml:"page_margin_mm"`
	VerifyPDF        bool    `toml:"verify_pdf"`
	DownloadInterval string  `toml:"download_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	conv := converter.NewDefaultConfig()
	pkg := packager.NewDefaultConfig()
	return &Config{
		Target:    string(codec.PNG),
		Mode:      string(packager.Individual),
		OutputDir: ".",
		LogLevel:  "info",
		Convert: Conversion{
			JPEGQuality: conv.JPEGQuality,
			PNGQuality:  conv.PNGQuality,
			HEICQuality: conv.HEICQuality,
			GroupSize:   conv.GroupSize,
		},
		Package: Packaging{
			PageMarginMM:     pkg.PageMarginMM,
			VerifyPDF:        pkg.VerifyPDF,
			DownloadInterval: "0s",
		},
	}
}

// DefaultPath returns ~/.heic-converter/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, dirName, fileName), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No config file, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	for _, field := range cfg.Validate() {
		slog.Warn("Invalid config value, using default", "path", path, "field", field)
	}
	return cfg, nil
}

// Save writes c to path, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("could not write config %s: %w", path, err)
	}
	return nil
}

// Validate resets invalid values to their defaults and returns the names of the reset fields.
func (c *Config) Validate() []string {
	def := Default()
	var reset []string

	if _, err := codec.ParseFormat(c.Target); err != nil {
		c.Target = def.Target
		reset = append(reset, "target")
	}
	if _, err := packager.ParseMode(c.Mode); err != nil {
		c.Mode = def.Mode
		reset = append(reset, "mode")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = def.OutputDir
		reset = append(reset, "output_dir")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = def.LogLevel
		reset = append(reset, "log_level")
	}

	conv := c.ConverterConfig()
	for _, f := range conv.Sanitize() {
		reset = append(reset, "conversion."+f)
	}
	c.Convert = Conversion{
		JPEGQuality: conv.JPEGQuality,
		PNGQuality:  conv.PNGQuality,
		HEICQuality: conv.HEICQuality,
		GroupSize:   conv.GroupSize,
	}

	if c.Package.PageMarginMM < 0 || c.Package.PageMarginMM >= 100 {
		c.Package.PageMarginMM = def.Package.PageMarginMM
		reset = append(reset, "packaging.page_margin_mm")
	}
	if d, err := time.ParseDuration(c.Package.DownloadInterval); err != nil || d < 0 {
		c.Package.DownloadInterval = def.Package.DownloadInterval
		reset = append(reset, "packaging.download_interval")
	}
	return reset
}

// ConverterConfig returns the conversion settings.
func (c *Config) ConverterConfig() *converter.Config {
	return &converter.Config{
		JPEGQuality: c.Convert.JPEGQuality,
		PNGQuality:  c.Convert.PNGQuality,
		HEICQuality: c.Convert.HEICQuality,
		GroupSize:   c.Convert.GroupSize,
	}
}

// PackagerConfig returns the packaging settings. An unparsable interval means no pacing.
func (c *Config) PackagerConfig() *packager.Config {
	interval, err := time.ParseDuration(c.Package.DownloadInterval)
	if err != nil || interval < 0 {
		interval = 0
	}
	return &packager.Config{
		PageMarginMM:     c.Package.PageMarginMM,
		VerifyPDF:        c.Package.VerifyPDF,
		DownloadInterval: interval,
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
