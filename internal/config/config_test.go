package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
target = "jpeg"
mode = "pdf"
output_dir = "/tmp/out"

[conversion]
jpeg_quality = 0.7
group_size = 5

[packaging]
page_margin_mm = 15.0
download_interval = "250ms"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "jpeg", cfg.Target)
	assert.Equal(t, "pdf", cfg.Mode)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)

	conv := cfg.ConverterConfig()
	assert.Equal(t, 0.7, conv.JPEGQuality)
	assert.Equal(t, 0.9, conv.PNGQuality, "unset values keep defaults")
	assert.Equal(t, 5, conv.GroupSize)

	pkg := cfg.PackagerConfig()
	assert.Equal(t, 15.0, pkg.PageMarginMM)
	assert.True(t, pkg.VerifyPDF)
	assert.Equal(t, 250*time.Millisecond, pkg.DownloadInterval)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	path := writeConfig(t, `
target = "gif"
mode = "tar"
log_level = "loud"

[conversion]
jpeg_quality = 1.5
png_quality = -1.0
group_size = 0

[packaging]
page_margin_mm = -3.0
download_interval = "soon"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Target, cfg.Target)
	assert.Equal(t, def.Mode, cfg.Mode)
	assert.Equal(t, def.LogLevel, cfg.LogLevel)
	assert.Equal(t, def.Convert, cfg.Convert)
	assert.Equal(t, def.Package.PageMarginMM, cfg.Package.PageMarginMM)
	assert.Equal(t, def.Package.DownloadInterval, cfg.Package.DownloadInterval)
}

func TestValidate_ReportsResetFields(t *testing.T) {
	cfg := Default()
	cfg.Convert.HEICQuality = 2
	cfg.Mode = "carrier-pigeon"

	assert.ElementsMatch(t, []string{"mode", "conversion.heic_quality"}, cfg.Validate())
	assert.Empty(t, Default().Validate())
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "target = "))
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Target = "heic"
	cfg.Package.VerifyPDF = false
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDefaultPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".heic-converter", "config.toml"), path)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}
