//go:build heic

package codec

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/strukturag/libheif/go/heif"
)

// HEICEncodingAvailable reports whether this build can produce HEIC output.
const HEICEncodingAvailable = true

// encodeHEIC encodes img through libheif. libheif only writes to a path, so the
// output goes through a temporary file that is removed on every return path.
func encodeHEIC(img image.Image, quality float64, dst io.Writer) error {
	tmp, err := os.CreateTemp("", "heic-encode-*.heic")
	if err != nil {
		return fmt.Errorf("could not create temporary heic file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temporary heic file: %w", err)
	}

	ctx, err := heif.EncodeFromImage(img, heif.CompressionHEVC, jpegQuality(quality), heif.LosslessModeDisabled, heif.LoggingLevelNone)
	if err != nil {
		return fmt.Errorf("could not encode heic: %w", err)
	}
	if err := ctx.WriteToFile(path); err != nil {
		return fmt.Errorf("could not write heic: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not reopen encoded heic: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("could not copy encoded heic: %w", err)
	}
	return nil
}
