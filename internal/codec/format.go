package codec

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when a format name is not one of png, jpeg or heic.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format is an image encoding this tool can produce or consume.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	HEIC Format = "heic"
)

// Quality defaults. JPEG is biased toward speed over fidelity.
const (
	DefaultJPEGQuality = 0.85
	DefaultPNGQuality  = 0.9
	DefaultHEICQuality = 0.8
)

// ParseFormat accepts the usual spellings of a target format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "heic", "heif":
		return HEIC, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// MIMEType returns the canonical MIME type of f.
func (f Format) MIMEType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case HEIC:
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the canonical file extension of f, without the dot.
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// Raster reports whether f is one of the plain raster targets (PNG or JPEG).
func (f Format) Raster() bool {
	return f == PNG || f == JPEG
}

// DefaultQuality returns the default encoder quality for f.
func DefaultQuality(f Format) float64 {
	switch f {
	case JPEG:
		return DefaultJPEGQuality
	case HEIC:
		return DefaultHEICQuality
	default:
		return DefaultPNGQuality
	}
}

// FormatFromFilename guesses the format from the file extension.
func FormatFromFilename(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return PNG, true
	case ".jpg", ".jpeg":
		return JPEG, true
	case ".heic", ".heif":
		return HEIC, true
	default:
		return "", false
	}
}

// FormatFromMIME guesses the format from a declared MIME type.
// Matching is by substring, so "image/heic-sequence" counts as HEIC.
func FormatFromMIME(mimeType string) (Format, bool) {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "heic"), strings.Contains(m, "heif"):
		return HEIC, true
	case strings.Contains(m, "png"):
		return PNG, true
	case strings.Contains(m, "jpeg"), strings.Contains(m, "jpg"):
		return JPEG, true
	default:
		return "", false
	}
}

// heifBrands are the ISO-BMFF major/compatible brands used by HEIC and HEIF stills.
var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
}

// Sniff detects the format from the leading bytes of data.
func Sniff(data []byte) (Format, bool) {
	if isHEIF(data) {
		return HEIC, true
	}
	switch http.DetectContentType(data) {
	case "image/png":
		return PNG, true
	case "image/jpeg":
		return JPEG, true
	}
	return "", false
}

// isHEIF looks for an ftyp box ([size][ftyp][major brand][minor][compatible...])
// that names one of the HEIF brands.
func isHEIF(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	boxEnd := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	if boxEnd < 16 || boxEnd > len(data) {
		boxEnd = min(len(data), 64)
	}
	for _, brand := range heifBrands {
		if bytes.Contains(data[8:boxEnd], brand) {
			return true
		}
	}
	return false
}
