// Package codec decodes HEIC, PNG and JPEG images and re-encodes them into a target format.
package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"

	"github.com/adrium/goheif"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// ErrHEICEncodingUnavailable is returned when the binary was built without the heic tag.
var ErrHEICEncodingUnavailable = errors.New("heic encoding is not available in this build (rebuild with -tags heic)")

// ErrUnrecognizedImage is returned when the source bytes are not PNG, JPEG or HEIC.
var ErrUnrecognizedImage = errors.New("unrecognized image data")

func init() {
	// Without it, decoded planes point into C memory that Decode frees before returning.
	goheif.SafeEncoding = true
}

// Codec converts one encoded image into another encoding.
// Implementations write only the encoded bytes; callers decide how the result is tagged.
type Codec interface {
	Encode(ctx context.Context, src io.Reader, target Format, quality float64, dst io.Writer) error
}

// Native is the in-process Codec: goheif for HEIC decoding, imaging for PNG/JPEG,
// and libheif for HEIC encoding when built with the heic tag.
type Native struct{}

// NewNative returns a ready to use Native codec.
func NewNative() *Native {
	return &Native{}
}

var _ Codec = (*Native)(nil)

// Encode decodes src, applies its orientation and writes it to dst in the target format.
func (n *Native) Encode(ctx context.Context, src io.Reader, target Format, quality float64, dst io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("could not read image data: %w", err)
	}

	img, srcFormat, err := decode(data)
	if err != nil {
		return err
	}
	slog.Debug("Decoded image", "format", srcFormat, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	if err := ctx.Err(); err != nil {
		return err
	}
	return encode(img, target, quality, dst)
}

// Decode returns the oriented image stored in data along with its detected format.
func Decode(data []byte) (image.Image, Format, error) {
	return decode(data)
}

func decode(data []byte) (image.Image, Format, error) {
	srcFormat, ok := Sniff(data)
	if !ok {
		return nil, "", ErrUnrecognizedImage
	}

	if srcFormat == HEIC {
		img, err := decodeHEIC(data)
		if err != nil {
			return nil, srcFormat, err
		}
		// Orientation is best effort; a missing or broken EXIF block leaves the image as stored.
		if rawExif, exifErr := goheif.ExtractExif(bytes.NewReader(data)); exifErr == nil {
			img = applyOrientation(img, orientationFromExif(rawExif))
		} else {
			slog.Debug("No EXIF data in heic image", "error", exifErr)
		}
		return img, srcFormat, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, srcFormat, fmt.Errorf("could not decode %s image: %w", srcFormat, err)
	}
	return img, srcFormat, nil
}

// decodeHEIC turns panics from the HEVC decoder on truncated input into errors.
func decodeHEIC(data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("could not decode heic image: %v", r)
		}
	}()
	img, err = goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode heic image: %w", err)
	}
	return img, nil
}

func encode(img image.Image, target Format, quality float64, dst io.Writer) error {
	switch target {
	case PNG:
		level := png.DefaultCompression
		if quality < DefaultPNGQuality {
			level = png.BestSpeed
		}
		if err := imaging.Encode(dst, img, imaging.PNG, imaging.PNGCompressionLevel(level)); err != nil {
			return fmt.Errorf("could not encode png: %w", err)
		}
		return nil
	case JPEG:
		if err := imaging.Encode(dst, flatten(img), imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality))); err != nil {
			return fmt.Errorf("could not encode jpeg: %w", err)
		}
		return nil
	case HEIC:
		return encodeHEIC(img, quality, dst)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, target)
	}
}

// jpegQuality maps a 0..1 quality to the 1..100 scale of image/jpeg.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	return max(1, min(100, v))
}

// flatten composites img over an opaque white background. JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}
