//go:build !heic

package codec

import (
	"image"
	"io"
)

// HEICEncodingAvailable reports whether this build can produce HEIC output.
const HEICEncodingAvailable = false

func encodeHEIC(image.Image, float64, io.Writer) error {
	return ErrHEICEncodingUnavailable
}
