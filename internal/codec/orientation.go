package codec

import (
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// orientationFromExif reads the EXIF Orientation tag (1..8). It returns 1 when the
// tag is missing or unreadable.
func orientationFromExif(data []byte) int {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return 1
	}

	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return 1
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		slog.Debug("Could not parse EXIF block", "error", err)
		return 1
	}

	tags, err := index.RootIfd.FindTagWithName("Orientation")
	if err != nil || len(tags) == 0 {
		return 1
	}
	val, err := tags[0].Value()
	if err != nil {
		return 1
	}
	if vals, ok := val.([]uint16); ok && len(vals) > 0 && vals[0] >= 1 && vals[0] <= 8 {
		return int(vals[0])
	}
	return 1
}

// applyOrientation turns a stored image upright according to an EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
