package codec

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrium/goheif"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// heicHeader is the start of an ftyp box as written by iPhones.
func heicHeader() []byte {
	return append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypheic\x00\x00\x00\x00mif1heic")...)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"png", PNG},
		{"PNG", PNG},
		{"jpg", JPEG},
		{"jpeg", JPEG},
		{".jpeg", JPEG},
		{"heic", HEIC},
		{"heif", HEIC},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFormat("webp")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "image/png", PNG.MIMEType())
	assert.Equal(t, "image/jpeg", JPEG.MIMEType())
	assert.Equal(t, "image/heic", HEIC.MIMEType())

	assert.Equal(t, "png", PNG.Extension())
	assert.Equal(t, "jpg", JPEG.Extension())
	assert.Equal(t, "heic", HEIC.Extension())

	assert.Less(t, DefaultQuality(JPEG), DefaultQuality(PNG))
	assert.True(t, JPEG.Raster())
	assert.False(t, HEIC.Raster())
}

func TestFormatFromFilenameAndMIME(t *testing.T) {
	f, ok := FormatFromFilename("IMG_0001.HEIC")
	assert.True(t, ok)
	assert.Equal(t, HEIC, f)

	_, ok = FormatFromFilename("notes.txt")
	assert.False(t, ok)

	f, ok = FormatFromMIME("image/heif-sequence")
	assert.True(t, ok)
	assert.Equal(t, HEIC, f)

	f, ok = FormatFromMIME("image/jpeg")
	assert.True(t, ok)
	assert.Equal(t, JPEG, f)

	_, ok = FormatFromMIME("application/octet-stream")
	assert.False(t, ok)
}

func TestSniff(t *testing.T) {
	f, ok := Sniff(pngBytes(t, 2, 2, color.Black))
	assert.True(t, ok)
	assert.Equal(t, PNG, f)

	f, ok = Sniff(heicHeader())
	assert.True(t, ok)
	assert.Equal(t, HEIC, f)

	mp4 := append([]byte{0x00, 0x00, 0x00, 0x14}, []byte("ftypisom\x00\x00\x02\x00isom")...)
	_, ok = Sniff(mp4)
	assert.False(t, ok)

	_, ok = Sniff([]byte("plain text"))
	assert.False(t, ok)
}

func TestNativeEncode_PNGToJPEG(t *testing.T) {
	src := pngBytes(t, 8, 4, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

	var out bytes.Buffer
	err := NewNative().Encode(context.Background(), bytes.NewReader(src), JPEG, DefaultJPEGQuality, &out)
	require.NoError(t, err)

	img, err := jpeg.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestNativeEncode_TransparentPixelsBecomeWhiteInJPEG(t *testing.T) {
	src := pngBytes(t, 4, 4, color.NRGBA{})

	var out bytes.Buffer
	require.NoError(t, NewNative().Encode(context.Background(), bytes.NewReader(src), JPEG, 0.95, &out))

	img, err := jpeg.Decode(&out)
	require.NoError(t, err)
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestNativeEncode_UnrecognizedInput(t *testing.T) {
	var out bytes.Buffer
	err := NewNative().Encode(context.Background(), bytes.NewReader([]byte("not an image")), PNG, DefaultPNGQuality, &out)
	assert.ErrorIs(t, err, ErrUnrecognizedImage)
	assert.Zero(t, out.Len())
}

func TestNativeEncode_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := NewNative().Encode(ctx, bytes.NewReader(pngBytes(t, 2, 2, color.White)), PNG, DefaultPNGQuality, &out)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNativeEncode_BrokenHEIC(t *testing.T) {
	var out bytes.Buffer
	err := NewNative().Encode(context.Background(), bytes.NewReader(heicHeader()), PNG, DefaultPNGQuality, &out)
	require.Error(t, err)
	assert.Zero(t, out.Len())
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestDecode_HEICFixture(t *testing.T) {
	require.True(t, goheif.SafeEncoding)

	img, format, err := Decode(readFixture(t, "camel.heic"))
	require.NoError(t, err)
	assert.Equal(t, HEIC, format)
	assert.Equal(t, 1596, img.Bounds().Dx())
	assert.Equal(t, 1064, img.Bounds().Dy())
}

func TestNativeEncode_HEICToPNGAndJPEG(t *testing.T) {
	src := readFixture(t, "camel.heic")
	tests := []struct {
		target Format
		decode func(*bytes.Buffer) (image.Image, error)
	}{
		{PNG, func(b *bytes.Buffer) (image.Image, error) { return png.Decode(b) }},
		{JPEG, func(b *bytes.Buffer) (image.Image, error) { return jpeg.Decode(b) }},
	}
	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, NewNative().Encode(context.Background(), bytes.NewReader(src), tt.target, DefaultQuality(tt.target), &out))

			img, err := tt.decode(&out)
			require.NoError(t, err)
			assert.Equal(t, 1596, img.Bounds().Dx())
			assert.Equal(t, 1064, img.Bounds().Dy())
		})
	}
}

func TestOrientationFromExif_HEICFixture(t *testing.T) {
	raw, err := goheif.ExtractExif(bytes.NewReader(readFixture(t, "camel.heic")))
	if err != nil {
		t.Skipf("fixture carries no EXIF block: %v", err)
	}
	o := orientationFromExif(raw)
	assert.GreaterOrEqual(t, o, 1)
	assert.LessOrEqual(t, o, 8)
}

func TestApplyOrientation(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))

	for _, o := range []int{1, 2, 3, 4} {
		got := applyOrientation(img, o)
		assert.Equal(t, image.Pt(4, 2), got.Bounds().Size(), "orientation %d", o)
	}
	for _, o := range []int{5, 6, 7, 8} {
		got := applyOrientation(img, o)
		assert.Equal(t, image.Pt(2, 4), got.Bounds().Size(), "orientation %d", o)
	}
}

func TestOrientationFromExif_NoExif(t *testing.T) {
	assert.Equal(t, 1, orientationFromExif([]byte("no exif here")))
}

func TestJPEGQualityScale(t *testing.T) {
	assert.Equal(t, 85, jpegQuality(0.85))
	assert.Equal(t, 100, jpegQuality(1.5))
	assert.Equal(t, 1, jpegQuality(0))
}
