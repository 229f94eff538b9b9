package converter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"heic_converter/internal/codec"
)

// bufferPool holds the scratch buffers the codec encodes into.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Adapter runs a single file through a codec.Codec. It checks the source format,
// owns the scratch buffer for the duration of the call and tags the result.
type Adapter struct {
	codec codec.Codec
	cfg   *Config
}

// NewAdapter wraps c. A nil cfg uses NewDefaultConfig.
func NewAdapter(c codec.Codec, cfg *Config) *Adapter {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	return &Adapter{codec: c, cfg: cfg}
}

// Convert converts file into target. Files in the wrong source format fail with
// *UnsupportedInputError; codec failures fail with *ConversionError.
func (a *Adapter) Convert(ctx context.Context, file InputFile, target codec.Format) (out Blob, err error) {
	if !Accepts(file, target) {
		return Blob{}, &UnsupportedInputError{Name: file.Name, MIMEType: file.MIMEType, Target: target}
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Codec panicked", "filename", file.Name, "panic", r)
			out, err = Blob{}, &ConversionError{Name: file.Name, Err: fmt.Errorf("codec panic: %v", r)}
		}
	}()

	quality := a.cfg.Quality(target)
	slog.Debug("Converting file", "filename", file.Name, "index", file.Index, "target", target, "quality", quality)
	if err := a.codec.Encode(ctx, bytes.NewReader(file.Data), target, quality, buf); err != nil {
		return Blob{}, &ConversionError{Name: file.Name, Err: err}
	}
	if buf.Len() == 0 {
		return Blob{}, &ConversionError{Name: file.Name, Err: fmt.Errorf("codec produced no output")}
	}

	// The pooled buffer is reused after return, so the bytes are copied out.
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return Blob{Data: data, MIMEType: target.MIMEType()}, nil
}

// Accepts reports whether file is in the source format expected for target:
// HEIC for the PNG/JPEG targets, PNG or JPEG for the HEIC target.
// The declared MIME type, the extension and the leading bytes are each sufficient.
func Accepts(file InputFile, target codec.Format) bool {
	want := func(f codec.Format) bool {
		if target == codec.HEIC {
			return f.Raster()
		}
		return f == codec.HEIC
	}
	if !target.Raster() && target != codec.HEIC {
		return false
	}

	if f, ok := codec.FormatFromMIME(file.MIMEType); ok && want(f) {
		return true
	}
	if f, ok := codec.FormatFromFilename(strings.TrimSpace(file.Name)); ok && want(f) {
		return true
	}
	if f, ok := codec.Sniff(file.Data); ok && want(f) {
		return true
	}
	return false
}

// FilterInputs splits files into those acceptable for target and those that are not.
func FilterInputs(files []InputFile, target codec.Format) (accepted, skipped []InputFile) {
	for _, f := range files {
		if Accepts(f, target) {
			accepted = append(accepted, f)
		} else {
			skipped = append(skipped, f)
		}
	}
	return accepted, skipped
}
