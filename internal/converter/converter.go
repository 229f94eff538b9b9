package converter

import (
	"heic_converter/internal/codec"
)

// InputFile is one image handed in by the acquisition layer. It is never modified.
type InputFile struct {
	Name     string // Original filename
	MIMEType string // Declared MIME type, may be empty
	Data     []byte // Encoded image bytes
	Index    int    // Position in the batch, used to correlate outcomes
}

// Blob is an encoded output tagged with the MIME type it was converted to.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Outcome is the result of converting one InputFile: either a Success or a Failure.
type Outcome interface {
	File() InputFile
	outcome()
}

// Success holds the output of a file that converted cleanly.
type Success struct {
	Output   Blob
	Original InputFile
}

// Failure holds the error for a file that did not convert.
type Failure struct {
	Original InputFile
	Err      error
}

func (s Success) File() InputFile { return s.Original }
func (f Failure) File() InputFile { return f.Original }

func (Success) outcome() {}
func (Failure) outcome() {}

// BatchResult is the ordered list of successful conversions of one batch.
type BatchResult []Success

// Config holds configuration for the conversion process.
type Config struct {
	JPEGQuality float64 `json:"jpeg_quality"`
	PNGQuality  float64 `json:"png_quality"`
	HEICQuality float64 `json:"heic_quality"`
	GroupSize   int     `json:"group_size"`
}

// DefaultGroupSize caps how many decoded bitmaps are held in memory at once.
const DefaultGroupSize = 3

// NewDefaultConfig creates a new Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		JPEGQuality: codec.DefaultJPEGQuality,
		PNGQuality:  codec.DefaultPNGQuality,
		HEICQuality: codec.DefaultHEICQuality,
		GroupSize:   DefaultGroupSize,
	}
}

// Quality returns the configured encoder quality for target.
func (c *Config) Quality(target codec.Format) float64 {
	switch target {
	case codec.JPEG:
		return c.JPEGQuality
	case codec.HEIC:
		return c.HEICQuality
	default:
		return c.PNGQuality
	}
}

// Sanitize resets out of range values to their defaults and reports which fields were reset.
func (c *Config) Sanitize() []string {
	def := NewDefaultConfig()
	var reset []string
	if c.JPEGQuality <= 0 || c.JPEGQuality > 1 {
		c.JPEGQuality = def.JPEGQuality
		reset = append(reset, "jpeg_quality")
	}
	if c.PNGQuality <= 0 || c.PNGQuality > 1 {
		c.PNGQuality = def.PNGQuality
		reset = append(reset, "png_quality")
	}
	if c.HEICQuality <= 0 || c.HEICQuality > 1 {
		c.HEICQuality = def.HEICQuality
		reset = append(reset, "heic_quality")
	}
	if c.GroupSize <= 0 {
		c.GroupSize = def.GroupSize
		reset = append(reset, "group_size")
	}
	return reset
}
