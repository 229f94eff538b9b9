package converter

import (
	"errors"
	"fmt"

	"heic_converter/internal/codec"
)

// ErrAllConversionsFailed is matched by AllConversionsFailedError.
var ErrAllConversionsFailed = errors.New("all conversions failed")

// UnsupportedInputError is returned when a file is not in the source format the
// target direction expects. The codec is never invoked for such a file.
type UnsupportedInputError struct {
	Name     string
	MIMEType string
	Target   codec.Format
}

func (e *UnsupportedInputError) Error() string {
	want := "heic"
	if e.Target == codec.HEIC {
		want = "png or jpeg"
	}
	return fmt.Sprintf("%s (type %q) is not a %s image", e.Name, e.MIMEType, want)
}

// ConversionError wraps a codec failure for a single file.
type ConversionError struct {
	Name string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s: %v", e.Name, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// AllConversionsFailedError is returned by ConvertBatch when a non-empty batch produced no output.
type AllConversionsFailedError struct {
	BatchID  string
	Failures []Failure
}

func (e *AllConversionsFailedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrAllConversionsFailed.Error()
	}
	return fmt.Sprintf("%s (%d files, first error: %v)", ErrAllConversionsFailed, len(e.Failures), e.Failures[0].Err)
}

func (e *AllConversionsFailedError) Is(target error) bool {
	return target == ErrAllConversionsFailed
}
