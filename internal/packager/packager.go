// Package packager turns the successful outputs of a batch into deliverables:
// one file per output, a ZIP archive, or a PDF document.
package packager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownMode is returned for a delivery mode other than individual, zip or pdf.
var ErrUnknownMode = errors.New("unknown delivery mode")

// Mode selects how converted outputs are delivered.
type Mode string

const (
	Individual Mode = "individual"
	Zip        Mode = "zip"
	PDF        Mode = "pdf"
)

// ParseMode accepts a delivery mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Individual, "files":
		return Individual, nil
	case Zip:
		return Zip, nil
	case PDF:
		return PDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Deliverable is one file handed to a Downloader.
type Deliverable struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Downloader saves a deliverable in the host environment. Calls are never made concurrently.
type Downloader interface {
	Download(ctx context.Context, d Deliverable) error
}

// PackagingError reports that building or saving a deliverable failed.
// The conversion results are untouched and delivery can be retried.
type PackagingError struct {
	Mode Mode
	Name string
	Err  error
}

func (e *PackagingError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("packaging %s (%s): %v", e.Mode, e.Name, e.Err)
	}
	return fmt.Sprintf("packaging %s: %v", e.Mode, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// Config holds packaging settings.
type Config struct {
	PageMarginMM     float64       `json:"page_margin_mm"`
	VerifyPDF        bool          `json:"verify_pdf"`
	DownloadInterval time.Duration `json:"download_interval"`
}

// DefaultPageMarginMM is the blank border kept on every side of a PDF page.
const DefaultPageMarginMM = 10.0

// NewDefaultConfig creates a new Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		PageMarginMM: DefaultPageMarginMM,
		VerifyPDF:    true,
	}
}

// archiveName returns the timestamp-qualified name of a combined deliverable.
func archiveName(now time.Time, ext string) string {
	return fmt.Sprintf("converted_images_%d.%s", now.UnixMilli(), ext)
}

func download(ctx context.Context, dl Downloader, mode Mode, d Deliverable) error {
	if err := dl.Download(ctx, d); err != nil {
		return &PackagingError{Mode: mode, Name: d.Name, Err: err}
	}
	return nil
}
