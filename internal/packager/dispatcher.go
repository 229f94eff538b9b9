package packager

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"heic_converter/internal/codec"
	"heic_converter/internal/converter"
)

// Dispatcher routes a batch result to the packager for the requested mode.
type Dispatcher struct {
	downloader Downloader
	zip        *ZipPackager
	pdf        *PDFPackager
	limiter    *rate.Limiter
}

// NewDispatcher creates a Dispatcher that saves through dl. A nil cfg uses NewDefaultConfig.
func NewDispatcher(dl Downloader, cfg *Config) *Dispatcher {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	limit := rate.Inf
	if cfg.DownloadInterval > 0 {
		limit = rate.Every(cfg.DownloadInterval)
	}
	return &Dispatcher{
		downloader: dl,
		zip:        NewZipPackager(),
		pdf:        NewPDFPackager(cfg),
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Deliver packages results according to mode. Empty results deliver nothing.
func (d *Dispatcher) Deliver(ctx context.Context, results converter.BatchResult, target codec.Format, mode Mode) error {
	if len(results) == 0 {
		slog.Debug("Nothing to deliver")
		return nil
	}

	slog.Info("Delivering converted files", "mode", mode, "count", len(results), "target", target)
	switch mode {
	case Individual:
		return d.deliverIndividually(ctx, results, target)
	case Zip:
		return d.zip.Package(ctx, results, target, d.downloader)
	case PDF:
		return d.pdf.Package(ctx, results, target, d.downloader)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// deliverIndividually downloads each output in order; a download starts only after the previous one returned.
func (d *Dispatcher) deliverIndividually(ctx context.Context, results converter.BatchResult, target codec.Format) error {
	for _, res := range results {
		if err := d.limiter.Wait(ctx); err != nil {
			return &PackagingError{Mode: Individual, Err: err}
		}
		item := Deliverable{
			Name:     converter.DeriveName(res.Original.Name, target),
			MIMEType: res.Output.MIMEType,
			Data:     res.Output.Data,
		}
		if err := download(ctx, d.downloader, Individual, item); err != nil {
			return err
		}
		slog.Debug("Downloaded file", "name", item.Name, "size", len(item.Data))
	}
	return nil
}
