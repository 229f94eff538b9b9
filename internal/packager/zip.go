package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"heic_converter/internal/codec"
	"heic_converter/internal/converter"
)

// ZipPackager bundles every output into one archive.
type ZipPackager struct {
	now func() time.Time
}

// NewZipPackager returns a ZipPackager that stamps archive names with the current time.
func NewZipPackager() *ZipPackager {
	return &ZipPackager{now: time.Now}
}

// Build writes one entry per result, in order, named with converter.DeriveName.
func (z *ZipPackager) Build(results converter.BatchResult, target codec.Format) (Deliverable, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, res := range results {
		name := converter.DeriveName(res.Original.Name, target)
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: z.now(),
		})
		if err != nil {
			return Deliverable{}, &PackagingError{Mode: Zip, Name: name, Err: fmt.Errorf("could not create archive entry: %w", err)}
		}
		if _, err := w.Write(res.Output.Data); err != nil {
			return Deliverable{}, &PackagingError{Mode: Zip, Name: name, Err: fmt.Errorf("could not write archive entry: %w", err)}
		}
		slog.Debug("Added file to archive", "entry", name, "size", len(res.Output.Data))
	}
	if err := zw.Close(); err != nil {
		return Deliverable{}, &PackagingError{Mode: Zip, Err: fmt.Errorf("could not finalize archive: %w", err)}
	}

	return Deliverable{
		Name:     archiveName(z.now(), "zip"),
		MIMEType: "application/zip",
		Data:     buf.Bytes(),
	}, nil
}

// Package builds the archive and downloads it once. Empty results are a no-op.
func (z *ZipPackager) Package(ctx context.Context, results converter.BatchResult, target codec.Format, dl Downloader) error {
	if len(results) == 0 {
		return nil
	}
	d, err := z.Build(results, target)
	if err != nil {
		return err
	}
	slog.Info("Archive built", "name", d.Name, "entries", len(results), "size", len(d.Data))
	return download(ctx, dl, Zip, d)
}
