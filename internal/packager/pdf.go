package packager

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder for DecodeConfig
	_ "image/png"  // Register PNG decoder for DecodeConfig
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"heic_converter/internal/codec"
	"heic_converter/internal/converter"
)

// mmPerPixel maps image pixels to document millimetres at 96 pixels per inch.
const mmPerPixel = 25.4 / 96

var disablePDFCPUConfig sync.Once

// PDFPackager places every output on its own A4 portrait page.
type PDFPackager struct {
	marginMM float64
	verify   bool
	now      func() time.Time
}

// NewPDFPackager creates a PDFPackager from cfg. A nil cfg uses NewDefaultConfig.
func NewPDFPackager(cfg *Config) *PDFPackager {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	return &PDFPackager{marginMM: cfg.PageMarginMM, verify: cfg.VerifyPDF, now: time.Now}
}

// Placement is where an image lands on its page, in millimetres.
type Placement struct {
	X, Y, Width, Height float64
}

// fitToArea scales an image down so it fits inside areaW x areaH while keeping its
// aspect ratio. Width is fitted first, then height. Images never grow.
func fitToArea(imgW, imgH, areaW, areaH float64) (w, h float64) {
	w, h = imgW, imgH
	if w > areaW {
		ratio := areaW / w
		w = areaW
		h *= ratio
	}
	if h > areaH {
		ratio := areaH / h
		h = areaH
		w *= ratio
	}
	return w, h
}

// place centers an image of pixel size pxW x pxH inside the printable area of a page.
func place(pxW, pxH int, pageW, pageH, margin float64) Placement {
	areaW, areaH := pageW-2*margin, pageH-2*margin
	w, h := fitToArea(float64(pxW)*mmPerPixel, float64(pxH)*mmPerPixel, areaW, areaH)
	return Placement{
		X:      margin + (areaW-w)/2,
		Y:      margin + (areaH-h)/2,
		Width:  w,
		Height: h,
	}
}

// pageImage is an output ready to be registered with gofpdf.
type pageImage struct {
	data      []byte
	imageType string // "PNG" or "JPG"
	width     int
	height    int
}

// prepareImage reads the pixel size of an output. HEIC has no PDF image type, so
// HEIC outputs are transcoded to JPEG first.
func prepareImage(data []byte, target codec.Format) (pageImage, error) {
	switch target {
	case codec.PNG, codec.JPEG:
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return pageImage{}, fmt.Errorf("could not read image dimensions: %w", err)
		}
		imageType := "PNG"
		if format == "jpeg" {
			imageType = "JPG"
		}
		return pageImage{data: data, imageType: imageType, width: cfg.Width, height: cfg.Height}, nil
	case codec.HEIC:
		img, _, err := codec.Decode(data)
		if err != nil {
			return pageImage{}, err
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
			return pageImage{}, fmt.Errorf("could not transcode heic for pdf: %w", err)
		}
		b := img.Bounds()
		return pageImage{data: buf.Bytes(), imageType: "JPG", width: b.Dx(), height: b.Dy()}, nil
	default:
		return pageImage{}, fmt.Errorf("%w: %q", codec.ErrUnsupportedFormat, target)
	}
}

// Build creates one page per result, in order, and returns the finished document.
func (p *PDFPackager) Build(results converter.BatchResult, target codec.Format) (Deliverable, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreator("heic-converter", true)
	pdf.SetTitle("Converted images", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	for i, res := range results {
		name := converter.DeriveName(res.Original.Name, target)
		img, err := prepareImage(res.Output.Data, target)
		if err != nil {
			return Deliverable{}, &PackagingError{Mode: PDF, Name: name, Err: err}
		}

		if i > 0 {
			pdf.AddPage()
		}
		pl := place(img.width, img.height, pageW, pageH, p.marginMM)
		slog.Debug("Adding image to PDF", "filename", name, "page", i+1, "x", pl.X, "y", pl.Y, "width", pl.Width, "height", pl.Height)

		imageName := fmt.Sprintf("image%d", i)
		opts := gofpdf.ImageOptions{ImageType: img.imageType, ReadDpi: false}
		pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(img.data))
		pdf.ImageOptions(imageName, pl.X, pl.Y, pl.Width, pl.Height, false, opts, 0, "")
		if pdf.Err() {
			return Deliverable{}, &PackagingError{Mode: PDF, Name: name, Err: fmt.Errorf("could not place image: %w", pdf.Error())}
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return Deliverable{}, &PackagingError{Mode: PDF, Err: fmt.Errorf("could not write PDF: %w", err)}
	}

	if p.verify {
		if err := verifyPageCount(out.Bytes(), len(results)); err != nil {
			return Deliverable{}, &PackagingError{Mode: PDF, Err: err}
		}
	}

	return Deliverable{
		Name:     archiveName(p.now(), "pdf"),
		MIMEType: "application/pdf",
		Data:     out.Bytes(),
	}, nil
}

// verifyPageCount re-reads the document and checks it has exactly want pages.
func verifyPageCount(doc []byte, want int) error {
	disablePDFCPUConfig.Do(api.DisableConfigDir)
	got, err := api.PageCount(bytes.NewReader(doc), nil)
	if err != nil {
		return fmt.Errorf("generated PDF is unreadable: %w", err)
	}
	if got != want {
		return fmt.Errorf("generated PDF has %d pages, want %d", got, want)
	}
	return nil
}

// Package builds the document and downloads it once. Empty results are a no-op.
func (p *PDFPackager) Package(ctx context.Context, results converter.BatchResult, target codec.Format, dl Downloader) error {
	if len(results) == 0 {
		return nil
	}
	d, err := p.Build(results, target)
	if err != nil {
		return err
	}
	slog.Info("PDF built", "name", d.Name, "pages", len(results), "size", len(d.Data))
	return download(ctx, dl, PDF, d)
}
