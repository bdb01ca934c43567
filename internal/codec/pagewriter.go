// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// A4 page size and default margin in PDF points.
const (
	A4Width  = 595.28
	A4Height = 841.89
	A4Margin = 72.0
)

// Placement positions an image on a page, in points from the top-left corner.
type Placement struct {
	X, Y, W, H float64
}

// PageWriter writes single-page A4 PDFs holding one raster image.
type PageWriter struct {
	// Quality is the JPEG quality used for the embedded image.
	Quality int
}

// NewPageWriter returns a PageWriter embedding images at the given JPEG quality.
func NewPageWriter(quality int) *PageWriter {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &PageWriter{Quality: quality}
}

// WritePage writes img at place on a fresh A4 page and saves it to dst.
// modTime is recorded as the document's creation and modification date so
// re-running a conversion on an unchanged source produces the same bytes.
func (p *PageWriter) WritePage(dst string, img image.Image, place Placement, modTime time.Time) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.Quality}); err != nil {
		return fmt.Errorf("encoding page image: %w", err)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(modTime)
	pdf.SetModificationDate(modTime)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("page", opts, &buf)
	pdf.ImageOptions("page", place.X, place.Y, place.W, place.H, false, opts, 0, "")

	if err := pdf.OutputFileAndClose(dst); err != nil {
		return fmt.Errorf("writing pdf %s: %w", dst, err)
	}
	return nil
}
