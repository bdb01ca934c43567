// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package codec

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
)

// Rasterizer renders PDF pages to raster images.
type Rasterizer interface {
	// Available reports whether the rasteriser can run at all.
	Available() bool

	// RenderPage renders the 1-based page of pdfPath at dpi. workDir is a
	// scratch directory the rasteriser may write intermediate files into.
	RenderPage(ctx context.Context, pdfPath string, page, dpi int, workDir string) (image.Image, error)
}

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct {
	bin string
	run commandRunner
}

// NewPdftoppm returns a Rasterizer using the given pdftoppm binary
// (default "pdftoppm").
func NewPdftoppm(bin string) *Pdftoppm {
	if bin == "" {
		bin = "pdftoppm"
	}
	return &Pdftoppm{bin: bin, run: osRunner{}}
}

func (p *Pdftoppm) Available() bool {
	_, err := p.run.LookPath(p.bin)
	return err == nil
}

func (p *Pdftoppm) RenderPage(ctx context.Context, pdfPath string, page, dpi int, workDir string) (image.Image, error) {
	if !p.Available() {
		return nil, missingTool("render page", p.bin)
	}

	dir, err := os.MkdirTemp(workDir, "render-*")
	if err != nil {
		return nil, fmt.Errorf("creating render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	root := filepath.Join(dir, "page")
	n := strconv.Itoa(page)
	args := []string{"-r", strconv.Itoa(dpi), "-f", n, "-l", n, "-png", "-singlefile", pdfPath, root}
	if err := p.run.Run(ctx, p.bin, args...); err != nil {
		return nil, fmt.Errorf("rendering page %d of %s: %w", page, filepath.Base(pdfPath), err)
	}

	f, err := os.Open(root + ".png")
	if err != nil {
		return nil, fmt.Errorf("reading rendered page %d: %w", page, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding rendered page %d: %w", page, err)
	}
	return img, nil
}
