// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package strategy converts a single classified source file into its
// destination artifacts. One Strategy exists per (source kind, target format)
// pair; the Registry selects between them. Strategies own the output-layout
// policy: a source yielding one page becomes one file at the mirrored
// destination path, a source yielding several becomes a folder named after
// the destination stem holding numbered page files.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrNoStrategy is returned by Select for kinds that cannot be converted.
var ErrNoStrategy = errors.New("no conversion strategy")

// Strategy converts one source file.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Convert writes the artifacts for src. dest is the mirrored destination
	// file path; scratch is the per-run scratch directory. It returns the
	// paths written.
	Convert(ctx context.Context, src types.SourceFile, dest, scratch string) ([]string, error)
}

// PageWriter writes a single raster image as a one-page PDF.
type PageWriter interface {
	WritePage(dst string, img image.Image, place codec.Placement, modTime time.Time) error
}

// Deps holds the codec capabilities strategies are built from.
type Deps struct {
	// DecodeFrames defaults to codec.DecodeFrames.
	DecodeFrames func(path string) ([]image.Image, error)
	Pages        PageWriter
	PDF          codec.PDF
	Raster       codec.Rasterizer
	Documents    codec.DocumentConverter

	// DPI is the rendering resolution for PDF pages (default 150).
	DPI int
}

type key struct {
	kind   types.Kind
	format types.TargetFormat
}

// Registry maps (kind, format) pairs to strategies.
type Registry struct {
	strategies map[key]Strategy
}

// NewRegistry builds the strategy table from deps.
func NewRegistry(deps Deps) *Registry {
	if deps.DecodeFrames == nil {
		deps.DecodeFrames = codec.DecodeFrames
	}
	if deps.DPI <= 0 {
		deps.DPI = types.DefaultDPI
	}

	tiff := &toTIFF{
		decode: deps.DecodeFrames,
		pdf:    deps.PDF,
		raster: deps.Raster,
		docs:   deps.Documents,
		dpi:    deps.DPI,
	}
	return &Registry{strategies: map[key]Strategy{
		{types.KindImage, types.FormatPDF}:     &imageToPDF{decode: deps.DecodeFrames, pages: deps.Pages},
		{types.KindPDF, types.FormatPDF}:       &pdfToPDF{pdf: deps.PDF},
		{types.KindDocument, types.FormatPDF}:  &documentToPDF{docs: deps.Documents},
		{types.KindImage, types.FormatTIFF}:    tiff,
		{types.KindPDF, types.FormatTIFF}:      tiff,
		{types.KindDocument, types.FormatTIFF}: tiff,
	}}
}

// Select returns the strategy for converting kind into format.
func (r *Registry) Select(kind types.Kind, format types.TargetFormat) (Strategy, error) {
	s, ok := r.strategies[key{kind, format}]
	if !ok {
		return nil, fmt.Errorf("%w for %s to %s", ErrNoStrategy, kind, format)
	}
	return s, nil
}

// fail wraps err in a ConversionError unless it already is one.
func fail(kind types.ErrorKind, op, path string, err error) error {
	var ce *types.ConversionError
	if errors.As(err, &ce) {
		return err
	}
	return &types.ConversionError{Kind: kind, Op: op, Path: path, Err: err}
}
