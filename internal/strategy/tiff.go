// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/pkg/types"
)

// toTIFF renders every page or frame of any supported source to a
// Deflate-compressed TIFF. Like the PDF strategies it fans multi-page
// sources out into numbered files.
type toTIFF struct {
	decode func(path string) ([]image.Image, error)
	pdf    codec.PDF
	raster codec.Rasterizer
	docs   codec.DocumentConverter
	dpi    int
}

// pageSource yields count pages on demand so PDFs are rendered one page at
// a time.
type pageSource struct {
	count int
	page  func(ctx context.Context, n int) (image.Image, error)
}

func (s *toTIFF) Name() string { return "to-tiff" }

func (s *toTIFF) Convert(ctx context.Context, src types.SourceFile, dest, scratch string) ([]string, error) {
	switch src.Kind {
	case types.KindImage:
		frames, err := s.decode(src.Path)
		if err != nil {
			return nil, fail(types.ErrDecode, "decode image", src.Path, err)
		}
		return s.write(ctx, dest, pageSource{
			count: len(frames),
			page:  func(_ context.Context, n int) (image.Image, error) { return frames[n-1], nil },
		})

	case types.KindPDF:
		pages, err := s.pdfPages(src.Path, scratch)
		if err != nil {
			return nil, err
		}
		return s.write(ctx, dest, pages)

	case types.KindDocument:
		work, err := os.MkdirTemp(scratch, "doc-*")
		if err != nil {
			return nil, fail(types.ErrIO, "create scratch dir", scratch, err)
		}
		defer os.RemoveAll(work)

		stem := strings.TrimSuffix(filepath.Base(src.Path), filepath.Ext(src.Path))
		tmp := filepath.Join(work, stem+".pdf")
		if err := s.docs.ToPDF(ctx, src.Path, tmp); err != nil {
			return nil, fail(types.ErrEncode, "convert document", src.Path, err)
		}
		pages, err := s.pdfPages(tmp, scratch)
		if err != nil {
			return nil, err
		}
		return s.write(ctx, dest, pages)
	}
	return nil, fail(types.ErrTypeMismatch, "convert", src.Path, fmt.Errorf("%w for %s to tiff", ErrNoStrategy, src.Kind))
}

func (s *toTIFF) pdfPages(path, scratch string) (pageSource, error) {
	if !s.raster.Available() {
		return pageSource{}, &types.ConversionError{
			Kind: types.ErrMissingDependency,
			Op:   "render pdf",
			Path: path,
			Err:  codec.ErrMissingDependency,
		}
	}
	n, err := s.pdf.PageCount(path)
	if err != nil {
		return pageSource{}, fail(types.ErrDecode, "read pdf", path, err)
	}
	return pageSource{
		count: n,
		page: func(ctx context.Context, page int) (image.Image, error) {
			return s.raster.RenderPage(ctx, path, page, s.dpi, scratch)
		},
	}, nil
}

func (s *toTIFF) write(ctx context.Context, dest string, pages pageSource) ([]string, error) {
	outs, err := targets(dest, pages.count)
	if err != nil {
		return nil, fail(types.ErrIO, "prepare destination", dest, err)
	}

	written := make([]string, 0, len(outs))
	for i, out := range outs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		img, err := pages.page(ctx, i+1)
		if err != nil {
			return written, fail(types.ErrDecode, "render page", out, err)
		}
		if err := writeTIFF(out, img); err != nil {
			return written, fail(types.ErrEncode, "write tiff", out, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func writeTIFF(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := codec.EncodeTIFF(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
