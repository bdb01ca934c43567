// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"image"
	"os"
	"time"

	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/pkg/types"
)

// imageToPDF places each frame of a raster image on an A4 page.
type imageToPDF struct {
	decode func(path string) ([]image.Image, error)
	pages  PageWriter
}

func (s *imageToPDF) Name() string { return "image-to-pdf" }

func (s *imageToPDF) Convert(ctx context.Context, src types.SourceFile, dest, _ string) ([]string, error) {
	frames, err := s.decode(src.Path)
	if err != nil {
		return nil, fail(types.ErrDecode, "decode image", src.Path, err)
	}
	modTime := sourceModTime(src.Path)

	outs, err := targets(dest, len(frames))
	if err != nil {
		return nil, fail(types.ErrIO, "prepare destination", dest, err)
	}

	written := make([]string, 0, len(outs))
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		flat := codec.Flatten(frame)
		b := flat.Bounds()
		place := FitToPage(b.Dx(), b.Dy(), codec.A4Width, codec.A4Height, codec.A4Margin)
		if err := s.pages.WritePage(outs[i], flat, place, modTime); err != nil {
			return written, fail(types.ErrEncode, "write pdf page", outs[i], err)
		}
		written = append(written, outs[i])
	}
	return written, nil
}

// pdfToPDF re-saves single-page PDFs and splits longer ones page by page.
type pdfToPDF struct {
	pdf codec.PDF
}

func (s *pdfToPDF) Name() string { return "pdf-to-pdf" }

func (s *pdfToPDF) Convert(ctx context.Context, src types.SourceFile, dest, _ string) ([]string, error) {
	n, err := s.pdf.PageCount(src.Path)
	if err != nil {
		return nil, fail(types.ErrDecode, "read pdf", src.Path, err)
	}

	outs, err := targets(dest, n)
	if err != nil {
		return nil, fail(types.ErrIO, "prepare destination", dest, err)
	}
	if n <= 1 {
		if err := s.pdf.Optimize(src.Path, dest); err != nil {
			return nil, fail(types.ErrEncode, "optimize pdf", src.Path, err)
		}
		return outs, nil
	}

	written := make([]string, 0, n)
	for i, out := range outs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := s.pdf.ExtractPage(src.Path, out, i+1); err != nil {
			return written, fail(types.ErrEncode, "split pdf", src.Path, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// documentToPDF hands the whole file to the document converter. The result
// is always a single PDF.
type documentToPDF struct {
	docs codec.DocumentConverter
}

func (s *documentToPDF) Name() string { return "document-to-pdf" }

func (s *documentToPDF) Convert(ctx context.Context, src types.SourceFile, dest, _ string) ([]string, error) {
	outs, err := targets(dest, 1)
	if err != nil {
		return nil, fail(types.ErrIO, "prepare destination", dest, err)
	}
	if err := s.docs.ToPDF(ctx, src.Path, dest); err != nil {
		return nil, fail(types.ErrEncode, "convert document", src.Path, err)
	}
	return outs, nil
}

// sourceModTime is stamped into generated PDFs so unchanged sources yield
// identical output across runs.
func sourceModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return info.ModTime().UTC().Truncate(time.Second)
}
