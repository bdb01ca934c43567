// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify walks a source tree and sorts every regular file into
// convertible, unsupported, or password-protected buckets.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrSourceMissing is returned when the source root is absent or is not a
// directory.
var ErrSourceMissing = errors.New("source directory does not exist")

// Prober opens a PDF to check whether it can be read without a password.
type Prober interface {
	Probe(path string) error
}

// Options controls a Scan.
type Options struct {
	// Exclude is a directory pruned from the walk, typically the destination
	// root when it lies inside the source.
	Exclude string

	// Prober, when set, is used to detect password-protected PDFs.
	Prober Prober

	Logger *slog.Logger
}

// Result holds the three buckets in discovery order.
type Result struct {
	Convertible []types.SourceFile

	// Unsupported holds slash-separated paths relative to the source root.
	Unsupported []string

	// Protected holds absolute paths of password-protected PDFs.
	Protected []string
}

// Discovered returns the number of candidate files found.
func (r Result) Discovered() int {
	return len(r.Convertible) + len(r.Unsupported) + len(r.Protected)
}

// Scan walks root and classifies every regular file. Symbolic links are not
// followed. Unreadable subdirectories are logged and skipped.
func Scan(ctx context.Context, root string, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With(slog.String("component", "classify"))

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Result{}, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s", ErrSourceMissing, root)
	}

	exclude := ""
	if opts.Exclude != "" {
		if abs, err := filepath.Abs(opts.Exclude); err == nil && abs != absRoot {
			exclude = abs
		}
	}

	var res Result
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			logger.Warn("skipping unreadable path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if exclude != "" && path == exclude {
				logger.Debug("pruning destination from walk", slog.String("path", path))
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		ext := strings.ToLower(filepath.Ext(path))
		kind := types.KindForExt(ext)

		switch {
		case kind == types.KindUnsupported:
			res.Unsupported = append(res.Unsupported, rel)
		case kind == types.KindPDF && isProtected(opts.Prober, path):
			logger.Debug("password-protected pdf", slog.String("path", rel))
			res.Protected = append(res.Protected, path)
		default:
			res.Convertible = append(res.Convertible, types.SourceFile{
				Path:    path,
				RelPath: rel,
				Ext:     ext,
				Kind:    kind,
			})
		}
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	logger.Info("scan complete",
		slog.Int("convertible", len(res.Convertible)),
		slog.Int("unsupported", len(res.Unsupported)),
		slog.Int("protected", len(res.Protected)))
	return res, nil
}

// isProtected treats only password-style open failures as protection. Any
// other failure leaves the file convertible so the real error surfaces at
// conversion time.
func isProtected(p Prober, path string) bool {
	if p == nil {
		return false
	}
	return codec.IsPasswordError(p.Probe(path))
}
