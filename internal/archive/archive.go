// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive unpacks the archives found at the top level of a
// directory in place and then removes them after a grace period. It runs
// independently of conversion; its errors never affect a conversion run.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrUnsafePath is returned for archive entries that would land outside
// the extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// Options controls ExtractAll.
type Options struct {
	// GracePeriod is the wait between extraction and deletion (default 5s).
	GracePeriod time.Duration

	// KeepArchives skips deletion.
	KeepArchives bool

	// Status, when set, receives one human-readable line per extracted or
	// removed archive and per error.
	Status func(msg string)

	Logger *slog.Logger
}

// Result lists what ExtractAll did. Errors holds every extraction and
// deletion failure; one failure never stops the others.
type Result struct {
	Extracted []string
	Removed   []string
	Errors    []error
}

// IsArchive reports whether name has an extension ExtractAll handles.
func IsArchive(name string) bool {
	return kindOf(name) != ""
}

func kindOf(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	case strings.HasSuffix(lower, ".tar"), strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar"
	}
	return ""
}

// ExtractAll extracts every archive directly inside dir into dir, waits the
// grace period, then deletes the archives that were extracted successfully.
// Cancelling ctx stops after the current archive and skips deletion.
func ExtractAll(ctx context.Context, dir string, opts Options) Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With(slog.String("component", "archive"))
	if opts.GracePeriod == 0 {
		opts.GracePeriod = types.DefaultGracePeriod
	}

	var res Result
	report := func(msg string) {
		if opts.Status != nil {
			opts.Status(msg)
		}
	}
	fail := func(err error) {
		res.Errors = append(res.Errors, err)
		logger.Warn("archive error", slog.String("error", err.Error()))
		report("Error: " + err.Error())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fail(fmt.Errorf("reading %s: %w", dir, err))
		return res
	}
	var archives []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsArchive(e.Name()) {
			archives = append(archives, e.Name())
		}
	}
	sort.Strings(archives)

	for _, name := range archives {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(dir, name)
		var err error
		if kindOf(name) == "zip" {
			err = extractZip(path, dir)
		} else {
			err = extractTar(path, dir, logger)
		}
		if err != nil {
			fail(fmt.Errorf("extracting %s: %w", name, err))
			continue
		}
		res.Extracted = append(res.Extracted, name)
		logger.Info("extracted archive", slog.String("archive", name))
		report("Extracted: " + name)
	}

	if opts.KeepArchives || len(res.Extracted) == 0 {
		return res
	}
	if err := wait(ctx, opts.GracePeriod); err != nil {
		fail(fmt.Errorf("waiting before removing archives: %w", err))
		return res
	}
	for _, name := range res.Extracted {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			fail(fmt.Errorf("removing %s: %w", name, err))
			continue
		}
		res.Removed = append(res.Removed, name)
		report("Removed: " + name)
	}
	return res
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// safeJoin resolves an archive entry name under dir, rejecting absolute
// paths and parent traversal.
func safeJoin(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dir, clean), nil
}

func extractZip(path, dir string) error {
	zr, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		if zr != nil {
			zr.Close()
		}
		return fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(path, dir string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %w", ErrUnsafePath, err)
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		default:
			logger.Debug("skipping non-regular tar entry", slog.String("entry", hdr.Name))
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return out.Close()
}
