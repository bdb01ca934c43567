// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quarantine copies password-protected files aside instead of
// converting them. Sources are never moved or modified.
package quarantine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docbatch/pkg/types"
)

// Copy copies each path into dir under its base name, creating dir on first
// use. A file already in dir with the same size and modification time as the
// source is taken as an earlier copy of it and reused, so repeated runs leave
// one copy per source. Other name collisions get " (2)", " (3)", ... before
// the extension. A failed copy is recorded on its entry and the batch
// continues. When ctx is done no further copies start; the returned slice
// holds only the files attempted.
func Copy(ctx context.Context, paths []string, dir string) []types.QuarantineEntry {
	entries := make([]types.QuarantineEntry, 0, len(paths))
	dirReady := false
	claimed := make(map[string]bool)

	for _, src := range paths {
		if ctx.Err() != nil {
			break
		}
		entry := types.QuarantineEntry{Name: filepath.Base(src)}

		if !dirReady {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				entry.Err = fmt.Sprintf("creating %s: %v", dir, err)
				entries = append(entries, entry)
				continue
			}
			dirReady = true
		}

		info, err := os.Stat(src)
		if err != nil {
			entry.Err = fmt.Sprintf("stat %s: %v", src, err)
			entries = append(entries, entry)
			continue
		}
		dst, existing, err := target(dir, entry.Name, info, claimed)
		if err != nil {
			entry.Err = err.Error()
			entries = append(entries, entry)
			continue
		}
		claimed[dst] = true
		if !existing {
			if err := copyFile(src, dst); err != nil {
				entry.Err = err.Error()
				entries = append(entries, entry)
				continue
			}
		}
		entry.Path = dst
		entries = append(entries, entry)
	}
	return entries
}

// target picks the quarantine path for a source named name. It returns the
// first candidate that is either free or already holds a copy of the source
// (existing is true then). Paths claimed earlier in the batch are skipped.
func target(dir, name string, src os.FileInfo, claimed map[string]bool) (path string, existing bool, err error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i < 10000; i++ {
		candidate := filepath.Join(dir, name)
		if i > 1 {
			candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		}
		if claimed[candidate] {
			continue
		}
		info, err := os.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, false, nil
		}
		if err == nil && sameContent(info, src) {
			return candidate, true, nil
		}
	}
	return "", false, fmt.Errorf("no free name for %s in %s", name, dir)
}

// sameContent reports whether dst looks like a copy of src: a regular file
// with equal size and modification time.
func sameContent(dst, src os.FileInfo) bool {
	return dst.Mode().IsRegular() && dst.Size() == src.Size() && dst.ModTime().Equal(src.ModTime())
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
