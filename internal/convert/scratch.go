// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	scratchPrefix = "docbatch-run-"

	// staleScratchAge is how long an untouched run directory must sit before
	// a later run removes it. Live runs touch their directory on every
	// intermediate file, so concurrent runs keep theirs.
	staleScratchAge = 6 * time.Hour
)

// sweepScratch removes run directories left behind by crashed runs.
func sweepScratch(parent string, now time.Time, logger *slog.Logger) {
	matches, err := filepath.Glob(filepath.Join(parent, scratchPrefix+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() || now.Sub(info.ModTime()) < staleScratchAge {
			continue
		}
		if err := os.RemoveAll(m); err != nil {
			logger.Warn("removing stale scratch dir", slog.String("path", m), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("removed stale scratch dir", slog.String("path", m))
	}
}

// newScratch creates the per-run scratch directory under parent. The
// returned cleanup removes it and must run on every exit path.
func newScratch(parent string, logger *slog.Logger) (string, func(), error) {
	if parent == "" {
		parent = os.TempDir()
	}
	dir, err := os.MkdirTemp(parent, scratchPrefix+"*")
	if err != nil {
		return "", nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("removing scratch dir", slog.String("path", dir), slog.String("error", err.Error()))
		}
	}
	return dir, cleanup, nil
}
