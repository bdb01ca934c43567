// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"os/exec"
	"syscall"

	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/internal/strategy"
	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrSetup marks failures that abort a run before any file is converted:
// a missing source root or an uncreatable destination or quarantine folder.
var ErrSetup = errors.New("setup failed")

// Classify maps a per-file error to the category shown to users. Low-level
// causes take precedence over the kind a strategy attached, so a permission
// error inside a decode step still reads as a permission problem.
func Classify(err error) types.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrTimeout
	case errors.Is(err, codec.ErrMissingDependency), errors.Is(err, exec.ErrNotFound):
		return types.ErrMissingDependency
	case errors.Is(err, fs.ErrNotExist):
		return types.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return types.ErrPermission
	case errors.Is(err, syscall.ENOTDIR):
		return types.ErrNotADirectory
	case errors.Is(err, syscall.ENOMEM):
		return types.ErrOutOfMemory
	case errors.Is(err, image.ErrFormat), errors.Is(err, strategy.ErrNoStrategy):
		return types.ErrTypeMismatch
	}

	var ce *types.ConversionError
	if errors.As(err, &ce) && ce.Kind != "" {
		return ce.Kind
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return types.ErrIO
	}
	return types.ErrUnknown
}
