// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package codec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docbatch/internal/container"
	"github.com/pdiddy/docbatch/pkg/types"
)

// DefaultDocumentImage is the container image used when soffice is not
// installed locally. It reads a document on stdin and writes a PDF on stdout.
const DefaultDocumentImage = "docbatch-soffice:latest"

// DocumentConverter turns legacy word-processor documents into PDF.
type DocumentConverter interface {
	// Name identifies the backend for logs.
	Name() string

	// ToPDF converts src and writes the PDF at dst.
	ToPDF(ctx context.Context, src, dst string) error
}

// SofficeConverter converts documents with a local LibreOffice install.
type SofficeConverter struct {
	bin string
	run commandRunner
}

// NewSofficeConverter returns a converter using the given soffice binary.
func NewSofficeConverter(bin string) *SofficeConverter {
	if bin == "" {
		bin = "soffice"
	}
	return &SofficeConverter{bin: bin, run: osRunner{}}
}

func (s *SofficeConverter) Name() string { return s.bin }

// ToPDF runs soffice headless into a private output directory. Each call
// uses its own user profile so parallel workers do not contend for the
// LibreOffice profile lock.
func (s *SofficeConverter) ToPDF(ctx context.Context, src, dst string) error {
	work, err := os.MkdirTemp(filepath.Dir(dst), ".soffice-*")
	if err != nil {
		return fmt.Errorf("creating soffice work dir: %w", err)
	}
	defer os.RemoveAll(work)

	profile := "file://" + filepath.ToSlash(filepath.Join(work, "profile"))
	args := []string{
		"-env:UserInstallation=" + profile,
		"--headless", "--norestore",
		"--convert-to", "pdf",
		"--outdir", work,
		src,
	}
	if err := s.run.Run(ctx, s.bin, args...); err != nil {
		return fmt.Errorf("converting %s with soffice: %w", filepath.Base(src), err)
	}

	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(work, stem+".pdf")
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("soffice produced no output for %s", filepath.Base(src))
	}
	return os.Rename(out, dst)
}

// ContainerConverter converts documents by piping them through a container
// image on a docker or podman runtime.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
}

// NewContainerConverter creates a converter that uses the given container
// runtime. It verifies that the image exists locally before returning.
func NewContainerConverter(rt container.Runtime, image string) (*ContainerConverter, error) {
	if image == "" {
		image = DefaultDocumentImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("document image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image}, nil
}

func (c *ContainerConverter) Name() string { return c.runtime.Name() + ":" + c.image }

func (c *ContainerConverter) ToPDF(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening document %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".docconv-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	runErr := c.runtime.Run(ctx, c.image, in, tmp)
	info, statErr := tmp.Stat()
	closeErr := tmp.Close()
	switch {
	case runErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("converting %s: %w", filepath.Base(src), runErr)
	case closeErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	case statErr == nil && info.Size() == 0:
		os.Remove(tmpPath)
		return fmt.Errorf("document container produced empty output for %s", filepath.Base(src))
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// unavailableConverter fails every conversion with a missing-dependency error.
type unavailableConverter struct{}

func (unavailableConverter) Name() string { return "unavailable" }

func (unavailableConverter) ToPDF(context.Context, string, string) error {
	return missingTool("convert document", "soffice (or a container runtime with "+DefaultDocumentImage+")")
}

// NewDocumentConverter picks the first usable backend: a local soffice, then
// a containerised one. When neither is usable every conversion fails with a
// missing-dependency error, which the engine reports per file.
func NewDocumentConverter(tools types.ToolConfig, logger *slog.Logger) DocumentConverter {
	return newDocumentConverter(tools, logger, osRunner{}, container.DetectRuntime)
}

func newDocumentConverter(tools types.ToolConfig, logger *slog.Logger, run commandRunner, detect func() (container.Runtime, error)) DocumentConverter {
	local := NewSofficeConverter(tools.Soffice)
	local.run = run
	if _, err := run.LookPath(local.bin); err == nil {
		logger.Debug("document converter selected", slog.String("backend", local.Name()))
		return local
	}

	rt, err := detect()
	if err != nil {
		logger.Warn("no document converter available", slog.String("error", err.Error()))
		return unavailableConverter{}
	}
	cc, err := NewContainerConverter(rt, tools.DocumentImage)
	if err != nil {
		logger.Warn("no document converter available", slog.String("error", err.Error()))
		return unavailableConverter{}
	}
	logger.Debug("document converter selected", slog.String("backend", cc.Name()))
	return cc
}
