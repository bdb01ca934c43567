// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/pkg/types"
)

// pagePattern names fanned-out page files: 1-based, zero-padded to 3 digits.
const pagePattern = "pagina_%03d%s"

// TargetPath mirrors relPath (slash-separated, relative to the source root)
// under destRoot with its extension rewritten for format.
func TargetPath(destRoot, relPath string, format types.TargetFormat) string {
	stem := strings.TrimSuffix(relPath, path.Ext(relPath))
	return filepath.Join(destRoot, filepath.FromSlash(stem)+format.Ext())
}

// PageDir is the folder holding fanned-out pages for dest: dest without its
// extension.
func PageDir(dest string) string {
	return strings.TrimSuffix(dest, filepath.Ext(dest))
}

// PagePath returns the path of the 1-based page inside PageDir(dest).
func PagePath(dest string, page int) string {
	return filepath.Join(PageDir(dest), fmt.Sprintf(pagePattern, page, filepath.Ext(dest)))
}

// targets returns the output paths for a source yielding n pages and
// creates their parent directory.
func targets(dest string, n int) ([]string, error) {
	if n <= 1 {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
		}
		return []string{dest}, nil
	}

	dir := PageDir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = PagePath(dest, i+1)
	}
	return out, nil
}

// FitToPage scales an imgW x imgH image to the page width inside the
// margins, preserving aspect ratio, shrinks it further if it would be too
// tall, and centres it. Coordinates are in points from the top-left corner.
func FitToPage(imgW, imgH int, pageW, pageH, margin float64) codec.Placement {
	availW := pageW - 2*margin
	availH := pageH - 2*margin
	if imgW <= 0 || imgH <= 0 {
		return codec.Placement{X: margin, Y: margin, W: availW, H: availH}
	}

	aspect := float64(imgH) / float64(imgW)
	w := availW
	h := w * aspect
	if h > availH {
		h = availH
		w = h / aspect
	}
	return codec.Placement{
		X: (pageW - w) / 2,
		Y: (pageH - h) / 2,
		W: w,
		H: h,
	}
}
