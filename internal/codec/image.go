// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package codec wraps the image, PDF, and document libraries and tools the
// conversion strategies depend on. Each capability sits behind a small
// interface or function so strategies can be tested with fakes.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DecodeFrames reads the raster at path and returns one image per frame or
// page. Animated GIFs and multi-page TIFFs yield several frames; every other
// format yields one. When frame enumeration fails the file is decoded once
// and treated as a single frame.
func DecodeFrames(path string) ([]image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	frames, err := decodeFrames(data)
	if err == nil && len(frames) > 0 {
		return frames, nil
	}

	img, _, decErr := image.Decode(bytes.NewReader(data))
	if decErr != nil {
		return nil, decErr
	}
	return []image.Image{img}, nil
}

func decodeFrames(data []byte) ([]image.Image, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	switch format {
	case "gif":
		return gifFrames(data)
	case "tiff":
		return tiffFrames(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

// gifFrames composites each GIF frame onto the logical screen so every
// returned image is a complete picture, honouring frame disposal.
func gifFrames(data []byte) ([]image.Image, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}
	if len(g.Image) == 1 {
		return []image.Image{g.Image[0]}, nil
	}

	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		screen = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(screen)
	frames := make([]image.Image, 0, len(g.Image))

	for i, frame := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(canvas))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return frames, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// Flatten composites img onto an opaque white RGB canvas. Transparent,
// paletted, gray, bilevel, and CMYK sources all come out as print-safe RGB.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// decodeTIFF is split out so tiffFrames can decode a patched buffer.
func decodeTIFF(data []byte) (image.Image, error) {
	return tiff.Decode(bytes.NewReader(data))
}
