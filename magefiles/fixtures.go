package main

import (
	"archive/zip"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// fixtureDir holds a sample source tree for trying the CLI by hand.
const fixtureDir = "testdata/sample"

// Fixtures writes a sample source tree covering every file kind: images,
// a multi-page PDF, a password-protected PDF, an unsupported file, and a
// zip archive for the extract command.
func Fixtures() error {
	if err := os.RemoveAll(fixtureDir); err != nil {
		return err
	}
	steps := []struct {
		name string
		fn   func(string) error
	}{
		{"scans/receipt.png", writeSamplePNG},
		{"scans/animated.gif", writeSampleGIF},
		{"contracts/agreement.pdf", func(p string) error { return writeSamplePDF(p, 3) }},
		{"contracts/locked.pdf", writeLockedPDF},
		{"notes/readme.txt", func(p string) error { return os.WriteFile(p, []byte("not convertible\n"), 0o644) }},
		{"inbox.zip", writeSampleZip},
	}
	for _, s := range steps {
		path := filepath.Join(fixtureDir, filepath.FromSlash(s.name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := s.fn(path); err != nil {
			return fmt.Errorf("writing %s: %w", s.name, err)
		}
		fmt.Println("  ", path)
	}
	fmt.Println("Sample fixtures written.")
	return nil
}

func sampleImage(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writeSamplePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, sampleImage(color.RGBA{R: 200, G: 80, B: 40, A: 255}))
}

func writeSampleGIF(path string) error {
	palette := color.Palette{color.White, color.Black, color.RGBA{R: 255, A: 255}}
	anim := &gif.GIF{}
	for i := 0; i < 3; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, 64, 64), palette)
		for x := 0; x < 64; x++ {
			frame.SetColorIndex(x, i*20, uint8(1+i%2))
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 50)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gif.EncodeAll(f, anim)
}

func writeSamplePDF(path string, pages int) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 16)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.Cell(40, 10, fmt.Sprintf("Sample page %d", i))
	}
	return pdf.OutputFileAndClose(path)
}

func writeLockedPDF(path string) error {
	if err := writeSamplePDF(path, 1); err != nil {
		return err
	}
	conf := model.NewAESConfiguration("secret", "secret", 256)
	return api.EncryptFile(path, "", conf)
}

func writeSampleZip(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("inbox/scan.png")
	if err != nil {
		return err
	}
	if err := png.Encode(w, sampleImage(color.RGBA{G: 160, B: 90, A: 255})); err != nil {
		return err
	}
	return zw.Close()
}
