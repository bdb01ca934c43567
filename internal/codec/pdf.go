// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package codec

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDF is the paging capability over existing PDF files.
type PDF interface {
	// Probe opens path and returns the open error, if any.
	Probe(path string) error

	// PageCount returns the number of pages in path.
	PageCount(path string) (int, error)

	// Optimize re-serialises src into dst.
	Optimize(src, dst string) error

	// ExtractPage writes the 1-based page of src as a single-page PDF at dst.
	ExtractPage(src, dst string, page int) error
}

// IsPasswordError reports whether an open error signals that the document
// needs a password.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"password", "authenticat", "decrypt"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var disableConfigOnce sync.Once

// Pdfcpu implements PDF with the pdfcpu library. pdfcpu stamps the write
// time into the Info dictionary dates and the trailer file ID, so files
// written by Optimize and ExtractPage match earlier runs page for page but
// not byte for byte.
type Pdfcpu struct{}

// NewPdfcpu returns the pdfcpu-backed adapter. pdfcpu's on-disk
// configuration directory is disabled so runs leave no files in $HOME.
func NewPdfcpu() *Pdfcpu {
	disableConfigOnce.Do(api.DisableConfigDir)
	return &Pdfcpu{}
}

func (p *Pdfcpu) Probe(path string) error {
	_, err := api.ReadContextFile(path)
	return err
}

func (p *Pdfcpu) PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

func (p *Pdfcpu) Optimize(src, dst string) error {
	return api.OptimizeFile(src, dst, nil)
}

func (p *Pdfcpu) ExtractPage(src, dst string, page int) error {
	return api.TrimFile(src, dst, []string{strconv.Itoa(page)}, nil)
}
