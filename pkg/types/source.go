// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Kind classifies a source file by what can be done with it.
type Kind string

const (
	KindImage       Kind = "image"
	KindPDF         Kind = "pdf"
	KindDocument    Kind = "document"
	KindUnsupported Kind = "unsupported"
)

// SourceFile is a file discovered under the source root. It is immutable once
// classified.
type SourceFile struct {
	// Path is the absolute path of the file.
	Path string `json:"path" yaml:"path"`

	// RelPath is the path relative to the source root, using forward slashes.
	RelPath string `json:"rel_path" yaml:"rel_path"`

	// Ext is the lower-cased extension including the leading dot.
	Ext string `json:"ext" yaml:"ext"`

	// Kind is the classification derived from Ext.
	Kind Kind `json:"kind" yaml:"kind"`
}

// KindForExt maps a lower-cased extension to its Kind.
func KindForExt(ext string) Kind {
	switch ext {
	case ".pdf":
		return KindPDF
	case ".tif", ".tiff", ".jpg", ".jpeg", ".png", ".bmp", ".gif":
		return KindImage
	case ".doc", ".docx":
		return KindDocument
	default:
		return KindUnsupported
	}
}
