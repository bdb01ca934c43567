// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TargetFormat identifies the uniform output format of a conversion run.
type TargetFormat string

const (
	FormatPDF  TargetFormat = "pdf"
	FormatTIFF TargetFormat = "tiff"
)

// Ext returns the file extension (with leading dot) written for the format.
func (f TargetFormat) Ext() string {
	switch f {
	case FormatTIFF:
		return ".tiff"
	default:
		return ".pdf"
	}
}

// Valid reports whether f is a supported target format.
func (f TargetFormat) Valid() bool {
	return f == FormatPDF || f == FormatTIFF
}

// ReportFormat selects the encoding of the persisted run report.
type ReportFormat string

const (
	ReportText ReportFormat = "text"
	ReportYAML ReportFormat = "yaml"
	ReportJSON ReportFormat = "json"
)

// Default tunables for a conversion run.
const (
	DefaultConcurrency   = 4
	DefaultDPI           = 150
	DefaultJPEGQuality   = 90
	DefaultQuarantineDir = "password_protected"
	DefaultGracePeriod   = 5 * time.Second
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Concurrency is the worker pool width (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// DPI is the resolution used when rendering PDF pages to raster (default 150).
	DPI int `json:"dpi" yaml:"dpi"`

	// JPEGQuality is the lossy quality used for images embedded in PDFs (default 90).
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality"`

	// QuarantineProtected diverts password-protected PDFs into QuarantineDir
	// instead of converting them.
	QuarantineProtected bool `json:"quarantine_protected" yaml:"quarantine_protected"`

	// QuarantineDir is the folder name created under the destination root.
	QuarantineDir string `json:"quarantine_dir" yaml:"quarantine_dir"`

	// FileTimeout bounds a single file's conversion. Zero disables the limit.
	FileTimeout time.Duration `json:"file_timeout" yaml:"file_timeout"`

	// ScratchDir is the parent of the per-run scratch directory (default os.TempDir()).
	ScratchDir string `json:"scratch_dir,omitempty" yaml:"scratch_dir,omitempty"`

	// WriteReport persists a report file into the destination root.
	WriteReport bool `json:"write_report" yaml:"write_report"`

	// ReportFormat is the persisted report encoding: text, yaml, or json.
	ReportFormat ReportFormat `json:"report_format" yaml:"report_format"`
}

// DefaultConversionConfig returns the configuration used when nothing is overridden.
func DefaultConversionConfig() ConversionConfig {
	return ConversionConfig{
		Concurrency:         DefaultConcurrency,
		DPI:                 DefaultDPI,
		JPEGQuality:         DefaultJPEGQuality,
		QuarantineProtected: true,
		QuarantineDir:       DefaultQuarantineDir,
		WriteReport:         true,
		ReportFormat:        ReportText,
	}
}

// ToolConfig locates the external binaries behind the raster and document adapters.
type ToolConfig struct {
	// Pdftoppm is the poppler rasteriser binary (default "pdftoppm").
	Pdftoppm string `json:"pdftoppm" yaml:"pdftoppm"`

	// Soffice is the LibreOffice binary used for .doc/.docx (default "soffice").
	Soffice string `json:"soffice" yaml:"soffice"`

	// DocumentImage is the container image used when Soffice is not on PATH.
	// The image reads a document on stdin and writes a PDF on stdout.
	DocumentImage string `json:"document_image" yaml:"document_image"`
}

// ArchiveConfig holds settings for archive pre-processing.
type ArchiveConfig struct {
	// GracePeriod is the wait between extraction and deletion of archives (default 5s).
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period"`

	// KeepArchives skips the deletion step.
	KeepArchives bool `json:"keep_archives" yaml:"keep_archives"`
}

// HistoryConfig holds settings for the run-history ledger.
type HistoryConfig struct {
	// Enabled records each conversion run in the ledger.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the directory holding history.db.
	Dir string `json:"dir" yaml:"dir"`
}
