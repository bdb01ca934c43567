// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/pkg/types"
)

// Config keys. Nested keys map to DOCBATCH_SECTION_KEY environment variables.
const (
	keyConcurrency   = "conversion.concurrency"
	keyDPI           = "conversion.dpi"
	keyJPEGQuality   = "conversion.jpeg_quality"
	keyQuarantine    = "conversion.quarantine_protected"
	keyQuarantineDir = "conversion.quarantine_dir"
	keyFileTimeout   = "conversion.file_timeout"
	keyScratchDir    = "conversion.scratch_dir"
	keyWriteReport   = "conversion.write_report"
	keyReportFormat  = "conversion.report_format"

	keyPdftoppm      = "tools.pdftoppm"
	keySoffice       = "tools.soffice"
	keyDocumentImage = "tools.document_image"

	keyGracePeriod  = "archive.grace_period"
	keyKeepArchives = "archive.keep_archives"

	keyHistoryEnabled = "history.enabled"
	keyHistoryDir     = "history.dir"
)

func setDefaults() {
	d := types.DefaultConversionConfig()
	viper.SetDefault(keyConcurrency, d.Concurrency)
	viper.SetDefault(keyDPI, d.DPI)
	viper.SetDefault(keyJPEGQuality, d.JPEGQuality)
	viper.SetDefault(keyQuarantine, d.QuarantineProtected)
	viper.SetDefault(keyQuarantineDir, d.QuarantineDir)
	viper.SetDefault(keyFileTimeout, d.FileTimeout)
	viper.SetDefault(keyWriteReport, d.WriteReport)
	viper.SetDefault(keyReportFormat, string(d.ReportFormat))

	viper.SetDefault(keyPdftoppm, "pdftoppm")
	viper.SetDefault(keySoffice, "soffice")
	viper.SetDefault(keyDocumentImage, codec.DefaultDocumentImage)

	viper.SetDefault(keyGracePeriod, types.DefaultGracePeriod)
	viper.SetDefault(keyKeepArchives, false)

	viper.SetDefault(keyHistoryEnabled, true)
	viper.SetDefault(keyHistoryDir, "")
}

func conversionConfig() types.ConversionConfig {
	return types.ConversionConfig{
		Concurrency:         viper.GetInt(keyConcurrency),
		DPI:                 viper.GetInt(keyDPI),
		JPEGQuality:         viper.GetInt(keyJPEGQuality),
		QuarantineProtected: viper.GetBool(keyQuarantine),
		QuarantineDir:       viper.GetString(keyQuarantineDir),
		FileTimeout:         viper.GetDuration(keyFileTimeout),
		ScratchDir:          viper.GetString(keyScratchDir),
		WriteReport:         viper.GetBool(keyWriteReport),
		ReportFormat:        types.ReportFormat(viper.GetString(keyReportFormat)),
	}
}

func toolConfig() types.ToolConfig {
	return types.ToolConfig{
		Pdftoppm:      viper.GetString(keyPdftoppm),
		Soffice:       viper.GetString(keySoffice),
		DocumentImage: viper.GetString(keyDocumentImage),
	}
}

func archiveConfig() types.ArchiveConfig {
	return types.ArchiveConfig{
		GracePeriod:  viper.GetDuration(keyGracePeriod),
		KeepArchives: viper.GetBool(keyKeepArchives),
	}
}

// historyConfig resolves the ledger directory, defaulting to the user's
// config directory.
func historyConfig() types.HistoryConfig {
	dir := viper.GetString(keyHistoryDir)
	if dir == "" {
		if base, err := os.UserConfigDir(); err == nil {
			dir = filepath.Join(base, "docbatch")
		}
	}
	return types.HistoryConfig{
		Enabled: viper.GetBool(keyHistoryEnabled),
		Dir:     dir,
	}
}
