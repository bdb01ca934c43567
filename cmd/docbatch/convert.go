// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docbatch/internal/archive"
	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/internal/convert"
	"github.com/pdiddy/docbatch/internal/history"
	"github.com/pdiddy/docbatch/internal/strategy"
	"github.com/pdiddy/docbatch/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert <source> <destination>",
	Short: "Convert a folder of images, PDFs, and documents to PDF or TIFF",
	Long: `Convert walks the source folder and writes one converted file per source
file into the destination, mirroring the folder structure. Multi-page sources
become a folder of pagina_NNN files. Password-protected PDFs are copied into
a quarantine folder instead of being converted.

Interrupt with Ctrl-C to stop: files already converting finish, queued files
are abandoned, and a partial summary is printed.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.String("format", string(types.FormatPDF), "target format: pdf or tiff")
	f.Int("concurrency", types.DefaultConcurrency, "number of files converted in parallel")
	f.Int("dpi", types.DefaultDPI, "resolution for rendering PDF pages to TIFF")
	f.Int("jpeg-quality", types.DefaultJPEGQuality, "JPEG quality for images embedded in PDFs")
	f.Bool("quarantine", true, "copy password-protected PDFs aside instead of converting them")
	f.String("quarantine-dir", types.DefaultQuarantineDir, "quarantine folder name under the destination")
	f.Duration("file-timeout", 0, "limit for a single file's conversion (0 = none)")
	f.Bool("report", true, "write a report file into the destination")
	f.String("report-format", string(types.ReportText), "report file format: text, yaml, or json")
	f.Bool("history", true, "record the run in the history ledger")
	f.Bool("extract", false, "extract archives in the source folder before converting")

	bind := map[string]string{
		keyConcurrency:    "concurrency",
		keyDPI:            "dpi",
		keyJPEGQuality:    "jpeg-quality",
		keyQuarantine:     "quarantine",
		keyQuarantineDir:  "quarantine-dir",
		keyFileTimeout:    "file-timeout",
		keyWriteReport:    "report",
		keyReportFormat:   "report-format",
		keyHistoryEnabled: "history",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")
	req, err := convertRequest(args, format)
	if err != nil {
		return err
	}

	logger := newLogger()
	view := newStatusView(os.Stdout)

	if extract, _ := cmd.Flags().GetBool("extract"); extract {
		ac := archiveConfig()
		res := archive.ExtractAll(ctx, req.Source, archive.Options{
			GracePeriod:  ac.GracePeriod,
			KeepArchives: ac.KeepArchives,
			Status:       view.Status,
			Logger:       logger,
		})
		if len(res.Errors) > 0 {
			logger.Warn("archive extraction had errors", slog.Int("errors", len(res.Errors)))
		}
	}

	cfg := conversionConfig()
	tools := toolConfig()
	pdf := codec.NewPdfcpu()
	registry := strategy.NewRegistry(strategy.Deps{
		Pages:     codec.NewPageWriter(cfg.JPEGQuality),
		PDF:       pdf,
		Raster:    codec.NewPdftoppm(tools.Pdftoppm),
		Documents: codec.NewDocumentConverter(tools, logger),
		DPI:       cfg.DPI,
	})

	deps := convert.Deps{
		Strategies: registry,
		Prober:     pdf,
		Logger:     logger,
	}
	if hc := historyConfig(); hc.Enabled {
		store, err := history.NewStore(hc)
		if err != nil {
			logger.Warn("history disabled", slog.String("error", err.Error()))
		} else {
			defer store.Close()
			deps.History = store
		}
	}

	engine, err := convert.NewEngine(cfg, deps)
	if err != nil {
		return err
	}

	type result struct {
		rep types.Report
		err error
	}
	events := make(chan types.ProgressEvent, 64)
	done := make(chan result, 1)
	go func() {
		rep, err := engine.Run(ctx, req, events)
		done <- result{rep, err}
	}()
	for ev := range events {
		view.Event(ev)
		if ev.Terminal() {
			break
		}
	}
	res := <-done
	return exitStatus(res.rep, res.err)
}

// convertRequest builds the engine request from the positional arguments
// and the --format flag.
func convertRequest(args []string, format string) (convert.Request, error) {
	if len(args) != 2 {
		return convert.Request{}, fmt.Errorf("expected <source> <destination>, got %d argument(s)", len(args))
	}
	req := convert.Request{
		Source:      args[0],
		Destination: args[1],
		Format:      types.TargetFormat(strings.ToLower(format)),
	}
	if !req.Format.Valid() {
		return convert.Request{}, fmt.Errorf("unsupported format %q: use pdf or tiff", format)
	}
	return req, nil
}

// exitStatus maps a finished run to the command's error: setup failures as
// they are, interruptions, then per-file failures. A clean run returns nil.
func exitStatus(rep types.Report, err error) error {
	switch {
	case errors.Is(err, convert.ErrSetup):
		return err
	case err != nil:
		return fmt.Errorf("conversion interrupted: %w", err)
	case rep.HasFailures():
		return fmt.Errorf("%d file(s) failed conversion", rep.FailedCount())
	}
	return nil
}
