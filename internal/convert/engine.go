// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert orchestrates a batch conversion run: it classifies the
// source tree, quarantines password-protected PDFs, fans convertible files
// out across a bounded worker pool, and aggregates the outcome into a
// report.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docbatch/internal/classify"
	"github.com/pdiddy/docbatch/internal/quarantine"
	"github.com/pdiddy/docbatch/internal/report"
	"github.com/pdiddy/docbatch/internal/strategy"
	"github.com/pdiddy/docbatch/pkg/types"
)

// Selector picks the conversion strategy for a source kind and target format.
type Selector interface {
	Select(kind types.Kind, format types.TargetFormat) (strategy.Strategy, error)
}

// Recorder stores finished runs. It is optional.
type Recorder interface {
	RecordRun(ctx context.Context, r types.Report) error
}

// Deps are the collaborators an Engine is built from.
type Deps struct {
	Strategies Selector

	// Prober detects password-protected PDFs. Without one, protected files
	// are converted like any other PDF and fail individually.
	Prober classify.Prober

	History Recorder
	Logger  *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Request names one run's source, destination, and target format.
type Request struct {
	Source      string
	Destination string
	Format      types.TargetFormat
}

// Engine runs conversion batches. An Engine may run several requests, one
// after another or concurrently.
type Engine struct {
	cfg        types.ConversionConfig
	strategies Selector
	prober     classify.Prober
	history    Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine validates cfg, fills defaults, and returns an Engine.
func NewEngine(cfg types.ConversionConfig, deps Deps) (*Engine, error) {
	if deps.Strategies == nil {
		return nil, errors.New("engine requires a strategy selector")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = types.DefaultConcurrency
	}
	if cfg.QuarantineDir == "" {
		cfg.QuarantineDir = types.DefaultQuarantineDir
	}
	if filepath.IsAbs(cfg.QuarantineDir) || filepath.Base(cfg.QuarantineDir) != filepath.Clean(cfg.QuarantineDir) {
		return nil, fmt.Errorf("quarantine dir %q must be a plain folder name", cfg.QuarantineDir)
	}
	switch cfg.ReportFormat {
	case "":
		cfg.ReportFormat = types.ReportText
	case types.ReportText, types.ReportYAML, types.ReportJSON:
	default:
		return nil, fmt.Errorf("unknown report format %q", cfg.ReportFormat)
	}
	if cfg.FileTimeout < 0 {
		return nil, fmt.Errorf("file timeout must not be negative, got %s", cfg.FileTimeout)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:        cfg,
		strategies: deps.Strategies,
		prober:     deps.Prober,
		history:    deps.History,
		logger:     logger.With(slog.String("component", "engine")),
		now:        now,
	}, nil
}

// run holds the mutable state of one Run call. Workers update it under mu.
type run struct {
	req     Request
	scratch string
	events  chan<- types.ProgressEvent

	mu     sync.Mutex
	rep    types.Report
	total  int
	failed int
}

// Run converts req.Source into req.Destination. Progress is sent on events,
// which may be nil; when it is not, the caller must keep receiving until an
// event whose Terminal method returns true, which is always the last one.
//
// The returned error is non-nil only when setup fails (wrapping ErrSetup) or
// ctx was cancelled (ctx.Err()). In both cases the Report is still valid.
func (e *Engine) Run(ctx context.Context, req Request, events chan<- types.ProgressEvent) (types.Report, error) {
	start := e.now()
	r := &run{
		req:    req,
		events: events,
		rep: types.Report{
			Source:      req.Source,
			Destination: req.Destination,
			Format:      req.Format,
			StartedAt:   start,
		},
	}

	if err := ctx.Err(); err != nil {
		return e.finish(ctx, r, start)
	}

	if err := e.setup(r); err != nil {
		e.logger.Error("setup failed", slog.String("error", err.Error()))
		r.emit(types.ProgressEvent{Phase: types.PhaseSetupFailed, Message: "Setup failed", Err: err.Error()})
		return r.rep, err
	}

	sweepScratch(e.scratchParent(), start, e.logger)
	scratch, cleanup, err := newScratch(e.scratchParent(), e.logger)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSetup, err)
		r.emit(types.ProgressEvent{Phase: types.PhaseSetupFailed, Message: "Setup failed", Err: err.Error()})
		return r.rep, err
	}
	defer cleanup()
	r.scratch = scratch

	r.emit(types.ProgressEvent{Phase: types.PhaseScanning, Message: "Scanning " + req.Source})
	scan, err := classify.Scan(ctx, req.Source, classify.Options{
		Exclude: req.Destination,
		Prober:  e.proberFor(),
		Logger:  e.logger,
	})
	if err != nil {
		if ctx.Err() != nil {
			return e.finish(ctx, r, start)
		}
		err = fmt.Errorf("%w: %w", ErrSetup, err)
		r.emit(types.ProgressEvent{Phase: types.PhaseSetupFailed, Message: "Setup failed", Err: err.Error()})
		return r.rep, err
	}
	r.rep.Discovered = scan.Discovered()
	r.rep.Unsupported = scan.Unsupported
	r.total = len(scan.Convertible)

	if err := e.quarantineProtected(ctx, r, scan.Protected); err != nil {
		r.emit(types.ProgressEvent{Phase: types.PhaseSetupFailed, Message: "Setup failed", Err: err.Error()})
		return r.rep, err
	}

	e.dispatch(ctx, r, scan.Convertible)
	return e.finish(ctx, r, start)
}

// setup checks the source root and creates the destination root.
func (e *Engine) setup(r *run) error {
	if !r.req.Format.Valid() {
		return fmt.Errorf("%w: unsupported target format %q", ErrSetup, r.req.Format)
	}
	info, err := os.Stat(r.req.Source)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %w: %s", ErrSetup, classify.ErrSourceMissing, r.req.Source)
	}
	if err := os.MkdirAll(r.req.Destination, 0o755); err != nil {
		return fmt.Errorf("%w: creating destination %s: %w", ErrSetup, r.req.Destination, err)
	}
	return nil
}

func (e *Engine) scratchParent() string {
	if e.cfg.ScratchDir != "" {
		return e.cfg.ScratchDir
	}
	return os.TempDir()
}

func (e *Engine) proberFor() classify.Prober {
	if !e.cfg.QuarantineProtected {
		return nil
	}
	return e.prober
}

// quarantineProtected copies protected files aside. The folder is only
// created when there is something to put in it; failing to create it aborts
// the run.
func (e *Engine) quarantineProtected(ctx context.Context, r *run, protected []string) error {
	if len(protected) == 0 {
		return nil
	}
	dir := filepath.Join(r.req.Destination, e.cfg.QuarantineDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating quarantine folder %s: %w", ErrSetup, dir, err)
	}

	r.emit(types.ProgressEvent{
		Phase:   types.PhaseQuarantine,
		Total:   r.total,
		Message: fmt.Sprintf("Copying %d password-protected file(s) to %s", len(protected), e.cfg.QuarantineDir),
	})
	entries := quarantine.Copy(ctx, protected, dir)
	for _, q := range entries {
		if q.Err != "" {
			e.logger.Warn("quarantine copy failed", slog.String("file", q.Name), slog.String("error", q.Err))
		}
	}
	r.rep.Quarantined = entries
	r.rep.Cancelled += len(protected) - len(entries)
	return nil
}

// dispatch runs every convertible file through the bounded pool. Slot
// acquisition and the start of each file are the cancellation points;
// conversions already running are not interrupted.
func (e *Engine) dispatch(ctx context.Context, r *run, files []types.SourceFile) {
	if len(files) == 0 {
		r.emit(types.ProgressEvent{Phase: types.PhaseDispatching, Message: "No supported files found"})
		return
	}
	r.emit(types.ProgressEvent{
		Phase:   types.PhaseDispatching,
		Total:   r.total,
		Message: fmt.Sprintf("Converting %d file(s) to %s", len(files), r.req.Format),
	})

	owners := make(map[string]string, len(files))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, f := range files {
		if ctx.Err() != nil {
			r.record(types.JobOutcome{File: f, Kind: types.OutcomeCancelled})
			continue
		}
		if owner, ok := claimDestination(owners, r.req, f); !ok {
			r.record(types.JobOutcome{
				File:    f,
				Kind:    types.OutcomeFailed,
				ErrKind: types.ErrConflict,
				Detail:  fmt.Sprintf("destination %s collides with %s", strategy.TargetPath("", f.RelPath, r.req.Format), owner),
			})
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				r.record(types.JobOutcome{File: f, Kind: types.OutcomeCancelled})
				return nil
			}
			r.record(e.convertOne(ctx, r, f))
			return nil
		})
	}
	_ = g.Wait()
}

// claimDestination registers the output paths of f, the target file and
// its page folder, in owners. When another source already owns either path
// it returns that source's relative path and false; the first file in
// discovery order keeps the destination.
func claimDestination(owners map[string]string, req Request, f types.SourceFile) (string, bool) {
	target := strategy.TargetPath(req.Destination, f.RelPath, req.Format)
	keys := []string{target, strategy.PageDir(target)}
	for _, k := range keys {
		if owner, ok := owners[k]; ok {
			return owner, false
		}
	}
	for _, k := range keys {
		owners[k] = f.RelPath
	}
	return "", true
}

// convertOne converts a single file. Every failure, panics included, is
// turned into a failed outcome.
func (e *Engine) convertOne(ctx context.Context, r *run, f types.SourceFile) (out types.JobOutcome) {
	out = types.JobOutcome{File: f}
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("conversion panicked",
				slog.String("file", f.RelPath),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			out.Kind = types.OutcomeFailed
			out.ErrKind = types.ErrUnknown
			out.Detail = fmt.Sprintf("panic: %v", p)
			out.Artifacts = nil
		}
	}()

	s, err := e.strategies.Select(f.Kind, r.req.Format)
	if err != nil {
		return failed(out, err)
	}

	fileCtx := context.WithoutCancel(ctx)
	if e.cfg.FileTimeout > 0 {
		var cancel context.CancelFunc
		fileCtx, cancel = context.WithTimeout(fileCtx, e.cfg.FileTimeout)
		defer cancel()
	}

	dest := strategy.TargetPath(r.req.Destination, f.RelPath, r.req.Format)
	began := time.Now()
	artifacts, err := s.Convert(fileCtx, f, dest, r.scratch)
	if err != nil {
		e.logger.Warn("conversion failed",
			slog.String("file", f.RelPath),
			slog.String("strategy", s.Name()),
			slog.String("error", err.Error()))
		return failed(out, err)
	}
	e.logger.Debug("converted",
		slog.String("file", f.RelPath),
		slog.String("strategy", s.Name()),
		slog.Int("artifacts", len(artifacts)),
		slog.Duration("took", time.Since(began)))

	out.Kind = types.OutcomeConverted
	out.Artifacts = artifacts
	return out
}

func failed(out types.JobOutcome, err error) types.JobOutcome {
	out.Kind = types.OutcomeFailed
	out.ErrKind = Classify(err)
	out.Detail = err.Error()
	return out
}

// record folds one outcome into the report and emits its progress event.
func (r *run) record(o types.JobOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := types.ProgressEvent{File: o.File.RelPath, Total: r.total}
	switch o.Kind {
	case types.OutcomeConverted:
		r.rep.Converted++
		ev.Phase = types.PhaseFileDone
	case types.OutcomeFailed:
		f := types.Failure{Name: o.File.RelPath, Kind: o.ErrKind, Detail: o.Detail}
		r.rep.Failures = append(r.rep.Failures, f)
		r.failed++
		ev.Phase = types.PhaseFileFailed
		ev.Err = report.FailureLine(f)
	case types.OutcomeCancelled:
		r.rep.Cancelled++
		return
	}
	ev.Converted = r.rep.Converted
	ev.Failed = r.failed
	ev.Message = report.Progress(o.File.RelPath, r.rep.Converted+r.failed, r.total, r.failed)
	r.emit(ev)
}

func (r *run) emit(ev types.ProgressEvent) {
	if r.events != nil {
		r.events <- ev
	}
}

// finish stamps the elapsed time, persists the report and history, and
// emits the terminal event.
func (e *Engine) finish(ctx context.Context, r *run, start time.Time) (types.Report, error) {
	rep := &r.rep
	rep.Interrupted = ctx.Err() != nil
	end := e.now()
	rep.Elapsed = end.Sub(start)

	worked := rep.Converted+rep.FailedCount() > 0
	if e.cfg.WriteReport && rep.HasEntries() && (worked || !rep.Interrupted) {
		r.emit(types.ProgressEvent{Phase: types.PhaseReporting, Message: "Writing report"})
		path, err := report.Write(r.req.Destination, *rep, e.cfg.ReportFormat, end)
		if err != nil {
			e.logger.Warn("writing report", slog.String("error", err.Error()))
		} else {
			rep.ReportPath = path
		}
	}

	if e.history != nil && rep.Discovered > 0 {
		if err := e.history.RecordRun(context.WithoutCancel(ctx), *rep); err != nil {
			e.logger.Warn("recording run history", slog.String("error", err.Error()))
		}
	}

	e.logger.Info("run finished",
		slog.Int("discovered", rep.Discovered),
		slog.Int("converted", rep.Converted),
		slog.Int("failed", rep.FailedCount()),
		slog.Int("unsupported", rep.SkippedCount()),
		slog.Int("quarantined", rep.QuarantinedCount()),
		slog.Int("cancelled", rep.Cancelled),
		slog.Bool("interrupted", rep.Interrupted),
		slog.Duration("elapsed", rep.Elapsed))

	final := types.ProgressEvent{
		Phase:     types.PhaseDone,
		Converted: rep.Converted,
		Failed:    rep.FailedCount(),
		Total:     rep.Total(),
		Message:   report.Summary(*rep),
	}
	if rep.Interrupted {
		final.Phase = types.PhaseInterrupted
		r.emit(final)
		return *rep, ctx.Err()
	}
	r.emit(final)
	return *rep, nil
}
