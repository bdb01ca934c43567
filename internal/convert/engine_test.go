// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docbatch/internal/classify"
	"github.com/pdiddy/docbatch/internal/codec"
	"github.com/pdiddy/docbatch/internal/strategy"
	"github.com/pdiddy/docbatch/pkg/types"
)

// funcStrategy adapts a function to strategy.Strategy.
type funcStrategy func(ctx context.Context, src types.SourceFile, dest, scratch string) ([]string, error)

func (f funcStrategy) Name() string { return "func" }

func (f funcStrategy) Convert(ctx context.Context, src types.SourceFile, dest, scratch string) ([]string, error) {
	return f(ctx, src, dest, scratch)
}

// staticSelector returns the same strategy for every kind.
type staticSelector struct {
	s strategy.Strategy
}

func (s staticSelector) Select(types.Kind, types.TargetFormat) (strategy.Strategy, error) {
	return s.s, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []types.Report
}

func (f *fakeRecorder) RecordRun(_ context.Context, r types.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, r)
	return nil
}

// writeOK writes a marker file at dest.
func writeOK(_ context.Context, _ types.SourceFile, dest, _ string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	return []string{dest}, os.WriteFile(dest, []byte("ok"), 0o644)
}

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, filepath.FromSlash(n))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

// collect drains events in the background and returns them once Run ends.
func collect(ch chan types.ProgressEvent) func() []types.ProgressEvent {
	var got []types.ProgressEvent
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			got = append(got, ev)
			if ev.Terminal() {
				return
			}
		}
	}()
	return func() []types.ProgressEvent {
		<-done
		return got
	}
}

func newTestEngine(t *testing.T, cfg types.ConversionConfig, deps Deps) *Engine {
	t.Helper()
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = t.TempDir()
	}
	e, err := NewEngine(cfg, deps)
	require.NoError(t, err)
	return e
}

func assertInvariant(t *testing.T, rep types.Report) {
	t.Helper()
	assert.Equal(t, rep.Discovered-rep.Cancelled,
		rep.Converted+rep.FailedCount()+rep.SkippedCount()+rep.QuarantinedCount(),
		"outcome counts must cover every discovered file")
}

// writeScenario fills src with an 800x600 image, a three-page PDF, an
// unsupported text file, and an encrypted PDF, and returns an engine wired
// with the real codecs.
func writeScenario(t *testing.T, src string) *Engine {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	f, err := os.Create(filepath.Join(src, "a.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 0; i < 3; i++ {
		pdf.AddPage()
		pdf.Cell(100, 20, "page")
	}
	require.NoError(t, pdf.OutputFileAndClose(filepath.Join(src, "b.pdf")))
	require.NoError(t, os.WriteFile(filepath.Join(src, "c.txt"), []byte("notes"), 0o644))

	plain := filepath.Join(t.TempDir(), "plain.pdf")
	one := gofpdf.New("P", "pt", "A4", "")
	one.AddPage()
	require.NoError(t, one.OutputFileAndClose(plain))
	pdfc := codec.NewPdfcpu()
	require.NoError(t, api.EncryptFile(plain, filepath.Join(src, "d.pdf"), model.NewAESConfiguration("user", "owner", 256)))

	registry := strategy.NewRegistry(strategy.Deps{
		Pages: codec.NewPageWriter(types.DefaultJPEGQuality),
		PDF:   pdfc,
	})
	return newTestEngine(t, types.DefaultConversionConfig(), Deps{Strategies: registry, Prober: pdfc})
}

// TestRun_Scenario runs the real codecs over a small mixed tree: an image,
// a three-page PDF, an unsupported text file, and an encrypted PDF.
func TestRun_Scenario(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	e := writeScenario(t, src)

	ch := make(chan types.ProgressEvent, 64)
	events := collect(ch)
	rep, err := e.Run(context.Background(), Request{Source: src, Destination: dst, Format: types.FormatPDF}, ch)
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Discovered)
	assert.Equal(t, 2, rep.Converted)
	assert.Empty(t, rep.Failures)
	assert.Equal(t, []string{"c.txt"}, rep.Unsupported)
	require.Len(t, rep.Quarantined, 1)
	assert.Equal(t, "d.pdf", rep.Quarantined[0].Name)
	assert.Empty(t, rep.Quarantined[0].Err)
	assertInvariant(t, rep)

	assert.FileExists(t, filepath.Join(dst, "a.pdf"))
	for _, p := range []string{"pagina_001.pdf", "pagina_002.pdf", "pagina_003.pdf"} {
		assert.FileExists(t, filepath.Join(dst, "b", p))
	}
	assert.NoFileExists(t, filepath.Join(dst, "b.pdf"))
	assert.FileExists(t, filepath.Join(dst, "password_protected", "d.pdf"))
	assert.FileExists(t, filepath.Join(src, "d.pdf"))
	assert.NoFileExists(t, filepath.Join(dst, "c.pdf"))

	require.NotEmpty(t, rep.ReportPath)
	assert.FileExists(t, rep.ReportPath)

	got := events()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, types.PhaseDone, last.Phase)
	assert.Contains(t, last.Message, "Converted: 2")
	for _, ev := range got[:len(got)-1] {
		assert.False(t, ev.Terminal())
	}
}

// TestRun_Rerun converts the same tree twice into the same destination. The
// second run reproduces the first run's layout and reuses the quarantined
// copy instead of adding a numbered duplicate.
func TestRun_Rerun(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	e := writeScenario(t, src)
	req := Request{Source: src, Destination: dst, Format: types.FormatPDF}

	first, err := e.Run(context.Background(), req, nil)
	require.NoError(t, err)
	layout := outputLayout(t, dst)
	image1, err := os.ReadFile(filepath.Join(dst, "a.pdf"))
	require.NoError(t, err)

	second, err := e.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Converted, second.Converted)
	assert.Equal(t, first.Quarantined, second.Quarantined)
	assert.Equal(t, layout, outputLayout(t, dst))

	image2, err := os.ReadFile(filepath.Join(dst, "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, image1, image2, "image pages are byte-stable across runs")

	quarantined, err := os.ReadDir(filepath.Join(dst, types.DefaultQuarantineDir))
	require.NoError(t, err)
	require.Len(t, quarantined, 1)
	assert.Equal(t, "d.pdf", quarantined[0].Name())
}

// outputLayout lists the converted files under dst, leaving out persisted
// reports, which are named per run.
func outputLayout(t *testing.T, dst string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dst, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dst, path)
		if !strings.HasPrefix(d.Name(), "conversion_report_") {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func TestRun_DestinationConflict(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	touch(t, src, "scan.bmp", "scan.png", "sub/scan.png", "other.png")

	var mu sync.Mutex
	var converted []string
	e := newTestEngine(t, types.DefaultConversionConfig(), Deps{Strategies: staticSelector{funcStrategy(
		func(ctx context.Context, s types.SourceFile, d, sc string) ([]string, error) {
			mu.Lock()
			converted = append(converted, s.RelPath)
			mu.Unlock()
			return writeOK(ctx, s, d, sc)
		})}})

	rep, err := e.Run(context.Background(), Request{Source: src, Destination: dst, Format: types.FormatPDF}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Converted)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "scan.png", rep.Failures[0].Name)
	assert.Equal(t, types.ErrConflict, rep.Failures[0].Kind)
	assert.Contains(t, rep.Failures[0].Detail, "collides with scan.bmp")
	assertInvariant(t, rep)

	sort.Strings(converted)
	assert.Equal(t, []string{"other.png", "scan.bmp", "sub/scan.png"}, converted)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	touch(t, src, "a.png", "b.png")

	var calls int
	e := newTestEngine(t, types.DefaultConversionConfig(), Deps{Strategies: staticSelector{funcStrategy(
		func(ctx context.Context, s types.SourceFile, d, sc string) ([]string, error) {
			calls++
			return writeOK(ctx, s, d, sc)
		})}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan types.ProgressEvent, 8)
	events := collect(ch)
	rep, err := e.Run(ctx, Request{Source: src, Destination: dst, Format: types.FormatPDF}, ch)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, rep.Interrupted)
	assert.Zero(t, rep.Converted)
	assert.Zero(t, calls)
	assert.NoDirExists(t, dst)

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, types.PhaseInterrupted, got[0].Phase)
	assert.Contains(t, got[0].Message, "interrupted")
}

func TestRun_CancelMidRun(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	touch(t, src, "1.png", "2.png", "3.png", "4.png")

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := funcStrategy(func(fctx context.Context, s types.SourceFile, d, sc string) ([]string, error) {
		once.Do(func() { close(started) })
		<-release
		assert.NoError(t, fctx.Err(), "running conversions are not interrupted")
		return writeOK(fctx, s, d, sc)
	})

	cfg := types.DefaultConversionConfig()
	cfg.Concurrency = 1
	e := newTestEngine(t, cfg, Deps{Strategies: staticSelector{slow}})

	type result struct {
		rep types.Report
		err error
	}
	done := make(chan result, 1)
	go func() {
		rep, err := e.Run(ctx, Request{Source: src, Destination: dst, Format: types.FormatPDF}, nil)
		done <- result{rep, err}
	}()

	<-started
	cancel()
	close(release)

	var res result
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish after cancellation")
	}

	assert.ErrorIs(t, res.err, context.Canceled)
	assert.True(t, res.rep.Interrupted)
	assert.Equal(t, 1, res.rep.Converted)
	assert.Equal(t, 3, res.rep.Cancelled)
	assert.Empty(t, res.rep.Failures)
	assertInvariant(t, res.rep)
	assert.Empty(t, res.rep.ReportPath)
}

func TestRun_FailureIsolation(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	touch(t, src, "good.png", "missing.png", "locked.png", "boom.png", "sub/other.png")

	s := funcStrategy(func(ctx context.Context, f types.SourceFile, d, sc string) ([]string, error) {
		switch filepath.Base(f.Path) {
		case "missing.png":
			return nil, &types.ConversionError{Kind: types.ErrDecode, Op: "decode image", Path: f.Path, Err: os.ErrNotExist}
		case "locked.png":
			return nil, &types.ConversionError{Kind: types.ErrEncode, Op: "write pdf", Path: f.Path, Err: errors.New("disk full")}
		case "boom.png":
			panic("codec exploded")
		}
		return writeOK(ctx, f, d, sc)
	})
	cfg := types.DefaultConversionConfig()
	cfg.ReportFormat = types.ReportJSON
	e := newTestEngine(t, cfg, Deps{Strategies: staticSelector{s}})

	ch := make(chan types.ProgressEvent, 64)
	events := collect(ch)
	rep, err := e.Run(context.Background(), Request{Source: src, Destination: dst, Format: types.FormatPDF}, ch)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Converted)
	require.Len(t, rep.Failures, 3)
	kinds := map[string]types.ErrorKind{}
	for _, f := range rep.Failures {
		kinds[f.Name] = f.Kind
	}
	assert.Equal(t, types.ErrNotFound, kinds["missing.png"])
	assert.Equal(t, types.ErrEncode, kinds["locked.png"])
	assert.Equal(t, types.ErrUnknown, kinds["boom.png"])
	assert.FileExists(t, filepath.Join(dst, "sub", "other.pdf"))
	assertInvariant(t, rep)
	assert.Equal(t, ".json", filepath.Ext(rep.ReportPath))

	var failedEvents []string
	for _, ev := range events() {
		if ev.Phase == types.PhaseFileFailed {
			failedEvents = append(failedEvents, ev.File)
			assert.NotEmpty(t, ev.Err)
		}
	}
	sort.Strings(failedEvents)
	assert.Equal(t, []string{"boom.png", "locked.png", "missing.png"}, failedEvents)
}

func TestRun_FileTimeout(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	touch(t, src, "stuck.png")

	s := funcStrategy(func(ctx context.Context, _ types.SourceFile, _, _ string) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cfg := types.DefaultConversionConfig()
	cfg.FileTimeout = 20 * time.Millisecond
	e := newTestEngine(t, cfg, Deps{Strategies: staticSelector{s}})

	rep, err := e.Run(context.Background(), Request{Source: src, Destination: dst, Format: types.FormatTIFF}, nil)
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, types.ErrTimeout, rep.Failures[0].Kind)
}

func TestRun_SetupErrors(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	src := t.TempDir()
	touch(t, src, "a.png")

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "missing source",
			req:     Request{Source: filepath.Join(base, "nope"), Destination: filepath.Join(base, "out"), Format: types.FormatPDF},
			wantErr: classify.ErrSourceMissing,
		},
		{
			name:    "destination blocked",
			req:     Request{Source: src, Destination: filepath.Join(blocker, "out"), Format: types.FormatPDF},
			wantErr: ErrSetup,
		},
		{
			name:    "bad format",
			req:     Request{Source: src, Destination: filepath.Join(base, "out2"), Format: "png"},
			wantErr: ErrSetup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			e := newTestEngine(t, types.DefaultConversionConfig(), Deps{Strategies: staticSelector{funcStrategy(
				func(context.Context, types.SourceFile, string, string) ([]string, error) {
					calls++
					return nil, nil
				})}})

			ch := make(chan types.ProgressEvent, 4)
			events := collect(ch)
			_, err := e.Run(context.Background(), tt.req, ch)
			assert.ErrorIs(t, err, ErrSetup)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, calls)

			got := events()
			require.Len(t, got, 1)
			assert.Equal(t, types.PhaseSetupFailed, got[0].Phase)
		})
	}
}

func TestRun_QuarantineFolderBlocked(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	touch(t, src, "locked.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(dst, types.DefaultQuarantineDir), []byte("x"), 0o644))

	e := newTestEngine(t, types.DefaultConversionConfig(), Deps{
		Strategies: staticSelector{funcStrategy(writeOK)},
		Prober:     passwordProber{},
	})
	_, err := e.Run(context.Background(), Request{Source: src, Destination: dst, Format: types.FormatPDF}, nil)
	assert.ErrorIs(t, err, ErrSetup)
}

func TestRun_QuarantineDisabled(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	touch(t, src, "locked.pdf")

	cfg := types.DefaultConversionConfig()
	cfg.QuarantineProtected = false
	e := newTestEngine(t, cfg, Deps{Strategies: staticSelector{funcStrategy(writeOK)}, Prober: passwordProber{}})

	rep, err := e.Run(context.Background(), Request{Source: src, Destination: dst, Format: types.FormatPDF}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Converted)
	assert.Empty(t, rep.Quarantined)
	assert.NoDirExists(t, filepath.Join(dst, types.DefaultQuarantineDir))
}

// passwordProber reports every file as password protected.
type passwordProber struct{}

func (passwordProber) Probe(string) error { return errors.New("please provide the correct password") }

func TestRun_NoSupportedFiles(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	touch(t, src, "notes.txt")
	hist := &fakeRecorder{}

	cfg := types.DefaultConversionConfig()
	cfg.WriteReport = false
	e := newTestEngine(t, cfg, Deps{Strategies: staticSelector{funcStrategy(writeOK)}, History: hist})

	ch := make(chan types.ProgressEvent, 8)
	events := collect(ch)
	rep, err := e.Run(context.Background(), Request{Source: src, Destination: dst, Format: types.FormatPDF}, ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, rep.Unsupported)
	assert.Empty(t, rep.ReportPath)
	require.Len(t, hist.runs, 1)
	assert.Equal(t, 1, hist.runs[0].Discovered)

	var messages []string
	for _, ev := range events() {
		messages = append(messages, ev.Message)
	}
	assert.Contains(t, messages, "No supported files found")
}

func TestRun_DestinationInsideSource(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(src, "converted")
	touch(t, src, "a.png")
	e := newTestEngine(t, types.DefaultConversionConfig(), Deps{Strategies: staticSelector{funcStrategy(writeOK)}})

	req := Request{Source: src, Destination: dst, Format: types.FormatPDF}
	first, err := e.Run(context.Background(), req, nil)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Converted)
	assert.Equal(t, first.Discovered, second.Discovered, "outputs must not be re-ingested")
}

func TestRun_ScratchRemoved(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	scratchParent := t.TempDir()
	touch(t, src, "a.png")

	stale := filepath.Join(scratchParent, scratchPrefix+"old")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	old := time.Now().Add(-2 * staleScratchAge)
	require.NoError(t, os.Chtimes(stale, old, old))
	fresh := filepath.Join(scratchParent, scratchPrefix+"live")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	var seen string
	s := funcStrategy(func(ctx context.Context, f types.SourceFile, d, scratch string) ([]string, error) {
		seen = scratch
		assert.DirExists(t, scratch)
		return writeOK(ctx, f, d, scratch)
	})
	cfg := types.DefaultConversionConfig()
	cfg.ScratchDir = scratchParent
	e := newTestEngine(t, cfg, Deps{Strategies: staticSelector{s}})

	_, err := e.Run(context.Background(), Request{Source: src, Destination: dst, Format: types.FormatPDF}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, seen)
	assert.NoDirExists(t, seen)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
}

func TestNewEngine_Validation(t *testing.T) {
	sel := staticSelector{funcStrategy(writeOK)}

	tests := []struct {
		name    string
		mutate  func(*types.ConversionConfig)
		deps    Deps
		wantErr string
	}{
		{name: "no strategies", deps: Deps{}, wantErr: "strategy selector"},
		{name: "nested quarantine", deps: Deps{Strategies: sel}, mutate: func(c *types.ConversionConfig) { c.QuarantineDir = "a/b" }, wantErr: "plain folder name"},
		{name: "bad report format", deps: Deps{Strategies: sel}, mutate: func(c *types.ConversionConfig) { c.ReportFormat = "xml" }, wantErr: "unknown report format"},
		{name: "negative timeout", deps: Deps{Strategies: sel}, mutate: func(c *types.ConversionConfig) { c.FileTimeout = -time.Second }, wantErr: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultConversionConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, err := NewEngine(cfg, tt.deps)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	e, err := NewEngine(types.ConversionConfig{}, Deps{Strategies: sel})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConcurrency, e.cfg.Concurrency)
	assert.Equal(t, types.DefaultQuarantineDir, e.cfg.QuarantineDir)
	assert.Equal(t, types.ReportText, e.cfg.ReportFormat)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"timeout", context.DeadlineExceeded, types.ErrTimeout},
		{"missing tool", &types.ConversionError{Kind: types.ErrDecode, Err: codec.ErrMissingDependency}, types.ErrMissingDependency},
		{"not found", &os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, types.ErrNotFound},
		{"permission", &os.PathError{Op: "open", Path: "x", Err: os.ErrPermission}, types.ErrPermission},
		{"bad format", image.ErrFormat, types.ErrTypeMismatch},
		{"no strategy", strategy.ErrNoStrategy, types.ErrTypeMismatch},
		{"typed", &types.ConversionError{Kind: types.ErrEncode, Err: errors.New("x")}, types.ErrEncode},
		{"other path error", &os.PathError{Op: "write", Path: "x", Err: errors.New("short write")}, types.ErrIO},
		{"unknown", errors.New("weird"), types.ErrUnknown},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
