// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docbatch/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.HistoryConfig{Enabled: true, Dir: filepath.Join(t.TempDir(), "history")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(start time.Time, converted int) types.Report {
	return types.Report{
		Source:      "/in",
		Destination: "/out",
		Format:      types.FormatPDF,
		Discovered:  converted + 3,
		Converted:   converted,
		Failures: []types.Failure{
			{Name: "x.png", Kind: types.ErrDecode, Detail: "bad header"},
			{Name: "y.doc", Kind: types.ErrMissingDependency},
		},
		Unsupported: []string{"c.txt"},
		StartedAt:   start,
		Elapsed:     1500 * time.Millisecond,
		ReportPath:  "/out/conversion_report_20240101_000000.txt",
	}
}

func TestRecordAndList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, sampleRun(base, 5)))
	require.NoError(t, s.RecordRun(ctx, sampleRun(base.Add(time.Hour), 7)))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	newest := runs[0]
	assert.Equal(t, 7, newest.Converted)
	assert.Equal(t, base.Add(time.Hour), newest.StartedAt)
	assert.Equal(t, 1500*time.Millisecond, newest.Elapsed)
	assert.Equal(t, types.FormatPDF, newest.Format)
	assert.Equal(t, 2, newest.Failed)
	assert.Equal(t, 1, newest.Unsupported)
	assert.False(t, newest.Interrupted)
	assert.Equal(t, "/out/conversion_report_20240101_000000.txt", newest.ReportPath)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	failures, err := s.Failures(ctx, newest.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.Failure{
		{Name: "x.png", Kind: types.ErrDecode, Detail: "bad header"},
		{Name: "y.doc", Kind: types.ErrMissingDependency},
	}, failures)
}

func TestListRuns_SubSecondOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	whole := time.Date(2024, 1, 1, 9, 0, 5, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, sampleRun(whole.Add(500*time.Millisecond), 2)))
	require.NoError(t, s.RecordRun(ctx, sampleRun(whole, 1)))
	require.NoError(t, s.RecordRun(ctx, sampleRun(whole.Add(900*time.Millisecond), 3)))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{runs[0].Converted, runs[1].Converted, runs[2].Converted})
	assert.Equal(t, whole.Add(900*time.Millisecond), runs[0].StartedAt)

	removed, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	runs, err = s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[1].Converted, "the whole-second run is the oldest")
}

func TestPrune(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(ctx, sampleRun(base.Add(time.Duration(i)*time.Minute), i)))
	}

	removed, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 4, runs[0].Converted)
	assert.Equal(t, 3, runs[1].Converted)

	var orphans int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM failures WHERE run_id NOT IN (SELECT id FROM runs)`).Scan(&orphans))
	assert.Zero(t, orphans, "failures cascade with their run")
}

func TestExportYAML(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	r := sampleRun(time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), 1)
	r.Interrupted = true
	require.NoError(t, s.RecordRun(ctx, r))

	var buf bytes.Buffer
	require.NoError(t, s.ExportYAML(ctx, &buf, 10))

	var runs []Run
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Interrupted)
	assert.Len(t, runs[0].Failures, 2)
}

func TestExportJSON(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var empty bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &empty, 0))
	assert.JSONEq(t, "[]", empty.String())

	require.NoError(t, s.RecordRun(ctx, sampleRun(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), 2)))
	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &buf, 0))

	var runs []Run
	require.NoError(t, json.Unmarshal(buf.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Converted)
	assert.Equal(t, "x.png", runs[0].Failures[0].Name)
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore(types.HistoryConfig{})
	assert.ErrorContains(t, err, "not configured")
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(types.HistoryConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.RecordRun(context.Background(), sampleRun(time.Now(), 1)))
	require.NoError(t, s.Close())

	s, err = NewStore(types.HistoryConfig{Dir: dir})
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
