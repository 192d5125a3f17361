package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ciricc/go-al-speedup/internal/config"
	"github.com/ciricc/go-al-speedup/internal/runlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// curve builds one iteration with accuracies rising by step per row, sizes 10, 20, ... and constant dt.
func curve(it, rows int, step, dt float64) runlog.Table {
	var t runlog.Table
	for i := 1; i <= rows; i++ {
		t = append(t, runlog.Record{Iteration: it, Acc: step * float64(i), Size: float64(10 * i), DT: dt})
	}
	return t
}

func memSource(counts ...int) *runlog.MemorySource {
	src := runlog.NewMemorySource()
	for _, n := range counts {
		var active, random runlog.Table
		for it := 1; it <= 3; it++ {
			// active reaches the random best accuracy (0.5) after 5 rows, random after 10
			active = append(active, curve(it, 10, 0.1, float64(n))...)
			random = append(random, curve(it, 10, 0.05, 1)...)
		}
		src.Put(runlog.Active, n, active).Put(runlog.Random, n, random)
	}
	return src
}

func testConfig(counts ...int) config.Config {
	c := config.Default()
	c.ParameterCounts = counts
	c.SampleTimes = []config.SampleTime{{Label: "1ms", Seconds: 1e-3}, {Label: "1s", Seconds: 1}, {Label: "inf", Seconds: 1e6}}
	return c
}

func TestRunShapeAndOrder(t *testing.T) {
	counts := []int{19, 14, 10, 8, 4, 1}
	cfg := config.Default()
	cfg.ParameterCounts = counts
	a, err := New(cfg, WithSource(memSource(counts...)), WithLogger(discardLogger()))
	require.NoError(t, err)

	tbl, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, tbl.Rows, len(counts))
	assert.Len(t, tbl.Columns, 1+len(cfg.SampleTimes))
	assert.Equal(t, "n_parameters", tbl.Columns[0])
	assert.Equal(t, cfg.Labels(), tbl.Labels())
	for i, r := range tbl.Rows {
		assert.Equal(t, counts[i], r.NParameters)
		assert.Len(t, r.Speedups, len(cfg.SampleTimes))
	}
}

func TestEvaluate(t *testing.T) {
	a, err := New(testConfig(4), WithSource(memSource(4)), WithLogger(discardLogger()))
	require.NoError(t, err)

	row, err := a.Evaluate(context.Background(), 4)
	require.NoError(t, err)
	// active keeps 5 rows (acc 0.1..0.5) per iteration: size 50, dt sum 5*4
	assert.InDelta(t, 50, row.Stats.ALSamples, 1e-9)
	assert.InDelta(t, 100, row.Stats.RSSamples, 1e-9)
	assert.InDelta(t, 20, row.Stats.ALTime, 1e-9)
	assert.InDelta(t, 1, row.Stats.RSTime, 1e-9)
	assert.InDelta(t, 19, row.Stats.ALTimeRaw, 1e-9)
	assert.Equal(t, 3, row.Stats.Iterations)

	assert.InDelta(t, 0.1/(0.05+19), row.Speedups[0], 1e-12)
	assert.InDelta(t, 100.0/69.0, row.Speedups[1], 1e-12)
	assert.InDelta(t, 1e8/(5e7+19), row.Speedups[2], 1e-12)
}

func TestRunParallelMatchesSequential(t *testing.T) {
	counts := []int{1, 2, 3, 4, 5, 6, 7, 8}
	seq, err := New(testConfig(counts...), WithSource(memSource(counts...)), WithLogger(discardLogger()))
	require.NoError(t, err)
	want, err := seq.Run(context.Background())
	require.NoError(t, err)

	cfg := testConfig(counts...)
	cfg.Workers = 4
	var done atomic.Int64
	par, err := New(cfg, WithSource(memSource(counts...)), WithLogger(discardLogger()),
		WithProgress(progressFunc(func(n int) error { done.Add(int64(n)); return nil })))
	require.NoError(t, err)
	got, err := par.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, int64(len(counts)), done.Load())
}

func TestRunProgressErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a, err := New(testConfig(4), WithSource(memSource(4)), WithLogger(log),
		WithProgress(progressFunc(func(int) error { return errors.New("terminal gone") })))
	require.NoError(t, err)

	tbl, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 1)
	assert.Contains(t, buf.String(), "progress update failed")
	assert.Contains(t, buf.String(), "terminal gone")
}

func TestRunMissingConfiguration(t *testing.T) {
	a, err := New(testConfig(4, 8), WithSource(memSource(4)), WithLogger(discardLogger()))
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	assert.ErrorIs(t, err, runlog.ErrSourceNotFound)
	assert.ErrorContains(t, err, "8 parameters")
}

func TestRunFromFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("active_2params.csv", "iteration,acc,size,dt\n1,0.2,10,1\n1,0.9,20,1\n")
	write("random_2params.csv", "iteration,acc,size,dt\n1,0.3,10,0.5\n1,0.5,30,0.5\n")

	cfg := testConfig(2)
	cfg.Data.BaseDir = dir
	a, err := New(cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	tbl, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	// al_samples 10, rs_samples 30, al_time_raw 1 - 0.5
	assert.InDelta(t, 30.0/10.5, tbl.Rows[0].Speedups[1], 1e-12)
}

func TestEvaluateDegenerateRatio(t *testing.T) {
	src := runlog.NewMemorySource().
		Put(runlog.Active, 1, runlog.Table{{Iteration: 1, Acc: 0.1, Size: 10, DT: 0.001}}).
		Put(runlog.Random, 1, runlog.Table{{Iteration: 1, Acc: 0.5, Size: 100, DT: 5}})
	a, err := New(testConfig(1), WithSource(src), WithLogger(discardLogger()))
	require.NoError(t, err)
	row, err := a.Evaluate(context.Background(), 1)
	require.NoError(t, err)
	// al_time_raw = 0.001 - 5, so at 1ms per sample the projected active time is negative
	assert.True(t, math.IsInf(row.Speedups[0], 1))
	assert.False(t, math.IsInf(row.Speedups[2], 0))
}

func TestEvaluateLogsDroppedIterations(t *testing.T) {
	src := runlog.NewMemorySource().
		Put(runlog.Active, 1, runlog.Table{
			{Iteration: 1, Acc: 0.1, Size: 10, DT: 1},
			{Iteration: 2, Acc: 0.9, Size: 10, DT: 1},
			{Iteration: 7, Acc: 0.1, Size: 10, DT: 1},
		}).
		Put(runlog.Random, 1, runlog.Table{
			{Iteration: 1, Acc: 0.5, Size: 10, DT: 1},
			{Iteration: 2, Acc: 0.5, Size: 10, DT: 1},
		})
	var buf bytes.Buffer
	a, err := New(testConfig(1), WithSource(src), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	row, err := a.Evaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, row.Stats.DroppedIterations)
	assert.Equal(t, []int{7}, row.Stats.OrphanedIterations)
	assert.Contains(t, buf.String(), "iterations dropped")
	assert.Contains(t, buf.String(), "without random sampling counterpart")
}

func TestRunRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	a, err := New(testConfig(4, 8), WithSource(memSource(4, 8)),
		WithLogger(discardLogger()), WithTracer(tp.Tracer("test")))
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	require.NoError(t, err)

	names := map[string]int{}
	for _, s := range rec.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["alspeedup.run"])
	assert.Equal(t, 2, names["alspeedup.configuration"])
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	_, err := New(cfg)
	assert.Error(t, err)
}

type progressFunc func(n int) error

func (f progressFunc) Add(n int) error { return f(n) }
