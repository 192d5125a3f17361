package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ciricc/go-al-speedup/internal/aggregate"
	"github.com/ciricc/go-al-speedup/internal/config"
	"github.com/ciricc/go-al-speedup/internal/runlog"
	"github.com/ciricc/go-al-speedup/internal/telemetry"
	"github.com/ciricc/go-al-speedup/pkg/speedreport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Progress is notified once per finished configuration.
type Progress interface {
	Add(n int) error
}

type Application struct {
	Config   config.Config
	Log      *slog.Logger
	source   runlog.Source
	tracer   trace.Tracer
	progress Progress
}

type Option func(a *Application)

// WithSource replaces the CSV files under Config.Data.BaseDir as the source of run logs.
func WithSource(src runlog.Source) Option {
	return func(a *Application) { a.source = src }
}

func WithLogger(log *slog.Logger) Option {
	return func(a *Application) { a.Log = log }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(a *Application) { a.tracer = tracer }
}

func WithProgress(p Progress) Option {
	return func(a *Application) { a.progress = p }
}

func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

func New(cfg config.Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &Application{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.Log == nil {
		log, err := NewLogger(os.Stderr, cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		a.Log = log
	}
	if a.source == nil {
		a.source = runlog.NewFileSource(cfg.Data.BaseDir, cfg.Data.Pattern)
	}
	if a.tracer == nil {
		a.tracer = telemetry.Tracer()
	}
	return a, nil
}

// Run evaluates every configured parameter count. Rows come out in the order
// of Config.ParameterCounts regardless of the number of workers. The first
// failing configuration aborts the run.
func (a *Application) Run(ctx context.Context) (speedreport.Table, error) {
	ctx, span := a.tracer.Start(ctx, "alspeedup.run", trace.WithAttributes(
		attribute.Int("configurations", len(a.Config.ParameterCounts)),
		attribute.Int("workers", a.Config.Workers),
	))
	defer span.End()

	rows := make([]speedreport.Row, len(a.Config.ParameterCounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.Workers)
	for i, n := range a.Config.ParameterCounts {
		g.Go(func() error {
			row, err := a.Evaluate(gctx, n)
			if err != nil {
				return fmt.Errorf("%d parameters: %w", n, err)
			}
			rows[i] = row
			if a.progress != nil {
				if err := a.progress.Add(1); err != nil {
					a.Log.DebugContext(gctx, "progress update failed", "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return speedreport.Table{}, err
	}
	return speedreport.NewTable(a.Config.Labels(), rows)
}

// Evaluate loads the two run logs of one configuration and projects its speed-ups.
func (a *Application) Evaluate(ctx context.Context, nParams int) (speedreport.Row, error) {
	ctx, span := a.tracer.Start(ctx, "alspeedup.configuration", trace.WithAttributes(
		attribute.Int("n_parameters", nParams),
	))
	defer span.End()
	log := a.Log.With("nParameters", nParams)

	fail := func(err error) (speedreport.Row, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return speedreport.Row{}, err
	}

	active, random, err := runlog.LoadPair(ctx, a.source, nParams)
	if err != nil {
		return fail(err)
	}
	log.DebugContext(ctx, "run logs loaded", "activeRows", len(active), "randomRows", len(random))

	summary, err := aggregate.Summarize(active, random)
	if err != nil {
		return fail(err)
	}
	if len(summary.DroppedIterations) > 0 {
		log.WarnContext(ctx, "iterations dropped, no active learning step below the random sampling best accuracy",
			"iterations", summary.DroppedIterations)
	}
	if len(summary.OrphanedIterations) > 0 {
		log.WarnContext(ctx, "active learning iterations without random sampling counterpart kept unfiltered",
			"iterations", summary.OrphanedIterations)
	}
	span.SetAttributes(
		attribute.Int("iterations", summary.Iterations),
		attribute.Int("matched_iterations", summary.MatchedIterations),
	)

	speedups := summary.Project(a.Config.Seconds())
	log.DebugContext(ctx, "configuration evaluated",
		"alSamples", summary.ALSamples,
		"rsSamples", summary.RSSamples,
		"alTimeRaw", summary.ALTimeRaw)

	return speedreport.Row{
		NParameters: nParams,
		Speedups:    speedups,
		Stats:       statsOf(summary),
	}, nil
}

func statsOf(s aggregate.Summary) speedreport.Stats {
	return speedreport.Stats{
		ALSamples:          s.ALSamples,
		RSSamples:          s.RSSamples,
		ALTime:             s.ALTime,
		RSTime:             s.RSTime,
		ALTimeRaw:          s.ALTimeRaw,
		Iterations:         s.Iterations,
		MatchedIterations:  s.MatchedIterations,
		DroppedIterations:  s.DroppedIterations,
		OrphanedIterations: s.OrphanedIterations,
	}
}
