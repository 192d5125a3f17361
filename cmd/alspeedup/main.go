package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ciricc/go-al-speedup/internal/app"
	"github.com/ciricc/go-al-speedup/internal/config"
	"github.com/ciricc/go-al-speedup/internal/telemetry"
	"github.com/ciricc/go-al-speedup/pkg/speedreport"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	version   string
	buildDate string
	gitCommit string
)

var (
	configPath   string
	dataDir      string
	filePattern  string
	workers      int
	logLevel     string
	otelConfig   string
	plotPath     string
	jsonPath     string
	logScale     bool
	noPlot       bool
	showProgress bool
	precision    int

	rootCmd = &cobra.Command{
		Use:           "alspeedup",
		Short:         "Projects the time speed-up of active learning over random sampling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Print the speed-up table (LaTeX and plain) and save the chart",
		RunE:  runReport,
	}

	summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Print the per configuration sample budgets and times the projection is based on",
		RunE:  runSummary,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("alspeedup %s\nbuild date: %s\nlast commit: %s\n", version, buildDate, gitCommit)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "config.yaml", "path to a YAML config; defaults apply when missing")
	pf.StringVarP(&dataDir, "data", "d", "", "directory with the active/random run logs")
	pf.StringVar(&filePattern, "pattern", "", "run log file name template, gets strategy and parameter count")
	pf.IntVarP(&workers, "workers", "w", 0, "number of configurations evaluated in parallel")
	pf.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	pf.StringVar(&otelConfig, "otel-config", "", "OpenTelemetry configuration file")
	pf.IntVar(&precision, "precision", -1, "decimal places in printed tables")

	reportCmd.Flags().StringVarP(&plotPath, "plot", "p", "", "chart output path (.png, .svg, .pdf)")
	reportCmd.Flags().StringVar(&jsonPath, "json", "", "also write a JSON report to this path")
	reportCmd.Flags().BoolVar(&logScale, "log-scale", false, "logarithmic speed-up axis")
	reportCmd.Flags().BoolVar(&noPlot, "no-plot", false, "do not render the chart")
	reportCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar on stderr")

	rootCmd.AddCommand(reportCmd, summaryCmd, versionCmd)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Data.BaseDir = dataDir
	}
	if flags.Changed("pattern") {
		cfg.Data.Pattern = filePattern
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("otel-config") {
		cfg.Telemetry.ConfigPath = otelConfig
	}
	if flags.Changed("precision") {
		cfg.Report.Precision = precision
	}
	if flags.Changed("plot") {
		cfg.Report.PlotPath = plotPath
	}
	if flags.Changed("json") {
		cfg.Report.JSONPath = jsonPath
	}
	if flags.Changed("log-scale") {
		cfg.Report.LogScale = logScale
	}
	if noPlot {
		cfg.Report.PlotPath = ""
	}
	return cfg, nil
}

// run builds the application, evaluates all configurations and hands the
// result to out.
func run(cmd *cobra.Command, withProgress bool, out func(cfg config.Config, log *slog.Logger, t speedreport.Table) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := app.NewLogger(os.Stderr, cfg.Log.Level)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sdk, err := telemetry.InitFromConfig(ctx, cfg.Telemetry.ConfigPath, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sdk.Shutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	opts := []app.Option{app.WithLogger(log)}
	if withProgress {
		opts = append(opts, app.WithProgress(
			progressbar.Default(int64(len(cfg.ParameterCounts)), "configurations")))
	}
	application, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}
	log.Info("evaluating configurations",
		"dataDir", cfg.Data.BaseDir,
		"parameterCounts", cfg.ParameterCounts,
		"workers", cfg.Workers)

	tbl, err := application.Run(ctx)
	if err != nil {
		return err
	}
	return out(cfg, log, tbl)
}

func runReport(cmd *cobra.Command, args []string) error {
	return run(cmd, showProgress, func(cfg config.Config, log *slog.Logger, tbl speedreport.Table) error {
		stdout := cmd.OutOrStdout()
		if err := speedreport.WriteLatex(stdout, tbl, cfg.Report.Precision); err != nil {
			return err
		}
		fmt.Fprintln(stdout)
		if err := speedreport.WritePlain(stdout, tbl, cfg.Report.Precision); err != nil {
			return err
		}
		if cfg.Report.PlotPath != "" {
			err := speedreport.SavePlot(tbl, cfg.Report.PlotPath, speedreport.PlotOptions{LogScale: cfg.Report.LogScale})
			switch {
			case errors.Is(err, speedreport.ErrNothingToPlot):
				log.Warn("plot skipped", "path", cfg.Report.PlotPath, "reason", err)
			case err != nil:
				return fmt.Errorf("save plot: %w", err)
			}
		}
		if cfg.Report.JSONPath != "" {
			r := speedreport.NewReport(tbl, cfg.Seconds(), cfg.Data.BaseDir, time.Now())
			if err := speedreport.WriteJSON(r, cfg.Report.JSONPath); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}
		return nil
	})
}

func runSummary(cmd *cobra.Command, args []string) error {
	return run(cmd, false, func(cfg config.Config, _ *slog.Logger, tbl speedreport.Table) error {
		return speedreport.WriteSummary(cmd.OutOrStdout(), tbl, cfg.Report.Precision)
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fatalf("%v", err)
	}
}

func fatalf(format string, a ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
