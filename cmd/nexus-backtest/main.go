package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/nexus-backtest/internal/backtest"
	"github.com/nexus-trading/nexus-backtest/internal/chart"
	"github.com/nexus-trading/nexus-backtest/internal/config"
	"github.com/nexus-trading/nexus-backtest/internal/marketdata"
	"github.com/nexus-trading/nexus-backtest/internal/observability"
	"github.com/nexus-trading/nexus-backtest/internal/report"
	"github.com/nexus-trading/nexus-backtest/internal/store"
	"github.com/nexus-trading/nexus-backtest/internal/strategy"
)

func main() {
	// 1. Parse flags.
	configPath := flag.String("config", "config/backtest.yaml", "Path to configuration file")
	pricesPath := flag.String("prices", "", "Price file (.csv or .parquet); overrides data.prices_path")
	chartPath := flag.String("chart", "", "Chart PNG path; overrides output.chart_path")
	listRuns := flag.Bool("list-runs", false, "List stored runs and exit")
	showRun := flag.String("show-run", "", "Print the report of a stored run and exit")
	flag.Parse()

	// 2. Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *pricesPath != "" {
		cfg.Data.PricesPath = *pricesPath
	}
	if *chartPath != "" {
		cfg.Output.ChartPath = *chartPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup logging.
	setupLogging(cfg.General)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	switch {
	case *listRuns:
		err = printRuns(ctx, cfg)
	case *showRun != "":
		err = printStoredRun(ctx, cfg, *showRun)
	default:
		err = run(ctx, cfg)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Data.PricesPath == "" {
		return errors.New("no price file: set data.prices_path or -prices")
	}

	prices, err := marketdata.LoadFile(cfg.Data.PricesPath, cfg.CSVOptions())
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}
	log.Info().
		Str("path", cfg.Data.PricesPath).
		Int("bars", prices.Len()).
		Msg("Prices loaded")

	registry := strategy.NewRegistry()
	for _, sc := range cfg.Strategies {
		gen, err := strategy.FromConfig(sc)
		if err != nil {
			return fmt.Errorf("strategy %q: %w", sc.Name, err)
		}
		if err := registry.Register(gen); err != nil {
			return err
		}
	}
	log.Info().Strs("strategies", registry.List()).Msg("Strategies registered")

	metrics := observability.BacktestMetrics()
	runner := backtest.NewRunner(backtest.RunnerConfig{
		Params:      cfg.EvaluationParams(),
		Benchmark:   cfg.Evaluation.Benchmark,
		Concurrency: cfg.Evaluation.Concurrency,
	}, metrics)

	scored, err := runner.Run(ctx, prices, registry.Generators())
	if err != nil {
		return err
	}

	if err := writeReport(cfg.Output, report.RowsFrom(scored)); err != nil {
		return err
	}

	results := make(map[string]backtest.Result, len(scored))
	for _, s := range scored {
		results[s.Name] = s.Result
	}
	if err := chart.PlotCumulativeReturns(results, cfg.Output.ChartTitle, cfg.Output.ChartPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.Output.ChartPath).Msg("Chart skipped")
	}

	if cfg.Output.SQLitePath != "" {
		st, err := openStore(ctx, cfg.Output.SQLitePath)
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.SaveRun(ctx, store.RunFrom(cfg.Data.PricesPath, prices.Len(), cfg.Evaluation.Benchmark, scored))
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		log.Info().Str("run_id", id).Str("path", cfg.Output.SQLitePath).Msg("Run stored")
	}

	if cfg.Output.MetricsPath != "" {
		if err := metrics.WriteFile(cfg.Output.MetricsPath); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(out config.OutputConfig, rows []report.Row) error {
	text, err := report.Render(out.ReportFormat, rows)
	if err != nil {
		return err
	}
	if out.ReportPath == "" {
		_, err = fmt.Fprint(os.Stdout, text)
		return err
	}
	if err := os.WriteFile(out.ReportPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("path", out.ReportPath).Msg("Report written")
	return nil
}

func openStore(ctx context.Context, path string) (*store.SQLiteStore, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func printRuns(ctx context.Context, cfg *config.Config) error {
	if cfg.Output.SQLitePath == "" {
		return errors.New("output.sqlite_path is not set")
	}
	st, err := openStore(ctx, cfg.Output.SQLitePath)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-40s %d strategies\n", r.ID, r.CreatedAt.Format(time.RFC3339), r.Source, r.Strategies)
	}
	return nil
}

func printStoredRun(ctx context.Context, cfg *config.Config, id string) error {
	if cfg.Output.SQLitePath == "" {
		return errors.New("output.sqlite_path is not set")
	}
	st, err := openStore(ctx, cfg.Output.SQLitePath)
	if err != nil {
		return err
	}
	defer st.Close()

	stored, err := st.LoadRun(ctx, id)
	if err != nil {
		return err
	}
	rows := make([]report.Row, len(stored.Results))
	for i, r := range stored.Results {
		rows[i] = report.Row{Name: r.Strategy, Metrics: r.Metrics}
	}
	return writeReport(cfg.Output, rows)
}

func setupLogging(general config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Stdout carries the report.
	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Str("service", "nexus-backtest").
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).
			With().Timestamp().Str("service", "nexus-backtest").
			Str("instance", general.InstanceID).Logger()
	}
}
