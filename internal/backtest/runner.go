package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nexus-trading/nexus-backtest/internal/observability"
	"github.com/nexus-trading/nexus-backtest/internal/series"
	"github.com/nexus-trading/nexus-backtest/internal/strategy"
)

// ---------------------------------------------------------------------------
// Simulation
// ---------------------------------------------------------------------------

// Simulate turns a position series into realized returns on a single asset.
// The position decided on bar t-1 earns the price change into bar t:
//
//	daily[0] = 0
//	daily[t] = position[t-1] * (price[t]/price[t-1] - 1)
//
// No transaction costs are applied.
func Simulate(prices series.Series, positions series.Positions) (Result, error) {
	if !positions.AlignedWith(prices) {
		return Result{}, fmt.Errorf("simulate: positions vs prices: %w", series.ErrMisaligned)
	}
	if err := series.ValidatePrices(prices); err != nil {
		return Result{}, fmt.Errorf("simulate: %w", err)
	}

	p := prices.Values
	daily := make([]float64, len(p))
	for t := 1; t < len(p); t++ {
		daily[t] = float64(positions.Values[t-1]) * (p[t]/p[t-1] - 1)
	}
	return NewResult(prices.WithValues(daily)), nil
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// RunnerConfig configures a multi-strategy scoring run.
type RunnerConfig struct {
	Params Params
	// Benchmark names the generator whose returns feed the information
	// ratio of every strategy. Empty means no benchmark.
	Benchmark string
	// Concurrency caps the number of strategies scored at once. 0 = unbounded.
	Concurrency int
}

// Scored is the outcome for one strategy.
type Scored struct {
	Name      string
	Positions series.Positions
	Result    Result
	Metrics   Metrics
}

// Runner generates, simulates and evaluates many strategies over one price
// series. Strategies are independent and are scored concurrently.
type Runner struct {
	config  RunnerConfig
	metrics *observability.Registry
}

// NewRunner creates a Runner. A nil registry gets a fresh BacktestMetrics().
func NewRunner(config RunnerConfig, registry *observability.Registry) *Runner {
	if config.Params == (Params{}) {
		config.Params = DefaultParams()
	}
	if registry == nil {
		registry = observability.BacktestMetrics()
	}
	return &Runner{config: config, metrics: registry}
}

// Metrics returns the runner's metric registry.
func (r *Runner) Metrics() *observability.Registry { return r.metrics }

// Run scores every generator against prices. Results are sorted by name.
// The first failure cancels the remaining work and is returned.
func (r *Runner) Run(ctx context.Context, prices series.Series, generators []strategy.Generator) ([]Scored, error) {
	if prices.Len() == 0 {
		return nil, fmt.Errorf("run: prices: %w", series.ErrEmpty)
	}
	if err := checkUniqueNames(generators); err != nil {
		return nil, err
	}

	start := time.Now()
	r.metrics.Gauge(observability.LastRunStrategies, "").Set(float64(len(generators)))

	// Phase 1: generate + simulate every strategy.
	simulated := make([]Scored, len(generators))
	g, gctx := errgroup.WithContext(ctx)
	if r.config.Concurrency > 0 {
		g.SetLimit(r.config.Concurrency)
	}
	for i, gen := range generators {
		i, gen := i, gen
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := r.simulate(prices, gen)
			if err != nil {
				r.metrics.Counter(observability.StrategyFailures, "").Inc()
				return err
			}
			simulated[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	benchmark, err := r.benchmarkFor(simulated)
	if err != nil {
		return nil, err
	}

	// Phase 2: evaluate against the shared, read-only benchmark.
	g, gctx = errgroup.WithContext(ctx)
	if r.config.Concurrency > 0 {
		g.SetLimit(r.config.Concurrency)
	}
	for i := range simulated {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evalStart := time.Now()
			m, err := Evaluate(simulated[i].Result, benchmark, r.config.Params)
			if err != nil {
				r.metrics.Counter(observability.StrategyFailures, "").Inc()
				return fmt.Errorf("strategy %q: %w", simulated[i].Name, err)
			}
			simulated[i].Metrics = m
			r.metrics.Counter(observability.StrategiesScored, "").Inc()
			r.metrics.Histogram(observability.ScoringLatencyMs, "", observability.DefaultLatencyBuckets).
				Observe(float64(time.Since(evalStart).Microseconds()) / 1000.0)

			ev := log.Debug().
				Str("strategy", simulated[i].Name).
				Float64("total_return", m.TotalReturn).
				Float64("sharpe", m.SharpeRatio).
				Float64("max_drawdown", m.MaxDrawdown)
			if ir, ok := m.Information(); ok {
				ev = ev.Float64("information_ratio", ir)
			}
			ev.Msg("Strategy scored")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(simulated, func(a, b int) bool { return simulated[a].Name < simulated[b].Name })

	log.Info().
		Int("strategies", len(simulated)).
		Int("bars", prices.Len()).
		Str("benchmark", r.config.Benchmark).
		Dur("elapsed", time.Since(start)).
		Msg("Backtest run complete")

	return simulated, nil
}

func (r *Runner) simulate(prices series.Series, gen strategy.Generator) (Scored, error) {
	pos, err := gen.Generate(prices)
	if err != nil {
		return Scored{}, fmt.Errorf("strategy %q: generate: %w", gen.Name(), err)
	}
	r.metrics.Counter(observability.BarsProcessed, "").Add(int64(prices.Len()))

	res, err := Simulate(prices, pos)
	if err != nil {
		return Scored{}, fmt.Errorf("strategy %q: %w", gen.Name(), err)
	}
	return Scored{Name: gen.Name(), Positions: pos, Result: res}, nil
}

func (r *Runner) benchmarkFor(simulated []Scored) (Benchmark, error) {
	if r.config.Benchmark == "" {
		return NoBenchmark, nil
	}
	for _, s := range simulated {
		if s.Name == r.config.Benchmark {
			return WithBenchmark(s.Result), nil
		}
	}
	return NoBenchmark, fmt.Errorf("benchmark strategy %q not among generators", r.config.Benchmark)
}

func checkUniqueNames(generators []strategy.Generator) error {
	seen := make(map[string]struct{}, len(generators))
	for _, g := range generators {
		if _, dup := seen[g.Name()]; dup {
			return fmt.Errorf("duplicate strategy name %q", g.Name())
		}
		seen[g.Name()] = struct{}{}
	}
	return nil
}
