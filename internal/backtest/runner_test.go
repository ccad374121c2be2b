package backtest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/nexus-backtest/internal/observability"
	"github.com/nexus-trading/nexus-backtest/internal/series"
	"github.com/nexus-trading/nexus-backtest/internal/strategy"
)

func testPrices(t *testing.T, values ...float64) series.Series {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, len(values))
	for i := range idx {
		idx[i] = base.AddDate(0, 0, i)
	}
	s, err := series.New(idx, values)
	require.NoError(t, err)
	return s
}

// failingGenerator always errors.
type failingGenerator struct{ name string }

func (f *failingGenerator) Name() string { return f.name }
func (f *failingGenerator) Generate(series.Series) (series.Positions, error) {
	return series.Positions{}, errors.New("boom")
}

func TestSimulate_BuyAndHoldTracksPrice(t *testing.T) {
	prices := testPrices(t, 100, 110, 99, 108.9)
	pos, err := strategy.NewBuyAndHold("").Generate(prices)
	require.NoError(t, err)

	res, err := Simulate(prices, pos)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0, 0.1, -0.1, 0.1}, res.Daily.Values, floatTol)
	last, _ := res.Cumulative.Last()
	assert.InDelta(t, 108.9/100, last, floatTol, "long-only cumulative tracks price")
	assert.Equal(t, prices.Index, res.Daily.Index)
}

func TestSimulate_PositionLagsOneBar(t *testing.T) {
	prices := testPrices(t, 100, 110, 121)
	pos := series.NewPositions(prices.Index, 3)
	pos.Values[0] = series.Flat
	pos.Values[1] = series.Short
	pos.Values[2] = series.Long // never earns anything: no bar after it

	res, err := Simulate(prices, pos)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, -0.1}, res.Daily.Values, floatTol)
}

func TestSimulate_Misaligned(t *testing.T) {
	prices := testPrices(t, 100, 101)
	_, err := Simulate(prices, series.NewPositions(nil, 3))
	assert.ErrorIs(t, err, series.ErrMisaligned)
}

func TestRunner_ScoresAllStrategies(t *testing.T) {
	prices := testPrices(t, 100, 101, 99, 103, 108, 107, 110, 112, 109, 111, 115, 114)
	ma, err := strategy.NewDualMA("ma", 2, 3)
	require.NoError(t, err)
	gens := []strategy.Generator{ma, strategy.NewBuyAndHold("bh")}

	registry := observability.BacktestMetrics()
	r := NewRunner(RunnerConfig{Benchmark: "bh"}, registry)

	scored, err := r.Run(context.Background(), prices, gens)
	require.NoError(t, err)
	require.Len(t, scored, 2)

	// Sorted by name.
	assert.Equal(t, "bh", scored[0].Name)
	assert.Equal(t, "ma", scored[1].Name)

	for _, s := range scored {
		require.NotNil(t, s.Metrics.InformationRatio, s.Name)
		assert.Equal(t, prices.Len(), s.Result.Daily.Len())
	}
	// The benchmark against itself has no active return.
	assert.InDelta(t, 0.0, *scored[0].Metrics.InformationRatio, floatTol)

	// Scoring matches a direct Evaluate call.
	want, err := Evaluate(scored[1].Result, WithBenchmark(scored[0].Result), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, want, scored[1].Metrics)

	assert.Equal(t, int64(2), registry.Counter(observability.StrategiesScored, "").Value())
	assert.Equal(t, int64(2*prices.Len()), registry.Counter(observability.BarsProcessed, "").Value())
	assert.Equal(t, 2.0, registry.Gauge(observability.LastRunStrategies, "").Value())
}

func TestRunner_NoBenchmark(t *testing.T) {
	prices := testPrices(t, 100, 101, 102)
	r := NewRunner(RunnerConfig{Concurrency: 1}, nil)

	scored, err := r.Run(context.Background(), prices, []strategy.Generator{strategy.NewBuyAndHold("")})
	require.NoError(t, err)
	assert.Nil(t, scored[0].Metrics.InformationRatio)
}

func TestRunner_Errors(t *testing.T) {
	prices := testPrices(t, 100, 101, 102)
	r := NewRunner(RunnerConfig{}, nil)
	ctx := context.Background()

	_, err := r.Run(ctx, series.Series{}, []strategy.Generator{strategy.NewBuyAndHold("")})
	assert.ErrorIs(t, err, series.ErrEmpty)

	_, err = r.Run(ctx, prices, []strategy.Generator{strategy.NewBuyAndHold("x"), strategy.NewBuyAndHold("x")})
	assert.ErrorContains(t, err, "duplicate")

	_, err = r.Run(ctx, prices, []strategy.Generator{&failingGenerator{name: "bad"}})
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, int64(1), r.Metrics().Counter(observability.StrategyFailures, "").Value())

	missing := NewRunner(RunnerConfig{Benchmark: "nope"}, nil)
	_, err = missing.Run(ctx, prices, []strategy.Generator{strategy.NewBuyAndHold("")})
	assert.ErrorContains(t, err, "nope")
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(RunnerConfig{}, nil)
	_, err := r.Run(ctx, testPrices(t, 100, 101), []strategy.Generator{strategy.NewBuyAndHold("")})
	assert.ErrorIs(t, err, context.Canceled)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestRunner_LogsInformationRatioOnlyWithBenchmark(t *testing.T) {
	prices := testPrices(t, 100, 101, 99, 103)
	gens := []strategy.Generator{strategy.NewBuyAndHold("")}

	buf := captureLogs(t)
	_, err := NewRunner(RunnerConfig{}, nil).Run(context.Background(), prices, gens)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Strategy scored")
	assert.NotContains(t, buf.String(), "information_ratio")

	buf.Reset()
	_, err = NewRunner(RunnerConfig{Benchmark: strategy.TypeBuyAndHold}, nil).Run(context.Background(), prices, gens)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"information_ratio":0`)
}
