package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/nexus-backtest/internal/backtest"
	"github.com/nexus-trading/nexus-backtest/internal/series"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSaveAndLoadRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ir := 0.42
	run := RunFrom("spy.csv", 250, "buy_and_hold", []backtest.Scored{
		{Name: "macd", Metrics: backtest.Metrics{TotalReturn: 0.1, SharpeRatio: 1.1, InformationRatio: &ir}},
		{Name: "buy_and_hold", Metrics: backtest.Metrics{TotalReturn: 0.2, MaxDrawdown: -0.1}},
	})
	run.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	got, err := s.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, "spy.csv", got.Source)
	assert.Equal(t, 250, got.Bars)
	assert.Equal(t, "buy_and_hold", got.Benchmark)

	require.Len(t, got.Results, 2)
	assert.Equal(t, "buy_and_hold", got.Results[0].Strategy)
	assert.Nil(t, got.Results[0].Metrics.InformationRatio, "missing ratio round-trips as NULL")
	assert.Equal(t, -0.1, got.Results[0].Metrics.MaxDrawdown)

	require.NotNil(t, got.Results[1].Metrics.InformationRatio)
	assert.Equal(t, 0.42, *got.Results[1].Metrics.InformationRatio)
	assert.Equal(t, 1.1, got.Results[1].Metrics.SharpeRatio)
}

func TestSaveRun_NaNMetricsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Compounded growth goes negative, so the fractional power is NaN.
	m, err := backtest.Evaluate(backtest.NewResult(series.FromValues(0, -2, 0.01, 0, 0)),
		backtest.NoBenchmark, backtest.DefaultParams())
	require.NoError(t, err)
	require.True(t, math.IsNaN(m.AnnualizedReturn))

	nanIR := math.NaN()
	id, err := s.SaveRun(ctx, Run{Source: "short.csv", Results: []StrategyMetrics{
		{Strategy: "short", Metrics: m},
		{Strategy: "zz_nan_ir", Metrics: backtest.Metrics{InformationRatio: &nanIR}},
	}})
	require.NoError(t, err)

	got, err := s.LoadRun(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Results, 2)

	loaded := got.Results[0].Metrics
	assert.True(t, math.IsNaN(loaded.AnnualizedReturn))
	assert.True(t, math.IsNaN(loaded.CalmarRatio))
	assert.Equal(t, m.TotalReturn, loaded.TotalReturn)
	assert.Equal(t, m.MaxDrawdown, loaded.MaxDrawdown)
	assert.Equal(t, m.SharpeRatio, loaded.SharpeRatio)
	assert.Equal(t, m.AnnualVolatility, loaded.AnnualVolatility)
	assert.Nil(t, loaded.InformationRatio)

	// A computed-but-NaN ratio is still distinct from "no benchmark".
	require.NotNil(t, got.Results[1].Metrics.InformationRatio)
	assert.True(t, math.IsNaN(*got.Results[1].Metrics.InformationRatio))
}

func TestLoadRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := Run{Source: "a.csv", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	old.Results = []StrategyMetrics{{Strategy: "x"}, {Strategy: "y"}}
	oldID, err := s.SaveRun(ctx, old)
	require.NoError(t, err)

	newID, err := s.SaveRun(ctx, Run{Source: "b.csv", CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newID, runs[0].ID)
	assert.Equal(t, 0, runs[0].Strategies)
	assert.Equal(t, oldID, runs[1].ID)
	assert.Equal(t, 2, runs[1].Strategies)
}

func TestSaveRun_DuplicateStrategyRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveRun(ctx, Run{Source: "a.csv", Results: []StrategyMetrics{{Strategy: "x"}, {Strategy: "x"}}})
	require.Error(t, err)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}
