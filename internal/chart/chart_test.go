package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/nexus-backtest/internal/backtest"
	"github.com/nexus-trading/nexus-backtest/internal/series"
)

var pngMagic = []byte("\x89PNG")

func sampleResults(t *testing.T) map[string]backtest.Result {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, 30)
	a := make([]float64, 30)
	b := make([]float64, 30)
	for i := range idx {
		idx[i] = base.AddDate(0, 0, i)
		a[i] = 0.001
		if i%2 == 0 {
			b[i] = 0.004
		} else {
			b[i] = -0.003
		}
	}
	da, err := series.New(idx, a)
	require.NoError(t, err)
	return map[string]backtest.Result{
		"steady": backtest.NewResult(da),
		"choppy": backtest.NewResult(da.WithValues(b)),
	}
}

func TestRenderCumulativeReturns_PNG(t *testing.T) {
	img, err := RenderCumulativeReturns(sampleResults(t), "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestRenderCumulativeReturns_Errors(t *testing.T) {
	_, err := RenderCumulativeReturns(nil, "x")
	assert.ErrorIs(t, err, ErrNoResults)

	results := sampleResults(t)
	results["short"] = backtest.NewResult(series.FromValues(0, 0.01))
	_, err = RenderCumulativeReturns(results, "x")
	assert.ErrorContains(t, err, "short")
}

func TestRenderCumulativeReturns_NonFinite(t *testing.T) {
	for name, bad := range map[string]float64{"nan": math.NaN(), "inf": math.Inf(1), "-inf": math.Inf(-1)} {
		t.Run(name, func(t *testing.T) {
			results := map[string]backtest.Result{
				"broken": backtest.NewResult(series.FromValues(0, bad, 0.1)),
			}

			_, err := RenderCumulativeReturns(results, "x")
			assert.ErrorIs(t, err, ErrNonFinite)

			path := filepath.Join(t.TempDir(), "cum.png")
			assert.ErrorIs(t, PlotCumulativeReturns(results, "x", path), ErrNonFinite)
			assert.NoFileExists(t, path)
		})
	}
}

func TestPlotCumulativeReturns_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cum.png")
	require.NoError(t, PlotCumulativeReturns(sampleResults(t), "Backtest", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestPlotCumulativeReturns_EmptyPathSkips(t *testing.T) {
	// Even invalid input is fine when nothing is persisted.
	assert.NoError(t, PlotCumulativeReturns(nil, "", ""))
}
