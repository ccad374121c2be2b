package observability

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------
// Counter Tests
// -----------------------------------------------------------------------

func TestCounter_IncAndAdd(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("test_counter", "A test counter")

	assert.Equal(t, int64(0), c.Value())

	c.Inc()
	c.Inc()
	c.Add(5)
	assert.Equal(t, int64(7), c.Value())

	// Negative delta should be ignored.
	c.Add(-10)
	assert.Equal(t, int64(7), c.Value())
}

func TestCounter_ConcurrentAccess(t *testing.T) {
	c := NewRegistry().Counter("concurrent_counter", "counter for concurrency test")

	var wg sync.WaitGroup
	n := 1000
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), c.Value())
}

func TestRegistry_ReturnsExisting(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("dup", "first")
	b := r.Counter("dup", "second")
	assert.Same(t, a, b)
}

// -----------------------------------------------------------------------
// Gauge / Histogram Tests
// -----------------------------------------------------------------------

func TestGauge_Set(t *testing.T) {
	g := NewRegistry().Gauge("test_gauge", "A test gauge")
	assert.Equal(t, 0.0, g.Value())

	g.Set(42.5)
	assert.Equal(t, 42.5, g.Value())
	g.Set(-1)
	assert.Equal(t, -1.0, g.Value())
}

func TestHistogram_Observe(t *testing.T) {
	h := NewRegistry().Histogram("test_hist", "A test histogram", []float64{10, 1, 5})

	for _, v := range []float64{0.5, 3, 7, 20} {
		h.Observe(v)
	}

	buckets, counts, sum, count := h.BucketCounts()
	assert.Equal(t, []float64{1, 5, 10}, buckets, "buckets are sorted")
	assert.Equal(t, []int64{1, 2, 3}, counts)
	assert.InDelta(t, 30.5, sum, 1e-9)
	assert.Equal(t, int64(4), count)
	assert.Equal(t, int64(4), h.Count())
}

// -----------------------------------------------------------------------
// Exposition
// -----------------------------------------------------------------------

func TestBacktestMetrics_Format(t *testing.T) {
	r := BacktestMetrics()
	r.Counter(StrategiesScored, "").Add(3)
	r.Gauge(LastRunStrategies, "").Set(3)
	r.Histogram(ScoringLatencyMs, "", nil).Observe(2)

	out := r.Format()

	assert.Contains(t, out, "# TYPE backtest_strategies_scored_total counter\n")
	assert.Contains(t, out, "backtest_strategies_scored_total 3\n")
	assert.Contains(t, out, "backtest_last_run_strategies 3\n")
	assert.Contains(t, out, "backtest_scoring_latency_ms_bucket{le=\"5\"} 1\n")
	assert.Contains(t, out, "backtest_scoring_latency_ms_bucket{le=\"+Inf\"} 1\n")
	assert.Contains(t, out, "backtest_scoring_latency_ms_count 1\n")

	// Counters come before gauges, gauges before histograms.
	assert.Less(t, strings.Index(out, "counter"), strings.Index(out, "gauge"))
	assert.Less(t, strings.Index(out, "gauge"), strings.Index(out, "histogram"))
}

func TestRegistry_WriteFile(t *testing.T) {
	r := BacktestMetrics()
	r.Counter(BarsProcessed, "").Add(250)

	path := filepath.Join(t.TempDir(), "backtest.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backtest_bars_processed_total 250")
}
