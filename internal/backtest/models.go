package backtest

import (
	"github.com/nexus-trading/nexus-backtest/internal/series"
)

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

const (
	// DefaultPeriodsPerYear is the number of trading days per year.
	DefaultPeriodsPerYear = 252.0
	// DefaultRiskFreeRate is the annual risk-free rate.
	DefaultRiskFreeRate = 0.0
	// DefaultEpsilon is added to every ratio denominator so a zero
	// volatility, downside deviation or drawdown yields a large finite ratio.
	DefaultEpsilon = 1e-8
)

// Params carries the evaluation constants into every metric.
type Params struct {
	PeriodsPerYear float64
	RiskFreeRate   float64 // annual
	Epsilon        float64
}

// DefaultParams returns 252 periods per year, zero risk-free rate and a 1e-8 guard.
func DefaultParams() Params {
	return Params{
		PeriodsPerYear: DefaultPeriodsPerYear,
		RiskFreeRate:   DefaultRiskFreeRate,
		Epsilon:        DefaultEpsilon,
	}
}

// ---------------------------------------------------------------------------
// Result bundle
// ---------------------------------------------------------------------------

// Result is a realized backtest: daily returns and the cumulative return
// index built from them.
type Result struct {
	Daily      series.Series
	Cumulative series.Series
}

// NewResult compounds daily returns into a cumulative index with an implicit
// base of 1.0 before the first observation:
// cumulative[t] = cumulative[t-1] * (1 + daily[t]).
func NewResult(daily series.Series) Result {
	cum := make([]float64, daily.Len())
	level := 1.0
	for i, r := range daily.Values {
		level *= 1 + r
		cum[i] = level
	}
	return Result{Daily: daily, Cumulative: daily.WithValues(cum)}
}

// ---------------------------------------------------------------------------
// Benchmark
// ---------------------------------------------------------------------------

// Benchmark is an optional benchmark for relative metrics. The zero value
// (NoBenchmark) is absent.
type Benchmark struct {
	daily   series.Series
	present bool
}

// NoBenchmark is the absent benchmark.
var NoBenchmark = Benchmark{}

// WithBenchmark wraps a benchmark result bundle. Only its daily returns are used.
func WithBenchmark(r Result) Benchmark {
	return Benchmark{daily: r.Daily, present: true}
}

// Present reports whether a benchmark was supplied.
func (b Benchmark) Present() bool { return b.present }

// Daily returns the benchmark daily returns and whether a benchmark is present.
func (b Benchmark) Daily() (series.Series, bool) { return b.daily, b.present }

// ---------------------------------------------------------------------------
// Metrics record
// ---------------------------------------------------------------------------

// Metric names, in record order.
const (
	MetricTotalReturn      = "Total Return"
	MetricAnnualizedReturn = "Annualized Return"
	MetricMaxDrawdown      = "Max Drawdown"
	MetricSharpeRatio      = "Sharpe Ratio"
	MetricSortinoRatio     = "Sortino Ratio"
	MetricCalmarRatio      = "Calmar Ratio"
	MetricInformationRatio = "Information Ratio"
	MetricAnnualVolatility = "Annual Volatility"
)

// MetricNames lists every key of the metrics record in fixed order.
var MetricNames = []string{
	MetricTotalReturn,
	MetricAnnualizedReturn,
	MetricMaxDrawdown,
	MetricSharpeRatio,
	MetricSortinoRatio,
	MetricCalmarRatio,
	MetricInformationRatio,
	MetricAnnualVolatility,
}

// Metrics is the fixed performance record for one strategy.
type Metrics struct {
	TotalReturn      float64  // last cumulative value - 1
	AnnualizedReturn float64  // compounded, periods-per-year scaled
	MaxDrawdown      float64  // most negative peak-to-trough fraction, <= 0
	SharpeRatio      float64  // annualized
	SortinoRatio     float64  // annualized
	CalmarRatio      float64  // annualized return / |max drawdown|
	InformationRatio *float64 // nil when no benchmark was supplied
	AnnualVolatility float64
}

// Field is one named entry of a Metrics record.
type Field struct {
	Name     string
	Value    float64
	Computed bool // false only for the information ratio without a benchmark
}

// Fields returns the record as named entries in MetricNames order.
func (m Metrics) Fields() []Field {
	ir, irOK := m.Information()
	return []Field{
		{Name: MetricTotalReturn, Value: m.TotalReturn, Computed: true},
		{Name: MetricAnnualizedReturn, Value: m.AnnualizedReturn, Computed: true},
		{Name: MetricMaxDrawdown, Value: m.MaxDrawdown, Computed: true},
		{Name: MetricSharpeRatio, Value: m.SharpeRatio, Computed: true},
		{Name: MetricSortinoRatio, Value: m.SortinoRatio, Computed: true},
		{Name: MetricCalmarRatio, Value: m.CalmarRatio, Computed: true},
		{Name: MetricInformationRatio, Value: ir, Computed: irOK},
		{Name: MetricAnnualVolatility, Value: m.AnnualVolatility, Computed: true},
	}
}

// Information returns the information ratio and whether it was computed.
func (m Metrics) Information() (float64, bool) {
	if m.InformationRatio == nil {
		return 0, false
	}
	return *m.InformationRatio, true
}
