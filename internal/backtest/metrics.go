package backtest

import (
	"fmt"
	"math"

	"github.com/nexus-trading/nexus-backtest/internal/series"
)

// Every metric here is a pure function of its inputs: no I/O, no time.Now(),
// no shared state. All standard deviations are population deviations.

// MaxDrawdown returns the most negative (cumulative[t] - peak[t]) / peak[t],
// where peak[t] is the running maximum up to t. The result is <= 0 and is 0
// only for a non-decreasing series. Points whose running peak is 0 have no
// defined drawdown and are skipped.
func MaxDrawdown(cumulative []float64) (float64, error) {
	if len(cumulative) == 0 {
		return 0, fmt.Errorf("max drawdown: %w", series.ErrEmpty)
	}

	peak := cumulative[0]
	maxDD := 0.0
	for _, v := range cumulative {
		if v > peak {
			peak = v
		}
		if peak == 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD, nil
}

// AnnualizedReturn compounds the daily returns and scales the growth factor
// to periodsPerYear: prod(1+r)^(periodsPerYear/n) - 1.
func AnnualizedReturn(daily []float64, periodsPerYear float64) (float64, error) {
	if len(daily) == 0 {
		return 0, fmt.Errorf("annualized return: %w", series.ErrEmpty)
	}

	growth := 1.0
	for _, r := range daily {
		growth *= 1 + r
	}
	return math.Pow(growth, periodsPerYear/float64(len(daily))) - 1, nil
}

// AnnualizedVolatility returns std(daily) * sqrt(periodsPerYear).
func AnnualizedVolatility(daily []float64, periodsPerYear float64) (float64, error) {
	if len(daily) == 0 {
		return 0, fmt.Errorf("annualized volatility: %w", series.ErrEmpty)
	}
	return stddev(daily, mean(daily)) * math.Sqrt(periodsPerYear), nil
}

// SharpeRatio computes mean(excess) / (std(excess) + eps) * sqrt(periodsPerYear)
// where excess = r - riskFreeRate/periodsPerYear.
func SharpeRatio(daily []float64, p Params) (float64, error) {
	if len(daily) == 0 {
		return 0, fmt.Errorf("sharpe ratio: %w", series.ErrEmpty)
	}

	excess := excessReturns(daily, p)
	m := mean(excess)
	return m / (stddev(excess, m) + p.Epsilon) * math.Sqrt(p.PeriodsPerYear), nil
}

// SortinoRatio uses the Sharpe numerator and annualization, with the
// population deviation of the negative raw returns as the denominator.
// Without negative returns the downside deviation is 0 and the epsilon
// guard alone sets the scale.
func SortinoRatio(daily []float64, p Params) (float64, error) {
	if len(daily) == 0 {
		return 0, fmt.Errorf("sortino ratio: %w", series.ErrEmpty)
	}

	excess := excessReturns(daily, p)
	return mean(excess) / (downsideDeviation(daily) + p.Epsilon) * math.Sqrt(p.PeriodsPerYear), nil
}

// CalmarRatio returns annualReturn / (|maxDrawdown| + eps).
func CalmarRatio(annualReturn, maxDrawdown, eps float64) float64 {
	return annualReturn / (math.Abs(maxDrawdown) + eps)
}

// InformationRatio returns mean(active) / (std(active) + eps) with
// active = strategy - benchmark. The two series must be aligned.
func InformationRatio(strategy, benchmark series.Series, eps float64) (float64, error) {
	if err := series.CheckAligned(strategy, benchmark); err != nil {
		return 0, fmt.Errorf("information ratio: %w", err)
	}
	if strategy.Len() == 0 {
		return 0, fmt.Errorf("information ratio: %w", series.ErrEmpty)
	}

	active := make([]float64, strategy.Len())
	for i := range active {
		active[i] = strategy.Values[i] - benchmark.Values[i]
	}
	m := mean(active)
	return m / (stddev(active, m) + eps), nil
}

// Evaluate computes the full metrics record for a result bundle. The
// information ratio is computed only when a benchmark is present; otherwise
// it is left nil and every other metric is still returned.
func Evaluate(result Result, benchmark Benchmark, p Params) (Metrics, error) {
	if err := series.CheckAligned(result.Daily, result.Cumulative); err != nil {
		return Metrics{}, fmt.Errorf("evaluate: daily vs cumulative: %w", err)
	}

	last, err := result.Cumulative.Last()
	if err != nil {
		return Metrics{}, fmt.Errorf("evaluate: total return: %w", err)
	}

	daily := result.Daily.Values
	m := Metrics{TotalReturn: last - 1}

	if m.AnnualizedReturn, err = AnnualizedReturn(daily, p.PeriodsPerYear); err != nil {
		return Metrics{}, err
	}
	if m.AnnualVolatility, err = AnnualizedVolatility(daily, p.PeriodsPerYear); err != nil {
		return Metrics{}, err
	}
	if m.SharpeRatio, err = SharpeRatio(daily, p); err != nil {
		return Metrics{}, err
	}
	if m.SortinoRatio, err = SortinoRatio(daily, p); err != nil {
		return Metrics{}, err
	}
	if m.MaxDrawdown, err = MaxDrawdown(result.Cumulative.Values); err != nil {
		return Metrics{}, err
	}
	m.CalmarRatio = CalmarRatio(m.AnnualizedReturn, m.MaxDrawdown, p.Epsilon)

	if bench, ok := benchmark.Daily(); ok {
		ir, err := InformationRatio(result.Daily, bench, p.Epsilon)
		if err != nil {
			return Metrics{}, err
		}
		m.InformationRatio = &ir
	}

	return m, nil
}

// --- Internal helpers ---

func excessReturns(daily []float64, p Params) []float64 {
	perPeriod := p.RiskFreeRate / p.PeriodsPerYear
	out := make([]float64, len(daily))
	for i, r := range daily {
		out[i] = r - perPeriod
	}
	return out
}

// mean returns the arithmetic mean of a slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev returns the population standard deviation of a slice given its mean.
func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// downsideDeviation returns the population standard deviation of the
// negative returns only, or 0 when there are none.
func downsideDeviation(xs []float64) float64 {
	neg := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x < 0 {
			neg = append(neg, x)
		}
	}
	if len(neg) == 0 {
		return 0
	}
	return stddev(neg, mean(neg))
}
