package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/nexus-trading/nexus-backtest/internal/features"
	"github.com/nexus-trading/nexus-backtest/internal/series"
)

// Default parameters for the built-in rules.
const (
	DefaultShortWindow   = 5
	DefaultLongWindow    = 10
	DefaultMACDFast      = 12
	DefaultMACDSlow      = 26
	DefaultMACDSignal    = 9
	DefaultRSIPeriod     = 14
	DefaultRSIOversold   = 20.0
	DefaultRSIOverbought = 60.0
)

// ErrInvalidWindow is returned for window or span parameters below 1.
var ErrInvalidWindow = errors.New("window must be >= 1")

// Compile-time interface checks.
var (
	_ Generator = (*BuyAndHold)(nil)
	_ Generator = (*DualMA)(nil)
	_ Generator = (*MACD)(nil)
	_ Generator = (*RSI)(nil)
)

// ---------------------------------------------------------------------------
// Buy-and-Hold
// ---------------------------------------------------------------------------

// BuyAndHold is long on every bar.
type BuyAndHold struct {
	name string
}

// NewBuyAndHold creates a BuyAndHold generator. An empty name defaults to "buy_and_hold".
func NewBuyAndHold(name string) *BuyAndHold {
	if name == "" {
		name = TypeBuyAndHold
	}
	return &BuyAndHold{name: name}
}

func (b *BuyAndHold) Name() string { return b.name }

func (b *BuyAndHold) Generate(prices series.Series) (series.Positions, error) {
	pos, err := flatPositions(prices)
	if err != nil {
		return pos, err
	}
	for i := range pos.Values {
		pos.Values[i] = series.Long
	}
	return pos, nil
}

// ---------------------------------------------------------------------------
// Dual moving average
// ---------------------------------------------------------------------------

// DualMA is long while the short SMA is above the long SMA and short while it
// is below. Exact ties and bars where either average is undefined are flat.
type DualMA struct {
	name        string
	shortWindow int
	longWindow  int
}

// NewDualMA creates a DualMA generator.
func NewDualMA(name string, shortWindow, longWindow int) (*DualMA, error) {
	if shortWindow < 1 || longWindow < 1 {
		return nil, fmt.Errorf("dual_ma short=%d long=%d: %w", shortWindow, longWindow, ErrInvalidWindow)
	}
	if name == "" {
		name = TypeDualMA
	}
	return &DualMA{name: name, shortWindow: shortWindow, longWindow: longWindow}, nil
}

func (d *DualMA) Name() string { return d.name }

func (d *DualMA) Generate(prices series.Series) (series.Positions, error) {
	pos, err := flatPositions(prices)
	if err != nil {
		return pos, err
	}

	short := features.RollingMean(prices.Values, d.shortWindow)
	long := features.RollingMean(prices.Values, d.longWindow)

	// NaN compares false both ways, so warm-up bars stay flat.
	for i := range pos.Values {
		switch {
		case short[i] > long[i]:
			pos.Values[i] = series.Long
		case short[i] < long[i]:
			pos.Values[i] = series.Short
		}
	}
	return pos, nil
}

// ---------------------------------------------------------------------------
// MACD crossover
// ---------------------------------------------------------------------------

// MACD marks only the bars where the MACD line crosses its signal line:
// Long on an upward cross, Short on a downward cross, Flat everywhere else.
// The position is not carried between crossings.
type MACD struct {
	name         string
	fast         int
	slow         int
	signalWindow int
}

// NewMACD creates a MACD crossover generator.
func NewMACD(name string, fast, slow, signalWindow int) (*MACD, error) {
	if fast < 1 || slow < 1 || signalWindow < 1 {
		return nil, fmt.Errorf("macd fast=%d slow=%d signal=%d: %w", fast, slow, signalWindow, ErrInvalidWindow)
	}
	if name == "" {
		name = TypeMACD
	}
	return &MACD{name: name, fast: fast, slow: slow, signalWindow: signalWindow}, nil
}

func (m *MACD) Name() string { return m.name }

// Lines returns the MACD line and its signal line.
func (m *MACD) Lines(prices []float64) (macd, signal []float64) {
	fast := features.EWMA(prices, float64(m.fast))
	slow := features.EWMA(prices, float64(m.slow))

	macd = make([]float64, len(prices))
	for i := range prices {
		macd[i] = fast[i] - slow[i]
	}
	return macd, features.EWMA(macd, float64(m.signalWindow))
}

func (m *MACD) Generate(prices series.Series) (series.Positions, error) {
	pos, err := flatPositions(prices)
	if err != nil {
		return pos, err
	}

	macd, signal := m.Lines(prices.Values)
	for i := 1; i < len(pos.Values); i++ {
		prevMACD, prevSig := macd[i-1], signal[i-1]
		curMACD, curSig := macd[i], signal[i]
		switch {
		case prevMACD <= prevSig && curMACD > curSig:
			pos.Values[i] = series.Long
		case prevMACD >= prevSig && curMACD < curSig:
			pos.Values[i] = series.Short
		}
	}
	return pos, nil
}

// ---------------------------------------------------------------------------
// RSI threshold
// ---------------------------------------------------------------------------

// RSI goes long when the relative strength index is below the oversold
// threshold and short when it is above the overbought threshold.
// The default thresholds (20 / 60) are deliberately asymmetric.
type RSI struct {
	name       string
	period     int
	oversold   float64
	overbought float64
}

// NewRSI creates an RSI generator with the default thresholds.
func NewRSI(name string, period int) (*RSI, error) {
	return NewRSIWithThresholds(name, period, DefaultRSIOversold, DefaultRSIOverbought)
}

// NewRSIWithThresholds creates an RSI generator with explicit thresholds.
func NewRSIWithThresholds(name string, period int, oversold, overbought float64) (*RSI, error) {
	if period < 1 {
		return nil, fmt.Errorf("rsi period=%d: %w", period, ErrInvalidWindow)
	}
	if name == "" {
		name = TypeRSI
	}
	return &RSI{name: name, period: period, oversold: oversold, overbought: overbought}, nil
}

func (r *RSI) Name() string { return r.name }

// Index returns the RSI series; entries are NaN until the window fills.
func (r *RSI) Index(prices []float64) []float64 {
	diffs := features.Diff(prices)
	avgGain := features.RollingMean(features.Gains(diffs), r.period)
	avgLoss := features.RollingMean(features.Losses(diffs), r.period)

	out := make([]float64, len(prices))
	for i := range out {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			out[i] = math.NaN()
			continue
		}
		rs := avgGain[i] / (avgLoss[i] + Epsilon)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

func (r *RSI) Generate(prices series.Series) (series.Positions, error) {
	pos, err := flatPositions(prices)
	if err != nil {
		return pos, err
	}

	rsi := r.Index(prices.Values)
	for i, v := range rsi {
		switch {
		case v < r.oversold:
			pos.Values[i] = series.Long
		case v > r.overbought:
			pos.Values[i] = series.Short
		}
	}
	return pos, nil
}

// ---------------------------------------------------------------------------
// Forecast
// ---------------------------------------------------------------------------

// FromForecast turns predicted returns into positions by sign. NaN
// predictions are flat.
func FromForecast(predicted series.Series) series.Positions {
	pos := series.NewPositions(predicted.Index, predicted.Len())
	for i, v := range predicted.Values {
		switch {
		case v > 0:
			pos.Values[i] = series.Long
		case v < 0:
			pos.Values[i] = series.Short
		}
	}
	return pos
}
