package strategy

import (
	"errors"
	"fmt"
	"math"
)

// Strategy types accepted by FromConfig.
const (
	TypeBuyAndHold = "buy_and_hold"
	TypeDualMA     = "dual_ma"
	TypeMACD       = "macd"
	TypeRSI        = "rsi"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrInvalidParam        = errors.New("invalid strategy parameter")
)

// Config describes one generator instance.
type Config struct {
	Name   string             `yaml:"name"`
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params"`
}

// FromConfig creates a Generator from Config. Missing params fall back to
// the package defaults.
func FromConfig(cfg Config) (Generator, error) {
	switch cfg.Type {
	case TypeBuyAndHold:
		return NewBuyAndHold(cfg.Name), nil
	case TypeDualMA:
		short, err := intParam(cfg.Params, "short_window", DefaultShortWindow)
		if err != nil {
			return nil, err
		}
		long, err := intParam(cfg.Params, "long_window", DefaultLongWindow)
		if err != nil {
			return nil, err
		}
		return NewDualMA(cfg.Name, short, long)
	case TypeMACD:
		fast, err := intParam(cfg.Params, "fast", DefaultMACDFast)
		if err != nil {
			return nil, err
		}
		slow, err := intParam(cfg.Params, "slow", DefaultMACDSlow)
		if err != nil {
			return nil, err
		}
		signal, err := intParam(cfg.Params, "signal_window", DefaultMACDSignal)
		if err != nil {
			return nil, err
		}
		return NewMACD(cfg.Name, fast, slow, signal)
	case TypeRSI:
		period, err := intParam(cfg.Params, "period", DefaultRSIPeriod)
		if err != nil {
			return nil, err
		}
		oversold := floatParam(cfg.Params, "oversold", DefaultRSIOversold)
		overbought := floatParam(cfg.Params, "overbought", DefaultRSIOverbought)
		return NewRSIWithThresholds(cfg.Name, period, oversold, overbought)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

// intParam reads a whole-number parameter.
func intParam(params map[string]float64, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s=%v is not a whole number", ErrInvalidParam, key, v)
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s=%v is out of range", ErrInvalidParam, key, v)
	}
	return int(v), nil
}

func floatParam(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
