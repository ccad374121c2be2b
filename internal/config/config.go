package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nexus-trading/nexus-backtest/internal/backtest"
	"github.com/nexus-trading/nexus-backtest/internal/marketdata"
	"github.com/nexus-trading/nexus-backtest/internal/report"
	"github.com/nexus-trading/nexus-backtest/internal/strategy"
)

// ErrInvalid wraps every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the root configuration structure for a backtest run.
type Config struct {
	General    GeneralConfig     `yaml:"general"`
	Data       DataConfig        `yaml:"data"`
	Evaluation EvaluationConfig  `yaml:"evaluation"`
	Strategies []strategy.Config `yaml:"strategies"`
	Output     OutputConfig      `yaml:"output"`
}

type GeneralConfig struct {
	InstanceID string `yaml:"instance_id"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // json|text
}

type DataConfig struct {
	PricesPath  string `yaml:"prices_path"` // .csv or .parquet
	DateColumn  string `yaml:"date_column"`
	CloseColumn string `yaml:"close_column"`
	DateLayout  string `yaml:"date_layout"`
}

type EvaluationConfig struct {
	PeriodsPerYear float64 `yaml:"periods_per_year"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	Epsilon        float64 `yaml:"epsilon"`
	Benchmark      string  `yaml:"benchmark"` // strategy name; empty disables the information ratio
	Concurrency    int     `yaml:"concurrency"`
}

type OutputConfig struct {
	ChartPath    string `yaml:"chart_path"`
	ChartTitle   string `yaml:"chart_title"`
	ReportFormat string `yaml:"report_format"` // markdown|csv
	ReportPath   string `yaml:"report_path"`   // empty prints to stdout
	SQLitePath   string `yaml:"sqlite_path"`
	MetricsPath  string `yaml:"metrics_path"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// DefaultStrategies is the comparison set used when none are configured.
func DefaultStrategies() []strategy.Config {
	return []strategy.Config{
		{Name: strategy.TypeBuyAndHold, Type: strategy.TypeBuyAndHold},
		{Name: strategy.TypeDualMA, Type: strategy.TypeDualMA},
		{Name: strategy.TypeMACD, Type: strategy.TypeMACD},
		{Name: strategy.TypeRSI, Type: strategy.TypeRSI},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "nexus-backtest-1"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.Data.DateColumn == "" {
		cfg.Data.DateColumn = marketdata.DefaultDateColumn
	}
	if cfg.Data.CloseColumn == "" {
		cfg.Data.CloseColumn = marketdata.DefaultCloseColumn
	}
	if cfg.Data.DateLayout == "" {
		cfg.Data.DateLayout = marketdata.DefaultDateLayout
	}
	if cfg.Evaluation.PeriodsPerYear == 0 {
		cfg.Evaluation.PeriodsPerYear = backtest.DefaultPeriodsPerYear
	}
	if cfg.Evaluation.Epsilon == 0 {
		cfg.Evaluation.Epsilon = backtest.DefaultEpsilon
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
		if cfg.Evaluation.Benchmark == "" {
			cfg.Evaluation.Benchmark = strategy.TypeBuyAndHold
		}
	}
	for i := range cfg.Strategies {
		if cfg.Strategies[i].Name == "" {
			cfg.Strategies[i].Name = cfg.Strategies[i].Type
		}
	}
	if cfg.Output.ChartTitle == "" {
		cfg.Output.ChartTitle = "Cumulative Returns"
	}
	if cfg.Output.ReportFormat == "" {
		cfg.Output.ReportFormat = report.FormatMarkdown
	}
}

// Validate checks cross-field rules that defaults cannot fix.
func (c *Config) Validate() error {
	if c.Evaluation.PeriodsPerYear <= 0 {
		return fmt.Errorf("%w: evaluation.periods_per_year must be positive, got %v", ErrInvalid, c.Evaluation.PeriodsPerYear)
	}
	if c.Evaluation.Epsilon < 0 {
		return fmt.Errorf("%w: evaluation.epsilon must not be negative", ErrInvalid)
	}
	if c.Evaluation.Concurrency < 0 {
		return fmt.Errorf("%w: evaluation.concurrency must not be negative", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("%w: strategy without name or type", ErrInvalid)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate strategy name %q", ErrInvalid, s.Name)
		}
		seen[s.Name] = true
	}
	if c.Evaluation.Benchmark != "" && !seen[c.Evaluation.Benchmark] {
		return fmt.Errorf("%w: benchmark %q is not a configured strategy", ErrInvalid, c.Evaluation.Benchmark)
	}

	switch c.Output.ReportFormat {
	case report.FormatMarkdown, report.FormatCSV:
	default:
		return fmt.Errorf("%w: output.report_format %q", ErrInvalid, c.Output.ReportFormat)
	}
	return nil
}

// EvaluationParams converts the evaluation section into backtest parameters.
func (c *Config) EvaluationParams() backtest.Params {
	return backtest.Params{
		PeriodsPerYear: c.Evaluation.PeriodsPerYear,
		RiskFreeRate:   c.Evaluation.RiskFreeRate,
		Epsilon:        c.Evaluation.Epsilon,
	}
}

// CSVOptions converts the data section into loader options.
func (c *Config) CSVOptions() marketdata.CSVOptions {
	return marketdata.CSVOptions{
		DateColumn:  c.Data.DateColumn,
		CloseColumn: c.Data.CloseColumn,
		DateLayout:  c.Data.DateLayout,
	}
}
