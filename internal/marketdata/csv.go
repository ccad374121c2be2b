// Package marketdata loads close-price series from CSV and Parquet files.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/nexus-backtest/internal/series"
)

const (
	DefaultDateColumn  = "date"
	DefaultCloseColumn = "close"
	DefaultDateLayout  = "2006-01-02"
)

var (
	// ErrMissingColumn is returned when the CSV header lacks a configured column.
	ErrMissingColumn = errors.New("missing column")
	// ErrUnsupportedFormat is returned by LoadFile for unknown extensions.
	ErrUnsupportedFormat = errors.New("unsupported price file format")
)

// CSVOptions names the columns and date layout of a price CSV.
type CSVOptions struct {
	DateColumn  string
	CloseColumn string
	DateLayout  string
}

// DefaultCSVOptions returns date/close columns with ISO dates.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		DateColumn:  DefaultDateColumn,
		CloseColumn: DefaultCloseColumn,
		DateLayout:  DefaultDateLayout,
	}
}

func (o CSVOptions) withDefaults() CSVOptions {
	d := DefaultCSVOptions()
	if o.DateColumn == "" {
		o.DateColumn = d.DateColumn
	}
	if o.CloseColumn == "" {
		o.CloseColumn = d.CloseColumn
	}
	if o.DateLayout == "" {
		o.DateLayout = d.DateLayout
	}
	return o
}

type bar struct {
	ts    time.Time
	close float64
}

// ReadCSV parses a header-led CSV into a close-price series ordered by date.
// Column names match case-insensitively. Rows may appear in any order.
func ReadCSV(r io.Reader, opts CSVOptions) (series.Series, error) {
	opts = opts.withDefaults()

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return series.Series{}, fmt.Errorf("read csv: %w", series.ErrEmpty)
	}
	if err != nil {
		return series.Series{}, fmt.Errorf("read csv header: %w", err)
	}

	dateIdx, err := columnIndex(header, opts.DateColumn)
	if err != nil {
		return series.Series{}, err
	}
	closeIdx, err := columnIndex(header, opts.CloseColumn)
	if err != nil {
		return series.Series{}, err
	}

	var bars []bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return series.Series{}, fmt.Errorf("read csv line %d: %w", line, err)
		}

		ts, err := time.Parse(opts.DateLayout, strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return series.Series{}, fmt.Errorf("line %d: parse date: %w", line, err)
		}
		px, err := decimal.NewFromString(strings.TrimSpace(rec[closeIdx]))
		if err != nil {
			return series.Series{}, fmt.Errorf("line %d: parse close: %w", line, err)
		}
		if !px.IsPositive() {
			return series.Series{}, fmt.Errorf("line %d: %w: %s", line, series.ErrNonPositivePrice, px)
		}
		bars = append(bars, bar{ts: ts, close: px.InexactFloat64()})
	}

	return fromBars(bars)
}

// LoadCSV reads a price CSV from disk.
func LoadCSV(path string, opts CSVOptions) (series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return series.Series{}, fmt.Errorf("open prices: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
}

func fromBars(bars []bar) (series.Series, error) {
	if len(bars) == 0 {
		return series.Series{}, series.ErrEmpty
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].ts.Before(bars[j].ts) })

	idx := make([]time.Time, len(bars))
	vals := make([]float64, len(bars))
	for i, b := range bars {
		idx[i] = b.ts
		vals[i] = b.close
	}
	s, err := series.New(idx, vals)
	if err != nil {
		return series.Series{}, err
	}
	if err := series.ValidatePrices(s); err != nil {
		return series.Series{}, err
	}
	return s, nil
}
