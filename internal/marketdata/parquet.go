package marketdata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/nexus-trading/nexus-backtest/internal/series"
)

// PriceRecord is the Parquet schema for a daily close.
type PriceRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Close     float64 `parquet:"close"`
}

// LoadParquet reads PriceRecord rows into a close-price series.
func LoadParquet(path string) (series.Series, error) {
	rows, err := parquet.ReadFile[PriceRecord](path)
	if err != nil {
		return series.Series{}, fmt.Errorf("read parquet %s: %w", path, err)
	}
	bars := make([]bar, len(rows))
	for i, r := range rows {
		bars[i] = bar{ts: time.UnixMilli(r.Timestamp).UTC(), close: r.Close}
	}
	return fromBars(bars)
}

// WriteParquet writes prices as PriceRecord rows. Index is required.
func WriteParquet(path string, prices series.Series) error {
	if prices.Index == nil || len(prices.Index) != prices.Len() {
		return fmt.Errorf("write parquet: %w", series.ErrLengthMismatch)
	}
	records := make([]PriceRecord, prices.Len())
	for i, v := range prices.Values {
		records[i] = PriceRecord{Timestamp: prices.Index[i].UnixMilli(), Close: v}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

// LoadFile picks the reader from the file extension.
func LoadFile(path string, opts CSVOptions) (series.Series, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, opts)
	case ".parquet":
		return LoadParquet(path)
	default:
		return series.Series{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
