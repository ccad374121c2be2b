// Package report renders per-strategy metric tables.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nexus-trading/nexus-backtest/internal/backtest"
)

const (
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"

	strategyColumn = "Strategy"
	notComputed    = "n/a"
)

// ErrUnknownFormat is returned by Render for formats other than markdown/csv.
var ErrUnknownFormat = errors.New("unknown report format")

// Row is one strategy's line in a report.
type Row struct {
	Name    string
	Metrics backtest.Metrics
}

// RowsFrom converts runner output into report rows, preserving order.
func RowsFrom(scored []backtest.Scored) []Row {
	rows := make([]Row, len(scored))
	for i, s := range scored {
		rows[i] = Row{Name: s.Name, Metrics: s.Metrics}
	}
	return rows
}

// Render dispatches on format.
func Render(format string, rows []Row) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatMarkdown:
		return RenderMarkdown(rows), nil
	case FormatCSV:
		return RenderCSV(rows)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// RenderMarkdown renders a GitHub-style table, four decimals per metric.
func RenderMarkdown(rows []Row) string {
	var b strings.Builder

	header := append([]string{strategyColumn}, backtest.MetricNames...)
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")

	for _, r := range rows {
		cells := []string{r.Name}
		for _, f := range r.Metrics.Fields() {
			if !f.Computed {
				cells = append(cells, notComputed)
				continue
			}
			cells = append(cells, strconv.FormatFloat(f.Value, 'f', 4, 64))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

// RenderCSV renders full-precision values; an uncomputed metric is an empty cell.
func RenderCSV(rows []Row) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(append([]string{strategyColumn}, backtest.MetricNames...)); err != nil {
		return "", err
	}
	for _, r := range rows {
		rec := []string{r.Name}
		for _, f := range r.Metrics.Fields() {
			if !f.Computed {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(f.Value, 'f', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}
