// Package chart renders cumulative-return curves as PNG line charts.
package chart

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/vicanso/go-charts/v2"

	"github.com/nexus-trading/nexus-backtest/internal/backtest"
)

const (
	DefaultTitle  = "Cumulative Returns"
	defaultWidth  = 1000
	defaultHeight = 600
	maxAxisLabels = 10
)

var (
	// ErrNoResults is returned when there is nothing to draw.
	ErrNoResults = errors.New("no results to plot")
	// ErrNonFinite is returned for NaN or infinite curve points.
	ErrNonFinite = errors.New("non-finite cumulative return")
)

// RenderCumulativeReturns draws one line per strategy, legend sorted by name.
// All curves must have the same length; the x-axis comes from the first.
func RenderCumulativeReturns(results map[string]backtest.Result, title string) ([]byte, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	if title == "" {
		title = DefaultTitle
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	first := results[names[0]].Cumulative
	if first.Len() == 0 {
		return nil, ErrNoResults
	}
	values := make([][]float64, len(names))
	for i, name := range names {
		c := results[name].Cumulative
		if c.Len() != first.Len() {
			return nil, fmt.Errorf("strategy %q: %d points, want %d", name, c.Len(), first.Len())
		}
		for t, v := range c.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("strategy %q: point %d is %v: %w", name, t, v, ErrNonFinite)
			}
		}
		values[i] = c.Values
	}

	split := first.Len() / maxAxisLabels
	if split < 1 {
		split = 1
	}

	painter, err := charts.LineRender(values,
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: axisLabels(results[names[0]]), BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(defaultWidth),
		charts.HeightOptionFunc(defaultHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return painter.Bytes()
}

// PlotCumulativeReturns renders the chart and writes it to savePath.
// An empty savePath renders nothing.
func PlotCumulativeReturns(results map[string]backtest.Result, title, savePath string) error {
	if savePath == "" {
		return nil
	}
	img, err := RenderCumulativeReturns(results, title)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(savePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chart dir: %w", err)
		}
	}
	if err := os.WriteFile(savePath, img, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	log.Info().Str("path", savePath).Int("strategies", len(results)).Msg("Chart saved")
	return nil
}

func axisLabels(r backtest.Result) []string {
	c := r.Cumulative
	labels := make([]string, c.Len())
	for i := range labels {
		if c.Index != nil {
			labels[i] = c.Index[i].Format("2006-01-02")
		} else {
			labels[i] = strconv.Itoa(i)
		}
	}
	return labels
}
