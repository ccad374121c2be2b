package observability

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// Format returns all metrics in Prometheus text exposition format, suitable
// for a node-exporter textfile collector.
//
//	# HELP <name> <help>
//	# TYPE <name> <type>
//	<name> <value>
func (r *Registry) Format() string {
	var b strings.Builder

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		writeHeader(&b, c.name, c.help, "counter")
		fmt.Fprintf(&b, "%s %d\n\n", c.name, c.Value())
	}

	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		writeHeader(&b, g.name, g.help, "gauge")
		fmt.Fprintf(&b, "%s %s\n\n", g.name, formatFloat(g.Value()))
	}

	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		buckets, counts, sum, count := h.BucketCounts()

		writeHeader(&b, h.name, h.help, "histogram")
		for i, bound := range buckets {
			fmt.Fprintf(&b, "%s_bucket{le=%q} %d\n", h.name, formatFloat(bound), counts[i])
		}
		fmt.Fprintf(&b, "%s_bucket{le=\"+Inf\"} %d\n", h.name, count)
		fmt.Fprintf(&b, "%s_sum %s\n", h.name, formatFloat(sum))
		fmt.Fprintf(&b, "%s_count %d\n\n", h.name, count)
	}

	return b.String()
}

// WriteTo writes the text snapshot to w.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.Format())
	return int64(n), err
}

// WriteFile writes the text snapshot to path.
func (r *Registry) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer f.Close()

	if _, err := r.WriteTo(f); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

func writeHeader(b *strings.Builder, name, help, typ string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

// formatFloat formats a float64 for exposition output.
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return fmt.Sprintf("%g", v)
}
