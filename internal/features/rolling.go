package features

import "math"

// rollingWindow is a fixed-capacity circular buffer of the most recent values.
type rollingWindow struct {
	values []float64
	head   int // next write position
	count  int // valid entries (up to capacity)
}

func newRollingWindow(capacity int) *rollingWindow {
	return &rollingWindow{values: make([]float64, capacity)}
}

func (w *rollingWindow) push(v float64) {
	w.values[w.head] = v
	w.head = (w.head + 1) % len(w.values)
	if w.count < len(w.values) {
		w.count++
	}
}

func (w *rollingWindow) full() bool { return w.count == len(w.values) }

// mean sums the buffer in chronological order. Summing afresh on every bar
// keeps identical windows bit-identical, which exact-tie checks rely on.
func (w *rollingWindow) mean() float64 {
	n := len(w.values)
	start := (w.head - w.count + n) % n
	sum := 0.0
	for i := 0; i < w.count; i++ {
		sum += w.values[(start+i)%n]
	}
	return sum / float64(w.count)
}

// RollingMean returns the trailing simple moving average over window bars.
// Entries before the window fills are NaN. A window < 1 yields all NaN.
//
// A NaN input poisons every window that contains it, the same as a
// min_periods=window rolling mean.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 1 {
		fillNaN(out)
		return out
	}

	w := newRollingWindow(window)
	for i, v := range values {
		w.push(v)
		if !w.full() {
			out[i] = math.NaN()
			continue
		}
		out[i] = w.mean()
	}
	return out
}

// Diff returns period-over-period differences. Index 0 is NaN.
func Diff(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i] - values[i-1]
	}
	return out
}

// Gains keeps the positive differences and zeroes everything else,
// including NaN.
func Gains(diffs []float64) []float64 {
	out := make([]float64, len(diffs))
	for i, d := range diffs {
		if d > 0 {
			out[i] = d
		}
	}
	return out
}

// Losses returns the magnitude of the negative differences, zero elsewhere.
func Losses(diffs []float64) []float64 {
	out := make([]float64, len(diffs))
	for i, d := range diffs {
		if d < 0 {
			out[i] = -d
		}
	}
	return out
}

func fillNaN(xs []float64) {
	for i := range xs {
		xs[i] = math.NaN()
	}
}
