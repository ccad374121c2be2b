// Package series holds the time-indexed sequences shared by signal
// generation and performance evaluation.
package series

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmpty is returned when a statistic is requested over a zero-length series.
	ErrEmpty = errors.New("empty series")
	// ErrMisaligned is returned when two series do not share the same index.
	ErrMisaligned = errors.New("series are not aligned")
	// ErrLengthMismatch is returned when index and values differ in length.
	ErrLengthMismatch = errors.New("index and values differ in length")
	// ErrUnordered is returned when the index is not strictly increasing.
	ErrUnordered = errors.New("index is not strictly increasing")
	// ErrNonPositivePrice is returned when a price series holds a value <= 0.
	ErrNonPositivePrice = errors.New("price must be positive")
)

// Series is an ordered sequence of values. Index is optional; a nil Index
// means the series is indexed by position only.
type Series struct {
	Index  []time.Time
	Values []float64
}

// New builds a Series, checking that index and values line up and that the
// index is strictly increasing.
func New(index []time.Time, values []float64) (Series, error) {
	if index != nil && len(index) != len(values) {
		return Series{}, fmt.Errorf("%w: index=%d values=%d", ErrLengthMismatch, len(index), len(values))
	}
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return Series{}, fmt.Errorf("%w: at %d (%s)", ErrUnordered, i, index[i].Format(time.RFC3339))
		}
	}
	return Series{Index: index, Values: values}, nil
}

// FromValues returns a positionally indexed Series.
func FromValues(values ...float64) Series {
	return Series{Values: values}
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Values) }

// Last returns the final value.
func (s Series) Last() (float64, error) {
	if len(s.Values) == 0 {
		return 0, ErrEmpty
	}
	return s.Values[len(s.Values)-1], nil
}

// WithValues returns a new Series sharing the index of s.
func (s Series) WithValues(values []float64) Series {
	return Series{Index: s.Index, Values: values}
}

// ValidatePrices checks the price invariant: every value finite and strictly positive.
func ValidatePrices(s Series) error {
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: index %d value %v", ErrNonPositivePrice, i, v)
		}
	}
	return nil
}

// Aligned reports whether a and b have the same length and, when both carry
// an index, the same timestamps in the same order.
func Aligned(a, b Series) bool {
	return indexesAligned(a.Index, len(a.Values), b.Index, len(b.Values))
}

// CheckAligned is Aligned as an error.
func CheckAligned(a, b Series) error {
	if !Aligned(a, b) {
		return fmt.Errorf("%w: len %d vs %d", ErrMisaligned, a.Len(), b.Len())
	}
	return nil
}

func indexesAligned(ai []time.Time, an int, bi []time.Time, bn int) bool {
	if an != bn {
		return false
	}
	if ai == nil || bi == nil {
		return true
	}
	for i := range ai {
		if !ai[i].Equal(bi[i]) {
			return false
		}
	}
	return true
}
