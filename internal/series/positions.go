package series

import "time"

// Position is a single-asset exposure: short, flat or long.
type Position int8

const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

func (p Position) String() string {
	switch p {
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return "flat"
	}
}

// Positions is a position signal series, one entry per price observation.
type Positions struct {
	Index  []time.Time
	Values []Position
}

// NewPositions returns a flat Positions series of length n on the given index.
func NewPositions(index []time.Time, n int) Positions {
	return Positions{Index: index, Values: make([]Position, n)}
}

// Len returns the number of entries.
func (p Positions) Len() int { return len(p.Values) }

// Floats returns the positions as float64 multipliers.
func (p Positions) Floats() []float64 {
	out := make([]float64, len(p.Values))
	for i, v := range p.Values {
		out[i] = float64(v)
	}
	return out
}

// AlignedWith reports whether p lines up with s.
func (p Positions) AlignedWith(s Series) bool {
	return indexesAligned(p.Index, len(p.Values), s.Index, len(s.Values))
}
