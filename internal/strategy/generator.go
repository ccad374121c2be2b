// Package strategy holds the signal generators: deterministic rules that turn
// a price series into a position series.
//
// Rules:
// - A generator is pure: same prices -> same positions, no state kept between calls
// - Only past and current bars contribute to a given position
// - Bars without a defined indicator value resolve to Flat
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nexus-trading/nexus-backtest/internal/series"
)

// Epsilon guards the RSI relative-strength division.
const Epsilon = 1e-8

// Generator is the interface every signal rule implements.
type Generator interface {
	// Name returns the unique identifier for this generator instance.
	Name() string

	// Generate maps a price series to a position series on the same index.
	Generate(prices series.Series) (series.Positions, error)
}

// flatPositions validates prices and returns a Flat series on their index.
func flatPositions(prices series.Series) (series.Positions, error) {
	if err := series.ValidatePrices(prices); err != nil {
		return series.Positions{}, err
	}
	return series.NewPositions(prices.Index, prices.Len()), nil
}

// Registry holds a named collection of generators. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

// Register adds a generator keyed by its Name(). Names must be unique.
func (r *Registry) Register(g Generator) error {
	if g.Name() == "" {
		return fmt.Errorf("generator must have a non-empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.generators[g.Name()]; exists {
		return fmt.Errorf("generator %q already registered", g.Name())
	}
	r.generators[g.Name()] = g
	return nil
}

// Get retrieves a generator by name.
func (r *Registry) Get(name string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[name]
	return g, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generators returns the registered generators sorted by name.
func (r *Registry) Generators() []Generator {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Generator, 0, len(names))
	for _, name := range names {
		out = append(out, r.generators[name])
	}
	return out
}
