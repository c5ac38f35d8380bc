// Package entropy provides seeded randomness sources for the stochastic
// subsystems. Each consumer (weather model, every bot) owns its own
// Source so goroutines never contend on a shared generator.
package entropy

import (
	"math/rand"
	"sync"
)

// Source is a seeded pseudo-random generator. A mutex guards the
// underlying generator because math/rand.Rand is not concurrency-safe
// and sources are occasionally inspected from outside their owner.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a Source from a seed. The same seed reproduces the
// same draw sequence within one process; no cross-platform determinism
// is promised.
func NewSource(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Float returns a random float64 in [0, 1).
func (s *Source) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Intn returns a random int in [0, n). n must be > 0.
func (s *Source) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Shuffle randomizes the order of n elements using swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(n, swap)
}

// Weighted picks an index from weights proportionally to their values.
// Returns -1 when the weights sum to zero or the slice is empty.
func (s *Source) Weighted(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}

	roll := s.Float() * total
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if roll < acc {
			return i
		}
	}
	// Floating-point slack lands on the last positive weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}
