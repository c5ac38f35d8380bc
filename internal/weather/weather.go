// Package weather implements the city weather as a discrete-time Markov
// chain overlaid with a schedule of fixed-intensity burst events.
// Couriers read a speed multiplier and a stamina penalty from the
// current condition; only the model's own transition step mutates state.
package weather

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/talgya/courier-city/internal/entropy"
)

// Condition names a weather state the chain can occupy.
type Condition string

const (
	Clear     Condition = "clear"
	Clouds    Condition = "clouds"
	RainLight Condition = "rain_light"
	Rain      Condition = "rain"
	Storm     Condition = "storm"
	Fog       Condition = "fog"
	Wind      Condition = "wind"
	Heat      Condition = "heat"
	Cold      Condition = "cold"
)

// speedMultipliers maps each condition to its bicycle speed factor.
var speedMultipliers = map[Condition]float64{
	Clear:     1.00,
	Clouds:    0.98,
	RainLight: 0.90,
	Rain:      0.85,
	Storm:     0.75,
	Fog:       0.88,
	Wind:      0.92,
	Heat:      0.90,
	Cold:      0.92,
}

// staminaPenalties is the extra stamina drained per tile moved under a
// condition. Conditions not listed cost nothing.
var staminaPenalties = map[Condition]float64{
	Rain:      0.1,
	RainLight: 0.1,
	Wind:      0.1,
	Storm:     0.3,
	Heat:      0.2,
	Cold:      0.1,
}

// Burst pins a condition's intensity for a scheduled window.
type Burst struct {
	Condition Condition `json:"condition" yaml:"condition"`
	StartS    float64   `json:"start_s" yaml:"start_s"`
	DurationS float64   `json:"duration_s" yaml:"duration_s"`
	Intensity float64   `json:"intensity" yaml:"intensity"`
}

// Active reports whether the burst covers the given elapsed time.
func (b Burst) Active(elapsed float64) bool {
	return elapsed >= b.StartS && elapsed < b.StartS+b.DurationS
}

// Seed is the immutable input loaded once at game start.
type Seed struct {
	City             string
	Initial          Condition
	InitialIntensity float64
	Transitions      map[Condition]map[Condition]float64
	Bursts           []Burst
}

// Timing constants for the transition cadence.
const (
	DefaultBurstPeriodS      = 55.0 // seconds between Markov transitions
	DefaultTransitionWindowS = 3.0  // reserved window for smooth interpolation
)

// Model is the live weather state. One instance is shared by all agents;
// readers may observe a value one transition stale, which is acceptable.
type Model struct {
	mu sync.RWMutex

	city        string
	transitions map[Condition]map[Condition]float64
	bursts      []Burst
	rng         *entropy.Source

	condition Condition
	intensity float64

	prevCondition   Condition
	transitionAge   float64 // seconds since the last transition
	periodTimer     float64 // counts up to burstPeriod
	elapsed         float64 // simulation clock mirror
	activeBurstEnd  float64 // end time of the burst active at last step, 0 if none
	burstPeriodS    float64
	transitionWinS  float64
	transitionCount int
}

// New validates the seed and returns a Model positioned at its initial
// condition. An empty transition table or an initial condition with no
// outgoing row is invalid input, fatal for the whole simulation.
func New(seed Seed, rng *entropy.Source) (*Model, error) {
	if len(seed.Transitions) == 0 {
		return nil, fmt.Errorf("weather seed for %q: empty transition matrix", seed.City)
	}
	if seed.Initial == "" {
		return nil, fmt.Errorf("weather seed for %q: missing initial condition", seed.City)
	}
	if _, ok := seed.Transitions[seed.Initial]; !ok {
		return nil, fmt.Errorf("weather seed for %q: initial condition %q has no transition row", seed.City, seed.Initial)
	}
	for from, row := range seed.Transitions {
		total := 0.0
		for _, p := range row {
			if p < 0 {
				return nil, fmt.Errorf("weather seed for %q: negative probability in row %q", seed.City, from)
			}
			total += p
		}
		if total <= 0 {
			return nil, fmt.Errorf("weather seed for %q: row %q has zero total probability", seed.City, from)
		}
	}
	for _, b := range seed.Bursts {
		if b.DurationS <= 0 {
			return nil, fmt.Errorf("weather seed for %q: burst at %.0fs has non-positive duration", seed.City, b.StartS)
		}
	}

	intensity := seed.InitialIntensity
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}

	return &Model{
		city:           seed.City,
		transitions:    seed.Transitions,
		bursts:         seed.Bursts,
		rng:            rng,
		condition:      seed.Initial,
		prevCondition:  seed.Initial,
		intensity:      intensity,
		transitionAge:  DefaultTransitionWindowS, // no interpolation at start
		burstPeriodS:   DefaultBurstPeriodS,
		transitionWinS: DefaultTransitionWindowS,
	},
		nil
}

// Advance moves the model's clock forward by dt seconds and fires a
// Markov transition when the burst-period timer elapses or the burst
// that was active at the previous step has ended.
func (m *Model) Advance(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.elapsed += dt
	m.periodTimer += dt
	m.transitionAge += dt

	burstEnded := m.activeBurstEnd > 0 && m.elapsed >= m.activeBurstEnd
	if m.periodTimer >= m.burstPeriodS || burstEnded {
		m.step()
		m.periodTimer = 0
	}
}

// step samples the next condition and intensity. Caller holds the lock.
func (m *Model) step() {
	row, ok := m.transitions[m.condition]
	if !ok || len(row) == 0 {
		return
	}

	conditions := make([]Condition, 0, len(row))
	weights := make([]float64, 0, len(row))
	for c, p := range row {
		conditions = append(conditions, c)
		weights = append(weights, p)
	}
	// Map iteration order is random; sort for a stable weight layout so
	// a given seed walks the same chain within one process run.
	sortConditions(conditions, weights)

	idx := m.rng.Weighted(weights)
	if idx < 0 {
		return
	}

	m.prevCondition = m.condition
	m.condition = conditions[idx]
	m.transitionAge = 0
	m.transitionCount++

	if b, ok := m.activeBurstFor(m.condition); ok {
		m.intensity = clamp01(b.Intensity)
		m.activeBurstEnd = b.StartS + b.DurationS
	} else {
		m.intensity = m.rng.Float()
		m.activeBurstEnd = 0
	}

	slog.Debug("weather transition",
		"city", m.city,
		"from", m.prevCondition,
		"to", m.condition,
		"intensity", fmt.Sprintf("%.2f", m.intensity),
	)
}

func (m *Model) activeBurstFor(c Condition) (Burst, bool) {
	for _, b := range m.bursts {
		if b.Condition == c && b.Active(m.elapsed) {
			return b, true
		}
	}
	return Burst{}, false
}

// Condition returns the current condition.
func (m *Model) Condition() Condition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.condition
}

// Intensity returns the current intensity in [0,1].
func (m *Model) Intensity() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.intensity
}

// SpeedMultiplier returns the effective speed factor for the current
// condition, intensity-adjusted, interpolating from the previous
// condition while inside the transition window. Callers look this up at
// every speed computation; nothing caches it across ticks.
func (m *Model) SpeedMultiplier() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	base := baseMultiplier(m.condition)
	if m.transitionAge < m.transitionWinS {
		from := baseMultiplier(m.prevCondition)
		progress := m.transitionAge / m.transitionWinS
		base = from + (base-from)*progress
	}
	// Higher intensity pushes the multiplier toward its full penalty;
	// low intensity softens it back toward 1.0.
	return base + (1-base)*(1-m.intensity)
}

// StaminaPenaltyPerTile returns the per-tile stamina cost of the
// current condition (0 for benign weather).
func (m *Model) StaminaPenaltyPerTile() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return staminaPenalties[m.condition]
}

// TimeToNextChange returns seconds until the next scheduled transition,
// for HUD display. An active burst ending sooner shortens the estimate.
func (m *Model) TimeToNextChange() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	next := m.burstPeriodS - m.periodTimer
	if next < 0 {
		next = 0
	}
	if m.activeBurstEnd > 0 {
		if untilBurstEnd := m.activeBurstEnd - m.elapsed; untilBurstEnd >= 0 && untilBurstEnd < next {
			next = untilBurstEnd
		}
	}
	return next
}

// State is an exported snapshot of the mutable model fields.
type State struct {
	Condition   Condition `json:"condition"`
	Intensity   float64   `json:"intensity"`
	PeriodTimer float64   `json:"period_timer"`
	Elapsed     float64   `json:"elapsed"`
	Transitions int       `json:"transitions"`
}

// Snapshot exports the mutable state for save/load.
func (m *Model) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		Condition:   m.condition,
		Intensity:   m.intensity,
		PeriodTimer: m.periodTimer,
		Elapsed:     m.elapsed,
		Transitions: m.transitionCount,
	}
}

// Restore reinstates a previously exported state.
func (m *Model) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transitions[s.Condition]; ok {
		m.condition = s.Condition
		m.prevCondition = s.Condition
	}
	m.intensity = clamp01(s.Intensity)
	m.periodTimer = s.PeriodTimer
	m.elapsed = s.Elapsed
	m.transitionCount = s.Transitions
	m.transitionAge = m.transitionWinS
	m.activeBurstEnd = 0
}

// SpeedMultiplierFor returns the intensity-free base multiplier for a
// condition, for decision heuristics that reason about hypotheticals.
func SpeedMultiplierFor(c Condition) float64 {
	return baseMultiplier(c)
}

// StaminaPenaltyFor returns the per-tile stamina cost of a condition.
func StaminaPenaltyFor(c Condition) float64 {
	return staminaPenalties[c]
}

func baseMultiplier(c Condition) float64 {
	if mlt, ok := speedMultipliers[c]; ok {
		return mlt
	}
	return 1.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sortConditions orders the parallel slices by condition name.
func sortConditions(conditions []Condition, weights []float64) {
	sort.Sort(&conditionOrder{conditions, weights})
}

type conditionOrder struct {
	conditions []Condition
	weights    []float64
}

func (s *conditionOrder) Len() int           { return len(s.conditions) }
func (s *conditionOrder) Less(i, j int) bool { return s.conditions[i] < s.conditions[j] }
func (s *conditionOrder) Swap(i, j int) {
	s.conditions[i], s.conditions[j] = s.conditions[j], s.conditions[i]
	s.weights[i], s.weights[j] = s.weights[j], s.weights[i]
}
