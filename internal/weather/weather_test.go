package weather

import (
	"testing"

	"github.com/talgya/courier-city/internal/entropy"
)

func testSeed() Seed {
	return Seed{
		City:             "Testville",
		Initial:          Clear,
		InitialIntensity: 1.0,
		Transitions: map[Condition]map[Condition]float64{
			Clear: {Clear: 0.5, Rain: 0.5},
			Rain:  {Clear: 0.5, Rain: 0.5},
		},
	}
}

func TestNewValidation(t *testing.T) {
	rng := entropy.NewSource(1)

	bad := testSeed()
	bad.Transitions = nil
	if _, err := New(bad, rng); err == nil {
		t.Fatal("expected error for empty transition matrix")
	}

	bad = testSeed()
	bad.Initial = Storm
	if _, err := New(bad, rng); err == nil {
		t.Fatal("expected error for initial condition without a row")
	}

	bad = testSeed()
	bad.Transitions[Clear] = map[Condition]float64{Rain: 0}
	if _, err := New(bad, rng); err == nil {
		t.Fatal("expected error for zero-probability row")
	}

	bad = testSeed()
	bad.Bursts = []Burst{{Condition: Rain, StartS: 10, DurationS: 0, Intensity: 0.5}}
	if _, err := New(bad, rng); err == nil {
		t.Fatal("expected error for zero-duration burst")
	}

	if _, err := New(testSeed(), rng); err != nil {
		t.Fatalf("valid seed rejected: %v", err)
	}
}

func TestSpeedMultiplierAtFullIntensity(t *testing.T) {
	m, err := New(testSeed(), entropy.NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	// Clear at intensity 1.0 is exactly the base multiplier.
	if got := m.SpeedMultiplier(); got != 1.0 {
		t.Errorf("clear multiplier = %v, want 1.0", got)
	}

	m.Restore(State{Condition: Rain, Intensity: 1.0})
	if got := m.SpeedMultiplier(); got != 0.85 {
		t.Errorf("rain multiplier = %v, want 0.85", got)
	}

	// Zero intensity softens any condition back to 1.0.
	m.Restore(State{Condition: Storm, Intensity: 0.0})
	if got := m.SpeedMultiplier(); got != 1.0 {
		t.Errorf("storm at zero intensity = %v, want 1.0", got)
	}
}

func TestTransitionCadence(t *testing.T) {
	m, err := New(testSeed(), entropy.NewSource(3))
	if err != nil {
		t.Fatal(err)
	}

	// Just below the burst period: no transition yet.
	m.Advance(DefaultBurstPeriodS - 1)
	if n := m.Snapshot().Transitions; n != 0 {
		t.Fatalf("transitions before period = %d, want 0", n)
	}

	// Crossing the period fires exactly one step.
	m.Advance(2)
	if n := m.Snapshot().Transitions; n != 1 {
		t.Fatalf("transitions after period = %d, want 1", n)
	}
}

func TestBurstPinsIntensity(t *testing.T) {
	seed := testSeed()
	// Force rain every step so the burst condition always matches.
	seed.Transitions = map[Condition]map[Condition]float64{
		Clear: {Rain: 1},
		Rain:  {Rain: 1},
	}
	seed.Bursts = []Burst{{Condition: Rain, StartS: 0, DurationS: 500, Intensity: 0.77}}

	m, err := New(seed, entropy.NewSource(5))
	if err != nil {
		t.Fatal(err)
	}
	m.Advance(DefaultBurstPeriodS + 1)

	s := m.Snapshot()
	if s.Condition != Rain {
		t.Fatalf("condition = %s, want rain", s.Condition)
	}
	if s.Intensity != 0.77 {
		t.Fatalf("intensity = %v, want pinned 0.77", s.Intensity)
	}
}

func TestBurstEndTriggersTransition(t *testing.T) {
	seed := testSeed()
	seed.Transitions = map[Condition]map[Condition]float64{
		Clear: {Rain: 1},
		Rain:  {Rain: 1},
	}
	// Burst ends well before the next scheduled period.
	seed.Bursts = []Burst{{Condition: Rain, StartS: 0, DurationS: 60, Intensity: 0.5}}

	m, err := New(seed, entropy.NewSource(5))
	if err != nil {
		t.Fatal(err)
	}
	m.Advance(DefaultBurstPeriodS + 1) // first step, burst active
	if n := m.Snapshot().Transitions; n != 1 {
		t.Fatalf("transitions = %d, want 1", n)
	}

	// The burst expires at 60s elapsed; the next Advance past it must
	// fire another step even though the period timer has barely moved.
	m.Advance(5)
	if n := m.Snapshot().Transitions; n != 2 {
		t.Fatalf("transitions after burst end = %d, want 2", n)
	}
}

func TestStaminaPenalties(t *testing.T) {
	cases := []struct {
		cond Condition
		want float64
	}{
		{Clear, 0},
		{Clouds, 0},
		{Rain, 0.1},
		{RainLight, 0.1},
		{Wind, 0.1},
		{Cold, 0.1},
		{Heat, 0.2},
		{Storm, 0.3},
	}
	for _, c := range cases {
		if got := StaminaPenaltyFor(c.cond); got != c.want {
			t.Errorf("penalty(%s) = %v, want %v", c.cond, got, c.want)
		}
	}
}

func TestTimeToNextChange(t *testing.T) {
	m, err := New(testSeed(), entropy.NewSource(9))
	if err != nil {
		t.Fatal(err)
	}
	m.Advance(10)
	got := m.TimeToNextChange()
	want := DefaultBurstPeriodS - 10
	if got < want-0.001 || got > want+0.001 {
		t.Errorf("TimeToNextChange = %v, want %v", got, want)
	}
}
