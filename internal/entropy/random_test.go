package entropy

import "testing"

func TestWeighted(t *testing.T) {
	s := NewSource(7)

	if got := s.Weighted(nil); got != -1 {
		t.Errorf("empty weights = %d, want -1", got)
	}
	if got := s.Weighted([]float64{0, 0}); got != -1 {
		t.Errorf("zero weights = %d, want -1", got)
	}
	if got := s.Weighted([]float64{0, 1, 0}); got != 1 {
		t.Errorf("single positive weight = %d, want 1", got)
	}

	// A heavily skewed distribution should land on the heavy side most
	// of the time.
	counts := [2]int{}
	for i := 0; i < 1000; i++ {
		idx := s.Weighted([]float64{0.95, 0.05})
		counts[idx]++
	}
	if counts[0] < 800 {
		t.Errorf("heavy weight picked only %d/1000 times", counts[0])
	}
	if counts[1] == 0 {
		t.Error("light weight never picked across 1000 draws")
	}
}

func TestSeedReproducibility(t *testing.T) {
	a := NewSource(42)
	b := NewSource(42)
	for i := 0; i < 10; i++ {
		if a.Float() != b.Float() {
			t.Fatal("same seed diverged")
		}
	}
}
