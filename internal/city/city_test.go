package city

import "testing"

func testLegend() map[rune]TileInfo {
	return map[rune]TileInfo{
		'C': {Name: "road", Blocked: false, SurfaceWeight: 1.0},
		'P': {Name: "park", Blocked: false, SurfaceWeight: 0.5},
		'B': {Name: "building", Blocked: true},
	}
}

func TestNewValidation(t *testing.T) {
	legend := testLegend()

	if _, err := New("empty", nil, legend, 0); err == nil {
		t.Fatal("expected error for empty rows")
	}
	if _, err := New("ragged", []string{"CC", "C"}, legend, 0); err == nil {
		t.Fatal("expected error for ragged rows")
	}
	if _, err := New("unknown", []string{"CX"}, legend, 0); err == nil {
		t.Fatal("expected error for tile missing from legend")
	}
	if _, err := New("nolegend", []string{"CC"}, nil, 0); err == nil {
		t.Fatal("expected error for empty legend")
	}

	m, err := New("ok", []string{"CCB", "PPC"}, legend, 3000)
	if err != nil {
		t.Fatalf("valid map rejected: %v", err)
	}
	if m.Width != 3 || m.Height != 2 {
		t.Fatalf("unexpected dimensions %dx%d", m.Width, m.Height)
	}
}

func TestBlockedAndBounds(t *testing.T) {
	m, err := New("grid", []string{"CCB", "PPC"}, testLegend(), 0)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		x, y    int
		blocked bool
	}{
		{0, 0, false},
		{2, 0, true},  // building
		{-1, 0, true}, // out of bounds
		{0, 2, true},
		{3, 1, true},
		{2, 1, false},
	}
	for _, c := range cases {
		if got := m.Blocked(c.x, c.y); got != c.blocked {
			t.Errorf("Blocked(%d,%d) = %v, want %v", c.x, c.y, got, c.blocked)
		}
	}
}

func TestSurfaceWeight(t *testing.T) {
	m, err := New("grid", []string{"CPB"}, testLegend(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if w := m.SurfaceWeight(0, 0); w != 1.0 {
		t.Errorf("road weight = %v, want 1.0", w)
	}
	if w := m.SurfaceWeight(1, 0); w != 0.5 {
		t.Errorf("park weight = %v, want 0.5", w)
	}
	if w := m.SurfaceWeight(2, 0); w != 0 {
		t.Errorf("building weight = %v, want 0", w)
	}
	if w := m.SurfaceWeight(9, 9); w != 0 {
		t.Errorf("out-of-bounds weight = %v, want 0", w)
	}
}

func TestDistances(t *testing.T) {
	a := Coord{X: 1, Y: 1}
	b := Coord{X: 4, Y: 3}
	if d := a.Chebyshev(b); d != 3 {
		t.Errorf("Chebyshev = %d, want 3", d)
	}
	if d := a.Manhattan(b); d != 5 {
		t.Errorf("Manhattan = %d, want 5", d)
	}
}

func TestWalkable(t *testing.T) {
	m, err := New("grid", []string{"CB", "BP"}, testLegend(), 0)
	if err != nil {
		t.Fatal(err)
	}
	w := m.Walkable()
	if len(w) != 2 {
		t.Fatalf("walkable count = %d, want 2", len(w))
	}
	if w[0] != (Coord{0, 0}) || w[1] != (Coord{1, 1}) {
		t.Fatalf("unexpected walkable set %+v", w)
	}

	c, ok := m.NearestWalkable(1, 0)
	if !ok {
		t.Fatal("expected a walkable tile")
	}
	if c != (Coord{0, 0}) && c != (Coord{1, 1}) {
		t.Fatalf("unexpected nearest walkable %+v", c)
	}
}
