// Package city provides the static tile grid the couriers ride on.
package city

import (
	"fmt"
	"math"
)

// Coord is a tile position on the city grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Chebyshev returns the chessboard distance between two coordinates.
// Pickup and dropoff adjacency checks use this metric.
func (c Coord) Chebyshev(o Coord) int {
	dx := c.X - o.X
	if dx < 0 {
		dx = -dx
	}
	dy := c.Y - o.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// Manhattan returns the taxicab distance between two coordinates.
func (c Coord) Manhattan(o Coord) int {
	dx := c.X - o.X
	if dx < 0 {
		dx = -dx
	}
	dy := c.Y - o.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// TileInfo describes one legend entry: whether the tile blocks movement
// and how its surface scales speed.
type TileInfo struct {
	Name          string  `json:"name"`
	Blocked       bool    `json:"blocked"`
	SurfaceWeight float64 `json:"surface_weight"`
}

// Map holds the immutable city grid plus its legend.
// It is shared read-only by every agent; nothing mutates it after load.
type Map struct {
	Name   string
	Width  int
	Height int
	Goal   float64 // income target that ends the game when reached

	tiles  [][]rune
	legend map[rune]TileInfo
}

// New builds a Map from raw tile rows and a legend, validating the grid.
// Missing or malformed map data is fatal for the simulation, so New
// returns an error rather than synthesizing a default city.
func New(name string, rows []string, legend map[rune]TileInfo, goal float64) (*Map, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("city %q: no tile rows", name)
	}
	if len(legend) == 0 {
		return nil, fmt.Errorf("city %q: empty legend", name)
	}

	width := len([]rune(rows[0]))
	tiles := make([][]rune, len(rows))
	for y, row := range rows {
		rr := []rune(row)
		if len(rr) != width {
			return nil, fmt.Errorf("city %q: row %d has width %d, want %d", name, y, len(rr), width)
		}
		for x, t := range rr {
			if _, ok := legend[t]; !ok {
				return nil, fmt.Errorf("city %q: tile %q at (%d,%d) missing from legend", name, t, x, y)
			}
		}
		tiles[y] = rr
	}

	return &Map{
		Name:   name,
		Width:  width,
		Height: len(rows),
		Goal:   goal,
		tiles:  tiles,
		legend: legend,
	}, nil
}

// Tile returns the tile type at (x,y), or 0 if out of bounds.
func (m *Map) Tile(x, y int) rune {
	if !m.InBounds(x, y) {
		return 0
	}
	return m.tiles[y][x]
}

// InBounds reports whether (x,y) lies inside the grid.
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height
}

// Blocked reports whether (x,y) cannot be entered.
// Out-of-bounds positions count as blocked.
func (m *Map) Blocked(x, y int) bool {
	if !m.InBounds(x, y) {
		return true
	}
	return m.legend[m.tiles[y][x]].Blocked
}

// SurfaceWeight returns the speed multiplier of the tile under (x,y).
// Blocked or out-of-bounds tiles contribute zero speed.
func (m *Map) SurfaceWeight(x, y int) float64 {
	if !m.InBounds(x, y) {
		return 0
	}
	info := m.legend[m.tiles[y][x]]
	if info.Blocked {
		return 0
	}
	if info.SurfaceWeight <= 0 {
		return 1.0
	}
	return info.SurfaceWeight
}

// Legend returns the legend entry for a tile type.
func (m *Map) Legend(t rune) (TileInfo, bool) {
	info, ok := m.legend[t]
	return info, ok
}

// Walkable returns every non-blocked coordinate, row-major.
func (m *Map) Walkable() []Coord {
	var out []Coord
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.Blocked(x, y) {
				out = append(out, Coord{X: x, Y: y})
			}
		}
	}
	return out
}

// NearestWalkable returns the walkable coordinate closest to (x,y) by
// Euclidean distance, for placing agents on a safe starting tile.
func (m *Map) NearestWalkable(x, y int) (Coord, bool) {
	best := Coord{}
	bestDist := math.MaxFloat64
	found := false
	for _, c := range m.Walkable() {
		dx := float64(c.X - x)
		dy := float64(c.Y - y)
		d := dx*dx + dy*dy
		if d < bestDist {
			best = c
			bestDist = d
			found = true
		}
	}
	return best, found
}

// String returns a short summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%s, %dx%d, goal=%.0f)", m.Name, m.Width, m.Height, m.Goal)
}
