package bot

import (
	"math"

	"github.com/talgya/courier-city/internal/city"
	"github.com/talgya/courier-city/internal/orders"
	"github.com/talgya/courier-city/internal/weather"
)

var cardinals = [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

// pickJob chooses an order from the eligible pool. Eligible means
// selectable and released at least ReleaseGraceS ago, leaving the human
// a head start on fresh postings.
func (b *Bot) pickJob(elapsed float64) *orders.Order {
	var eligible []*orders.Order
	for _, o := range b.inv.Selectable(elapsed) {
		if elapsed-o.ReleaseTime >= b.params.ReleaseGraceS {
			eligible = append(eligible, o)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	if b.tier == TierRandom {
		return eligible[b.rng.Intn(len(eligible))]
	}
	return b.bestScoredJob(eligible)
}

// bestScoredJob greedily maximizes the job score; the pool's existing
// priority/payout ordering breaks ties via strict improvement.
func (b *Bot) bestScoredJob(pool []*orders.Order) *orders.Order {
	pos := b.c.Pos()
	penalty := jobWeatherPenalty(b.currentCondition())
	best := math.Inf(-1)
	var pick *orders.Order
	for _, o := range pool {
		s := b.scoreJob(o, pos, penalty)
		if s > best {
			best = s
			pick = o
		}
	}
	if math.IsInf(best, -1) {
		return nil
	}
	return pick
}

// scoreJob values an order for the greedy tier; orders over the bot's
// capacity score negative infinity. Selectability was already filtered
// under the inventory lock, and Accept re-validates it on take.
func (b *Bot) scoreJob(o *orders.Order, pos city.Coord, weatherPenalty float64) float64 {
	if b.c.CarriedWeight()+o.Weight > b.capacity {
		return math.Inf(-1)
	}
	travel := float64(pos.Manhattan(o.Pickup) + o.Pickup.Manhattan(o.Dropoff))
	return b.params.Alpha*o.Payout -
		b.params.Beta*travel -
		b.params.Gamma*weatherPenalty +
		b.params.PriorityBonus*float64(o.Priority)
}

func (b *Bot) currentCondition() weather.Condition {
	if b.wx == nil {
		return weather.Clear
	}
	return b.wx.Condition()
}

// decideStep picks the next movement direction toward the target,
// routed through loop detection first.
func (b *Bot) decideStep(target city.Coord) (dx, dy int, ok bool) {
	pos := b.c.Pos()
	if b.forcedRandom > 0 {
		b.forcedRandom--
		if b.forcedRandom == 0 {
			b.history = b.history[:0]
			b.log.Debug("loop recovery complete")
		}
		return b.randomStep(pos)
	}
	if b.detectLoop() {
		b.forcedRandom = b.params.ForcedRandoms
		b.log.Debug("movement loop detected, forcing random moves", "moves", b.forcedRandom)
		b.forcedRandom--
		return b.randomStep(pos)
	}
	if b.tier == TierGreedy && b.rng.Float() < b.params.LookaheadProb {
		if dx, dy, ok = b.lookaheadStep(pos, target); ok {
			return dx, dy, true
		}
		if dx, dy, ok = b.greedyStep(pos, target); ok {
			return dx, dy, true
		}
		return b.randomStep(pos)
	}
	return b.biasedStep(pos, target)
}

// biasedStep is the random tier's movement: usually one step toward
// the target along the axis with the larger remaining distance, with
// the other axis as a fallback when that step is blocked.
func (b *Bot) biasedStep(pos, target city.Coord) (int, int, bool) {
	if b.rng.Float() >= b.params.TowardBias {
		return b.randomStep(pos)
	}
	ddx := target.X - pos.X
	ddy := target.Y - pos.Y
	first := [2]int{sign(ddx), 0}
	second := [2]int{0, sign(ddy)}
	if abs(ddy) > abs(ddx) {
		first, second = second, first
	}
	for _, d := range [2][2]int{first, second} {
		if d == [2]int{0, 0} {
			continue
		}
		if !b.grid.Blocked(pos.X+d[0], pos.Y+d[1]) {
			return d[0], d[1], true
		}
	}
	return b.randomStep(pos)
}

// randomStep picks a uniformly random valid cardinal direction.
func (b *Bot) randomStep(pos city.Coord) (int, int, bool) {
	var valid [][2]int
	for _, d := range cardinals {
		if !b.grid.Blocked(pos.X+d[0], pos.Y+d[1]) {
			valid = append(valid, d)
		}
	}
	if len(valid) == 0 {
		return 0, 0, false
	}
	d := valid[b.rng.Intn(len(valid))]
	return d[0], d[1], true
}

// greedyStep is the single-step fallback: the neighbor with the best
// position score.
func (b *Bot) greedyStep(pos, target city.Coord) (int, int, bool) {
	best := math.Inf(-1)
	var bx, by int
	found := false
	for _, d := range cardinals {
		next := city.Coord{X: pos.X + d[0], Y: pos.Y + d[1]}
		if b.grid.Blocked(next.X, next.Y) {
			continue
		}
		if s := b.scorePosition(next, target); s > best {
			best = s
			bx, by = d[0], d[1]
			found = true
		}
	}
	return bx, by, found
}

// lookaheadStep expands a breadth-first tree over the cardinal moves to
// the configured depth (branching 4, so at most 16 leaf paths at depth
// 2) and commits the first move of the path whose deepest node carries
// the best cumulative score.
func (b *Bot) lookaheadStep(pos, target city.Coord) (int, int, bool) {
	type node struct {
		pos   city.Coord
		first [2]int
		score float64
	}
	frontier := []node{}
	for _, d := range cardinals {
		next := city.Coord{X: pos.X + d[0], Y: pos.Y + d[1]}
		if b.grid.Blocked(next.X, next.Y) {
			continue
		}
		frontier = append(frontier, node{pos: next, first: d, score: b.scorePosition(next, target)})
	}
	if len(frontier) == 0 {
		return 0, 0, false
	}

	for depth := 1; depth < b.params.LookaheadDepth; depth++ {
		var next []node
		for _, n := range frontier {
			for _, d := range cardinals {
				np := city.Coord{X: n.pos.X + d[0], Y: n.pos.Y + d[1]}
				if b.grid.Blocked(np.X, np.Y) {
					continue
				}
				next = append(next, node{pos: np, first: n.first, score: n.score + b.scorePosition(np, target)})
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	// Paths compete on the cumulative score at their deepest node.
	best := frontier[0]
	for _, n := range frontier[1:] {
		if n.score > best.score {
			best = n
		}
	}
	return best.first[0], best.first[1], true
}

// scorePosition values a tile by closeness to the target plus a bonus
// for fast surfaces such as roads.
func (b *Bot) scorePosition(pos, target city.Coord) float64 {
	s := -b.params.DistanceWeight * float64(pos.Manhattan(target))
	if b.grid.SurfaceWeight(pos.X, pos.Y) > 1.0 {
		s += b.params.TerrainBonus
	}
	return s
}

// recordPosition appends to the ring of recent positions used by loop
// detection.
func (b *Bot) recordPosition(pos city.Coord) {
	b.history = append(b.history, pos)
	if len(b.history) > b.params.HistorySize {
		b.history = b.history[len(b.history)-b.params.HistorySize:]
	}
}

// detectLoop reports a stuck bot: the most recent window of positions
// visits too few distinct tiles.
func (b *Bot) detectLoop() bool {
	if len(b.history) < b.params.RecentWindow {
		return false
	}
	recent := b.history[len(b.history)-b.params.RecentWindow:]
	distinct := map[city.Coord]struct{}{}
	for _, p := range recent {
		distinct[p] = struct{}{}
	}
	return len(distinct) <= b.params.DistinctMax
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
