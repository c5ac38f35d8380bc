// Package courier models a delivery agent: movement over the city
// grid, the stamina machine, reputation scoring, and carried cargo.
package courier

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/talgya/courier-city/internal/city"
	"github.com/talgya/courier-city/internal/orders"
	"github.com/talgya/courier-city/internal/weather"
)

// Resistance is the stamina-derived movement state.
type Resistance string

const (
	ResistanceNormal    Resistance = "normal"
	ResistanceTired     Resistance = "tired"
	ResistanceExhausted Resistance = "exhausted"
)

var resistanceMultipliers = map[Resistance]float64{
	ResistanceNormal:    1.0,
	ResistanceTired:     0.8,
	ResistanceExhausted: 0.0,
}

// Direction is the facing used by the presentation layer's sprites.
type Direction string

const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

const (
	BaseSpeed         = 3.0
	StaminaMax        = 100.0
	RecoveryThreshold = 30.0
	RecoveryRate      = 5.0 // stamina per full idle interval
	RecoveryInterval  = 1.0 // seconds
	MaxMoveDistance   = 5
)

var (
	ErrAlreadyMoving = errors.New("movement already in progress")
	ErrRecovering    = errors.New("in recovery mode, stamina below threshold")
	ErrNoSpeed       = errors.New("speed is zero, cannot move")
	ErrBlocked       = errors.New("no reachable tile in that direction")
)

// Courier is one agent. All state behind the mutex is written only by
// the agent's own loop; other goroutines read through Snapshot. Cargo
// transitions additionally run inside inv.Update so the order pool's
// lock covers every state write. Lock order is courier then inventory.
type Courier struct {
	mu sync.Mutex

	name string
	grid *city.Map
	wx   *weather.Model
	inv  *orders.Inventory
	log  *slog.Logger

	pos          city.Coord
	target       city.Coord
	facing       Direction
	moving       bool
	progress     float64
	progressRate float64 // progress per second
	lastSpeed    float64

	stamina      float64
	resistance   Resistance
	recoveryMode bool
	idle         float64

	rep   *Reputation
	cargo *Cargo
	money float64
}

func New(name string, start city.Coord, grid *city.Map, wx *weather.Model, inv *orders.Inventory, log *slog.Logger) *Courier {
	return &Courier{
		name:       name,
		grid:       grid,
		wx:         wx,
		inv:        inv,
		log:        log.With("courier", name),
		pos:        start,
		target:     start,
		facing:     DirDown,
		stamina:    StaminaMax,
		resistance: ResistanceNormal,
		rep:        NewReputation(),
		cargo:      NewCargo(),
	}
}

func (p *Courier) Name() string { return p.name }

func (p *Courier) Pos() city.Coord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *Courier) Moving() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.moving
}

func (p *Courier) Stamina() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stamina
}

func (p *Courier) Resistance() Resistance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resistance
}

func (p *Courier) RecoveryMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recoveryMode
}

func (p *Courier) Money() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.money
}

func (p *Courier) ReputationValue() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rep.Value()
}

// Speed computes the current movement speed from every multiplier. The
// weather multiplier is looked up fresh on each call, never cached.
func (p *Courier) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speedLocked()
}

func (p *Courier) speedLocked() float64 {
	weightMult := math.Max(0.8, 1.0-0.03*p.cargo.CarriedWeight())
	wxMult := 1.0
	if p.wx != nil {
		wxMult = p.wx.SpeedMultiplier()
	}
	speed := BaseSpeed *
		wxMult *
		weightMult *
		p.rep.SpeedMultiplier() *
		resistanceMultipliers[p.resistance] *
		p.grid.SurfaceWeight(p.pos.X, p.pos.Y)
	return math.Max(0, speed)
}

// moveDistance is the step function from speed to tiles per action.
// Tier boundaries from 2.0 up are upper inclusive, so a courier at
// exactly BaseSpeed covers two tiles and buff thresholds land on the
// stronger side.
func moveDistance(speed float64) int {
	switch {
	case speed < 1.0:
		return 0
	case speed < 2.0:
		return 1
	case speed <= 3.0:
		return 2
	case speed <= 4.0:
		return 3
	case speed <= 5.0:
		return 4
	default:
		d := int(speed / 3.0)
		if d > MaxMoveDistance {
			return MaxMoveDistance
		}
		return d
	}
}

// Move starts a movement one direction-step toward (dx,dy), walking as
// many tiles as the current speed allows and stopping before the first
// blocked or out-of-bounds tile.
func (p *Courier) Move(dx, dy int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.moving {
		return ErrAlreadyMoving
	}
	if p.recoveryMode {
		if p.stamina < RecoveryThreshold {
			return ErrRecovering
		}
		p.recoveryMode = false
	}
	speed := p.speedLocked()
	if speed <= 0 {
		return ErrNoSpeed
	}
	maxDist := moveDistance(speed)
	if maxDist == 0 {
		return ErrNoSpeed
	}

	sx := sign(dx)
	sy := sign(dy)
	final := p.pos
	for step := 1; step <= maxDist; step++ {
		next := city.Coord{X: p.pos.X + sx*step, Y: p.pos.Y + sy*step}
		if p.grid.Blocked(next.X, next.Y) {
			break
		}
		final = next
	}
	if final == p.pos {
		return ErrBlocked
	}

	dist := p.pos.Chebyshev(final)
	p.target = final
	p.moving = true
	p.progress = 0
	p.idle = 0
	p.lastSpeed = speed
	p.progressRate = progressRate(dist, speed)
	p.setFacing(final)
	p.applyMoveCost(dist)
	return nil
}

// MoveToward is Move with the direction derived from a destination.
func (p *Courier) MoveToward(dest city.Coord) error {
	cur := p.Pos()
	return p.Move(sign(dest.X-cur.X), sign(dest.Y-cur.Y))
}

// progressRate converts distance and speed into animation progress per
// second. Longer movements get a longer total animation, scaled down by
// speed with a floor on the divisor so slow agents stay visible.
func progressRate(dist int, speed float64) float64 {
	var base float64
	switch {
	case dist <= 1:
		base = 0.25
	case dist == 2:
		base = 0.35
	default:
		base = 0.45
	}
	actual := base / math.Max(0.5, speed/BaseSpeed)
	return 1.0 / actual
}

func (p *Courier) setFacing(final city.Coord) {
	switch {
	case final.X > p.pos.X:
		p.facing = DirRight
	case final.X < p.pos.X:
		p.facing = DirLeft
	case final.Y > p.pos.Y:
		p.facing = DirDown
	case final.Y < p.pos.Y:
		p.facing = DirUp
	}
}

// applyMoveCost charges stamina for a started move and recomputes the
// resistance state, entering recovery mode on hitting zero.
func (p *Courier) applyMoveCost(dist int) {
	d := float64(dist)
	loss := 0.5 * d
	if w := p.cargo.CarriedWeight(); w > 3 {
		loss += 0.2 * (w - 3) * d
	}
	if p.wx != nil {
		loss += p.wx.StaminaPenaltyPerTile() * d
	}
	old := p.stamina
	p.stamina = clampStamina(p.stamina - loss)
	if old > 0 && p.stamina <= 0 {
		p.recoveryMode = true
		p.log.Info("exhausted, entering recovery mode", "threshold", RecoveryThreshold)
	}
	p.updateResistanceLocked()
}

func (p *Courier) updateResistanceLocked() {
	switch {
	case p.stamina > 30:
		p.resistance = ResistanceNormal
	case p.stamina > 0:
		p.resistance = ResistanceTired
	default:
		p.resistance = ResistanceExhausted
	}
}

// Update advances the courier by dt seconds: movement progress while
// moving, idle stamina recovery otherwise. Pause freezes idle accrual
// without discarding the partial timer.
func (p *Courier) Update(dt float64, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.moving {
		p.progress += p.progressRate * dt
		if p.progress >= 1.0 {
			p.pos = p.target
			p.moving = false
			p.progress = 0
		}
		return
	}
	if paused {
		return
	}
	p.idle += dt
	if p.idle < RecoveryInterval {
		return
	}
	cycles := math.Floor(p.idle / RecoveryInterval)
	p.idle = math.Mod(p.idle, RecoveryInterval)
	p.recoverLocked(RecoveryRate * cycles)
}

// recoverLocked raises stamina, clearing recovery mode at the threshold
// and updating the resistance state immediately rather than waiting for
// the next move attempt.
func (p *Courier) recoverLocked(amount float64) {
	p.stamina = clampStamina(p.stamina + amount)
	if p.recoveryMode && p.stamina >= RecoveryThreshold {
		p.recoveryMode = false
		p.log.Info("recovery threshold reached", "stamina", p.stamina)
	}
	p.updateResistanceLocked()
}

// Cargo operations, serialized under the courier's lock. Each one also
// takes the inventory lock via Update: order state transitions are
// visible to pool readers, so they must happen under that lock too.

func (p *Courier) AcceptOrder(o *orders.Order, elapsed float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var (
		toast string
		err   error
	)
	p.inv.Update(func() {
		toast, err = p.cargo.Accept(o, elapsed)
	})
	return toast, err
}

func (p *Courier) PickupHere(elapsed float64) (*orders.Order, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var (
		o     *orders.Order
		toast string
		err   error
	)
	p.inv.Update(func() {
		o, toast, err = p.cargo.PickupAt(p.pos, elapsed)
	})
	return o, toast, err
}

// DeliverHere completes an adjacent carried order, crediting the payout
// with the reputation multiplier read after scoring.
func (p *Courier) DeliverHere(elapsed float64) (*orders.Order, float64, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var (
		o      *orders.Order
		payout float64
		toast  string
		err    error
	)
	p.inv.Update(func() {
		o, payout, toast, err = p.cargo.DeliverAt(p.pos, elapsed, p.rep)
	})
	if err == nil {
		p.money += payout
	}
	return o, payout, toast, err
}

func (p *Courier) CancelActive(elapsed float64) (*orders.Order, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var (
		o     *orders.Order
		toast string
		err   error
	)
	p.inv.Update(func() {
		o, toast, err = p.cargo.Cancel(elapsed, p.rep)
	})
	return o, toast, err
}

// SweepCargo expires active orders past the hard-expiry grace, scoring
// each as lost at most once.
func (p *Courier) SweepCargo(elapsed float64) []*orders.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	var lost []*orders.Order
	p.inv.Update(func() {
		lost = p.cargo.ExpireSweep(elapsed, p.rep)
	})
	for _, o := range lost {
		p.log.Warn("package lost", "order", o.ID, "overtime", o.Overtime(elapsed))
	}
	return lost
}

func (p *Courier) ActiveOrders() []*orders.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cargo.Active()
}

func (p *Courier) ActiveOrder() *orders.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cargo.ActiveOrder()
}

func (p *Courier) CycleActiveNext() *orders.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cargo.CycleNext()
}

func (p *Courier) CycleActivePrev() *orders.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cargo.CyclePrev()
}

func (p *Courier) CarriedWeight() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cargo.CarriedWeight()
}

// GameOverByReputation is polled by the session after every outcome.
func (p *Courier) GameOverByReputation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rep.GameOver()
}

func (p *Courier) ResetDailyReputation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rep.ResetDaily()
}

// Snapshot is the read-only view handed to the API and persistence.
type Snapshot struct {
	Name         string          `json:"name"`
	Pos          city.Coord      `json:"pos"`
	Target       city.Coord      `json:"target"`
	Facing       Direction       `json:"facing"`
	Moving       bool            `json:"moving"`
	Progress     float64         `json:"progress"`
	ProgressRate float64         `json:"progress_rate"`
	Stamina      float64         `json:"stamina"`
	Resistance   Resistance      `json:"resistance"`
	RecoveryMode bool            `json:"recovery_mode"`
	IdleS        float64         `json:"idle_s"`
	Money        float64         `json:"money"`
	Reputation   ReputationState `json:"reputation"`
	ActiveOrders []string        `json:"active_orders"`
	ActiveCursor int             `json:"active_cursor"`
	Carried      float64         `json:"carried"`
}

func (p *Courier) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Name:         p.name,
		Pos:          p.pos,
		Target:       p.target,
		Facing:       p.facing,
		Moving:       p.moving,
		Progress:     p.progress,
		ProgressRate: p.progressRate,
		Stamina:      p.stamina,
		Resistance:   p.resistance,
		RecoveryMode: p.recoveryMode,
		IdleS:        p.idle,
		Money:        p.money,
		Reputation:   p.rep.State(),
		ActiveOrders: p.cargo.ActiveIDs(),
		ActiveCursor: p.cargo.cursor,
		Carried:      p.cargo.CarriedWeight(),
	}
}

// Restore rebuilds courier state from a snapshot, resolving active
// order ids against the courier's inventory.
func (p *Courier) Restore(s Snapshot) {
	index := make(map[string]*orders.Order)
	for _, o := range p.inv.All() {
		index[o.ID] = o
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = s.Pos
	p.target = s.Target
	p.facing = s.Facing
	p.moving = s.Moving
	p.progress = s.Progress
	p.progressRate = s.ProgressRate
	p.stamina = clampStamina(s.Stamina)
	p.recoveryMode = s.RecoveryMode
	p.idle = s.IdleS
	p.money = s.Money
	p.rep.RestoreState(s.Reputation)
	p.inv.Update(func() {
		p.cargo.RestoreActive(index, s.ActiveOrders, s.ActiveCursor)
	})
	p.updateResistanceLocked()
}

func clampStamina(v float64) float64 {
	return math.Max(0, math.Min(StaminaMax, v))
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
