package bot

import (
	"log/slog"
	"time"

	"github.com/talgya/courier-city/internal/city"
	"github.com/talgya/courier-city/internal/courier"
	"github.com/talgya/courier-city/internal/entropy"
	"github.com/talgya/courier-city/internal/orders"
	"github.com/talgya/courier-city/internal/weather"
)

// Clock is the read-only view of session time a bot decision loop
// needs. The session implements it.
type Clock interface {
	Elapsed() float64
	Paused() bool
}

// pollInterval is the real-time cadence of the runner loop; all game
// timers are measured in simulated seconds read from the clock.
const pollInterval = 100 * time.Millisecond

// Bot couples a courier with a decision strategy. The runner goroutine
// is the only writer of bot state; other goroutines read through the
// courier's snapshot.
type Bot struct {
	name   string
	tier   Tier
	params Params

	c     *courier.Courier
	inv   *orders.Inventory
	grid  *city.Map
	wx    *weather.Model
	rng   *entropy.Source
	clock Clock
	log   *slog.Logger

	capacity float64

	history      []city.Coord
	forcedRandom int

	decisionT float64
	movementT float64
	jobsT     float64
	lastSeen  float64

	stop chan struct{}
	done chan struct{}
}

func New(name string, tier Tier, c *courier.Courier, inv *orders.Inventory,
	grid *city.Map, wx *weather.Model, rng *entropy.Source, clock Clock, log *slog.Logger) *Bot {
	return &Bot{
		name:     name,
		tier:     tier,
		params:   DefaultParams(tier),
		c:        c,
		inv:      inv,
		grid:     grid,
		wx:       wx,
		rng:      rng,
		clock:    clock,
		log:      log.With("bot", name, "tier", string(tier)),
		capacity: courier.Capacity,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (b *Bot) Name() string                 { return b.name }
func (b *Bot) Tier() Tier                   { return b.tier }
func (b *Bot) Courier() *courier.Courier    { return b.c }
func (b *Bot) Inventory() *orders.Inventory { return b.inv }

// Start launches the decision loop.
func (b *Bot) Start() {
	b.lastSeen = b.clock.Elapsed()
	go b.run()
}

// Stop requests a cooperative shutdown and waits up to timeout for the
// loop to exit, reporting whether it did.
func (b *Bot) Stop(timeout time.Duration) bool {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	select {
	case <-b.done:
		return true
	case <-time.After(timeout):
		b.log.Warn("bot did not stop within timeout")
		return false
	}
}

func (b *Bot) run() {
	defer close(b.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	b.log.Info("bot started")
	for {
		select {
		case <-b.stop:
			b.log.Info("bot stopped")
			return
		case <-ticker.C:
			b.iterate()
		}
	}
}

// iterate runs one loop pass, isolating panics so a single bad decision
// cannot take the bot down.
func (b *Bot) iterate() {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bot iteration panicked", "panic", r)
		}
	}()

	elapsed := b.clock.Elapsed()
	paused := b.clock.Paused()
	dt := elapsed - b.lastSeen
	b.lastSeen = elapsed
	if dt < 0 {
		dt = 0
	}

	b.c.Update(dt, paused)
	if paused {
		return
	}

	b.decisionT += dt
	b.movementT += dt
	b.jobsT += dt

	if b.jobsT >= b.params.JobsIntervalS {
		b.jobsT = 0
		b.selectJob(elapsed)
	}
	if b.decisionT >= b.params.DecisionIntervalS {
		b.decisionT = 0
		b.actOnOrders(elapsed)
	}
	if b.movementT >= b.params.MovementIntervalS {
		b.movementT = 0
		b.moveStep(elapsed)
	}
	b.c.SweepCargo(elapsed)
}

// selectJob accepts a new order when the bot has nothing in hand.
func (b *Bot) selectJob(elapsed float64) {
	if len(b.c.ActiveOrders()) > 0 {
		return
	}
	o := b.pickJob(elapsed)
	if o == nil {
		return
	}
	if _, err := b.c.AcceptOrder(o, elapsed); err != nil {
		b.log.Debug("accept failed", "order", o.ID, "error", err)
		return
	}
	b.log.Info("accepted job", "order", o.ID, "priority", o.Priority, "payout", o.Payout)
}

// actOnOrders tries pickups and deliveries for adjacent order tiles.
func (b *Bot) actOnOrders(elapsed float64) {
	if o, _, err := b.c.PickupHere(elapsed); err == nil {
		b.log.Info("picked up package", "order", o.ID)
	}
	if o, payout, _, err := b.c.DeliverHere(elapsed); err == nil {
		b.log.Info("delivered package", "order", o.ID, "payout", payout)
	}
}

// moveStep performs one movement action toward the current target.
func (b *Bot) moveStep(elapsed float64) {
	target, ok := b.currentTarget()
	if !ok {
		return
	}
	pos := b.c.Pos()
	b.recordPosition(pos)

	dx, dy, ok := b.decideStep(target)
	if !ok {
		return
	}
	if err := b.c.Move(dx, dy); err != nil {
		// A blocked or refused step is normal flow; retry differently
		// next cadence.
		b.log.Debug("move refused", "error", err)
	}
}

// currentTarget is the pickup of the active accepted order or the
// dropoff once carrying.
func (b *Bot) currentTarget() (city.Coord, bool) {
	o := b.c.ActiveOrder()
	if o == nil {
		return city.Coord{}, false
	}
	switch o.State {
	case orders.Accepted:
		return o.Pickup, true
	case orders.Carrying:
		return o.Dropoff, true
	default:
		return city.Coord{}, false
	}
}

// Stuck reports whether the bot is inside a forced-random recovery run.
func (b *Bot) Stuck() bool { return b.forcedRandom > 0 }
