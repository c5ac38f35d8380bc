package courier

import (
	"errors"
	"fmt"

	"github.com/talgya/courier-city/internal/city"
	"github.com/talgya/courier-city/internal/orders"
)

// Capacity is the weight an agent may carry, checked at acceptance and
// again at pickup.
const Capacity = 8.0

// HardExpiryGraceS is how long past its deadline an accepted or carried
// order survives before the sweep declares it lost.
const HardExpiryGraceS = 120.0

var (
	ErrNotSelectable = errors.New("order is not selectable")
	ErrOverCapacity  = errors.New("order would exceed carry capacity")
	ErrNotAdjacent   = errors.New("not adjacent to the order location")
	ErrNoActiveOrder = errors.New("no active order")
)

// Cargo tracks one agent's accepted and carried orders plus the active
// cursor the delivery panel points at. Access is serialized by the
// owning Courier.
type Cargo struct {
	active  []*orders.Order
	cursor  int
	carried float64 // weight of orders in carrying state
}

func NewCargo() *Cargo { return &Cargo{} }

// CarriedWeight is the summed weight of picked-up orders.
func (c *Cargo) CarriedWeight() float64 { return c.carried }

// Active returns the accepted and carried orders in acceptance order.
func (c *Cargo) Active() []*orders.Order {
	out := make([]*orders.Order, len(c.active))
	copy(out, c.active)
	return out
}

// ActiveOrder is the order under the cursor, nil when empty.
func (c *Cargo) ActiveOrder() *orders.Order {
	if len(c.active) == 0 {
		return nil
	}
	c.clampCursor()
	return c.active[c.cursor]
}

// CycleNext moves the active cursor forward, wrapping.
func (c *Cargo) CycleNext() *orders.Order {
	if len(c.active) == 0 {
		return nil
	}
	c.cursor = (c.cursor + 1) % len(c.active)
	return c.active[c.cursor]
}

// CyclePrev moves the active cursor back, wrapping.
func (c *Cargo) CyclePrev() *orders.Order {
	if len(c.active) == 0 {
		return nil
	}
	c.cursor = (c.cursor - 1 + len(c.active)) % len(c.active)
	return c.active[c.cursor]
}

func (c *Cargo) clampCursor() {
	if c.cursor >= len(c.active) {
		c.cursor = 0
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
}

// Accept takes a selectable order into the active set and stamps its
// deadline from priority. Capacity is checked against the weight
// already picked up plus this order.
func (c *Cargo) Accept(o *orders.Order, elapsed float64) (string, error) {
	if o == nil || !o.SelectableAt(elapsed) {
		return "", ErrNotSelectable
	}
	if c.carried+o.Weight > Capacity {
		return "", fmt.Errorf("%w: %.1f + %.1f > %.1f", ErrOverCapacity, c.carried, o.Weight, Capacity)
	}
	if err := o.Accept(elapsed); err != nil {
		return "", err
	}
	c.active = append(c.active, o)
	return fmt.Sprintf("Accepted priority %d job for $%.0f (deliver within %.0fs)",
		o.Priority, o.Payout, o.DeadlineS-elapsed), nil
}

// PickupAt collects the first accepted order whose pickup tile is
// within one step of pos, moving it to carrying and adding its weight.
func (c *Cargo) PickupAt(pos city.Coord, elapsed float64) (*orders.Order, string, error) {
	for _, o := range c.active {
		if o.State != orders.Accepted || pos.Chebyshev(o.Pickup) > 1 {
			continue
		}
		if c.carried+o.Weight > Capacity {
			return nil, "", fmt.Errorf("%w: %.1f + %.1f > %.1f", ErrOverCapacity, c.carried, o.Weight, Capacity)
		}
		if err := o.Transition(orders.Carrying); err != nil {
			return nil, "", err
		}
		o.PickedAt = elapsed
		c.carried += o.Weight
		return o, fmt.Sprintf("Picked up package (%.1f kg, carrying %.1f/%.1f)",
			o.Weight, c.carried, Capacity), nil
	}
	return nil, "", ErrNotAdjacent
}

// DeliverAt completes the first carried order whose dropoff tile is
// within one step of pos. The reputation scorer runs first; the payout
// multiplier is then read from the updated reputation.
func (c *Cargo) DeliverAt(pos city.Coord, elapsed float64, rep *Reputation) (*orders.Order, float64, string, error) {
	for i, o := range c.active {
		if o.State != orders.Carrying || pos.Chebyshev(o.Dropoff) > 1 {
			continue
		}
		if err := o.Transition(orders.Delivered); err != nil {
			return nil, 0, "", err
		}
		o.DeliveredAt = elapsed
		c.carried -= o.Weight
		if c.carried < 0 {
			c.carried = 0
		}
		c.remove(i)

		window := orders.DeadlineForPriority(o.Priority)
		change := rep.ApplyDelivery(elapsed, o.DeadlineS, window)
		payout := o.Payout * rep.PaymentMultiplier()
		toast := fmt.Sprintf("Priority %d job completed! +$%.2f\n%s", o.Priority, payout, change.Message)
		return o, payout, toast, nil
	}
	return nil, 0, "", ErrNotAdjacent
}

// Cancel discards the order under the cursor with the cancellation
// penalty, releasing its weight if it was being carried.
func (c *Cargo) Cancel(elapsed float64, rep *Reputation) (*orders.Order, string, error) {
	o := c.ActiveOrder()
	if o == nil {
		return nil, "", ErrNoActiveOrder
	}
	wasCarrying := o.State == orders.Carrying
	if err := o.Transition(orders.Cancelled); err != nil {
		return nil, "", err
	}
	if wasCarrying {
		c.carried -= o.Weight
		if c.carried < 0 {
			c.carried = 0
		}
	}
	c.remove(c.cursor)
	change := rep.ApplyCancel()
	return o, fmt.Sprintf("Order discarded! %s", change.Message), nil
}

// ExpireSweep loses every active order that has sat past its deadline
// beyond the hard-expiry grace, scoring each once. Terminal orders are
// skipped, so a repeated sweep is a no-op.
func (c *Cargo) ExpireSweep(elapsed float64, rep *Reputation) []*orders.Order {
	var lost []*orders.Order
	for i := 0; i < len(c.active); {
		o := c.active[i]
		if o.State.Terminal() || o.DeadlineS <= 0 || elapsed-o.DeadlineS <= HardExpiryGraceS {
			i++
			continue
		}
		wasCarrying := o.State == orders.Carrying
		if err := o.Transition(orders.Expired); err != nil {
			i++
			continue
		}
		if wasCarrying {
			c.carried -= o.Weight
			if c.carried < 0 {
				c.carried = 0
			}
		}
		c.remove(i)
		if !o.LostScored {
			o.LostScored = true
			rep.ApplyLost(o.Overtime(elapsed))
		}
		lost = append(lost, o)
	}
	return lost
}

func (c *Cargo) remove(i int) {
	c.active = append(c.active[:i], c.active[i+1:]...)
	c.clampCursor()
}

// ActiveIDs supports snapshotting: the active set is rebuilt from order
// ids on restore.
func (c *Cargo) ActiveIDs() []string {
	ids := make([]string, len(c.active))
	for i, o := range c.active {
		ids[i] = o.ID
	}
	return ids
}

// RestoreActive rebuilds the active set from resolved orders and the
// saved id list, recomputing carried weight from order states.
func (c *Cargo) RestoreActive(byID map[string]*orders.Order, ids []string, cursor int) {
	c.active = c.active[:0]
	c.carried = 0
	for _, id := range ids {
		o := byID[id]
		if o == nil {
			continue
		}
		c.active = append(c.active, o)
		if o.State == orders.Carrying {
			c.carried += o.Weight
		}
	}
	c.cursor = cursor
	c.clampCursor()
}
