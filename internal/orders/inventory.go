package orders

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoSelection is returned when an operation needs a selected order
// and nothing is selectable.
var ErrNoSelection = errors.New("no selectable order")

// AvailableGraceS is how long an unaccepted order stays on offer after
// its release before the sweep expires it.
const AvailableGraceS = 600.0

// visibleRows is the jobs-panel page height the cursor scrolls within.
const visibleRows = 5

// Inventory holds one agent's view of the job pool plus the selection
// cursor the jobs panel renders. Each agent owns a private inventory;
// the API reads snapshots under the lock.
//
// The lock guards the mutable fields of the contained orders too, not
// just the slice. Anything that writes an order's state outside the
// inventory's own methods must do so through Update.
type Inventory struct {
	mu       sync.Mutex
	orders   []*Order
	selected int
	scroll   int
}

// NewInventory builds an inventory over the given orders, sorted by
// priority descending then payout descending. The slice is retained.
func NewInventory(list []*Order) *Inventory {
	sorted := make([]*Order, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].Payout > sorted[j].Payout
	})
	return &Inventory{orders: sorted}
}

// Update runs fn while holding the inventory lock. Couriers route
// their cargo transitions through here so an order's state is only
// ever written under the lock that readers of the pool take.
func (inv *Inventory) Update(fn func()) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	fn()
}

// Release flips the Released flag on every order whose release time has
// passed. Idempotent.
func (inv *Inventory) Release(elapsed float64) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, o := range inv.orders {
		if !o.Released && elapsed >= o.ReleaseTime {
			o.Released = true
		}
	}
}

// Selectable returns the orders currently offerable: released,
// available, not expired. Order preserves the inventory sort.
func (inv *Inventory) Selectable(elapsed float64) []*Order {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.selectableLocked(elapsed)
}

func (inv *Inventory) selectableLocked(elapsed float64) []*Order {
	var out []*Order
	for _, o := range inv.orders {
		if o.SelectableAt(elapsed) {
			out = append(out, o)
		}
	}
	return out
}

// Selected returns the order under the cursor, or nil when nothing is
// selectable. The cursor is clamped into the current selectable range
// first, so a shrinking pool never leaves it dangling.
func (inv *Inventory) Selected(elapsed float64) *Order {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	sel := inv.selectableLocked(elapsed)
	if len(sel) == 0 {
		return nil
	}
	inv.clampLocked(len(sel))
	return sel[inv.selected]
}

// CycleNext advances the cursor, wrapping at the end, and scrolls the
// visible window to keep the cursor on screen.
func (inv *Inventory) CycleNext(elapsed float64) *Order {
	return inv.cycle(elapsed, 1)
}

// CyclePrev moves the cursor back, wrapping at the start.
func (inv *Inventory) CyclePrev(elapsed float64) *Order {
	return inv.cycle(elapsed, -1)
}

func (inv *Inventory) cycle(elapsed float64, dir int) *Order {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	sel := inv.selectableLocked(elapsed)
	if len(sel) == 0 {
		return nil
	}
	inv.clampLocked(len(sel))
	inv.selected = (inv.selected + dir + len(sel)) % len(sel)
	if inv.selected < inv.scroll {
		inv.scroll = inv.selected
	}
	if inv.selected >= inv.scroll+visibleRows {
		inv.scroll = inv.selected - visibleRows + 1
	}
	return sel[inv.selected]
}

func (inv *Inventory) clampLocked(n int) {
	if inv.selected >= n {
		inv.selected = n - 1
	}
	if inv.selected < 0 {
		inv.selected = 0
	}
	if inv.scroll > inv.selected {
		inv.scroll = inv.selected
	}
	if inv.scroll < 0 {
		inv.scroll = 0
	}
}

// Cursor exposes the cursor index and scroll offset for rendering.
func (inv *Inventory) Cursor() (index, scroll int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.selected, inv.scroll
}

// ExpireSweep moves every available order that has sat unaccepted past
// its grace window into expired, returning the newly expired orders so
// the caller can surface toasts. Running the sweep twice over the same
// elapsed time returns nothing the second time.
func (inv *Inventory) ExpireSweep(elapsed float64) []*Order {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var swept []*Order
	for _, o := range inv.orders {
		if o.State != Available || !o.Released {
			continue
		}
		if elapsed-o.ReleaseTime > AvailableGraceS {
			if err := o.Transition(Expired); err == nil {
				swept = append(swept, o)
			}
		}
	}
	return swept
}

// ByID looks an order up by id, nil when absent.
func (inv *Inventory) ByID(id string) *Order {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, o := range inv.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// All returns the inventory's orders in sorted order. The slice is a
// copy; the orders are shared.
func (inv *Inventory) All() []*Order {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]*Order, len(inv.orders))
	copy(out, inv.orders)
	return out
}

// Snapshot returns value copies of every order for read-only consumers.
func (inv *Inventory) Snapshot() []Order {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]Order, len(inv.orders))
	for i, o := range inv.orders {
		out[i] = *o
	}
	return out
}

// RestoreStates copies saved order values back over the live orders,
// matched by id. Unknown ids are skipped.
func (inv *Inventory) RestoreStates(saved []Order) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	byID := make(map[string]*Order, len(inv.orders))
	for _, o := range inv.orders {
		byID[o.ID] = o
	}
	for _, s := range saved {
		if o, ok := byID[s.ID]; ok {
			*o = s
		}
	}
}

// ActiveDone reports whether no order can ever be offered or completed
// again: everything is in a terminal state.
func (inv *Inventory) ActiveDone() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, o := range inv.orders {
		if !o.State.Terminal() {
			return false
		}
	}
	return true
}
