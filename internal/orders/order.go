// Package orders provides the delivery-order lifecycle and the
// time-gated jobs inventory each agent draws work from.
package orders

import (
	"fmt"

	"github.com/talgya/courier-city/internal/city"
)

// State is an order's lifecycle stage.
type State string

const (
	Available State = "available"
	Accepted  State = "accepted"
	Carrying  State = "carrying"
	Delivered State = "delivered"
	Expired   State = "expired"
	Cancelled State = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == Delivered || s == Expired || s == Cancelled
}

// transitions is the monotone lifecycle: forward along
// available→accepted→carrying→delivered, with expired/cancelled as
// absorbing side exits from the two active stages.
var transitions = map[State][]State{
	Available: {Accepted, Expired},
	Accepted:  {Carrying, Expired, Cancelled},
	Carrying:  {Delivered, Expired, Cancelled},
}

// Order is one delivery job. Created once at game start from the static
// job list; mutated only by the agent that currently holds it; its
// terminal record persists for scoring.
type Order struct {
	ID       string     `json:"id"`
	Pickup   city.Coord `json:"pickup"`
	Dropoff  city.Coord `json:"dropoff"`
	Payout   float64    `json:"payout"`
	Weight   float64    `json:"weight"`
	Priority int        `json:"priority"`

	ReleaseTime float64 `json:"release_time"` // seconds from game start
	Released    bool    `json:"released"`     // set once when the release time passes

	State       State   `json:"state"`
	DeadlineS   float64 `json:"deadline_s"` // absolute elapsed seconds, set on accept
	AcceptedAt  float64 `json:"accepted_at"`
	PickedAt    float64 `json:"picked_at"`
	DeliveredAt float64 `json:"delivered_at"`

	// LostScored guards the expiry sweep: the "lost" reputation penalty
	// applies at most once per order.
	LostScored bool `json:"lost_scored"`
}

// Transition moves the order to a new state, rejecting anything outside
// the monotone lifecycle. Callers log and ignore the error (state
// inconsistencies are recoverable, never control flow).
func (o *Order) Transition(to State) error {
	for _, allowed := range transitions[o.State] {
		if allowed == to {
			o.State = to
			return nil
		}
	}
	return fmt.Errorf("order %s: illegal transition %s → %s", o.ID, o.State, to)
}

// DeadlineForPriority maps priority to the delivery window granted at
// acceptance: priority 0 → 120s, 1 → 90s, 2 and above → 60s. This also
// caps any raw source deadline that would exceed 120s.
func DeadlineForPriority(priority int) float64 {
	switch priority {
	case 0:
		return 120
	case 1:
		return 90
	default:
		return 60
	}
}

// Accept marks the order accepted at the given elapsed time and derives
// its deadline from priority.
func (o *Order) Accept(elapsed float64) error {
	if err := o.Transition(Accepted); err != nil {
		return err
	}
	o.AcceptedAt = elapsed
	o.DeadlineS = elapsed + DeadlineForPriority(o.Priority)
	return nil
}

// Overtime returns how many seconds past deadline the given elapsed
// time is, or 0 when within the window or no deadline is set.
func (o *Order) Overtime(elapsed float64) float64 {
	if o.DeadlineS <= 0 {
		return 0
	}
	ot := elapsed - o.DeadlineS
	if ot < 0 {
		return 0
	}
	return ot
}

// SelectableAt reports whether the order can be offered to an agent:
// released, still available, not expired.
func (o *Order) SelectableAt(elapsed float64) bool {
	return o.State == Available && elapsed >= o.ReleaseTime
}

func (o *Order) String() string {
	return fmt.Sprintf("Order(%s p%d $%.0f %s)", o.ID, o.Priority, o.Payout, o.State)
}
