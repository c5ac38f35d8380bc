package courier

import (
	"fmt"
	"math"
)

// Reputation boundaries. Reputation starts at 70, game over below 20,
// payout bonus from 90 up.
const (
	ReputationStart     = 70.0
	ReputationGameOver  = 20.0
	ReputationDiscount  = 85.0
	ReputationExcellent = 90.0
)

// DailyStats counts delivery outcomes since the last daily reset.
type DailyStats struct {
	OnTime    int `json:"on_time"`
	Early     int `json:"early"`
	Late      int `json:"late"`
	Cancelled int `json:"cancelled"`
	Lost      int `json:"lost"`
}

// Reputation scores delivery outcomes for one agent. Not safe for
// concurrent use; each agent owns its own instance and the owning
// Courier serializes access.
type Reputation struct {
	value         float64
	streak        int
	firstLateUsed bool
	daily         DailyStats
}

// Change describes one reputation event for callers that surface it.
type Change struct {
	Old      float64
	New      float64
	Delta    float64
	Streak   int
	Message  string
	GameOver bool
}

func NewReputation() *Reputation {
	return &Reputation{value: ReputationStart}
}

func (r *Reputation) Value() float64    { return r.value }
func (r *Reputation) Streak() int       { return r.streak }
func (r *Reputation) Daily() DailyStats { return r.daily }

// GameOver reports whether reputation has fallen below the floor.
func (r *Reputation) GameOver() bool { return r.value < ReputationGameOver }

// PaymentMultiplier is read by the payment step, not by the scorer.
func (r *Reputation) PaymentMultiplier() float64 {
	if r.value >= ReputationExcellent {
		return 1.05
	}
	return 1.0
}

// SpeedMultiplier feeds the movement formula.
func (r *Reputation) SpeedMultiplier() float64 {
	if r.value >= ReputationExcellent {
		return 1.03
	}
	return 1.0
}

// ResetDaily clears the first-late discount and the daily counters at
// the start of a new game day.
func (r *Reputation) ResetDaily() {
	r.firstLateUsed = false
	r.daily = DailyStats{}
}

// ApplyCancel scores an explicit order cancellation: flat -4, streak
// reset.
func (r *Reputation) ApplyCancel() Change {
	r.streak = 0
	r.daily.Cancelled++
	return r.commit(-4, "Order cancelled: -4 reputation")
}

// ApplyLost scores an expired package by its overtime, same tiers as a
// late delivery.
func (r *Reputation) ApplyLost(overtime float64) Change {
	r.streak = 0
	r.daily.Lost++
	penalty := r.latePenalty(overtime)
	msg := fmt.Sprintf("Package lost (overtime %.1fs): %.1f reputation", overtime, penalty)
	return r.commit(penalty, msg)
}

// ApplyDelivery scores a completed delivery. The window is the full
// span granted at acceptance; early means finishing with at least 20%
// of it still remaining.
func (r *Reputation) ApplyDelivery(elapsed, deadline, window float64) Change {
	remaining := deadline - elapsed
	overtime := -remaining
	switch {
	case overtime > 0:
		r.streak = 0
		r.daily.Late++
		penalty := r.latePenalty(overtime)
		msg := fmt.Sprintf("Late delivery (%.1fs): %.1f reputation", overtime, penalty)
		return r.commitWithStreak(penalty, msg)
	case remaining >= 0.2*window:
		r.streak++
		r.daily.Early++
		return r.commitWithStreak(5, "Early delivery: +5 reputation")
	default:
		r.streak++
		r.daily.OnTime++
		return r.commitWithStreak(3, "On-time delivery: +3 reputation")
	}
}

// latePenalty tiers the penalty by overtime seconds and consumes the
// once-per-day half discount held by high-reputation agents.
func (r *Reputation) latePenalty(overtime float64) float64 {
	var base float64
	switch {
	case overtime <= 30:
		base = -2
	case overtime <= 120:
		base = -5
	default:
		base = -10
	}
	if r.value >= ReputationDiscount && !r.firstLateUsed {
		r.firstLateUsed = true
		return base / 2
	}
	return base
}

func (r *Reputation) commitWithStreak(delta float64, msg string) Change {
	// The bonus fires the instant the streak counter reads exactly 3;
	// the counter keeps running so it cannot fire again until a
	// cancel/late event resets it.
	if r.streak == 3 {
		delta += 2
		msg += " + streak bonus: +2 reputation"
	}
	return r.commit(delta, msg)
}

// commit applies a raw change with loss dampening: a single event
// removes at most max(1, 20% of current), never crosses the game-over
// floor from at/above it, and once reputation is near zero the value
// holds a floor of 1.
func (r *Reputation) commit(raw float64, msg string) Change {
	old := r.value
	total := raw
	if total < 0 {
		loss := math.Min(-total, math.Max(1.0, old*0.20))
		if old <= 5.0 {
			loss = 1.0
		}
		if old >= ReputationGameOver && old-loss < ReputationGameOver {
			loss = old - ReputationGameOver
		}
		total = -loss
	}
	next := math.Max(0, math.Min(100, old+total))
	if total < 0 && next < 1.0 {
		next = 1.0
	}
	r.value = next
	return Change{
		Old:      old,
		New:      next,
		Delta:    next - old,
		Streak:   r.streak,
		Message:  msg,
		GameOver: r.GameOver(),
	}
}

// ReputationState is the serializable form for snapshots.
type ReputationState struct {
	Value         float64    `json:"value"`
	Streak        int        `json:"streak"`
	FirstLateUsed bool       `json:"first_late_used"`
	Daily         DailyStats `json:"daily"`
}

func (r *Reputation) State() ReputationState {
	return ReputationState{Value: r.value, Streak: r.streak, FirstLateUsed: r.firstLateUsed, Daily: r.daily}
}

func (r *Reputation) RestoreState(s ReputationState) {
	r.value = s.Value
	r.streak = s.Streak
	r.firstLateUsed = s.FirstLateUsed
	r.daily = s.Daily
}
