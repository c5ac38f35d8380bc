package courier

import (
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/talgya/courier-city/internal/city"
	"github.com/talgya/courier-city/internal/orders"
)

func testMap(t *testing.T) *city.Map {
	t.Helper()
	rows := []string{
		"..........",
		"..........",
		"....#.....",
		"..........",
		"..........",
	}
	legend := map[rune]city.TileInfo{
		'.': {Name: "street", SurfaceWeight: 1.0},
		'#': {Name: "building", Blocked: true},
	}
	m, err := city.New("test", rows, legend, 500)
	if err != nil {
		t.Fatalf("building map: %v", err)
	}
	return m
}

func testCourier(t *testing.T) *Courier {
	t.Helper()
	return New("tester", city.Coord{X: 0, Y: 0}, testMap(t), nil, orders.NewInventory(nil), slog.Default())
}

func TestWeightMultiplierClamp(t *testing.T) {
	cases := []struct {
		weight float64
		want   float64
	}{
		{0, 1.0},
		{3, 0.91},
		{6.66, 0.8002},
		{6.67, 0.8},
		{8, 0.8},
	}
	for _, c := range cases {
		got := math.Max(0.8, 1.0-0.03*c.weight)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("weight %.2f: multiplier %.4f, want %.4f", c.weight, got, c.want)
		}
	}
}

func TestBaselineSpeedAndDistance(t *testing.T) {
	p := testCourier(t)
	speed := p.Speed()
	if speed != 3.0 {
		t.Fatalf("baseline speed %.2f, want 3.0", speed)
	}
	if d := moveDistance(speed); d != 2 {
		t.Fatalf("distance at speed 3.0 = %d, want 2", d)
	}
}

func TestMoveDistanceSteps(t *testing.T) {
	cases := []struct {
		speed float64
		want  int
	}{
		{0.5, 0}, {1.0, 1}, {1.9, 1}, {2.0, 2}, {3.0, 2},
		{3.5, 3}, {4.0, 3}, {4.5, 4}, {5.0, 4}, {9.0, 3}, {20.0, 5},
	}
	for _, c := range cases {
		if got := moveDistance(c.speed); got != c.want {
			t.Fatalf("speed %.1f: distance %d, want %d", c.speed, got, c.want)
		}
	}
}

func TestMoveStopsBeforeObstacle(t *testing.T) {
	p := testCourier(t)
	p.pos = city.Coord{X: 2, Y: 2}
	p.target = p.pos
	// Wall at (4,2); speed 3.0 allows 2 tiles, so the walk stops at (3,2).
	if err := p.Move(1, 0); err != nil {
		t.Fatalf("move right: %v", err)
	}
	if p.target != (city.Coord{X: 3, Y: 2}) {
		t.Fatalf("target %v, want (3,2)", p.target)
	}
}

func TestMoveRejectedFullyBlocked(t *testing.T) {
	p := testCourier(t)
	p.pos = city.Coord{X: 3, Y: 2}
	p.target = p.pos
	if err := p.Move(1, 0); !errors.Is(err, ErrBlocked) {
		t.Fatalf("move into wall: err = %v, want ErrBlocked", err)
	}
	if p.Moving() {
		t.Fatal("failed move left courier in moving state")
	}
}

func TestMoveRejectedWhileMoving(t *testing.T) {
	p := testCourier(t)
	if err := p.Move(1, 0); err != nil {
		t.Fatalf("first move: %v", err)
	}
	if err := p.Move(0, 1); !errors.Is(err, ErrAlreadyMoving) {
		t.Fatalf("second move: err = %v, want ErrAlreadyMoving", err)
	}
}

func TestStaminaLossBaseline(t *testing.T) {
	p := testCourier(t)
	p.stamina = 35
	p.applyMoveCost(2)
	if p.stamina != 34 {
		t.Fatalf("stamina %.1f, want 34", p.stamina)
	}
	if p.resistance != ResistanceNormal {
		t.Fatalf("resistance %s, want normal", p.resistance)
	}
}

func TestStaminaLossWithWeight(t *testing.T) {
	p := testCourier(t)
	o := &orders.Order{ID: "w", State: orders.Carrying, Weight: 5}
	p.cargo.active = append(p.cargo.active, o)
	p.cargo.carried = 5
	p.stamina = 50
	p.applyMoveCost(2)
	// 0.5*2 + 0.2*(5-3)*2 = 1.8
	if math.Abs(p.stamina-48.2) > 1e-9 {
		t.Fatalf("stamina %.2f, want 48.2", p.stamina)
	}
}

func TestRecoveryModeHysteresis(t *testing.T) {
	p := testCourier(t)
	p.stamina = 0.5
	p.applyMoveCost(1)
	if !p.recoveryMode {
		t.Fatal("hitting zero stamina must enter recovery mode")
	}
	if p.resistance != ResistanceExhausted {
		t.Fatalf("resistance %s, want exhausted", p.resistance)
	}

	// Below the threshold every movement attempt fails, even once
	// stamina is back above zero.
	p.stamina = 20
	p.updateResistanceLocked()
	if err := p.Move(1, 0); !errors.Is(err, ErrRecovering) {
		t.Fatalf("move at stamina 20 in recovery: err = %v, want ErrRecovering", err)
	}

	// At the threshold the flag clears on the next attempt.
	p.stamina = 30
	p.updateResistanceLocked()
	if err := p.Move(1, 0); err != nil {
		t.Fatalf("move at threshold: %v", err)
	}
	if p.recoveryMode {
		t.Fatal("recovery mode did not clear at threshold")
	}
}

func TestIdleRecoveryCarriesFraction(t *testing.T) {
	p := testCourier(t)
	p.stamina = 10
	p.recoveryMode = true
	p.updateResistanceLocked()

	p.Update(0.7, false)
	if p.stamina != 10 {
		t.Fatalf("recovered before a full interval: %.1f", p.stamina)
	}
	p.Update(0.7, false) // 1.4s accrued: one cycle, 0.4 carried
	if p.stamina != 15 {
		t.Fatalf("stamina %.1f after one cycle, want 15", p.stamina)
	}
	if math.Abs(p.idle-0.4) > 1e-9 {
		t.Fatalf("idle remainder %.2f, want 0.4", p.idle)
	}

	// Recovery past the threshold clears the flag immediately, not at
	// the next move attempt.
	p.Update(3.0, false)
	if p.stamina != 30 {
		t.Fatalf("stamina %.1f, want 30", p.stamina)
	}
	if p.recoveryMode {
		t.Fatal("recovery mode still set at threshold")
	}
	if p.resistance != ResistanceTired {
		t.Fatalf("resistance %s at stamina 30, want tired", p.resistance)
	}
}

func TestPauseFreezesIdleAccrual(t *testing.T) {
	p := testCourier(t)
	p.stamina = 10
	p.Update(0.6, false)
	p.Update(5.0, true) // paused: no accrual, partial timer kept
	if p.stamina != 10 {
		t.Fatalf("stamina changed while paused: %.1f", p.stamina)
	}
	p.Update(0.4, false) // completes the interval started before pause
	if p.stamina != 15 {
		t.Fatalf("stamina %.1f after resume, want 15", p.stamina)
	}
}

func TestMovementProgressCompletes(t *testing.T) {
	p := testCourier(t)
	if err := p.Move(1, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	target := p.target
	for i := 0; i < 120 && p.Moving(); i++ {
		p.Update(1.0/60.0, false)
	}
	if p.Moving() {
		t.Fatal("movement never completed")
	}
	if p.Pos() != target {
		t.Fatalf("pos %v, want %v", p.Pos(), target)
	}
}

func TestReputationDeliveryTiers(t *testing.T) {
	// Priority 1 accepted at 100 gives deadline 190; delivery at 200 is
	// 10s over, landing in the smallest penalty tier.
	o := &orders.Order{ID: "j", State: orders.Available, ReleaseTime: 0, Priority: 1, Payout: 40, Weight: 1}
	if err := o.Accept(100); err != nil {
		t.Fatal(err)
	}
	if o.DeadlineS != 190 {
		t.Fatalf("deadline %.0f, want 190", o.DeadlineS)
	}

	r := NewReputation()
	ch := r.ApplyDelivery(200, o.DeadlineS, orders.DeadlineForPriority(o.Priority))
	if ch.Delta != -2 {
		t.Fatalf("10s overtime: delta %.1f, want -2", ch.Delta)
	}

	r2 := NewReputation()
	r2.value = 88 // discount holder, first late of the day halves the penalty
	ch2 := r2.ApplyDelivery(200, 190, 90)
	if ch2.Delta != -1 {
		t.Fatalf("discounted 10s overtime: delta %.1f, want -1", ch2.Delta)
	}
	ch3 := r2.ApplyDelivery(400, 190, 90) // >120s over, discount spent
	if ch3.Delta != -10 {
		t.Fatalf("second late: delta %.1f, want -10", ch3.Delta)
	}
}

func TestReputationEarlyOnTimeAndStreak(t *testing.T) {
	r := NewReputation()
	// 60s of a 90s window left: early.
	if ch := r.ApplyDelivery(130, 190, 90); ch.Delta != 5 {
		t.Fatalf("early delivery: delta %.1f, want +5", ch.Delta)
	}
	// 5s left of 90: on time, not early.
	if ch := r.ApplyDelivery(185, 190, 90); ch.Delta != 3 {
		t.Fatalf("on-time delivery: delta %.1f, want +3", ch.Delta)
	}
	// Third success triggers the one-shot streak bonus.
	if ch := r.ApplyDelivery(185, 190, 90); ch.Delta != 5 {
		t.Fatalf("streak delivery: delta %.1f, want +3+2", ch.Delta)
	}
	// Fourth does not repeat it.
	if ch := r.ApplyDelivery(185, 190, 90); ch.Delta != 3 {
		t.Fatalf("post-streak delivery: delta %.1f, want +3", ch.Delta)
	}
}

func TestReputationCancelResetsStreak(t *testing.T) {
	r := NewReputation()
	r.ApplyDelivery(130, 190, 90)
	r.ApplyDelivery(130, 190, 90)
	ch := r.ApplyCancel()
	if ch.Delta != -4 {
		t.Fatalf("cancel delta %.1f, want -4", ch.Delta)
	}
	if r.Streak() != 0 {
		t.Fatalf("streak %d after cancel, want 0", r.Streak())
	}
}

func TestReputationLossDampening(t *testing.T) {
	r := NewReputation()
	r.value = 40
	ch := r.ApplyLost(500) // raw -10, capped at 20% of 40 = 8
	if ch.Delta != -8 {
		t.Fatalf("dampened loss %.1f, want -8", ch.Delta)
	}

	r2 := NewReputation()
	r2.value = 22
	ch2 := r2.ApplyLost(500) // would cross the floor, clamped to land on 20
	if r2.Value() != 20 {
		t.Fatalf("value %.1f, want clamp at 20 (delta %.1f)", r2.Value(), ch2.Delta)
	}

	r3 := NewReputation()
	r3.value = 3
	r3.ApplyLost(500)
	if r3.Value() < 1 {
		t.Fatalf("near-zero reputation fell below 1: %.1f", r3.Value())
	}
}

func TestPayoutMultiplier(t *testing.T) {
	r := NewReputation()
	if m := r.PaymentMultiplier(); m != 1.0 {
		t.Fatalf("multiplier at 70: %.2f", m)
	}
	r.value = 90
	if m := r.PaymentMultiplier(); m != 1.05 {
		t.Fatalf("multiplier at 90: %.2f", m)
	}
	if m := r.SpeedMultiplier(); m != 1.03 {
		t.Fatalf("speed multiplier at 90: %.2f", m)
	}
}

func TestCargoAcceptPickupDeliver(t *testing.T) {
	p := testCourier(t)
	o := &orders.Order{
		ID: "run", State: orders.Available, Priority: 0,
		Pickup: city.Coord{X: 1, Y: 0}, Dropoff: city.Coord{X: 3, Y: 0},
		Payout: 50, Weight: 2,
	}
	if _, err := p.AcceptOrder(o, 10); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, _, err := p.PickupHere(11); err != nil {
		t.Fatalf("pickup adjacent: %v", err)
	}
	if w := p.CarriedWeight(); w != 2 {
		t.Fatalf("carried %.1f, want 2", w)
	}
	if _, _, _, err := p.DeliverHere(12); !errors.Is(err, ErrNotAdjacent) {
		t.Fatalf("deliver far from dropoff: err = %v, want ErrNotAdjacent", err)
	}

	p.pos = city.Coord{X: 2, Y: 0} // Chebyshev 1 from dropoff
	done, payout, _, err := p.DeliverHere(12)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if done.State != orders.Delivered {
		t.Fatalf("state %s, want delivered", done.State)
	}
	if payout != 50 {
		t.Fatalf("payout %.2f, want 50 at rep <90", payout)
	}
	if p.Money() != 50 {
		t.Fatalf("money %.2f, want 50", p.Money())
	}
	if w := p.CarriedWeight(); w != 0 {
		t.Fatalf("carried %.1f after delivery, want 0", w)
	}
}

func TestCargoCapacity(t *testing.T) {
	p := testCourier(t)
	heavy := &orders.Order{ID: "heavy", State: orders.Available, Pickup: city.Coord{X: 0, Y: 1}, Weight: 7}
	if _, err := p.AcceptOrder(heavy, 0); err != nil {
		t.Fatalf("accept heavy: %v", err)
	}
	if _, _, err := p.PickupHere(1); err != nil {
		t.Fatalf("pickup heavy: %v", err)
	}
	extra := &orders.Order{ID: "extra", State: orders.Available, Pickup: city.Coord{X: 0, Y: 1}, Weight: 2}
	if _, err := p.AcceptOrder(extra, 2); !errors.Is(err, ErrOverCapacity) {
		t.Fatalf("accept over capacity: err = %v, want ErrOverCapacity", err)
	}
}

func TestCargoExpirySweepIdempotent(t *testing.T) {
	p := testCourier(t)
	o := &orders.Order{ID: "stale", State: orders.Available, Pickup: city.Coord{X: 1, Y: 0}, Weight: 1, Priority: 2}
	if _, err := p.AcceptOrder(o, 0); err != nil {
		t.Fatal(err)
	}
	// Deadline 60, grace 120: lost only after 180.
	if lost := p.SweepCargo(150); len(lost) != 0 {
		t.Fatalf("swept inside grace window: %v", lost)
	}
	before := p.ReputationValue()
	lost := p.SweepCargo(181)
	if len(lost) != 1 || lost[0].State != orders.Expired {
		t.Fatalf("sweep at 181: got %v", lost)
	}
	after := p.ReputationValue()
	if after >= before {
		t.Fatal("lost package did not cost reputation")
	}
	if again := p.SweepCargo(181); len(again) != 0 {
		t.Fatal("second sweep re-expired the order")
	}
	if p.ReputationValue() != after {
		t.Fatal("second sweep re-applied the penalty")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	p := testCourier(t)
	o := &orders.Order{ID: "s1", State: orders.Available, Pickup: city.Coord{X: 1, Y: 0}, Weight: 2, Payout: 30}
	inv := orders.NewInventory([]*orders.Order{o})
	inv.Release(1)
	if _, err := p.AcceptOrder(o, 1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.PickupHere(2); err != nil {
		t.Fatal(err)
	}
	p.stamina = 42
	p.recoveryMode = true

	snap := p.Snapshot()
	q := New("tester", city.Coord{}, testMap(t), nil, inv, slog.Default())
	q.Restore(snap)

	if q.Stamina() != 42 || !q.RecoveryMode() {
		t.Fatalf("vitals not restored: stamina %.1f recovery %v", q.Stamina(), q.RecoveryMode())
	}
	if w := q.CarriedWeight(); w != 2 {
		t.Fatalf("carried weight not recomputed: %.1f", w)
	}
	if got := q.ActiveOrder(); got == nil || got.ID != "s1" {
		t.Fatalf("active order not restored: %v", got)
	}
}
