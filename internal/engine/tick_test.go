package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsAndStops(t *testing.T) {
	var ticks atomic.Int64
	l := NewLoop(func(dt float64) {
		if dt <= 0 {
			t.Errorf("non-positive dt %.3f", dt)
		}
		ticks.Add(1)
	})
	l.Interval = 5 * time.Millisecond

	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	l.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	if ticks.Load() == 0 {
		t.Fatal("loop never ticked")
	}
}

func TestEventLogRingEviction(t *testing.T) {
	l := NewEventLog()
	for i := 0; i < eventCap+10; i++ {
		l.Add(Event{TimeS: float64(i), Kind: "tick"})
	}
	if l.Total() != eventCap+10 {
		t.Fatalf("total %d, want %d", l.Total(), eventCap+10)
	}
	recent := l.Recent(eventCap + 100)
	if len(recent) != eventCap {
		t.Fatalf("ring holds %d, want %d", len(recent), eventCap)
	}
	if recent[len(recent)-1].TimeS != float64(eventCap+9) {
		t.Fatal("newest event missing from ring")
	}
}
