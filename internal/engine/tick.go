// Package engine provides the game session and its fixed-interval
// simulation loop.
package engine

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultTickInterval is the simulation frame cadence.
const DefaultTickInterval = 50 * time.Millisecond

// Loop drives a session forward at a fixed wall-clock interval,
// reporting simulated seconds to the tick callback.
type Loop struct {
	Interval time.Duration
	OnTick   func(dt float64)

	running atomic.Bool
}

func NewLoop(onTick func(dt float64)) *Loop {
	return &Loop{Interval: DefaultTickInterval, OnTick: onTick}
}

// Run blocks until Stop is called, invoking OnTick once per interval.
// A slow tick borrows from the next sleep rather than skipping frames.
func (l *Loop) Run() {
	l.running.Store(true)
	dt := l.Interval.Seconds()
	slog.Info("simulation loop started", "interval", l.Interval)

	for l.running.Load() {
		start := time.Now()
		l.OnTick(dt)
		if spent := time.Since(start); spent < l.Interval {
			time.Sleep(l.Interval - spent)
		}
	}
	slog.Info("simulation loop stopped")
}

// Stop halts the loop after the current tick.
func (l *Loop) Stop() {
	l.running.Store(false)
}
