package engine

import "sync"

// Event is one observable moment in a session, surfaced over the API
// and its live stream.
type Event struct {
	TimeS   float64 `json:"time_s"`
	Kind    string  `json:"kind"`
	Message string  `json:"message"`
}

// eventCap bounds the ring; old events fall off.
const eventCap = 256

// EventLog is a bounded ring of session events, safe for concurrent
// append and read.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	total  int
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	l.total++
	if len(l.events) > eventCap {
		l.events = l.events[len(l.events)-eventCap:]
	}
}

// Recent returns up to n of the newest events, oldest first.
func (l *EventLog) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Total is the count of events ever logged, including evicted ones.
func (l *EventLog) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
