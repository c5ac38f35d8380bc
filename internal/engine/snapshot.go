package engine

import (
	"fmt"

	"github.com/talgya/courier-city/internal/courier"
	"github.com/talgya/courier-city/internal/economy"
	"github.com/talgya/courier-city/internal/orders"
	"github.com/talgya/courier-city/internal/weather"
)

// BotState captures one bot's full state for persistence.
type BotState struct {
	Name    string           `json:"name"`
	Tier    string           `json:"tier"`
	Courier courier.Snapshot `json:"courier"`
	Orders  []orders.Order   `json:"orders"`
}

// State is the whole-session export: everything needed to resume a
// game. Opaque JSON to callers.
type State struct {
	Elapsed float64 `json:"elapsed"`
	Limit   float64 `json:"limit"`
	Paused  bool    `json:"paused"`
	Over    bool    `json:"over"`
	Outcome Outcome `json:"outcome"`

	Weather weather.State    `json:"weather"`
	Human   courier.Snapshot `json:"human"`
	Jobs    []orders.Order   `json:"jobs"`
	Board   economy.State    `json:"board"`
	Bots    []BotState       `json:"bots"`
}

// Snapshot exports the full session state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	st := State{
		Elapsed: s.elapsed,
		Limit:   s.limit,
		Paused:  s.paused,
		Over:    s.over,
		Outcome: s.outcome,
	}
	s.mu.RUnlock()

	st.Weather = s.wx.Snapshot()
	st.Human = s.human.Snapshot()
	st.Jobs = s.humanInv.Snapshot()
	st.Board = s.board.State()
	for _, b := range s.bots {
		st.Bots = append(st.Bots, BotState{
			Name:    b.Name(),
			Tier:    string(b.Tier()),
			Courier: b.Courier().Snapshot(),
			Orders:  b.Inventory().Snapshot(),
		})
	}
	return st
}

// Restore loads a snapshot into this session. The session must have
// been built from the same data files; bots are matched by name and a
// mismatch is an error. Bots must be stopped while restoring.
func (s *Session) Restore(st State) error {
	byName := map[string]BotState{}
	for _, bs := range st.Bots {
		byName[bs.Name] = bs
	}
	for _, b := range s.bots {
		bs, ok := byName[b.Name()]
		if !ok {
			return fmt.Errorf("snapshot has no state for bot %q", b.Name())
		}
		if bs.Tier != string(b.Tier()) {
			return fmt.Errorf("bot %q tier changed: snapshot %s, session %s", b.Name(), bs.Tier, b.Tier())
		}
	}

	s.mu.Lock()
	s.elapsed = st.Elapsed
	s.limit = st.Limit
	s.paused = st.Paused
	s.over = st.Over
	s.outcome = st.Outcome
	s.mu.Unlock()

	s.wx.Restore(st.Weather)
	s.humanInv.RestoreStates(st.Jobs)
	s.human.Restore(st.Human)
	s.board.RestoreState(st.Board)
	for _, b := range s.bots {
		bs := byName[b.Name()]
		b.Inventory().RestoreStates(bs.Orders)
		b.Courier().Restore(bs.Courier)
	}
	return nil
}
