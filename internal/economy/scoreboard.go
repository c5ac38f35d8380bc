// Package economy tracks earnings, delivery statistics, and the final
// performance score.
package economy

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
)

// Stats are the delivery counters feeding the final score.
type Stats struct {
	Successful int `json:"successful"`
	Late       int `json:"late"`
	Lost       int `json:"lost"`
	Cancelled  int `json:"cancelled"`
}

// Scoreboard accumulates one player's earnings and outcomes over a
// game. Safe for concurrent use; the session and the API both read it.
type Scoreboard struct {
	mu     sync.Mutex
	player string
	money  float64
	stats  Stats
}

func NewScoreboard(player string) *Scoreboard {
	return &Scoreboard{player: player}
}

func (s *Scoreboard) Player() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

func (s *Scoreboard) Money() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.money
}

func (s *Scoreboard) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RecordDelivery credits a completed delivery; late still pays but
// counts against the score.
func (s *Scoreboard) RecordDelivery(payout float64, late bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.money += payout
	s.stats.Successful++
	if late {
		s.stats.Late++
	}
}

func (s *Scoreboard) RecordLost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Lost++
}

func (s *Scoreboard) RecordCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Cancelled++
}

// State is the serializable scoreboard for snapshots.
type State struct {
	Player string  `json:"player"`
	Money  float64 `json:"money"`
	Stats  Stats   `json:"stats"`
}

func (s *Scoreboard) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Player: s.player, Money: s.money, Stats: s.stats}
}

func (s *Scoreboard) RestoreState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = st.Player
	s.money = st.Money
	s.stats = st.Stats
}

// FinalScore combines money, reputation, and outcome counters:
// money + 10x reputation, +50 per delivery, -25 per late, -50 per
// lost, floored at zero.
func (s *Scoreboard) FinalScore(reputation float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	score := s.money + reputation*10 +
		float64(s.stats.Successful)*50 -
		float64(s.stats.Late)*25 -
		float64(s.stats.Lost)*50
	if score < 0 {
		return 0
	}
	return score
}

// Rank letters are thresholds on the final score.
func Rank(score float64) string {
	switch {
	case score >= 2000:
		return "S"
	case score >= 1500:
		return "A"
	case score >= 1000:
		return "B"
	case score >= 500:
		return "C"
	default:
		return "D"
	}
}

// Summary renders the end-of-game line shown to the player.
func (s *Scoreboard) Summary(reputation float64) string {
	score := s.FinalScore(reputation)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%s: $%s earned, %s, %d late, %d lost, score %s (rank %s)",
		s.player,
		humanize.CommafWithDigits(s.money, 2),
		english(s.stats.Successful, "delivery", "deliveries"),
		s.stats.Late,
		s.stats.Lost,
		humanize.CommafWithDigits(score, 0),
		Rank(score))
}

func english(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
