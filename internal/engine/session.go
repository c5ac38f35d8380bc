package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/courier-city/internal/bot"
	"github.com/talgya/courier-city/internal/city"
	"github.com/talgya/courier-city/internal/courier"
	"github.com/talgya/courier-city/internal/economy"
	"github.com/talgya/courier-city/internal/entropy"
	"github.com/talgya/courier-city/internal/orders"
	"github.com/talgya/courier-city/internal/weather"
)

// Outcome tags how a session ended. Terminal states, not errors.
type Outcome string

const (
	OutcomeNone            Outcome = ""
	OutcomeTimeUp          Outcome = "time_up"
	OutcomeReputationFloor Outcome = "reputation_floor"
	OutcomeGoalReached     Outcome = "goal_reached"
	OutcomeNoJobsLeft      Outcome = "no_jobs_left"
)

var (
	ErrPaused   = errors.New("session is paused")
	ErrGameOver = errors.New("session is over")
)

// BotSpec configures one autonomous courier at session start.
type BotSpec struct {
	Name  string
	Tier  bot.Tier
	Start city.Coord
}

// Options are the session settings beyond the static data files.
type Options struct {
	Player string
	Start  city.Coord
	LimitS float64
	Seed   int64
	Bots   []BotSpec
}

// Session is one game: the explicit root object every component hangs
// off. It implements the read-only clock the bots consume.
type Session struct {
	mu sync.RWMutex

	log  *slog.Logger
	grid *city.Map
	wx   *weather.Model
	rng  *entropy.Source

	human    *courier.Courier
	humanInv *orders.Inventory
	bots     []*bot.Bot
	board    *economy.Scoreboard
	events   *EventLog

	elapsed float64
	limit   float64
	paused  bool
	over    bool
	outcome Outcome
}

// NewSession wires a session from loaded data. Each agent receives its
// own copy of the job list so order mutation is never shared.
func NewSession(grid *city.Map, wseed weather.Seed, jobs []*orders.Order, opts Options, log *slog.Logger) (*Session, error) {
	if opts.LimitS <= 0 {
		opts.LimitS = 600
	}
	rng := entropy.NewSource(opts.Seed)
	wx, err := weather.New(wseed, rng)
	if err != nil {
		return nil, fmt.Errorf("weather model: %w", err)
	}

	s := &Session{
		log:    log,
		grid:   grid,
		wx:     wx,
		rng:    rng,
		board:  economy.NewScoreboard(opts.Player),
		events: NewEventLog(),
		limit:  opts.LimitS,
	}
	s.humanInv = orders.NewInventory(cloneJobs(jobs))
	s.human = courier.New(opts.Player, opts.Start, grid, wx, s.humanInv, log)
	s.human.ResetDailyReputation()

	for i, spec := range opts.Bots {
		inv := orders.NewInventory(cloneJobs(jobs))
		c := courier.New(spec.Name, spec.Start, grid, wx, inv, log)
		c.ResetDailyReputation()
		botRNG := entropy.NewSource(opts.Seed + int64(i) + 1)
		s.bots = append(s.bots, bot.New(spec.Name, spec.Tier, c, inv, grid, wx, botRNG, s, log))
	}
	return s, nil
}

// cloneJobs gives an agent private order instances.
func cloneJobs(jobs []*orders.Order) []*orders.Order {
	out := make([]*orders.Order, len(jobs))
	for i, o := range jobs {
		dup := *o
		out[i] = &dup
	}
	return out
}

// Clock interface consumed by bots and the API.

func (s *Session) Elapsed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elapsed
}

func (s *Session) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *Session) Goal() float64 { return s.grid.Goal }

func (s *Session) Remaining() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.limit - s.elapsed
	if r < 0 {
		return 0
	}
	return r
}

// GameOver returns the outcome once the session has ended.
func (s *Session) GameOver() (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome, s.over
}

func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused && !s.over {
		s.paused = true
		s.log.Info("session paused", "elapsed", s.elapsed)
	}
}

func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		s.paused = false
		s.log.Info("session resumed", "elapsed", s.elapsed)
	}
}

// Tick advances the session by dt simulated seconds. Pause freezes the
// clock and every timer without losing accrued fractions.
func (s *Session) Tick(dt float64) {
	s.mu.Lock()
	if s.over {
		s.mu.Unlock()
		return
	}
	paused := s.paused
	if !paused {
		s.elapsed += dt
	}
	elapsed := s.elapsed
	s.mu.Unlock()

	s.human.Update(dt, paused)
	if paused {
		return
	}

	s.wx.Advance(dt)
	s.humanInv.Release(elapsed)
	for _, o := range s.humanInv.ExpireSweep(elapsed) {
		s.emit(elapsed, "job_expired", fmt.Sprintf("job %s expired unaccepted", o.ID))
	}
	for _, o := range s.human.SweepCargo(elapsed) {
		s.board.RecordLost()
		s.emit(elapsed, "package_lost", fmt.Sprintf("%s lost package %s", s.human.Name(), o.ID))
	}
	for _, b := range s.bots {
		b.Inventory().Release(elapsed)
		b.Inventory().ExpireSweep(elapsed)
	}
	s.checkGameOver(elapsed)
}

func (s *Session) checkGameOver(elapsed float64) {
	switch {
	case s.board.Money() >= s.grid.Goal:
		s.finish(elapsed, OutcomeGoalReached)
	case s.human.GameOverByReputation():
		s.finish(elapsed, OutcomeReputationFloor)
	case elapsed >= s.limit:
		s.finish(elapsed, OutcomeTimeUp)
	case s.humanInv.ActiveDone():
		s.finish(elapsed, OutcomeNoJobsLeft)
	}
}

func (s *Session) finish(elapsed float64, outcome Outcome) {
	s.mu.Lock()
	if s.over {
		s.mu.Unlock()
		return
	}
	s.over = true
	s.outcome = outcome
	s.mu.Unlock()
	s.emit(elapsed, "game_over", string(outcome))
	s.log.Info("session over", "outcome", string(outcome),
		"elapsed", elapsed, "summary", s.board.Summary(s.human.ReputationValue()))
}

func (s *Session) emit(elapsed float64, kind, msg string) {
	s.events.Add(Event{TimeS: elapsed, Kind: kind, Message: msg})
}

// StartBots launches every bot's decision loop.
func (s *Session) StartBots() {
	for _, b := range s.bots {
		b.Start()
	}
}

// StopBots requests a cooperative stop with a bounded join, reporting
// whether every bot exited in time.
func (s *Session) StopBots(timeout time.Duration) bool {
	all := true
	for _, b := range s.bots {
		if !b.Stop(timeout) {
			all = false
		}
	}
	return all
}

// Human agent operations, used by the input layer and the API.

func (s *Session) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.over {
		return ErrGameOver
	}
	if s.paused {
		return ErrPaused
	}
	return nil
}

func (s *Session) MoveHuman(dx, dy int) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.human.Move(dx, dy)
}

// AcceptSelectedJob accepts the order under the jobs-panel cursor.
func (s *Session) AcceptSelectedJob() (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	elapsed := s.Elapsed()
	o := s.humanInv.Selected(elapsed)
	if o == nil {
		return "", orders.ErrNoSelection
	}
	toast, err := s.human.AcceptOrder(o, elapsed)
	if err == nil {
		s.emit(elapsed, "job_accepted", fmt.Sprintf("%s accepted %s", s.human.Name(), o.ID))
	}
	return toast, err
}

func (s *Session) PickupHuman() (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	elapsed := s.Elapsed()
	o, toast, err := s.human.PickupHere(elapsed)
	if err == nil {
		s.emit(elapsed, "package_pickup", fmt.Sprintf("%s picked up %s", s.human.Name(), o.ID))
	}
	return toast, err
}

func (s *Session) DeliverHuman() (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	elapsed := s.Elapsed()
	o, payout, toast, err := s.human.DeliverHere(elapsed)
	if err != nil {
		return "", err
	}
	s.board.RecordDelivery(payout, o.Overtime(elapsed) > 0)
	s.emit(elapsed, "package_delivered", fmt.Sprintf("%s delivered %s for $%.2f", s.human.Name(), o.ID, payout))
	s.checkGameOver(elapsed)
	return toast, nil
}

func (s *Session) CancelHuman() (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	elapsed := s.Elapsed()
	o, toast, err := s.human.CancelActive(elapsed)
	if err != nil {
		return "", err
	}
	s.board.RecordCancelled()
	s.emit(elapsed, "job_cancelled", fmt.Sprintf("%s cancelled %s", s.human.Name(), o.ID))
	s.checkGameOver(elapsed)
	return toast, nil
}

// Read accessors for the API layer.

func (s *Session) Human() *courier.Courier           { return s.human }
func (s *Session) HumanInventory() *orders.Inventory { return s.humanInv }
func (s *Session) Bots() []*bot.Bot                  { return s.bots }
func (s *Session) Weather() *weather.Model           { return s.wx }
func (s *Session) Map() *city.Map                    { return s.grid }
func (s *Session) Scoreboard() *economy.Scoreboard   { return s.board }
func (s *Session) Events() *EventLog                 { return s.events }

// FinalSummary renders the end screen line.
func (s *Session) FinalSummary() string {
	return s.board.Summary(s.human.ReputationValue())
}
