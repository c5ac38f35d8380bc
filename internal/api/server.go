// Package api serves the running delivery session over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/courier-city/internal/courier"
	"github.com/talgya/courier-city/internal/engine"
	"github.com/talgya/courier-city/internal/persistence"
)

const (
	maxStreamConns = 4
	streamInterval = 500 * time.Millisecond
)

// Server exposes a Session over HTTP plus a websocket state stream.
type Server struct {
	Session  *engine.Session
	DB       *persistence.DB // optional; nil disables /scores and snapshot saving
	Addr     string
	AdminKey string // bearer token for POST endpoints; empty = POST disabled

	streamConns int32
	upgrader    websocket.Upgrader
	srv         *http.Server
}

// Handler builds the routed handler. Exposed so tests can mount it on
// an httptest server; Start wires it to a real listener.
func (s *Server) Handler() http.Handler {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	scoresLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/courier", s.handleCourier)
	mux.HandleFunc("/api/v1/orders", s.handleOrders)
	mux.HandleFunc("/api/v1/bots", s.handleBots)
	mux.HandleFunc("/api/v1/map", s.handleMap)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/scores", scoresLimiter.Wrap(s.handleScores))

	// Websocket state stream.
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoints (POST, bearer token).
	mux.HandleFunc("/api/v1/pause", s.adminOnly(s.handlePause))
	mux.HandleFunc("/api/v1/resume", s.adminOnly(s.handleResume))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{Addr: s.Addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Close shuts the listener down.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

// corsMiddleware admits localhost dev frontends plus any origins named
// in the COURIER_CORS_ORIGINS env var (comma-separated).
func corsMiddleware(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("COURIER_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowed[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly restricts a handler to authenticated POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.Session
	wx := sess.Weather()
	outcome, over := sess.GameOver()

	writeJSON(w, map[string]any{
		"player":      sess.Scoreboard().Player(),
		"city":        sess.Map().Name,
		"elapsed_s":   sess.Elapsed(),
		"remaining_s": sess.Remaining(),
		"paused":      sess.Paused(),
		"over":        over,
		"outcome":     outcome,
		"goal":        sess.Goal(),
		"money":       sess.Scoreboard().Money(),
		"bots":        len(sess.Bots()),
		"events":      sess.Events().Total(),
		"weather": map[string]any{
			"condition":     wx.Condition(),
			"intensity":     wx.Intensity(),
			"next_change_s": wx.TimeToNextChange(),
		},
	})
}

func (s *Server) handleCourier(w http.ResponseWriter, r *http.Request) {
	human := s.Session.Human()
	snap := human.Snapshot()

	writeJSON(w, map[string]any{
		"courier":        snap,
		"speed":          human.Speed(),
		"carried_weight": human.CarriedWeight(),
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	inv := s.Session.HumanInventory()
	cursor, scroll := inv.Cursor()

	writeJSON(w, map[string]any{
		"orders": inv.Snapshot(),
		"cursor": cursor,
		"scroll": scroll,
	})
}

func (s *Server) handleBots(w http.ResponseWriter, r *http.Request) {
	type botSummary struct {
		Name       string             `json:"name"`
		Tier       string             `json:"tier"`
		Pos        [2]int             `json:"pos"`
		Stamina    float64            `json:"stamina"`
		Resistance courier.Resistance `json:"resistance"`
		Money      float64            `json:"money"`
		Reputation float64            `json:"reputation"`
		Stuck      bool               `json:"stuck"`
		Active     []string           `json:"active"`
	}

	bots := s.Session.Bots()
	result := make([]botSummary, 0, len(bots))
	for _, b := range bots {
		c := b.Courier()
		pos := c.Pos()
		active := make([]string, 0)
		for _, o := range c.ActiveOrders() {
			active = append(active, o.ID)
		}
		result = append(result, botSummary{
			Name:       b.Name(),
			Tier:       string(b.Tier()),
			Pos:        [2]int{pos.X, pos.Y},
			Stamina:    c.Stamina(),
			Resistance: c.Resistance(),
			Money:      c.Money(),
			Reputation: c.ReputationValue(),
			Stuck:      b.Stuck(),
			Active:     active,
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	grid := s.Session.Map()

	rows := make([]string, grid.Height)
	for y := 0; y < grid.Height; y++ {
		var sb strings.Builder
		for x := 0; x < grid.Width; x++ {
			sb.WriteRune(grid.Tile(x, y))
		}
		rows[y] = sb.String()
	}

	legend := make(map[string]any)
	for _, row := range rows {
		for _, t := range row {
			key := string(t)
			if _, seen := legend[key]; seen {
				continue
			}
			if info, ok := grid.Legend(t); ok {
				legend[key] = info
			}
		}
	}

	writeJSON(w, map[string]any{
		"name":   grid.Name,
		"width":  grid.Width,
		"height": grid.Height,
		"goal":   grid.Goal,
		"rows":   rows,
		"legend": legend,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 256 {
			http.Error(w, "limit must be 1..256", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, s.Session.Events().Recent(limit))
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeJSON(w, []persistence.ScoreRow{})
		return
	}
	rows, err := s.DB.HighScores(10)
	if err != nil {
		slog.Error("high scores query failed", "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.Session.Pause()
	writeJSON(w, map[string]any{"paused": s.Session.Paused()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.Session.Resume()
	writeJSON(w, map[string]any{"paused": s.Session.Paused()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}
	st := s.Session.Snapshot()
	id, err := s.DB.SaveSnapshot(st)
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	slog.Info("snapshot saved", "id", id, "elapsed_s", st.Elapsed)
	writeJSON(w, map[string]any{"id": id, "elapsed_s": st.Elapsed})
}

// streamFrame is one websocket push: either a full state frame or a
// batch of new events.
type streamFrame struct {
	Type   string         `json:"type"`
	State  *engine.State  `json:"state,omitempty"`
	Events []engine.Event `json:"events,omitempty"`
}

// handleStream upgrades to a websocket and pushes the session state
// every streamInterval, interleaved with newly logged events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.streamConns) >= maxStreamConns {
		http.Error(w, "too many stream clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	atomic.AddInt32(&s.streamConns, 1)
	defer atomic.AddInt32(&s.streamConns, -1)
	defer conn.Close()

	slog.Info("stream client connected", "remote", r.RemoteAddr)

	// Reader goroutine: we ignore client messages but need the read
	// pump to observe close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	lastTotal := 0
	for {
		select {
		case <-closed:
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			st := s.Session.Snapshot()
			if err := conn.WriteJSON(streamFrame{Type: "state", State: &st}); err != nil {
				return
			}
			total := s.Session.Events().Total()
			if fresh := total - lastTotal; fresh > 0 {
				if fresh > 64 {
					fresh = 64
				}
				frame := streamFrame{Type: "events", Events: s.Session.Events().Recent(fresh)}
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			}
			lastTotal = total
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}
