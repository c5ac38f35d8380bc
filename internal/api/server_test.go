package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/courier-city/internal/city"
	"github.com/talgya/courier-city/internal/engine"
	"github.com/talgya/courier-city/internal/orders"
	"github.com/talgya/courier-city/internal/weather"
)

func testSession(t *testing.T) *engine.Session {
	t.Helper()
	rows := []string{
		"........",
		"........",
		"........",
	}
	legend := map[rune]city.TileInfo{
		'.': {Name: "street", SurfaceWeight: 1.0},
	}
	grid, err := city.New("api-test", rows, legend, 500)
	if err != nil {
		t.Fatal(err)
	}
	seed := weather.Seed{
		City:    "api-test",
		Initial: weather.Clear,
		Transitions: map[weather.Condition]map[weather.Condition]float64{
			weather.Clear: {weather.Clear: 1.0},
		},
	}
	jobs := []*orders.Order{
		{ID: "j1", State: orders.Available, Pickup: city.Coord{X: 1, Y: 0}, Dropoff: city.Coord{X: 3, Y: 0}, Payout: 60, Weight: 1, Priority: 1},
	}
	s, err := engine.NewSession(grid, seed, jobs, engine.Options{
		Player: "tester",
		Start:  city.Coord{X: 0, Y: 0},
		LimitS: 600,
		Seed:   7,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func testServer(t *testing.T, adminKey string) (*httptest.Server, *engine.Session) {
	t.Helper()
	sess := testSession(t)
	api := &Server{Session: sess, AdminKey: adminKey}
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return ts, sess
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts, sess := testServer(t, "")
	sess.Tick(1.5)

	var status map[string]any
	getJSON(t, ts.URL+"/api/v1/status", &status)

	if status["player"] != "tester" {
		t.Fatalf("player = %v", status["player"])
	}
	if got := status["elapsed_s"].(float64); got != 1.5 {
		t.Fatalf("elapsed_s = %v", got)
	}
	wx, ok := status["weather"].(map[string]any)
	if !ok || wx["condition"] != "clear" {
		t.Fatalf("weather = %v", status["weather"])
	}
}

func TestOrdersAndCourierEndpoints(t *testing.T) {
	ts, sess := testServer(t, "")
	sess.Tick(0.1)

	var ordersResp struct {
		Orders []orders.Order `json:"orders"`
		Cursor int            `json:"cursor"`
	}
	getJSON(t, ts.URL+"/api/v1/orders", &ordersResp)
	if len(ordersResp.Orders) != 1 || ordersResp.Orders[0].ID != "j1" {
		t.Fatalf("orders = %+v", ordersResp.Orders)
	}

	var courierResp struct {
		Speed         float64 `json:"speed"`
		CarriedWeight float64 `json:"carried_weight"`
	}
	getJSON(t, ts.URL+"/api/v1/courier", &courierResp)
	if courierResp.Speed != 3.0 {
		t.Fatalf("speed = %v, want 3.0", courierResp.Speed)
	}
}

func TestMapEndpoint(t *testing.T) {
	ts, _ := testServer(t, "")

	var m struct {
		Name   string   `json:"name"`
		Width  int      `json:"width"`
		Height int      `json:"height"`
		Rows   []string `json:"rows"`
	}
	getJSON(t, ts.URL+"/api/v1/map", &m)
	if m.Name != "api-test" || m.Width != 8 || m.Height != 3 {
		t.Fatalf("map header = %+v", m)
	}
	if len(m.Rows) != 3 || m.Rows[0] != "........" {
		t.Fatalf("rows = %v", m.Rows)
	}
}

func TestEventsLimitValidation(t *testing.T) {
	ts, _ := testServer(t, "")

	resp, err := http.Get(ts.URL + "/api/v1/events?limit=9999")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminAuth(t *testing.T) {
	ts, sess := testServer(t, "secret")

	// GET is not accepted on control endpoints.
	resp, err := http.Get(ts.URL + "/api/v1/pause")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET pause: status %d, want 405", resp.StatusCode)
	}

	// POST without a token is rejected.
	resp, err = http.Post(ts.URL+"/api/v1/pause", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated pause: status %d, want 401", resp.StatusCode)
	}
	if sess.Paused() {
		t.Fatal("session paused by rejected request")
	}

	// POST with the right bearer token pauses the clock.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/pause", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated pause: status %d", resp.StatusCode)
	}
	if !sess.Paused() {
		t.Fatal("session not paused")
	}
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	ts, _ := testServer(t, "")

	resp, err := http.Post(ts.URL+"/api/v1/resume", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestSnapshotRequiresDB(t *testing.T) {
	ts, _ := testServer(t, "secret")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/snapshot", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestStreamPushesState(t *testing.T) {
	ts, sess := testServer(t, "")
	sess.Tick(2.0)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame struct {
		Type  string        `json:"type"`
		State *engine.State `json:"state"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "state" || frame.State == nil {
		t.Fatalf("frame = %+v", frame)
	}
	if frame.State.Elapsed != 2.0 {
		t.Fatalf("streamed elapsed = %v, want 2.0", frame.State.Elapsed)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("third request should be limited")
	}
	if rl.Allow("10.0.0.2") != true {
		t.Fatal("other clients are independent")
	}
	if rl.RetryAfter("10.0.0.1") <= 0 {
		t.Fatal("RetryAfter should be positive for a limited client")
	}
}
