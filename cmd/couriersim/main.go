// Command couriersim runs a courier-city delivery session: one human
// courier controlled over the HTTP API, plus autonomous rival bots.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/courier-city/internal/api"
	"github.com/talgya/courier-city/internal/bot"
	"github.com/talgya/courier-city/internal/config"
	"github.com/talgya/courier-city/internal/economy"
	"github.com/talgya/courier-city/internal/engine"
	"github.com/talgya/courier-city/internal/persistence"
)

const botStopTimeout = 5 * time.Second

func main() {
	dataDir := flag.String("data", "data", "directory holding city.yaml, jobs.yaml, weather.yaml, game.yaml")
	resume := flag.Bool("resume", false, "restore the latest saved snapshot before starting")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// ── Configuration ────────────────────────────────────────────────
	gf, err := config.LoadGame(filepath.Join(*dataDir, "game.yaml"))
	if err != nil {
		fatal("loading game config", err)
	}
	grid, start, err := config.LoadCity(filepath.Join(*dataDir, "city.yaml"))
	if err != nil {
		fatal("loading city", err)
	}
	jobs, err := config.LoadJobs(filepath.Join(*dataDir, "jobs.yaml"), grid)
	if err != nil {
		fatal("loading jobs", err)
	}
	wseed, err := config.LoadWeather(filepath.Join(*dataDir, "weather.yaml"))
	if err != nil {
		fatal("loading weather", err)
	}

	specs := make([]engine.BotSpec, 0, len(gf.Bots))
	for _, b := range gf.Bots {
		tier, err := bot.ParseTier(b.Tier)
		if err != nil {
			fatal("bot config", err)
		}
		specs = append(specs, engine.BotSpec{Name: b.Name, Tier: tier, Start: b.Start.Coord()})
	}

	slog.Info("configuration loaded",
		"city", grid.Name,
		"size", fmt.Sprintf("%dx%d", grid.Width, grid.Height),
		"jobs", len(jobs),
		"bots", len(specs),
		"duration_s", gf.DurationS,
	)

	// ── Database ─────────────────────────────────────────────────────
	var db *persistence.DB
	if gf.DBPath != "" {
		os.MkdirAll(filepath.Dir(gf.DBPath), 0755)
		db, err = persistence.Open(gf.DBPath)
		if err != nil {
			fatal("opening database", err)
		}
		defer db.Close()
		slog.Info("database opened", "path", gf.DBPath)
	} else {
		slog.Warn("db_path not set, snapshots and scores disabled")
	}

	// ── Session ──────────────────────────────────────────────────────
	sess, err := engine.NewSession(grid, wseed, jobs, engine.Options{
		Player: gf.Player,
		Start:  start,
		LimitS: gf.DurationS,
		Seed:   gf.Seed,
		Bots:   specs,
	}, logger)
	if err != nil {
		fatal("building session", err)
	}

	if *resume {
		if db == nil {
			fatal("resume", errors.New("resume requires db_path in game.yaml"))
		}
		st, err := db.LoadLatestSnapshot()
		switch {
		case errors.Is(err, persistence.ErrNoSnapshot):
			slog.Info("no snapshot found, starting fresh")
		case err != nil:
			fatal("loading snapshot", err)
		default:
			if err := sess.Restore(st); err != nil {
				fatal("restoring snapshot", err)
			}
			slog.Info("session restored", "elapsed_s", st.Elapsed)
		}
	}

	// ── HTTP API ─────────────────────────────────────────────────────
	adminKey := gf.AdminToken
	if env := os.Getenv("COURIER_ADMIN_KEY"); env != "" {
		adminKey = env
	}
	if adminKey == "" {
		slog.Warn("no admin token set, control endpoints disabled")
	}

	apiServer := &api.Server{
		Session:  sess,
		DB:       db,
		Addr:     gf.ListenAddr,
		AdminKey: adminKey,
	}
	apiServer.Start()

	// ── Run ──────────────────────────────────────────────────────────
	loop := engine.NewLoop(func(dt float64) {
		sess.Tick(dt)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		loop.Stop()
	}()

	// End the wall-clock loop once the session reaches an outcome.
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if _, over := sess.GameOver(); over {
				loop.Stop()
				return
			}
		}
	}()

	fmt.Printf("%s is on shift in %s. API: http://localhost%s/api/v1/status\n",
		gf.Player, grid.Name, gf.ListenAddr)
	fmt.Println("Running... (Ctrl+C to stop)")

	sess.StartBots()
	loop.Run()

	// ── Shutdown ─────────────────────────────────────────────────────
	if !sess.StopBots(botStopTimeout) {
		slog.Warn("some bots did not stop in time")
	}
	apiServer.Close()

	if db != nil {
		st := sess.Snapshot()
		if id, err := db.SaveSnapshot(st); err != nil {
			slog.Error("final snapshot failed", "error", err)
		} else {
			slog.Info("snapshot saved", "id", id, "elapsed_s", st.Elapsed)
			if err := db.PruneSnapshots(10); err != nil {
				slog.Error("snapshot prune failed", "error", err)
			}
		}
	}

	if outcome, over := sess.GameOver(); over {
		board := sess.Scoreboard()
		rep := sess.Human().ReputationValue()
		score := board.FinalScore(rep)
		if db != nil {
			_, err := db.SaveScore(persistence.ScoreRow{
				Player:     board.Player(),
				Money:      board.Money(),
				Reputation: rep,
				Score:      score,
				Rank:       economy.Rank(score),
				Outcome:    string(outcome),
			})
			if err != nil {
				slog.Error("score save failed", "error", err)
			}
		}
		fmt.Println(sess.FinalSummary())
	} else {
		fmt.Println("Session interrupted. State saved.")
	}
}

func fatal(what string, err error) {
	slog.Error(what, "error", err)
	os.Exit(1)
}
