// Package persistence provides SQLite-based save games and the high
// score table.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/courier-city/internal/engine"
)

// ErrNoSnapshot is returned when no save exists yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// DB wraps a SQLite connection for session persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		elapsed_s REAL NOT NULL,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scores (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		player TEXT NOT NULL,
		money REAL NOT NULL,
		reputation REAL NOT NULL,
		score REAL NOT NULL,
		rank TEXT NOT NULL,
		outcome TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
	CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSnapshot stores a full session state and returns its id.
func (db *DB) SaveSnapshot(st engine.State) (string, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO snapshots (id, created_at, elapsed_s, state_json) VALUES (?, ?, ?, ?)",
		id, time.Now().Unix(), st.Elapsed, string(data),
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// LoadLatestSnapshot returns the most recently saved session state.
func (db *DB) LoadLatestSnapshot() (engine.State, error) {
	var raw string
	err := db.conn.Get(&raw,
		"SELECT state_json FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return engine.State{}, ErrNoSnapshot
	}
	if err != nil {
		return engine.State{}, fmt.Errorf("load snapshot: %w", err)
	}
	var st engine.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return engine.State{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return st, nil
}

// LoadSnapshot returns one saved state by id.
func (db *DB) LoadSnapshot(id string) (engine.State, error) {
	var raw string
	err := db.conn.Get(&raw, "SELECT state_json FROM snapshots WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.State{}, ErrNoSnapshot
	}
	if err != nil {
		return engine.State{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	var st engine.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return engine.State{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return st, nil
}

// PruneSnapshots keeps only the newest n snapshots.
func (db *DB) PruneSnapshots(n int) error {
	_, err := db.conn.Exec(`DELETE FROM snapshots WHERE id NOT IN
		(SELECT id FROM snapshots ORDER BY created_at DESC, id DESC LIMIT ?)`, n)
	return err
}

// ScoreRow is one finished game on the high score table.
type ScoreRow struct {
	ID         string  `db:"id" json:"id"`
	CreatedAt  int64   `db:"created_at" json:"created_at"`
	Player     string  `db:"player" json:"player"`
	Money      float64 `db:"money" json:"money"`
	Reputation float64 `db:"reputation" json:"reputation"`
	Score      float64 `db:"score" json:"score"`
	Rank       string  `db:"rank" json:"rank"`
	Outcome    string  `db:"outcome" json:"outcome"`
}

// SaveScore records a finished game.
func (db *DB) SaveScore(row ScoreRow) (string, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt == 0 {
		row.CreatedAt = time.Now().Unix()
	}
	_, err := db.conn.NamedExec(`INSERT INTO scores
		(id, created_at, player, money, reputation, score, rank, outcome)
		VALUES (:id, :created_at, :player, :money, :reputation, :score, :rank, :outcome)`, row)
	if err != nil {
		return "", fmt.Errorf("insert score: %w", err)
	}
	return row.ID, nil
}

// HighScores returns the top n games by score.
func (db *DB) HighScores(n int) ([]ScoreRow, error) {
	var rows []ScoreRow
	err := db.conn.Select(&rows,
		"SELECT * FROM scores ORDER BY score DESC, created_at ASC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("load high scores: %w", err)
	}
	return rows, nil
}
