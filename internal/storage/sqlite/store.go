// Package sqlite persists completed runs. One row per run, with the full
// response envelope stored as JSON for replay through GET /api/runs/{id}.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/unicc-ai/testbridge/internal/domain"
)

// ErrNotFound is returned when a run id has no stored row.
var ErrNotFound = errors.New("run not found")

// RunSummary is the listing projection of one stored run.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Agent      string    `json:"agent"`
	Suites     []string  `json:"suites"`
	Score      float64   `json:"score"`
	Mode       string    `json:"mode"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store is the SQLite run store.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the run database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL,
			suites TEXT NOT NULL,
			score REAL NOT NULL,
			mode TEXT NOT NULL,
			response TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_agent ON runs(agent)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Save persists one completed run.
func (s *Store) Save(ctx context.Context, resp *domain.RunResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", resp.RunID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, agent, suites, score, mode, response, started_at, finished_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resp.RunID,
		resp.Agent,
		strings.Join(resp.TestSuite.Values(), ","),
		resp.Score,
		resp.Raw.Extras.ExecutionMode,
		string(payload),
		resp.StartedAt.Time(),
		resp.FinishedAt.Time(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", resp.RunID, err)
	}
	return nil
}

// List returns stored run summaries, newest first, capped at limit. A
// limit of zero or less selects the default page size of 50.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, suites, score, mode, started_at, finished_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var suites string
		if err := rows.Scan(&r.RunID, &r.Agent, &suites, &r.Score, &r.Mode, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if suites != "" {
			r.Suites = strings.Split(suites, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the stored response envelope for one run id.
func (s *Store) Get(ctx context.Context, runID string) (*domain.RunResponse, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT response FROM runs WHERE id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var resp domain.RunResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stored run %s: %w", runID, err)
	}
	return &resp, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
