package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ResearchRun is one audit row for an agent invocation. The outcome payload
// itself is not persisted, only how the run went.
type ResearchRun struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Mode        string    `json:"mode"`
	Source      string    `json:"source,omitempty"`
	Iterations  int       `json:"iterations"`
	ToolCalls   int       `json:"tool_calls"`
	DurationMS  int64     `json:"duration_ms"`
	Synthesized bool      `json:"synthesized"`
	CreatedAt   time.Time `json:"created_at"`
}

// Run modes recorded in the history database.
const (
	RunModeAgent    = "agent"
	RunModeFallback = "fallback"
	RunModeSource   = "source"
)

// History records research runs in its own SQLite file so agent auditing
// never contends with article writes.
type History struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

const historySchema = `
CREATE TABLE IF NOT EXISTS research_runs (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	mode TEXT NOT NULL,
	source TEXT,
	iterations INTEGER NOT NULL DEFAULT 0,
	tool_calls INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	synthesized INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_research_runs_created ON research_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_research_runs_mode ON research_runs(mode);
`

// OpenHistory creates or opens the research-history database at path.
func OpenHistory(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	h := &History{db: db, path: path}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return h, nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *History) Path() string {
	return h.path
}

// RecordRun persists one audit row. A missing id or timestamp is filled in.
func (h *History) RecordRun(ctx context.Context, run ResearchRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := h.db.ExecContext(ctx, `INSERT INTO research_runs
		(id, query, mode, source, iterations, tool_calls, duration_ms, synthesized, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Query, run.Mode, nullable(run.Source), run.Iterations,
		run.ToolCalls, run.DurationMS, run.Synthesized, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record research run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (h *History) RecentRuns(ctx context.Context, limit int) ([]ResearchRun, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := h.db.QueryContext(ctx, `SELECT id, query, mode, source,
		iterations, tool_calls, duration_ms, synthesized, created_at
		FROM research_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list research runs: %w", err)
	}
	defer rows.Close()

	runs := []ResearchRun{}
	for rows.Next() {
		var (
			run    ResearchRun
			source sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Query, &run.Mode, &source,
			&run.Iterations, &run.ToolCalls, &run.DurationMS,
			&run.Synthesized, &run.CreatedAt); err != nil {
			continue
		}
		run.Source = source.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read research runs: %w", err)
	}
	return runs, nil
}
