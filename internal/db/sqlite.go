package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/neboloop/pilot/internal/db/migrations"
	"github.com/neboloop/pilot/internal/logging"
)

// Store is the task journal.
type Store struct {
	db *sql.DB
}

// TaskRun is one journaled task.
type TaskRun struct {
	ID         string
	ConnID     string
	Task       string
	Provider   string
	Iterations int
	Actions    int
	Reason     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took.
func (r TaskRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewSQLite opens the journal database, runs migrations, and returns a Store
func NewSQLite(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: every connection lane writes through it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := migrations.Version(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	logging.Infof("[Journal] SQLite database initialized at %s (schema v%d)", path, version)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a finished task run.
func (s *Store) RecordRun(ctx context.Context, run TaskRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (id, conn_id, task, provider, iterations, actions, reason, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConnID, run.Task, run.Provider, run.Iterations, run.Actions,
		run.Reason, run.Error, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]TaskRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conn_id, task, provider, iterations, actions, reason, error, started_at, finished_at
		FROM task_runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []TaskRun
	for rows.Next() {
		var r TaskRun
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.ConnID, &r.Task, &r.Provider, &r.Iterations, &r.Actions,
			&r.Reason, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of journaled runs.
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_runs`).Scan(&n)
	return n, err
}
