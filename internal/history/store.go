// Package history persists a record of harness runs: container lifecycle
// events and executed management operations, with scheduled retention
// pruning.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed run history
type Store struct {
	db   *sql.DB
	cron *cron.Cron
}

// Open opens (and migrates) the history database at dbPath
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dsn, err := buildSQLiteDSN(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func buildSQLiteDSN(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve history path: %w", err)
	}

	// Forward slashes for the SQLite file URI, on Windows too.
	absPath = strings.ReplaceAll(absPath, "\\", "/")

	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", absPath), nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS container_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			container_id TEXT NOT NULL,
			event TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_container_events_container
			ON container_events(container_id, created_at);

		CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			container_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			outcome TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_operations_container
			ON operations(container_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate history database: %w", err)
	}
	return nil
}

// Event is one recorded container lifecycle event
type Event struct {
	ContainerID string    `json:"container_id"`
	Event       string    `json:"event"`
	Detail      string    `json:"detail"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordEvent stores a container lifecycle event. Failures are logged, not
// returned; history must never fail a run.
func (s *Store) RecordEvent(containerID, event, detail string) {
	_, err := s.db.Exec(`
		INSERT INTO container_events (container_id, event, detail, created_at)
		VALUES (?, ?, ?, ?)
	`, containerID, event, detail, time.Now())
	if err != nil {
		slog.Warn("failed to record container event", "container", containerID,
			"event", event, "error", err)
	}
}

// RecordOperation stores an executed management operation
func (s *Store) RecordOperation(containerID, operation, outcome string, duration time.Duration) {
	_, err := s.db.Exec(`
		INSERT INTO operations (container_id, operation, outcome, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, containerID, operation, outcome, duration.Milliseconds(), time.Now())
	if err != nil {
		slog.Warn("failed to record operation", "container", containerID,
			"operation", operation, "error", err)
	}
}

// Events returns the most recent events for a container, newest first
func (s *Store) Events(containerID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT container_id, event, detail, created_at
		FROM container_events
		WHERE container_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, containerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ContainerID, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// StartPruning schedules retention pruning on the given cron spec
func (s *Store) StartPruning(spec string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.Prune(retentionDays); err != nil {
			slog.Warn("history pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	s.cron.Start()
	return nil
}

// Prune deletes records older than retentionDays
func (s *Store) Prune(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, table := range []string{"container_events", "operations"} {
		res, err := s.db.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", table), cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune %s: %w", table, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			slog.Info("pruned history records", "table", table, "count", n)
		}
	}
	return nil
}

// Close stops pruning and closes the database
func (s *Store) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return s.db.Close()
}
