package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "harness.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQueryEvents(t *testing.T) {
	s := openStore(t)

	s.RecordEvent("default", "starting", "")
	s.RecordEvent("default", "started", "")
	s.RecordEvent("other", "starting", "")
	s.RecordEvent("default", "stopped", "clean shutdown")

	events, err := s.Events("default", 10)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events for container, got %d", len(events))
	}
	// Newest first.
	if events[0].Event != "stopped" || events[2].Event != "starting" {
		t.Fatalf("unexpected event order: %v", events)
	}
	if events[0].Detail != "clean shutdown" {
		t.Fatalf("unexpected detail: %q", events[0].Detail)
	}
	if events[0].ContainerID != "default" {
		t.Fatalf("unexpected container id: %q", events[0].ContainerID)
	}
}

func TestEventsLimit(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 5; i++ {
		s.RecordEvent("default", "started", "")
	}

	events, err := s.Events("default", 2)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected limit applied, got %d events", len(events))
	}
}

func TestRecordOperation(t *testing.T) {
	s := openStore(t)
	s.RecordOperation("default", "read-attribute", "success", 12*time.Millisecond)

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM operations").Scan(&count); err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 recorded operation, got %d", count)
	}
}

func TestPrune(t *testing.T) {
	s := openStore(t)

	old := time.Now().AddDate(0, 0, -30)
	if _, err := s.db.Exec(`
		INSERT INTO container_events (container_id, event, detail, created_at)
		VALUES ('default', 'started', '', ?)
	`, old); err != nil {
		t.Fatalf("failed to seed old event: %v", err)
	}
	s.RecordEvent("default", "stopped", "")

	if err := s.Prune(14); err != nil {
		t.Fatalf("unexpected prune error: %v", err)
	}

	events, err := s.Events("default", 10)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(events) != 1 || events[0].Event != "stopped" {
		t.Fatalf("expected only the recent event to survive, got %v", events)
	}
}

func TestStartPruningInvalidSchedule(t *testing.T) {
	s := openStore(t)
	if err := s.StartPruning("every sometimes", 14); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
	if err := s.StartPruning("@daily", 14); err != nil {
		t.Fatalf("unexpected error for valid schedule: %v", err)
	}
}

func TestStartPruningDisabled(t *testing.T) {
	s := openStore(t)
	if err := s.StartPruning("@daily", 0); err != nil {
		t.Fatalf("retention 0 must disable pruning, got %v", err)
	}
	if s.cron != nil {
		t.Fatalf("expected no cron scheduler when pruning is disabled")
	}
}
