package auditlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Logger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func (l *Logger) countEvents(t *testing.T) int {
	t.Helper()
	var n int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM capture_events").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRecordCapture(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	l.RecordCapture(ctx, CaptureEvent{
		NodeID:   "n1",
		Reason:   "initial",
		Success:  true,
		Duration: 120 * time.Millisecond,
		Bytes:    2048,
	})
	l.RecordCapture(ctx, CaptureEvent{NodeID: "n1", Reason: "resize", Success: false})

	if got := l.countEvents(t); got != 2 {
		t.Errorf("events: got %d, want 2", got)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.RecordCapture(context.Background(), CaptureEvent{NodeID: "n"})
	if err := l.Cleanup(context.Background(), time.Hour); err != nil {
		t.Errorf("nil Cleanup: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestCleanup(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	l.RecordCapture(ctx, CaptureEvent{NodeID: "n", Reason: "initial", Success: true})

	// Age the row past the cutoff.
	if _, err := l.db.Exec("UPDATE capture_events SET created_at = created_at - 7200"); err != nil {
		t.Fatal(err)
	}

	if err := l.Cleanup(ctx, time.Hour); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if got := l.countEvents(t); got != 0 {
		t.Errorf("events after cleanup: got %d, want 0", got)
	}
}
