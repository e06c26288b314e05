package events

import (
	"testing"
	"time"
)

func TestNewSnapshotReplaced(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	a := NewSnapshotReplaced("csv", 3, now)
	b := NewSnapshotReplaced("csv", 4, now.Add(time.Millisecond))

	if a.ID == b.ID {
		t.Fatalf("ids must differ")
	}
	if a.Generation >= b.Generation {
		t.Fatalf("generation must grow: %d vs %d", a.Generation, b.Generation)
	}
	if a.Rows != 3 || a.Store != "csv" || !a.Timestamp.Equal(now) {
		t.Fatalf("unexpected event: %+v", a)
	}
}

func TestSnapshotReplaced_JSON(t *testing.T) {
	msg := NewSnapshotReplaced("sqlite", 7, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := SnapshotReplacedFromJSON(data)
	if err != nil {
		t.Fatalf("SnapshotReplacedFromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID || parsed.Generation != msg.Generation || parsed.Rows != msg.Rows || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, msg)
	}
}

func TestSnapshotReplaced_InvalidJSON(t *testing.T) {
	if _, err := SnapshotReplacedFromJSON([]byte(`{"generation": "soon"}`)); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := SnapshotReplacedFromJSON([]byte(`{"id": "not-a-uuid"}`)); err == nil {
		t.Fatalf("expected error for bad uuid")
	}
}
