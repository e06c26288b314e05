package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"expenselog/internal/events"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(nil, "snapshots", "g"); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewClient([]string{"localhost:9092"}, "", "g"); err == nil {
		t.Fatal("expected error without topic")
	}
	c, err := NewClient([]string{"localhost:9092"}, "snapshots", "g")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.writer.Topic != "snapshots" {
		t.Fatalf("writer topic = %q", c.writer.Topic)
	}
	c.Close()
}

func TestHandleWithRetry(t *testing.T) {
	msg := events.NewSnapshotReplaced("csv", 1, time.Now())

	calls := 0
	err := handleWithRetry(context.Background(), func(context.Context, *events.SnapshotReplaced) error {
		calls++
		if calls < 2 {
			return errors.New("remote unavailable")
		}
		return nil
	}, msg)
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, calls=%d err=%v", calls, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = handleWithRetry(ctx, func(context.Context, *events.SnapshotReplaced) error {
		return errors.New("still failing")
	}, msg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
