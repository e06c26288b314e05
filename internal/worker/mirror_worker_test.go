package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"expenselog/internal/core"
	"expenselog/internal/events"
	"expenselog/internal/store/memory"
)

type countingStore struct {
	*memory.Store
	mu       sync.Mutex
	replaces int
	err      error
}

func (c *countingStore) ReplaceAll(ctx context.Context, rows []core.Row) error {
	c.mu.Lock()
	c.replaces++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Store.ReplaceAll(ctx, rows)
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replaces
}

type fixedClock struct{ t time.Time }

func (f *fixedClock) now() time.Time { return f.t }

func newWorker(t *testing.T) (*MirrorWorker, *memory.Store, *countingStore, *fixedClock) {
	t.Helper()
	local := memory.New(nil)
	local.ReplaceAll(context.Background(), []core.Row{
		{Date: "2024-03-01", Description: "coffee", Amount: "5.50", Category: "food"},
	})
	remote := &countingStore{Store: memory.New(nil)}
	w := NewMirrorWorker(local, remote, "sheets", 0)
	clock := &fixedClock{t: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)}
	w.now = clock.now
	return w, local, remote, clock
}

func TestHandleSnapshotPushesLocal(t *testing.T) {
	ctx := context.Background()
	w, _, remote, clock := newWorker(t)

	msg := events.NewSnapshotReplaced("csv", 1, clock.t.Add(-time.Second))
	if err := w.HandleSnapshot(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows, _ := remote.LoadAll(ctx)
	if len(rows) != 1 || rows[0].Description != "coffee" {
		t.Fatalf("remote not mirrored: %+v", rows)
	}
	if s := w.Stats(); s.Pushed != 1 || !s.LastPush.Equal(clock.t) {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestHandleSnapshotSkipsStaleGenerations(t *testing.T) {
	ctx := context.Background()
	w, _, remote, clock := newWorker(t)

	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// Written before the reconcile read the table: already covered.
	stale := events.NewSnapshotReplaced("csv", 1, clock.t.Add(-time.Minute))
	if err := w.HandleSnapshot(ctx, stale); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if remote.count() != 1 {
		t.Fatalf("stale event must not push again, replaces=%d", remote.count())
	}

	clock.t = clock.t.Add(time.Minute)
	fresh := events.NewSnapshotReplaced("csv", 1, clock.t.Add(-time.Second))
	if err := w.HandleSnapshot(ctx, fresh); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if remote.count() != 2 {
		t.Fatalf("fresh event must push, replaces=%d", remote.count())
	}
	if s := w.Stats(); s.Skipped != 1 || s.Pushed != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestHandleSnapshotFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	w, _, remote, clock := newWorker(t)
	remote.err = errors.New("quota exceeded")

	msg := events.NewSnapshotReplaced("csv", 1, clock.t)
	if err := w.HandleSnapshot(ctx, msg); err == nil {
		t.Fatalf("expected error so the event is redelivered")
	}

	remote.err = nil
	clock.t = clock.t.Add(time.Second)
	if err := w.HandleSnapshot(ctx, msg); err != nil {
		t.Fatalf("redelivery should succeed: %v", err)
	}
	if s := w.Stats(); s.Failed != 1 || s.Pushed != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

type chanConsumer struct {
	ch chan *events.SnapshotReplaced
}

func (c chanConsumer) ConsumeSnapshots(ctx context.Context, h events.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.ch:
			h(ctx, msg)
		}
	}
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	w, local, remote, _ := newWorker(t)
	w.now = time.Now
	ctx, cancel := context.WithCancel(context.Background())
	consumer := chanConsumer{ch: make(chan *events.SnapshotReplaced)}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	local.ReplaceAll(context.Background(), nil)
	consumer.ch <- events.NewSnapshotReplaced("csv", 0, time.Now().Add(time.Hour))

	deadline := time.Now().Add(2 * time.Second)
	for remote.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if remote.count() < 2 {
		t.Fatalf("expected startup reconcile and event push, replaces=%d", remote.count())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}
