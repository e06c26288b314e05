package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expenselog/internal/events"
	"expenselog/internal/store"
)

// MirrorWorker copies the local snapshot to the remote store whenever a
// SnapshotReplaced event arrives, and on a fixed interval as a backup in
// case events are lost.
type MirrorWorker struct {
	local      store.RecordStore
	remote     store.RecordStore
	remoteName string
	interval   time.Duration
	now        func() time.Time

	mu         sync.Mutex
	lastSynced int64 // generation covered by the last successful push
	stats      Stats
}

// Stats counts what the worker has done since start.
type Stats struct {
	Pushed   int
	Skipped  int
	Failed   int
	LastPush time.Time
}

func NewMirrorWorker(local, remote store.RecordStore, remoteName string, interval time.Duration) *MirrorWorker {
	return &MirrorWorker{
		local:      local,
		remote:     remote,
		remoteName: remoteName,
		interval:   interval,
		now:        time.Now,
	}
}

// HandleSnapshot processes one event. Events older than the last pushed
// snapshot are acknowledged without work: the remote already has a newer
// copy of the table.
func (w *MirrorWorker) HandleSnapshot(ctx context.Context, msg *events.SnapshotReplaced) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if msg.Generation <= w.lastSynced {
		w.stats.Skipped++
		slog.DebugContext(ctx, "Skipping stale snapshot event",
			"id", msg.ID,
			"generation", msg.Generation,
			"last_synced", w.lastSynced)
		return nil
	}

	slog.InfoContext(ctx, "Processing snapshot event",
		"id", msg.ID,
		"store", msg.Store,
		"generation", msg.Generation,
		"rows", msg.Rows)

	return w.pushLocked(ctx)
}

// Reconcile pushes the current local snapshot unconditionally.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pushLocked(ctx)
}

func (w *MirrorWorker) pushLocked(ctx context.Context) error {
	readAt := w.now().UnixNano()
	rows, err := w.local.LoadAll(ctx)
	if err != nil {
		w.stats.Failed++
		return fmt.Errorf("load local snapshot: %w", err)
	}
	if err := w.remote.ReplaceAll(ctx, rows); err != nil {
		w.stats.Failed++
		return fmt.Errorf("push to %s: %w", w.remoteName, err)
	}
	if readAt > w.lastSynced {
		w.lastSynced = readAt
	}
	w.stats.Pushed++
	w.stats.LastPush = w.now()

	slog.InfoContext(ctx, "Successfully mirrored snapshot",
		"remote", w.remoteName,
		"rows", len(rows))
	return nil
}

// Stats returns a copy of the counters.
func (w *MirrorWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run reconciles once, then consumes events and reconciles on every tick
// until ctx is cancelled. A nil consumer runs the periodic loop only.
func (w *MirrorWorker) Run(ctx context.Context, consumer events.Consumer) error {
	if err := w.Reconcile(ctx); err != nil {
		// Not fatal: the remote may come back before the next tick.
		slog.ErrorContext(ctx, "Startup reconcile failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeSnapshots(ctx, w.HandleSnapshot)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if w.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := w.Reconcile(ctx); err != nil {
						slog.ErrorContext(ctx, "Periodic reconcile failed", "error", err)
					}
				}
			}
		})
	}

	return g.Wait()
}
