// Package mirror pairs a local backend with a remote copy of the same table.
//
// Reads and category changes go to the local backend. Every successful local
// replace either pushes the snapshot to the remote straight away or, when a
// publisher is configured, announces it so a worker can push it later. The
// remote is always overwritten wholesale; there is no merge.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expenselog/internal/core"
	"expenselog/internal/events"
	"expenselog/internal/store"
)

type Store struct {
	local      store.Backend
	remote     store.RecordStore
	localName  string
	remoteName string
	publisher  events.Publisher
	now        func() time.Time
}

var _ store.Backend = (*Store)(nil)

type Option func(*Store)

// WithPublisher defers remote pushes to a worker consuming from p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithNames sets the names used in logs, errors and events.
func WithNames(local, remote string) Option {
	return func(s *Store) {
		s.localName = local
		s.remoteName = remote
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(local store.Backend, remote store.RecordStore, opts ...Option) *Store {
	s := &Store{
		local:      local,
		remote:     remote,
		localName:  "local",
		remoteName: "remote",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) LoadAll(ctx context.Context) ([]core.Row, error) {
	return s.local.LoadAll(ctx)
}

// ReplaceAll writes locally, then mirrors. A mirror failure is returned as
// a *store.SyncError: the local data is saved but the remote is stale.
func (s *Store) ReplaceAll(ctx context.Context, rows []core.Row) error {
	if err := s.local.ReplaceAll(ctx, rows); err != nil {
		return err
	}

	if s.publisher != nil {
		msg := events.NewSnapshotReplaced(s.localName, len(rows), s.now())
		if err := s.publisher.PublishSnapshot(ctx, msg); err != nil {
			slog.WarnContext(ctx, "Snapshot saved locally but event not published",
				"remote", s.remoteName, "error", err)
			return &store.SyncError{Remote: s.remoteName, Err: err}
		}
		return nil
	}

	if err := s.remote.ReplaceAll(ctx, rows); err != nil {
		slog.WarnContext(ctx, "Snapshot saved locally but remote overwrite failed",
			"remote", s.remoteName, "error", err)
		return &store.SyncError{Remote: s.remoteName, Err: err}
	}
	slog.InfoContext(ctx, "Snapshot mirrored", "remote", s.remoteName, "rows", len(rows))
	return nil
}

// Push overwrites the remote with the current local snapshot.
func (s *Store) Push(ctx context.Context) (int, error) {
	rows, err := s.local.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", s.localName, err)
	}
	if err := s.remote.ReplaceAll(ctx, rows); err != nil {
		return 0, fmt.Errorf("push to %s: %w", s.remoteName, err)
	}
	return len(rows), nil
}

// Pull overwrites the local table with the remote snapshot.
func (s *Store) Pull(ctx context.Context) (int, error) {
	rows, err := s.remote.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", s.remoteName, err)
	}
	if err := s.local.ReplaceAll(ctx, rows); err != nil {
		return 0, fmt.Errorf("write %s: %w", s.localName, err)
	}
	return len(rows), nil
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	return s.local.ListCategories(ctx)
}

func (s *Store) AddCategory(ctx context.Context, name string) error {
	return s.local.AddCategory(ctx, name)
}
