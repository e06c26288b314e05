// Package store defines the ports every record backend implements.
//
// Persistence is whole-snapshot: callers load every row, change the slice in
// memory and hand the full slice back to ReplaceAll. The last writer wins.
package store

import (
	"context"
	"errors"
	"fmt"

	"expenselog/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordStore holds the ordered expense table.
	RecordStore interface {
		// LoadAll returns every stored row in table order.
		LoadAll(ctx context.Context) ([]core.Row, error)
		// ReplaceAll overwrites the whole table with rows.
		ReplaceAll(ctx context.Context, rows []core.Row) error
	}

	// CategoryStore holds the extensible category list.
	CategoryStore interface {
		ListCategories(ctx context.Context) ([]string, error)
		AddCategory(ctx context.Context, name string) error
	}

	// Backend is a store for both records and categories.
	Backend interface {
		RecordStore
		CategoryStore
	}
)

var (
	// ErrMalformedRow is returned by typed backends that cannot hold a row
	// whose date or amount does not parse.
	ErrMalformedRow = errors.New("malformed row")
	// ErrDuplicateCategory is returned when adding a category that exists.
	ErrDuplicateCategory = errors.New("category already exists")
)

// SyncError reports that the local write succeeded but the remote mirror did
// not receive it. The data is safe locally; the remote is stale.
type SyncError struct {
	Remote string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("local save ok, sync to %s failed: %v", e.Remote, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// IsSyncError reports whether err carries a SyncError.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}

// Append loads the table, appends rows and writes it back.
func Append(ctx context.Context, s RecordStore, rows ...core.Row) error {
	current, err := s.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	next := make([]core.Row, 0, len(current)+len(rows))
	next = append(next, current...)
	next = append(next, rows...)
	if err := s.ReplaceAll(ctx, next); err != nil {
		return fmt.Errorf("replace records: %w", err)
	}
	return nil
}

// Closer is implemented by backends holding connections.
type Closer interface {
	Close() error
}
