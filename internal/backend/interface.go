// Package backend builds the record store the binaries run against from the
// application config.
package backend

import (
	"context"

	"expenselog/internal/events"
	"expenselog/internal/store"
	"expenselog/internal/store/mirror"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is the store to serve from plus the parts the CLI and the
// worker need to reach individually.
type BackendResult struct {
	// Backend is what services write to: the primary store, wrapped in a
	// mirror when one is configured.
	Backend store.Backend
	// Local and Remote are the two sides of the mirror. Remote is nil
	// without a mirror.
	Local  store.Backend
	Remote store.Backend
	Mirror *mirror.Store
	// Broker is set when writes are published instead of pushed.
	Broker  events.Broker
	Cleanup CleanupFunc
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the primary store and, when configured, the
	// mirror target and the broker.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// OpenStore opens a single store without any mirroring.
	OpenStore(ctx context.Context, config Config, t BackendType) (store.Backend, CleanupFunc, error)
}

// BackendType names a store implementation.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	CSVBackend      BackendType = "csv"
	SheetsBackend   BackendType = "sheets"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, CSVBackend, SheetsBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
