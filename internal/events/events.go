// Package events defines the messages exchanged between the web process and
// the mirror worker. Messages are small: the worker reads the snapshot from
// the local store itself.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SnapshotReplaced announces that the local table was overwritten.
// Generation grows with every write, so a consumer can ignore events older
// than the snapshot it last mirrored.
type SnapshotReplaced struct {
	ID         uuid.UUID `json:"id"`
	Store      string    `json:"store"`
	Rows       int       `json:"rows"`
	Generation int64     `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewSnapshotReplaced stamps a new event taken at now.
func NewSnapshotReplaced(store string, rows int, now time.Time) *SnapshotReplaced {
	return &SnapshotReplaced{
		ID:         uuid.New(),
		Store:      store,
		Rows:       rows,
		Generation: now.UnixNano(),
		Timestamp:  now,
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotReplaced) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotReplacedFromJSON decodes a message.
func SnapshotReplacedFromJSON(data []byte) (*SnapshotReplaced, error) {
	var msg SnapshotReplaced
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type (
	// Handler processes one event. A non-nil error asks for redelivery.
	Handler func(ctx context.Context, msg *SnapshotReplaced) error

	Publisher interface {
		PublishSnapshot(ctx context.Context, msg *SnapshotReplaced) error
	}

	Consumer interface {
		// ConsumeSnapshots blocks until ctx is done or the transport fails.
		ConsumeSnapshots(ctx context.Context, h Handler) error
	}

	// Broker is a transport that can both publish and consume.
	Broker interface {
		Publisher
		Consumer
		Close() error
	}
)
