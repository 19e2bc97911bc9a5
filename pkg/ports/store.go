package ports

import (
	"context"

	"github.com/aretw0/diagram/pkg/domain"
)

// SnapshotStore defines the interface for persisting session snapshots.
// This allows a client to reconnect after its session was evicted and find its
// diagram and options again.
type SnapshotStore interface {
	// Save persists the snapshot for a given client ID.
	Save(ctx context.Context, clientID string, snapshot *domain.Snapshot) error

	// Load retrieves the snapshot for a given client ID.
	// Returns domain.ErrSessionNotFound if there is none.
	Load(ctx context.Context, clientID string) (*domain.Snapshot, error)

	// Delete removes the snapshot for a given client ID.
	Delete(ctx context.Context, clientID string) error

	// List returns the client IDs with a stored snapshot.
	List(ctx context.Context) ([]string, error)
}
