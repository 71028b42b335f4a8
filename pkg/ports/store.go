package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// StateStore defines the interface for persisting tree snapshots.
// This allows for durable execution, enabling "Stop & Resume" of agents.
type StateStore interface {
	// Save persists the snapshot for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.TreeState) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.TreeState, error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of the stored sessions.
	List(ctx context.Context) ([]string, error)
}
