package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// NodeView is the read-only description of one node of a running tree.
type NodeView struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Status   domain.Status `json:"status"`
	Active   bool          `json:"active"`
	Children []string      `json:"children,omitempty"`
}

// Runtime defines the surface driving adapters (HTTP, CLI) use to advance
// agents kept in a store.
type Runtime interface {
	// Tick resumes the session (starting it from treeID when it does not
	// exist yet), advances it one frame and saves it.
	Tick(ctx context.Context, sessionID, treeID string) (*domain.TreeState, error)

	// Inspect returns the nodes of the session's tree with their statuses.
	Inspect(ctx context.Context, sessionID string) ([]NodeView, error)

	// State returns the stored snapshot of a session.
	State(ctx context.Context, sessionID string) (*domain.TreeState, error)

	// Sessions lists the stored sessions.
	Sessions(ctx context.Context) ([]string, error)

	// Delete drops a session.
	Delete(ctx context.Context, sessionID string) error
}
