package ports

import "context"

// TreeLoader defines how the compiler retrieves tree descriptions.
// This allows the storage layer (FS, Memory) to be decoupled.
type TreeLoader interface {
	// GetTree retrieves the raw description of a tree by ID.
	// It returns the raw bytes (which the compiler will parse) or an error
	// wrapping domain.ErrTreeNotFound.
	GetTree(id string) ([]byte, error)

	// ListTrees returns the IDs of all available trees.
	// This is used for introspection and tooling (e.g. 'arbor validate').
	ListTrees() ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload of tree assets while agents run.
type Watchable interface {
	// Watch returns a channel that receives the ID of each tree whose description changed.
	Watch(ctx context.Context) (<-chan string, error)
}
