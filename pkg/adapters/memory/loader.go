package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.TreeLoader using an in-memory map.
// Safe for concurrent use.
type Loader struct {
	mu       sync.RWMutex
	trees    map[string][]byte
	watchers []chan string
}

// NewLoader creates a new Loader with the provided raw descriptions (YAML or JSON).
func NewLoader(data map[string]string) *Loader {
	trees := make(map[string][]byte)
	for k, v := range data {
		trees[k] = []byte(v)
	}
	return &Loader{trees: trees}
}

// NewFromTrees creates a new Loader from domain objects.
// This handles serialization automatically, improving DX for tests.
func NewFromTrees(descs ...domain.TreeDescription) (*Loader, error) {
	data := make(map[string][]byte)
	for _, d := range descs {
		if d.ID == "" {
			return nil, fmt.Errorf("tree missing ID")
		}
		bytes, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tree %s: %w", d.ID, err)
		}
		data[d.ID] = bytes
	}
	return &Loader{trees: data}, nil
}

// GetTree retrieves the raw description of a tree by ID.
func (l *Loader) GetTree(id string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	content, ok := l.trees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTreeNotFound, id)
	}
	return content, nil
}

// ListTrees returns all available tree IDs.
func (l *Loader) ListTrees() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.trees))
	for k := range l.trees {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}

// Set replaces the description of a tree and notifies watchers.
func (l *Loader) Set(id string, data []byte) {
	l.mu.Lock()
	l.trees[id] = data
	watchers := append([]chan string(nil), l.watchers...)
	l.mu.Unlock()

	for _, w := range watchers {
		select {
		case w <- id:
		default:
		}
	}
}

// Watch implements ports.Watchable. The channel is closed when ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, w := range l.watchers {
			if w == ch {
				l.watchers = append(l.watchers[:i], l.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
