package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
)

// Compiler compiles descriptions into assets and keeps one asset per tree ID,
// so every instance and subgraph reference of a tree shares it.
type Compiler struct {
	parser   *Parser
	registry *registry.Registry
	loader   ports.TreeLoader
	shared   *blackboard.SharedRegistry
	logger   *slog.Logger

	mu      sync.Mutex
	assets  map[string]*Asset
	pending []string
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRegistry sets the node kind registry. registry.Default() is used otherwise.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Compiler) { c.registry = r }
}

// WithLoader sets the source of descriptions referenced by ID.
func WithLoader(l ports.TreeLoader) Option {
	return func(c *Compiler) { c.loader = l }
}

// WithSharedRegistry sets the canonical store of shared variables.
func WithSharedRegistry(s *blackboard.SharedRegistry) Option {
	return func(c *Compiler) { c.shared = s }
}

// WithLogger sets the logger of compiled instances.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		parser: NewParser(),
		assets: make(map[string]*Asset),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = registry.Default()
	}
	if c.shared == nil {
		c.shared = blackboard.NewSharedRegistry()
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Registry returns the node kind registry.
func (c *Compiler) Registry() *registry.Registry { return c.registry }

// Compile validates desc and returns its asset. If an asset with the same ID
// exists, its description is replaced and running subgraphs of it are
// rebuilt on their next update.
func (c *Compiler) Compile(desc *domain.TreeDescription) (*Asset, error) {
	c.mu.Lock()
	existing, ok := c.assets[desc.ID]
	c.mu.Unlock()
	if ok {
		if err := existing.Replace(desc); err != nil {
			return nil, err
		}
		return existing, nil
	}
	return c.add(desc)
}

// CompileBytes parses and compiles a YAML or JSON description.
func (c *Compiler) CompileBytes(data []byte) (*Asset, error) {
	desc, err := c.parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return c.Compile(desc)
}

// Load returns the asset of tree id, fetching and compiling it through the
// loader on first use.
func (c *Compiler) Load(id string) (*Asset, error) {
	c.mu.Lock()
	a, ok := c.assets[id]
	c.mu.Unlock()
	if ok {
		return a, nil
	}
	desc, err := c.fetch(id)
	if err != nil {
		return nil, err
	}
	return c.add(desc)
}

func (c *Compiler) fetch(id string) (*domain.TreeDescription, error) {
	if c.loader == nil {
		return nil, fmt.Errorf("%w: %s (no loader)", domain.ErrTreeNotFound, id)
	}
	raw, err := c.loader.GetTree(id)
	if err != nil {
		return nil, err
	}
	desc, err := c.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", id, err)
	}
	if desc.ID != id {
		return nil, fmt.Errorf("tree %s: description declares id %q", id, desc.ID)
	}
	return desc, nil
}

// add registers the asset before checking it, so trees referencing each other
// as subgraphs resolve without recursing forever.
func (c *Compiler) add(desc *domain.TreeDescription) (*Asset, error) {
	a := newAsset(c, desc)
	c.mu.Lock()
	if existing, ok := c.assets[desc.ID]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.assets[desc.ID] = a
	c.mu.Unlock()

	if err := a.check(desc); err != nil {
		c.mu.Lock()
		delete(c.assets, desc.ID)
		c.mu.Unlock()
		return nil, err
	}
	return a, nil
}

// Reload fetches tree id again and replaces the description of its asset.
// Trees never loaded are ignored.
func (c *Compiler) Reload(id string) error {
	c.mu.Lock()
	a, ok := c.assets[id]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	desc, err := c.fetch(id)
	if err != nil {
		return err
	}
	return a.Replace(desc)
}

// Watch records the trees w reports as changed until ctx is done. Changes
// are applied by Sync, which the driver calls between ticks so instances are
// never rebuilt while they run.
func (c *Compiler) Watch(ctx context.Context, w ports.Watchable) error {
	ch, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for id := range ch {
			c.mu.Lock()
			if !slices.Contains(c.pending, id) {
				c.pending = append(c.pending, id)
			}
			c.mu.Unlock()
		}
	}()
	return nil
}

// Sync reloads the trees reported changed since the last call.
// A description that fails to compile is logged and the previous one kept.
func (c *Compiler) Sync() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, id := range pending {
		if err := c.Reload(id); err != nil {
			c.logger.Error("tree reload failed", "tree", id, "err", err)
			continue
		}
		c.logger.Info("tree reloaded", "tree", id)
	}
}
