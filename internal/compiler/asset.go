package compiler

import (
	"sync"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/event"
	"github.com/aretw0/arbor/pkg/tree"
)

// Asset is a compiled tree description. It implements tree.Source, so it can
// be instantiated as a top-level tree or run as a subgraph.
type Asset struct {
	c *Compiler

	mu      sync.RWMutex
	desc    *domain.TreeDescription
	enums   *blackboard.EnumRegistry
	version int

	changed event.Channel0
}

func newAsset(c *Compiler, desc *domain.TreeDescription) *Asset {
	return &Asset{
		c:       c,
		desc:    desc,
		enums:   enumsOf(desc),
		version: 1,
		changed: event.NewChannel0("asset:" + desc.ID),
	}
}

func enumsOf(desc *domain.TreeDescription) *blackboard.EnumRegistry {
	enums := blackboard.NewEnumRegistry()
	for name, members := range desc.Enums {
		values := make([]any, len(members))
		for i, m := range members {
			values[i] = m
		}
		enums.Register(name, values...)
	}
	return enums
}

func (a *Asset) ID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.desc.ID
}

// Description returns the current description. Callers must not modify it.
func (a *Asset) Description() *domain.TreeDescription {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.desc
}

// Version counts the descriptions the asset has held, starting at 1.
func (a *Asset) Version() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

// Validate reports structural problems of the current description.
func (a *Asset) Validate() error {
	return validator.Validate(a.Description(), a.c.registry)
}

// Instantiate builds an independent graph executed on behalf of host.
func (a *Asset) Instantiate(host *tree.Graph) (*tree.Graph, error) {
	return a.New(host)
}

// New builds an instance with extra graph options, such as the clock and
// hooks of a top-level agent.
func (a *Asset) New(host *tree.Graph, opts ...tree.Option) (*tree.Graph, error) {
	a.mu.RLock()
	desc, enums := a.desc, a.enums
	a.mu.RUnlock()
	return a.c.build(desc, enums, host, opts...)
}

// Replace swaps the description after checking it. On error the asset keeps
// its previous description. Listeners registered with OnChanged are notified.
func (a *Asset) Replace(desc *domain.TreeDescription) error {
	if err := a.check(desc); err != nil {
		return err
	}
	a.mu.Lock()
	a.desc = desc
	a.enums = enumsOf(desc)
	a.version++
	a.mu.Unlock()

	return a.changed.Send()
}

// OnChanged subscribes fn to description replacements.
func (a *Asset) OnChanged(fn func()) (cancel func()) {
	return a.changed.Listen(fn)
}

// check validates desc and builds a throwaway instance of it, so property
// and reference errors surface at compile time rather than when it runs.
func (a *Asset) check(desc *domain.TreeDescription) error {
	if err := validator.Validate(desc, a.c.registry); err != nil {
		return err
	}
	g, err := a.c.build(desc, enumsOf(desc), nil)
	if err != nil {
		return err
	}
	g.Blackboard().Dispose()
	return nil
}
