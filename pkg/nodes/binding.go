package nodes

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultBindingPoolSize bounds the number of idle bindings kept for reuse.
const DefaultBindingPoolSize = 124

// binding mirrors value changes between a host variable and the matching
// variable of a subgraph instance. The syncing flags stop a mirrored write
// from bouncing back to its origin.
type binding struct {
	outer, inner blackboard.Cell
	logger       *slog.Logger

	syncingToParent bool
	syncingToChild  bool

	cancelOuter func()
	cancelInner func()
}

func (b *binding) bind(outer, inner blackboard.Cell, logger *slog.Logger) error {
	if outer == nil || inner == nil {
		return domain.ErrNilBinding
	}
	b.outer, b.inner, b.logger = outer, inner, logger
	b.cancelInner = inner.OnValueChanged(b.syncToParent)
	b.cancelOuter = outer.OnValueChanged(b.syncToChild)
	return nil
}

// syncToParent pushes an inner change out, with notification so observers of
// the host see it.
func (b *binding) syncToParent() {
	if b.syncingToChild {
		return
	}
	b.syncingToParent = true
	defer func() { b.syncingToParent = false }()
	if err := b.outer.SetObjectValue(b.inner.ObjectValue()); err != nil {
		b.logger.Error("binding sync to host failed", "variable", b.outer.Name(), "err", err)
	}
}

// syncToChild pushes an outer change in, with notification so the subgraph
// reacts even when driven independently.
func (b *binding) syncToChild() {
	if b.syncingToParent {
		return
	}
	b.syncingToChild = true
	defer func() { b.syncingToChild = false }()
	if err := b.inner.SetObjectValue(b.outer.ObjectValue()); err != nil {
		b.logger.Error("binding sync to subgraph failed", "variable", b.inner.Name(), "err", err)
	}
}

func (b *binding) unbind() {
	if b.cancelInner != nil {
		b.cancelInner()
	}
	if b.cancelOuter != nil {
		b.cancelOuter()
	}
	*b = binding{}
}

// BindingPool recycles bindings across subgraph start/stop cycles.
// It is safe for use by agents ticking on different goroutines.
type BindingPool struct {
	mu   sync.Mutex
	free []*binding
	size int
}

// NewBindingPool creates a pool keeping at most size idle bindings.
func NewBindingPool(size int) *BindingPool {
	return &BindingPool{size: size}
}

// DefaultBindingPool is used by subgraph runners without a pool of their own.
var DefaultBindingPool = NewBindingPool(DefaultBindingPoolSize)

func (p *BindingPool) get() *binding {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		return b
	}
	return &binding{}
}

func (p *BindingPool) put(b *binding) {
	b.unbind()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) < p.size {
		p.free = append(p.free, b)
	}
}

// Idle returns the number of bindings available for reuse.
func (p *BindingPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

func (p *BindingPool) String() string {
	return fmt.Sprintf("BindingPool(%d/%d)", p.Idle(), p.size)
}
