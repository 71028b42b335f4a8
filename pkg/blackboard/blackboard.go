package blackboard

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Blackboard is the named collection of variables of one tree instance.
type Blackboard struct {
	id     string
	cells  []Cell
	byGUID map[uuid.UUID]Cell
}

// New creates an empty blackboard.
func New(id string) *Blackboard {
	return &Blackboard{
		id:     id,
		byGUID: make(map[uuid.UUID]Cell),
	}
}

// ID returns the blackboard identifier (the owning tree or asset ID).
func (b *Blackboard) ID() string {
	return b.id
}

// Add registers a cell. GUIDs must be unique within a blackboard.
func (b *Blackboard) Add(c Cell) error {
	if c == nil {
		return fmt.Errorf("cannot add nil variable")
	}
	if _, exists := b.byGUID[c.GUID()]; exists {
		return fmt.Errorf("variable %q: guid %s already registered", c.Name(), c.GUID())
	}
	b.cells = append(b.cells, c)
	b.byGUID[c.GUID()] = c
	return nil
}

// Lookup returns the cell with the given GUID.
func (b *Blackboard) Lookup(id uuid.UUID) (Cell, bool) {
	if b == nil {
		return nil, false
	}
	c, ok := b.byGUID[id]
	return c, ok
}

// LookupName returns the first cell with the given name.
func (b *Blackboard) LookupName(name string) (Cell, bool) {
	for _, c := range b.cells {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Find matches by GUID first and falls back to the (name, type) pair.
func (b *Blackboard) Find(id uuid.UUID, name string, typ reflect.Type) (Cell, bool) {
	if c, ok := b.Lookup(id); ok {
		return c, true
	}
	for _, c := range b.cells {
		if c.Name() == name && c.Type() == typ {
			return c, true
		}
	}
	return nil, false
}

// Variables returns the cells in declaration order.
func (b *Blackboard) Variables() []Cell {
	out := make([]Cell, len(b.cells))
	copy(out, b.cells)
	return out
}

// Len returns the number of variables.
func (b *Blackboard) Len() int {
	return len(b.cells)
}

// Duplicate returns a blackboard of duplicated cells under a new ID.
func (b *Blackboard) Duplicate(id string) *Blackboard {
	dup := New(id)
	for _, c := range b.cells {
		d := c.Duplicate()
		dup.cells = append(dup.cells, d)
		dup.byGUID[d.GUID()] = d
	}
	return dup
}

// Dispose releases the forwarding hooks of every cell.
func (b *Blackboard) Dispose() {
	for _, c := range b.cells {
		c.Dispose()
	}
}

// Get returns the typed variable with the given name.
func Get[T any](b *Blackboard, name string) (*Variable[T], bool) {
	c, ok := b.LookupName(name)
	if !ok {
		return nil, false
	}
	v, ok := c.(*Variable[T])
	return v, ok
}

// SharedRegistry holds the canonical blackboards of shared variables, one per tree asset.
// It is a process-scoped lookup table passed to the compiler, not ambient state.
type SharedRegistry struct {
	mu     sync.Mutex
	boards map[string]*Blackboard
}

// NewSharedRegistry creates an empty registry.
func NewSharedRegistry() *SharedRegistry {
	return &SharedRegistry{boards: make(map[string]*Blackboard)}
}

// Canonical returns the canonical blackboard for a tree asset, creating it on first use.
func (r *SharedRegistry) Canonical(treeID string) *Blackboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boards[treeID]
	if !ok {
		b = New(treeID + "#shared")
		r.boards[treeID] = b
	}
	return b
}

// DeriveGUID returns a stable GUID for a variable declared without one.
func DeriveGUID(scope, name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(scope+"/"+name))
}
