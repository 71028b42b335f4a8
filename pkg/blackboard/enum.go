package blackboard

import (
	"reflect"
	"sync"
)

// EnumRegistry maps a type name to its ordered members.
// Switch nodes map member i to child i; the registry is built once at startup.
type EnumRegistry struct {
	mu    sync.RWMutex
	types map[string][]any
}

// NewEnumRegistry creates an empty registry.
func NewEnumRegistry() *EnumRegistry {
	return &EnumRegistry{types: make(map[string][]any)}
}

// Register declares the ordered members of typeName, replacing any previous declaration.
func (r *EnumRegistry) Register(typeName string, members ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[typeName] = append([]any(nil), members...)
}

// Members returns the ordered members of typeName.
func (r *EnumRegistry) Members(typeName string) ([]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.types[typeName]
	return m, ok
}

// RegisterEnum declares a Go enum type; its type name is reflect's name for T.
func RegisterEnum[T comparable](r *EnumRegistry, members ...T) {
	values := make([]any, len(members))
	for i, m := range members {
		values[i] = m
	}
	r.Register(reflect.TypeFor[T]().String(), values...)
}
