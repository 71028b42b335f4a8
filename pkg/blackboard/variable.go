package blackboard

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Cell is the type-erased view of a Variable, used by nodes and tools that do not
// know the variable's Go type at compile time.
type Cell interface {
	Name() string
	GUID() uuid.UUID
	// Type is the Go type of the stored value.
	Type() reflect.Type
	// TypeName is the declared type name. It equals Type().String() unless the
	// variable was declared with an explicit name (e.g. an enum declared in a description).
	TypeName() string
	IsShared() bool

	ObjectValue() any
	// SetObjectValue assigns v and notifies if it changed.
	// A v of the wrong dynamic type is logged, dropped and reported as domain.ErrTypeMismatch.
	SetObjectValue(v any) error
	SetObjectValueWithoutNotify(v any) error
	// RestoreValue decodes a persisted value (e.g. from JSON) into the cell without notifying.
	RestoreValue(raw any) error

	// OnValueChanged subscribes fn and returns the function that unsubscribes it.
	OnValueChanged(fn func()) (cancel func())

	// Duplicate returns an independent cell with the same name, GUID and value.
	// Duplicates of shared cells keep indirecting through the canonical store and
	// re-raise their own change event whenever the original changes.
	Duplicate() Cell
	// Dispose drops the forwarding hook installed by Duplicate.
	Dispose()
}

// Transient is implemented by values that cannot cross a persistence boundary
// (live handles such as event channels). Snapshots skip variables holding them.
type Transient interface {
	Transient()
}

var transientType = reflect.TypeFor[Transient]()

// IsTransient reports whether values of the cell's type are skipped by snapshots.
func IsTransient(c Cell) bool {
	t := c.Type()
	return t.Implements(transientType) || (t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(transientType))
}

// Option configures a Variable at construction.
type Option func(*options)

type options struct {
	guid     uuid.UUID
	typeName string
	logger   *slog.Logger
	shared   *Blackboard
	equal    any
}

// WithGUID sets the variable GUID. A random one is generated otherwise.
func WithGUID(id uuid.UUID) Option {
	return func(o *options) { o.guid = id }
}

// WithTypeName overrides the declared type name (used for enums declared by name).
func WithTypeName(name string) Option {
	return func(o *options) { o.typeName = name }
}

// WithLogger sets the diagnostics sink for type mismatches and shared-store errors.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Shared makes the variable indirect through the canonical blackboard on every access.
func Shared(canonical *Blackboard) Option {
	return func(o *options) { o.shared = canonical }
}

// WithEquality overrides the equality used for change suppression.
func WithEquality[T any](fn func(a, b T) bool) Option {
	return func(o *options) { o.equal = fn }
}

// Variable is a typed blackboard cell.
type Variable[T any] struct {
	name     string
	guid     uuid.UUID
	typeName string

	value     T
	equal     func(a, b T) bool
	listeners listeners

	// shared is the canonical blackboard for shared variables, nil otherwise.
	shared *Blackboard
	// detach removes the hook through which the original re-raises this
	// duplicate's change event.
	detach func()

	logger *slog.Logger
}

// NewVariable creates a variable holding value.
func NewVariable[T any](name string, value T, opts ...Option) *Variable[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.guid == uuid.Nil {
		o.guid = uuid.New()
	}
	if o.typeName == "" {
		o.typeName = reflect.TypeFor[T]().String()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	v := &Variable[T]{
		name:     name,
		guid:     o.guid,
		typeName: o.typeName,
		value:    value,
		shared:   o.shared,
		logger:   o.logger,
	}
	if fn, ok := o.equal.(func(a, b T) bool); ok {
		v.equal = fn
	} else {
		v.equal = func(a, b T) bool { return valuesEqual(any(a), any(b)) }
	}
	return v
}

func (v *Variable[T]) Name() string       { return v.name }
func (v *Variable[T]) GUID() uuid.UUID    { return v.guid }
func (v *Variable[T]) Type() reflect.Type { return reflect.TypeFor[T]() }
func (v *Variable[T]) TypeName() string   { return v.typeName }
func (v *Variable[T]) IsShared() bool     { return v.shared != nil }

// Subscribers returns the number of active change subscribers.
func (v *Variable[T]) Subscribers() int {
	return v.listeners.len()
}

// canonical resolves the cell that owns the storage. ok is false when the canonical
// cell exists but holds a different type; callers must then drop writes.
func (v *Variable[T]) canonical() (*Variable[T], bool) {
	if v.shared == nil {
		return v, true
	}
	c, found := v.shared.Lookup(v.guid)
	if !found {
		return v, true
	}
	if c == Cell(v) {
		return v, true
	}
	typed, ok := c.(*Variable[T])
	if !ok {
		v.logger.Error("shared variable type mismatch",
			"variable", v.name,
			"guid", v.guid,
			"expected", v.typeName,
			"canonical", c.TypeName(),
		)
		return nil, false
	}
	return typed, true
}

// Value returns the current value.
func (v *Variable[T]) Value() T {
	if c, ok := v.canonical(); ok && c != v {
		return c.Value()
	}
	return v.value
}

// SetValue assigns value and fires OnValueChanged once if it differs from the old value.
// Writes through a shared alias are forwarded to the canonical cell, which notifies.
func (v *Variable[T]) SetValue(value T) {
	v.set(value, true)
}

// SetValueWithoutNotify assigns value without firing OnValueChanged.
func (v *Variable[T]) SetValueWithoutNotify(value T) {
	v.set(value, false)
}

func (v *Variable[T]) set(value T, notify bool) {
	c, ok := v.canonical()
	if !ok {
		return
	}
	if c != v {
		c.set(value, notify)
		return
	}
	changed := !v.equal(v.value, value)
	v.value = value
	if notify && changed {
		v.listeners.fire()
	}
}

// Notify fires OnValueChanged unconditionally. It is used to flush
// notifications deferred by SetValueWithoutNotify.
func (v *Variable[T]) Notify() {
	if c, ok := v.canonical(); ok && c != v {
		c.Notify()
		return
	}
	v.listeners.fire()
}

func (v *Variable[T]) ObjectValue() any {
	return any(v.Value())
}

func (v *Variable[T]) SetObjectValue(value any) error {
	typed, err := v.convert(value)
	if err != nil {
		return err
	}
	v.SetValue(typed)
	return nil
}

func (v *Variable[T]) SetObjectValueWithoutNotify(value any) error {
	typed, err := v.convert(value)
	if err != nil {
		return err
	}
	v.SetValueWithoutNotify(typed)
	return nil
}

func (v *Variable[T]) convert(value any) (T, error) {
	var zero T
	if value == nil {
		switch reflect.TypeFor[T]().Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return zero, nil
		}
	}
	typed, ok := value.(T)
	if !ok {
		err := fmt.Errorf("%w: variable %q expects %s, got %T", domain.ErrTypeMismatch, v.name, v.typeName, value)
		v.logger.Error("variable write dropped", "variable", v.name, "guid", v.guid, "err", err)
		return zero, err
	}
	return typed, nil
}

func (v *Variable[T]) RestoreValue(raw any) error {
	if typed, ok := raw.(T); ok {
		v.SetValueWithoutNotify(typed)
		return nil
	}
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: restore %q: %v", domain.ErrTypeMismatch, v.name, err)
	}
	v.SetValueWithoutNotify(out)
	return nil
}

func (v *Variable[T]) OnValueChanged(fn func()) func() {
	return v.listeners.add(fn)
}

func (v *Variable[T]) Duplicate() Cell {
	return v.DuplicateTyped()
}

// DuplicateTyped is Duplicate without the type erasure.
func (v *Variable[T]) DuplicateTyped() *Variable[T] {
	dup := &Variable[T]{
		name:     v.name,
		guid:     v.guid,
		typeName: v.typeName,
		value:    v.value,
		equal:    v.equal,
		shared:   v.shared,
		logger:   v.logger,
	}
	dup.detach = v.OnValueChanged(dup.listeners.fire)
	return dup
}

func (v *Variable[T]) Dispose() {
	if v.detach != nil {
		v.detach()
		v.detach = nil
	}
}

func (v *Variable[T]) String() string {
	return fmt.Sprintf("%s(%s)=%v", v.name, v.typeName, v.Value())
}
