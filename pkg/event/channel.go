package event

import (
	"fmt"
	"reflect"

	"github.com/aretw0/arbor/pkg/domain"
)

// MaxArity is the largest number of payload values a channel can carry.
const MaxArity = 4

// Listener receives the payload of one message.
type Listener func(args []any)

// Channel is an untyped-at-compile-time event channel with a declared payload signature.
type Channel struct {
	name      string
	payload   []reflect.Type
	listeners []*entry
}

type entry struct {
	fn      Listener
	removed bool
}

// NewChannel creates a channel whose messages carry values of the given types.
func NewChannel(name string, payload ...reflect.Type) (*Channel, error) {
	if len(payload) > MaxArity {
		return nil, fmt.Errorf("channel %q: arity %d exceeds %d", name, len(payload), MaxArity)
	}
	return &Channel{name: name, payload: payload}, nil
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Payload returns the declared payload types.
func (c *Channel) Payload() []reflect.Type {
	return append([]reflect.Type(nil), c.payload...)
}

// Arity returns the number of payload values per message.
func (c *Channel) Arity() int { return len(c.payload) }

// Transient marks channels as live handles that snapshots skip.
func (c *Channel) Transient() {}

// Untyped returns c. Typed channels inherit it through embedding.
func (c *Channel) Untyped() *Channel { return c }

// From extracts the channel held by v, which may be a *Channel or any typed channel.
func From(v any) (*Channel, bool) {
	u, ok := v.(interface{ Untyped() *Channel })
	if !ok {
		return nil, false
	}
	c := u.Untyped()
	return c, c != nil
}

// Register subscribes fn and returns the function that unsubscribes it.
func (c *Channel) Register(fn Listener) (cancel func()) {
	e := &entry{fn: fn}
	c.listeners = append(c.listeners, e)
	return func() {
		if e.removed {
			return
		}
		e.removed = true
		for i, l := range c.listeners {
			if l == e {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Listeners returns the number of registered listeners.
func (c *Channel) Listeners() int { return len(c.listeners) }

// SendEventMessage validates args against the payload signature and delivers them.
func (c *Channel) SendEventMessage(args ...any) error {
	if err := c.check(args); err != nil {
		return err
	}
	snapshot := make([]*entry, len(c.listeners))
	copy(snapshot, c.listeners)
	for _, e := range snapshot {
		if !e.removed {
			e.fn(args)
		}
	}
	return nil
}

func (c *Channel) check(args []any) error {
	if len(args) != len(c.payload) {
		return fmt.Errorf("%w: channel %q expects %d values, got %d", domain.ErrTypeMismatch, c.name, len(c.payload), len(args))
	}
	for i, arg := range args {
		want := c.payload[i]
		if arg == nil {
			if nillable(want) {
				continue
			}
			return fmt.Errorf("%w: channel %q value %d is nil, want %s", domain.ErrTypeMismatch, c.name, i, want)
		}
		if !reflect.TypeOf(arg).AssignableTo(want) {
			return fmt.Errorf("%w: channel %q value %d is %T, want %s", domain.ErrTypeMismatch, c.name, i, arg, want)
		}
	}
	return nil
}

func (c *Channel) String() string {
	return fmt.Sprintf("channel(%s/%d)", c.name, len(c.payload))
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
