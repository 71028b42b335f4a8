package event

import "reflect"

func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

func mustChannel(name string, payload ...reflect.Type) *Channel {
	c, err := NewChannel(name, payload...)
	if err != nil {
		panic(err)
	}
	return c
}

// Send on a typed facade fails with domain.ErrTypeMismatch only when it wraps
// a hand-built Channel of another signature.

// Channel0 carries messages without payload.
type Channel0 struct{ *Channel }

func NewChannel0(name string) Channel0 {
	return Channel0{mustChannel(name)}
}

func (c Channel0) Send() error { return c.SendEventMessage() }

func (c Channel0) Listen(fn func()) func() {
	return c.Register(func([]any) { fn() })
}

// Channel1 carries messages with one value.
type Channel1[A any] struct{ *Channel }

func NewChannel1[A any](name string) Channel1[A] {
	return Channel1[A]{mustChannel(name, reflect.TypeFor[A]())}
}

func (c Channel1[A]) Send(a A) error { return c.SendEventMessage(a) }

func (c Channel1[A]) Listen(fn func(A)) func() {
	return c.Register(func(args []any) { fn(as[A](args[0])) })
}

// Channel2 carries messages with two values.
type Channel2[A, B any] struct{ *Channel }

func NewChannel2[A, B any](name string) Channel2[A, B] {
	return Channel2[A, B]{mustChannel(name, reflect.TypeFor[A](), reflect.TypeFor[B]())}
}

func (c Channel2[A, B]) Send(a A, b B) error { return c.SendEventMessage(a, b) }

func (c Channel2[A, B]) Listen(fn func(A, B)) func() {
	return c.Register(func(args []any) { fn(as[A](args[0]), as[B](args[1])) })
}

// Channel3 carries messages with three values.
type Channel3[A, B, C any] struct{ *Channel }

func NewChannel3[A, B, C any](name string) Channel3[A, B, C] {
	return Channel3[A, B, C]{mustChannel(name, reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C]())}
}

func (c Channel3[A, B, C]) Send(a A, b B, cv C) error { return c.SendEventMessage(a, b, cv) }

func (c Channel3[A, B, C]) Listen(fn func(A, B, C)) func() {
	return c.Register(func(args []any) { fn(as[A](args[0]), as[B](args[1]), as[C](args[2])) })
}

// Channel4 carries messages with four values.
type Channel4[A, B, C, D any] struct{ *Channel }

func NewChannel4[A, B, C, D any](name string) Channel4[A, B, C, D] {
	return Channel4[A, B, C, D]{mustChannel(name, reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C](), reflect.TypeFor[D]())}
}

func (c Channel4[A, B, C, D]) Send(a A, b B, cv C, d D) error { return c.SendEventMessage(a, b, cv, d) }

func (c Channel4[A, B, C, D]) Listen(fn func(A, B, C, D)) func() {
	return c.Register(func(args []any) {
		fn(as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]))
	})
}
