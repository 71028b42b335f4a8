package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrTreeNotFound is returned when a loader has no description for a tree ID.
var ErrTreeNotFound = errors.New("tree not found")

// ErrTypeMismatch is returned when a value does not match the type of a variable.
var ErrTypeMismatch = errors.New("value type mismatch")

// ErrUnknownKind is returned when a description references an unregistered node kind.
var ErrUnknownKind = errors.New("unknown node kind")

// ErrCycle is returned when a subgraph would execute itself, directly or transitively.
var ErrCycle = errors.New("subgraph cycle detected")

// ErrNilBinding is returned when a variable binding is registered with a nil side.
var ErrNilBinding = errors.New("binding requires two variables")

// ErrStateMismatch is returned when a snapshot does not fit the tree it is restored into.
var ErrStateMismatch = errors.New("snapshot does not match tree")

// ErrUnknownVariable is returned when a description references a variable the blackboard does not declare.
var ErrUnknownVariable = errors.New("unknown variable")
