package arbor

import (
	"context"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/event"
	"github.com/aretw0/arbor/pkg/tree"
)

// Agent is one running instance of a tree, identified by a session ID.
// An Agent is driven by a single goroutine; it is not safe for concurrent use.
type Agent struct {
	engine    *Engine
	sessionID string
	treeID    string
	graph     *tree.Graph
	clock     *tree.FrameClock
}

func (a *Agent) SessionID() string        { return a.sessionID }
func (a *Agent) TreeID() string           { return a.treeID }
func (a *Agent) Graph() *tree.Graph       { return a.graph }
func (a *Agent) Frame() uint64            { return a.clock.Frame() }
func (a *Agent) Status() domain.Status    { return a.graph.Status() }
func (a *Agent) Inspect() []tree.NodeInfo { return a.graph.Inspect() }

// Blackboard returns the variables of the top-level instance.
func (a *Agent) Blackboard() *blackboard.Blackboard {
	return a.graph.Blackboard()
}

// Tick applies pending description reloads, runs one frame and advances the
// clock. It returns the root status.
func (a *Agent) Tick(ctx context.Context) domain.Status {
	a.engine.compiler.Sync()
	status := a.graph.Tick(ctx)
	a.clock.Advance()
	return status
}

// Restart resets every node so the next Tick starts the root again.
// Variable values are kept.
func (a *Agent) Restart() {
	a.graph.Restart()
}

// Channel returns the event channel held by the variable name, so the host
// can send messages to the tree.
func (a *Agent) Channel(name string) (*event.Channel, bool) {
	c, ok := a.graph.Blackboard().LookupName(name)
	if !ok {
		return nil, false
	}
	return event.From(c.ObjectValue())
}

// Set writes a variable of the top-level blackboard, notifying observers.
func (a *Agent) Set(name string, value any) error {
	c, ok := a.graph.Blackboard().LookupName(name)
	if !ok {
		return &UnknownVariableError{Name: name}
	}
	return c.SetObjectValue(value)
}

// Get reads a variable of the top-level blackboard.
func (a *Agent) Get(name string) (any, bool) {
	c, ok := a.graph.Blackboard().LookupName(name)
	if !ok {
		return nil, false
	}
	return c.ObjectValue(), true
}

// Snapshot captures the agent for persistence.
func (a *Agent) Snapshot() *domain.TreeState {
	st := a.graph.Snapshot()
	st.SessionID = a.sessionID
	st.TreeID = a.treeID
	return st
}

// Save persists the agent in the engine store.
func (a *Agent) Save(ctx context.Context) error {
	return a.engine.sessions.Save(ctx, a.sessionID, a.Snapshot())
}

// Close releases the subscriptions the instance holds on shared variables.
func (a *Agent) Close() {
	a.graph.Blackboard().Dispose()
}

// UnknownVariableError reports an access to an undeclared variable.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return "unknown variable " + e.Name
}

func (e *UnknownVariableError) Unwrap() error {
	return domain.ErrUnknownVariable
}
