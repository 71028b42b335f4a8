package arbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/nodes"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/google/uuid"
)

// DefaultFrameStep is the simulation time a frame advances the agent clock.
const DefaultFrameStep = 100 * time.Millisecond

// Engine is the high-level entry point for the arbor library.
// It compiles tree descriptions, creates agents from them and drives agents
// kept in a store. Engine implements ports.Runtime.
type Engine struct {
	compiler *compiler.Compiler
	registry *registry.Registry
	loader   ports.TreeLoader
	store    ports.StateStore
	locker   ports.DistributedLocker
	sessions *session.Manager
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	step     time.Duration
	shared   *blackboard.SharedRegistry
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Hooks are inherited by
// subgraph instances. Calling it several times merges the hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLoader sets the source of tree descriptions referenced by ID.
func WithLoader(l ports.TreeLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithStore sets the snapshot store used by Save, Resume and the Runtime
// methods. An in-memory store is used otherwise.
func WithStore(s ports.StateStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker enables cross-process session locking.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithRegistry replaces the node kind registry. registry.Default() is used otherwise.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithAction registers the implementation of an external action invoked by
// call_action nodes.
func WithAction(name string, fn nodes.ActionFunc) Option {
	return func(e *Engine) {
		if e.registry == nil {
			e.registry = registry.Default()
		}
		e.registry.RegisterAction(name, fn)
	}
}

// WithLogger sets a custom structured logger for the engine and every graph it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFrameStep sets the simulation time of one frame.
func WithFrameStep(step time.Duration) Option {
	return func(e *Engine) {
		e.step = step
	}
}

// New initializes a new Engine.
func New(opts ...Option) *Engine {
	e := &Engine{step: DefaultFrameStep}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.registry == nil {
		e.registry = registry.Default()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	e.shared = blackboard.NewSharedRegistry()

	copts := []compiler.Option{
		compiler.WithRegistry(e.registry),
		compiler.WithLogger(e.logger),
		compiler.WithSharedRegistry(e.shared),
	}
	if e.loader != nil {
		copts = append(copts, compiler.WithLoader(e.loader))
	}
	e.compiler = compiler.New(copts...)

	sopts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sopts = append(sopts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sopts...)
	return e
}

// Registry returns the node kind registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Loader returns the tree loader, or nil.
func (e *Engine) Loader() ports.TreeLoader {
	return e.loader
}

// SessionManager returns the session manager over the engine store.
func (e *Engine) SessionManager() *session.Manager {
	return e.sessions
}

// Compile validates desc and makes it available to agents and subgraph
// references under desc.ID. Compiling an ID again replaces its description;
// running subgraph instances of it are rebuilt on their next update.
func (e *Engine) Compile(desc *domain.TreeDescription) error {
	_, err := e.compiler.Compile(desc)
	return err
}

// CompileBytes parses and compiles a YAML or JSON description, returning its ID.
func (e *Engine) CompileBytes(data []byte) (string, error) {
	a, err := e.compiler.CompileBytes(data)
	if err != nil {
		return "", err
	}
	return a.ID(), nil
}

// Validate loads tree id and reports its structural problems.
func (e *Engine) Validate(id string) error {
	a, err := e.compiler.Load(id)
	if err != nil {
		return err
	}
	return a.Validate()
}

// Description returns the current description of tree id.
func (e *Engine) Description(id string) (*domain.TreeDescription, error) {
	a, err := e.compiler.Load(id)
	if err != nil {
		return nil, err
	}
	return a.Description(), nil
}

// Watch hot-reloads tree descriptions the loader reports as changed until
// ctx is done. Changes are applied between ticks.
func (e *Engine) Watch(ctx context.Context) error {
	w, ok := e.loader.(ports.Watchable)
	if !ok {
		return fmt.Errorf("current loader does not support watching")
	}
	return e.compiler.Watch(ctx, w)
}

// NewAgent creates an agent running tree treeID under a new session ID.
func (e *Engine) NewAgent(treeID string) (*Agent, error) {
	return e.newAgent(uuid.NewString(), treeID)
}

func (e *Engine) newAgent(sessionID, treeID string) (*Agent, error) {
	asset, err := e.compiler.Load(treeID)
	if err != nil {
		return nil, err
	}
	clock := tree.NewFrameClock(e.step)
	g, err := asset.New(nil,
		tree.WithClock(clock),
		tree.WithLifecycleHooks(e.hooks),
		tree.WithLogger(e.logger.With("session_id", sessionID)),
	)
	if err != nil {
		return nil, err
	}
	nodes.AssignDefaultChannels(g.Blackboard(), e.logger)
	return &Agent{
		engine:    e,
		sessionID: sessionID,
		treeID:    treeID,
		graph:     g,
		clock:     clock,
	}, nil
}

// Resume rebuilds the agent saved under sessionID.
func (e *Engine) Resume(ctx context.Context, sessionID string) (*Agent, error) {
	st, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.restore(st)
}

// Open resumes the agent saved under sessionID, or starts one running treeID
// when the session does not exist. An empty sessionID gets a generated one.
// A saved session of another tree is reported as domain.ErrStateMismatch.
func (e *Engine) Open(ctx context.Context, sessionID, treeID string) (*Agent, error) {
	if sessionID == "" {
		return e.NewAgent(treeID)
	}
	st, err := e.sessions.Load(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return e.newAgent(sessionID, treeID)
	case err != nil:
		return nil, err
	case treeID != "" && st.TreeID != treeID:
		return nil, fmt.Errorf("%w: session %s runs tree %q, not %q", domain.ErrStateMismatch, sessionID, st.TreeID, treeID)
	}
	return e.restore(st)
}

// restore builds an agent from st. A snapshot without nodes is a session
// that never ticked and yields a fresh agent.
func (e *Engine) restore(st *domain.TreeState) (*Agent, error) {
	a, err := e.newAgent(st.SessionID, st.TreeID)
	if err != nil {
		return nil, err
	}
	if len(st.Nodes) == 0 {
		return a, nil
	}
	a.clock.Set(st.Frame)
	if err := a.graph.Restore(st); err != nil {
		return nil, fmt.Errorf("resume %s: %w", st.SessionID, err)
	}
	return a, nil
}

// Tick advances the session one frame under the session lock and saves it.
// A missing session is started from treeID; a session running another tree
// is reported as domain.ErrStateMismatch.
func (e *Engine) Tick(ctx context.Context, sessionID, treeID string) (*domain.TreeState, error) {
	return e.sessions.Advance(ctx, sessionID, treeID, func(ctx context.Context, st *domain.TreeState) (*domain.TreeState, error) {
		a, err := e.restore(st)
		if err != nil {
			return nil, err
		}
		a.Tick(ctx)
		return a.Snapshot(), nil
	})
}

// Inspect returns the nodes of the session's tree with their saved statuses.
func (e *Engine) Inspect(ctx context.Context, sessionID string) ([]ports.NodeView, error) {
	a, err := e.Resume(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	infos := a.Inspect()
	views := make([]ports.NodeView, len(infos))
	for i, n := range infos {
		views[i] = ports.NodeView{ID: n.ID, Kind: n.Kind, Status: n.Status, Active: n.Active, Children: n.Children}
	}
	return views, nil
}

// State returns the stored snapshot of a session.
func (e *Engine) State(ctx context.Context, sessionID string) (*domain.TreeState, error) {
	return e.sessions.Load(ctx, sessionID)
}

// Sessions lists the stored sessions.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Delete drops a session. Deleting a missing session is not an error.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	err := e.sessions.Delete(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}

var _ ports.Runtime = (*Engine)(nil)
