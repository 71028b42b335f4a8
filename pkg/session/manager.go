package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// StepFunc advances a loaded snapshot and returns the one to store.
type StepFunc func(ctx context.Context, st *domain.TreeState) (*domain.TreeState, error)

// Manager serializes access to agent snapshots, so one session is never
// loaded, ticked and saved by two callers at once.
type Manager struct {
	store   ports.StateStore
	locks   lockTable
	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker serializes sessions across processes as well.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks. Defaults to DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   lockTable{held: make(map[string]*sessionLock)},
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Advance runs one load, step and save cycle for sessionID while holding its
// lock. A missing session is handed to step as a fresh snapshot of treeID;
// without a treeID it is domain.ErrSessionNotFound. A stored session of
// another tree is domain.ErrStateMismatch. Nothing is saved when step fails.
func (m *Manager) Advance(ctx context.Context, sessionID, treeID string, step StepFunc) (*domain.TreeState, error) {
	var next *domain.TreeState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		st, _, err := m.resolve(ctx, sessionID, treeID)
		if err != nil {
			return err
		}
		next, err = step(ctx, st)
		if err != nil {
			return err
		}
		return m.store.Save(ctx, sessionID, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// LoadOrStart returns the stored snapshot of sessionID, or reserves the ID
// with an empty snapshot of treeID, which resumes as a fresh agent.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID, treeID string) (*domain.TreeState, error) {
	var st *domain.TreeState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var fresh bool
		var err error
		st, fresh, err = m.resolve(ctx, sessionID, treeID)
		if err != nil || !fresh {
			return err
		}
		if err := m.store.Save(ctx, sessionID, st); err != nil {
			return fmt.Errorf("reserve session %s: %w", sessionID, err)
		}
		return nil
	})
	return st, err
}

// resolve loads sessionID for treeID. fresh reports a snapshot that was
// created because nothing was stored.
func (m *Manager) resolve(ctx context.Context, sessionID, treeID string) (st *domain.TreeState, fresh bool, err error) {
	st, err = m.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		if treeID == "" {
			return nil, false, err
		}
		return domain.NewTreeState(sessionID, treeID), true, nil
	case err != nil:
		return nil, false, fmt.Errorf("load session %s: %w", sessionID, err)
	case treeID != "" && st.TreeID != treeID:
		return nil, false, fmt.Errorf("%w: session %s runs tree %q, not %q", domain.ErrStateMismatch, sessionID, st.TreeID, treeID)
	}
	return st, false, nil
}

// Load returns the stored snapshot of sessionID.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.TreeState, error) {
	var st *domain.TreeState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		st, err = m.store.Load(ctx, sessionID)
		return err
	})
	return st, err
}

// Save stores st as the snapshot of sessionID.
func (m *Manager) Save(ctx context.Context, sessionID string, st *domain.TreeState) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, st)
	})
}

// Delete removes the snapshot of sessionID.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List returns the stored session IDs.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock runs fn while holding the local lock of sessionID and, when a
// locker is configured, its distributed lock.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	unlock := m.locks.lock(sessionID)
	defer unlock()

	if m.locker != nil {
		release, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := release(ctx); err != nil {
				m.logger.Warn("distributed lock not released, it expires with its TTL",
					"session_id", sessionID,
					"ttl", m.lockTTL,
					"err", err,
				)
			}
		}()
	}
	return fn(ctx)
}

// lockTable hands out one mutex per session ID. An entry lives only while
// some caller holds or waits for it.
type lockTable struct {
	mu   sync.Mutex
	held map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	users int
}

func (t *lockTable) lock(id string) (unlock func()) {
	t.mu.Lock()
	l, ok := t.held[id]
	if !ok {
		l = &sessionLock{}
		t.held[id] = l
	}
	l.users++
	t.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		t.mu.Lock()
		if l.users--; l.users == 0 {
			delete(t.held, id)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}
