package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data   map[string]*domain.TreeState
	mu     sync.Mutex
	active int
	peak   int
}

func (s *SlowStore) enter() {
	s.mu.Lock()
	s.active++
	s.peak = max(s.peak, s.active)
	s.mu.Unlock()
}

func (s *SlowStore) leave() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, state *domain.TreeState) error {
	s.enter()
	defer s.leave()
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.TreeState)
	}
	s.data[sessionID] = state
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.TreeState, error) {
	s.enter()
	defer s.leave()
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[sessionID]; ok {
		return state, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	require.NoError(t, manager.Save(ctx, id, domain.NewTreeState(id, "guard")))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(frame uint64) {
			defer wg.Done()
			st := domain.NewTreeState(id, "guard")
			st.Frame = frame
			assert.NoError(t, manager.Save(ctx, id, st))
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, 1, store.peak, "writes to one session are serialized")
}

func TestManager_LoadOrStart(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := manager.LoadOrStart(ctx, id, "guard")
			assert.NoError(t, err)
			assert.NotNil(t, state)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "guard", state.TreeID)
	assert.Equal(t, id, state.SessionID)
	assert.Empty(t, state.Nodes)

	_, err = manager.LoadOrStart(ctx, id, "patrol")
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestManager_DelegatesToStore(t *testing.T) {
	store := memory.NewStore()
	manager := session.NewManager(store)
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "b", domain.NewTreeState("b", "guard")))
	require.NoError(t, manager.Save(ctx, "a", domain.NewTreeState("a", "guard")))

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Same(t, store, manager.Store())

	require.NoError(t, manager.Delete(ctx, "a"))
	_, err = manager.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	args := m.Called(ctx, key, ttl)
	unlock, _ := args.Get(0).(ports.UnlockFunc)
	return unlock, args.Error(1)
}

func TestManager_DistributedLock(t *testing.T) {
	ctx := context.Background()

	t.Run("held around the operation", func(t *testing.T) {
		locker := &mockLocker{}
		unlocked := 0
		locker.On("Lock", mock.Anything, "s1", 5*time.Second).
			Return(ports.UnlockFunc(func(context.Context) error { unlocked++; return nil }), nil).Once()

		manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(5*time.Second))
		require.NoError(t, manager.WithLock(ctx, "s1", func(context.Context) error {
			assert.Equal(t, 0, unlocked)
			return nil
		}))
		assert.Equal(t, 1, unlocked)
		locker.AssertExpectations(t)
	})

	t.Run("lock failure aborts", func(t *testing.T) {
		locker := &mockLocker{}
		locker.On("Lock", mock.Anything, "s1", session.DefaultLockTTL).Return(nil, errors.New("busy"))

		manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))
		called := false
		err := manager.WithLock(ctx, "s1", func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorContains(t, err, "distributed lock")
		assert.False(t, called)
	})
}

func nextFrame(_ context.Context, st *domain.TreeState) (*domain.TreeState, error) {
	next := *st
	next.Frame++
	return &next, nil
}

func TestManager_Advance(t *testing.T) {
	ctx := context.Background()

	t.Run("missing session starts from the tree", func(t *testing.T) {
		manager := session.NewManager(memory.NewStore())
		st, err := manager.Advance(ctx, "s1", "guard", nextFrame)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), st.Frame)

		stored, err := manager.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "guard", stored.TreeID)
		assert.Equal(t, uint64(1), stored.Frame)
	})

	t.Run("missing session without tree", func(t *testing.T) {
		manager := session.NewManager(memory.NewStore())
		_, err := manager.Advance(ctx, "s1", "", nextFrame)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("session of another tree", func(t *testing.T) {
		manager := session.NewManager(memory.NewStore())
		require.NoError(t, manager.Save(ctx, "s1", domain.NewTreeState("s1", "guard")))
		_, err := manager.Advance(ctx, "s1", "patrol", nextFrame)
		assert.ErrorIs(t, err, domain.ErrStateMismatch)
	})

	t.Run("failed step stores nothing", func(t *testing.T) {
		manager := session.NewManager(memory.NewStore())
		_, err := manager.Advance(ctx, "s1", "guard", func(context.Context, *domain.TreeState) (*domain.TreeState, error) {
			return nil, errors.New("broken tree")
		})
		assert.ErrorContains(t, err, "broken tree")
		_, err = manager.Load(ctx, "s1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("concurrent steps see each other's saves", func(t *testing.T) {
		manager := session.NewManager(memory.NewStore())
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := manager.Advance(ctx, "s1", "guard", nextFrame)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		st, err := manager.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, uint64(20), st.Frame, "no step was lost")
	})
}
