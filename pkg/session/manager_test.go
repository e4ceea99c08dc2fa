package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
	"github.com/aretw0/questgraph/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string][]byte
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, id string, data []byte) error {
	time.Sleep(2 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[id] = append([]byte(nil), data...)
	return nil
}

func (s *SlowStore) Load(ctx context.Context, id string) ([]byte, error) {
	time.Sleep(2 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.data[id]; ok {
		return data, nil
	}
	return nil, domain.ErrInstanceNotFound
}

func (s *SlowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_UpdateIsSerialised(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()

	require.NoError(t, manager.Create(ctx, domain.NewInstanceState("race", "q@1")))

	var wg sync.WaitGroup
	writers := 10
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Update(ctx, "race", func(_ context.Context, s *domain.InstanceState) (*domain.InstanceState, error) {
				s.History = append(s.History, len(s.History))
				return s, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := manager.Load(ctx, "race")
	require.NoError(t, err)
	assert.Len(t, s.History, writers, "no update was lost")
}

func TestManager_Create(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()

	require.NoError(t, manager.Create(ctx, domain.NewInstanceState("a", "q@1")))
	err := manager.Create(ctx, domain.NewInstanceState("a", "q@2"))
	assert.ErrorIs(t, err, session.ErrInstanceExists)

	s, err := manager.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "q@1", s.DefinitionID)
}

func TestManager_UpdateFailureSavesNothing(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()
	require.NoError(t, manager.Create(ctx, domain.NewInstanceState("a", "q@1")))

	boom := errors.New("boom")
	err := manager.Update(ctx, "a", func(_ context.Context, s *domain.InstanceState) (*domain.InstanceState, error) {
		s.Status = domain.StatusAbandoned
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := manager.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, s.Status)

	err = manager.Update(ctx, "missing", func(_ context.Context, s *domain.InstanceState) (*domain.InstanceState, error) {
		return s, nil
	})
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestManager_ReadsEitherFormat(t *testing.T) {
	store := &SlowStore{}
	ctx := context.Background()

	jsonMgr := session.NewManager(store, session.WithFormat(codec.FormatJSON))
	require.NoError(t, jsonMgr.Save(ctx, domain.NewInstanceState("j", "q@1")))
	raw, err := store.Load(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), raw[0])

	binMgr := session.NewManager(store)
	s, err := binMgr.Load(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, "q@1", s.DefinitionID)
}

type countingLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	lastTTL  time.Duration
	failNext bool
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNext {
		l.failNext = false
		return nil, errors.New("lock busy")
	}
	l.locks++
	l.lastTTL = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(5*time.Second))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, domain.NewInstanceState("a", "q@1")))
	assert.Equal(t, 1, locker.locks)
	assert.Equal(t, 1, locker.unlocks)
	assert.Equal(t, 5*time.Second, locker.lastTTL)

	locker.failNext = true
	err := manager.Delete(ctx, "a")
	assert.ErrorContains(t, err, "distributed lock")
}
