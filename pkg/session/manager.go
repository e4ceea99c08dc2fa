package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/questgraph/internal/logging"
	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
)

// DefaultLockTTL is how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// ErrInstanceExists is returned by Create when the id is already taken.
var ErrInstanceExists = errors.New("instance already exists")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serialises access to quest instances and moves them between
// their in-memory form and the encoded records of an InstanceStore.
// Unused locks are reclaimed by reference counting.
type Manager struct {
	store  ports.InstanceStore
	format codec.Format

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithFormat selects the encoding used when saving. Loading detects the
// format of each record, so stores may hold both.
func WithFormat(f codec.Format) Option {
	return func(m *Manager) {
		m.format = f
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.InstanceStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		format: codec.FormatBinary,
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultLockTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load reads and decodes an instance.
func (m *Manager) Load(ctx context.Context, id string) (*domain.InstanceState, error) {
	var state *domain.InstanceState
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		state, err = m.load(ctx, id)
		return err
	})
	return state, err
}

// Create persists a new instance, failing with ErrInstanceExists if the id is taken.
func (m *Manager) Create(ctx context.Context, state *domain.InstanceState) error {
	return m.WithLock(ctx, state.ID, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, state.ID)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrInstanceExists, state.ID)
		}
		if !errors.Is(err, domain.ErrInstanceNotFound) {
			return fmt.Errorf("failed to check instance existence: %w", err)
		}
		return m.save(ctx, state)
	})
}

// Save encodes and persists an instance.
func (m *Manager) Save(ctx context.Context, state *domain.InstanceState) error {
	return m.WithLock(ctx, state.ID, func(ctx context.Context) error {
		return m.save(ctx, state)
	})
}

// Update loads an instance, hands it to fn and saves what fn returns,
// all under the instance lock. Nothing is saved if fn fails.
func (m *Manager) Update(ctx context.Context, id string, fn func(context.Context, *domain.InstanceState) (*domain.InstanceState, error)) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		state, err := m.load(ctx, id)
		if err != nil {
			return err
		}
		next, err := fn(ctx, state)
		if err != nil {
			return err
		}
		return m.save(ctx, next)
	})
}

// Delete removes the instance from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying instance store.
func (m *Manager) Store() ports.InstanceStore {
	return m.store
}

func (m *Manager) load(ctx context.Context, id string) (*domain.InstanceState, error) {
	data, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	state, err := codec.DecodeInstance(data, codec.Detect(data))
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", id, err)
	}
	return state, nil
}

func (m *Manager) save(ctx context.Context, state *domain.InstanceState) error {
	data, err := codec.EncodeInstance(state, m.format)
	if err != nil {
		return err
	}
	return m.store.Save(ctx, state.ID, data)
}

// WithLock executes fn while holding the lock for the instance.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"instance_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
