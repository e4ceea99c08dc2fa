package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/questgraph/pkg/domain"
)

// Registry implements ports.DefinitionRegistry in memory. Machines are
// immutable, so they are shared rather than copied.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*domain.Machine
}

// NewRegistry creates a registry holding the given machines.
func NewRegistry(machines ...*domain.Machine) *Registry {
	r := &Registry{defs: make(map[string]*domain.Machine)}
	for _, m := range machines {
		r.defs[m.ID] = m
	}
	return r
}

// Register stores m under its id.
func (r *Registry) Register(ctx context.Context, m *domain.Machine) error {
	if m == nil || m.ID == "" {
		return errors.New("register: machine without id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[m.ID] = m
	return nil
}

// Definition returns the machine registered under id.
func (r *Registry) Definition(ctx context.Context, id string) (*domain.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, id)
	}
	return m, nil
}

// List returns registered ids in sorted order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
