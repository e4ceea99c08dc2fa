package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
	"github.com/aretw0/questgraph/pkg/session"
)

// errFinal marks an instance that finished between listing and locking.
var errFinal = errors.New("instance is final")

// Executor drives many instances of registered machines. Each call loads
// the instance, applies one event under the instance lock and saves it.
type Executor struct {
	registry ports.DefinitionRegistry
	sessions *session.Manager
	opts     []Option
	cfg      config
}

// NewExecutor creates an executor over a definition registry and a session manager.
func NewExecutor(registry ports.DefinitionRegistry, sessions *session.Manager, opts ...Option) *Executor {
	return &Executor{
		registry: registry,
		sessions: sessions,
		opts:     opts,
		cfg:      newConfig(opts),
	}
}

// Registry returns the definition registry.
func (e *Executor) Registry() ports.DefinitionRegistry { return e.registry }

// Create persists a new pending instance of the definition and returns its id.
func (e *Executor) Create(ctx context.Context, definitionID string) (string, error) {
	if _, err := e.registry.Definition(ctx, definitionID); err != nil {
		return "", fmt.Errorf("create instance: %w", err)
	}
	state := domain.NewInstanceState(e.cfg.newID(), definitionID)
	if err := e.sessions.Create(ctx, state); err != nil {
		return "", err
	}
	e.cfg.logger.Debug("instance created", "instance", state.ID, "definition", definitionID)
	return state.ID, nil
}

// Start activates the entry state of a pending instance.
func (e *Executor) Start(ctx context.Context, id string) (domain.Outcome, error) {
	return e.step(ctx, id, func(i *Instance) (domain.Outcome, error) {
		return i.Start(ctx)
	})
}

// Observe feeds one predicate value to an instance.
func (e *Executor) Observe(ctx context.Context, id, predicate string, v domain.Value) (domain.Outcome, error) {
	return e.step(ctx, id, func(i *Instance) (domain.Outcome, error) {
		return i.Observe(ctx, predicate, v)
	})
}

// ObserveAll feeds one predicate value to every stored instance that is not final.
// A failing instance does not stop the broadcast: the outcomes of the others
// are returned together with the joined failures.
func (e *Executor) ObserveAll(ctx context.Context, predicate string, v domain.Value) ([]domain.Outcome, error) {
	ids, err := e.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	var (
		outcomes []domain.Outcome
		errs     []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		state, err := e.sessions.Load(ctx, id)
		if errors.Is(err, domain.ErrInstanceNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("instance %s: %w", id, err))
			continue
		}
		if state.Status.Final() {
			continue
		}
		out, err := e.step(ctx, id, func(i *Instance) (domain.Outcome, error) {
			if i.Status().Final() {
				return domain.Outcome{}, errFinal
			}
			return i.Observe(ctx, predicate, v)
		})
		switch {
		case errors.Is(err, errFinal), errors.Is(err, domain.ErrInstanceNotFound):
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("instance %s: %w", id, err))
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, errors.Join(errs...)
}

// Abandon ends an instance that is not final yet.
func (e *Executor) Abandon(ctx context.Context, id string) (domain.Outcome, error) {
	return e.step(ctx, id, func(i *Instance) (domain.Outcome, error) {
		return i.Abandon(ctx)
	})
}

// Interrupt drops one active state of an instance.
func (e *Executor) Interrupt(ctx context.Context, id, nodeID string) (domain.Outcome, error) {
	return e.step(ctx, id, func(i *Instance) (domain.Outcome, error) {
		return i.Interrupt(ctx, nodeID)
	})
}

// ForceEnter activates a state of an instance directly.
func (e *Executor) ForceEnter(ctx context.Context, id, nodeID string) (domain.Outcome, error) {
	return e.step(ctx, id, func(i *Instance) (domain.Outcome, error) {
		return i.ForceEnter(ctx, nodeID)
	})
}

// Instance returns a restored, read-only view of a stored instance.
func (e *Executor) Instance(ctx context.Context, id string) (*Instance, error) {
	state, err := e.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := e.definition(ctx, state)
	if err != nil {
		return nil, err
	}
	return Restore(m, state, e.opts...)
}

// State returns the stored state of an instance without resolving its definition.
func (e *Executor) State(ctx context.Context, id string) (*domain.InstanceState, error) {
	return e.sessions.Load(ctx, id)
}

// Delete removes an instance.
func (e *Executor) Delete(ctx context.Context, id string) error {
	return e.sessions.Delete(ctx, id)
}

// List returns the ids of all stored instances.
func (e *Executor) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

func (e *Executor) step(ctx context.Context, id string, fn func(*Instance) (domain.Outcome, error)) (domain.Outcome, error) {
	out := domain.Outcome{InstanceID: id}
	err := e.sessions.Update(ctx, id, func(ctx context.Context, state *domain.InstanceState) (*domain.InstanceState, error) {
		m, err := e.definition(ctx, state)
		if err != nil {
			return nil, err
		}
		inst, err := Restore(m, state, e.opts...)
		if err != nil {
			return nil, err
		}
		if out, err = fn(inst); err != nil {
			return nil, err
		}
		return inst.Snapshot(), nil
	})
	return out, err
}

func (e *Executor) definition(ctx context.Context, state *domain.InstanceState) (*domain.Machine, error) {
	m, err := e.registry.Definition(ctx, state.DefinitionID)
	if errors.Is(err, domain.ErrDefinitionNotFound) {
		return nil, fmt.Errorf("instance %s references %q: %w", state.ID, state.DefinitionID, domain.ErrUnresolvedDefinition)
	}
	return m, err
}
