package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
)

// ErrCascadeLimit is returned when a single call keeps advancing states
// beyond the configured bound. The instance is left as it was before the call.
var ErrCascadeLimit = errors.New("cascade limit exceeded")

// ErrStateNotActive is returned when interrupting a state outside the active set.
var ErrStateNotActive = domain.ErrStateNotActive

// Instance is one live run of a compiled machine. It is not safe for
// concurrent use; the executor serialises access per instance id.
type Instance struct {
	m   *domain.Machine
	s   *domain.InstanceState
	cfg config
}

// NewInstance creates a pending instance of m.
func NewInstance(m *domain.Machine, id string, opts ...Option) *Instance {
	return &Instance{
		m:   m,
		s:   domain.NewInstanceState(id, m.ID),
		cfg: newConfig(opts),
	}
}

// Restore rebuilds an instance from persisted state. The state must belong to m.
func Restore(m *domain.Machine, s *domain.InstanceState, opts ...Option) (*Instance, error) {
	if s.DefinitionID != m.ID {
		return nil, fmt.Errorf("instance %s belongs to %q, not %q", s.ID, s.DefinitionID, m.ID)
	}
	if err := codec.CheckInstance(s, m); err != nil {
		return nil, err
	}
	return &Instance{m: m, s: s.Clone(), cfg: newConfig(opts)}, nil
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.s.ID }

// Machine returns the shared definition.
func (i *Instance) Machine() *domain.Machine { return i.m }

// Status returns the lifecycle status.
func (i *Instance) Status() domain.Status { return i.s.Status }

// Snapshot returns a deep copy of the persistable state.
func (i *Instance) Snapshot() *domain.InstanceState { return i.s.Clone() }

// Active returns the node ids of the active states in index order.
func (i *Instance) Active() []string {
	out := make([]string, 0, len(i.s.Active))
	for _, idx := range i.s.Active {
		out = append(out, i.m.States[idx].NodeID)
	}
	return out
}

// Start moves a pending instance to Active and enters the entry state.
func (i *Instance) Start(ctx context.Context) (domain.Outcome, error) {
	return i.apply(ctx, func(t *txn) error {
		if t.s.Status != domain.StatusPending {
			return fmt.Errorf("%w: %s is %s", domain.ErrAlreadyStarted, t.s.ID, t.s.Status)
		}
		t.s.Status = domain.StatusActive
		t.lifecycle(domain.EventInstanceStart, t.cfg.hooks.OnStart)
		t.enter(t.m.Entry)
		return t.settle()
	})
}

// Observe records a predicate value and advances every state it unblocks.
// Predicates the machine never references are ignored. Values observed
// before Start are kept and take effect on Start.
func (i *Instance) Observe(ctx context.Context, predicate string, v domain.Value) (domain.Outcome, error) {
	return i.apply(ctx, func(t *txn) error {
		if t.s.Status.Final() {
			return nil
		}
		_, known := t.m.Predicate(predicate)
		if fn := t.cfg.hooks.OnObserve; fn != nil {
			fn(t.ctx, &domain.ObserveEvent{
				EventBase: t.base(domain.EventObserve),
				Predicate: predicate,
				Value:     v,
				Known:     known,
			})
		}
		if !known {
			t.log.Debug("ignored unknown predicate", "predicate", predicate)
			return nil
		}
		if t.s.Observed == nil {
			t.s.Observed = make(map[string]domain.Value)
		}
		t.s.Observed[predicate] = v
		return t.settle()
	})
}

// Abandon ends the quest from any non-final status. Final instances are left alone.
func (i *Instance) Abandon(ctx context.Context) (domain.Outcome, error) {
	return i.apply(ctx, func(t *txn) error {
		if !t.s.Status.Final() {
			t.finish(domain.StatusAbandoned)
		}
		return nil
	})
}

// Interrupt drops one active state without firing its transitions.
// Interrupting the last active state abandons the quest.
func (i *Instance) Interrupt(ctx context.Context, nodeID string) (domain.Outcome, error) {
	return i.apply(ctx, func(t *txn) error {
		idx, err := t.lookup(nodeID)
		if err != nil {
			return err
		}
		if !t.s.IsActive(idx) {
			return fmt.Errorf("%w: %s", ErrStateNotActive, nodeID)
		}
		t.leave(idx)
		t.s.Interrupted = append(t.s.Interrupted, idx)
		if len(t.s.Active) == 0 {
			t.finish(domain.StatusAbandoned)
		}
		return nil
	})
}

// ForceEnter activates a state regardless of its incoming transitions and
// settles the instance. Join counters and repeat bounds still apply to the
// states reached from it.
func (i *Instance) ForceEnter(ctx context.Context, nodeID string) (domain.Outcome, error) {
	return i.apply(ctx, func(t *txn) error {
		idx, err := t.lookup(nodeID)
		if err != nil {
			return err
		}
		t.log.Debug("force enter", "node", nodeID)
		t.enter(idx)
		return t.settle()
	})
}

// apply runs fn against a copy of the state and commits it only on success.
func (i *Instance) apply(ctx context.Context, fn func(*txn) error) (domain.Outcome, error) {
	t := &txn{
		ctx: ctx,
		m:   i.m,
		s:   i.s.Clone(),
		cfg: &i.cfg,
		log: i.cfg.logger.With("quest", i.m.Name, "instance", i.s.ID),
	}
	if err := fn(t); err != nil {
		return domain.Outcome{InstanceID: i.s.ID, Status: i.s.Status}, err
	}
	i.s = t.s
	t.out.InstanceID = i.s.ID
	t.out.Status = i.s.Status
	return t.out, nil
}

// txn holds the working copy of one call.
type txn struct {
	ctx   context.Context
	m     *domain.Machine
	s     *domain.InstanceState
	cfg   *config
	log   *slog.Logger
	out   domain.Outcome
	exits int
}

func (t *txn) lookup(nodeID string) (int, error) {
	idx, ok := t.m.Index(nodeID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownState, nodeID)
	}
	if t.s.Status != domain.StatusActive {
		return 0, fmt.Errorf("%w: %s is %s", domain.ErrNotActive, t.s.ID, t.s.Status)
	}
	return idx, nil
}

// settle advances active states until none can leave, then fails an
// instance whose active set ran dry without reaching a terminal.
func (t *txn) settle() error {
	for progressed := true; progressed && t.s.Status == domain.StatusActive; {
		progressed = false
		for _, idx := range append([]int(nil), t.s.Active...) {
			if t.s.Status != domain.StatusActive {
				break
			}
			if !t.s.IsActive(idx) {
				continue
			}
			fired, ok := t.firing(idx)
			if !ok {
				continue
			}
			t.exits++
			if t.exits > t.cfg.maxCascade {
				return fmt.Errorf("%w: more than %d state exits", ErrCascadeLimit, t.cfg.maxCascade)
			}
			t.leave(idx)
			for _, ti := range fired {
				t.arrive(ti)
			}
			progressed = true
		}
	}
	if t.s.Status == domain.StatusActive && len(t.s.Active) == 0 {
		t.log.Warn("quest stalled without reaching a terminal")
		t.finish(domain.StatusFailed)
	}
	return nil
}

// firing returns the transitions that fire if state idx leaves now, and
// whether it can leave at all.
func (t *txn) firing(idx int) ([]int, bool) {
	st := &t.m.States[idx]
	if !holds(t.m, t.s.Observed, st.Guard) {
		return nil, false
	}
	if len(st.Out) == 0 {
		return nil, true
	}
	var fired []int
	for _, ti := range st.Out {
		if !holds(t.m, t.s.Observed, t.m.Transitions[ti].Guard) {
			continue
		}
		fired = append(fired, ti)
		if st.Exclusive {
			break
		}
	}
	return fired, len(fired) > 0
}

// arrive delivers transition ti to its target, honouring the target's join.
func (t *txn) arrive(ti int) {
	target := t.m.Transitions[ti].Target
	st := &t.m.States[target]
	switch st.Join {
	case domain.JoinFirst:
		if containsInt(t.s.Locked, target) {
			return
		}
		t.s.Locked = insertInt(t.s.Locked, target)
	case domain.JoinAnd:
		counters := t.s.Joins[target]
		if counters == nil {
			counters = make([]int, len(st.In))
		}
		for slot, in := range st.In {
			if in == ti {
				counters[slot]++
			}
		}
		if !t.joined(st, counters) {
			if t.s.Joins == nil {
				t.s.Joins = make(map[int][]int)
			}
			t.s.Joins[target] = counters
			return
		}
		delete(t.s.Joins, target)
		if len(t.s.Joins) == 0 {
			t.s.Joins = nil
		}
	}
	t.enter(target)
}

func (t *txn) joined(st *domain.State, counters []int) bool {
	for slot, ti := range st.In {
		if !t.m.Transitions[ti].Optional && counters[slot] == 0 {
			return false
		}
	}
	return true
}

func (t *txn) enter(idx int) {
	if t.s.Status != domain.StatusActive || t.s.IsActive(idx) {
		return
	}
	st := &t.m.States[idx]
	if st.MaxRepeats > 0 {
		if t.s.Visits[idx] >= st.MaxRepeats {
			t.log.Debug("repeat bound reached", "node", st.NodeID, "max_repeats", st.MaxRepeats)
			return
		}
		if t.s.Visits == nil {
			t.s.Visits = make(map[int]int)
		}
		t.s.Visits[idx]++
	}
	t.s.Active = insertInt(t.s.Active, idx)
	t.s.History = append(t.s.History, idx)
	t.state(domain.EventStateEnter, t.cfg.hooks.OnStateEnter, idx)

	if st.Milestone || st.Terminal() {
		t.out.Entered = append(t.out.Entered, st.NodeID)
	}
	if st.Action != nil {
		req := domain.ActionRequest{NodeID: st.NodeID, Name: st.Action.Name}
		if len(st.Action.Params) > 0 {
			req.Params = make(map[string]domain.Value, len(st.Action.Params))
			for k, v := range st.Action.Params {
				req.Params[k] = v
			}
		}
		t.out.Actions = append(t.out.Actions, req)
	}
	if st.Terminal() {
		if st.Outcome == domain.OutcomeFailure {
			t.finish(domain.StatusFailed)
		} else {
			t.finish(domain.StatusSucceeded)
		}
	}
}

func (t *txn) leave(idx int) {
	t.s.Active = removeInt(t.s.Active, idx)
	if len(t.s.Active) == 0 {
		t.s.Active = nil
	}
	t.state(domain.EventStateLeave, t.cfg.hooks.OnStateLeave, idx)
}

// finish clears the active set and records a final status.
func (t *txn) finish(status domain.Status) {
	for _, idx := range append([]int(nil), t.s.Active...) {
		t.leave(idx)
	}
	t.s.Status = status
	t.log.Debug("quest finished", "status", status)
	t.lifecycle(domain.EventInstanceEnd, t.cfg.hooks.OnFinish)
}

func (t *txn) base(typ domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp:  time.Now(),
		Type:       typ,
		InstanceID: t.s.ID,
		Quest:      t.m.Name,
	}
}

func (t *txn) state(typ domain.EventType, fn func(context.Context, *domain.StateEvent), idx int) {
	if fn == nil {
		return
	}
	st := &t.m.States[idx]
	fn(t.ctx, &domain.StateEvent{EventBase: t.base(typ), NodeID: st.NodeID, Kind: st.Kind})
}

func (t *txn) lifecycle(typ domain.EventType, fn func(context.Context, *domain.LifecycleEvent)) {
	if fn == nil {
		return
	}
	fn(t.ctx, &domain.LifecycleEvent{EventBase: t.base(typ), Status: t.s.Status})
}

func containsInt(s []int, v int) bool {
	i := sort.SearchInts(s, v)
	return i < len(s) && s[i] == v
}

func insertInt(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeInt(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	if i == len(s) || s[i] != v {
		return s
	}
	return append(s[:i], s[i+1:]...)
}
