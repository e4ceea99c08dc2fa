package runtime_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/questgraph/internal/runtime"
	"github.com/aretw0/questgraph/pkg/adapters/memory"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, opts ...runtime.Option) (*runtime.Executor, *domain.Machine) {
	t.Helper()
	m := hunt(t)
	reg := memory.NewRegistry(m)
	return runtime.NewExecutor(reg, session.NewManager(memory.NewStore()), opts...), m
}

func TestExecutor_Lifecycle(t *testing.T) {
	ctx := context.Background()
	n := 0
	exec, m := newExecutor(t, runtime.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("q-%d", n)
	}))

	id, err := exec.Create(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "q-1", id)

	out, err := exec.Start(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, out.Status)

	for _, e := range []struct {
		pred string
		v    domain.Value
	}{
		{"talked", domain.Bool(true)},
		{"rep", domain.Number(12)},
		{"weather", domain.String("fog")},
	} {
		_, err := exec.Observe(ctx, id, e.pred, e.v)
		require.NoError(t, err)
	}

	inst, err := exec.Instance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"wolves", "herbs"}, inst.Active())

	out, err = exec.Observe(ctx, id, "kills", domain.Number(3))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, out.Status)
	assert.Equal(t, []string{"won"}, out.Entered)
	require.Len(t, out.Actions, 1)

	out, err = exec.Abandon(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, out.Status, "terminal states are final")

	ids, err := exec.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"q-1"}, ids)

	require.NoError(t, exec.Delete(ctx, id))
	_, err = exec.Start(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestExecutor_Errors(t *testing.T) {
	ctx := context.Background()
	exec, m := newExecutor(t)

	_, err := exec.Create(ctx, "nope@0000")
	assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)

	id, err := exec.Create(ctx, m.ID)
	require.NoError(t, err)
	_, err = exec.Start(ctx, id)
	require.NoError(t, err)
	_, err = exec.Start(ctx, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)

	_, err = exec.Interrupt(ctx, id, "wolves")
	assert.ErrorIs(t, err, runtime.ErrStateNotActive)
	out, err := exec.Interrupt(ctx, id, "start")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbandoned, out.Status)
}

func TestExecutor_UnresolvedDefinition(t *testing.T) {
	ctx := context.Background()
	m := hunt(t)
	reg := memory.NewRegistry(m)
	sessions := session.NewManager(memory.NewStore())
	exec := runtime.NewExecutor(reg, sessions)

	require.NoError(t, sessions.Save(ctx, domain.NewInstanceState("orphan", "gone@ffff")))
	_, err := exec.Start(ctx, "orphan")
	assert.ErrorIs(t, err, domain.ErrUnresolvedDefinition)
	_, err = exec.Instance(ctx, "orphan")
	assert.ErrorIs(t, err, domain.ErrUnresolvedDefinition)
}

func TestExecutor_ObserveAll(t *testing.T) {
	ctx := context.Background()
	exec, m := newExecutor(t)

	var ids []string
	for n := 0; n < 3; n++ {
		id, err := exec.Create(ctx, m.ID)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := exec.Start(ctx, ids[0])
	require.NoError(t, err)
	_, err = exec.Start(ctx, ids[1])
	require.NoError(t, err)
	_, err = exec.Abandon(ctx, ids[1])
	require.NoError(t, err)

	outcomes, err := exec.ObserveAll(ctx, "talked", domain.Bool(true))
	require.NoError(t, err)
	require.Len(t, outcomes, 2, "final instances are skipped")
	for _, out := range outcomes {
		assert.NotEqual(t, ids[1], out.InstanceID)
	}

	abandoned, err := exec.State(ctx, ids[1])
	require.NoError(t, err)
	assert.NotContains(t, abandoned.Observed, "talked")

	started, err := exec.Instance(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"wolves", "herbs"}, started.Active())

	pending, err := exec.Instance(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, domain.Bool(true), pending.Snapshot().Observed["talked"])
}

func TestExecutor_ObserveAllKeepsGoing(t *testing.T) {
	ctx := context.Background()
	m := hunt(t)
	sessions := session.NewManager(memory.NewStore())
	exec := runtime.NewExecutor(memory.NewRegistry(m), sessions)

	tests := []struct {
		name    string
		orphans []string
	}{
		{name: "orphan listed first", orphans: []string{"a-orphan"}},
		{name: "orphan listed last", orphans: []string{"z-orphan"}},
		{name: "orphans on both sides", orphans: []string{"a-orphan", "z-orphan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, id := range tt.orphans {
				require.NoError(t, sessions.Save(ctx, domain.NewInstanceState(id, "gone@ffff")))
			}
			live, err := exec.Create(ctx, m.ID)
			require.NoError(t, err)
			_, err = exec.Start(ctx, live)
			require.NoError(t, err)
			t.Cleanup(func() {
				for _, id := range append(tt.orphans, live) {
					_ = sessions.Delete(ctx, id)
				}
			})

			outcomes, err := exec.ObserveAll(ctx, "talked", domain.Bool(true))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUnresolvedDefinition)
			for _, id := range tt.orphans {
				assert.Contains(t, err.Error(), id)
			}
			require.Len(t, outcomes, 1)
			assert.Equal(t, live, outcomes[0].InstanceID)

			inst, err := exec.Instance(ctx, live)
			require.NoError(t, err)
			assert.Equal(t, []string{"wolves", "herbs"}, inst.Active())
		})
	}
}

func TestExecutor_ConcurrentObserve(t *testing.T) {
	ctx := context.Background()
	exec, m := newExecutor(t)
	id, err := exec.Create(ctx, m.ID)
	require.NoError(t, err)
	_, err = exec.Start(ctx, id)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, pred := range []string{"talked", "herbs", "rep", "noise", "talked"} {
		wg.Add(1)
		go func(pred string) {
			defer wg.Done()
			_, err := exec.Observe(ctx, id, pred, domain.Number(20))
			assert.NoError(t, err)
		}(pred)
	}
	wg.Wait()

	inst, err := exec.Instance(ctx, id)
	require.NoError(t, err)
	s := inst.Snapshot()
	assert.Len(t, s.Observed, 3, "every known observation was kept")
	assert.Equal(t, []string{"wolves"}, inst.Active())
}
