package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/questgraph/internal/compiler"
	"github.com/aretw0/questgraph/internal/runtime"
	"github.com/aretw0/questgraph/internal/validator"
	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, b *dsl.Builder) *domain.Machine {
	t.Helper()
	d, err := b.Build()
	require.NoError(t, err)
	r := validator.Validate(d.Snapshot())
	require.True(t, r.Valid(), "%v", r.Errors())
	m, err := compiler.Compile(r)
	require.NoError(t, err)
	return m
}

func hunt(t *testing.T) *domain.Machine {
	b := dsl.New("hunt")
	b.Objective("start", "talked").Go("wolves", "herbs")
	b.Objective("wolves", "kills >= 3").Milestone().Go("meet")
	b.Objective("herbs", "herbs").Optional().Go("meet")
	b.Gate("meet", domain.JoinAnd).Go("reward")
	b.Action("reward", "give_gold").Param("amount", 50).Go("verdict")
	b.Branch("verdict").
		Case("praise", "rep > 10", "won").
		Case("scorn", "!(rep > 10)", "lost")
	b.Terminal("won", domain.OutcomeSuccess)
	b.Terminal("lost", domain.OutcomeFailure)
	return compile(t, b)
}

// fork: start splits into a and b, which meet at a gate with the given join.
func fork(t *testing.T, join domain.JoinPolicy) *domain.Machine {
	b := dsl.New("fork")
	b.Objective("start", "go").Go("a", "b")
	b.Objective("a", "a").Go("gate")
	b.Objective("b", "b").Go("gate")
	b.Gate("gate", join).Go("c")
	b.Objective("c", "c").Go("end")
	b.Terminal("end", domain.OutcomeSuccess)
	return compile(t, b)
}

func observe(t *testing.T, i *runtime.Instance, pred string, v domain.Value) domain.Outcome {
	t.Helper()
	out, err := i.Observe(context.Background(), pred, v)
	require.NoError(t, err)
	return out
}

func start(t *testing.T, i *runtime.Instance) domain.Outcome {
	t.Helper()
	out, err := i.Start(context.Background())
	require.NoError(t, err)
	return out
}

func TestStart_ActivatesEntryOnly(t *testing.T) {
	i := runtime.NewInstance(hunt(t), "i1")
	assert.Equal(t, domain.StatusPending, i.Status())
	assert.Empty(t, i.Active())

	out := start(t, i)
	assert.Equal(t, domain.StatusActive, out.Status)
	assert.Equal(t, "i1", out.InstanceID)
	assert.Equal(t, []string{"start"}, i.Active())
	assert.Equal(t, []int{0}, i.Snapshot().History)
	assert.Empty(t, out.Entered)

	_, err := i.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
}

func TestHunt_Scorned(t *testing.T) {
	i := runtime.NewInstance(hunt(t), "i1")
	start(t, i)

	out := observe(t, i, "talked", domain.Bool(true))
	assert.Equal(t, []string{"wolves", "herbs"}, i.Active())
	assert.Equal(t, []string{"wolves"}, out.Entered, "milestones are reported on entry")

	out = observe(t, i, "kills", domain.Number(2))
	assert.Empty(t, out.Entered)
	assert.Equal(t, domain.StatusActive, out.Status)

	out = observe(t, i, "kills", domain.Number(3))
	assert.Equal(t, domain.StatusFailed, out.Status, "rep was never observed")
	assert.Equal(t, []string{"lost"}, out.Entered)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, domain.ActionRequest{
		NodeID: "reward",
		Name:   "give_gold",
		Params: map[string]domain.Value{"amount": domain.Number(50)},
	}, out.Actions[0])
	assert.Empty(t, i.Active(), "terminal clears the active set")
}

func TestHunt_Praised(t *testing.T) {
	i := runtime.NewInstance(hunt(t), "i1")
	start(t, i)
	observe(t, i, "rep", domain.Number(20))
	observe(t, i, "talked", domain.Bool(true))
	observe(t, i, "herbs", domain.Bool(true))
	assert.Equal(t, []string{"wolves"}, i.Active())

	out := observe(t, i, "kills", domain.Number(5))
	assert.Equal(t, domain.StatusSucceeded, out.Status)
	assert.Equal(t, []string{"won"}, out.Entered)
}

func TestObserve_BeforeStartIsKept(t *testing.T) {
	i := runtime.NewInstance(hunt(t), "i1")
	out := observe(t, i, "talked", domain.Bool(true))
	assert.Equal(t, domain.StatusPending, out.Status)
	assert.Empty(t, i.Active())

	start(t, i)
	assert.Equal(t, []string{"wolves", "herbs"}, i.Active())
}

func TestObserve_UnknownPredicateIgnored(t *testing.T) {
	i := runtime.NewInstance(hunt(t), "i1")
	start(t, i)
	before := i.Snapshot()

	out := observe(t, i, "weather", domain.String("rain"))
	assert.Equal(t, domain.StatusActive, out.Status)
	assert.Equal(t, before, i.Snapshot())
}

func TestJoins(t *testing.T) {
	t.Run("and waits for every path", func(t *testing.T) {
		i := runtime.NewInstance(fork(t, domain.JoinAnd), "i")
		start(t, i)
		observe(t, i, "go", domain.Bool(true))
		observe(t, i, "a", domain.Bool(true))
		assert.Equal(t, []string{"b"}, i.Active())
		assert.Equal(t, map[int][]int{3: {1, 0}}, i.Snapshot().Joins)

		observe(t, i, "b", domain.Bool(true))
		assert.Equal(t, []string{"c"}, i.Active())
		assert.Nil(t, i.Snapshot().Joins, "counters reset once the gate opens")

		out := observe(t, i, "c", domain.Bool(true))
		assert.Equal(t, domain.StatusSucceeded, out.Status)
	})

	t.Run("or opens on any path", func(t *testing.T) {
		i := runtime.NewInstance(fork(t, domain.JoinOr), "i")
		start(t, i)
		observe(t, i, "go", domain.Bool(true))
		observe(t, i, "a", domain.Bool(true))
		assert.Equal(t, []string{"b", "c"}, i.Active())

		observe(t, i, "b", domain.Bool(true))
		assert.Equal(t, []string{"c"}, i.Active())
		assert.Equal(t, []int{0, 1, 2, 3, 4, 3}, i.Snapshot().History, "second arrival re-enters the gate")
	})

	t.Run("first wins locks the gate", func(t *testing.T) {
		i := runtime.NewInstance(fork(t, domain.JoinFirst), "i")
		start(t, i)
		observe(t, i, "go", domain.Bool(true))
		observe(t, i, "b", domain.Bool(true))
		observe(t, i, "a", domain.Bool(true))
		assert.Equal(t, []string{"c"}, i.Active())
		s := i.Snapshot()
		assert.Equal(t, []int{3}, s.Locked)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, s.History, "the gate is entered once")
	})

	t.Run("optional objective does not block and", func(t *testing.T) {
		i := runtime.NewInstance(hunt(t), "i")
		start(t, i)
		observe(t, i, "rep", domain.Number(50))
		observe(t, i, "talked", domain.Bool(true))
		out := observe(t, i, "kills", domain.Number(3))
		assert.Equal(t, domain.StatusSucceeded, out.Status)
	})
}

func TestBranch_FiresFirstSatisfiedPortOnly(t *testing.T) {
	b := dsl.New("fork")
	b.Objective("start", "go").Go("pick")
	b.Branch("pick").
		Case("left", "x", "won").
		Case("right", "x", "lost")
	b.Terminal("won", domain.OutcomeSuccess)
	b.Terminal("lost", domain.OutcomeFailure)
	i := runtime.NewInstance(compile(t, b), "i")

	start(t, i)
	observe(t, i, "x", domain.Bool(true))
	out := observe(t, i, "go", domain.Bool(true))
	assert.Equal(t, domain.StatusSucceeded, out.Status)
	assert.Equal(t, []string{"won"}, out.Entered)
}

func TestBranch_WaitsForACase(t *testing.T) {
	b := dsl.New("fork")
	b.Objective("start", "go").Go("pick")
	b.Branch("pick").
		Case("left", "side == \"left\"", "won").
		Case("right", "side == \"right\"", "lost")
	b.Terminal("won", domain.OutcomeSuccess)
	b.Terminal("lost", domain.OutcomeFailure)
	i := runtime.NewInstance(compile(t, b), "i")

	start(t, i)
	observe(t, i, "go", domain.Bool(true))
	assert.Equal(t, []string{"pick"}, i.Active())

	out := observe(t, i, "side", domain.String("right"))
	assert.Equal(t, domain.StatusFailed, out.Status)
}

func TestAbandon_IsFinal(t *testing.T) {
	ctx := context.Background()
	i := runtime.NewInstance(hunt(t), "i")
	start(t, i)
	observe(t, i, "talked", domain.Bool(true))

	out, err := i.Abandon(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbandoned, out.Status)
	assert.Empty(t, i.Active())
	frozen := i.Snapshot()

	out = observe(t, i, "kills", domain.Number(9))
	assert.Equal(t, domain.StatusAbandoned, out.Status)
	out, err = i.Abandon(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbandoned, out.Status)
	_, err = i.Start(ctx)
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
	assert.Equal(t, frozen, i.Snapshot())
}

func TestAbandon_Pending(t *testing.T) {
	i := runtime.NewInstance(hunt(t), "i")
	out, err := i.Abandon(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbandoned, out.Status)
}

func TestTerminal_IsFinal(t *testing.T) {
	i := runtime.NewInstance(fork(t, domain.JoinOr), "i")
	start(t, i)
	for _, p := range []string{"go", "a", "c"} {
		observe(t, i, p, domain.Bool(true))
	}
	require.Equal(t, domain.StatusSucceeded, i.Status())
	out := observe(t, i, "b", domain.Bool(true))
	assert.Equal(t, domain.StatusSucceeded, out.Status)
	assert.Empty(t, out.Entered)
}

func TestStall_Fails(t *testing.T) {
	b := dsl.New("stall")
	b.Objective("start", "go").Go("pick")
	b.Branch("pick").
		Case("win", "win", "end").
		Case("lose", "!win", "stuck")
	b.Objective("stuck", "x")
	b.Terminal("end", domain.OutcomeSuccess)
	i := runtime.NewInstance(compile(t, b), "i")

	start(t, i)
	observe(t, i, "go", domain.Bool(true))
	assert.Equal(t, []string{"stuck"}, i.Active())

	out := observe(t, i, "x", domain.Bool(true))
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Empty(t, out.Entered)
}

// grind loops through a repeatable task until done is observed.
func grind(t *testing.T, limit int) *domain.Machine {
	b := dsl.New("grind")
	b.Objective("start", "go").Go("merge")
	b.Gate("merge", domain.JoinOr).Repeatable(0).Go("hub")
	b.Branch("hub").Repeatable(0).
		Case("finish", "done", "end").
		Case("again", "!done", "task")
	b.Objective("task", "tick").Repeatable(limit).Go("merge")
	b.Terminal("end", domain.OutcomeSuccess)
	return compile(t, b)
}

func TestRepeatable_MaxRepeats(t *testing.T) {
	i := runtime.NewInstance(grind(t, 2), "i")
	start(t, i)
	observe(t, i, "go", domain.Bool(true))
	assert.Equal(t, []string{"task"}, i.Active())

	out := observe(t, i, "tick", domain.Bool(true))
	assert.Equal(t, domain.StatusFailed, out.Status, "the third entry is refused and the quest stalls")
	assert.Equal(t, map[int]int{3: 2}, i.Snapshot().Visits)
}

func TestRepeatable_LeavesLoop(t *testing.T) {
	i := runtime.NewInstance(grind(t, 0), "i")
	start(t, i)
	observe(t, i, "go", domain.Bool(true))
	assert.Equal(t, []string{"task"}, i.Active())

	out := observe(t, i, "done", domain.Bool(true))
	assert.Equal(t, domain.StatusActive, out.Status, "task still waits for its own tick")
	out = observe(t, i, "tick", domain.Bool(true))
	assert.Equal(t, domain.StatusSucceeded, out.Status)
	assert.Equal(t, []int{0, 1, 2, 3, 1, 2, 4}, i.Snapshot().History)
}

func TestCascadeLimit_LeavesInstanceUntouched(t *testing.T) {
	i := runtime.NewInstance(grind(t, 0), "i", runtime.WithMaxCascade(10))
	start(t, i)
	observe(t, i, "go", domain.Bool(true))
	before := i.Snapshot()

	_, err := i.Observe(context.Background(), "tick", domain.Bool(true))
	assert.ErrorIs(t, err, runtime.ErrCascadeLimit)
	assert.Equal(t, before, i.Snapshot())
}

func TestInterrupt(t *testing.T) {
	ctx := context.Background()
	i := runtime.NewInstance(hunt(t), "i")
	_, err := i.Interrupt(ctx, "start")
	assert.ErrorIs(t, err, domain.ErrNotActive)

	start(t, i)
	observe(t, i, "talked", domain.Bool(true))

	out, err := i.Interrupt(ctx, "herbs")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, out.Status)
	assert.Equal(t, []string{"wolves"}, i.Active())
	assert.Equal(t, []int{2}, i.Snapshot().Interrupted)

	_, err = i.Interrupt(ctx, "herbs")
	assert.ErrorIs(t, err, runtime.ErrStateNotActive)
	_, err = i.Interrupt(ctx, "dragon")
	assert.ErrorIs(t, err, domain.ErrUnknownState)

	out, err = i.Interrupt(ctx, "wolves")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbandoned, out.Status)
}

func TestForceEnter(t *testing.T) {
	ctx := context.Background()
	i := runtime.NewInstance(hunt(t), "i")
	start(t, i)
	observe(t, i, "rep", domain.Number(11))

	out, err := i.ForceEnter(ctx, "verdict")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, out.Status)
	assert.Equal(t, []string{"won"}, out.Entered)

	_, err = i.ForceEnter(ctx, "start")
	assert.ErrorIs(t, err, domain.ErrNotActive)
}

func TestLifecycleHooks(t *testing.T) {
	var log []string
	hooks := domain.LifecycleHooks{
		OnStart: func(_ context.Context, e *domain.LifecycleEvent) {
			log = append(log, "start:"+string(e.Status))
		},
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			log = append(log, "enter:"+e.NodeID)
		},
		OnStateLeave: func(_ context.Context, e *domain.StateEvent) {
			log = append(log, "leave:"+e.NodeID)
		},
		OnObserve: func(_ context.Context, e *domain.ObserveEvent) {
			if e.Known {
				log = append(log, "observe:"+e.Predicate)
			} else {
				log = append(log, "ignore:"+e.Predicate)
			}
		},
		OnFinish: func(_ context.Context, e *domain.LifecycleEvent) {
			assert.Equal(t, "fork", e.Quest)
			log = append(log, "finish:"+string(e.Status))
		},
	}
	i := runtime.NewInstance(fork(t, domain.JoinOr), "i", runtime.WithLifecycleHooks(hooks))
	start(t, i)
	observe(t, i, "noise", domain.Value{})
	observe(t, i, "go", domain.Bool(true))
	_, err := i.Abandon(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start:active",
		"enter:start",
		"ignore:noise",
		"observe:go",
		"leave:start",
		"enter:a",
		"enter:b",
		"leave:a",
		"leave:b",
		"finish:abandoned",
	}, log)
}

func TestSnapshotRestore_ContinuesIdentically(t *testing.T) {
	m := hunt(t)
	events := []struct {
		pred string
		v    domain.Value
	}{
		{"talked", domain.Bool(true)},
		{"herbs", domain.Bool(true)},
		{"rep", domain.Number(30)},
		{"kills", domain.Number(3)},
	}

	straight := runtime.NewInstance(m, "i")
	start(t, straight)
	for _, e := range events {
		observe(t, straight, e.pred, e.v)
	}

	resumed := runtime.NewInstance(m, "i")
	start(t, resumed)
	for n, e := range events {
		data, err := codec.EncodeInstance(resumed.Snapshot(), codec.FormatBinary)
		require.NoError(t, err)
		s, err := codec.DecodeInstance(data, codec.FormatBinary)
		require.NoError(t, err)
		resumed, err = runtime.Restore(m, s)
		require.NoError(t, err, "event %d", n)
		observe(t, resumed, e.pred, e.v)
	}

	assert.Equal(t, domain.StatusSucceeded, resumed.Status())
	assert.Equal(t, straight.Snapshot(), resumed.Snapshot())
}

func TestRestore_RejectsForeignState(t *testing.T) {
	m := hunt(t)
	_, err := runtime.Restore(m, domain.NewInstanceState("i", "other@0000"))
	assert.Error(t, err)

	s := domain.NewInstanceState("i", m.ID)
	s.Active = []int{99}
	_, err = runtime.Restore(m, s)
	assert.Error(t, err)
}
