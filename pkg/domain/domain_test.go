package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePinRef(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.PinRef
		wantErr bool
	}{
		{in: "start.out", want: domain.PinRef{Node: "start", Pin: "out"}},
		{in: "act1.forge.in", want: domain.PinRef{Node: "act1.forge", Pin: "in"}},
		{in: "start", wantErr: true},
		{in: "start.", wantErr: true},
		{in: ".out", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParsePinRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	values := []domain.Value{
		{},
		domain.Bool(true),
		domain.Number(3.25),
		domain.Number(-7),
		domain.String("dragon"),
	}
	for _, v := range values {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var back domain.Value
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, v, back, "round trip of %s", v)
	}
}

func TestValue_Truthy(t *testing.T) {
	assert.False(t, domain.Value{}.Truthy())
	assert.True(t, domain.Bool(true).Truthy())
	assert.False(t, domain.Number(0).Truthy())
	assert.True(t, domain.Number(2).Truthy())
	assert.False(t, domain.String("").Truthy())
	assert.True(t, domain.String("x").Truthy())
}

func TestValue_Compare(t *testing.T) {
	c, ok := domain.Number(1).Compare(domain.Number(2))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = domain.String("b").Compare(domain.String("a"))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = domain.String("1").Compare(domain.Number(1))
	assert.False(t, ok, "mixed kinds do not compare")
}

func TestValueOf(t *testing.T) {
	v, err := domain.ValueOf(3)
	require.NoError(t, err)
	assert.Equal(t, domain.Number(3), v)

	v, err = domain.ValueOf(json.Number("4.5"))
	require.NoError(t, err)
	assert.Equal(t, domain.Number(4.5), v)

	_, err = domain.ValueOf([]int{1})
	assert.Error(t, err)
}

func chain() *domain.Machine {
	// a -> b -> c, a -> c
	return &domain.Machine{
		Name:  "chain",
		Entry: 0,
		States: []domain.State{
			{NodeID: "a", Kind: domain.KindObjective, Guard: domain.NoCond, Out: []int{0, 2}},
			{NodeID: "b", Kind: domain.KindObjective, Guard: domain.NoCond, Out: []int{1}, In: []int{0}},
			{NodeID: "c", Kind: domain.KindTerminal, Guard: domain.NoCond, In: []int{1, 2}},
		},
		Transitions: []domain.Transition{
			{Source: 0, Target: 1, Guard: domain.NoCond},
			{Source: 1, Target: 2, Guard: domain.NoCond},
			{Source: 0, Target: 2, Guard: domain.NoCond},
		},
		Predicates: []string{"alpha", "beta"},
	}
}

func TestMachine_Lookup(t *testing.T) {
	m := chain()

	i, ok := m.Index("b")
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = m.Index("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 2}, m.Symbols())

	p, ok := m.Predicate("beta")
	assert.True(t, ok)
	assert.Equal(t, 1, p)
	_, ok = m.Predicate("gamma")
	assert.False(t, ok)
}

func TestMachine_Depth(t *testing.T) {
	assert.Equal(t, 1, chain().Depth(), "shortest path to c is direct")
}

func TestMachine_Check(t *testing.T) {
	require.NoError(t, chain().Check())

	m := chain()
	m.Transitions[1].Target = 9
	assert.Error(t, m.Check())

	m = chain()
	m.Entry = 3
	assert.Error(t, m.Check())

	m = chain()
	m.Conds = []domain.Cond{{Op: domain.OpAnd, Args: []int{0}}}
	assert.Error(t, m.Check(), "cond arguments must precede their parent")
}

func TestInstanceState_Clone(t *testing.T) {
	s := domain.NewInstanceState("i1", "def")
	s.Active = []int{1, 3}
	s.Observed = map[string]domain.Value{"k": domain.Bool(true)}
	s.Joins = map[int][]int{2: {1, 0}}

	c := s.Clone()
	assert.Equal(t, s, c)

	c.Active[0] = 9
	c.Joins[2][0] = 5
	c.Observed["k"] = domain.Bool(false)
	assert.Equal(t, []int{1, 3}, s.Active)
	assert.Equal(t, []int{1, 0}, s.Joins[2])
	assert.Equal(t, domain.Bool(true), s.Observed["k"])

	assert.True(t, s.IsActive(3))
	assert.False(t, s.IsActive(2))
}

func TestStructuralError_Message(t *testing.T) {
	err := &domain.StructuralError{Op: "connect", Invariant: domain.InvariantDuplicateEdge, Node: "a", Pin: "out", Msg: "edge already exists"}
	assert.Equal(t, "connect: duplicate-edge [node a pin out]: edge already exists", err.Error())
}
