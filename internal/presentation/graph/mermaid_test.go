package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/questgraph/internal/compiler"
	"github.com/aretw0/questgraph/internal/presentation/graph"
	"github.com/aretw0/questgraph/internal/validator"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hunt(t *testing.T) *domain.Machine {
	t.Helper()
	b := dsl.New("hunt")
	b.Objective("start", "talked").Title("Talk to the smith").Go("wolves", "herbs")
	b.Objective("wolves", "kills >= 3").Go("meet")
	b.Objective("herbs", "herbs").Optional().Go("meet")
	b.Gate("meet", domain.JoinAnd).Go("reward")
	b.Action("reward", "give_gold").Go("verdict")
	b.Branch("verdict").
		Case("praise", "rep > 10", "won").
		Case("scorn", "!(rep > 10)", "lost")
	b.Terminal("won", domain.OutcomeSuccess)
	b.Terminal("lost", domain.OutcomeFailure)
	d, err := b.Build()
	require.NoError(t, err)
	report := validator.Validate(d.Snapshot())
	require.True(t, report.Valid(), "%v", report.Errors())
	m, err := compiler.Compile(report)
	require.NoError(t, err)
	return m
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(hunt(t), nil)

	for _, want := range []string{
		"graph TD\n",
		`start(("Talk to the smith"))`,
		`wolves["wolves"]`,
		`meet{{"meet <br/> and"}}`,
		`verdict{"verdict"}`,
		`reward[["reward <br/> give_gold"]]`,
		`won(["won"])`,
		`start -- "talked" --> wolves`,
		`herbs -. "herbs" .-> meet`,
		`verdict -- "rep > 10" --> won`,
		`verdict -- "!(rep > 10)" --> lost`,
		"reward --> verdict",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	m := hunt(t)
	s := domain.NewInstanceState("q1", m.ID)
	start, _ := m.Index("start")
	wolves, _ := m.Index("wolves")
	herbs, _ := m.Index("herbs")
	s.History = []int{start, wolves, start}
	s.Active = []int{wolves}
	s.Interrupted = []int{herbs}

	out := graph.GenerateMermaid(m, graph.OverlayFor(m, s))
	assert.Equal(t, 1, strings.Count(out, "class start visited;"), "visited nodes are deduplicated")
	assert.Contains(t, out, "class wolves current;")
	assert.Contains(t, out, "class herbs interrupted;")
}
