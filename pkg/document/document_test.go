package document_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/questgraph/pkg/document"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, kind domain.NodeKind, cfg map[string]any) domain.Node {
	in, out := domain.DefaultPins(kind)
	return domain.Node{ID: id, Kind: kind, Inputs: in, Outputs: out, Config: cfg}
}

func ref(s string) domain.PinRef {
	r, err := domain.ParsePinRef(s)
	if err != nil {
		panic(err)
	}
	return r
}

func requireInvariant(t *testing.T, err error, invariant string) {
	t.Helper()
	var se *domain.StructuralError
	require.True(t, errors.As(err, &se), "expected StructuralError, got %v", err)
	assert.Equal(t, invariant, se.Invariant)
}

func sample(t *testing.T) *document.Document {
	t.Helper()
	d := document.New("hunt")
	require.NoError(t, d.AddNode(node("start", domain.KindObjective, map[string]any{"when": "talked"})))
	require.NoError(t, d.AddNode(node("hunt", domain.KindObjective, map[string]any{"when": "wolves >= 3"})))
	require.NoError(t, d.AddNode(node("done", domain.KindTerminal, map[string]any{"outcome": "success"})))
	require.NoError(t, d.SetEntry("start", true))
	require.NoError(t, d.Connect(ref("start.out"), ref("hunt.in")))
	require.NoError(t, d.Connect(ref("hunt.out"), ref("done.in")))
	return d
}

func TestDocument_AddNode(t *testing.T) {
	d := sample(t)

	requireInvariant(t, d.AddNode(node("start", domain.KindObjective, nil)), domain.InvariantUniqueNode)
	requireInvariant(t, d.AddNode(node("", domain.KindObjective, nil)), domain.InvariantNodeID)
	requireInvariant(t, d.AddNode(domain.Node{ID: "x", Kind: "quiz"}), domain.InvariantNodeKind)

	bad := node("t2", domain.KindTerminal, nil)
	bad.Outputs = []domain.Pin{{ID: "out"}}
	requireInvariant(t, d.AddNode(bad), domain.InvariantTerminalPins)

	dup := node("p", domain.KindObjective, nil)
	dup.Inputs = append(dup.Inputs, domain.Pin{ID: "in"})
	requireInvariant(t, d.AddNode(dup), domain.InvariantUniquePin)

	typed := node("g", domain.KindGate, map[string]any{"join": "sometimes"})
	requireInvariant(t, d.AddNode(typed), domain.InvariantPayloadType)

	assert.Equal(t, 3, d.Len(), "rejected nodes leave the document unchanged")
}

func TestDocument_Connect(t *testing.T) {
	tests := []struct {
		name      string
		from, to  string
		invariant string
	}{
		{"duplicate", "start.out", "hunt.in", domain.InvariantDuplicateEdge},
		{"missing node", "ghost.out", "hunt.in", domain.InvariantNodeExists},
		{"missing pin", "start.nope", "hunt.in", domain.InvariantPinExists},
		{"from input", "hunt.in", "done.in", domain.InvariantPinDirection},
		{"to output", "start.out", "hunt.out", domain.InvariantPinDirection},
		{"fan-in on objective", "start.out", "done.in", domain.InvariantFanIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sample(t)
			rev := d.Revision()
			err := d.Connect(ref(tt.from), ref(tt.to))
			requireInvariant(t, err, tt.invariant)
			assert.Equal(t, rev, d.Revision())
			assert.Len(t, d.Snapshot().Edges(), 2)
		})
	}
}

func TestDocument_PinTypeMismatch(t *testing.T) {
	d := sample(t)
	require.NoError(t, d.AddPin("hunt", domain.Pin{ID: "cond", Direction: domain.DirInput, Type: domain.PinCondition}))
	err := d.Connect(ref("start.out"), ref("hunt.cond"))
	requireInvariant(t, err, domain.InvariantPinType)
}

func TestDocument_GateFanIn(t *testing.T) {
	d := sample(t)
	require.NoError(t, d.AddNode(node("side", domain.KindObjective, map[string]any{"when": "herbs"})))
	require.NoError(t, d.AddNode(node("gate", domain.KindGate, nil)))
	require.NoError(t, d.Connect(ref("side.out"), ref("gate.in")))

	// no join declared yet
	requireInvariant(t, d.Connect(ref("hunt.out"), ref("gate.in")), domain.InvariantFanIn)

	require.NoError(t, d.SetConfig("gate", "join", "and"))
	require.NoError(t, d.Connect(ref("hunt.out"), ref("gate.in")))

	// the join cannot go away while the gate has fan-in
	requireInvariant(t, d.DeleteConfig("gate", "join"), domain.InvariantFanIn)
	requireInvariant(t, d.SetConfig("gate", "join", 3), domain.InvariantPayloadType)
	require.NoError(t, d.SetConfig("gate", "join", "first"))
}

func TestDocument_RenameAndRemove(t *testing.T) {
	d := sample(t)

	require.NoError(t, d.RenameNode("hunt", "wolves"))
	snap := d.Snapshot()
	ids := []string{}
	for _, n := range snap.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"start", "wolves", "done"}, ids, "rename keeps insertion order")
	assert.Equal(t, []domain.Edge{
		{From: ref("start.out"), To: ref("wolves.in")},
		{From: ref("wolves.out"), To: ref("done.in")},
	}, snap.Edges())

	requireInvariant(t, d.RenameNode("wolves", "start"), domain.InvariantUniqueNode)

	require.NoError(t, d.RenamePin("wolves", domain.DirOutput, "out", "next"))
	assert.Equal(t, ref("wolves.next"), d.Snapshot().Edges()[1].From)

	require.NoError(t, d.RemovePin("wolves", domain.DirOutput, "next"))
	assert.Len(t, d.Snapshot().Edges(), 1)

	require.NoError(t, d.RemoveNode("start"))
	assert.Empty(t, d.Snapshot().Edges())
	requireInvariant(t, d.RemoveNode("start"), domain.InvariantNodeExists)
	requireInvariant(t, d.Disconnect(ref("a.out"), ref("b.in")), domain.InvariantEdgeExists)
}

func TestDocument_RenameBranchPinMovesCase(t *testing.T) {
	d := document.New("b")
	br := domain.Node{
		ID:      "choice",
		Kind:    domain.KindBranch,
		Inputs:  []domain.Pin{{ID: "in"}},
		Outputs: []domain.Pin{{ID: "spare"}, {ID: "slay"}},
		Config:  map[string]any{"cases": map[string]any{"spare": "mercy", "slay": "!mercy"}},
	}
	require.NoError(t, d.AddNode(br))
	require.NoError(t, d.RenamePin("choice", domain.DirOutput, "spare", "forgive"))

	n, ok := d.Node("choice")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"forgive": "mercy", "slay": "!mercy"}, n.Config["cases"])
}

func TestDocument_SetEntryMovesTag(t *testing.T) {
	d := sample(t)
	require.NoError(t, d.SetEntry("hunt", true))
	var entries []string
	for _, n := range d.Snapshot().Nodes() {
		if n.Entry {
			entries = append(entries, n.ID)
		}
	}
	assert.Equal(t, []string{"hunt"}, entries)
}

func TestSnapshot_IsImmutable(t *testing.T) {
	d := sample(t)
	snap := d.Snapshot()

	require.NoError(t, d.SetConfig("hunt", "when", "wolves >= 5"))
	n, _ := snap.Node("hunt")
	assert.Equal(t, "wolves >= 3", n.Config["when"], "later edits do not leak into old snapshots")

	nodes := snap.Nodes()
	nodes[0].Config["when"] = "tampered"
	again, _ := snap.Node("start")
	assert.Equal(t, "talked", again.Config["when"])
}

func TestFile_RoundTrip(t *testing.T) {
	d := sample(t)
	require.NoError(t, d.AddNode(domain.Node{
		ID:      "choice",
		Kind:    domain.KindBranch,
		Inputs:  []domain.Pin{{ID: "in"}},
		Outputs: []domain.Pin{{ID: "left"}, {ID: "right"}},
		Config:  map[string]any{"cases": map[string]any{"left": "a", "right": "b"}},
	}))

	var buf bytes.Buffer
	require.NoError(t, document.Encode(&buf, d.Snapshot()))

	back, err := document.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, d.Snapshot().Nodes(), back.Nodes())
	assert.Equal(t, d.Snapshot().Edges(), back.Edges())
	assert.Equal(t, "hunt", back.Name())
}

func TestFile_DecodeDefaultsAndErrors(t *testing.T) {
	src := `
version: 1
name: fetch
nodes:
  - id: start
    kind: objective
    entry: true
    config:
      when: has_item
  - id: end
    kind: terminal
    config:
      outcome: success
edges:
  - from: start.out
    to: end.in
`
	snap, err := document.Decode(strings.NewReader(src))
	require.NoError(t, err)
	start, ok := snap.Node("start")
	require.True(t, ok)
	assert.Equal(t, []domain.Pin{{ID: "in", Direction: domain.DirInput, Type: domain.PinControl}}, start.Inputs)
	end, _ := snap.Node("end")
	assert.Empty(t, end.Outputs)

	_, err = document.Decode(strings.NewReader("version: 9\nname: x\nnodes: []\n"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedVersion)

	_, err = document.Decode(strings.NewReader("version: 1\nname: x\nnodes: []\nedges:\n  - from: a\n    to: b.in\n"))
	assert.Error(t, err)

	_, err = document.Decode(strings.NewReader("version: 1\nname: x\nbogus: true\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestFile_DefaultsEachPinSide(t *testing.T) {
	src := `
version: 1
name: verdict
nodes:
  - id: verdict
    kind: branch
    entry: true
    outputs:
      - id: praise
      - id: scorn
    config:
      cases:
        praise: rep > 10
        scorn: "!(rep > 10)"
  - id: gather
    kind: gate
    inputs:
      - id: left
      - id: right
    config:
      join: or
`
	snap, err := document.Decode(strings.NewReader(src))
	require.NoError(t, err)

	verdict, ok := snap.Node("verdict")
	require.True(t, ok)
	assert.Equal(t, []domain.Pin{{ID: "in", Direction: domain.DirInput, Type: domain.PinControl}}, verdict.Inputs)
	require.Len(t, verdict.Outputs, 2)
	assert.Equal(t, "scorn", verdict.Outputs[1].ID)

	gather, _ := snap.Node("gather")
	require.Len(t, gather.Inputs, 2)
	assert.Equal(t, []domain.Pin{{ID: "out", Direction: domain.DirOutput, Type: domain.PinControl}}, gather.Outputs)

	var buf bytes.Buffer
	require.NoError(t, document.Encode(&buf, snap))
	assert.NotContains(t, buf.String(), "id: in\n", "the default input side is not written")
	back, err := document.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap.Nodes(), back.Nodes())
}

func TestFile_ShippedFixtureValidates(t *testing.T) {
	snap, err := document.ReadFile(filepath.Join("..", "..", "testdata", "smith.yaml"))
	require.NoError(t, err)
	verdict, ok := snap.Node("verdict")
	require.True(t, ok)
	require.Len(t, verdict.Inputs, 1)
	assert.Equal(t, "in", verdict.Inputs[0].ID)
}

func TestFromSnapshot(t *testing.T) {
	d := sample(t)
	rebuilt, err := document.FromSnapshot(d.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, d.Snapshot().Nodes(), rebuilt.Snapshot().Nodes())

	bad := document.NewSnapshot("bad", d.Snapshot().Nodes(), []domain.Edge{{From: ref("ghost.out"), To: ref("hunt.in")}})
	_, err = document.FromSnapshot(bad)
	requireInvariant(t, err, domain.InvariantNodeExists)
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hunt.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, document.Encode(f, sample(t).Snapshot()))
	require.NoError(t, f.Close())

	snap, err := document.FileLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hunt", snap.Name())
	assert.Len(t, snap.Nodes(), 3)

	_, err = document.FileLoader{Path: filepath.Join(t.TempDir(), "missing.yaml")}.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
