package document

import (
	"sort"

	"github.com/aretw0/questgraph/pkg/domain"
)

// Snapshot is an immutable view of a document at one revision.
// Accessors return copies, so callers cannot reach back into it.
type Snapshot struct {
	name     string
	revision uint64
	nodes    []domain.Node
	index    map[string]int
	edges    []domain.Edge
}

// NewSnapshot builds a snapshot straight from nodes and edges without the
// mutation checks. Decoders use it so that the validator can report every
// problem in a hand-written file instead of failing on the first one.
func NewSnapshot(name string, nodes []domain.Node, edges []domain.Edge) *Snapshot {
	return newSnapshot(name, 0, nodes, edges)
}

func newSnapshot(name string, revision uint64, nodes []domain.Node, edges []domain.Edge) *Snapshot {
	s := &Snapshot{
		name:     name,
		revision: revision,
		nodes:    make([]domain.Node, len(nodes)),
		index:    make(map[string]int, len(nodes)),
		edges:    append([]domain.Edge(nil), edges...),
	}
	for i, n := range nodes {
		s.nodes[i] = n.Clone()
		if _, dup := s.index[n.ID]; !dup {
			s.index[n.ID] = i
		}
	}
	return s
}

// Name returns the quest name.
func (s *Snapshot) Name() string { return s.name }

// Revision returns the document revision the snapshot was taken at.
func (s *Snapshot) Revision() uint64 { return s.revision }

// Nodes returns the nodes in insertion order.
func (s *Snapshot) Nodes() []domain.Node {
	out := make([]domain.Node, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Node returns the node with the given id.
func (s *Snapshot) Node(id string) (domain.Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.Node{}, false
	}
	return s.nodes[i].Clone(), true
}

// Edges returns the edges in insertion order.
func (s *Snapshot) Edges() []domain.Edge {
	return append([]domain.Edge(nil), s.edges...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
