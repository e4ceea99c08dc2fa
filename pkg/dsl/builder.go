package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/questgraph/pkg/document"
	"github.com/aretw0/questgraph/pkg/domain"
)

// Builder manages quest construction. Nodes keep the order they were added in.
type Builder struct {
	name  string
	nodes []*NodeBuilder
	byID  map[string]*NodeBuilder
	errs  []error
}

// New creates a builder for a quest with the given name.
func New(name string) *Builder {
	return &Builder{
		name: name,
		byID: make(map[string]*NodeBuilder),
	}
}

// Objective adds a node that completes once its condition holds.
func (b *Builder) Objective(id, when string) *NodeBuilder {
	return b.add(id, domain.KindObjective).Config(domain.ConfigWhen, when)
}

// Gate adds a join node.
func (b *Builder) Gate(id string, join domain.JoinPolicy) *NodeBuilder {
	return b.add(id, domain.KindGate).Config(domain.ConfigJoin, string(join))
}

// Action adds a node that asks the host for a side effect.
func (b *Builder) Action(id, action string) *NodeBuilder {
	return b.add(id, domain.KindAction).Config(domain.ConfigAction, action)
}

// Branch adds an exclusive routing node. Cases are declared with Case.
func (b *Builder) Branch(id string) *NodeBuilder {
	nb := b.add(id, domain.KindBranch)
	nb.node.Outputs = nil
	return nb
}

// Terminal adds an end node.
func (b *Builder) Terminal(id string, outcome domain.TerminalOutcome) *NodeBuilder {
	return b.add(id, domain.KindTerminal).Config(domain.ConfigOutcome, string(outcome))
}

func (b *Builder) add(id string, kind domain.NodeKind) *NodeBuilder {
	if nb, ok := b.byID[id]; ok {
		b.errs = append(b.errs, fmt.Errorf("node %s declared twice", id))
		return nb
	}
	in, out := domain.DefaultPins(kind)
	nb := &NodeBuilder{
		node: domain.Node{ID: id, Kind: kind, Inputs: in, Outputs: out},
	}
	if len(b.nodes) == 0 {
		nb.node.Entry = true
	}
	b.nodes = append(b.nodes, nb)
	b.byID[id] = nb
	return nb
}

// Build assembles the document. The first node added is the entry unless
// another one was marked with Entry. Structural problems are reported here;
// semantic checks are left to the validator.
func (b *Builder) Build() (*document.Document, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	d := document.New(b.name)

	explicit := false
	for _, nb := range b.nodes {
		explicit = explicit || nb.entry
	}
	for i, nb := range b.nodes {
		n := nb.node
		if explicit {
			n.Entry = nb.entry
		} else {
			n.Entry = i == 0
		}
		if err := d.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, nb := range b.nodes {
		for _, l := range nb.links {
			from := domain.PinRef{Node: nb.node.ID, Pin: l.fromPin}
			to := domain.PinRef{Node: l.to, Pin: l.toPin}
			if err := d.Connect(from, to); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}
