package document

import (
	"fmt"
	"strings"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
	"github.com/aretw0/questgraph/pkg/schema"
)

// Document is the mutable authoring model of a quest graph.
// Every mutation is checked for local consistency before it is applied; a
// rejected mutation returns a *domain.StructuralError and changes nothing.
//
// A Document is not safe for concurrent use. Hand Snapshots to other goroutines.
type Document struct {
	name     string
	nodes    map[string]*domain.Node
	order    []string
	edges    []domain.Edge
	revision uint64
}

// New creates an empty document.
func New(name string) *Document {
	return &Document{
		name:  name,
		nodes: make(map[string]*domain.Node),
	}
}

// FromSnapshot rebuilds an editable document from a snapshot, replaying every
// node and edge through the checked mutations.
func FromSnapshot(snap ports.GraphSnapshot) (*Document, error) {
	d := New(snap.Name())
	for _, n := range snap.Nodes() {
		if err := d.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range snap.Edges() {
		if err := d.Connect(e.From, e.To); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Name returns the quest name.
func (d *Document) Name() string { return d.name }

// Revision increases by one on every successful mutation.
func (d *Document) Revision() uint64 { return d.revision }

// Len returns the number of nodes.
func (d *Document) Len() int { return len(d.order) }

// Node returns a copy of the node with the given id.
func (d *Document) Node(id string) (domain.Node, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return domain.Node{}, false
	}
	return n.Clone(), true
}

// Snapshot returns an immutable copy of the current state.
func (d *Document) Snapshot() *Snapshot {
	nodes := make([]domain.Node, 0, len(d.order))
	for _, id := range d.order {
		nodes = append(nodes, *d.nodes[id])
	}
	return newSnapshot(d.name, d.revision, nodes, d.edges)
}

func (d *Document) commit() {
	d.revision++
}

func structural(op, invariant, node, pin, format string, args ...any) error {
	return &domain.StructuralError{
		Op:        op,
		Invariant: invariant,
		Node:      node,
		Pin:       pin,
		Msg:       fmt.Sprintf(format, args...),
	}
}

// AddNode inserts a node at the end of the insertion order.
// Pins without a direction take the side they are listed on, pins without a
// type default to control.
func (d *Document) AddNode(n domain.Node) error {
	const op = "add node"
	if strings.TrimSpace(n.ID) == "" {
		return structural(op, domain.InvariantNodeID, "", "", "node id must not be empty")
	}
	if _, exists := d.nodes[n.ID]; exists {
		return structural(op, domain.InvariantUniqueNode, n.ID, "", "node already exists")
	}
	if !n.Kind.Valid() {
		return structural(op, domain.InvariantNodeKind, n.ID, "", "unknown kind %q", n.Kind)
	}

	node := n.Clone()
	if err := normalizePins(op, node.ID, node.Inputs, domain.DirInput); err != nil {
		return err
	}
	if err := normalizePins(op, node.ID, node.Outputs, domain.DirOutput); err != nil {
		return err
	}
	if node.Kind == domain.KindTerminal && len(node.Outputs) > 0 {
		return structural(op, domain.InvariantTerminalPins, node.ID, node.Outputs[0].ID, "terminal nodes have no outputs")
	}
	s := schema.ForKind(node.Kind)
	for _, key := range sortedKeys(node.Config) {
		if err := schema.ValidateField(s, key, node.Config[key]); err != nil {
			return &domain.StructuralError{Op: op, Invariant: domain.InvariantPayloadType, Node: node.ID, Err: err}
		}
	}

	d.nodes[node.ID] = &node
	d.order = append(d.order, node.ID)
	d.commit()
	return nil
}

func normalizePins(op, nodeID string, pins []domain.Pin, dir domain.Direction) error {
	seen := make(map[string]bool, len(pins))
	for i := range pins {
		p := &pins[i]
		if p.ID == "" {
			return structural(op, domain.InvariantPinExists, nodeID, "", "pin id must not be empty")
		}
		if seen[p.ID] {
			return structural(op, domain.InvariantUniquePin, nodeID, p.ID, "duplicate %s pin", dir)
		}
		seen[p.ID] = true
		if p.Direction == "" {
			p.Direction = dir
		}
		if p.Direction != dir {
			return structural(op, domain.InvariantPinDirection, nodeID, p.ID, "pin listed as %s declares %s", dir, p.Direction)
		}
		if p.Type == "" {
			p.Type = domain.PinControl
		}
		if !p.Type.Valid() {
			return structural(op, domain.InvariantPinType, nodeID, p.ID, "unknown pin type %q", p.Type)
		}
	}
	return nil
}

// RemoveNode deletes a node together with every edge touching it.
func (d *Document) RemoveNode(id string) error {
	if _, ok := d.nodes[id]; !ok {
		return structural("remove node", domain.InvariantNodeExists, id, "", "no such node")
	}
	delete(d.nodes, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i:i], d.order[i+1:]...)
			break
		}
	}
	d.edges = filterEdges(d.edges, func(e domain.Edge) bool {
		return e.From.Node != id && e.To.Node != id
	})
	d.commit()
	return nil
}

// RenameNode changes a node id, keeping its position and rewriting its edges.
func (d *Document) RenameNode(oldID, newID string) error {
	const op = "rename node"
	n, ok := d.nodes[oldID]
	if !ok {
		return structural(op, domain.InvariantNodeExists, oldID, "", "no such node")
	}
	if strings.TrimSpace(newID) == "" {
		return structural(op, domain.InvariantNodeID, oldID, "", "node id must not be empty")
	}
	if oldID == newID {
		return nil
	}
	if _, exists := d.nodes[newID]; exists {
		return structural(op, domain.InvariantUniqueNode, newID, "", "node already exists")
	}

	n.ID = newID
	delete(d.nodes, oldID)
	d.nodes[newID] = n
	for i, id := range d.order {
		if id == oldID {
			d.order[i] = newID
		}
	}
	for i := range d.edges {
		if d.edges[i].From.Node == oldID {
			d.edges[i].From.Node = newID
		}
		if d.edges[i].To.Node == oldID {
			d.edges[i].To.Node = newID
		}
	}
	d.commit()
	return nil
}

// AddPin appends a pin on the side given by its direction.
func (d *Document) AddPin(nodeID string, pin domain.Pin) error {
	const op = "add pin"
	n, ok := d.nodes[nodeID]
	if !ok {
		return structural(op, domain.InvariantNodeExists, nodeID, "", "no such node")
	}
	if pin.Direction != domain.DirInput && pin.Direction != domain.DirOutput {
		return structural(op, domain.InvariantPinDirection, nodeID, pin.ID, "pin needs a direction")
	}
	if n.Kind == domain.KindTerminal && pin.Direction == domain.DirOutput {
		return structural(op, domain.InvariantTerminalPins, nodeID, pin.ID, "terminal nodes have no outputs")
	}
	side := n.Inputs
	if pin.Direction == domain.DirOutput {
		side = n.Outputs
	}
	candidate := append(append([]domain.Pin(nil), side...), pin)
	if err := normalizePins(op, nodeID, candidate, pin.Direction); err != nil {
		return err
	}
	if pin.Direction == domain.DirInput {
		n.Inputs = candidate
	} else {
		n.Outputs = candidate
	}
	d.commit()
	return nil
}

// RemovePin deletes a pin and every edge attached to it.
func (d *Document) RemovePin(nodeID string, dir domain.Direction, pinID string) error {
	const op = "remove pin"
	n, ok := d.nodes[nodeID]
	if !ok {
		return structural(op, domain.InvariantNodeExists, nodeID, "", "no such node")
	}
	if _, ok := n.Pin(dir, pinID); !ok {
		return structural(op, domain.InvariantPinExists, nodeID, pinID, "no such %s pin", dir)
	}
	keep := func(p domain.Pin) bool { return p.ID != pinID }
	if dir == domain.DirInput {
		n.Inputs = filterPins(n.Inputs, keep)
	} else {
		n.Outputs = filterPins(n.Outputs, keep)
	}
	ref := domain.PinRef{Node: nodeID, Pin: pinID}
	d.edges = filterEdges(d.edges, func(e domain.Edge) bool {
		if dir == domain.DirInput {
			return e.To != ref
		}
		return e.From != ref
	})
	d.commit()
	return nil
}

// RenamePin changes a pin id and rewrites the edges attached to it.
func (d *Document) RenamePin(nodeID string, dir domain.Direction, oldID, newID string) error {
	const op = "rename pin"
	n, ok := d.nodes[nodeID]
	if !ok {
		return structural(op, domain.InvariantNodeExists, nodeID, "", "no such node")
	}
	if _, ok := n.Pin(dir, oldID); !ok {
		return structural(op, domain.InvariantPinExists, nodeID, oldID, "no such %s pin", dir)
	}
	if newID == "" {
		return structural(op, domain.InvariantPinExists, nodeID, oldID, "pin id must not be empty")
	}
	if oldID == newID {
		return nil
	}
	if _, exists := n.Pin(dir, newID); exists {
		return structural(op, domain.InvariantUniquePin, nodeID, newID, "duplicate %s pin", dir)
	}
	pins := n.Inputs
	if dir == domain.DirOutput {
		pins = n.Outputs
	}
	for i := range pins {
		if pins[i].ID == oldID {
			pins[i].ID = newID
		}
	}
	for i := range d.edges {
		e := &d.edges[i]
		if dir == domain.DirOutput && e.From.Node == nodeID && e.From.Pin == oldID {
			e.From.Pin = newID
		}
		if dir == domain.DirInput && e.To.Node == nodeID && e.To.Pin == oldID {
			e.To.Pin = newID
		}
	}
	// branch cases are keyed by output pin
	if dir == domain.DirOutput && n.Kind == domain.KindBranch {
		if cases, ok := n.Config[domain.ConfigCases].(map[string]any); ok {
			if expr, ok := cases[oldID]; ok {
				delete(cases, oldID)
				cases[newID] = expr
			}
		}
	}
	d.commit()
	return nil
}

// Connect adds an edge from an output pin to an input pin.
func (d *Document) Connect(from, to domain.PinRef) error {
	const op = "connect"
	src, ok := d.nodes[from.Node]
	if !ok {
		return structural(op, domain.InvariantNodeExists, from.Node, "", "no such node")
	}
	dst, ok := d.nodes[to.Node]
	if !ok {
		return structural(op, domain.InvariantNodeExists, to.Node, "", "no such node")
	}
	out, ok := src.Output(from.Pin)
	if !ok {
		if _, isInput := src.Input(from.Pin); isInput {
			return structural(op, domain.InvariantPinDirection, from.Node, from.Pin, "edges start at output pins")
		}
		return structural(op, domain.InvariantPinExists, from.Node, from.Pin, "no such output pin")
	}
	in, ok := dst.Input(to.Pin)
	if !ok {
		if _, isOutput := dst.Output(to.Pin); isOutput {
			return structural(op, domain.InvariantPinDirection, to.Node, to.Pin, "edges end at input pins")
		}
		return structural(op, domain.InvariantPinExists, to.Node, to.Pin, "no such input pin")
	}
	if out.Type != in.Type {
		return structural(op, domain.InvariantPinType, to.Node, to.Pin, "cannot connect %s output to %s input", out.Type, in.Type)
	}

	edge := domain.Edge{From: from, To: to}
	incoming := 0
	for _, e := range d.edges {
		if e == edge {
			return structural(op, domain.InvariantDuplicateEdge, from.Node, from.Pin, "edge %s already exists", edge)
		}
		if e.To == to {
			incoming++
		}
	}
	if incoming > 0 && !AllowsFanIn(*dst, in) {
		return structural(op, domain.InvariantFanIn, to.Node, to.Pin, "input already connected; only gates with a join accept several")
	}

	d.edges = append(d.edges, edge)
	d.commit()
	return nil
}

// AllowsFanIn reports whether several edges may end at the given input pin.
func AllowsFanIn(n domain.Node, in domain.Pin) bool {
	if n.Kind != domain.KindGate || in.Type != domain.PinControl {
		return false
	}
	join, _ := n.Config[domain.ConfigJoin].(string)
	return domain.JoinPolicy(join).Valid()
}

// Disconnect removes an edge.
func (d *Document) Disconnect(from, to domain.PinRef) error {
	edge := domain.Edge{From: from, To: to}
	for i, e := range d.edges {
		if e == edge {
			d.edges = append(d.edges[:i:i], d.edges[i+1:]...)
			d.commit()
			return nil
		}
	}
	return structural("disconnect", domain.InvariantEdgeExists, from.Node, from.Pin, "no edge %s", edge)
}

// SetConfig sets one payload key. Keys known to the node kind are type checked.
func (d *Document) SetConfig(nodeID, key string, value any) error {
	const op = "set config"
	n, ok := d.nodes[nodeID]
	if !ok {
		return structural(op, domain.InvariantNodeExists, nodeID, "", "no such node")
	}
	if err := schema.ValidateField(schema.ForKind(n.Kind), key, value); err != nil {
		return &domain.StructuralError{Op: op, Invariant: domain.InvariantPayloadType, Node: nodeID, Err: err}
	}
	if key == domain.ConfigJoin && d.fanIn(nodeID) {
		join, _ := value.(string)
		if !domain.JoinPolicy(join).Valid() {
			return structural(op, domain.InvariantFanIn, nodeID, "", "gate has several incoming edges and needs a join")
		}
	}
	if n.Config == nil {
		n.Config = make(map[string]any)
	}
	n.Config[key] = domain.CloneValue(value)
	d.commit()
	return nil
}

// DeleteConfig removes one payload key.
func (d *Document) DeleteConfig(nodeID, key string) error {
	const op = "delete config"
	n, ok := d.nodes[nodeID]
	if !ok {
		return structural(op, domain.InvariantNodeExists, nodeID, "", "no such node")
	}
	if key == domain.ConfigJoin && d.fanIn(nodeID) {
		return structural(op, domain.InvariantFanIn, nodeID, "", "gate has several incoming edges and needs a join")
	}
	delete(n.Config, key)
	d.commit()
	return nil
}

// SetEntry moves the entry tag to nodeID, clearing it everywhere else.
// With entry false it only clears the tag on nodeID.
func (d *Document) SetEntry(nodeID string, entry bool) error {
	n, ok := d.nodes[nodeID]
	if !ok {
		return structural("set entry", domain.InvariantNodeExists, nodeID, "", "no such node")
	}
	if entry {
		for _, other := range d.nodes {
			other.Entry = false
		}
	}
	n.Entry = entry
	d.commit()
	return nil
}

// SetRepeatable toggles whether the node may sit on a cycle.
func (d *Document) SetRepeatable(nodeID string, repeatable bool) error {
	n, ok := d.nodes[nodeID]
	if !ok {
		return structural("set repeatable", domain.InvariantNodeExists, nodeID, "", "no such node")
	}
	n.Repeatable = repeatable
	d.commit()
	return nil
}

// fanIn reports whether any control input of the node has several edges.
func (d *Document) fanIn(nodeID string) bool {
	counts := make(map[string]int)
	for _, e := range d.edges {
		if e.To.Node == nodeID {
			counts[e.To.Pin]++
			if counts[e.To.Pin] > 1 {
				return true
			}
		}
	}
	return false
}

func filterEdges(edges []domain.Edge, keep func(domain.Edge) bool) []domain.Edge {
	var out []domain.Edge
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func filterPins(pins []domain.Pin, keep func(domain.Pin) bool) []domain.Pin {
	out := make([]domain.Pin, 0, len(pins))
	for _, p := range pins {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
