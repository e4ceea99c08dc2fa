package domain

import (
	"fmt"
	"sort"
)

// NoCond marks a guard that always holds.
const NoCond = -1

// CondOp is the operator of a node in a flattened predicate tree.
type CondOp uint8

const (
	OpTrue CondOp = iota
	OpFalse
	OpAnd
	OpOr
	OpNot
	// OpRef reads an observed predicate. In a boolean position it tests truthiness.
	OpRef
	// OpLit is a literal operand.
	OpLit
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var condOpNames = [...]string{"true", "false", "and", "or", "not", "ref", "lit", "==", "!=", "<", "<=", ">", ">="}

func (o CondOp) String() string {
	if int(o) < len(condOpNames) {
		return condOpNames[o]
	}
	return fmt.Sprintf("op(%d)", o)
}

// Cond is one entry of the flattened predicate table.
// Args index other entries of Machine.Conds; children always precede parents.
type Cond struct {
	Op   CondOp `json:"op" msgpack:"op"`
	Args []int  `json:"args,omitempty" msgpack:"args"`
	Pred int    `json:"pred,omitempty" msgpack:"pred"`
	Lit  Value  `json:"lit,omitempty" msgpack:"lit"`
}

// ActionSpec describes the side effect an action state asks the host for.
type ActionSpec struct {
	Name   string           `json:"name" msgpack:"name"`
	Params map[string]Value `json:"params,omitempty" msgpack:"params"`
}

// State is a compiled node.
type State struct {
	NodeID     string          `json:"node_id" msgpack:"node_id"`
	Kind       NodeKind        `json:"kind" msgpack:"kind"`
	Title      string          `json:"title,omitempty" msgpack:"title"`
	Outcome    TerminalOutcome `json:"outcome,omitempty" msgpack:"outcome"`
	Join       JoinPolicy      `json:"join,omitempty" msgpack:"join"`
	Repeatable bool            `json:"repeatable,omitempty" msgpack:"repeatable"`
	MaxRepeats int             `json:"max_repeats,omitempty" msgpack:"max_repeats"`
	Milestone  bool            `json:"milestone,omitempty" msgpack:"milestone"`
	Optional   bool            `json:"optional,omitempty" msgpack:"optional"`

	// Exclusive states fire only the first port whose guard holds.
	Exclusive bool `json:"exclusive,omitempty" msgpack:"exclusive"`

	// Guard is the node-level exit condition, NoCond if unconditional.
	Guard int `json:"guard" msgpack:"guard"`

	// Out lists leaving transitions ordered by port, then authoring order.
	Out []int `json:"out,omitempty" msgpack:"out"`
	// In lists arriving transitions. Join counters use the same slot order.
	In []int `json:"in,omitempty" msgpack:"in"`

	Action *ActionSpec `json:"action,omitempty" msgpack:"action"`
}

// Terminal reports whether entering the state ends the quest.
func (s *State) Terminal() bool {
	return s.Kind == KindTerminal
}

// Transition is a compiled control edge.
type Transition struct {
	Source int `json:"source" msgpack:"source"`
	Target int `json:"target" msgpack:"target"`
	// Port is the index of the source output pin.
	Port int `json:"port" msgpack:"port"`
	// Guard combines the source guard and the port case, NoCond if unconditional.
	Guard int `json:"guard" msgpack:"guard"`
	// Optional transitions leave an optional objective and never block an AND join.
	Optional bool `json:"optional,omitempty" msgpack:"optional"`
}

// Machine is the immutable, index-based form of a validated quest graph.
// It is safe to share between goroutines as long as nobody mutates it.
type Machine struct {
	ID          string       `json:"id" msgpack:"id"`
	Name        string       `json:"name" msgpack:"name"`
	Entry       int          `json:"entry" msgpack:"entry"`
	States      []State      `json:"states" msgpack:"states"`
	Transitions []Transition `json:"transitions" msgpack:"transitions"`
	Conds       []Cond       `json:"conds" msgpack:"conds"`
	// Predicates is the sorted table of predicate ids referenced by conditions.
	Predicates []string `json:"predicates" msgpack:"predicates"`
}

// Index returns the dense index of the state compiled from nodeID.
func (m *Machine) Index(nodeID string) (int, bool) {
	for i := range m.States {
		if m.States[i].NodeID == nodeID {
			return i, true
		}
	}
	return 0, false
}

// Symbols returns the node id to state index table.
func (m *Machine) Symbols() map[string]int {
	out := make(map[string]int, len(m.States))
	for i, s := range m.States {
		out[s.NodeID] = i
	}
	return out
}

// Predicate returns the predicate table index of id.
func (m *Machine) Predicate(id string) (int, bool) {
	i := sort.SearchStrings(m.Predicates, id)
	if i < len(m.Predicates) && m.Predicates[i] == id {
		return i, true
	}
	return 0, false
}

// Depth returns the largest number of transitions on a shortest path from the
// entry to any state.
func (m *Machine) Depth() int {
	if len(m.States) == 0 {
		return 0
	}
	dist := make([]int, len(m.States))
	for i := range dist {
		dist[i] = -1
	}
	dist[m.Entry] = 0
	queue := []int{m.Entry}
	depth := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range m.States[cur].Out {
			next := m.Transitions[t].Target
			if dist[next] >= 0 {
				continue
			}
			dist[next] = dist[cur] + 1
			if dist[next] > depth {
				depth = dist[next]
			}
			queue = append(queue, next)
		}
	}
	return depth
}

// Check verifies that every index in the machine is in range.
// Decoders call it before handing a machine to the runtime.
func (m *Machine) Check() error {
	ns, nt, nc := len(m.States), len(m.Transitions), len(m.Conds)
	if ns == 0 {
		return fmt.Errorf("machine %q has no states", m.Name)
	}
	if m.Entry < 0 || m.Entry >= ns {
		return fmt.Errorf("entry index %d out of range", m.Entry)
	}
	inCond := func(i int) bool { return i == NoCond || (i >= 0 && i < nc) }
	seen := make(map[string]bool, ns)
	for i, s := range m.States {
		if seen[s.NodeID] {
			return fmt.Errorf("state %d: duplicate node id %q", i, s.NodeID)
		}
		seen[s.NodeID] = true
		if !inCond(s.Guard) {
			return fmt.Errorf("state %d: guard %d out of range", i, s.Guard)
		}
		for _, t := range append(append([]int(nil), s.Out...), s.In...) {
			if t < 0 || t >= nt {
				return fmt.Errorf("state %d: transition %d out of range", i, t)
			}
		}
	}
	for i, t := range m.Transitions {
		if t.Source < 0 || t.Source >= ns || t.Target < 0 || t.Target >= ns {
			return fmt.Errorf("transition %d: endpoint out of range", i)
		}
		if !inCond(t.Guard) {
			return fmt.Errorf("transition %d: guard %d out of range", i, t.Guard)
		}
	}
	for i, c := range m.Conds {
		for _, a := range c.Args {
			if a < 0 || a >= i {
				return fmt.Errorf("cond %d: argument %d out of order", i, a)
			}
		}
		if c.Op == OpRef && (c.Pred < 0 || c.Pred >= len(m.Predicates)) {
			return fmt.Errorf("cond %d: predicate %d out of range", i, c.Pred)
		}
	}
	return nil
}
