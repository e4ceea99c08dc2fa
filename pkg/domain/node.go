package domain

import "fmt"

// NodeKind defines the role a node plays in the quest flow.
type NodeKind string

const (
	// KindObjective waits for its condition to hold before it completes.
	KindObjective NodeKind = "objective"
	// KindBranch routes to the first output whose case holds.
	KindBranch NodeKind = "branch"
	// KindGate joins several incoming paths under a join policy.
	KindGate NodeKind = "gate"
	// KindAction asks the host to perform a side effect and continues immediately.
	KindAction NodeKind = "action"
	// KindTerminal ends the quest with an outcome.
	KindTerminal NodeKind = "terminal"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case KindObjective, KindBranch, KindGate, KindAction, KindTerminal:
		return true
	}
	return false
}

// Direction is the side of a node a pin sits on.
type Direction string

const (
	DirInput  Direction = "input"
	DirOutput Direction = "output"
)

// PinType tags the kind of value that flows through a pin.
// Edges only connect pins of the same type.
type PinType string

const (
	PinControl   PinType = "control"
	PinCondition PinType = "condition"
	PinData      PinType = "data"
)

// Valid reports whether t is a known pin type.
func (t PinType) Valid() bool {
	switch t {
	case PinControl, PinCondition, PinData:
		return true
	}
	return false
}

// Default pin names applied when a node declares none.
const (
	DefaultInputPin  = "in"
	DefaultOutputPin = "out"
)

// Pin is a typed connection point on a node.
type Pin struct {
	ID        string    `json:"id" yaml:"id"`
	Direction Direction `json:"direction" yaml:"direction"`
	Type      PinType   `json:"type" yaml:"type"`
	Default   any       `json:"default,omitempty" yaml:"default,omitempty"`
}

// PinRef addresses a pin on a node.
type PinRef struct {
	Node string `json:"node" yaml:"node"`
	Pin  string `json:"pin" yaml:"pin"`
}

func (r PinRef) String() string {
	return r.Node + "." + r.Pin
}

// ParsePinRef parses the "node.pin" notation. The last dot separates the pin.
func ParsePinRef(s string) (PinRef, error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			if i == 0 || i == len(s)-1 {
				break
			}
			return PinRef{Node: s[:i], Pin: s[i+1:]}, nil
		}
	}
	return PinRef{}, fmt.Errorf("invalid pin reference %q: expected node.pin", s)
}

// Edge connects one output pin to one input pin.
// Fan-out from an output pin is expressed as several edges sharing From.
type Edge struct {
	From PinRef `json:"from" yaml:"from"`
	To   PinRef `json:"to" yaml:"to"`
}

func (e Edge) String() string {
	return e.From.String() + " -> " + e.To.String()
}

// Node is one authoring unit of a quest graph.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Entry marks the node the quest starts from. Exactly one node carries it.
	Entry bool `json:"entry,omitempty" yaml:"entry,omitempty"`

	// Repeatable allows the node to take part in a cycle.
	Repeatable bool `json:"repeatable,omitempty" yaml:"repeatable,omitempty"`

	Inputs  []Pin `json:"inputs" yaml:"inputs"`
	Outputs []Pin `json:"outputs" yaml:"outputs"`

	// Config is the kind-specific payload (conditions, join policy, outcome...).
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Input returns the input pin with the given id.
func (n *Node) Input(id string) (Pin, bool) {
	return findPin(n.Inputs, id)
}

// Output returns the output pin with the given id.
func (n *Node) Output(id string) (Pin, bool) {
	return findPin(n.Outputs, id)
}

// Pin looks a pin up on either side.
func (n *Node) Pin(dir Direction, id string) (Pin, bool) {
	if dir == DirInput {
		return n.Input(id)
	}
	return n.Output(id)
}

func findPin(pins []Pin, id string) (Pin, bool) {
	for _, p := range pins {
		if p.ID == id {
			return p, true
		}
	}
	return Pin{}, false
}

// Clone returns a deep copy of the node. Nested config maps and slices are copied too.
func (n Node) Clone() Node {
	out := n
	out.Inputs = clonePins(n.Inputs)
	out.Outputs = clonePins(n.Outputs)
	if n.Config != nil {
		out.Config = make(map[string]any, len(n.Config))
		for k, v := range n.Config {
			out.Config[k] = CloneValue(v)
		}
	}
	return out
}

func clonePins(pins []Pin) []Pin {
	if pins == nil {
		return nil
	}
	out := make([]Pin, len(pins))
	for i, p := range pins {
		out[i] = p
		out[i].Default = CloneValue(p.Default)
	}
	return out
}

// CloneValue deep-copies the map and slice shapes produced by YAML and JSON decoders.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = CloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = CloneValue(e)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// DefaultPins returns the conventional pins for a kind: a control input and,
// unless the kind is terminal, a control output.
func DefaultPins(kind NodeKind) (inputs, outputs []Pin) {
	inputs = []Pin{{ID: DefaultInputPin, Direction: DirInput, Type: PinControl}}
	if kind != KindTerminal {
		outputs = []Pin{{ID: DefaultOutputPin, Direction: DirOutput, Type: PinControl}}
	}
	return inputs, outputs
}
