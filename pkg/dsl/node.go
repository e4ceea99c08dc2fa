package dsl

import "github.com/aretw0/questgraph/pkg/domain"

type link struct {
	fromPin string
	to      string
	toPin   string
}

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node  domain.Node
	entry bool
	links []link
}

// Title sets the display title.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	return n.Config(domain.ConfigTitle, title)
}

// Milestone marks the node so that entering it is reported in outcomes.
func (n *NodeBuilder) Milestone() *NodeBuilder {
	return n.Config(domain.ConfigMilestone, true)
}

// Optional marks an objective that never blocks an AND join.
func (n *NodeBuilder) Optional() *NodeBuilder {
	return n.Config(domain.ConfigOptional, true)
}

// Entry marks the node as the quest entry.
func (n *NodeBuilder) Entry() *NodeBuilder {
	n.entry = true
	return n
}

// Repeatable allows the node on a cycle. A positive limit bounds how often it
// may be entered.
func (n *NodeBuilder) Repeatable(limit int) *NodeBuilder {
	n.node.Repeatable = true
	if limit > 0 {
		n.Config(domain.ConfigMaxRepeats, limit)
	}
	return n
}

// When sets the node condition.
func (n *NodeBuilder) When(expr string) *NodeBuilder {
	return n.Config(domain.ConfigWhen, expr)
}

// Param sets one action parameter.
func (n *NodeBuilder) Param(key string, value any) *NodeBuilder {
	params, _ := n.node.Config[domain.ConfigParams].(map[string]any)
	if params == nil {
		params = make(map[string]any)
	}
	params[key] = value
	return n.Config(domain.ConfigParams, params)
}

// Refs lists external symbols the node depends on.
func (n *NodeBuilder) Refs(symbols ...string) *NodeBuilder {
	key := domain.ConfigRefs
	if n.node.Kind == domain.KindObjective {
		key = domain.ConfigTargets
	}
	refs := make([]any, len(symbols))
	for i, s := range symbols {
		refs[i] = s
	}
	return n.Config(key, refs)
}

// Config sets a raw payload field.
func (n *NodeBuilder) Config(key string, value any) *NodeBuilder {
	if n.node.Config == nil {
		n.node.Config = make(map[string]any)
	}
	n.node.Config[key] = value
	return n
}

// Pin declares an extra pin.
func (n *NodeBuilder) Pin(p domain.Pin) *NodeBuilder {
	if p.Direction == domain.DirInput {
		n.node.Inputs = append(n.node.Inputs, p)
	} else {
		p.Direction = domain.DirOutput
		n.node.Outputs = append(n.node.Outputs, p)
	}
	return n
}

// Go connects the control output to the control input of every target.
func (n *NodeBuilder) Go(targets ...string) *NodeBuilder {
	for _, t := range targets {
		n.links = append(n.links, link{fromPin: domain.DefaultOutputPin, to: t, toPin: domain.DefaultInputPin})
	}
	return n
}

// Case adds a branch port that routes to target when expr holds.
// Ports are tried in the order they are declared.
func (n *NodeBuilder) Case(port, expr, target string) *NodeBuilder {
	n.node.Outputs = append(n.node.Outputs, domain.Pin{ID: port, Direction: domain.DirOutput, Type: domain.PinControl})
	cases, _ := n.node.Config[domain.ConfigCases].(map[string]any)
	if cases == nil {
		cases = make(map[string]any)
	}
	cases[port] = expr
	n.Config(domain.ConfigCases, cases)
	n.links = append(n.links, link{fromPin: port, to: target, toPin: domain.DefaultInputPin})
	return n
}

// Wire connects any output pin of this node to any input pin of another.
func (n *NodeBuilder) Wire(fromPin, to, toPin string) *NodeBuilder {
	n.links = append(n.links, link{fromPin: fromPin, to: to, toPin: toPin})
	return n
}

// Node returns a copy of the node as it will be added.
func (n *NodeBuilder) Node() domain.Node {
	return n.node.Clone()
}
