package compiler

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/questgraph/internal/expr"
	"github.com/aretw0/questgraph/internal/logging"
	"github.com/aretw0/questgraph/internal/validator"
	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
)

// Option configures a compile run.
type Option func(*compiler)

// WithLogger sets the logger used for the summary line.
func WithLogger(l *slog.Logger) Option {
	return func(c *compiler) {
		c.logger = l
	}
}

type compiler struct {
	logger *slog.Logger

	nodes    []domain.Node
	index    map[string]int
	edges    []domain.Edge
	payloads []payload
	guards   []*expr.Node
	cases    []map[string]*expr.Node
}

// Compile turns a successfully validated document into an immutable machine.
// The report must come from validator.Validate and carry no errors; the
// machine is built from the exact snapshot that was validated.
func Compile(report *validator.Report, opts ...Option) (*domain.Machine, error) {
	c := &compiler{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case report == nil:
		return nil, &domain.CompileError{Reason: "no validation report"}
	case !report.Validated():
		return nil, &domain.CompileError{Reason: "report was not produced by the validator"}
	case !report.Valid():
		var problems []string
		for _, d := range report.Errors() {
			problems = append(problems, d.String())
		}
		return nil, &domain.CompileError{Reason: "document failed validation", Problems: problems}
	}

	m, err := c.compile(report.Snapshot())
	if err != nil {
		return nil, &domain.CompileError{Reason: "internal compiler error", Err: err}
	}
	c.logger.Debug("compiled quest",
		"quest", m.Name,
		"id", m.ID,
		"states", len(m.States),
		"transitions", len(m.Transitions),
		"conds", len(m.Conds))
	return m, nil
}

func (c *compiler) compile(snap ports.GraphSnapshot) (*domain.Machine, error) {
	// Dense indices follow insertion order.
	c.nodes = snap.Nodes()
	c.edges = snap.Edges()
	c.index = make(map[string]int, len(c.nodes))
	for i, n := range c.nodes {
		c.index[n.ID] = i
	}

	if err := c.lowerConditions(); err != nil {
		return nil, err
	}

	m := &domain.Machine{Name: snap.Name()}
	for i, n := range c.nodes {
		if n.Entry {
			m.Entry = i
		}
		p := c.payloads[i]
		m.States = append(m.States, domain.State{
			NodeID:     n.ID,
			Kind:       n.Kind,
			Title:      p.Title,
			Outcome:    domain.TerminalOutcome(p.Outcome),
			Join:       domain.JoinPolicy(p.Join),
			Repeatable: n.Repeatable,
			MaxRepeats: p.MaxRepeats,
			Milestone:  p.Milestone,
			Optional:   p.Optional,
			Exclusive:  n.Kind == domain.KindBranch,
		})
	}

	c.buildTransitions(m)
	if err := c.bindActions(m); err != nil {
		return nil, err
	}
	if err := c.emitConditions(m); err != nil {
		return nil, err
	}

	fp, err := codec.Fingerprint(m)
	if err != nil {
		return nil, err
	}
	m.ID = m.Name + "@" + fp
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}

// lowerConditions parses every node condition and inlines the conditions
// wired into condition pins, in edge order.
func (c *compiler) lowerConditions() error {
	c.payloads = make([]payload, len(c.nodes))
	c.guards = make([]*expr.Node, len(c.nodes))
	c.cases = make([]map[string]*expr.Node, len(c.nodes))
	own := make([]*expr.Node, len(c.nodes))

	for i, n := range c.nodes {
		p, err := decodePayload(n.ID, n.Config)
		if err != nil {
			return err
		}
		c.payloads[i] = p
		if own[i], err = expr.Parse(p.When); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
		if n.Kind != domain.KindBranch {
			continue
		}
		c.cases[i] = make(map[string]*expr.Node, len(p.Cases))
		for pin, src := range p.Cases {
			tree, err := expr.Parse(src)
			if err != nil {
				return fmt.Errorf("node %s case %s: %w", n.ID, pin, err)
			}
			c.cases[i][pin] = tree
		}
	}

	copy(c.guards, own)
	for _, e := range c.edges {
		to := c.index[e.To.Node]
		if pin, _ := c.nodes[to].Input(e.To.Pin); pin.Type != domain.PinCondition {
			continue
		}
		c.guards[to] = expr.All(c.guards[to], own[c.index[e.From.Node]])
	}
	return nil
}

// buildTransitions emits one transition per control edge. Out lists are
// ordered by port, then edge order; In lists by edge order, which is also
// the join counter layout.
func (c *compiler) buildTransitions(m *domain.Machine) {
	for _, e := range c.edges {
		src := c.index[e.From.Node]
		pin, _ := c.nodes[src].Output(e.From.Pin)
		if pin.Type != domain.PinControl {
			continue
		}
		dst := c.index[e.To.Node]
		ti := len(m.Transitions)
		m.Transitions = append(m.Transitions, domain.Transition{
			Source:   src,
			Target:   dst,
			Port:     portIndex(c.nodes[src].Outputs, e.From.Pin),
			Optional: m.States[src].Optional,
		})
		m.States[src].Out = append(m.States[src].Out, ti)
		m.States[dst].In = append(m.States[dst].In, ti)
	}
	for i := range m.States {
		out := m.States[i].Out
		sort.SliceStable(out, func(a, b int) bool {
			return m.Transitions[out[a]].Port < m.Transitions[out[b]].Port
		})
	}
}

func portIndex(pins []domain.Pin, id string) int {
	for i, p := range pins {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// bindActions resolves action payloads. Data edges bind the source pin
// default to the parameter named after the target pin, overriding config.
func (c *compiler) bindActions(m *domain.Machine) error {
	for i, n := range c.nodes {
		if n.Kind != domain.KindAction {
			continue
		}
		p := c.payloads[i]
		spec := &domain.ActionSpec{Name: p.Action}
		for k, raw := range p.Params {
			v, err := domain.ValueOf(raw)
			if err != nil {
				return fmt.Errorf("node %s param %s: %w", n.ID, k, err)
			}
			setParam(spec, k, v)
		}
		m.States[i].Action = spec
	}
	for _, e := range c.edges {
		dst := c.index[e.To.Node]
		in, _ := c.nodes[dst].Input(e.To.Pin)
		if in.Type != domain.PinData || m.States[dst].Action == nil {
			continue
		}
		out, _ := c.nodes[c.index[e.From.Node]].Output(e.From.Pin)
		v, err := domain.ValueOf(out.Default)
		if err != nil {
			return fmt.Errorf("edge %s: %w", e, err)
		}
		setParam(m.States[dst].Action, e.To.Pin, v)
	}
	return nil
}

func setParam(spec *domain.ActionSpec, key string, v domain.Value) {
	if spec.Params == nil {
		spec.Params = make(map[string]domain.Value)
	}
	spec.Params[key] = v
}

func (c *compiler) emitConditions(m *domain.Machine) error {
	var preds []string
	seen := map[string]bool{}
	collect := func(n *expr.Node) {
		for _, p := range expr.Predicates(n) {
			if !seen[p] {
				seen[p] = true
				preds = append(preds, p)
			}
		}
	}
	for i := range c.nodes {
		collect(c.guards[i])
		for _, pin := range sortedCases(c.cases[i]) {
			collect(c.cases[i][pin])
		}
	}
	sort.Strings(preds)
	m.Predicates = preds

	em := expr.NewEmitter(m.Predicate)
	for i := range m.States {
		g, err := em.Emit(c.guards[i])
		if err != nil {
			return fmt.Errorf("node %s: %w", m.States[i].NodeID, err)
		}
		m.States[i].Guard = g
	}
	for ti := range m.Transitions {
		t := &m.Transitions[ti]
		guard := c.guards[t.Source]
		if cases := c.cases[t.Source]; cases != nil {
			pin := c.nodes[t.Source].Outputs[t.Port].ID
			guard = expr.All(guard, cases[pin])
		}
		g, err := em.Emit(guard)
		if err != nil {
			return fmt.Errorf("transition %d: %w", ti, err)
		}
		t.Guard = g
	}
	m.Conds = em.Conds()
	return nil
}

func sortedCases(cases map[string]*expr.Node) []string {
	keys := make([]string, 0, len(cases))
	for k := range cases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
