package validator

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/questgraph/internal/expr"
	"github.com/aretw0/questgraph/internal/logging"
	"github.com/aretw0/questgraph/pkg/document"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
	"github.com/aretw0/questgraph/pkg/schema"
)

// CyclePolicy decides which control cycles are legal.
type CyclePolicy int

const (
	// CycleRepeatable allows a cycle only when every node on it is repeatable.
	CycleRepeatable CyclePolicy = iota
	// CycleForbid rejects every cycle.
	CycleForbid
	// CycleAllow accepts every cycle.
	CycleAllow
)

// Option configures a validation run.
type Option func(*validator)

// WithResolver resolves symbol fields such as objective targets and action refs.
// Without a resolver those fields are not checked.
func WithResolver(r ports.SymbolResolver) Option {
	return func(v *validator) {
		v.resolver = r
	}
}

// WithCyclePolicy overrides the default CycleRepeatable policy.
func WithCyclePolicy(p CyclePolicy) Option {
	return func(v *validator) {
		v.cycles = p
	}
}

// WithLogger sets the logger used for the summary line.
func WithLogger(l *slog.Logger) Option {
	return func(v *validator) {
		v.logger = l
	}
}

type validator struct {
	resolver ports.SymbolResolver
	cycles   CyclePolicy
	logger   *slog.Logger

	report *Report
	nodes  []domain.Node
	index  map[string]int
	edges  []domain.Edge
	// ok marks edges that passed the endpoint checks.
	ok []bool
	// succ is the control adjacency list by node index, in edge order.
	succ [][]int
}

// Validate checks a snapshot against every whole-graph rule and collects all
// problems in one pass. Diagnostics are ordered by check, then by node
// insertion order. The snapshot is never modified.
func Validate(snap ports.GraphSnapshot, opts ...Option) *Report {
	v := &validator{
		cycles: CycleRepeatable,
		logger: logging.NewNop(),
		report: &Report{snapshot: snap, validated: true},
	}
	for _, opt := range opts {
		opt(v)
	}

	v.nodes = snap.Nodes()
	v.edges = snap.Edges()
	v.index = make(map[string]int, len(v.nodes))
	for i, n := range v.nodes {
		v.index[n.ID] = i
	}

	entry := v.checkEntry()
	v.checkTerminal()
	v.checkEdges()
	v.checkFanIn()
	v.checkPayloads()
	v.checkExpressions()
	v.checkReferences()
	v.buildControlGraph()
	v.checkReachability(entry)
	v.checkCycles()
	v.checkDeadEnds()

	v.logger.Debug("validated quest graph",
		"quest", snap.Name(),
		"nodes", len(v.nodes),
		"errors", len(v.report.Errors()),
		"warnings", len(v.report.Warnings()))
	return v.report
}

func (v *validator) checkEntry() int {
	var entries []int
	for i, n := range v.nodes {
		if n.Entry {
			entries = append(entries, i)
		}
	}
	switch len(entries) {
	case 0:
		v.report.add(Diagnostic{Category: MissingEntry, Message: "no node is tagged as entry"})
		return -1
	case 1:
		return entries[0]
	}
	for _, i := range entries {
		v.report.add(Diagnostic{
			Category: MultipleEntry,
			Node:     v.nodes[i].ID,
			Message:  fmt.Sprintf("%d nodes are tagged as entry", len(entries)),
		})
	}
	return -1
}

func (v *validator) checkTerminal() {
	for _, n := range v.nodes {
		if n.Kind == domain.KindTerminal {
			return
		}
	}
	v.report.add(Diagnostic{Category: NoTerminal, Message: "the quest has no terminal node"})
}

func (v *validator) checkEdges() {
	v.ok = make([]bool, len(v.edges))
	for i := range v.edges {
		e := v.edges[i]
		from, ok := v.pin(e.From, domain.DirOutput)
		if !ok {
			v.dangling(e, e.From)
			continue
		}
		to, ok := v.pin(e.To, domain.DirInput)
		if !ok {
			v.dangling(e, e.To)
			continue
		}
		if from.Type != to.Type {
			v.report.add(Diagnostic{
				Category: TypeMismatch,
				Edge:     &e,
				Message:  fmt.Sprintf("%s pin connected to %s pin", from.Type, to.Type),
			})
			continue
		}
		if to.Type == domain.PinData && v.nodes[v.index[e.To.Node]].Kind != domain.KindAction {
			v.report.add(Diagnostic{
				Category: TypeMismatch,
				Edge:     &e,
				Message:  "data pins can only feed action nodes",
			})
			continue
		}
		v.ok[i] = true
	}
}

func (v *validator) pin(ref domain.PinRef, dir domain.Direction) (domain.Pin, bool) {
	i, ok := v.index[ref.Node]
	if !ok {
		return domain.Pin{}, false
	}
	return v.nodes[i].Pin(dir, ref.Pin)
}

func (v *validator) dangling(e domain.Edge, end domain.PinRef) {
	msg := fmt.Sprintf("pin %s does not exist", end)
	if _, ok := v.index[end.Node]; !ok {
		msg = fmt.Sprintf("node %q does not exist", end.Node)
	}
	v.report.add(Diagnostic{Category: DanglingEdge, Edge: &e, Message: msg})
}

func (v *validator) checkFanIn() {
	counts := make(map[domain.PinRef]int)
	for i, e := range v.edges {
		if v.ok[i] {
			counts[e.To]++
		}
	}
	for _, n := range v.nodes {
		for _, p := range n.Inputs {
			c := counts[domain.PinRef{Node: n.ID, Pin: p.ID}]
			if c > 1 && !document.AllowsFanIn(n, p) {
				v.report.add(Diagnostic{
					Category: IllegalFanIn,
					Node:     n.ID,
					Pin:      p.ID,
					Message:  fmt.Sprintf("%d edges arrive but only gates with a join accept fan-in", c),
				})
			}
		}
	}
}

func (v *validator) checkPayloads() {
	for _, n := range v.nodes {
		if !n.Kind.Valid() {
			v.report.add(Diagnostic{Category: InvalidPayload, Node: n.ID, Message: fmt.Sprintf("unknown node kind %q", n.Kind)})
			continue
		}
		if n.Kind == domain.KindTerminal && len(n.Outputs) > 0 {
			v.report.add(Diagnostic{Category: InvalidPayload, Node: n.ID, Message: "terminal nodes cannot have outputs"})
		}
		if err := schema.Validate(schema.ForKind(n.Kind), n.Config); err != nil {
			for _, fe := range schema.ValidationErrors(err) {
				v.report.add(Diagnostic{Category: InvalidPayload, Node: n.ID, Message: fe.Error()})
			}
			continue
		}
		if n.Kind == domain.KindBranch {
			v.checkCases(n)
		}
	}
}

// checkCases matches branch cases with control outputs one to one.
func (v *validator) checkCases(n domain.Node) {
	cases, _ := n.Config[domain.ConfigCases].(map[string]any)
	for _, p := range n.Outputs {
		if p.Type != domain.PinControl {
			continue
		}
		if _, ok := cases[p.ID]; !ok {
			v.report.add(Diagnostic{Category: InvalidPayload, Node: n.ID, Pin: p.ID, Message: "output has no case"})
		}
	}
	keys := make([]string, 0, len(cases))
	for k := range cases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if p, ok := n.Output(k); !ok || p.Type != domain.PinControl {
			v.report.add(Diagnostic{Category: InvalidPayload, Node: n.ID, Pin: k, Message: "case names no control output"})
		}
	}
}

func (v *validator) checkExpressions() {
	for _, n := range v.nodes {
		if src, ok := n.Config[domain.ConfigWhen].(string); ok {
			if _, err := expr.Parse(src); err != nil {
				v.report.add(Diagnostic{Category: InvalidExpression, Node: n.ID, Message: err.Error()})
			}
		}
		if n.Kind != domain.KindBranch {
			continue
		}
		cases, _ := n.Config[domain.ConfigCases].(map[string]any)
		keys := make([]string, 0, len(cases))
		for k := range cases {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			src, _ := cases[k].(string)
			if _, err := expr.Parse(src); err != nil {
				v.report.add(Diagnostic{Category: InvalidExpression, Node: n.ID, Pin: k, Message: err.Error()})
			}
		}
	}
}

func (v *validator) checkReferences() {
	if v.resolver == nil {
		return
	}
	for _, n := range v.nodes {
		for _, sym := range schema.Symbols(schema.ForKind(n.Kind), n.Config) {
			if !v.resolver.Resolve(sym) {
				v.report.add(Diagnostic{
					Category: UnresolvedReference,
					Node:     n.ID,
					Message:  fmt.Sprintf("symbol %q cannot be resolved", sym),
				})
			}
		}
	}
}

func (v *validator) buildControlGraph() {
	v.succ = make([][]int, len(v.nodes))
	for i, e := range v.edges {
		if !v.ok[i] {
			continue
		}
		from := v.index[e.From.Node]
		if p, _ := v.nodes[from].Output(e.From.Pin); p.Type != domain.PinControl {
			continue
		}
		v.succ[from] = append(v.succ[from], v.index[e.To.Node])
	}
}

func (v *validator) checkReachability(entry int) {
	if entry < 0 {
		return
	}
	seen := make([]bool, len(v.nodes))
	seen[entry] = true
	queue := []int{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range v.succ[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	for i, n := range v.nodes {
		if !seen[i] {
			v.report.add(Diagnostic{
				Category: UnreachableNode,
				Node:     n.ID,
				Message:  fmt.Sprintf("not reachable from entry %q", v.nodes[entry].ID),
			})
		}
	}
}

// checkCycles reports witness cycles until every offending node of a
// component lies on at least one reported path.
func (v *validator) checkCycles() {
	if v.cycles == CycleAllow {
		return
	}
	for _, comp := range stronglyConnected(v.succ) {
		if len(comp) == 1 && !v.selfLoop(comp[0]) {
			continue
		}
		covered := make(map[string]bool, len(comp))
		for _, start := range comp {
			if v.cycles != CycleForbid && v.nodes[start].Repeatable {
				continue
			}
			if covered[v.nodes[start].ID] {
				continue
			}
			path := v.witness(start, comp)
			for _, id := range path {
				covered[id] = true
			}
			msg := "control cycle through non-repeatable node " + v.nodes[start].ID
			if v.cycles == CycleForbid {
				msg = "control cycles are forbidden"
			}
			v.report.add(Diagnostic{Category: IllegalCycle, Node: v.nodes[start].ID, Path: path, Message: msg})
		}
	}
}

func (v *validator) selfLoop(i int) bool {
	for _, next := range v.succ[i] {
		if next == i {
			return true
		}
	}
	return false
}

// witness finds the shortest cycle through start inside its component.
func (v *validator) witness(start int, comp []int) []string {
	in := make(map[int]bool, len(comp))
	for _, i := range comp {
		in[i] = true
	}
	prev := map[int]int{}
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range v.succ[cur] {
			if !in[next] {
				continue
			}
			if next == start {
				var rev []string
				for n := cur; n != start; n = prev[n] {
					rev = append(rev, v.nodes[n].ID)
				}
				path := []string{v.nodes[start].ID}
				for i := len(rev) - 1; i >= 0; i-- {
					path = append(path, rev[i])
				}
				return append(path, v.nodes[start].ID)
			}
			if _, seen := prev[next]; !seen {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return []string{v.nodes[start].ID}
}

func (v *validator) checkDeadEnds() {
	for i, n := range v.nodes {
		if n.Kind == domain.KindTerminal || !n.Kind.Valid() {
			continue
		}
		if len(v.succ[i]) == 0 {
			v.report.add(Diagnostic{
				Category: DeadEnd,
				Severity: SeverityWarning,
				Node:     n.ID,
				Message:  "no control exit; an instance stalls here",
			})
		}
	}
}

// stronglyConnected returns the components of the graph in order of their
// lowest node index. Each component lists its nodes in ascending order.
func stronglyConnected(succ [][]int) [][]int {
	n := len(succ)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var (
		stack []int
		comps [][]int
		next  int
	)
	var strong func(int)
	strong = func(u int) {
		index[u], low[u] = next, next
		next++
		stack = append(stack, u)
		onStack[u] = true
		for _, w := range succ[u] {
			switch {
			case index[w] < 0:
				strong(w)
				low[u] = min(low[u], low[w])
			case onStack[w]:
				low[u] = min(low[u], index[w])
			}
		}
		if low[u] != index[u] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == u {
				break
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	for u := 0; u < n; u++ {
		if index[u] < 0 {
			strong(u)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}
