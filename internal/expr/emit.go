package expr

import (
	"fmt"

	"github.com/aretw0/questgraph/pkg/domain"
)

// Emitter flattens predicate trees into a shared condition table.
// Children are appended before their parents and identical subtrees are
// emitted once.
type Emitter struct {
	conds []domain.Cond
	memo  map[string]int
	pred  func(id string) (int, bool)
}

// NewEmitter returns an emitter that resolves predicate ids through pred.
func NewEmitter(pred func(id string) (int, bool)) *Emitter {
	return &Emitter{memo: make(map[string]int), pred: pred}
}

// Emit appends n and returns its index, or domain.NoCond for nil.
func (e *Emitter) Emit(n *Node) (int, error) {
	if n == nil {
		return domain.NoCond, nil
	}
	key := n.String()
	if i, ok := e.memo[key]; ok {
		return i, nil
	}

	c := domain.Cond{Op: n.Op, Lit: n.Lit}
	if n.Op == domain.OpRef {
		p, ok := e.pred(n.Pred)
		if !ok {
			return 0, fmt.Errorf("predicate %q is not in the table", n.Pred)
		}
		c.Pred = p
	}
	for _, a := range n.Args {
		i, err := e.Emit(a)
		if err != nil {
			return 0, err
		}
		c.Args = append(c.Args, i)
	}

	e.conds = append(e.conds, c)
	i := len(e.conds) - 1
	e.memo[key] = i
	return i, nil
}

// Conds returns the table built so far.
func (e *Emitter) Conds() []domain.Cond {
	return e.conds
}

// Lift rebuilds the tree rooted at conds[idx] of m. NoCond yields nil.
func Lift(m *domain.Machine, idx int) *Node {
	if idx == domain.NoCond || idx < 0 || idx >= len(m.Conds) {
		return nil
	}
	c := m.Conds[idx]
	n := &Node{Op: c.Op, Lit: c.Lit}
	if c.Op == domain.OpRef && c.Pred >= 0 && c.Pred < len(m.Predicates) {
		n.Pred = m.Predicates[c.Pred]
	}
	for _, a := range c.Args {
		n.Args = append(n.Args, Lift(m, a))
	}
	return n
}
