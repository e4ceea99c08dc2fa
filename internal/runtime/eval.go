package runtime

import (
	"github.com/aretw0/questgraph/internal/expr"
	"github.com/aretw0/questgraph/pkg/domain"
)

// holds evaluates entry idx of the machine's flattened predicate table
// against the observed values. Missing predicates read as null.
func holds(m *domain.Machine, observed map[string]domain.Value, idx int) bool {
	if idx == domain.NoCond {
		return true
	}
	c := &m.Conds[idx]
	switch c.Op {
	case domain.OpTrue:
		return true
	case domain.OpFalse:
		return false
	case domain.OpAnd:
		for _, a := range c.Args {
			if !holds(m, observed, a) {
				return false
			}
		}
		return true
	case domain.OpOr:
		for _, a := range c.Args {
			if holds(m, observed, a) {
				return true
			}
		}
		return false
	case domain.OpNot:
		return len(c.Args) == 1 && !holds(m, observed, c.Args[0])
	case domain.OpRef, domain.OpLit:
		return value(m, observed, idx).Truthy()
	case domain.OpEq, domain.OpNe, domain.OpLt, domain.OpLe, domain.OpGt, domain.OpGe:
		if len(c.Args) != 2 {
			return false
		}
		return expr.Compare(c.Op, value(m, observed, c.Args[0]), value(m, observed, c.Args[1]))
	}
	return false
}

func value(m *domain.Machine, observed map[string]domain.Value, idx int) domain.Value {
	c := &m.Conds[idx]
	switch c.Op {
	case domain.OpRef:
		return observed[m.Predicates[c.Pred]]
	case domain.OpLit:
		return c.Lit
	}
	return domain.Bool(holds(m, observed, idx))
}
