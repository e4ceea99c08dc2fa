package expr

import (
	"sort"
	"strings"

	"github.com/aretw0/questgraph/pkg/domain"
)

// Node is a predicate tree before flattening.
type Node struct {
	Op   domain.CondOp
	Args []*Node
	Pred string
	Lit  domain.Value
}

func True() *Node { return &Node{Op: domain.OpTrue} }
func False() *Node { return &Node{Op: domain.OpFalse} }
func Ref(pred string) *Node { return &Node{Op: domain.OpRef, Pred: pred} }
func Lit(v domain.Value) *Node { return &Node{Op: domain.OpLit, Lit: v} }

// Not negates n. A nil n always holds, so its negation never does.
func Not(n *Node) *Node {
	if n == nil {
		return False()
	}
	return Simplify(&Node{Op: domain.OpNot, Args: []*Node{n}})
}

// All conjoins the given conditions, skipping nil ones. It returns nil when
// nothing is left to check.
func All(nodes ...*Node) *Node {
	return combine(domain.OpAnd, nodes)
}

// Any disjoins the given conditions. A nil operand makes the result always hold.
func Any(nodes ...*Node) *Node {
	for _, n := range nodes {
		if n == nil {
			return nil
		}
	}
	return combine(domain.OpOr, nodes)
}

func combine(op domain.CondOp, nodes []*Node) *Node {
	args := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			args = append(args, n)
		}
	}
	if len(args) == 0 {
		return nil
	}
	return Simplify(&Node{Op: op, Args: args})
}

// Simplify flattens nested And/Or chains, drops neutral literals and folds
// constant results. Operand order is kept. A condition that always holds
// simplifies to nil.
func Simplify(n *Node) *Node {
	out := simplify(n)
	if out != nil && out.Op == domain.OpTrue {
		return nil
	}
	return out
}

func simplify(n *Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Op {
	case domain.OpAnd, domain.OpOr:
		neutral, absorbing := domain.OpTrue, domain.OpFalse
		if n.Op == domain.OpOr {
			neutral, absorbing = domain.OpFalse, domain.OpTrue
		}
		var args []*Node
		for _, a := range n.Args {
			a = simplify(a)
			if a == nil {
				a = True()
			}
			switch {
			case a.Op == neutral:
				continue
			case a.Op == absorbing:
				return &Node{Op: absorbing}
			case a.Op == n.Op:
				args = append(args, a.Args...)
			default:
				args = append(args, a)
			}
		}
		switch len(args) {
		case 0:
			return &Node{Op: neutral}
		case 1:
			return args[0]
		}
		return &Node{Op: n.Op, Args: args}

	case domain.OpNot:
		inner := simplify(n.Args[0])
		switch {
		case inner == nil || inner.Op == domain.OpTrue:
			return False()
		case inner.Op == domain.OpFalse:
			return True()
		case inner.Op == domain.OpNot:
			return inner.Args[0]
		}
		return &Node{Op: domain.OpNot, Args: []*Node{inner}}

	case domain.OpEq, domain.OpNe, domain.OpLt, domain.OpLe, domain.OpGt, domain.OpGe:
		lhs, rhs := n.Args[0], n.Args[1]
		if lhs.Op == domain.OpLit && rhs.Op == domain.OpLit {
			if Compare(n.Op, lhs.Lit, rhs.Lit) {
				return True()
			}
			return False()
		}
		return n
	}
	return n
}

// Predicates returns the sorted, distinct predicate ids referenced by n.
func Predicates(n *Node) []string {
	seen := map[string]bool{}
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Op == domain.OpRef {
			seen[n.Pred] = true
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(n)
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Eval evaluates n against observed values. Missing predicates read as null.
func Eval(n *Node, lookup func(pred string) domain.Value) bool {
	if n == nil {
		return true
	}
	switch n.Op {
	case domain.OpTrue:
		return true
	case domain.OpFalse:
		return false
	case domain.OpAnd:
		for _, a := range n.Args {
			if !Eval(a, lookup) {
				return false
			}
		}
		return true
	case domain.OpOr:
		for _, a := range n.Args {
			if Eval(a, lookup) {
				return true
			}
		}
		return false
	case domain.OpNot:
		return !Eval(n.Args[0], lookup)
	case domain.OpRef:
		return lookup(n.Pred).Truthy()
	case domain.OpLit:
		return n.Lit.Truthy()
	default:
		return Compare(n.Op, operand(n.Args[0], lookup), operand(n.Args[1], lookup))
	}
}

func operand(n *Node, lookup func(string) domain.Value) domain.Value {
	if n.Op == domain.OpRef {
		return lookup(n.Pred)
	}
	return n.Lit
}

// Compare applies a comparison operator. Values of different kinds are only
// ever unequal.
func Compare(op domain.CondOp, a, b domain.Value) bool {
	c, ok := a.Compare(b)
	switch op {
	case domain.OpEq:
		return ok && c == 0
	case domain.OpNe:
		return !ok || c != 0
	case domain.OpLt:
		return ok && c < 0
	case domain.OpLe:
		return ok && c <= 0
	case domain.OpGt:
		return ok && c > 0
	case domain.OpGe:
		return ok && c >= 0
	}
	return false
}

// String renders n in canonical form. It is also the memo key of the emitter.
func (n *Node) String() string {
	if n == nil {
		return "true"
	}
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.Op {
	case domain.OpTrue, domain.OpFalse:
		sb.WriteString(n.Op.String())
	case domain.OpRef:
		sb.WriteString(n.Pred)
	case domain.OpLit:
		sb.WriteString(n.Lit.String())
	case domain.OpNot:
		sb.WriteByte('!')
		n.Args[0].write(sb)
	case domain.OpAnd, domain.OpOr:
		sep := " && "
		if n.Op == domain.OpOr {
			sep = " || "
		}
		sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(sep)
			}
			a.write(sb)
		}
		sb.WriteByte(')')
	default:
		sb.WriteByte('(')
		n.Args[0].write(sb)
		sb.WriteByte(' ')
		sb.WriteString(n.Op.String())
		sb.WriteByte(' ')
		n.Args[1].write(sb)
		sb.WriteByte(')')
	}
}
