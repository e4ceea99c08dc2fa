package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// SyntaxError reports a condition that cannot be lowered.
type SyntaxError struct {
	Src    string
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("invalid condition %q at column %d: %s", e.Src, e.Column, e.Msg)
	}
	return fmt.Sprintf("invalid condition %q: %s", e.Src, e.Msg)
}

// Parse lowers a condition into a predicate tree.
// An empty condition yields nil, which always holds.
func Parse(src string) (*Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	parsed, diags := hclsyntax.ParseExpression([]byte(src), "condition", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		col := 0
		if d := diags[0]; d.Subject != nil {
			col = d.Subject.Start.Column
		}
		return nil, &SyntaxError{Src: src, Column: col, Msg: diags[0].Summary}
	}
	l := lowerer{src: src}
	n, err := l.cond(parsed)
	if err != nil {
		return nil, err
	}
	return Simplify(n), nil
}

// MustParse is Parse for conditions known at build time.
func MustParse(src string) *Node {
	n, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return n
}

type lowerer struct {
	src string
}

func (l lowerer) fail(e hclsyntax.Expression, format string, args ...any) error {
	return &SyntaxError{Src: l.src, Column: e.Range().Start.Column, Msg: fmt.Sprintf(format, args...)}
}

var comparisons = map[*hclsyntax.Operation]domain.CondOp{
	hclsyntax.OpEqual:              domain.OpEq,
	hclsyntax.OpNotEqual:           domain.OpNe,
	hclsyntax.OpLessThan:           domain.OpLt,
	hclsyntax.OpLessThanOrEqual:    domain.OpLe,
	hclsyntax.OpGreaterThan:        domain.OpGt,
	hclsyntax.OpGreaterThanOrEqual: domain.OpGe,
}

// cond lowers an expression in boolean position.
func (l lowerer) cond(e hclsyntax.Expression) (*Node, error) {
	switch t := e.(type) {
	case *hclsyntax.ParenthesesExpr:
		return l.cond(t.Expression)

	case *hclsyntax.BinaryOpExpr:
		switch t.Op {
		case hclsyntax.OpLogicalAnd, hclsyntax.OpLogicalOr:
			lhs, err := l.cond(t.LHS)
			if err != nil {
				return nil, err
			}
			rhs, err := l.cond(t.RHS)
			if err != nil {
				return nil, err
			}
			op := domain.OpAnd
			if t.Op == hclsyntax.OpLogicalOr {
				op = domain.OpOr
			}
			return &Node{Op: op, Args: []*Node{lhs, rhs}}, nil
		}
		if op, ok := comparisons[t.Op]; ok {
			lhs, err := l.operand(t.LHS)
			if err != nil {
				return nil, err
			}
			rhs, err := l.operand(t.RHS)
			if err != nil {
				return nil, err
			}
			return &Node{Op: op, Args: []*Node{lhs, rhs}}, nil
		}
		return nil, l.fail(e, "arithmetic is not allowed in conditions")

	case *hclsyntax.UnaryOpExpr:
		if t.Op != hclsyntax.OpLogicalNot {
			return nil, l.fail(e, "arithmetic is not allowed in conditions")
		}
		inner, err := l.cond(t.Val)
		if err != nil {
			return nil, err
		}
		return &Node{Op: domain.OpNot, Args: []*Node{inner}}, nil

	default:
		n, err := l.operand(e)
		if err != nil {
			return nil, err
		}
		if n.Op == domain.OpLit {
			if n.Lit.Truthy() {
				return True(), nil
			}
			return False(), nil
		}
		return n, nil
	}
}

// operand lowers a comparison operand: a predicate reference or a literal.
func (l lowerer) operand(e hclsyntax.Expression) (*Node, error) {
	switch t := e.(type) {
	case *hclsyntax.ParenthesesExpr:
		return l.operand(t.Expression)

	case *hclsyntax.ScopeTraversalExpr:
		id, err := traversalID(t.Traversal)
		if err != nil {
			return nil, l.fail(e, "%v", err)
		}
		return Ref(id), nil

	case *hclsyntax.IndexExpr:
		coll, err := l.operand(t.Collection)
		if err != nil {
			return nil, err
		}
		key, err := l.operand(t.Key)
		if err != nil {
			return nil, err
		}
		if coll.Op != domain.OpRef || key.Op != domain.OpLit {
			return nil, l.fail(e, "index keys must be constants")
		}
		switch key.Lit.Kind {
		case domain.ValueString:
			return Ref(coll.Pred + "." + key.Lit.Str), nil
		case domain.ValueNumber:
			if key.Lit.Num == math.Trunc(key.Lit.Num) {
				return Ref(coll.Pred + "." + strconv.FormatInt(int64(key.Lit.Num), 10)), nil
			}
		}
		return nil, l.fail(e, "index %s is not a string or integer", key.Lit)

	case *hclsyntax.LiteralValueExpr:
		v, err := literal(t.Val)
		if err != nil {
			return nil, l.fail(e, "%v", err)
		}
		return Lit(v), nil

	case *hclsyntax.TemplateExpr:
		switch len(t.Parts) {
		case 0:
			return Lit(domain.String("")), nil
		case 1:
			if part, ok := t.Parts[0].(*hclsyntax.LiteralValueExpr); ok && part.Val.Type() == cty.String {
				return Lit(domain.String(part.Val.AsString())), nil
			}
		}
		return nil, l.fail(e, "string interpolation is not allowed in conditions")

	case *hclsyntax.TemplateWrapExpr:
		return l.operand(t.Wrapped)

	case *hclsyntax.UnaryOpExpr:
		if t.Op == hclsyntax.OpNegate {
			if lit, ok := t.Val.(*hclsyntax.LiteralValueExpr); ok && lit.Val.Type() == cty.Number {
				v, err := literal(lit.Val)
				if err != nil {
					return nil, l.fail(e, "%v", err)
				}
				return Lit(domain.Number(-v.Num)), nil
			}
		}
		return nil, l.fail(e, "operators are not allowed inside comparisons")

	case *hclsyntax.FunctionCallExpr:
		return nil, l.fail(e, "function %q is not allowed in conditions", t.Name)

	case *hclsyntax.BinaryOpExpr:
		return nil, l.fail(e, "nested comparisons must be parenthesised booleans")

	default:
		return nil, l.fail(e, "unsupported expression")
	}
}

// traversalID flattens a.b["c"][2] into the predicate id a.b.c.2.
func traversalID(tr hcl.Traversal) (string, error) {
	var sb strings.Builder
	for i, step := range tr {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			sb.WriteString(s.Name)
		case hcl.TraverseAttr:
			sb.WriteByte('.')
			sb.WriteString(s.Name)
		case hcl.TraverseIndex:
			key := s.Key
			switch {
			case key.IsNull() || !key.IsKnown():
				return "", fmt.Errorf("index %d is not a constant", i)
			case key.Type() == cty.String:
				sb.WriteByte('.')
				sb.WriteString(key.AsString())
			case key.Type() == cty.Number:
				bf := key.AsBigFloat()
				if !bf.IsInt() {
					return "", fmt.Errorf("index %s is not an integer", bf.Text('g', -1))
				}
				n, _ := bf.Int64()
				sb.WriteByte('.')
				sb.WriteString(strconv.FormatInt(n, 10))
			default:
				return "", fmt.Errorf("unsupported index type %s", key.Type().FriendlyName())
			}
		default:
			return "", fmt.Errorf("unsupported traversal step")
		}
	}
	return sb.String(), nil
}

func literal(v cty.Value) (domain.Value, error) {
	if v.IsNull() {
		return domain.Value{}, nil
	}
	switch v.Type() {
	case cty.Bool:
		return domain.Bool(v.True()), nil
	case cty.String:
		return domain.String(v.AsString()), nil
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		if math.IsInf(f, 0) {
			return domain.Value{}, fmt.Errorf("number %s out of range", v.AsBigFloat().Text('g', -1))
		}
		return domain.Number(f), nil
	}
	return domain.Value{}, fmt.Errorf("unsupported literal of type %s", v.Type().FriendlyName())
}
