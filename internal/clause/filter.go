package clause

import (
	"fmt"

	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/ir"
)

var opSQL = map[expr.Op]string{
	expr.OpEq:    "=",
	expr.OpNeq:   "<>",
	expr.OpGt:    ">",
	expr.OpGte:   ">=",
	expr.OpLt:    "<",
	expr.OpLte:   "<=",
	expr.OpLike:  "LIKE",
	expr.OpILike: "ILIKE",
}

// RenderFilter renders a FilterExpr tree into a boolean fragment suitable
// for a WHERE, HAVING, or CASE WHEN position. A single condition and the
// top level of an AND/OR are not wrapped in outer parentheses; each AND/OR
// term is, and NOT wraps its operand.
func RenderFilter(r Resolver, f expr.FilterExpr) (ir.Frag, error) {
	switch v := f.(type) {
	case expr.Condition:
		return renderCondition(r, v)
	case expr.And:
		return renderConjunction(r, v.Terms, "AND")
	case expr.Or:
		return renderConjunction(r, v.Terms, "OR")
	case expr.Not:
		inner, err := RenderFilter(r, v.Term)
		if err != nil {
			return ir.Frag{}, err
		}
		return ir.Seq(ir.S("NOT ("), inner, ir.S(")")), nil
	case expr.Subfilter:
		return ir.Frag{}, fmt.Errorf("clause: Subfilter must be rendered by internal/subselect, not clause.RenderFilter")
	default:
		return ir.Frag{}, fmt.Errorf("clause: unsupported filter type %T", f)
	}
}

func renderCondition(r Resolver, c expr.Condition) (ir.Frag, error) {
	res, err := r.ResolveField(c.Field)
	if err != nil {
		return ir.Frag{}, err
	}
	field, err := RenderFieldRef(res)
	if err != nil {
		return ir.Frag{}, err
	}

	switch c.Op {
	case expr.OpIsNull:
		return ir.Seq(field, ir.S(" IS NULL")), nil
	case expr.OpNotNull:
		return ir.Seq(field, ir.S(" IS NOT NULL")), nil
	case expr.OpBetween:
		return ir.Seq(field, ir.S(" BETWEEN "), ir.P(c.Value), ir.S(" AND "), ir.P(c.High)), nil
	case expr.OpIn:
		return ir.Seq(field, ir.S(" = ANY("), ir.P(c.Value), ir.S(")")), nil
	case expr.OpNotIn:
		return ir.Seq(field, ir.S(" <> ALL("), ir.P(c.Value), ir.S(")")), nil
	default:
		sym, ok := opSQL[c.Op]
		if !ok {
			return ir.Frag{}, fmt.Errorf("clause: unsupported operator %q", c.Op)
		}
		return ir.Seq(field, ir.S(" "+sym+" "), ir.P(c.Value)), nil
	}
}

func renderConjunction(r Resolver, terms []expr.FilterExpr, kw string) (ir.Frag, error) {
	if len(terms) == 0 {
		return ir.Frag{}, fmt.Errorf("clause: %s requires at least one term", kw)
	}
	parts := make([]ir.Frag, 0, len(terms))
	for _, t := range terms {
		f, err := RenderFilter(r, t)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, ir.Seq(ir.S("("), f, ir.S(")")))
	}
	return ir.Join(" "+kw+" ", parts...), nil
}
