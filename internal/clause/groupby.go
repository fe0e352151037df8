package clause

import (
	"fmt"

	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/ir"
)

// GroupBySpec is a GROUP BY clause over one or more fields, optionally
// rolled up (GROUP BY ROLLUP(a, b, c)) for subtotal rows.
type GroupBySpec struct {
	Fields  []string
	Rollup  bool
}

// RenderGroupBy renders the GROUP BY clause body (without the leading
// keyword).
func RenderGroupBy(r Resolver, g GroupBySpec) (ir.Frag, error) {
	if len(g.Fields) == 0 {
		return ir.Frag{}, fmt.Errorf("clause: GROUP BY requires at least one field")
	}
	parts := make([]ir.Frag, 0, len(g.Fields))
	for _, f := range g.Fields {
		res, err := r.ResolveField(f)
		if err != nil {
			return ir.Frag{}, err
		}
		frag, err := RenderFieldRef(res)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, frag)
	}
	list := ir.Join(", ", parts...)
	if g.Rollup {
		return ir.Seq(ir.S("ROLLUP("), list, ir.S(")")), nil
	}
	return list, nil
}

// RenderOrderBy renders the ORDER BY clause body (without the leading
// keyword).
func RenderOrderBy(r Resolver, terms []expr.OrderTerm) (ir.Frag, error) {
	if len(terms) == 0 {
		return ir.Frag{}, fmt.Errorf("clause: ORDER BY requires at least one term")
	}
	parts := make([]ir.Frag, 0, len(terms))
	for _, t := range terms {
		f, err := renderOrderTerm(r, t)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, f)
	}
	return ir.Join(", ", parts...), nil
}

func renderOrderTerm(r Resolver, t expr.OrderTerm) (ir.Frag, error) {
	res, err := r.ResolveField(t.Field)
	if err != nil {
		return ir.Frag{}, err
	}
	field, err := RenderFieldRef(res)
	if err != nil {
		return ir.Frag{}, err
	}
	dir := t.Dir
	if dir == "" {
		dir = expr.Asc
	}
	if err := ir.CheckSafePhrase(string(dir)); err != nil {
		return ir.Frag{}, err
	}
	parts := []ir.Frag{field, ir.S(" " + string(dir))}
	if t.Nulls != expr.NullsUnspecified {
		if err := ir.CheckSafePhrase(string(t.Nulls)); err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, ir.S(" "+string(t.Nulls)))
	}
	return ir.Seq(parts...), nil
}

// renderWindow renders a window-function expression including its
// OVER(...) clause.
func renderWindow(r Resolver, w expr.Window) (ir.Frag, error) {
	args := make([]ir.Frag, 0, len(w.Args))
	for _, a := range w.Args {
		f, err := RenderExpr(r, a)
		if err != nil {
			return ir.Frag{}, err
		}
		args = append(args, f)
	}

	var call ir.Frag
	if w.Func == expr.WinNtile {
		call = ir.Seq(ir.S("NTILE("), ir.P(w.N), ir.S(")"))
	} else if len(args) == 0 {
		call = ir.S(string(w.Func) + "()")
	} else {
		call = ir.Seq(ir.S(string(w.Func)+"("), ir.Join(", ", args...), ir.S(")"))
	}

	over, err := renderOverClause(r, w.Over)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.Seq(call, ir.S(" OVER ("), over, ir.S(")")), nil
}

func renderOverClause(r Resolver, w expr.WindowSpec) (ir.Frag, error) {
	var segments []ir.Frag

	if len(w.PartitionBy) > 0 {
		parts := make([]ir.Frag, 0, len(w.PartitionBy))
		for _, f := range w.PartitionBy {
			res, err := r.ResolveField(f)
			if err != nil {
				return ir.Frag{}, err
			}
			frag, err := RenderFieldRef(res)
			if err != nil {
				return ir.Frag{}, err
			}
			parts = append(parts, frag)
		}
		segments = append(segments, ir.Seq(ir.S("PARTITION BY "), ir.Join(", ", parts...)))
	}

	if len(w.OrderBy) > 0 {
		ob, err := RenderOrderBy(r, w.OrderBy)
		if err != nil {
			return ir.Frag{}, err
		}
		segments = append(segments, ir.Seq(ir.S("ORDER BY "), ob))
	}

	if w.Frame != nil {
		fr, err := renderFrame(*w.Frame)
		if err != nil {
			return ir.Frag{}, err
		}
		segments = append(segments, fr)
	}

	return ir.Join(" ", segments...), nil
}

func renderFrame(f expr.Frame) (ir.Frag, error) {
	start, err := renderFrameBound(f.Start)
	if err != nil {
		return ir.Frag{}, err
	}
	end, err := renderFrameBound(f.End)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.Seq(ir.S(string(f.Mode)+" BETWEEN "), start, ir.S(" AND "), end), nil
}

func renderFrameBound(b expr.FrameBound) (ir.Frag, error) {
	switch {
	case b.UnboundedPreceding:
		return ir.S("UNBOUNDED PRECEDING"), nil
	case b.UnboundedFollowing:
		return ir.S("UNBOUNDED FOLLOWING"), nil
	case b.CurrentRow:
		return ir.S("CURRENT ROW"), nil
	case b.Preceding:
		return ir.Seq(ir.S(fmt.Sprintf("%d PRECEDING", b.Offset))), nil
	default:
		return ir.Seq(ir.S(fmt.Sprintf("%d FOLLOWING", b.Offset))), nil
	}
}
