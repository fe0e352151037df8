// Package clause renders expr.Expr/expr.FilterExpr trees into ir.Frag,
// given a resolver that turns field references into quoted, aliased SQL
// text. It is grounded on the teacher's providers/postgres/builder.go
// (SELECT/WHERE/ORDER BY assembly) and case.go/coalesce.go/math.go (the
// function-expression builders), generalized from a fixed AST-chain
// builder into a recursive renderer over expr's open Expr variants.
package clause

import (
	"fmt"
	"strings"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/ir"
	"github.com/selecto-sql/selecto/internal/resolve"
)

// Resolver is the subset of resolve the clause renderer needs, kept as
// an interface so tests can supply a fake without a full domain.Domain.
type Resolver interface {
	ResolveField(ref string) (resolve.Resolved, error)
}

type domainResolver struct {
	d   domain.Domain
	set resolve.Set
}

// NewResolver builds the default Resolver backed by internal/resolve.
func NewResolver(d domain.Domain, set resolve.Set) Resolver {
	return domainResolver{d: d, set: set}
}

func (r domainResolver) ResolveField(ref string) (resolve.Resolved, error) {
	return resolve.Resolve(r.d, r.set, ref, nil)
}

// RenderFieldRef renders a resolved field reference as a quoted,
// qualified identifier fragment: "alias"."column". A custom column
// (resolve.Resolved.CustomFrag non-nil - a star dimension's "display"
// or a closure table's "depth"/"descendant_count") renders as its own
// backing fragment instead, since it isn't necessarily a plain
// qualified column (descendant_count is a correlated subquery).
func RenderFieldRef(res resolve.Resolved) (ir.Frag, error) {
	if res.CustomFrag != nil {
		return *res.CustomFrag, nil
	}
	alias, err := ir.DoubleWrap(res.TableAlias)
	if err != nil {
		return ir.Frag{}, err
	}
	col, err := ir.DoubleWrap(res.Name)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.S(alias + "." + col), nil
}

// SelectItem is one rendered SELECT-list entry: its SQL fragment and the
// output alias it will be reported under.
type SelectItem struct {
	Frag  ir.Frag
	Alias string
}

// RenderSelect renders the full SELECT list, deriving a stable alias for
// each expression the way spec.md §4.6 requires: an explicit expr.Alias
// wins; otherwise a field reference's bare name, an aggregate's lowercased
// kind (e.g. "sum"), or "expr_<n>" for the n-th (1-based) SELECT entry.
func RenderSelect(r Resolver, exprs []expr.Expr) ([]SelectItem, error) {
	items := make([]SelectItem, 0, len(exprs))
	for i, e := range exprs {
		f, err := RenderExpr(r, e)
		if err != nil {
			return nil, err
		}
		items = append(items, SelectItem{Frag: f, Alias: deriveAlias(e, i)})
	}
	return items, nil
}

func deriveAlias(e expr.Expr, i int) string {
	if a := exprAlias(e); a != "" {
		return a
	}
	switch v := e.(type) {
	case expr.Field:
		if dot := strings.LastIndexByte(v.Ref, '.'); dot >= 0 {
			return v.Ref[dot+1:]
		}
		return v.Ref
	case expr.Aggregate:
		return strings.ToLower(string(v.Kind))
	default:
		return fmt.Sprintf("expr_%d", i+1)
	}
}

func exprAlias(e expr.Expr) string {
	switch v := e.(type) {
	case expr.Field:
		return v.Alias
	case expr.Literal:
		return v.Alias
	case expr.Func:
		return v.Alias
	case expr.Aggregate:
		return v.Alias
	case expr.Case:
		return v.Alias
	case expr.Coalesce:
		return v.Alias
	case expr.Extract:
		return v.Alias
	case expr.Concat:
		return v.Alias
	case expr.StringFunc:
		return v.Alias
	case expr.MathFunc:
		return v.Alias
	case expr.DateFunc:
		return v.Alias
	case expr.Interval:
		return v.Alias
	case expr.ArrayFunc:
		return v.Alias
	case expr.Iif:
		return v.Alias
	case expr.Decode:
		return v.Alias
	case expr.CustomSQL:
		return v.Alias
	case expr.Window:
		return v.Alias
	default:
		return ""
	}
}

// RenderExpr dispatches e to its fragment rendering, recursing through
// every nested argument.
func RenderExpr(r Resolver, e expr.Expr) (ir.Frag, error) {
	switch v := e.(type) {
	case expr.Field:
		res, err := r.ResolveField(v.Ref)
		if err != nil {
			return ir.Frag{}, err
		}
		return RenderFieldRef(res)

	case expr.Literal:
		return ir.P(v.Value), nil

	case expr.Func:
		return renderCall(r, v.Name, v.Args)

	case expr.Aggregate:
		return renderAggregate(r, v)

	case expr.Case:
		return renderCase(r, v)

	case expr.Coalesce:
		return renderCall(r, "COALESCE", v.Args)

	case expr.Extract:
		arg, err := RenderExpr(r, v.Arg)
		if err != nil {
			return ir.Frag{}, err
		}
		return ir.Seq(ir.S("EXTRACT("+strings.ToUpper(v.Field)+" FROM "), arg, ir.S(")")), nil

	case expr.Concat:
		return renderCall(r, "CONCAT", v.Args)

	case expr.StringFunc:
		return renderStringFunc(r, v)

	case expr.MathFunc:
		return renderMathFunc(r, v)

	case expr.DateFunc:
		return renderDateFunc(r, v)

	case expr.Interval:
		return renderInterval(v), nil

	case expr.ArrayFunc:
		return renderArrayFunc(r, v)

	case expr.Iif:
		return renderIif(r, v)

	case expr.Decode:
		return renderDecode(r, v)

	case expr.CustomSQL:
		return renderCustomSQL(r, v)

	case expr.Window:
		return renderWindow(r, v)

	default:
		return ir.Frag{}, fmt.Errorf("clause: unsupported expression type %T", e)
	}
}

func renderCall(r Resolver, name string, args []expr.Expr) (ir.Frag, error) {
	parts := make([]ir.Frag, 0, len(args))
	for _, a := range args {
		f, err := RenderExpr(r, a)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, f)
	}
	return ir.Seq(ir.S(name+"("), ir.Join(", ", parts...), ir.S(")")), nil
}

func renderAggregate(r Resolver, a expr.Aggregate) (ir.Frag, error) {
	fn := strings.ReplaceAll(string(a.Kind), "_DISTINCT", "")
	distinct := strings.HasSuffix(string(a.Kind), "_DISTINCT")

	if a.Arg == nil {
		return ir.S(fn + "(*)"), nil
	}

	if a.Kind == expr.AggStringAgg {
		arg, err := RenderExpr(r, a.Arg)
		if err != nil {
			return ir.Frag{}, err
		}
		sep := ir.P(",")
		if a.Sep != nil {
			sep = ir.P(a.Sep.Value)
		}
		return ir.Seq(ir.S("STRING_AGG("), arg, ir.S(", "), sep, ir.S(")")), nil
	}

	arg, err := RenderExpr(r, a.Arg)
	if err != nil {
		return ir.Frag{}, err
	}
	prefix := ""
	if distinct {
		prefix = "DISTINCT "
	}
	return ir.Seq(ir.S(fn+"("+prefix), arg, ir.S(")")), nil
}

func renderCase(r Resolver, c expr.Case) (ir.Frag, error) {
	parts := []ir.Frag{ir.S("CASE")}
	for _, w := range c.Whens {
		cond, ok := w.Cond.(expr.FilterExpr)
		if !ok {
			return ir.Frag{}, fmt.Errorf("clause: CASE WHEN condition must be a FilterExpr, got %T", w.Cond)
		}
		condFrag, err := RenderFilter(r, cond)
		if err != nil {
			return ir.Frag{}, err
		}
		resFrag, err := RenderExpr(r, w.Result)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, ir.S(" WHEN "), condFrag, ir.S(" THEN "), resFrag)
	}
	if c.Else != nil {
		elseFrag, err := RenderExpr(r, c.Else)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, ir.S(" ELSE "), elseFrag)
	}
	parts = append(parts, ir.S(" END"))
	return ir.Seq(parts...), nil
}

func renderStringFunc(r Resolver, f expr.StringFunc) (ir.Frag, error) {
	args := append([]expr.Expr{f.Arg}, f.Extra...)
	return renderCall(r, string(f.Kind), args)
}

func renderMathFunc(r Resolver, f expr.MathFunc) (ir.Frag, error) {
	args := append([]expr.Expr{f.Arg}, f.Extra...)
	return renderCall(r, string(f.Kind), args)
}

func renderDateFunc(r Resolver, f expr.DateFunc) (ir.Frag, error) {
	switch f.Kind {
	case expr.DateNow:
		return ir.S("NOW()"), nil
	case expr.DateTrunc:
		arg, err := RenderExpr(r, f.Arg)
		if err != nil {
			return ir.Frag{}, err
		}
		return ir.Seq(ir.S("DATE_TRUNC("), ir.P(f.Precision), ir.S(", "), arg, ir.S(")")), nil
	case expr.DateAge:
		args := append([]expr.Expr{f.Arg}, f.Extra...)
		return renderCall(r, "AGE", args)
	default:
		return ir.Frag{}, fmt.Errorf("clause: unsupported date function %q", f.Kind)
	}
}

func renderInterval(v expr.Interval) ir.Frag {
	if v.Literal != "" {
		return ir.Seq(ir.S("INTERVAL "), ir.P(v.Literal))
	}
	return ir.Seq(ir.S("INTERVAL "), ir.P(fmt.Sprintf("%d %s", v.N, v.Unit)))
}

func renderArrayFunc(r Resolver, f expr.ArrayFunc) (ir.Frag, error) {
	args := append([]expr.Expr{f.Arg}, f.Extra...)
	return renderCall(r, string(f.Kind), args)
}

func renderIif(r Resolver, v expr.Iif) (ir.Frag, error) {
	cond, ok := v.Cond.(expr.FilterExpr)
	if !ok {
		return ir.Frag{}, fmt.Errorf("clause: IIF condition must be a FilterExpr, got %T", v.Cond)
	}
	condFrag, err := RenderFilter(r, cond)
	if err != nil {
		return ir.Frag{}, err
	}
	thenFrag, err := RenderExpr(r, v.Then)
	if err != nil {
		return ir.Frag{}, err
	}
	elseFrag, err := RenderExpr(r, v.Else)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.Seq(ir.S("CASE WHEN "), condFrag, ir.S(" THEN "), thenFrag, ir.S(" ELSE "), elseFrag, ir.S(" END")), nil
}

func renderDecode(r Resolver, v expr.Decode) (ir.Frag, error) {
	arg, err := RenderExpr(r, v.Arg)
	if err != nil {
		return ir.Frag{}, err
	}
	parts := []ir.Frag{ir.S("CASE")}
	for _, c := range v.Cases {
		matchFrag, err := RenderExpr(r, c.Match)
		if err != nil {
			return ir.Frag{}, err
		}
		resFrag, err := RenderExpr(r, c.Result)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, ir.S(" WHEN "), arg, ir.S(" = "), matchFrag, ir.S(" THEN "), resFrag)
	}
	if v.Default != nil {
		defFrag, err := RenderExpr(r, v.Default)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, ir.S(" ELSE "), defFrag)
	}
	parts = append(parts, ir.S(" END"))
	return ir.Seq(parts...), nil
}

// renderCustomSQL substitutes each {placeholder} in the template with
// the quoted, qualified identifier its field reference resolves to. The
// template text is a builder-time constant, never user input; only the
// substituted identifiers pass through field resolution, so nothing
// untyped ever reaches the generated SQL text.
func renderCustomSQL(r Resolver, v expr.CustomSQL) (ir.Frag, error) {
	text := v.Template
	for name, ref := range v.FieldMap {
		res, err := r.ResolveField(ref)
		if err != nil {
			return ir.Frag{}, err
		}
		frag, err := RenderFieldRef(res)
		if err != nil {
			return ir.Frag{}, err
		}
		rendered := ir.Finalize(frag)
		text = strings.ReplaceAll(text, "{"+name+"}", rendered.SQL)
	}
	return ir.S(text), nil
}
