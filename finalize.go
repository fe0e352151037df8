package selecto

import (
	"fmt"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/clause"
	"github.com/selecto-sql/selecto/internal/cte"
	"github.com/selecto-sql/selecto/internal/ir"
	"github.com/selecto-sql/selecto/internal/joinbuild"
	"github.com/selecto-sql/selecto/internal/joinplan"
	"github.com/selecto-sql/selecto/internal/pivot"
	"github.com/selecto-sql/selecto/internal/resolve"
	"github.com/selecto-sql/selecto/internal/setop"
	"github.com/selecto-sql/selecto/internal/subselect"
)

// planResolver adapts internal/resolve to clause.Resolver and records
// every join a resolution touches, in first-seen order. Rendering the
// SELECT/WHERE/GROUP BY/ORDER BY clauses through it is simultaneously
// the mechanism that discovers which joins internal/joinplan needs to
// include - there is no separate expression-tree walk for that purpose.
type planResolver struct {
	d      domain.Domain
	set    resolve.Set
	notice resolve.Notice
	seen   map[string]bool
	order  *[]string
	params map[string][]any
}

func (r *planResolver) ResolveField(ref string) (resolve.Resolved, error) {
	res, err := resolve.Resolve(r.d, r.set, ref, r.notice)
	if err != nil {
		return resolve.Resolved{}, err
	}
	if res.SourceJoin != "" && !r.seen[res.SourceJoin] {
		r.seen[res.SourceJoin] = true
		*r.order = append(*r.order, res.SourceJoin)
	}
	if res.SourceJoin != "" && res.Parameters != nil {
		r.params[res.SourceJoin] = res.Parameters
	}
	return res, nil
}

func build(p *Plan) (ir.Result, map[string]string, error) {
	if p.setOp != nil {
		frag, err := buildSetOp(p)
		if err != nil {
			return ir.Result{}, nil, err
		}
		return ir.Finalize(frag), nil, nil
	}
	frag, aliases, _, err := buildPlain(p)
	if err != nil {
		return ir.Result{}, nil, err
	}
	return ir.Finalize(frag), aliases, nil
}

func buildSetOp(p *Plan) (ir.Frag, error) {
	leftFrag, _, leftCols, err := buildPlain(p.setOp.Left)
	if err != nil {
		return ir.Frag{}, err
	}
	rightFrag, _, rightCols, err := buildPlain(p.setOp.Right)
	if err != nil {
		return ir.Frag{}, err
	}
	return setop.Compose(setop.Spec{
		Op:    p.setOp.Op,
		All:   p.setOp.All,
		Left:  setop.Side{Body: leftFrag, Columns: leftCols},
		Right: setop.Side{Body: rightFrag, Columns: rightCols},
	})
}

// buildPlain renders one non-set-op Plan into a full, unfinalized
// fragment tree, its SELECT-list alias map, and the best-effort column
// metadata a set operation would need to validate this side against its
// counterpart.
func buildPlain(p *Plan) (ir.Frag, map[string]string, []setop.Column, error) {
	d := p.domain
	set := resolve.NewSet(d)

	var referenced []string
	seen := map[string]bool{}
	var notice resolve.Notice
	if p.diag != nil {
		notice = p.diag.Deprecation
	}
	r := &planResolver{d: d, set: set, notice: notice, seen: seen, order: &referenced, params: map[string][]any{}}

	var whereFrag ir.Frag
	hasWhere := false
	combineWhere := func(f ir.Frag) {
		if hasWhere {
			whereFrag = ir.Seq(whereFrag, ir.S(" AND "), f)
		} else {
			whereFrag, hasWhere = f, true
		}
	}
	// Subfilter nodes render through internal/subselect, not
	// clause.RenderFilter (which refuses them outright - they're a
	// correlated-subquery shape, not an inline boolean expression).
	// Splitting them out at the top level handles every Subfilter this
	// package's builders actually produce; one nested inside an And/Or/Not
	// falls through to clause.RenderFilter and surfaces that package's
	// "must be rendered by internal/subselect" error instead of silently
	// mishandling it.
	var plainFilters []expr.FilterExpr
	for _, f := range p.filtered {
		if sf, ok := f.(expr.Subfilter); ok {
			j, ok := set.Joins[sf.Path]
			if !ok {
				return ir.Frag{}, nil, nil, fmt.Errorf("selecto: subfilter path %q is not a known join", sf.Path)
			}
			frag, err := subselect.RenderSubfilter(set.SourceAlias, j, sf)
			if err != nil {
				return ir.Frag{}, nil, nil, err
			}
			combineWhere(frag)
			continue
		}
		plainFilters = append(plainFilters, f)
	}
	if len(plainFilters) > 0 {
		var combined expr.FilterExpr = expr.All(plainFilters...)
		if len(plainFilters) == 1 {
			combined = plainFilters[0]
		}
		f, err := clause.RenderFilter(r, combined)
		if err != nil {
			return ir.Frag{}, nil, nil, err
		}
		combineWhere(f)
	}
	for _, rf := range d.RequiredFilters {
		f, err := clause.RenderFilter(r, expr.Condition{Field: rf.Field, Op: expr.Op(rf.Op), Value: rf.Value})
		if err != nil {
			return ir.Frag{}, nil, nil, err
		}
		combineWhere(f)
	}

	if p.pivot != nil {
		planned, err := joinplan.Plan(set, referenced)
		if err != nil {
			return ir.Frag{}, nil, nil, err
		}
		fromFrag, ctes, err := renderFrom(d, set, planned, r.params)
		if err != nil {
			return ir.Frag{}, nil, nil, err
		}
		original := ir.Seq(ir.S("SELECT * "), fromFrag)
		if hasWhere {
			original = ir.Seq(original, ir.S(" WHERE "), whereFrag)
		}
		body, err := applyPivot(d, p.pivot, original)
		if err != nil {
			return ir.Frag{}, nil, nil, err
		}
		body, err = prependWithClause(body, ctes)
		return body, nil, nil, err
	}

	selectItems := make([]clause.SelectItem, 0, len(p.selected)+len(p.subselects))
	cols := make([]setop.Column, 0, len(p.selected)+len(p.subselects))
	rendered, err := clause.RenderSelect(r, p.selected)
	if err != nil {
		return ir.Frag{}, nil, nil, err
	}
	for i, item := range rendered {
		selectItems = append(selectItems, item)
		cols = append(cols, deriveColumn(r, p.selected[i], item.Alias))
	}

	for _, s := range p.subselects {
		s.MainAlias = set.SourceAlias
		if s.MainKey == "" {
			s.MainKey = d.Source.PrimaryKey
		}
		frag, err := subselect.Render(s)
		if err != nil {
			return ir.Frag{}, nil, nil, err
		}
		selectItems = append(selectItems, clause.SelectItem{Frag: frag, Alias: s.Alias})
		cols = append(cols, setop.Column{Name: s.Alias, Type: subselectType(s.Strategy)})
	}

	if len(selectItems) == 0 {
		return ir.Frag{}, nil, nil, fmt.Errorf("selecto: plan has no selected expressions")
	}

	var groupByFrag ir.Frag
	hasGroupBy := len(p.groupBy.Fields) > 0
	if hasGroupBy {
		groupByFrag, err = clause.RenderGroupBy(r, p.groupBy)
		if err != nil {
			return ir.Frag{}, nil, nil, err
		}
	}

	var orderByFrag ir.Frag
	hasOrderBy := len(p.orderBy) > 0
	if hasOrderBy {
		orderByFrag, err = clause.RenderOrderBy(r, p.orderBy)
		if err != nil {
			return ir.Frag{}, nil, nil, err
		}
	}

	planned, err := joinplan.Plan(set, referenced)
	if err != nil {
		return ir.Frag{}, nil, nil, err
	}
	fromFrag, ctes, err := renderFrom(d, set, planned, r.params)
	if err != nil {
		return ir.Frag{}, nil, nil, err
	}

	selectListFrag, aliasMap, err := renderSelectList(selectItems)
	if err != nil {
		return ir.Frag{}, nil, nil, err
	}

	body := ir.Seq(ir.S("SELECT "), selectListFrag, ir.S(" "), fromFrag)
	if hasWhere {
		body = ir.Seq(body, ir.S(" WHERE "), whereFrag)
	}
	if hasGroupBy {
		body = ir.Seq(body, ir.S(" GROUP BY "), groupByFrag)
	}
	if hasOrderBy {
		body = ir.Seq(body, ir.S(" ORDER BY "), orderByFrag)
	}
	if hasGroupBy && p.groupBy.Rollup {
		body = ir.Seq(ir.S("SELECT * FROM ("), body, ir.S(") AS rollupfix"))
	}

	body, err = prependWithClause(body, ctes)
	if err != nil {
		return ir.Frag{}, nil, nil, err
	}

	return body, aliasMap, cols, nil
}

// prependWithClause leads body with the WITH [RECURSIVE] preamble ctes
// contribute, if any - it must wrap the entire top-level statement,
// including any rollup or pivot wrapper already applied to body, never
// just the FROM clause the CTEs' joins render against.
func prependWithClause(body ir.Frag, ctes []cte.Built) (ir.Frag, error) {
	if len(ctes) == 0 {
		return body, nil
	}
	withFrag, err := cte.BuildWithClause(ctes)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.Seq(withFrag, ir.S(" "), body), nil
}

func renderSelectList(items []clause.SelectItem) (ir.Frag, map[string]string, error) {
	parts := make([]ir.Frag, 0, len(items))
	aliases := make(map[string]string, len(items))
	for _, item := range items {
		aliasQ, err := ir.DoubleWrap(item.Alias)
		if err != nil {
			return ir.Frag{}, nil, err
		}
		parts = append(parts, ir.Seq(item.Frag, ir.S(" AS "+aliasQ)))
		aliases[item.Alias] = item.Alias
	}
	return ir.Join(", ", parts...), aliases, nil
}

// renderFrom assembles the FROM clause and returns any CTEs planned
// contributes, in planned order, for the caller to lead the whole
// statement with - never the FROM clause alone, which can end up
// embedded after the SELECT list. Hierarchical adjacency-list and
// materialized-path joins render through internal/cte (a CTE plus a
// plain join back onto it); every other kind - including
// hierarchical/closure_table, which needs no recursion - renders
// through internal/joinbuild.
func renderFrom(d domain.Domain, set resolve.Set, planned []string, boundParams map[string][]any) (ir.Frag, []cte.Built, error) {
	sourceTable, err := ir.DoubleWrap(d.Source.Table)
	if err != nil {
		return ir.Frag{}, nil, err
	}
	sourceAlias, err := ir.DoubleWrap(set.SourceAlias)
	if err != nil {
		return ir.Frag{}, nil, err
	}
	from := ir.S("FROM " + sourceTable + " AS " + sourceAlias)

	var ctes []cte.Built
	joinFrags := make([]ir.Frag, 0, len(planned))

	for _, name := range planned {
		j := set.Joins[name]
		alias := set.Aliases[name]
		parentAlias := set.SourceAlias
		if j.RequiresJoin != "" && j.RequiresJoin != domain.RootJoinName {
			parentAlias = set.Aliases[j.RequiresJoin]
		}

		switch j.Type {
		case domain.JoinHierarchicalAdjacency:
			built, err := cte.BuildHierarchyCTE(alias, j.Table, cte.HierarchyOpts{
				IDField:       j.Hierarchical.IDField,
				NameField:     j.Hierarchical.NameField,
				ParentField:   j.Hierarchical.ParentField,
				DepthLimit:    j.Hierarchical.DepthLimit,
				RootCondition: j.Hierarchical.RootCondition,
			})
			if err != nil {
				return ir.Frag{}, nil, err
			}
			ctes = append(ctes, built)
			on, err := cte.JoinOn(parentAlias, j.OwnerKey, alias)
			if err != nil {
				return ir.Frag{}, nil, err
			}
			aliasQ, err := ir.DoubleWrap(alias)
			if err != nil {
				return ir.Frag{}, nil, err
			}
			joinFrags = append(joinFrags, ir.Seq(ir.S(" LEFT JOIN "+aliasQ+" ON "), on))

		case domain.JoinHierarchicalMaterialized:
			built, err := cte.BuildMaterializedPathCTE(alias, j.Table, j.Hierarchical.PathField, j.Hierarchical.Separator, j.Hierarchical.RootPrefix)
			if err != nil {
				return ir.Frag{}, nil, err
			}
			ctes = append(ctes, built)
			on, err := cte.JoinOn(parentAlias, j.OwnerKey, alias)
			if err != nil {
				return ir.Frag{}, nil, err
			}
			aliasQ, err := ir.DoubleWrap(alias)
			if err != nil {
				return ir.Frag{}, nil, err
			}
			joinFrags = append(joinFrags, ir.Seq(ir.S(" LEFT JOIN "+aliasQ+" ON "), on))

		case domain.JoinParameterized:
			built, err := joinbuild.BuildParameterized(j, parentAlias, alias, boundParams[name])
			if err != nil {
				return ir.Frag{}, nil, err
			}
			joinFrags = append(joinFrags, ir.Seq(ir.S(" "), built.Frag))

		default:
			built, err := joinbuild.Build(name, j, parentAlias)
			if err != nil {
				return ir.Frag{}, nil, err
			}
			joinFrags = append(joinFrags, ir.Seq(ir.S(" "), built.Frag))
		}
	}

	result := ir.Seq(append([]ir.Frag{from}, joinFrags...)...)
	return result, ctes, nil
}

// applyPivot rewrites original (the pre-pivot FROM+JOIN+WHERE, rendered
// as a full SELECT * subquery so every candidate link-key column is
// available to correlate against) into the pivoted query. The original
// SELECT list is discarded: it was resolved against the pre-pivot join
// graph, which pivot replaces outright, so the pivoted query selects
// every column of the target schema.
func applyPivot(d domain.Domain, pv *pivotInfo, original ir.Frag) (ir.Frag, error) {
	path, err := pivot.FindPath(d, pv.Target)
	if err != nil {
		return ir.Frag{}, err
	}
	target := d.Source
	if len(path.Hops) > 0 {
		target = path.Hops[len(path.Hops)-1].Schema
	}
	from, where, err := pivot.Rewrite(target, path, original, pv.Opts)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.Seq(ir.S("SELECT * "), from, ir.S(" "), where), nil
}

// deriveColumn makes a best-effort guess at e's declared output type so
// Union/Intersect/Except can validate column-count and type
// compatibility (internal/setop.Validate) without a real type checker.
// Field references use the resolved schema type; everything else falls
// back to a type implied by its shape.
func deriveColumn(r clause.Resolver, e expr.Expr, alias string) setop.Column {
	switch v := e.(type) {
	case expr.Field:
		if res, err := r.ResolveField(v.Ref); err == nil {
			return setop.Column{Name: alias, Type: res.Type}
		}
	case expr.Literal:
		return setop.Column{Name: alias, Type: literalColumnType(v.Value)}
	case expr.Aggregate:
		return setop.Column{Name: alias, Type: aggregateColumnType(v.Kind)}
	}
	return setop.Column{Name: alias, Type: domain.TypeString}
}

func literalColumnType(v any) domain.ColumnType {
	switch v.(type) {
	case int, int32, int64:
		return domain.TypeInteger
	case float32, float64:
		return domain.TypeFloat
	case bool:
		return domain.TypeBoolean
	default:
		return domain.TypeString
	}
}

func aggregateColumnType(k expr.AggKind) domain.ColumnType {
	switch k {
	case expr.AggCount, expr.AggCountDistinct:
		return domain.TypeInteger
	case expr.AggSum, expr.AggAvg, expr.AggMin, expr.AggMax, expr.AggStdDev, expr.AggVariance:
		return domain.TypeFloat
	case expr.AggArray:
		return domain.TypeArray
	case expr.AggJSONAgg:
		return domain.TypeJSON
	default:
		return domain.TypeString
	}
}

func subselectType(s subselect.Strategy) domain.ColumnType {
	switch s {
	case subselect.StrategyCount:
		return domain.TypeInteger
	case subselect.StrategyJSONAgg:
		return domain.TypeJSON
	case subselect.StrategyArrayAgg:
		return domain.TypeArray
	default:
		return domain.TypeString
	}
}
