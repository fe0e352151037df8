// Package joinbuild renders one domain.JoinSpec into the FROM-clause SQL
// fragment it contributes - grounded on the teacher's
// providers/postgres/builder.go addJoin family (basic/self/cross join
// emission) and subquery.go (lateral/correlated rendering),
// generalized from the teacher's fixed join-kind switch into the
// thirteen realizations spec.md §4.7 enumerates, including the OLAP
// dimension and tagging patterns the teacher never implements.
package joinbuild

import (
	"fmt"
	"strings"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/internal/ir"
)

// Built is one rendered join: its SQL fragment (ON condition inclusive)
// and any custom columns it exposes under its alias (e.g. a star
// dimension's "display" column, a hierarchy's "path"/"level").
type Built struct {
	Frag          ir.Frag
	CustomColumns map[string]ir.Frag
}

// Build renders name/j into its JOIN clause, given the SQL alias its
// requires_join parent was assigned. Closure-table hierarchies are built
// here; the recursive ones (adjacency list, materialized path) are
// rendered by internal/cte instead (they contribute a CTE, not a plain
// JOIN), and Build rejects them so a caller can't silently skip the CTE
// step. A join type Build does not recognize is rendered as a basic
// LEFT JOIN on OwnerKey/RelatedKey.
func Build(name string, j domain.JoinSpec, parentAlias string) (Built, error) {
	alias := j.Alias
	if alias == "" {
		alias = name
	}

	switch j.Type {
	case domain.JoinLeft, domain.JoinInner, domain.JoinFullOuter, "":
		return buildBasic(j, parentAlias, alias)
	case domain.JoinSelf:
		return buildSelf(j, parentAlias, alias)
	case domain.JoinCross:
		return buildCross(j, alias)
	case domain.JoinLateral:
		return buildLateral(j, alias)
	case domain.JoinConditional:
		return buildConditional(j, parentAlias, alias)
	case domain.JoinStarDimension:
		return buildStarDimension(j, parentAlias, alias)
	case domain.JoinSnowflakeDimension:
		return buildSnowflakeDimension(j, parentAlias, alias)
	case domain.JoinTagging:
		return buildTagging(j, parentAlias, alias)
	case domain.JoinParameterized:
		return buildParameterized(j, parentAlias, alias, nil)
	case domain.JoinHierarchicalClosure:
		return buildClosureTable(j, parentAlias, alias)
	case domain.JoinHierarchicalAdjacency, domain.JoinHierarchicalMaterialized:
		return Built{}, fmt.Errorf("joinbuild: %q is a recursive hierarchical join; render it via internal/cte", name)
	default:
		return buildBasic(j, parentAlias, alias)
	}
}

func quotedTable(table, alias string) (ir.Frag, error) {
	t, err := ir.DoubleWrap(table)
	if err != nil {
		return ir.Frag{}, err
	}
	a, err := ir.DoubleWrap(alias)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.S(t + " AS " + a), nil
}

func qualifiedCol(alias, col string) (ir.Frag, error) {
	a, err := ir.DoubleWrap(alias)
	if err != nil {
		return ir.Frag{}, err
	}
	c, err := ir.DoubleWrap(col)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.S(a + "." + c), nil
}

var comparisonOps = map[string]bool{"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

func joinKeyword(t domain.JoinKind) string {
	switch t {
	case domain.JoinInner:
		return "INNER JOIN"
	case domain.JoinFullOuter:
		return "FULL OUTER JOIN"
	default:
		return "LEFT JOIN"
	}
}

func buildBasic(j domain.JoinSpec, parentAlias, alias string) (Built, error) {
	table, err := quotedTable(j.Table, alias)
	if err != nil {
		return Built{}, err
	}
	owner, err := qualifiedCol(parentAlias, j.OwnerKey)
	if err != nil {
		return Built{}, err
	}
	related, err := qualifiedCol(alias, j.RelatedKey)
	if err != nil {
		return Built{}, err
	}
	frag := ir.Seq(ir.S(joinKeyword(j.Type)+" "), table, ir.S(" ON "), owner, ir.S(" = "), related)
	return Built{Frag: frag}, nil
}

func buildSelf(j domain.JoinSpec, parentAlias, alias string) (Built, error) {
	table, err := quotedTable(j.Table, alias)
	if err != nil {
		return Built{}, err
	}
	owner, err := qualifiedCol(parentAlias, j.SelfKey)
	if err != nil {
		return Built{}, err
	}
	related, err := qualifiedCol(alias, j.TargetKey)
	if err != nil {
		return Built{}, err
	}
	frag := ir.Seq(ir.S("LEFT JOIN "), table, ir.S(" ON "), owner, ir.S(" = "), related)
	return Built{Frag: frag}, nil
}

func buildCross(j domain.JoinSpec, alias string) (Built, error) {
	table, err := quotedTable(j.Table, alias)
	if err != nil {
		return Built{}, err
	}
	return Built{Frag: ir.Seq(ir.S("CROSS JOIN "), table)}, nil
}

// buildLateral renders LEFT JOIN LATERAL (query) alias ON true.
// LateralQuery is a builder-time SQL constant (e.g. a correlated
// subquery assembled elsewhere), never raw user input.
func buildLateral(j domain.JoinSpec, alias string) (Built, error) {
	a, err := ir.DoubleWrap(alias)
	if err != nil {
		return Built{}, err
	}
	frag := ir.Seq(ir.S("LEFT JOIN LATERAL ("+j.LateralQuery+") "), ir.S(a), ir.S(" ON true"))
	return Built{Frag: frag}, nil
}

func buildConditional(j domain.JoinSpec, parentAlias, alias string) (Built, error) {
	table, err := quotedTable(j.Table, alias)
	if err != nil {
		return Built{}, err
	}
	if len(j.Conditions) == 0 {
		return Built{}, fmt.Errorf("joinbuild: conditional join %q has no conditions", j.Table)
	}
	parts := make([]ir.Frag, 0, len(j.Conditions))
	for _, c := range j.Conditions {
		f, err := buildCondition(c, parentAlias, alias)
		if err != nil {
			return Built{}, err
		}
		parts = append(parts, f)
	}
	on := ir.Join(" AND ", parts...)
	frag := ir.Seq(ir.S("LEFT JOIN "), table, ir.S(" ON "), on)
	return Built{Frag: frag}, nil
}

func buildCondition(c domain.JoinCondition, parentAlias, alias string) (ir.Frag, error) {
	switch c.Kind {
	case domain.CondFieldComparison:
		left, err := qualifiedCol(parentAlias, c.LeftExpr)
		if err != nil {
			return ir.Frag{}, err
		}
		right, err := qualifiedCol(alias, c.RightExpr)
		if err != nil {
			return ir.Frag{}, err
		}
		if _, ok := comparisonOps[c.Op]; !ok {
			return ir.Frag{}, fmt.Errorf("joinbuild: unsupported comparison operator %q in conditional join", c.Op)
		}
		return ir.Seq(left, ir.S(" "+c.Op+" "), right), nil
	case domain.CondDateRange:
		col, err := qualifiedCol(alias, c.TimestampField)
		if err != nil {
			return ir.Frag{}, err
		}
		return ir.Seq(col, ir.S(" BETWEEN "), ir.P(c.From), ir.S(" AND "), ir.P(c.To)), nil
	case domain.CondCustomSQL:
		// CustomFragment is a builder-time SQL constant supplied by the
		// domain author at configure time, never user input; it may
		// contain punctuation outside check_safe_phrase's alphanumeric
		// set (operators, parens), so it is not run through it.
		return ir.S(c.CustomFragment), nil
	default:
		return ir.Frag{}, fmt.Errorf("joinbuild: unsupported conditional join kind %q", c.Kind)
	}
}

// buildStarDimension is a plain fact-to-dimension LEFT JOIN; its
// DisplayField is exposed as a "display" custom column by the caller
// (internal/resolve consults CustomColumn when resolving
// "<join>.display").
func buildStarDimension(j domain.JoinSpec, parentAlias, alias string) (Built, error) {
	b, err := buildBasic(domain.JoinSpec{Type: domain.JoinLeft, Table: j.Table, OwnerKey: j.OwnerKey, RelatedKey: j.RelatedKey}, parentAlias, alias)
	if err != nil {
		return Built{}, err
	}
	cols, err := starDimensionCustomColumns(j, alias)
	if err != nil {
		return Built{}, err
	}
	b.CustomColumns = cols
	return b, nil
}

func starDimensionCustomColumns(j domain.JoinSpec, alias string) (map[string]ir.Frag, error) {
	display, err := qualifiedCol(alias, j.DisplayField)
	if err != nil {
		return nil, err
	}
	return map[string]ir.Frag{"display": display}, nil
}

// buildSnowflakeDimension chains the primary dimension join with its
// ordered normalization joins, aliasing each hop "<alias>_next<i>" the
// way spec.md §4.7 names them ("primary_next").
func buildSnowflakeDimension(j domain.JoinSpec, parentAlias, alias string) (Built, error) {
	primary, err := buildBasic(domain.JoinSpec{Type: domain.JoinLeft, Table: j.Table, OwnerKey: j.OwnerKey, RelatedKey: j.RelatedKey}, parentAlias, alias)
	if err != nil {
		return Built{}, err
	}

	frags := []ir.Frag{primary.Frag}
	current := alias
	for i, n := range j.NormalizationJoins {
		nextAlias := fmt.Sprintf("%s_next%d", alias, i+1)
		table, err := quotedTable(n.Table, nextAlias)
		if err != nil {
			return Built{}, err
		}
		fk, err := qualifiedCol(current, n.FKField)
		if err != nil {
			return Built{}, err
		}
		pk, err := qualifiedCol(nextAlias, n.PKField)
		if err != nil {
			return Built{}, err
		}
		frags = append(frags, ir.Seq(ir.S(" LEFT JOIN "), table, ir.S(" ON "), fk, ir.S(" = "), pk))
		current = nextAlias
	}
	return Built{Frag: ir.Seq(frags...)}, nil
}

// buildTagging emits the join-table + tag-table LEFT JOIN pair for a
// many-to-many tagging association.
func buildTagging(j domain.JoinSpec, parentAlias, alias string) (Built, error) {
	jtAlias := alias + "_jt"
	jtTable, err := quotedTable(j.JoinTable, jtAlias)
	if err != nil {
		return Built{}, err
	}
	mainPK, err := qualifiedCol(parentAlias, j.OwnerKey)
	if err != nil {
		return Built{}, err
	}
	mainFK, err := qualifiedCol(jtAlias, j.MainForeignKey)
	if err != nil {
		return Built{}, err
	}

	tagTable, err := quotedTable(j.TagTable, alias)
	if err != nil {
		return Built{}, err
	}
	tagFK, err := qualifiedCol(jtAlias, j.TagForeignKey)
	if err != nil {
		return Built{}, err
	}
	tagPK, err := qualifiedCol(alias, j.RelatedKey)
	if err != nil {
		return Built{}, err
	}

	frag := ir.Seq(
		ir.S("LEFT JOIN "), jtTable, ir.S(" ON "), mainPK, ir.S(" = "), mainFK,
		ir.S(" LEFT JOIN "), tagTable, ir.S(" ON "), tagFK, ir.S(" = "), tagPK,
	)
	return Built{Frag: frag}, nil
}

// buildClosureTable joins a precomputed ancestor/descendant closure
// table directly against its parent (no recursion needed, unlike the
// adjacency-list and materialized-path strategies), exposing "depth"
// and a correlated "descendant_count" subquery as custom columns.
func buildClosureTable(j domain.JoinSpec, parentAlias, alias string) (Built, error) {
	table, err := quotedTable(j.Hierarchical.ClosureTable, alias)
	if err != nil {
		return Built{}, err
	}
	owner, err := qualifiedCol(parentAlias, j.OwnerKey)
	if err != nil {
		return Built{}, err
	}
	ancestor, err := qualifiedCol(alias, j.Hierarchical.AncestorField)
	if err != nil {
		return Built{}, err
	}
	frag := ir.Seq(ir.S("LEFT JOIN "), table, ir.S(" ON "), owner, ir.S(" = "), ancestor)

	cols, err := closureCustomColumns(j, alias)
	if err != nil {
		return Built{}, err
	}
	return Built{Frag: frag, CustomColumns: cols}, nil
}

func closureCustomColumns(j domain.JoinSpec, alias string) (map[string]ir.Frag, error) {
	depthField := j.Hierarchical.DepthField
	if depthField == "" {
		depthField = "depth"
	}
	depthCol, err := qualifiedCol(alias, depthField)
	if err != nil {
		return nil, err
	}

	closureTable, err := ir.DoubleWrap(j.Hierarchical.ClosureTable)
	if err != nil {
		return nil, err
	}
	ancestorCol, err := ir.DoubleWrap(j.Hierarchical.AncestorField)
	if err != nil {
		return nil, err
	}
	descendantOuter, err := qualifiedCol(alias, j.Hierarchical.DescendantField)
	if err != nil {
		return nil, err
	}
	descendantCount := ir.Seq(
		ir.S("(SELECT COUNT(*) FROM "+closureTable+" selecto_dc WHERE selecto_dc."+ancestorCol+" = "),
		descendantOuter, ir.S(")"),
	)

	return map[string]ir.Frag{"depth": depthCol, "descendant_count": descendantCount}, nil
}

// CustomColumn reports whether join j, rendered under alias, exposes a
// synthetic field named field - a star dimension's "display" or a
// closure table's "depth"/"descendant_count" - and if so the fragment
// that backs it. internal/resolve consults this so references like
// "region.display" resolve without the target schema ever declaring a
// "display" column. Hierarchical adjacency/materialized-path joins
// expose their own synthetic columns (level/path/path_array) as real
// result-set columns of the CTE itself, so they need no entry here.
func CustomColumn(j domain.JoinSpec, alias, field string) (ir.Frag, bool, error) {
	switch j.Type {
	case domain.JoinStarDimension:
		cols, err := starDimensionCustomColumns(j, alias)
		if err != nil {
			return ir.Frag{}, false, err
		}
		frag, ok := cols[field]
		return frag, ok, nil
	case domain.JoinHierarchicalClosure:
		cols, err := closureCustomColumns(j, alias)
		if err != nil {
			return ir.Frag{}, false, err
		}
		frag, ok := cols[field]
		return frag, ok, nil
	default:
		return ir.Frag{}, false, nil
	}
}

// BuildParameterized is Build's parameterized-join case exposed
// directly, so a caller that already resolved the join's bound
// parameter values (via internal/resolve) can supply them instead of
// falling back to each parameter's default.
func BuildParameterized(j domain.JoinSpec, parentAlias, alias string, params []any) (Built, error) {
	return buildParameterized(j, parentAlias, alias, params)
}

// buildParameterized resolves $param_<name> placeholders inside the
// configured join_condition template using the already-typed,
// already-validated parameter values the field resolver bound, routing
// each one through ir.P so the finalizer collects it as a real $k
// placeholder - never string-interpolated into the ON clause, per
// spec.md §9's stricter recommendation.
func buildParameterized(j domain.JoinSpec, parentAlias, alias string, params []any) (Built, error) {
	_ = parentAlias
	table, err := quotedTable(j.Table, alias)
	if err != nil {
		return Built{}, err
	}
	values := make(map[string]any, len(j.Parameters))
	for i, def := range j.Parameters {
		if i < len(params) {
			values[def.Name] = params[i]
		} else {
			values[def.Name] = def.Default
		}
	}
	condition, err := renderParamTemplate(j.JoinCondition, values)
	if err != nil {
		return Built{}, err
	}
	frag := ir.Seq(ir.S("LEFT JOIN "), table, ir.S(" ON "), condition)
	return Built{Frag: frag}, nil
}

// renderParamTemplate splits template on each "$param_<name>" occurrence
// (in the order it appears in the template, not in Parameters' declared
// order) and interleaves the literal text with ir.P(value) nodes.
func renderParamTemplate(template string, values map[string]any) (ir.Frag, error) {
	var parts []ir.Frag
	rest := template
	for {
		idx := strings.Index(rest, "$param_")
		if idx < 0 {
			parts = append(parts, ir.S(rest))
			break
		}
		parts = append(parts, ir.S(rest[:idx]))
		rest = rest[idx+len("$param_"):]
		end := 0
		for end < len(rest) && isParamNameByte(rest[end]) {
			end++
		}
		name := rest[:end]
		rest = rest[end:]
		v, ok := values[name]
		if !ok {
			return ir.Frag{}, fmt.Errorf("joinbuild: join condition references unknown parameter %q", name)
		}
		parts = append(parts, ir.P(v))
	}
	return ir.Seq(parts...), nil
}

func isParamNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
