package subselect

import (
	"fmt"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/ir"
)

var subfilterOpSQL = map[expr.Op]string{
	expr.OpEq:  "=",
	expr.OpNeq: "<>",
	expr.OpGt:  ">",
	expr.OpGte: ">=",
	expr.OpLt:  "<",
	expr.OpLte: "<=",
}

// RenderSubfilter renders an expr.Subfilter correlated against j, the
// join named by its Path (internal/clause.RenderFilter refuses Subfilter
// nodes outright - this is the "internal/subselect" it points callers
// at). Tagging joins correlate through their join table; every other
// join kind is correlated as a basic join on OwnerKey/RelatedKey.
// Predicate, when set, must be a single expr.Condition evaluated against
// the related row.
func RenderSubfilter(mainAlias string, j domain.JoinSpec, sf expr.Subfilter) (ir.Frag, error) {
	switch j.Type {
	case domain.JoinTagging:
		return renderTaggingSubfilter(mainAlias, j, sf)
	default:
		return renderAssociationSubfilter(mainAlias, j, sf)
	}
}

func renderTaggingSubfilter(mainAlias string, j domain.JoinSpec, sf expr.Subfilter) (ir.Frag, error) {
	jt, err := ir.DoubleWrap(j.JoinTable)
	if err != nil {
		return ir.Frag{}, err
	}
	tagTable, err := ir.DoubleWrap(j.TagTable)
	if err != nil {
		return ir.Frag{}, err
	}
	mainFK, err := ir.DoubleWrap(j.MainForeignKey)
	if err != nil {
		return ir.Frag{}, err
	}
	tagFK, err := ir.DoubleWrap(j.TagForeignKey)
	if err != nil {
		return ir.Frag{}, err
	}
	ownerKey := j.OwnerKey
	if ownerKey == "" {
		ownerKey = "id"
	}
	ownerCol, err := ir.DoubleWrap(ownerKey)
	if err != nil {
		return ir.Frag{}, err
	}
	tagPK := j.RelatedKey
	if tagPK == "" {
		tagPK = "id"
	}
	tagPKCol, err := ir.DoubleWrap(tagPK)
	if err != nil {
		return ir.Frag{}, err
	}
	mainAliasQ, err := ir.DoubleWrap(mainAlias)
	if err != nil {
		return ir.Frag{}, err
	}

	base := ir.S("FROM " + jt + " jt JOIN " + tagTable + " t ON jt." + tagFK + " = t." + tagPKCol +
		" WHERE jt." + mainFK + " = " + mainAliasQ + "." + ownerCol)

	return assembleSubfilter(base, mainAlias, "t", sf)
}

func renderAssociationSubfilter(mainAlias string, j domain.JoinSpec, sf expr.Subfilter) (ir.Frag, error) {
	table, err := ir.DoubleWrap(j.Table)
	if err != nil {
		return ir.Frag{}, err
	}
	ownerKey, err := ir.DoubleWrap(j.OwnerKey)
	if err != nil {
		return ir.Frag{}, err
	}
	relatedKey, err := ir.DoubleWrap(j.RelatedKey)
	if err != nil {
		return ir.Frag{}, err
	}
	mainAliasQ, err := ir.DoubleWrap(mainAlias)
	if err != nil {
		return ir.Frag{}, err
	}

	base := ir.S("FROM " + table + " t WHERE t." + relatedKey + " = " + mainAliasQ + "." + ownerKey)

	return assembleSubfilter(base, mainAlias, "t", sf)
}

// assembleSubfilter wraps a correlated "FROM ... WHERE <correlation>"
// fragment with sf.Predicate (ANDed in, evaluated over alias) and then
// with sf.Strategy's outer shape. mainAlias qualifies AggField for the
// SubIn strategy's outer membership test, since that side of the IN
// compares the main row's own column, not the related row's.
func assembleSubfilter(fromWhere ir.Frag, mainAlias, alias string, sf expr.Subfilter) (ir.Frag, error) {
	if sf.Predicate != nil {
		cond, ok := sf.Predicate.(expr.Condition)
		if !ok {
			return ir.Frag{}, fmt.Errorf("subselect: subfilter predicate must be a single condition, got %T", sf.Predicate)
		}
		predFrag, err := renderAliasedCondition(alias, cond)
		if err != nil {
			return ir.Frag{}, err
		}
		fromWhere = ir.Seq(fromWhere, ir.S(" AND "), predFrag)
	}

	switch sf.Strategy {
	case expr.SubExists:
		return ir.Seq(ir.S("EXISTS (SELECT 1 "), fromWhere, ir.S(")")), nil
	case expr.SubNotExists:
		return ir.Seq(ir.S("NOT EXISTS (SELECT 1 "), fromWhere, ir.S(")")), nil
	case expr.SubIn:
		field, err := ir.DoubleWrap(sf.AggField)
		if err != nil {
			return ir.Frag{}, err
		}
		mainAliasQ, err := ir.DoubleWrap(mainAlias)
		if err != nil {
			return ir.Frag{}, err
		}
		return ir.Seq(ir.S("("+mainAliasQ+"."+field+") IN (SELECT "+alias+"."+field+" "), fromWhere, ir.S(")")), nil
	case expr.SubAggregation:
		aggField := "*"
		if sf.AggField != "" {
			col, err := ir.DoubleWrap(sf.AggField)
			if err != nil {
				return ir.Frag{}, err
			}
			aggField = alias + "." + col
		}
		aggSQL, err := renderAggCall(sf.AggFunc, aggField)
		if err != nil {
			return ir.Frag{}, err
		}
		opSQL, ok := subfilterOpSQL[sf.AggOp]
		if !ok {
			return ir.Frag{}, fmt.Errorf("subselect: unsupported subfilter aggregation comparison %q", sf.AggOp)
		}
		return ir.Seq(ir.S("(SELECT "+aggSQL+" "), fromWhere, ir.S(") "+opSQL+" "), ir.P(sf.AggValue)), nil
	default:
		return ir.Frag{}, fmt.Errorf("subselect: unsupported subfilter strategy %q", sf.Strategy)
	}
}

func renderAggCall(k expr.AggKind, field string) (string, error) {
	switch k {
	case expr.AggCount:
		return "COUNT(" + field + ")", nil
	case expr.AggCountDistinct:
		return "COUNT(DISTINCT " + field + ")", nil
	case expr.AggSum:
		return "SUM(" + field + ")", nil
	case expr.AggAvg:
		return "AVG(" + field + ")", nil
	case expr.AggMin:
		return "MIN(" + field + ")", nil
	case expr.AggMax:
		return "MAX(" + field + ")", nil
	default:
		return "", fmt.Errorf("subselect: unsupported subfilter aggregate %q", k)
	}
}

// renderAliasedCondition renders a simple condition against a bare
// column name in alias's namespace - the related row's own schema, not
// the main query's resolved field set (a Subfilter predicate never
// references the outer query).
func renderAliasedCondition(alias string, c expr.Condition) (ir.Frag, error) {
	col, err := ir.DoubleWrap(c.Field)
	if err != nil {
		return ir.Frag{}, err
	}
	field := ir.S(alias + "." + col)
	switch c.Op {
	case expr.OpIn:
		return ir.Seq(field, ir.S(" = ANY("), ir.P(c.Value), ir.S(")")), nil
	case expr.OpNotIn:
		return ir.Seq(field, ir.S(" <> ALL("), ir.P(c.Value), ir.S(")")), nil
	case expr.OpIsNull:
		return ir.Seq(field, ir.S(" IS NULL")), nil
	case expr.OpNotNull:
		return ir.Seq(field, ir.S(" IS NOT NULL")), nil
	case expr.OpLike:
		return ir.Seq(field, ir.S(" LIKE "), ir.P(c.Value)), nil
	case expr.OpILike:
		return ir.Seq(field, ir.S(" ILIKE "), ir.P(c.Value)), nil
	default:
		opSQL, ok := subfilterOpSQL[c.Op]
		if !ok {
			return ir.Frag{}, fmt.Errorf("subselect: unsupported subfilter predicate operator %q", c.Op)
		}
		return ir.Seq(field, ir.S(" "+opSQL+" "), ir.P(c.Value)), nil
	}
}
