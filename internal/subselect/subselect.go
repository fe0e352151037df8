// Package subselect renders correlated scalar subqueries for the SELECT
// list - json_agg/array_agg/string_agg/count over a related schema -
// grounded on the teacher's providers/postgres/subquery.go correlated
// subquery builder, generalized from its single fixed shape into the
// four aggregation strategies spec.md §4.9 names.
package subselect

import (
	"fmt"

	"github.com/selecto-sql/selecto/internal/ir"
)

// Strategy selects how the related rows are aggregated into the outer
// row's single column.
type Strategy string

const (
	StrategyJSONAgg   Strategy = "json_agg"
	StrategyArrayAgg  Strategy = "array_agg"
	StrategyStringAgg Strategy = "string_agg"
	StrategyCount     Strategy = "count"
)

// Spec describes one correlated subselect to splice into the SELECT
// list.
type Spec struct {
	Alias        string
	Strategy     Strategy
	TargetTable  string
	TargetFields []string // json_agg object fields
	Field        string   // array_agg / string_agg source field
	Separator    string   // string_agg separator
	ForeignKey   string   // sub.<fk>
	MainAlias    string
	MainKey      string
	OrderBy      string
	Filter       *ir.Frag
}

// Render builds the correlated subquery fragment, aliased as
// "<alias>".
func Render(s Spec) (ir.Frag, error) {
	target, err := ir.DoubleWrap(s.TargetTable)
	if err != nil {
		return ir.Frag{}, err
	}
	alias, err := ir.DoubleWrap(s.Alias)
	if err != nil {
		return ir.Frag{}, err
	}
	fk, err := ir.DoubleWrap(s.ForeignKey)
	if err != nil {
		return ir.Frag{}, err
	}
	mainAlias, err := ir.DoubleWrap(s.MainAlias)
	if err != nil {
		return ir.Frag{}, err
	}
	mainKey, err := ir.DoubleWrap(s.MainKey)
	if err != nil {
		return ir.Frag{}, err
	}

	var aggFrag ir.Frag
	switch s.Strategy {
	case StrategyJSONAgg:
		aggFrag, err = renderJSONAgg(s)
	case StrategyArrayAgg:
		aggFrag, err = renderSimpleAgg(s, "ARRAY_AGG")
	case StrategyStringAgg:
		aggFrag, err = renderStringAgg(s)
	case StrategyCount:
		aggFrag = ir.S("COUNT(*)")
	default:
		return ir.Frag{}, fmt.Errorf("subselect: unsupported strategy %q", s.Strategy)
	}
	if err != nil {
		return ir.Frag{}, err
	}

	parts := []ir.Frag{
		ir.S("(SELECT "), aggFrag, ir.S(" FROM " + target + " sub WHERE sub." + fk + " = " + mainAlias + "." + mainKey),
	}
	if s.Filter != nil {
		parts = append(parts, ir.S(" AND "), *s.Filter)
	}
	if s.OrderBy != "" {
		orderCol, err := ir.DoubleWrap(s.OrderBy)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, ir.S(" ORDER BY sub."+orderCol))
	}
	parts = append(parts, ir.S(") AS "+alias))
	return ir.Seq(parts...), nil
}

func renderJSONAgg(s Spec) (ir.Frag, error) {
	pairs := make([]ir.Frag, 0, len(s.TargetFields))
	for _, f := range s.TargetFields {
		col, err := ir.DoubleWrap(f)
		if err != nil {
			return ir.Frag{}, err
		}
		pairs = append(pairs, ir.Seq(ir.P(f), ir.S(", sub."+col)))
	}
	return ir.Seq(ir.S("json_agg(json_build_object("), ir.Join(", ", pairs...), ir.S("))")), nil
}

func renderSimpleAgg(s Spec, fn string) (ir.Frag, error) {
	col, err := ir.DoubleWrap(s.Field)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.S(fn + "(sub." + col + ")"), nil
}

func renderStringAgg(s Spec) (ir.Frag, error) {
	col, err := ir.DoubleWrap(s.Field)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.Seq(ir.S("STRING_AGG(sub."+col+", "), ir.P(s.Separator), ir.S(")")), nil
}
