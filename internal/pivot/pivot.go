// Package pivot resolves the join path from a domain's source to a
// target schema via breadth-first search over the association graph,
// and renders the FROM-clause rewrite and correlation clause spec.md
// §4.9 describes. It is grounded on the teacher's subquery.go
// (correlated-subquery rendering), generalized from a single
// hand-wired subquery shape into a path search plus three selectable
// correlation strategies.
package pivot

import (
	"fmt"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/internal/ir"
)

// Strategy selects how the pivoted table is correlated back to the
// original query.
type Strategy string

const (
	StrategyIn    Strategy = "in"
	StrategyExists Strategy = "exists"
	StrategyJoin  Strategy = "join"
)

// Options configures a Pivot call.
type Options struct {
	Strategy        Strategy
	PreserveFilters bool
}

// Hop is one edge of a resolved join path: the association field
// followed and the schema it lands on.
type Hop struct {
	Field  string
	Schema domain.Schema
}

// Path is the full source-to-target resolution.
type Path struct {
	Hops       []Hop
	LinkKey    string // terminal foreign key, read against the first hop's alias
}

// NotFoundError reports a target schema unreachable from the source via
// any chain of associations.
type NotFoundError struct {
	Target string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pivot: no association path from source to %q", e.Target)
}

// FindPath runs a breadth-first search over d's association graph
// (source and every schema's Associations map) for the shortest chain
// of associations reaching targetTable.
func FindPath(d domain.Domain, targetTable string) (Path, error) {
	type node struct {
		schema domain.Schema
		path   []Hop
	}

	visited := map[string]bool{d.Source.Table: true}
	queue := []node{{schema: d.Source}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.schema.Table == targetTable && len(cur.path) > 0 {
			return Path{Hops: cur.path, LinkKey: lastAssocKey(d, cur.path)}, nil
		}

		for field, assoc := range cur.schema.Associations {
			next, ok := d.Schemas[assoc.Queryable]
			if !ok || visited[next.Table] {
				continue
			}
			visited[next.Table] = true
			path := append(append([]Hop{}, cur.path...), Hop{Field: field, Schema: next})
			if next.Table == targetTable {
				return Path{Hops: path, LinkKey: assoc.RelatedKey}, nil
			}
			queue = append(queue, node{schema: next, path: path})
		}
	}

	return Path{}, &NotFoundError{Target: targetTable}
}

func lastAssocKey(d domain.Domain, hops []Hop) string {
	if len(hops) == 0 {
		return ""
	}
	owner := d.Source
	for i := 0; i < len(hops)-1; i++ {
		owner = hops[i].Schema
	}
	if assoc, ok := owner.Associations[hops[len(hops)-1].Field]; ok {
		return assoc.RelatedKey
	}
	return ""
}

// Rewrite builds the new FROM target and correlation clause for a
// pivoted query: "FROM target.source_table", plus a WHERE fragment
// selected by opts.Strategy. original is the fully-rendered original
// query body (FROM + joins + WHERE) used as the correlation subquery's
// source.
func Rewrite(target domain.Schema, path Path, original ir.Frag, opts Options) (from ir.Frag, where ir.Frag, err error) {
	table, err := ir.DoubleWrap(target.Table)
	if err != nil {
		return ir.Frag{}, ir.Frag{}, err
	}
	from = ir.S("FROM " + table)

	pk, err := ir.DoubleWrap(target.PrimaryKey)
	if err != nil {
		return ir.Frag{}, ir.Frag{}, err
	}
	linkKey, err := ir.DoubleWrap(path.LinkKey)
	if err != nil {
		return ir.Frag{}, ir.Frag{}, err
	}

	switch opts.Strategy {
	case StrategyExists:
		where = ir.Seq(ir.S("WHERE EXISTS (SELECT 1 FROM ("), original, ir.S(") selecto_pivot_src WHERE selecto_pivot_src."+linkKey+" = "+table+"."+pk+")"))
	case StrategyJoin:
		where = ir.Seq(ir.S("JOIN ("), original, ir.S(") selecto_pivot_src ON selecto_pivot_src."+linkKey+" = "+table+"."+pk))
	default: // StrategyIn
		where = ir.Seq(ir.S("WHERE "+table+"."+pk+" IN (SELECT DISTINCT "+linkKey+" FROM ("), original, ir.S(") selecto_pivot_src)"))
	}
	return from, where, nil
}
