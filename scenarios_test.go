package selecto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/subselect"
)

// S1: a plain filter over the source table, plus a domain-level required
// filter, must render three placeholders and thread required + ad-hoc
// predicates into one WHERE with AND.
func TestScenario_SimpleFilter(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{
			Table:      "users",
			PrimaryKey: "id",
			Fields:     []string{"id", "name", "email", "active"},
			Columns: map[string]domain.Column{
				"id": {Type: domain.TypeInteger}, "name": {Type: domain.TypeString},
				"email": {Type: domain.TypeString}, "active": {Type: domain.TypeBoolean},
			},
		},
		RequiredFilters: []domain.FilterSpec{{Name: "active_only", Field: "active", Op: string(expr.OpEq), Value: true}},
	}

	p := Configure(d, nil, Options{}).
		Select(expr.F("name"), expr.F("email")).
		Filter(expr.Eq("id", 42), expr.Like("email", "%@x"))

	sql, params, err := p.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM \"users\"")
	assert.Contains(t, sql, "WHERE")
	assert.Contains(t, sql, "$1")
	assert.Contains(t, sql, "$2")
	assert.Contains(t, sql, "$3")
	assert.ElementsMatch(t, []any{true, 42, "%@x"}, params)

	_, _, aliases, err := p.GenSQL()
	require.NoError(t, err)
	assert.Len(t, aliases, 2)
}

// S2: SUM aggregate with a GROUP BY ROLLUP must wrap the aggregated
// query in the "SELECT * FROM (...) AS rollupfix" shim Postgres needs
// since ROLLUP's synthetic NULL grouping rows aren't otherwise
// distinguishable from a genuine NULL key, and no raw "^SelectoParam^"
// placeholder sentinel may leak into the output.
func TestScenario_GroupOrderRollup(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{
			Table:      "sales",
			PrimaryKey: "id",
			Fields:     []string{"id", "region", "amount"},
			Columns: map[string]domain.Column{
				"id": {Type: domain.TypeInteger}, "region": {Type: domain.TypeString}, "amount": {Type: domain.TypeFloat},
			},
		},
	}

	p := Configure(d, nil, Options{}).
		Select(expr.Sum("amount")).
		GroupBy([]string{"region"}, true).
		OrderBy(expr.OrderTerm{Field: "region", Dir: expr.Asc})

	sql, _, err := p.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "ROLLUP(")
	assert.Contains(t, sql, "SELECT * FROM (")
	assert.Contains(t, sql, ") AS rollupfix")
	assert.NotContains(t, sql, "^SelectoParam^")
}

// S3: a recursive adjacency-list hierarchy CTE, depth-bounded and
// filtered on the outer query, produces WITH RECURSIVE ... UNION ALL
// with its two integer bounds as the first two placeholders.
func TestScenario_RecursiveHierarchyCTE(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{Table: "items", PrimaryKey: "id", Fields: []string{"id", "category_id"}},
		Schemas: map[string]domain.Schema{
			"categories": {Table: "categories", PrimaryKey: "id", Fields: []string{"id", "name", "parent_id"}},
		},
		Joins: map[string]domain.JoinSpec{
			"hierarchy": {
				Name: "hierarchy", Type: domain.JoinHierarchicalAdjacency, Table: "categories",
				OwnerKey: "category_id",
				Hierarchical: domain.HierarchicalSpec{
					Strategy: domain.JoinHierarchicalAdjacency, IDField: "id", NameField: "name",
					ParentField: "parent_id", DepthLimit: 5, RootCondition: "parent_id IS NULL",
				},
			},
		},
	}

	p := Configure(d, nil, Options{}).
		Select(expr.F("hierarchy.name")).
		Filter(expr.Lte("hierarchy.level", 3))

	sql, params, err := p.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `WITH RECURSIVE "hierarchy" AS (`)
	assert.Contains(t, sql, "UNION ALL")
	assert.Equal(t, []any{5, 3}, params)
}

// S4: a tagging facet filtered with the "all" strategy renders a
// correlated COUNT(DISTINCT ...) subquery comparing against the
// requested tag count, with the tag array passed through = ANY.
func TestScenario_TaggingFacetAll(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{Table: "posts", PrimaryKey: "id", Fields: []string{"id"}},
		Joins: map[string]domain.JoinSpec{
			"tags": {
				Name: "tags", Type: domain.JoinTagging, Table: "tags",
				JoinTable: "post_tags", TagTable: "tags",
				MainForeignKey: "post_id", TagForeignKey: "tag_id", TagField: "name",
			},
		},
	}

	tags := []string{"web", "backend", "api"}
	p := Configure(d, nil, Options{}).
		Select(expr.F("id")).
		Filter(expr.Subfilter{
			Path:      "tags",
			Predicate: expr.Condition{Field: "name", Op: expr.OpIn, Value: tags},
			Strategy:  expr.SubAggregation,
			AggField:  "name", AggFunc: expr.AggCountDistinct, AggOp: expr.OpEq, AggValue: len(tags),
		})

	sql, params, err := p.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "COUNT(DISTINCT")
	assert.Contains(t, sql, "= ANY($1)")
	assert.Equal(t, []any{tags, 3}, params)
}

// S5: a json_agg correlated subselect renders json_build_object columns
// aliased to the requested column, and the outer filter's value is
// bound as a parameter.
func TestScenario_SubselectJSONAgg(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{Table: "events", PrimaryKey: "id", Fields: []string{"id", "name", "email", "event_id"}},
	}

	p := Configure(d, nil, Options{}).
		Select(expr.F("name"), expr.F("email")).
		Subselect(subselect.Spec{
			Alias: "order_items", Strategy: subselect.StrategyJSONAgg,
			TargetTable: "orders", TargetFields: []string{"product_name", "quantity"},
			ForeignKey: "event_id",
		}).
		Filter(expr.Eq("event_id", 123))

	sql, params, err := p.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "json_agg")
	assert.Contains(t, sql, "json_build_object")
	assert.Contains(t, sql, `AS "order_items"`)
	assert.Contains(t, sql, `FROM "orders"`)
	assert.Contains(t, sql, "WHERE")
	assert.Contains(t, params, 123)
}

// S6: UNION (not UNION ALL) of two identically-shaped queries filtered
// on distinct rating values renders both SELECTs joined by a bare UNION.
func TestScenario_SetOpUnion(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{
			Table: "films", PrimaryKey: "id", Fields: []string{"id", "title", "rental_rate", "rating"},
			Columns: map[string]domain.Column{
				"title": {Type: domain.TypeString}, "rental_rate": {Type: domain.TypeFloat}, "rating": {Type: domain.TypeString},
			},
		},
	}

	left := Configure(d, nil, Options{}).Select(expr.F("title"), expr.F("rental_rate")).Filter(expr.Eq("rating", "PG"))
	right := Configure(d, nil, Options{}).Select(expr.F("title"), expr.F("rental_rate")).Filter(expr.Eq("rating", "G"))

	sql, params, err := left.Union(right, false).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "UNION")
	assert.NotContains(t, sql, "UNION ALL")
	assert.Equal(t, []any{"PG", "G"}, params)
}

// S7: a parameterized join's bound values, threaded from the field
// reference that supplies them through to the rendered ON clause, come
// out as real placeholders rather than literals spliced into the SQL.
func TestScenario_ParameterizedJoinRoutesBoundValues(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{Table: "orders", PrimaryKey: "id", Fields: []string{"id"}},
		Schemas: map[string]domain.Schema{
			"products": {Table: "products", PrimaryKey: "id", Fields: []string{"id", "name", "category", "price"}},
		},
		Joins: map[string]domain.JoinSpec{
			"products": {
				Name: "products", Type: domain.JoinParameterized, Table: "products",
				Parameters: []domain.ParamDef{
					{Name: "category", Type: domain.TypeString, Required: true},
					{Name: "min_price", Type: domain.TypeFloat, Required: true},
				},
				JoinCondition: "products.category = $param_category AND products.price >= $param_min_price",
			},
		},
	}

	p := Configure(d, nil, Options{}).Select(expr.F("products:electronics:25.0.name"))

	sql, params, err := p.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "products.category = $1 AND products.price >= $2")
	assert.NotContains(t, sql, "'electronics'")
	assert.Equal(t, []any{"electronics", 25.0}, params)
}

// S8: a star dimension's "display" and a closure table's "depth" render
// as resolvable custom columns against their join alias, without the
// backing schema declaring either as a field.
func TestScenario_CustomColumnsResolve(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{Table: "sales", PrimaryKey: "id", Fields: []string{"id", "region_id", "category_id"}},
		Schemas: map[string]domain.Schema{
			"regions":    {Table: "regions", PrimaryKey: "id", Fields: []string{"id", "name"}},
			"categories": {Table: "categories", PrimaryKey: "id", Fields: []string{"id", "name"}},
		},
		Joins: map[string]domain.JoinSpec{
			"region": {
				Name: "region", Type: domain.JoinStarDimension, Table: "regions",
				OwnerKey: "region_id", RelatedKey: "id", DisplayField: "name",
			},
			"cat": {
				Name: "cat", Type: domain.JoinHierarchicalClosure, OwnerKey: "category_id",
				Hierarchical: domain.HierarchicalSpec{
					ClosureTable: "category_closure", AncestorField: "ancestor_id", DescendantField: "descendant_id",
				},
			},
		},
	}

	p := Configure(d, nil, Options{}).
		Select(expr.F("region.display")).
		Filter(expr.Lte("cat.depth", 2))

	sql, params, err := p.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `"region"."name" AS "display"`)
	assert.Contains(t, sql, `"cat"."depth" <= $1`)
	assert.Equal(t, []any{2}, params)
}

// S9: a join's own declared CustomColumns template resolves as a custom
// column too, with "{alias}" substituted for the join's quoted alias.
func TestScenario_DeclaredCustomColumnTemplateResolves(t *testing.T) {
	d := domain.Domain{
		Source: domain.Schema{Table: "orders", PrimaryKey: "id", Fields: []string{"id", "customer_id"}},
		Schemas: map[string]domain.Schema{
			"customers": {Table: "customers", PrimaryKey: "id", Fields: []string{"id", "first_name", "last_name"}},
		},
		Joins: map[string]domain.JoinSpec{
			"customer": {
				Name: "customer", Type: domain.JoinLeft, Table: "customers",
				OwnerKey: "customer_id", RelatedKey: "id",
				CustomColumns: map[string]string{
					"full_name": "{alias}.first_name || ' ' || {alias}.last_name",
				},
			},
		},
	}

	p := Configure(d, nil, Options{}).Select(expr.F("customer.full_name"))

	sql, _, err := p.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `"customer".first_name || ' ' || "customer".last_name`)
}
