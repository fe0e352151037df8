package clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/ir"
	"github.com/selecto-sql/selecto/internal/resolve"
)

func testResolver() Resolver {
	d := domain.Domain{
		Source: domain.Schema{
			Table: "users", PrimaryKey: "id",
			Fields:  []string{"id", "name", "created_at"},
			Columns: map[string]domain.Column{
				"id":         {Type: domain.TypeInteger},
				"name":       {Type: domain.TypeString},
				"created_at": {Type: domain.TypeDateTime},
			},
		},
		Schemas: map[string]domain.Schema{
			"posts": {Table: "posts", PrimaryKey: "id", Fields: []string{"id", "title"}, Columns: map[string]domain.Column{
				"id": {Type: domain.TypeInteger}, "title": {Type: domain.TypeString},
			}},
		},
		Joins: map[string]domain.JoinSpec{
			"posts": {Name: "posts", Table: "posts", RequiresJoin: domain.RootJoinName},
		},
	}
	return NewResolver(d, resolve.NewSet(d))
}

func TestRenderExpr_Field(t *testing.T) {
	r := testResolver()
	f, err := RenderExpr(r, expr.F("name"))
	require.NoError(t, err)
	res := ir.Finalize(f)
	assert.Equal(t, `"users"."name"`, res.SQL)
}

func TestRenderExpr_Aggregate(t *testing.T) {
	r := testResolver()
	f, err := RenderExpr(r, expr.Count())
	require.NoError(t, err)
	res := ir.Finalize(f)
	assert.Equal(t, "COUNT(*)", res.SQL)
}

func TestRenderExpr_Coalesce(t *testing.T) {
	r := testResolver()
	f, err := RenderExpr(r, expr.Coalesce{Args: []expr.Expr{expr.F("name"), expr.L("anon")}})
	require.NoError(t, err)
	res := ir.Finalize(f)
	assert.Equal(t, `COALESCE("users"."name", $1)`, res.SQL)
	assert.Equal(t, []any{"anon"}, res.Params)
}

func TestRenderFilter_Condition(t *testing.T) {
	r := testResolver()
	f, err := RenderFilter(r, expr.Eq("name", "bob"))
	require.NoError(t, err)
	res := ir.Finalize(f)
	assert.Equal(t, `"users"."name" = $1`, res.SQL)
	assert.Equal(t, []any{"bob"}, res.Params)
}

func TestRenderFilter_And(t *testing.T) {
	r := testResolver()
	f, err := RenderFilter(r, expr.All(expr.Eq("name", "bob"), expr.Gt("id", 5)))
	require.NoError(t, err)
	res := ir.Finalize(f)
	assert.Equal(t, `("users"."name" = $1) AND ("users"."id" > $2)`, res.SQL)
}

func TestRenderOrderBy(t *testing.T) {
	r := testResolver()
	f, err := RenderOrderBy(r, []expr.OrderTerm{{Field: "name", Dir: expr.Desc, Nulls: expr.NullsLast}})
	require.NoError(t, err)
	res := ir.Finalize(f)
	assert.Equal(t, `"users"."name" DESC NULLS LAST`, res.SQL)
}

func TestRenderGroupBy_Rollup(t *testing.T) {
	r := testResolver()
	f, err := RenderGroupBy(r, GroupBySpec{Fields: []string{"name"}, Rollup: true})
	require.NoError(t, err)
	res := ir.Finalize(f)
	assert.Equal(t, `ROLLUP("users"."name")`, res.SQL)
}

func TestRenderWindow_RowNumber(t *testing.T) {
	r := testResolver()
	f, err := RenderExpr(r, expr.Window{
		Func: expr.WinRowNumber,
		Over: expr.WindowSpec{
			PartitionBy: []string{"name"},
			OrderBy:     []expr.OrderTerm{{Field: "id", Dir: expr.Asc}},
		},
	})
	require.NoError(t, err)
	res := ir.Finalize(f)
	assert.Equal(t, `ROW_NUMBER() OVER (PARTITION BY "users"."name" ORDER BY "users"."id" ASC)`, res.SQL)
}

func TestRenderOrderBy_RejectsUnsafeDirection(t *testing.T) {
	r := testResolver()
	_, err := RenderOrderBy(r, []expr.OrderTerm{{Field: "name", Dir: "ASC; DROP TABLE users"}})
	require.Error(t, err)
}
