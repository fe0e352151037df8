package subselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/ir"
)

func TestRenderSubfilter_Exists(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinLeft, Table: "comments", OwnerKey: "id", RelatedKey: "post_id"}
	sf := expr.Subfilter{Path: "comments", Strategy: expr.SubExists}
	frag, err := RenderSubfilter("posts", j, sf)
	require.NoError(t, err)
	res := ir.Finalize(frag)
	assert.Equal(t, `EXISTS (SELECT 1 FROM "comments" t WHERE t."post_id" = "posts"."id")`, res.SQL)
}

func TestRenderSubfilter_NotExistsWithPredicate(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinLeft, Table: "comments", OwnerKey: "id", RelatedKey: "post_id"}
	sf := expr.Subfilter{
		Path: "comments", Strategy: expr.SubNotExists,
		Predicate: expr.Condition{Field: "approved", Op: expr.OpEq, Value: true},
	}
	frag, err := RenderSubfilter("posts", j, sf)
	require.NoError(t, err)
	res := ir.Finalize(frag)
	assert.Contains(t, res.SQL, `NOT EXISTS (SELECT 1 FROM "comments" t WHERE t."post_id" = "posts"."id" AND t."approved" = $1)`)
	assert.Equal(t, []any{true}, res.Params)
}

func TestRenderSubfilter_InMembership(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinLeft, Table: "order_items", OwnerKey: "id", RelatedKey: "order_id"}
	sf := expr.Subfilter{Path: "order_items", Strategy: expr.SubIn, AggField: "id"}
	frag, err := RenderSubfilter("orders", j, sf)
	require.NoError(t, err)
	res := ir.Finalize(frag)
	assert.Equal(t, `("orders"."id") IN (SELECT t."id" FROM "order_items" t WHERE t."order_id" = "orders"."id")`, res.SQL)
}

func TestRenderSubfilter_TaggingAggregation(t *testing.T) {
	j := domain.JoinSpec{
		Type: domain.JoinTagging, JoinTable: "post_tags", TagTable: "tags",
		MainForeignKey: "post_id", TagForeignKey: "tag_id",
	}
	tags := []string{"web", "backend"}
	sf := expr.Subfilter{
		Path:      "tags",
		Predicate: expr.Condition{Field: "name", Op: expr.OpIn, Value: tags},
		Strategy:  expr.SubAggregation, AggField: "name", AggFunc: expr.AggCountDistinct,
		AggOp: expr.OpEq, AggValue: len(tags),
	}
	frag, err := RenderSubfilter("posts", j, sf)
	require.NoError(t, err)
	res := ir.Finalize(frag)
	assert.Contains(t, res.SQL, `FROM "post_tags" jt JOIN "tags" t ON jt."tag_id" = t."id" WHERE jt."post_id" = "posts"."id"`)
	assert.Contains(t, res.SQL, `COUNT(DISTINCT t."name")`)
	assert.Contains(t, res.SQL, `= ANY($1)`)
	assert.Contains(t, res.SQL, `) = $2`)
	assert.Equal(t, []any{tags, 2}, res.Params)
}

func TestRenderSubfilter_UnsupportedStrategy(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinLeft, Table: "comments", OwnerKey: "id", RelatedKey: "post_id"}
	sf := expr.Subfilter{Path: "comments", Strategy: expr.SubfilterStrategy("bogus")}
	_, err := RenderSubfilter("posts", j, sf)
	require.Error(t, err)
}
