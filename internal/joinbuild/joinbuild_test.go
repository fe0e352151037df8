package joinbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/internal/ir"
)

func sql(t *testing.T, b Built) string {
	t.Helper()
	return ir.Finalize(b.Frag).SQL
}

func TestBuild_Basic(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinLeft, Table: "posts", OwnerKey: "id", RelatedKey: "user_id"}
	b, err := Build("posts", j, "users")
	require.NoError(t, err)
	assert.Equal(t, `LEFT JOIN "posts" AS "posts" ON "users"."id" = "posts"."user_id"`, sql(t, b))
}

func TestBuild_Inner(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinInner, Table: "posts", OwnerKey: "id", RelatedKey: "user_id"}
	b, err := Build("posts", j, "users")
	require.NoError(t, err)
	assert.Contains(t, sql(t, b), "INNER JOIN")
}

func TestBuild_Cross(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinCross, Table: "calendar"}
	b, err := Build("cal", j, "users")
	require.NoError(t, err)
	assert.Equal(t, `CROSS JOIN "calendar" AS "cal"`, sql(t, b))
}

func TestBuild_Self(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinSelf, Table: "employees", SelfKey: "manager_id", TargetKey: "id"}
	b, err := Build("manager", j, "employees")
	require.NoError(t, err)
	assert.Equal(t, `LEFT JOIN "employees" AS "manager" ON "employees"."manager_id" = "manager"."id"`, sql(t, b))
}

func TestBuild_StarDimension_ExposesDisplay(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinStarDimension, Table: "regions", OwnerKey: "region_id", RelatedKey: "id", DisplayField: "name"}
	b, err := Build("region", j, "sales")
	require.NoError(t, err)
	require.Contains(t, b.CustomColumns, "display")
	assert.Equal(t, `"region"."name"`, ir.Finalize(b.CustomColumns["display"]).SQL)
}

func TestBuild_SnowflakeDimension_ChainsNormalization(t *testing.T) {
	j := domain.JoinSpec{
		Type: domain.JoinSnowflakeDimension, Table: "product", OwnerKey: "product_id", RelatedKey: "id",
		NormalizationJoins: []domain.NormalizationJoin{
			{Table: "category", FKField: "category_id", PKField: "id"},
			{Table: "department", FKField: "department_id", PKField: "id"},
		},
	}
	b, err := Build("product", j, "sales")
	require.NoError(t, err)
	out := sql(t, b)
	assert.Contains(t, out, `LEFT JOIN "category" AS "product_next1" ON "product"."category_id" = "product_next1"."id"`)
	assert.Contains(t, out, `LEFT JOIN "department" AS "product_next2" ON "product_next1"."department_id" = "product_next2"."id"`)
}

func TestBuild_Tagging(t *testing.T) {
	j := domain.JoinSpec{
		Type: domain.JoinTagging, JoinTable: "post_tags", TagTable: "tags",
		OwnerKey: "id", MainForeignKey: "post_id", TagForeignKey: "tag_id", RelatedKey: "id",
	}
	b, err := Build("tags", j, "posts")
	require.NoError(t, err)
	out := sql(t, b)
	assert.Contains(t, out, `LEFT JOIN "post_tags" AS "tags_jt" ON "posts"."id" = "tags_jt"."post_id"`)
	assert.Contains(t, out, `LEFT JOIN "tags" AS "tags" ON "tags_jt"."tag_id" = "tags"."id"`)
}

func TestBuild_Conditional_FieldComparison(t *testing.T) {
	j := domain.JoinSpec{
		Type: domain.JoinConditional, Table: "rates",
		Conditions: []domain.JoinCondition{
			{Kind: domain.CondFieldComparison, LeftExpr: "currency", Op: "=", RightExpr: "currency"},
		},
	}
	b, err := Build("rates", j, "orders")
	require.NoError(t, err)
	assert.Equal(t, `LEFT JOIN "rates" AS "rates" ON "orders"."currency" = "rates"."currency"`, sql(t, b))
}

func TestBuild_Conditional_DateRange(t *testing.T) {
	j := domain.JoinSpec{
		Type: domain.JoinConditional, Table: "rates",
		Conditions: []domain.JoinCondition{
			{Kind: domain.CondDateRange, TimestampField: "effective_at", From: "2020-01-01", To: "2020-12-31"},
		},
	}
	b, err := Build("rates", j, "orders")
	require.NoError(t, err)
	res := ir.Finalize(b.Frag)
	assert.Contains(t, res.SQL, `"rates"."effective_at" BETWEEN $1 AND $2`)
	assert.Equal(t, []any{"2020-01-01", "2020-12-31"}, res.Params)
}

func TestBuild_Parameterized_RoutesBoundValuesThroughPlaceholders(t *testing.T) {
	j := domain.JoinSpec{
		Type: domain.JoinParameterized, Table: "products",
		Parameters: []domain.ParamDef{
			{Name: "category", Type: domain.TypeString},
			{Name: "min_price", Type: domain.TypeFloat},
		},
		JoinCondition: "products.category = $param_category AND products.price >= $param_min_price",
	}
	b, err := BuildParameterized(j, "root", "products", []any{"electronics", 25.0})
	require.NoError(t, err)
	res := ir.Finalize(b.Frag)
	assert.Equal(t, `LEFT JOIN "products" AS "products" ON products.category = $1 AND products.price >= $2`, res.SQL)
	assert.Equal(t, []any{"electronics", 25.0}, res.Params)
}

func TestBuild_Parameterized_UnknownParamReference(t *testing.T) {
	j := domain.JoinSpec{
		Type: domain.JoinParameterized, Table: "products",
		Parameters:    []domain.ParamDef{{Name: "category", Type: domain.TypeString}},
		JoinCondition: "products.category = $param_category AND products.region = $param_region",
	}
	_, err := BuildParameterized(j, "root", "products", []any{"electronics"})
	require.Error(t, err)
}

func TestBuild_HierarchicalRejected(t *testing.T) {
	j := domain.JoinSpec{Type: domain.JoinHierarchicalAdjacency}
	_, err := Build("cat", j, "root")
	require.Error(t, err)
}

func TestBuild_HierarchicalClosure(t *testing.T) {
	j := domain.JoinSpec{
		Type: domain.JoinHierarchicalClosure, OwnerKey: "id",
		Hierarchical: domain.HierarchicalSpec{
			ClosureTable: "category_closure", AncestorField: "ancestor_id", DescendantField: "descendant_id",
		},
	}
	b, err := Build("cat", j, "categories")
	require.NoError(t, err)
	assert.Equal(t, `LEFT JOIN "category_closure" AS "cat" ON "categories"."id" = "cat"."ancestor_id"`, sql(t, b))
	require.Contains(t, b.CustomColumns, "depth")
	require.Contains(t, b.CustomColumns, "descendant_count")
	assert.Equal(t, `"cat"."depth"`, ir.Finalize(b.CustomColumns["depth"]).SQL)
	assert.Contains(t, ir.Finalize(b.CustomColumns["descendant_count"]).SQL, `FROM "category_closure" selecto_dc WHERE selecto_dc."ancestor_id" = "cat"."descendant_id"`)
}
