package cte

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selecto-sql/selecto/internal/ir"
)

func TestBuildWithClause_HoistsRecursive(t *testing.T) {
	plain := BuildPlain("totals", ir.S("SELECT 1"))
	hierarchy, err := BuildHierarchyCTE("hierarchy", "categories", DefaultHierarchyOpts())
	require.NoError(t, err)

	frag, err := BuildWithClause([]Built{plain, hierarchy})
	require.NoError(t, err)
	res := ir.Finalize(frag)
	assert.Contains(t, res.SQL, "WITH RECURSIVE ")
	assert.Contains(t, res.SQL, `"totals" AS (SELECT 1)`)
	assert.Contains(t, res.SQL, `"hierarchy" AS (`)
}

func TestBuildWithClause_PlainOnlyOmitsRecursiveKeyword(t *testing.T) {
	plain := BuildPlain("totals", ir.S("SELECT 1"))
	frag, err := BuildWithClause([]Built{plain})
	require.NoError(t, err)
	res := ir.Finalize(frag)
	assert.True(t, res.SQL == `WITH "totals" AS (SELECT 1)`)
}

func TestBuildHierarchyCTE_EmitsExpectedShape(t *testing.T) {
	b, err := BuildHierarchyCTE("hierarchy", "categories", HierarchyOpts{DepthLimit: 5})
	require.NoError(t, err)
	assert.True(t, b.Recursive)
	res := ir.Finalize(b.Body)
	assert.Contains(t, res.SQL, "parent_id IS NULL")
	assert.Contains(t, res.SQL, "UNION ALL")
	assert.Contains(t, res.SQL, "h.level < $1")
	assert.Equal(t, []any{5}, res.Params)
}

func TestBuildRecursiveCTE_ParamsSpanBaseAndStep(t *testing.T) {
	base := ir.Seq(ir.S("SELECT "), ir.P(1))
	step := ir.Seq(ir.S("SELECT "), ir.P(2))
	b := BuildRecursive("nums", base, step)
	res := ir.Finalize(b.Body)
	assert.Equal(t, "SELECT $1 UNION ALL SELECT $2", res.SQL)
	assert.Equal(t, []any{1, 2}, res.Params)
}

func TestBuildMaterializedPathCTE_AppliesRootPrefix(t *testing.T) {
	b, err := BuildMaterializedPathCTE("tree", "categories", "path", "/", "electronics")
	require.NoError(t, err)
	res := ir.Finalize(b.Body)
	assert.Contains(t, res.SQL, `"path" LIKE $1`)
	assert.Equal(t, []any{"electronics%"}, res.Params)
}
