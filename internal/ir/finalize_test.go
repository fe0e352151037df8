package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalize_PlaceholderCountMatchesParams(t *testing.T) {
	f := Seq(
		S("SELECT * FROM users WHERE id = "),
		P(42),
		S(" AND email = "),
		P("a@b.com"),
	)

	res := Finalize(f)
	assert.Equal(t, "SELECT * FROM users WHERE id = $1 AND email = $2", res.SQL)
	require.Len(t, res.Params, 2)
	assert.Equal(t, 42, res.Params[0])
	assert.Equal(t, "a@b.com", res.Params[1])
}

func TestFinalize_EmptyYieldsEmpty(t *testing.T) {
	res := Finalize(Seq())
	assert.Empty(t, res.SQL)
	assert.Empty(t, res.Params)
}

func TestFinalize_NoImplicitDedup(t *testing.T) {
	f := Seq(P("x"), S(","), P("x"))
	res := Finalize(f)
	assert.Equal(t, "$1,$2", res.SQL)
	assert.Equal(t, []any{"x", "x"}, res.Params)
}

func TestFinalizeWithCTEs_CteParamsPrecedeMain(t *testing.T) {
	cte := Cte("recent", false, Seq(S("SELECT id FROM orders WHERE created_at > "), P("2024-01-01")))
	main := Seq(
		S("WITH "), cte, S(" SELECT * FROM recent WHERE total > "), P(100),
	)

	combined, ctes := FinalizeWithCTEs(main)
	require.Len(t, combined.Params, 2)
	assert.Equal(t, "2024-01-01", combined.Params[0])
	assert.Equal(t, 100, combined.Params[1])
	assert.Contains(t, combined.SQL, "$1")
	assert.Contains(t, combined.SQL, "$2")

	require.Len(t, ctes, 1)
	assert.Equal(t, "recent", ctes[0].Name)
	assert.Equal(t, []any{"2024-01-01"}, ctes[0].Params)
	assert.Contains(t, ctes[0].SQL, "$1")
}

func TestDoubleWrap(t *testing.T) {
	wrapped, err := DoubleWrap("users")
	require.NoError(t, err)
	assert.Equal(t, `"users"`, wrapped)

	_, err = DoubleWrap(`evil"name`)
	require.Error(t, err)
}

func TestDoubleWrap_IdempotentOnAlreadySafe(t *testing.T) {
	first, err := DoubleWrap("orders")
	require.NoError(t, err)
	stripped := first[1 : len(first)-1]
	second, err := DoubleWrap(stripped)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSingleWrap(t *testing.T) {
	assert.Equal(t, `'it''s'`, SingleWrap("it's"))
}

func TestCheckSafePhrase(t *testing.T) {
	require.NoError(t, CheckSafePhrase("asc nulls first"))
	require.Error(t, CheckSafePhrase(""))
	require.Error(t, CheckSafePhrase("asc; drop table users"))
}
