package setop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/internal/ir"
)

func TestValidate_CompatibleSchemasNeverRaises(t *testing.T) {
	left := []Column{{Name: "title", Type: domain.TypeString}, {Name: "rate", Type: domain.TypeFloat}}
	right := []Column{{Name: "title", Type: "text"}, {Name: "rate", Type: "numeric"}}
	require.NoError(t, Validate(left, right))
}

func TestValidate_ColumnCountMismatch(t *testing.T) {
	err := Validate([]Column{{Name: "a", Type: domain.TypeString}}, []Column{{Name: "a", Type: domain.TypeString}, {Name: "b", Type: domain.TypeInteger}})
	require.Error(t, err)
	var sErr *SchemaError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ErrColumnCountMismatch, sErr.Kind())
}

func TestValidate_TypeMismatch(t *testing.T) {
	err := Validate([]Column{{Name: "a", Type: domain.TypeString}}, []Column{{Name: "a", Type: domain.TypeInteger}})
	require.Error(t, err)
	var sErr *SchemaError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ErrTypeMismatch, sErr.Kind())
}

func TestValidate_EmptySelection(t *testing.T) {
	err := Validate(nil, []Column{{Name: "a", Type: domain.TypeString}})
	require.Error(t, err)
	var sErr *SchemaError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ErrEmptySelection, sErr.Kind())
}

func TestCompose_UnionNotAll(t *testing.T) {
	cols := []Column{{Name: "title", Type: domain.TypeString}}
	left := Side{Body: ir.S(`SELECT "title" FROM "films" WHERE "rating" = $1`), Columns: cols}
	right := Side{Body: ir.S(`SELECT "title" FROM "films" WHERE "rating" = $1`), Columns: cols}
	frag, err := Compose(Spec{Op: Union, Left: left, Right: right})
	require.NoError(t, err)
	res := ir.Finalize(frag)
	assert.Contains(t, res.SQL, " UNION ")
	assert.NotContains(t, res.SQL, "UNION ALL")
}

func TestCompose_UnionAll(t *testing.T) {
	cols := []Column{{Name: "title", Type: domain.TypeString}}
	left := Side{Body: ir.S(`SELECT 1`), Columns: cols}
	right := Side{Body: ir.S(`SELECT 2`), Columns: cols}
	frag, err := Compose(Spec{Op: Union, All: true, Left: left, Right: right})
	require.NoError(t, err)
	assert.Contains(t, ir.Finalize(frag).SQL, "UNION ALL")
}

func TestCompose_RejectsSchemaMismatch(t *testing.T) {
	left := Side{Body: ir.S("SELECT 1"), Columns: []Column{{Name: "a", Type: domain.TypeInteger}}}
	right := Side{Body: ir.S("SELECT 2"), Columns: []Column{{Name: "a", Type: domain.TypeBoolean}}}
	_, err := Compose(Spec{Op: Union, Left: left, Right: right})
	require.Error(t, err)
}

func TestOrderByPosition(t *testing.T) {
	frag, err := OrderByPosition([]int{1, 2}, []bool{false, true})
	require.NoError(t, err)
	res := ir.Finalize(frag)
	assert.Equal(t, "ORDER BY 1 ASC, 2 DESC", res.SQL)
}
