package selecto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/expr"
)

func minimalDomain() domain.Domain {
	return domain.Domain{
		Source: domain.Schema{
			Table: "widgets", PrimaryKey: "id", Fields: []string{"id", "name"},
			Columns: map[string]domain.Column{"id": {Type: domain.TypeInteger}, "name": {Type: domain.TypeString}},
		},
	}
}

func TestConfigure_RejectsPoolWithoutPoolOptions(t *testing.T) {
	p := Configure(minimalDomain(), nil, Options{Pool: true})
	require.Error(t, p.Err())
	var verr *OptionsValidationError
	require.ErrorAs(t, p.Err(), &verr)
}

func TestConfigure_AcceptsPoolWithPoolOptions(t *testing.T) {
	p := Configure(minimalDomain(), nil, Options{Pool: true, PoolOptions: map[string]any{"max_conns": 10}})
	require.NoError(t, p.Err())
}

func TestConfigure_DomainValidationCollectsAllErrors(t *testing.T) {
	p := Configure(domain.Domain{}, nil, Options{Validate: true})
	var derr *DomainValidationError
	require.ErrorAs(t, p.Err(), &derr)
	assert.NotEmpty(t, derr.Errors)
}

func TestPlan_BuilderCallsAreImmutableAndIndependent(t *testing.T) {
	base := Configure(minimalDomain(), nil, Options{})
	a := base.Select(expr.F("name"))
	b := base.Filter(expr.Eq("id", 1))
	assert.Empty(t, base.selected)
	assert.NotEmpty(t, a.selected)
	assert.Empty(t, a.filtered)
	assert.NotEmpty(t, b.filtered)
}
