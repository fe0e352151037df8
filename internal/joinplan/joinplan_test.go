package joinplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/internal/resolve"
)

func chainDomain() domain.Domain {
	return domain.Domain{
		Source: domain.Schema{Table: "users", PrimaryKey: "id", Fields: []string{"id"}, Columns: map[string]domain.Column{"id": {Type: domain.TypeInteger}}},
		Schemas: map[string]domain.Schema{
			"posts":    {Table: "posts", PrimaryKey: "id"},
			"comments": {Table: "comments", PrimaryKey: "id"},
			"tags":     {Table: "tags", PrimaryKey: "id"},
		},
		Joins: map[string]domain.JoinSpec{
			"posts":    {Name: "posts", Table: "posts", RequiresJoin: domain.RootJoinName},
			"comments": {Name: "comments", Table: "comments", RequiresJoin: "posts"},
			"tags":     {Name: "tags", Table: "tags", RequiresJoin: "comments"},
		},
	}
}

func TestPlan_OrdersParentBeforeChild(t *testing.T) {
	d := chainDomain()
	set := resolve.NewSet(d)
	order, err := Plan(set, []string{"tags"})
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "comments", "tags"}, order)
}

func TestPlan_FirstSeenTieBreak(t *testing.T) {
	d := chainDomain()
	d.Joins["siblingA"] = domain.JoinSpec{Name: "siblingA", Table: "posts", RequiresJoin: domain.RootJoinName}
	d.Joins["siblingB"] = domain.JoinSpec{Name: "siblingB", Table: "posts", RequiresJoin: domain.RootJoinName}
	set := resolve.NewSet(d)
	order, err := Plan(set, []string{"siblingB", "siblingA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"siblingB", "siblingA"}, order)
}

func TestPlan_MissingJoin(t *testing.T) {
	d := chainDomain()
	set := resolve.NewSet(d)
	_, err := Plan(set, []string{"ghost"})
	require.Error(t, err)
	var mErr *MissingError
	require.ErrorAs(t, err, &mErr)
}

func TestPlan_CycleDetected(t *testing.T) {
	d := chainDomain()
	d.Joins["a"] = domain.JoinSpec{Name: "a", RequiresJoin: "b"}
	d.Joins["b"] = domain.JoinSpec{Name: "b", RequiresJoin: "a"}
	set := resolve.NewSet(d)
	_, err := Plan(set, []string{"a"})
	require.Error(t, err)
	var cErr *CycleError
	require.ErrorAs(t, err, &cErr)
}

func TestPlan_DedupesSharedAncestors(t *testing.T) {
	d := chainDomain()
	set := resolve.NewSet(d)
	order, err := Plan(set, []string{"comments", "posts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "comments"}, order)
}
