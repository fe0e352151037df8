// Package joinplan closes a set of referenced join names under their
// requires_join chains and orders the result so every join is emitted
// after the join it depends on - grounded on the teacher's builder.go
// join-accumulation loop (which appended joins in call order with no
// dependency awareness), generalized into the transitive-closure +
// topological-sort pass spec.md §4.5 requires for nested joins.
package joinplan

import (
	"fmt"
	"sort"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/internal/resolve"
)

// CycleError reports a requires_join cycle discovered during ordering.
// domain.Validate should already have caught this; Plan re-checks
// because it may be called against a hand-assembled join map that
// skipped validation.
type CycleError struct {
	Join string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("joinplan: cycle detected at join %q", e.Join)
}

// MissingError reports a referenced join name absent from the set.
type MissingError struct {
	Join string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("joinplan: referenced join %q is not declared in the domain", e.Join)
}

// Plan closes referenced (in first-seen order) under each join's
// RequiresJoin chain, then returns the join names in an order where
// every join appears after its RequiresJoin parent. Ties - joins with
// no ordering constraint between them - are broken by first-seen order,
// matching the order fields were referenced in the plan.
func Plan(set resolve.Set, referenced []string) ([]string, error) {
	firstSeen := make([]string, 0, len(referenced))
	seen := map[string]bool{}

	var discover func(name string) error
	discover = func(name string) error {
		if name == "" || name == domain.RootJoinName || seen[name] {
			return nil
		}
		j, ok := set.Joins[name]
		if !ok {
			return &MissingError{Join: name}
		}
		seen[name] = true
		firstSeen = append(firstSeen, name)
		return discover(j.RequiresJoin)
	}

	for _, name := range referenced {
		if err := discover(name); err != nil {
			return nil, err
		}
	}

	return topoSort(set, firstSeen)
}

// topoSort performs Kahn's algorithm over the requires_join edges
// (parent -> child), breaking ties by each node's position in
// firstSeen.
func topoSort(set resolve.Set, nodes []string) ([]string, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	children := make(map[string][]string)
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indegree[n] = 0
	}
	for _, n := range nodes {
		parent := set.Joins[n].RequiresJoin
		if parent != "" && parent != domain.RootJoinName {
			if _, ok := index[parent]; ok {
				children[parent] = append(children[parent], n)
				indegree[n]++
			}
		}
	}

	var ready []string
	for _, n := range nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	var out []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)

		kids := append([]string{}, children[next]...)
		sort.Slice(kids, func(i, j int) bool { return index[kids[i]] < index[kids[j]] })
		for _, c := range kids {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(out) != len(nodes) {
		for _, n := range nodes {
			visited := false
			for _, o := range out {
				if o == n {
					visited = true
				}
			}
			if !visited {
				return nil, &CycleError{Join: n}
			}
		}
	}

	return out, nil
}

// Schemas maps each planned join name to the schema it targets, for
// callers that need to look up columns/display fields while emitting
// SQL for the plan.
func Schemas(d domain.Domain, set resolve.Set, order []string) map[string]domain.Schema {
	out := make(map[string]domain.Schema, len(order))
	for _, name := range order {
		j := set.Joins[name]
		if j.Table == d.Source.Table {
			out[name] = d.Source
			continue
		}
		for _, sch := range d.Schemas {
			if sch.Table == j.Table {
				out[name] = sch
				break
			}
		}
	}
	return out
}
