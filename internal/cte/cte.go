// Package cte assembles plain and recursive common table expressions
// and the WITH preamble that precedes a main SELECT - grounded on
// spec.md §4.8's build_recursive_cte/build_with_clause primitives and,
// for the UNION ALL base/recursive-step shape, on the block-set pattern
// in the other_examples recursive list_subjects builder (separate base
// and recursive-step fragments concatenated under one CTE name).
package cte

import (
	"fmt"

	"github.com/selecto-sql/selecto/internal/ir"
)

// Built is one assembled CTE: its name, whether it requires the
// RECURSIVE keyword, and its body fragment (already UNION ALL'd when
// recursive).
type Built struct {
	Name      string
	Recursive bool
	Body      ir.Frag
}

// BuildPlain wraps a finalized query body as a non-recursive CTE.
func BuildPlain(name string, body ir.Frag) Built {
	return Built{Name: name, Body: body}
}

// BuildRecursive produces `name AS (base UNION ALL recursiveStep)`,
// spec.md's build_recursive_cte primitive.
func BuildRecursive(name string, base, recursiveStep ir.Frag) Built {
	return Built{
		Name:      name,
		Recursive: true,
		Body:      ir.Seq(base, ir.S(" UNION ALL "), recursiveStep),
	}
}

// BuildWithClause joins one or more CTEs into a single WITH preamble.
// RECURSIVE is hoisted to the leading position whenever any CTE in the
// set is recursive, per SQL syntax (there is exactly one RECURSIVE
// keyword even when only one of several CTEs needs it).
func BuildWithClause(ctes []Built) (ir.Frag, error) {
	if len(ctes) == 0 {
		return ir.Frag{}, fmt.Errorf("cte: at least one CTE is required")
	}
	anyRecursive := false
	parts := make([]ir.Frag, 0, len(ctes))
	for _, c := range ctes {
		if c.Recursive {
			anyRecursive = true
		}
		name, err := ir.DoubleWrap(c.Name)
		if err != nil {
			return ir.Frag{}, err
		}
		parts = append(parts, ir.Seq(ir.S(name+" AS ("), c.Body, ir.S(")")))
	}
	kw := "WITH "
	if anyRecursive {
		kw = "WITH RECURSIVE "
	}
	return ir.Seq(ir.S(kw), ir.Join(", ", parts...)), nil
}

// HierarchyOpts are the build_hierarchy_cte defaults spec.md §4.8 names.
type HierarchyOpts struct {
	IDField         string
	NameField       string
	ParentField     string
	DepthLimit      int
	RootCondition   string
	AdditionalFields []string
}

// DefaultHierarchyOpts returns spec.md's documented defaults:
// {id_field: "id", name_field: "name", parent_field: "parent_id",
// depth_limit: 5, additional_fields: []}.
func DefaultHierarchyOpts() HierarchyOpts {
	return HierarchyOpts{IDField: "id", NameField: "name", ParentField: "parent_id", DepthLimit: 5}
}

func withDefaults(o HierarchyOpts) HierarchyOpts {
	d := DefaultHierarchyOpts()
	if o.IDField != "" {
		d.IDField = o.IDField
	}
	if o.NameField != "" {
		d.NameField = o.NameField
	}
	if o.ParentField != "" {
		d.ParentField = o.ParentField
	}
	if o.DepthLimit != 0 {
		d.DepthLimit = o.DepthLimit
	}
	d.RootCondition = o.RootCondition
	d.AdditionalFields = o.AdditionalFields
	return d
}

// BuildHierarchyCTE materializes an adjacency-list recursive CTE named
// <name> whose rows carry the configured ID and name fields plus path,
// level, path_array and any AdditionalFields, bounded by depth_limit,
// appended as the final parameter of the recursive step.
func BuildHierarchyCTE(name, table string, o HierarchyOpts) (Built, error) {
	o = withDefaults(o)

	for _, id := range append([]string{name, table, o.IDField, o.NameField, o.ParentField}, o.AdditionalFields...) {
		if _, err := ir.DoubleWrap(id); err != nil {
			return Built{}, err
		}
	}

	extraSelect, extraCarry := "", ""
	for _, f := range o.AdditionalFields {
		extraSelect += ", " + f
		extraCarry += ", c." + f
	}

	rootCond := o.ParentField + " IS NULL"
	if o.RootCondition != "" {
		rootCond = o.RootCondition
	}

	base := ir.S(fmt.Sprintf(
		"SELECT %s, %s, %s::text AS path, 0 AS level, ARRAY[%s] AS path_array%s FROM %s WHERE %s",
		o.IDField, o.NameField, o.IDField, o.IDField, extraSelect, table, rootCond,
	))

	recursive := ir.Seq(ir.S(fmt.Sprintf(
		"SELECT c.%s, c.%s, h.path || '/' || c.%s::text, h.level + 1, h.path_array || c.%s%s FROM %s c JOIN %s h ON c.%s = h.%s WHERE h.level < ",
		o.IDField, o.NameField, o.IDField, o.IDField, extraCarry,
		table, name, o.ParentField, o.IDField,
	)), ir.P(o.DepthLimit))

	return BuildRecursive(name, base, recursive), nil
}

// BuildMaterializedPathCTE computes level and path_array from a
// separator-delimited path column, optionally filtered by a root
// prefix ("root/%").
func BuildMaterializedPathCTE(name, table, pathField, separator, rootPrefix string) (Built, error) {
	tbl, err := ir.DoubleWrap(table)
	if err != nil {
		return Built{}, err
	}
	path, err := ir.DoubleWrap(pathField)
	if err != nil {
		return Built{}, err
	}
	sep := ir.SingleWrap(separator)

	body := ir.Seq(ir.S(fmt.Sprintf(
		"SELECT *, length(%s) - length(replace(%s, %s, '')) AS level, string_to_array(%s, %s) AS path_array FROM %s",
		path, path, sep, path, sep, tbl,
	)))
	if rootPrefix != "" {
		body = ir.Seq(body, ir.S(" WHERE "+path+" LIKE "), ir.P(rootPrefix+"%"))
	}
	return BuildPlain(name, body), nil
}

// JoinOn returns the ON condition joining a hierarchical CTE back to its
// source, "<sourceAlias>.<fk> = <cteAlias>.id".
func JoinOn(sourceAlias, fk, cteAlias string) (ir.Frag, error) {
	left, err := qualified(sourceAlias, fk)
	if err != nil {
		return ir.Frag{}, err
	}
	right, err := qualified(cteAlias, "id")
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.Seq(left, ir.S(" = "), right), nil
}

func qualified(alias, col string) (ir.Frag, error) {
	a, err := ir.DoubleWrap(alias)
	if err != nil {
		return ir.Frag{}, err
	}
	c, err := ir.DoubleWrap(col)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.S(a + "." + c), nil
}
