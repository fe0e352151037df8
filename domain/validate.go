package domain

import "fmt"

// ErrorKind discriminates the structured validation error kinds from
// spec.md §4.3. Callers should switch on Kind rather than matching error
// text, the way the teacher's render.UnsupportedFeatureError is meant to
// be inspected by its Feature field rather than by message.
type ErrorKind string

const (
	ErrMissingRequiredKeys     ErrorKind = "missing_required_keys"
	ErrSchemaMissingKeys       ErrorKind = "schema_missing_keys"
	ErrAssociationInvalidQueryable ErrorKind = "association_invalid_queryable"
	ErrJoinMissingAssociation  ErrorKind = "join_missing_association"
	ErrJoinCycleDetected       ErrorKind = "join_cycle_detected"
	ErrAdvancedJoinMissingKey  ErrorKind = "advanced_join_missing_key"
)

// ValidationError is one structured domain validation failure.
type ValidationError struct {
	Kind    ErrorKind
	Subject string // schema name, join name, or association field
	Detail  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Subject, e.Detail)
}

// Validate runs every check in spec.md §4.3 and returns the complete list
// of structured errors (not just the first), so a caller (or a UI) can
// report every problem in one pass.
func Validate(d Domain) []ValidationError {
	var errs []ValidationError

	if d.Source.Table == "" {
		errs = append(errs, ValidationError{Kind: ErrMissingRequiredKeys, Subject: "source", Detail: "domain lacks a source table"})
	}
	if d.Schemas == nil {
		errs = append(errs, ValidationError{Kind: ErrMissingRequiredKeys, Subject: "schemas", Detail: "domain lacks a schemas map"})
	}
	if d.Joins == nil {
		d.Joins = map[string]JoinSpec{}
	}

	for name, s := range d.Schemas {
		errs = append(errs, validateSchemaShape(name, s)...)
	}
	errs = append(errs, validateSchemaShape("source", d.Source)...)

	for _, s := range append([]Schema{d.Source}, valuesOf(d.Schemas)...) {
		for field, assoc := range s.Associations {
			if _, ok := d.Schemas[assoc.Queryable]; !ok && assoc.Queryable != "" {
				errs = append(errs, ValidationError{
					Kind:    ErrAssociationInvalidQueryable,
					Subject: field,
					Detail:  fmt.Sprintf("association %q points at unknown schema %q", field, assoc.Queryable),
				})
			}
		}
	}

	errs = append(errs, validateJoins(d, d.Joins, "")...)
	errs = append(errs, detectCycles(d.Joins)...)

	return errs
}

func valuesOf(m map[string]Schema) []Schema {
	out := make([]Schema, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func validateSchemaShape(name string, s Schema) []ValidationError {
	var errs []ValidationError
	if s.PrimaryKey == "" {
		errs = append(errs, ValidationError{Kind: ErrSchemaMissingKeys, Subject: name, Detail: "missing primary_key"})
	}
	if len(s.Fields) == 0 && len(s.Columns) == 0 {
		errs = append(errs, ValidationError{Kind: ErrSchemaMissingKeys, Subject: name, Detail: "missing fields"})
	}
	if s.Columns == nil {
		errs = append(errs, ValidationError{Kind: ErrSchemaMissingKeys, Subject: name, Detail: "missing columns"})
	}
	return errs
}

// validateJoins walks the (possibly nested) join maps, checking that each
// join corresponds to a real association on its owning schema and that
// advanced join types carry their required type-specific fields.
func validateJoins(d Domain, joins map[string]JoinSpec, owner string) []ValidationError {
	var errs []ValidationError
	ownerSchema := d.Source
	if owner != "" {
		if s, ok := d.Schemas[owner]; ok {
			ownerSchema = s
		}
	}

	for name, j := range joins {
		if _, ok := ownerSchema.Associations[name]; !ok {
			errs = append(errs, ValidationError{
				Kind:    ErrJoinMissingAssociation,
				Subject: name,
				Detail:  fmt.Sprintf("join %q has no association on %q", name, ownerSchema.Table),
			})
		}
		errs = append(errs, validateAdvancedJoin(name, j)...)
		if len(j.Joins) > 0 {
			errs = append(errs, validateJoins(d, j.Joins, name)...)
		}
	}
	return errs
}

func validateAdvancedJoin(name string, j JoinSpec) []ValidationError {
	var errs []ValidationError
	missing := func(detail string) {
		errs = append(errs, ValidationError{Kind: ErrAdvancedJoinMissingKey, Subject: name, Detail: detail})
	}

	switch j.Type {
	case JoinStarDimension:
		if j.DisplayField == "" {
			missing("star_dimension requires display_field")
		}
	case JoinSnowflakeDimension:
		if len(j.NormalizationJoins) == 0 {
			missing("snowflake_dimension requires non-empty normalization_joins")
		}
	case JoinLateral:
		if j.LateralQuery == "" {
			missing("lateral_join requires lateral_query")
		}
	case JoinConditional:
		if len(j.Conditions) == 0 {
			missing("conditional_join requires conditions")
		}
	case JoinHierarchicalClosure:
		if j.Hierarchical.ClosureTable == "" || j.Hierarchical.AncestorField == "" || j.Hierarchical.DescendantField == "" {
			missing("hierarchical/closure_table requires closure_table, ancestor_field, descendant_field")
		}
	case JoinParameterized:
		if len(j.Parameters) == 0 {
			missing("parameterized requires a parameters list with names/types")
		}
	}
	return errs
}

// detectCycles performs a depth-first walk of join -> requires_join
// (including nested join maps flattened by name) and reports a cycle for
// any join that revisits a join on its active path.
func detectCycles(joins map[string]JoinSpec) []ValidationError {
	flat := map[string]JoinSpec{}
	var flatten func(map[string]JoinSpec)
	flatten = func(m map[string]JoinSpec) {
		for name, j := range m {
			flat[name] = j
			if len(j.Joins) > 0 {
				flatten(j.Joins)
			}
		}
	}
	flatten(joins)

	var errs []ValidationError
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}

	var visit func(name string) bool
	visit = func(name string) bool {
		if color[name] == gray {
			return true
		}
		if color[name] == black {
			return false
		}
		color[name] = gray
		j, ok := flat[name]
		if ok && j.RequiresJoin != "" && j.RequiresJoin != RootJoinName {
			if visit(j.RequiresJoin) {
				errs = append(errs, ValidationError{
					Kind:    ErrJoinCycleDetected,
					Subject: name,
					Detail:  fmt.Sprintf("join %q participates in a requires_join cycle", name),
				})
				color[name] = black
				return true
			}
		}
		color[name] = black
		return false
	}

	for name := range flat {
		if color[name] == white {
			visit(name)
		}
	}
	return errs
}
