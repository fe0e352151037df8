// Package resolve maps the field-reference strings a caller writes in a
// Select/Filter/OrderBy/GroupBy call ("name", "posts.title",
// "posts[title]", "products:electronics:25.0:true.name") to a typed,
// table-qualified record against a domain.Domain and its planned join
// set. It is grounded on the teacher's internal/types/field.go
// (FieldReference/QualifiedName) and field_registry.go (the
// validFields/validJoins lookup), generalized from a flat global set
// into per-Domain resolution with ambiguity detection and
// edit-distance suggestions, neither of which the teacher implements.
package resolve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/internal/ir"
	"github.com/selecto-sql/selecto/internal/joinbuild"
)

// Resolved is the outcome record spec.md §4.4 names: a field reference
// pinned to exactly one join (or the source, when SourceJoin == "") and
// one column, with its declared type and any parameterized-join
// arguments that were bound while resolving it.
type Resolved struct {
	Name               string
	QualifiedName      string
	SourceJoin         string // "" means the domain source
	TableAlias         string
	Type               domain.ColumnType
	Alias              string
	Parameters         []any
	ParameterSignature string

	// CustomFrag backs a join's synthetic column - a star dimension's
	// "display" or a closure table's "depth"/"descendant_count" - whose
	// SQL isn't a plain "alias"."name" reference (e.g. descendant_count
	// is a correlated COUNT(*) subquery). Nil for an ordinary column.
	CustomFrag *ir.Frag
}

// AmbiguityError reports a simple field name that resolves against more
// than one join (and not the source, which always wins ties).
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("resolve: %q is ambiguous across joins %s", e.Name, strings.Join(e.Candidates, ", "))
}

// UnresolvedError reports a reference that matched nothing, along with
// up to five suggested corrections.
type UnresolvedError struct {
	Ref         string
	Suggestions []string
}

func (e *UnresolvedError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("resolve: %q does not resolve to any field", e.Ref)
	}
	return fmt.Sprintf("resolve: %q does not resolve to any field (did you mean: %s?)", e.Ref, strings.Join(e.Suggestions, ", "))
}

// Notice receives a deprecation message (e.g. legacy bracket notation).
// A nil Notice is a no-op; internal/diagnostics supplies the real sink.
type Notice func(message string)

// Set is the flattened, alias-assigned view of a domain the resolver
// walks: every join in the (possibly nested) domain.Domain.Joins tree,
// keyed by join name, with the table alias it will be emitted under.
type Set struct {
	Source      domain.Schema
	SourceAlias string
	Joins       map[string]domain.JoinSpec
	Aliases     map[string]string // join name -> table alias
}

// NewSet flattens d's (possibly nested) join tree into a Set, assigning
// each join its own name as alias when none was configured - the same
// default the teacher's builder.go uses for unaliased tables.
func NewSet(d domain.Domain) Set {
	s := Set{Source: d.Source, SourceAlias: d.Source.Table, Joins: map[string]domain.JoinSpec{}, Aliases: map[string]string{}}
	var flatten func(map[string]domain.JoinSpec)
	flatten = func(m map[string]domain.JoinSpec) {
		for name, j := range m {
			s.Joins[name] = j
			alias := j.Alias
			if alias == "" {
				alias = name
			}
			s.Aliases[name] = alias
			if len(j.Joins) > 0 {
				flatten(j.Joins)
			}
		}
	}
	flatten(d.Joins)
	return s
}

// schemaOf returns the schema a join targets, by its Table name, looked
// up against the domain's schema map alongside the source.
func (s Set) schemaOf(d domain.Domain, j domain.JoinSpec) (domain.Schema, bool) {
	if j.Table == d.Source.Table {
		return d.Source, true
	}
	for _, sch := range d.Schemas {
		if sch.Table == j.Table {
			return sch, true
		}
	}
	return domain.Schema{}, false
}

// Resolve parses ref and resolves it against d/set, returning a typed
// Resolved record or an *AmbiguityError / *UnresolvedError /
// *ParamError.
func Resolve(d domain.Domain, set Set, ref string, notice Notice) (Resolved, error) {
	form, err := parseRef(ref)
	if err != nil {
		return Resolved{}, err
	}

	if form.Bracket && notice != nil {
		notice(fmt.Sprintf("field reference %q uses deprecated bracket notation; use %q", ref, form.Join+"."+form.Field))
	}

	if j, ok := set.Joins[form.Join]; form.Join != "" && ok && j.Type == domain.JoinParameterized {
		return resolveParameterized(d, set, form)
	}

	switch {
	case form.Join == "" && len(form.Params) == 0:
		return resolveSimple(d, set, form.Field)
	case len(form.Params) > 0:
		return resolveParameterized(d, set, form)
	default:
		return resolveQualified(d, set, form.Join, form.Field)
	}
}

// hierarchicalCTEFields names the synthetic output columns a
// recursive-CTE-backed hierarchical join exposes beyond its source
// table's own schema. internal/cte's BuildHierarchyCTE and
// BuildMaterializedPathCTE compute these as real result-set columns of
// the CTE itself, so (unlike a star dimension's "display" or a closure
// table's "depth") they render as a plain qualified column reference -
// no backing CustomFrag is needed, only recognition that the name is
// valid despite not appearing in the underlying table's Fields.
func hierarchicalCTEFields(j domain.JoinSpec) map[string]domain.ColumnType {
	switch j.Type {
	case domain.JoinHierarchicalAdjacency:
		return map[string]domain.ColumnType{"level": domain.TypeInteger, "path": domain.TypeString, "path_array": domain.TypeArray}
	case domain.JoinHierarchicalMaterialized:
		return map[string]domain.ColumnType{"level": domain.TypeInteger, "path_array": domain.TypeArray}
	default:
		return nil
	}
}

// customColumn resolves field against join j (aliased alias) as either
// a domain-author-declared j.CustomColumns template, a hierarchical
// CTE's synthetic result column, or a joinbuild-exposed custom column
// (star dimension display, closure table depth/descendant count),
// returning the zero value with ok false when field is none of those.
func customColumn(j domain.JoinSpec, alias, field string) (Resolved, bool, error) {
	if tmpl, ok := j.CustomColumns[field]; ok {
		aliasQ, err := ir.DoubleWrap(alias)
		if err != nil {
			return Resolved{}, false, err
		}
		f := ir.S(strings.ReplaceAll(tmpl, "{alias}", aliasQ))
		return Resolved{
			Name:          field,
			QualifiedName: fmt.Sprintf("%s.%s", alias, field),
			TableAlias:    alias,
			Type:          domain.TypeString,
			CustomFrag:    &f,
		}, true, nil
	}
	if t, ok := hierarchicalCTEFields(j)[field]; ok {
		return Resolved{
			Name:          field,
			QualifiedName: fmt.Sprintf("%s.%s", alias, field),
			TableAlias:    alias,
			Type:          t,
		}, true, nil
	}
	frag, ok, err := joinbuild.CustomColumn(j, alias, field)
	if err != nil {
		return Resolved{}, false, err
	}
	if !ok {
		return Resolved{}, false, nil
	}
	f := frag
	return Resolved{
		Name:          field,
		QualifiedName: fmt.Sprintf("%s.%s", alias, field),
		TableAlias:    alias,
		Type:          domain.TypeString,
		CustomFrag:    &f,
	}, true, nil
}

func resolveSimple(d domain.Domain, set Set, name string) (Resolved, error) {
	var candidates []string

	sourceHas := d.Source.HasField(name)

	for joinName := range set.Joins {
		j := set.Joins[joinName]
		if sch, ok := set.schemaOf(d, j); ok && sch.HasField(name) {
			candidates = append(candidates, joinName)
			continue
		}
		if _, ok, _ := customColumn(j, set.Aliases[joinName], name); ok {
			candidates = append(candidates, joinName)
		}
	}

	if sourceHas {
		return Resolved{
			Name:          name,
			QualifiedName: fmt.Sprintf("%s.%s", set.SourceAlias, name),
			SourceJoin:    "",
			TableAlias:    set.SourceAlias,
			Type:          d.Source.Columns[name].Type,
		}, nil
	}

	if len(candidates) == 1 {
		joinName := candidates[0]
		j := set.Joins[joinName]
		alias := set.Aliases[joinName]
		if sch, ok := set.schemaOf(d, j); ok && sch.HasField(name) {
			return Resolved{
				Name:          name,
				QualifiedName: fmt.Sprintf("%s.%s", alias, name),
				SourceJoin:    joinName,
				TableAlias:    alias,
				Type:          sch.Columns[name].Type,
			}, nil
		}
		res, ok, err := customColumn(j, alias, name)
		if err != nil {
			return Resolved{}, err
		}
		if ok {
			res.SourceJoin = joinName
			return res, nil
		}
	}
	if len(candidates) > 1 {
		sort.Strings(candidates)
		return Resolved{}, &AmbiguityError{Name: name, Candidates: candidates}
	}

	return Resolved{}, &UnresolvedError{Ref: name, Suggestions: Suggest(d, set, name)}
}

func resolveQualified(d domain.Domain, set Set, joinName, field string) (Resolved, error) {
	j, ok := set.Joins[joinName]
	if !ok {
		return Resolved{}, &UnresolvedError{Ref: joinName + "." + field, Suggestions: Suggest(d, set, field)}
	}
	alias := set.Aliases[joinName]
	if sch, ok := set.schemaOf(d, j); ok && sch.HasField(field) {
		return Resolved{
			Name:          field,
			QualifiedName: fmt.Sprintf("%s.%s", alias, field),
			SourceJoin:    joinName,
			TableAlias:    alias,
			Type:          sch.Columns[field].Type,
		}, nil
	}
	res, ok, err := customColumn(j, alias, field)
	if err != nil {
		return Resolved{}, err
	}
	if ok {
		res.SourceJoin = joinName
		return res, nil
	}
	return Resolved{}, &UnresolvedError{Ref: joinName + "." + field, Suggestions: Suggest(d, set, field)}
}

// AvailableFields lists every resolvable "field" / "join.field" string
// in d, excluding redacted fields, sorted for stable output.
func AvailableFields(d domain.Domain, set Set) []string {
	var out []string
	for _, f := range d.Source.Fields {
		if d.Source.HasField(f) {
			out = append(out, f)
		}
	}
	for joinName := range set.Joins {
		j := set.Joins[joinName]
		if sch, ok := set.schemaOf(d, j); ok {
			for _, f := range sch.Fields {
				if sch.HasField(f) {
					out = append(out, joinName+"."+f)
				}
			}
		}
		for name := range j.CustomColumns {
			out = append(out, joinName+"."+name)
		}
		for name := range hierarchicalCTEFields(j) {
			out = append(out, joinName+"."+name)
		}
		for _, name := range []string{"display", "depth", "descendant_count"} {
			if _, ok, _ := joinbuild.CustomColumn(j, set.Aliases[joinName], name); ok {
				out = append(out, joinName+"."+name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Suggest ranks up to five candidates for an unresolved simple name by
// prefix match first, then ascending edit distance - spec.md §4.4's
// "simple similarity metric (prefix match then edit distance)".
func Suggest(d domain.Domain, set Set, name string) []string {
	all := AvailableFields(d, set)
	type scored struct {
		field  string
		prefix bool
		dist   int
	}
	var pool []scored
	for _, f := range all {
		bare := f
		if i := strings.LastIndexByte(f, '.'); i >= 0 {
			bare = f[i+1:]
		}
		pool = append(pool, scored{field: f, prefix: strings.HasPrefix(bare, name), dist: levenshtein(bare, name)})
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].prefix != pool[j].prefix {
			return pool[i].prefix
		}
		return pool[i].dist < pool[j].dist
	})
	n := 5
	if len(pool) < n {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, pool[i].field)
	}
	return out
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}
	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[m]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// refForm is the parsed shape of a raw field reference string.
type refForm struct {
	Join    string
	Field   string
	Bracket bool
	Params  []string
}

// parseRef classifies ref into its simple / qualified-dot /
// legacy-bracket / parameterized-join shape.
func parseRef(ref string) (refForm, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return refForm{}, fmt.Errorf("resolve: empty field reference")
	}

	if strings.Contains(ref, "[") {
		open := strings.IndexByte(ref, '[')
		close := strings.IndexByte(ref, ']')
		if close <= open {
			return refForm{}, fmt.Errorf("resolve: malformed bracket reference %q", ref)
		}
		return refForm{Join: ref[:open], Field: ref[open+1 : close], Bracket: true}, nil
	}

	if strings.Contains(ref, ":") {
		segments := strings.Split(ref, ":")
		joinName := segments[0]
		last := segments[len(segments)-1]
		dot := strings.LastIndexByte(last, '.')
		if dot < 0 {
			return refForm{}, fmt.Errorf("resolve: parameterized reference %q missing field after last parameter", ref)
		}
		lastParam := last[:dot]
		field := last[dot+1:]
		params := append(append([]string{}, segments[1:len(segments)-1]...), lastParam)
		return refForm{Join: joinName, Field: field, Params: params}, nil
	}

	if dot := strings.IndexByte(ref, '.'); dot >= 0 {
		return refForm{Join: ref[:dot], Field: ref[dot+1:]}, nil
	}

	return refForm{Field: ref}, nil
}

// ParamError reports a parameterized-join argument binding failure.
type ParamError struct {
	Join   string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("resolve: parameterized join %q: %s", e.Join, e.Reason)
}

func resolveParameterized(d domain.Domain, set Set, form refForm) (Resolved, error) {
	j, ok := set.Joins[form.Join]
	if !ok || j.Type != domain.JoinParameterized {
		return Resolved{}, &ParamError{Join: form.Join, Reason: "not a parameterized join"}
	}

	bound := make([]any, len(j.Parameters))
	sig := make([]string, len(j.Parameters))
	for i, def := range j.Parameters {
		if i < len(form.Params) {
			v, err := parseParamToken(form.Params[i])
			if err != nil {
				return Resolved{}, &ParamError{Join: form.Join, Reason: err.Error()}
			}
			coerced, err := widen(v, def.Type)
			if err != nil {
				return Resolved{}, &ParamError{Join: form.Join, Reason: fmt.Sprintf("parameter %q: %s", def.Name, err.Error())}
			}
			bound[i] = coerced
		} else if def.Required {
			return Resolved{}, &ParamError{Join: form.Join, Reason: fmt.Sprintf("missing required parameter %q", def.Name)}
		} else {
			bound[i] = def.Default
		}
		sig[i] = fmt.Sprintf("%v", bound[i])
	}
	if len(form.Params) > len(j.Parameters) {
		return Resolved{}, &ParamError{Join: form.Join, Reason: "unknown parameter: too many arguments supplied"}
	}

	sch, ok := set.schemaOf(d, j)
	if !ok || !sch.HasField(form.Field) {
		return Resolved{}, &UnresolvedError{Ref: form.Join + ":...." + form.Field, Suggestions: Suggest(d, set, form.Field)}
	}

	return Resolved{
		Name:               form.Field,
		QualifiedName:      fmt.Sprintf("%s.%s", set.Aliases[form.Join], form.Field),
		SourceJoin:         form.Join,
		TableAlias:         set.Aliases[form.Join],
		Type:               sch.Columns[form.Field].Type,
		Parameters:         bound,
		ParameterSignature: strings.Join(sig, ":"),
	}, nil
}

func parseParamToken(tok string) (any, error) {
	switch tok {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if len(tok) >= 2 && (tok[0] == '\'' && tok[len(tok)-1] == '\'' || tok[0] == '"' && tok[len(tok)-1] == '"') {
		quote := tok[0]
		inner := tok[1 : len(tok)-1]
		inner = strings.ReplaceAll(inner, "\\"+string(quote), string(quote))
		return inner, nil
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil && strings.ContainsAny(tok, ".") {
		return f, nil
	}
	return tok, nil
}

// widen applies spec.md §4.4's limited type widening: integer->float,
// integer/string->boolean via 1/0/true/false, string->atom (a bare Go
// string, since this port has no atom type).
func widen(v any, want domain.ColumnType) (any, error) {
	switch want {
	case domain.TypeFloat:
		switch n := v.(type) {
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case domain.TypeBoolean:
		switch n := v.(type) {
		case bool:
			return n, nil
		case int64:
			if n == 1 {
				return true, nil
			}
			if n == 0 {
				return false, nil
			}
		case string:
			if n == "true" {
				return true, nil
			}
			if n == "false" {
				return false, nil
			}
		}
	case domain.TypeInteger:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case domain.TypeString:
		return v, nil
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot widen %v (%T) to %s", v, v, want)
}
