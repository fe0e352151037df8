package selecto

import "github.com/selecto-sql/selecto/internal/resolve"

// ResolveField resolves a raw field reference string against p's domain,
// exposing internal/resolve's result record and structured errors
// (*resolve.AmbiguityError, *resolve.UnresolvedError, *resolve.ParamError)
// directly to callers that need field_resolution_error detail.
func (p *Plan) ResolveField(ref string) (resolve.Resolved, error) {
	set := resolve.NewSet(p.domain)
	var notice resolve.Notice
	if p.diag != nil {
		notice = p.diag.Deprecation
	}
	return resolve.Resolve(p.domain, set, ref, notice)
}

// AvailableFields lists every resolvable field reference in p's domain.
func (p *Plan) AvailableFields() []string {
	set := resolve.NewSet(p.domain)
	return resolve.AvailableFields(p.domain, set)
}

// FieldSuggestions ranks up to five candidate field references for an
// unresolved prefix, by prefix match then edit distance.
func (p *Plan) FieldSuggestions(prefix string) []string {
	set := resolve.NewSet(p.domain)
	return resolve.Suggest(p.domain, set, prefix)
}
