package ir

import (
	"fmt"
	"strings"
)

// DoubleWrap double-quotes a SQL identifier, the way providers/postgres's
// quoteIdentifier did, except unlike the teacher it rejects an embedded
// quote outright instead of doubling it - an identifier is never user data
// and an embedded quote means something upstream failed to validate.
func DoubleWrap(id string) (string, error) {
	if strings.Contains(id, `"`) {
		return "", fmt.Errorf("invalid identifier %q: embedded double quote", id)
	}
	return `"` + id + `"`, nil
}

// MustDoubleWrap panics on an unsafe identifier. Reserved for call sites
// that have already validated the identifier through the domain model.
func MustDoubleWrap(id string) string {
	wrapped, err := DoubleWrap(id)
	if err != nil {
		panic(err)
	}
	return wrapped
}

// SingleWrap single-quotes a literal string, doubling any embedded single
// quote. Used only for builder-generated constants that must appear inline
// (e.g. a materialized-path CTE's path separator) - never
// for raw user input, which always routes through a Param node instead.
func SingleWrap(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CheckSafePhrase validates an externally-supplied snippet that will be
// inlined into SQL text verbatim (e.g. an ORDER BY direction token). It
// must be non-empty and match [A-Za-z0-9 _]+.
func CheckSafePhrase(s string) error {
	if s == "" {
		return fmt.Errorf("unsafe phrase: empty")
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == ' ' || r == '_':
		default:
			return fmt.Errorf("unsafe phrase %q: contains disallowed character %q", s, r)
		}
	}
	return nil
}
