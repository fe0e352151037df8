package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Result is the output of a finalize pass: the rendered SQL text and the
// ordered parameter vector collected during the depth-first walk.
type Result struct {
	SQL    string
	Params []any
}

// CteResult is the standalone rendering of a single CTE, numbered from $1
// as if it were finalized on its own.
type CteResult struct {
	Name      string
	Recursive bool
	Result
}

// Finalize walks the fragment tree left-to-right, depth-first, replacing
// each Param node with a monotonically increasing $k placeholder and
// appending its value to the parameter vector in traversal order. CTE
// markers are rendered inline as "name AS (...)". Parameters come out in
// tree order, so a WITH preamble placed before the main query body (as
// the root package's prependWithClause does) has its parameters precede
// the main query's parameters in the combined output, satisfying the
// CTE-params-precede-main-params invariant without any special-casing
// here.
func Finalize(f Frag) Result {
	var b strings.Builder
	var params []any
	n := 0
	renderInto(f, &b, &params, &n)
	return Result{SQL: b.String(), Params: params}
}

// FinalizeWithCTEs produces the combined rendering (identical to Finalize)
// plus a standalone rendering of every CteMarker found anywhere in the
// tree's nested Seqs (not inside another CTE's body), each renumbered
// from $1 as an independent statement.
func FinalizeWithCTEs(f Frag) (Result, []CteResult) {
	combined := Finalize(f)

	var ctes []CteResult
	var walk func(Frag)
	walk = func(node Frag) {
		switch node.Kind {
		case KindCte:
			ctes = append(ctes, CteResult{
				Name:      node.CteName,
				Recursive: node.Recursive,
				Result:    Finalize(*node.CteBody),
			})
		case KindSeq:
			for _, c := range node.Children {
				walk(c)
			}
		}
	}
	walk(f)

	return combined, ctes
}

func renderInto(f Frag, b *strings.Builder, params *[]any, n *int) {
	switch f.Kind {
	case KindStatic:
		b.WriteString(f.Static)
	case KindParam:
		*n++
		*params = append(*params, f.Param)
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(*n))
	case KindSeq:
		for _, c := range f.Children {
			renderInto(c, b, params, n)
		}
	case KindCte:
		b.WriteString(f.CteName)
		b.WriteString(" AS (")
		if f.CteBody != nil {
			renderInto(*f.CteBody, b, params, n)
		}
		b.WriteString(")")
	default:
		panic(fmt.Sprintf("ir: malformed fragment: unknown kind %d", f.Kind))
	}
}

// RenderScalar renders a builder-generated constant (never user input)
// directly into SQL text without going through a parameter placeholder.
func RenderScalar(v any) Frag {
	switch val := v.(type) {
	case string:
		return S(val)
	case int:
		return S(strconv.Itoa(val))
	case int64:
		return S(strconv.FormatInt(val, 10))
	case float64:
		return S(strconv.FormatFloat(val, 'g', -1, 64))
	case bool:
		if val {
			return S("TRUE")
		}
		return S("FALSE")
	default:
		return S(fmt.Sprintf("%v", val))
	}
}
