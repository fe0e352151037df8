// Package setop validates schema compatibility between two rendered
// query bodies and composes them with UNION/INTERSECT/EXCEPT, grounded
// on spec.md §4.10 and the teacher's operator.go pattern of a closed
// enum (Op) dispatched through a single switch rather than string
// comparisons scattered across callers.
package setop

import (
	"fmt"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/internal/ir"
)

// Op enumerates the supported set operations.
type Op string

const (
	Union     Op = "union"
	Intersect Op = "intersect"
	Except    Op = "except"
)

// Column is one output column of a side of a set operation, as declared
// by the composer (name + resolved type).
type Column struct {
	Name string
	Type domain.ColumnType
}

const (
	ErrColumnCountMismatch = "column_count_mismatch"
	ErrTypeMismatch        = "type_mismatch"
	ErrEmptySelection      = "empty_selection"
)

// SchemaError reports a set-operation compatibility failure.
type SchemaError struct {
	ErrKind string
	Detail  string
}

func (e *SchemaError) Error() string { return fmt.Sprintf("setop: %s: %s", e.ErrKind, e.Detail) }
func (e *SchemaError) Kind() string  { return e.ErrKind }

var compatGroups = [][]domain.ColumnType{
	{domain.TypeInteger},
	{domain.TypeFloat, "decimal", "numeric"},
	{domain.TypeString, "text"},
	{domain.TypeBoolean},
	{domain.TypeDate},
	{domain.TypeDateTime, "timestamp", "timestamptz"},
}

func compatible(a, b domain.ColumnType) bool {
	if a == b {
		return true
	}
	for _, g := range compatGroups {
		inA, inB := false, false
		for _, t := range g {
			if t == a {
				inA = true
			}
			if t == b {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// Validate checks that left and right have the same column count and
// pairwise-compatible types, per spec.md's compatibility table.
func Validate(left, right []Column) error {
	if len(left) == 0 || len(right) == 0 {
		return &SchemaError{ErrKind: ErrEmptySelection, Detail: "both sides of a set operation must select at least one column"}
	}
	if len(left) != len(right) {
		return &SchemaError{ErrKind: ErrColumnCountMismatch, Detail: fmt.Sprintf("left has %d columns, right has %d", len(left), len(right))}
	}
	for i := range left {
		if !compatible(left[i].Type, right[i].Type) {
			return &SchemaError{ErrKind: ErrTypeMismatch, Detail: fmt.Sprintf("column %d: %s is not compatible with %s", i, left[i].Type, right[i].Type)}
		}
	}
	return nil
}

// Spec describes one set operation between two already-rendered query
// bodies.
type Spec struct {
	Op    Op
	All   bool
	Left  Side
	Right Side
}

// Side pairs a rendered query body with its declared output columns.
type Side struct {
	Body    ir.Frag
	Columns []Column
}

func keyword(op Op, all bool) (string, error) {
	switch op {
	case Union:
		if all {
			return "UNION ALL", nil
		}
		return "UNION", nil
	case Intersect:
		if all {
			return "INTERSECT ALL", nil
		}
		return "INTERSECT", nil
	case Except:
		if all {
			return "EXCEPT ALL", nil
		}
		return "EXCEPT", nil
	default:
		return "", fmt.Errorf("setop: unsupported operation %q", op)
	}
}

// Compose validates the two sides' schemas and, if compatible, renders
// `left KEYWORD right`.
func Compose(s Spec) (ir.Frag, error) {
	if err := Validate(s.Left.Columns, s.Right.Columns); err != nil {
		return ir.Frag{}, err
	}
	kw, err := keyword(s.Op, s.All)
	if err != nil {
		return ir.Frag{}, err
	}
	return ir.Seq(s.Left.Body, ir.S(" "+kw+" "), s.Right.Body), nil
}

// OrderByPosition renders an outer ORDER BY over a set operation's
// result, referencing column positions (1-indexed) as SQL requires
// since neither side's table alias is visible to the outer clause.
func OrderByPosition(positions []int, desc []bool) (ir.Frag, error) {
	if len(positions) == 0 {
		return ir.Frag{}, nil
	}
	parts := make([]ir.Frag, 0, len(positions))
	for i, p := range positions {
		if p < 1 {
			return ir.Frag{}, fmt.Errorf("setop: order by position must be >= 1, got %d", p)
		}
		dir := "ASC"
		if i < len(desc) && desc[i] {
			dir = "DESC"
		}
		parts = append(parts, ir.S(fmt.Sprintf("%d %s", p, dir)))
	}
	return ir.Seq(ir.S("ORDER BY "), ir.Join(", ", parts...)), nil
}
