// Package expr defines the tagged Expr and FilterExpr variants threaded
// through a QueryPlan (spec.md §3), and the small constructor helpers a
// caller uses to build them - grounded on the teacher's
// providers/postgres FieldExpression/CaseExpression/CoalesceExpression/
// MathExpression family, generalized from a fixed struct-of-pointers into
// an open, recursively-composable expression tree as spec.md requires
// (CASE branches and COALESCE arguments that are themselves expressions,
// not just field references).
package expr

// Expr is any node of the SELECT-list expression tree.
type Expr interface {
	isExpr()
}

// Field references a user field by its (unresolved) string form: "name",
// "join.field", "join[field]", or a parameterized join reference. The
// field resolver (internal/resolve) turns this into a fully qualified,
// typed reference during planning.
type Field struct {
	Ref   string
	Alias string
}

// Literal is a builder-supplied constant, always emitted through a Param
// node - never inlined as SQL text.
type Literal struct {
	Value any
	Alias string
}

// Func is a generic named SQL function call over zero or more arguments,
// used for members of the function library that don't need a dedicated
// variant (e.g. NULLIF, GREATEST, LEAST).
type Func struct {
	Name  string
	Args  []Expr
	Alias string
}

// AggKind enumerates the aggregate functions.
type AggKind string

const (
	AggCount    AggKind = "COUNT"
	AggCountDistinct AggKind = "COUNT_DISTINCT"
	AggSum      AggKind = "SUM"
	AggAvg      AggKind = "AVG"
	AggMin      AggKind = "MIN"
	AggMax      AggKind = "MAX"
	AggStdDev   AggKind = "STDDEV"
	AggVariance AggKind = "VARIANCE"
	AggArray    AggKind = "ARRAY_AGG"
	AggStringAgg AggKind = "STRING_AGG"
	AggJSONAgg  AggKind = "JSON_AGG"
)

// Aggregate wraps an argument expression (nil for bare COUNT(*)) in an
// aggregate function.
type Aggregate struct {
	Kind  AggKind
	Arg   Expr // nil means "*" (only valid for AggCount)
	Sep   *Literal // STRING_AGG separator
	Alias string
}

// CaseWhen is one WHEN <cond> THEN <result> arm of a Case expression.
type CaseWhen struct {
	Cond   any // a FilterExpr from the sibling package; any to avoid an import cycle
	Result Expr
}

// Case is a SQL CASE expression with an optional ELSE.
type Case struct {
	Whens []CaseWhen
	Else  Expr
	Alias string
}

// Coalesce is COALESCE(args...).
type Coalesce struct {
	Args  []Expr
	Alias string
}

// Extract is EXTRACT(Field FROM Arg).
type Extract struct {
	Field string // year, month, day, dow, epoch, ...
	Arg   Expr
	Alias string
}

// Concat is CONCAT(args...).
type Concat struct {
	Args  []Expr
	Alias string
}

// StringFuncKind enumerates the string function library members.
type StringFuncKind string

const (
	StrSubstr  StringFuncKind = "SUBSTR"
	StrTrim    StringFuncKind = "TRIM"
	StrUpper   StringFuncKind = "UPPER"
	StrLower   StringFuncKind = "LOWER"
	StrLength  StringFuncKind = "LENGTH"
	StrReplace StringFuncKind = "REPLACE"
)

// StringFunc is a call into the string function family.
type StringFunc struct {
	Kind  StringFuncKind
	Arg   Expr
	Extra []Expr // e.g. Replace(arg, from, to); Substr(arg, start, len)
	Alias string
}

// MathFuncKind enumerates the math function library members.
type MathFuncKind string

const (
	MathRound  MathFuncKind = "ROUND"
	MathAbs    MathFuncKind = "ABS"
	MathPower  MathFuncKind = "POWER"
	MathSqrt   MathFuncKind = "SQRT"
	MathRandom MathFuncKind = "RANDOM"
)

// MathFunc is a call into the math function family.
type MathFunc struct {
	Kind  MathFuncKind
	Arg   Expr
	Extra []Expr // e.g. Round(arg, precision); Power(arg, exponent)
	Alias string
}

// DateFuncKind enumerates the date/time function library members.
type DateFuncKind string

const (
	DateTrunc DateFuncKind = "DATE_TRUNC"
	DateAge   DateFuncKind = "AGE"
	DateNow   DateFuncKind = "NOW"
)

// DateFunc is a call into the date/time function family.
type DateFunc struct {
	Kind      DateFuncKind
	Precision string // for DATE_TRUNC: year, month, day, hour, ...
	Arg       Expr
	Extra     []Expr
	Alias     string
}

// Interval is INTERVAL '<n> <unit>' or a literal interval string.
type Interval struct {
	Literal string
	N       int
	Unit    string // day, month, year, hour, ...
	Alias   string
}

// ArrayFuncKind enumerates the array function library members.
type ArrayFuncKind string

const (
	ArrFuncAgg        ArrayFuncKind = "ARRAY_AGG"
	ArrFuncLength     ArrayFuncKind = "ARRAY_LENGTH"
	ArrFuncToString   ArrayFuncKind = "ARRAY_TO_STRING"
	ArrFuncUnnest     ArrayFuncKind = "UNNEST"
)

// ArrayFunc is a call into the array function family.
type ArrayFunc struct {
	Kind  ArrayFuncKind
	Arg   Expr
	Extra []Expr
	Alias string
}

// Iif is a ternary shorthand for CASE WHEN cond THEN then ELSE els END.
type Iif struct {
	Cond  any // FilterExpr
	Then  Expr
	Else  Expr
	Alias string
}

// DecodeCase is one (match, result) pair of a Decode expression.
type DecodeCase struct {
	Match  Expr
	Result Expr
}

// Decode mirrors Oracle-style DECODE(arg, match1, result1, ..., default).
type Decode struct {
	Arg     Expr
	Cases   []DecodeCase
	Default Expr
	Alias   string
}

// CustomSQL is an escape hatch for a caller-supplied SQL template with
// named field placeholders, e.g. "{a} + {b} * 2". FieldMap maps template
// placeholder names to field references. The template text itself is
// never user input - it is a builder-time constant supplied by the
// domain author, who is trusted the same way a Go developer writing raw
// SQL in a hand-written query is trusted. Field placeholders still
// resolve through the field resolver so the emitted identifiers are
// always quoted, never concatenated.
type CustomSQL struct {
	Template string
	FieldMap map[string]string
	Alias    string
}

func (Field) isExpr()      {}
func (Literal) isExpr()    {}
func (Func) isExpr()       {}
func (Aggregate) isExpr()  {}
func (Case) isExpr()       {}
func (Coalesce) isExpr()   {}
func (Extract) isExpr()    {}
func (Concat) isExpr()     {}
func (StringFunc) isExpr() {}
func (MathFunc) isExpr()   {}
func (DateFunc) isExpr()   {}
func (Interval) isExpr()   {}
func (ArrayFunc) isExpr()  {}
func (Iif) isExpr()        {}
func (Decode) isExpr()     {}
func (CustomSQL) isExpr()  {}

// F is the primary constructor for a field reference.
func F(ref string) Field { return Field{Ref: ref} }

// As attaches an output alias to any Expr that carries one, returning a
// new value (Expr values are plain structs, so this is a shallow copy).
func As(e Expr, alias string) Expr {
	switch v := e.(type) {
	case Field:
		v.Alias = alias
		return v
	case Literal:
		v.Alias = alias
		return v
	case Func:
		v.Alias = alias
		return v
	case Aggregate:
		v.Alias = alias
		return v
	case Case:
		v.Alias = alias
		return v
	case Coalesce:
		v.Alias = alias
		return v
	case Extract:
		v.Alias = alias
		return v
	case Concat:
		v.Alias = alias
		return v
	case StringFunc:
		v.Alias = alias
		return v
	case MathFunc:
		v.Alias = alias
		return v
	case DateFunc:
		v.Alias = alias
		return v
	case Interval:
		v.Alias = alias
		return v
	case ArrayFunc:
		v.Alias = alias
		return v
	case Iif:
		v.Alias = alias
		return v
	case Decode:
		v.Alias = alias
		return v
	case CustomSQL:
		v.Alias = alias
		return v
	case Window:
		v.Alias = alias
		return v
	default:
		return e
	}
}

// L builds a literal expression.
func L(v any) Literal { return Literal{Value: v} }

// Count builds COUNT(*).
func Count() Aggregate { return Aggregate{Kind: AggCount} }

// Sum/Avg/Min/Max/CountField/CountDistinct build single-argument
// aggregates over a field reference string.
func Sum(field string) Aggregate  { return Aggregate{Kind: AggSum, Arg: F(field)} }
func Avg(field string) Aggregate  { return Aggregate{Kind: AggAvg, Arg: F(field)} }
func Min(field string) Aggregate  { return Aggregate{Kind: AggMin, Arg: F(field)} }
func Max(field string) Aggregate  { return Aggregate{Kind: AggMax, Arg: F(field)} }
func CountField(field string) Aggregate    { return Aggregate{Kind: AggCount, Arg: F(field)} }
func CountDistinct(field string) Aggregate { return Aggregate{Kind: AggCountDistinct, Arg: F(field)} }
