package expr

// Op enumerates the comparison operators spec.md §4 allows in a filter
// condition, generalizing the teacher's operator.go Operator enum (which
// was tied one-to-one to its AST condition node) into a standalone value
// usable by both Condition and the Subfilter strategies.
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpLike    Op = "like"
	OpILike   Op = "ilike"
	OpIn      Op = "in"
	OpNotIn   Op = "not_in"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
	OpBetween Op = "between"
)

// FilterExpr is any node of the WHERE/HAVING predicate tree.
type FilterExpr interface {
	isFilterExpr()
}

// Condition compares a field reference against a value (or two, for
// Between) using Op.
type Condition struct {
	Field string
	Op    Op
	Value any
	High  any // second bound, only read when Op == OpBetween
}

// And conjoins two or more predicates.
type And struct {
	Terms []FilterExpr
}

// Or disjoins two or more predicates.
type Or struct {
	Terms []FilterExpr
}

// Not negates a predicate.
type Not struct {
	Term FilterExpr
}

// SubfilterStrategy selects how a Subfilter is rendered against its
// related schema (spec.md's subselect correlation strategies).
type SubfilterStrategy string

const (
	SubIn          SubfilterStrategy = "in"
	SubExists      SubfilterStrategy = "exists"
	SubNotExists   SubfilterStrategy = "not_exists"
	SubAggregation SubfilterStrategy = "aggregation"
)

// Subfilter predicates the outer query on a condition evaluated against a
// related (joined or associated) schema - "posts where any comment is
// flagged", etc. Path names the association/join to correlate through;
// Predicate is evaluated in the related schema's field namespace.
type Subfilter struct {
	Path      string
	Predicate FilterExpr
	Strategy  SubfilterStrategy
	// AggField/AggFunc/AggOp/AggValue are only read when Strategy ==
	// SubAggregation, e.g. "posts having COUNT(comments) > 5".
	AggField string
	AggFunc  AggKind
	AggOp    Op
	AggValue any
}

func (Condition) isFilterExpr() {}
func (And) isFilterExpr()       {}
func (Or) isFilterExpr()        {}
func (Not) isFilterExpr()       {}
func (Subfilter) isFilterExpr() {}

// Eq/Neq/Gt/Gte/Lt/Lte/Like/ILike build the common single-value
// comparisons directly from a field reference string.
func Eq(field string, v any) Condition    { return Condition{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v any) Condition   { return Condition{Field: field, Op: OpNeq, Value: v} }
func Gt(field string, v any) Condition    { return Condition{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Condition   { return Condition{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Condition    { return Condition{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Condition   { return Condition{Field: field, Op: OpLte, Value: v} }
func Like(field string, v any) Condition  { return Condition{Field: field, Op: OpLike, Value: v} }
func ILike(field string, v any) Condition { return Condition{Field: field, Op: OpILike, Value: v} }
func In(field string, v any) Condition    { return Condition{Field: field, Op: OpIn, Value: v} }
func NotIn(field string, v any) Condition { return Condition{Field: field, Op: OpNotIn, Value: v} }
func IsNull(field string) Condition       { return Condition{Field: field, Op: OpIsNull} }
func NotNull(field string) Condition      { return Condition{Field: field, Op: OpNotNull} }
func Between(field string, lo, hi any) Condition {
	return Condition{Field: field, Op: OpBetween, Value: lo, High: hi}
}

// All builds an And conjunction.
func All(terms ...FilterExpr) And { return And{Terms: terms} }

// Any builds an Or disjunction.
func Any(terms ...FilterExpr) Or { return Or{Terms: terms} }

// OrderDir is an ORDER BY direction keyword.
type OrderDir string

const (
	Asc  OrderDir = "ASC"
	Desc OrderDir = "DESC"
)

// NullsOrder is an optional ORDER BY NULLS placement.
type NullsOrder string

const (
	NullsUnspecified NullsOrder = ""
	NullsFirst       NullsOrder = "NULLS FIRST"
	NullsLast        NullsOrder = "NULLS LAST"
)

// OrderTerm is one ORDER BY key.
type OrderTerm struct {
	Field string
	Dir   OrderDir
	Nulls NullsOrder
}

// WindowFunc enumerates the supported window functions.
type WindowFunc string

const (
	WinRowNumber  WindowFunc = "ROW_NUMBER"
	WinRank       WindowFunc = "RANK"
	WinDenseRank  WindowFunc = "DENSE_RANK"
	WinNtile      WindowFunc = "NTILE"
	WinLag        WindowFunc = "LAG"
	WinLead       WindowFunc = "LEAD"
	WinFirstValue WindowFunc = "FIRST_VALUE"
	WinLastValue  WindowFunc = "LAST_VALUE"
	WinSum        WindowFunc = "SUM"
	WinAvg        WindowFunc = "AVG"
	WinCount      WindowFunc = "COUNT"
)

// FrameMode is the window frame unit.
type FrameMode string

const (
	FrameRows  FrameMode = "ROWS"
	FrameRange FrameMode = "RANGE"
)

// FrameBound is one end of a window frame.
type FrameBound struct {
	UnboundedPreceding bool
	UnboundedFollowing bool
	CurrentRow         bool
	Offset             int // N in "N PRECEDING"/"N FOLLOWING"
	Preceding          bool
}

// Frame is the ROWS/RANGE BETWEEN clause of a window spec.
type Frame struct {
	Mode  FrameMode
	Start FrameBound
	End   FrameBound
}

// WindowSpec is the OVER (...) clause: partitioning, ordering, and an
// optional explicit frame.
type WindowSpec struct {
	PartitionBy []string
	OrderBy     []OrderTerm
	Frame       *Frame
}

// Window wraps a window function call with its OVER specification and
// its call arguments (e.g. LAG(field, offset)).
type Window struct {
	Func  WindowFunc
	Args  []Expr
	N     int // NTILE bucket count
	Over  WindowSpec
	Alias string
}

func (Window) isExpr() {}
