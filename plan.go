// Package selecto turns a declarative domain description plus chained
// builder calls into a parameterized PostgreSQL query. It is the public
// surface wiring internal/resolve, internal/joinplan, internal/clause,
// internal/joinbuild, internal/cte, internal/pivot, internal/subselect,
// and internal/setop together, grounded on the teacher's builder.go
// fluent/accumulated-error Builder: every method short-circuits once an
// error has been recorded and otherwise returns a shallow copy of the
// receiver, so callers may freely branch a plan into several variants
// from a shared prefix.
package selecto

import (
	"github.com/go-playground/validator/v10"

	"github.com/selecto-sql/selecto/domain"
	"github.com/selecto-sql/selecto/expr"
	"github.com/selecto-sql/selecto/internal/clause"
	"github.com/selecto-sql/selecto/internal/diagnostics"
	"github.com/selecto-sql/selecto/internal/pivot"
	"github.com/selecto-sql/selecto/internal/setop"
	"github.com/selecto-sql/selecto/internal/subselect"
)

var optionsValidator = validator.New()

// Options are the recognized configure-time options (spec.md §6);
// unknown options are rejected by construction since this is a typed
// struct rather than an open map. PoolOptions is struct-tag validated
// rather than hand-checked, the way xaas-cloud-genai-toolbox validates
// its tool configs.
type Options struct {
	Validate    bool
	Pool        bool
	PoolOptions map[string]any `validate:"required_if=Pool true"`
	Diagnostics *diagnostics.Sink
}

type pivotInfo struct {
	Target string
	Opts   pivot.Options
}

type setOpInfo struct {
	Op    setop.Op
	All   bool
	Left  *Plan
	Right *Plan
}

// Plan is the immutable query value chained builder calls accumulate
// onto. A Plan carrying a build-time error (domain validation failure,
// bad expression) keeps returning itself unchanged from every builder
// method; callers surface it via Err or at ToSQL/Execute time.
type Plan struct {
	domain   domain.Domain
	executor Executor
	opts     Options
	diag     *diagnostics.Sink

	selected   []expr.Expr
	filtered   []expr.FilterExpr
	orderBy    []expr.OrderTerm
	groupBy    clause.GroupBySpec
	subselects []subselect.Spec
	pivot      *pivotInfo
	setOp      *setOpInfo

	err error
}

// Configure builds the root Plan for domain d, executed through
// executor when Execute is called. When opts.Validate is set, domain.Validate
// runs immediately and any errors are recorded on the plan rather than
// deferred to build time, per spec.md §4.3.
func Configure(d domain.Domain, executor Executor, opts Options) *Plan {
	p := &Plan{domain: d, executor: executor, opts: opts, diag: opts.Diagnostics}
	if err := optionsValidator.Struct(opts); err != nil {
		p.err = &OptionsValidationError{Cause: err}
		return p
	}
	if opts.Validate {
		if errs := domain.Validate(d); len(errs) > 0 {
			p.err = &DomainValidationError{Errors: errs}
		}
	}
	return p
}

// Err returns the first build-time error recorded on the plan, or nil.
func (p *Plan) Err() error { return p.err }

func (p *Plan) clone() *Plan {
	cp := *p
	return &cp
}

// Select appends expressions to the SELECT list.
func (p *Plan) Select(exprs ...expr.Expr) *Plan {
	if p.err != nil {
		return p
	}
	np := p.clone()
	np.selected = append(append([]expr.Expr{}, p.selected...), exprs...)
	return np
}

// Filter appends predicates to the WHERE clause; multiple calls (and
// multiple predicates in one call) conjoin with AND.
func (p *Plan) Filter(filters ...expr.FilterExpr) *Plan {
	if p.err != nil {
		return p
	}
	np := p.clone()
	np.filtered = append(append([]expr.FilterExpr{}, p.filtered...), filters...)
	return np
}

// OrderBy appends ORDER BY terms.
func (p *Plan) OrderBy(terms ...expr.OrderTerm) *Plan {
	if p.err != nil {
		return p
	}
	np := p.clone()
	np.orderBy = append(append([]expr.OrderTerm{}, p.orderBy...), terms...)
	return np
}

// GroupBy sets the GROUP BY field list, optionally as a ROLLUP.
func (p *Plan) GroupBy(fields []string, rollup bool) *Plan {
	if p.err != nil {
		return p
	}
	np := p.clone()
	np.groupBy = clause.GroupBySpec{Fields: fields, Rollup: rollup}
	return np
}

// WindowFunction appends a window-function expression to the SELECT
// list; it is sugar over Select(w) since expr.Window is itself an Expr.
func (p *Plan) WindowFunction(w expr.Window) *Plan {
	return p.Select(w)
}

// Subselect appends correlated scalar subqueries to the SELECT list.
// MainAlias/MainKey are filled in at finalize time against the plan's
// domain source, so callers only need to supply the target-side fields.
func (p *Plan) Subselect(specs ...subselect.Spec) *Plan {
	if p.err != nil {
		return p
	}
	np := p.clone()
	np.subselects = append(append([]subselect.Spec{}, p.subselects...), specs...)
	return np
}

// Pivot rewrites the FROM clause to targetTable, correlating back to
// the plan's original selection per opts.Strategy.
func (p *Plan) Pivot(targetTable string, opts pivot.Options) *Plan {
	if p.err != nil {
		return p
	}
	np := p.clone()
	np.pivot = &pivotInfo{Target: targetTable, Opts: opts}
	return np
}

func setOpPlan(op setop.Op, left, right *Plan, all bool) *Plan {
	if left.err != nil {
		return left
	}
	if right.err != nil {
		return right
	}
	np := &Plan{domain: left.domain, executor: left.executor, opts: left.opts, diag: left.diag}
	np.setOp = &setOpInfo{Op: op, All: all, Left: left, Right: right}
	return np
}

// Union composes p and other with UNION [ALL].
func (p *Plan) Union(other *Plan, all bool) *Plan { return setOpPlan(setop.Union, p, other, all) }

// Intersect composes p and other with INTERSECT [ALL].
func (p *Plan) Intersect(other *Plan, all bool) *Plan {
	return setOpPlan(setop.Intersect, p, other, all)
}

// Except composes p and other with EXCEPT [ALL].
func (p *Plan) Except(other *Plan, all bool) *Plan { return setOpPlan(setop.Except, p, other, all) }
