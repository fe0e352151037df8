package selecto

import "context"

// Rows is the external result of a successful Execute: the raw column
// values plus the column/alias metadata needed to map them back onto
// the SELECT list spec.md §6 describes.
type Rows struct {
	Columns []string
	Aliases map[string]string
	Data    [][]any
}

// Executor is the external, I/O-performing capability the core hands
// its finalized (sql, params) to. Connection pooling, prepared-statement
// caching, timeouts, cancellation, and retry are entirely the
// Executor's concern (spec.md §5); the core never inspects opts.
type Executor interface {
	Validate(ctx context.Context, connRef string) error
	Execute(ctx context.Context, sql string, params []any, opts map[string]any) (Rows, error)
}

// ToSQL finalizes p into its SQL text and ordered parameter vector
// without touching the Executor.
func (p *Plan) ToSQL() (string, []any, error) {
	if p.err != nil {
		return "", nil, p.err
	}
	res, _, err := build(p)
	if err != nil {
		return "", nil, err
	}
	return res.SQL, res.Params, nil
}

// GenSQL finalizes p into its SQL text, ordered parameter vector, and
// the SELECT-list alias map (output column -> plan-assigned alias).
func (p *Plan) GenSQL() (sql string, params []any, aliases map[string]string, err error) {
	if p.err != nil {
		return "", nil, nil, p.err
	}
	res, aliases, err := build(p)
	if err != nil {
		return "", nil, nil, err
	}
	return res.SQL, res.Params, aliases, nil
}

// Execute finalizes p and runs it through the configured Executor.
func (p *Plan) Execute(ctx context.Context, opts map[string]any) (Rows, error) {
	if p.err != nil {
		return Rows{}, p.err
	}
	sql, params, aliases, err := p.GenSQL()
	if err != nil {
		return Rows{}, err
	}
	rows, err := p.executor.Execute(ctx, sql, params, opts)
	if err != nil {
		return Rows{}, &ExecutionError{SQL: sql, Params: params, Cause: err}
	}
	rows.Aliases = aliases
	return rows, nil
}

// MustExecute is Execute's panicking form, for callers that have
// already decided a failure here is unrecoverable.
func (p *Plan) MustExecute(ctx context.Context, opts map[string]any) Rows {
	rows, err := p.Execute(ctx, opts)
	if err != nil {
		panic(err)
	}
	return rows
}

// ExecuteOne runs p and requires exactly one result row, returning
// NoResultsError or MultipleResultsError otherwise.
func (p *Plan) ExecuteOne(ctx context.Context, opts map[string]any) ([]any, error) {
	rows, err := p.Execute(ctx, opts)
	if err != nil {
		return nil, err
	}
	switch len(rows.Data) {
	case 0:
		return nil, &NoResultsError{}
	case 1:
		return rows.Data[0], nil
	default:
		return nil, &MultipleResultsError{Count: len(rows.Data)}
	}
}

// MustExecuteOne is ExecuteOne's panicking form.
func (p *Plan) MustExecuteOne(ctx context.Context, opts map[string]any) []any {
	row, err := p.ExecuteOne(ctx, opts)
	if err != nil {
		panic(err)
	}
	return row
}
