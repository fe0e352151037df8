// Package pgxexec is the reference Executor (spec.md §5/§6): it is the
// only component in this module that performs I/O. Connection pooling,
// prepared-statement caching, and query execution are all delegated to
// pgx/v5's pgxpool.Pool, the same driver the teacher already depends on
// and exercises in its own integration tests (testing/integration).
package pgxexec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/selecto-sql/selecto"
)

// Executor runs finalized (sql, params) against a pgxpool.Pool. Pool
// identity is a content hash of the connection config rather than the
// DSN itself, so two Executors opened against equivalent configs report
// the same PoolKey without ever logging the DSN (which may carry
// credentials).
type Executor struct {
	pool    *pgxpool.Pool
	PoolKey string

	// InstanceID distinguishes Executors built against equivalent pool
	// configs (same PoolKey) in logs and metrics - e.g. one per replica
	// in a StartPool fan-out.
	InstanceID string
}

// New wraps an already-constructed pool. Callers are expected to build
// the pool themselves (pgxpool.New(ctx, dsn)) so they retain control of
// its lifecycle; Executor never closes it. connString is hashed into
// PoolKey, never retained or logged as-is.
func New(pool *pgxpool.Pool, connString string) *Executor {
	return &Executor{pool: pool, PoolKey: poolKey(connString), InstanceID: uuid.NewString()}
}

func poolKey(connString string) string {
	sum := sha256.Sum256([]byte(connString))
	return hex.EncodeToString(sum[:])
}

// StartPool opens one Executor per conn string and validates all of them
// concurrently, returning on the first failure (errgroup's fail-fast
// behavior) rather than serially pinging each replica in turn.
func StartPool(ctx context.Context, connStrings []string) ([]*Executor, error) {
	execs := make([]*Executor, len(connStrings))
	g, gctx := errgroup.WithContext(ctx)
	for i, dsn := range connStrings {
		i, dsn := i, dsn
		g.Go(func() error {
			pool, err := pgxpool.New(gctx, dsn)
			if err != nil {
				return fmt.Errorf("pgxexec: opening pool %d: %w", i, err)
			}
			e := New(pool, dsn)
			if err := e.Validate(gctx, ""); err != nil {
				pool.Close()
				return fmt.Errorf("pgxexec: validating pool %d: %w", i, err)
			}
			execs[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return execs, nil
}

// Validate pings the pool; connRef is accepted for interface symmetry
// with capabilities that multiplex several connection refs, but this
// Executor always validates its one configured pool.
func (e *Executor) Validate(ctx context.Context, connRef string) error {
	return e.pool.Ping(ctx)
}

// Execute runs sql with params through the pool and drains every row
// into selecto.Rows. pgx/v5 already caches prepared statement
// descriptions per-connection by SQL text (QueryExecModeCacheStatement,
// the pool's default), so no separate statement cache is layered on
// top here - see DESIGN.md for why a hand-rolled cache would just
// duplicate that.
func (e *Executor) Execute(ctx context.Context, sql string, params []any, opts map[string]any) (selecto.Rows, error) {
	rows, err := e.pool.Query(ctx, sql, params...)
	if err != nil {
		return selecto.Rows{}, fmt.Errorf("pgxexec: query failed: %w", err)
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	columns := make([]string, len(descs))
	for i, d := range descs {
		columns[i] = string(d.Name)
	}

	var data [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return selecto.Rows{}, fmt.Errorf("pgxexec: reading row: %w", err)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return selecto.Rows{}, fmt.Errorf("pgxexec: row iteration failed: %w", err)
	}

	return selecto.Rows{Columns: columns, Data: data}, nil
}

var _ selecto.Executor = (*Executor)(nil)
