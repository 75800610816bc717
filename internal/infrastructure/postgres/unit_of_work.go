package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoTransaction is returned when committing a context that carries no transaction.
var ErrNoTransaction = errors.New("no transaction in context")

type txKey struct{}

// txStarter is the part of *pgxpool.Pool that opens transactions.
type txStarter interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// UnitOfWork implements application.UnitOfWork with pgx transactions.
// a Begin inside an open transaction starts a savepoint, so a nested
// ingest can fail without discarding the writes around it.
type UnitOfWork struct {
	pool txStarter
	opts pgx.TxOptions
}

// NewUnitOfWork returns a UnitOfWork running read committed transactions.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// WithIsolation sets the isolation level of top-level transactions.
func (u *UnitOfWork) WithIsolation(level pgx.TxIsoLevel) *UnitOfWork {
	u.opts.IsoLevel = level
	return u
}

// Begin opens a transaction, or a savepoint when ctx already carries one.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if outer, ok := txFrom(ctx); ok {
		sp, err := outer.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("beginning savepoint: %w", err)
		}
		return context.WithValue(ctx, txKey{}, sp), nil
	}

	tx, err := u.pool.BeginTx(ctx, u.opts)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return context.WithValue(ctx, txKey{}, tx), nil
}

// Commit commits the transaction, or releases the savepoint, stored in ctx.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	tx, ok := txFrom(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction stored in ctx. a closed or missing transaction is a no-op.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	tx, ok := txFrom(ctx)
	if !ok {
		return nil
	}
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// querierFrom returns the transaction carried by ctx, or the pool outside one.
func querierFrom(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return pool
}

// withTx runs fn inside the transaction carried by ctx. without one it opens
// a transaction of its own and commits it when fn succeeds.
func withTx(ctx context.Context, pool txStarter, fn func(pgx.Tx) error) error {
	if tx, ok := txFrom(ctx); ok {
		return fn(tx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
