package application

import "context"

// UnitOfWork defines a transaction boundary for use cases.
// implementations live in infrastructure, application only sees this interface.
type UnitOfWork interface {
	// Begin starts a new transaction and returns a context scoped to it.
	// repositories that receive this context participate in the transaction.
	Begin(ctx context.Context) (context.Context, error)

	// Commit commits the current transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the current transaction.
	// safe to call multiple times or after commit (will be a no-op).
	Rollback(ctx context.Context) error
}

// RunInTransaction executes fn within a transaction.
// commits on success, rolls back on error.
func RunInTransaction(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	// always try to rollback on exit - it's a no-op if already committed
	defer uow.Rollback(txCtx)

	if err := fn(txCtx); err != nil {
		return err
	}

	return uow.Commit(txCtx)
}
