package memory

import "context"

// transactional is implemented by stores whose state the unit of work can
// capture and roll back.
type transactional interface {
	captureState() any
	restoreState(any)
}

type txKey struct{}

// UnitOfWork gives the in-memory stores the same atomicity contract the
// Postgres unit of work provides: on failure every enrolled store is restored
// to its pre-transaction state. Nested calls join the outer scope.
type UnitOfWork struct {
	stores []transactional
}

// NewUnitOfWork enrolls stores in rollback handling. Pass every store a
// mutating use case writes to.
func NewUnitOfWork(stores ...transactional) *UnitOfWork {
	return &UnitOfWork{stores: stores}
}

// WithinTx runs fn, restoring all enrolled stores when it fails.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx, ok := ctx.Value(txKey{}).(bool); ok && inTx {
		return fn(ctx)
	}

	states := make([]any, len(u.stores))
	for i, store := range u.stores {
		states[i] = store.captureState()
	}

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		for i, store := range u.stores {
			store.restoreState(states[i])
		}
		return err
	}
	return nil
}
