// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces, the pgx implementation lives in
// infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
//
// Number allocation and document persistence run in separate transactions:
// the allocator commits its counter before the document transaction begins,
// so a rolled back document never returns its number to the pool.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
// Used by previews and listings that must not take row locks.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// IndependentManager can run fn in a transaction that commits on its own,
// regardless of any transaction already carried by ctx.
type IndependentManager interface {
	Manager

	RunInNewTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
