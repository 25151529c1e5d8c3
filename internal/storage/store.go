// Package storage defines the persistence contract the ledger engine runs
// against: an atomic transaction primitive with row-level exclusive locking,
// plus unlocked reads for queries.
package storage

import (
	"context"

	"github.com/dartanool/user-balance-api/internal/models"
)

// Tx is the view of a store inside one atomic unit. Every lock taken through
// it is held until the surrounding Update returns.
type Tx interface {
	// LockBalance reads userID's balance row under an exclusive lock.
	// found is false when no row exists yet; the caller decides whether
	// that means "create" (credits) or "zero balance" (debits).
	LockBalance(ctx context.Context, userID int64) (balance models.Balance, found bool, err error)

	// SaveBalance writes a balance row back, creating it if absent.
	SaveBalance(ctx context.Context, balance models.Balance) error

	// AppendTransaction adds one immutable record to the transaction log.
	AppendTransaction(ctx context.Context, tran models.Transaction) error
}

// Store is the ledger's persistence backend.
type Store interface {
	// Update runs fn as a single atomic unit. All writes made through the
	// Tx commit together when fn returns nil and are discarded entirely
	// when it returns an error.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Balance reads a balance row without locking it.
	Balance(ctx context.Context, userID int64) (balance models.Balance, found bool, err error)

	// TransactionsByUser lists a user's records, newest first.
	TransactionsByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error)
}

// Directory resolves whether a user identifier names an existing account.
// Accounts are created elsewhere; the ledger only checks existence.
type Directory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}
