package repository

import (
	"context"
	"time"

	"invoiceapi/internal/model"
)

// TransactionRepository is the Transaction Store: keyed access to import transactions
// with conditional status updates. Concurrent resolvers coordinate only through UpdateStatus.
type TransactionRepository interface {
	// Create inserts a new transaction. Returns ErrDuplicateKey if the ID is taken.
	Create(ctx context.Context, tx *model.Transaction) error

	// Get returns a transaction by ID or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Transaction, error)

	// UpdateStatus moves the transaction from -> to only if it still exists with status from.
	// A lost race is reported as PreconditionNotMet, never as an error.
	UpdateStatus(ctx context.Context, id string, from, to model.Status) (UpdateResult, error)

	// ReapExpired deletes up to limit transactions whose expiry is at or before now
	// and returns their pre-deletion images.
	ReapExpired(ctx context.Context, now time.Time, limit int) ([]model.Transaction, error)
}
