package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"invoiceapi/internal/model"
	"invoiceapi/internal/repository"
)

const pgErrUniqueViolation = "23505"

const transactionColumns = `id, status, created_at, expires_at, connection_id, request_id, endpoint, upload_expires_in`

// TransactionPostgres is a PostgreSQL implementation of repository.TransactionRepository.
// Status changes are compare-and-swap updates on the current status.
type TransactionPostgres struct {
	db *sql.DB
	// receivedGrace keeps RECEIVED rows past their expiry for this long so an
	// in-flight import can finish before the reaper claims the row.
	receivedGrace time.Duration
}

// NewTransactionPostgres creates a new TransactionPostgres repository.
func NewTransactionPostgres(db *sql.DB, receivedGrace time.Duration) *TransactionPostgres {
	return &TransactionPostgres{db: db, receivedGrace: receivedGrace}
}

var _ repository.TransactionRepository = (*TransactionPostgres)(nil)

// Create inserts a new transaction row.
func (r *TransactionPostgres) Create(ctx context.Context, tx *model.Transaction) error {
	const q = `
		INSERT INTO import_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, q,
		tx.ID,
		string(tx.Status),
		tx.CreatedAt,
		tx.ExpiresAt,
		tx.ConnectionID,
		tx.RequestID,
		tx.Endpoint,
		tx.UploadExpiresIn,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

// Get fetches a single transaction by its ID.
func (r *TransactionPostgres) Get(ctx context.Context, id string) (*model.Transaction, error) {
	const q = `
		SELECT ` + transactionColumns + `
		FROM import_transactions
		WHERE id = $1
	`
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

// UpdateStatus applies from -> to only while the row still holds from.
// A GENERATED row past its expiry can no longer be claimed; it belongs to the reaper.
func (r *TransactionPostgres) UpdateStatus(ctx context.Context, id string, from, to model.Status) (repository.UpdateResult, error) {
	if !model.CanTransition(from, to) {
		return repository.PreconditionNotMet, fmt.Errorf("%w: %s -> %s", repository.ErrIllegalTransition, from, to)
	}
	const q = `
		UPDATE import_transactions
		SET status = $3
		WHERE id = $1 AND status = $2 AND (status <> 'GENERATED' OR expires_at > now())
	`
	res, err := r.db.ExecContext(ctx, q, id, string(from), string(to))
	if err != nil {
		return repository.PreconditionNotMet, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return repository.PreconditionNotMet, err
	}
	if n == 0 {
		return repository.PreconditionNotMet, nil
	}
	return repository.Applied, nil
}

// ReapExpired deletes expired rows and returns their last images.
// Rows locked by a concurrent reaper are skipped.
func (r *TransactionPostgres) ReapExpired(ctx context.Context, now time.Time, limit int) ([]model.Transaction, error) {
	const q = `
		DELETE FROM import_transactions
		WHERE id IN (
			SELECT id FROM import_transactions
			WHERE (status <> 'RECEIVED' AND expires_at <= $1) OR expires_at <= $2
			ORDER BY expires_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + transactionColumns
	rows, err := r.db.QueryContext(ctx, q, now, now.Add(-r.receivedGrace), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		tx     model.Transaction
		status string
	)
	if err := row.Scan(
		&tx.ID,
		&status,
		&tx.CreatedAt,
		&tx.ExpiresAt,
		&tx.ConnectionID,
		&tx.RequestID,
		&tx.Endpoint,
		&tx.UploadExpiresIn,
	); err != nil {
		return nil, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	tx.Status = st
	return &tx, nil
}
