package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"invoiceapi/internal/model"
	"invoiceapi/internal/repository"
)

// InvoicePostgres is a PostgreSQL implementation of repository.InvoiceRepository.
type InvoicePostgres struct {
	db *sql.DB
}

// NewInvoicePostgres creates a new InvoicePostgres repository.
func NewInvoicePostgres(db *sql.DB) *InvoicePostgres {
	return &InvoicePostgres{db: db}
}

var _ repository.InvoiceRepository = (*InvoicePostgres)(nil)

// Create inserts the invoice once per transaction; a repeated insert is a no-op.
func (r *InvoicePostgres) Create(ctx context.Context, inv *model.Invoice) (bool, error) {
	const q = `
		INSERT INTO invoices (transaction_id, customer_name, invoice_number, total_value, product_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, q,
		inv.TransactionID,
		inv.CustomerName,
		inv.InvoiceNumber,
		inv.TotalValue,
		inv.ProductID,
		inv.Quantity,
		inv.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InvoiceEventPostgres is a PostgreSQL implementation of repository.InvoiceEventRepository.
type InvoiceEventPostgres struct {
	db *sql.DB
}

// NewInvoiceEventPostgres creates a new InvoiceEventPostgres repository.
func NewInvoiceEventPostgres(db *sql.DB) *InvoiceEventPostgres {
	return &InvoiceEventPostgres{db: db}
}

var _ repository.InvoiceEventRepository = (*InvoiceEventPostgres)(nil)

func (r *InvoiceEventPostgres) Create(ctx context.Context, ev *model.InvoiceEvent) error {
	info, err := json.Marshal(ev.Info)
	if err != nil {
		return fmt.Errorf("encode event info: %w", err)
	}
	const q = `
		INSERT INTO invoice_events (pk, sk, event_type, customer_name, created_at, expires_at, info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pk, sk) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, q,
		ev.PK,
		ev.SK,
		string(ev.EventType),
		ev.CustomerName,
		ev.CreatedAt,
		ev.ExpiresAt,
		info,
	)
	return err
}

func (r *InvoiceEventPostgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM invoice_events WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
