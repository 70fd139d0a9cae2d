package repository

import (
	"context"
	"time"

	"invoiceapi/internal/model"
)

// InvoiceRepository persists committed invoices.
type InvoiceRepository interface {
	// Create stores the invoice. It reports false when an invoice for the same
	// transaction already exists; the stored record is left untouched.
	Create(ctx context.Context, inv *model.Invoice) (bool, error)
}

// InvoiceEventRepository persists the expiring invoice event log.
type InvoiceEventRepository interface {
	Create(ctx context.Context, ev *model.InvoiceEvent) error

	// DeleteExpired removes entries whose expiry is at or before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
