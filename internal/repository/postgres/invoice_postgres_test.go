package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoiceapi/internal/model"
)

func TestInvoicePostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewInvoicePostgres(db)
	ctx := context.Background()
	inv := &model.Invoice{
		CustomerName:  "matilde",
		InvoiceNumber: "ABC-123",
		TotalValue:    99.5,
		ProductID:     "p-1",
		Quantity:      2,
		TransactionID: "T1",
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO invoices").
		WithArgs(inv.TransactionID, inv.CustomerName, inv.InvoiceNumber, inv.TotalValue, inv.ProductID, inv.Quantity, inv.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.Create(ctx, inv)
	assert.NoError(t, err)
	assert.True(t, created)

	mock.ExpectExec("INSERT INTO invoices").
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = repo.Create(ctx, inv)
	assert.NoError(t, err)
	assert.False(t, created, "second insert for the same transaction must be a no-op")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceEventPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewInvoiceEventPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	ev := &model.InvoiceEvent{
		PK:           "#invoice_ABC-123",
		SK:           "INVOICE_CREATED#1700000000000",
		EventType:    model.InvoiceCreated,
		CustomerName: "matilde",
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
		Info:         model.InvoiceEventInfo{TransactionID: "T1", ProductID: "p-1", Quantity: 2},
	}

	mock.ExpectExec("INSERT INTO invoice_events").
		WithArgs(ev.PK, ev.SK, "INVOICE_CREATED", ev.CustomerName, ev.CreatedAt, ev.ExpiresAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Create(ctx, ev))

	mock.ExpectExec("DELETE FROM invoice_events WHERE expires_at <= ?").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.DeleteExpired(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
