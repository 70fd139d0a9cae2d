package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	auditMocks "invoiceapi/internal/audit/mocks"
	"invoiceapi/internal/model"
	rtMocks "invoiceapi/internal/realtime/mocks"
	repoMocks "invoiceapi/internal/repository/mocks"
	storeMocks "invoiceapi/internal/storage/mocks"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fixture struct {
	txs      *repoMocks.MockTransactionRepository
	invoices *repoMocks.MockInvoiceRepository
	events   *repoMocks.MockInvoiceEventRepository
	store    *storeMocks.MockStorage
	notifier *rtMocks.MockNotifier
	audit    *auditMocks.MockPublisher
}

func newFixture() *fixture {
	return &fixture{
		txs:      new(repoMocks.MockTransactionRepository),
		invoices: new(repoMocks.MockInvoiceRepository),
		events:   new(repoMocks.MockInvoiceEventRepository),
		store:    new(storeMocks.MockStorage),
		notifier: new(rtMocks.MockNotifier),
		audit:    new(auditMocks.MockPublisher),
	}
}

func (f *fixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.txs.AssertExpectations(t)
	f.invoices.AssertExpectations(t)
	f.events.AssertExpectations(t)
	f.store.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func generatedTx(id string) *model.Transaction {
	return &model.Transaction{
		ID:           id,
		Status:       model.StatusGenerated,
		CreatedAt:    fixedNow,
		ExpiresAt:    fixedNow.Add(2 * time.Minute),
		ConnectionID: "conn-" + id,
		RequestID:    "req-" + id,
	}
}

func TestMinInvoiceNumberLength(t *testing.T) {
	validate := MinInvoiceNumberLength(5)

	assert.NoError(t, validate(model.InvoiceFile{InvoiceNumber: "ABC-1"}))
	assert.NoError(t, validate(model.InvoiceFile{InvoiceNumber: "ABC-123"}))
	assert.ErrorIs(t, validate(model.InvoiceFile{InvoiceNumber: "ABCD"}), ErrValidationFailed)
	assert.ErrorIs(t, validate(model.InvoiceFile{}), ErrValidationFailed)

	// Characters, not bytes.
	assert.NoError(t, validate(model.InvoiceFile{InvoiceNumber: "ÁÉÍÓÚ"}))
	assert.ErrorIs(t, MinInvoiceNumberLength(3)(model.InvoiceFile{InvoiceNumber: "ÁÉ"}), ErrValidationFailed)
}
