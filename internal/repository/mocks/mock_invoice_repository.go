package mocks

import (
	"context"
	"time"

	"invoiceapi/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *model.Invoice) (bool, error) {
	args := m.Called(ctx, inv)
	return args.Bool(0), args.Error(1)
}

type MockInvoiceEventRepository struct {
	mock.Mock
}

func (m *MockInvoiceEventRepository) Create(ctx context.Context, ev *model.InvoiceEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockInvoiceEventRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
