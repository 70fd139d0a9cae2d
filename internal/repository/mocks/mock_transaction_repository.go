package mocks

import (
	"context"
	"time"

	"invoiceapi/internal/model"
	"invoiceapi/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) Get(ctx context.Context, id string) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, id string, from, to model.Status) (repository.UpdateResult, error) {
	args := m.Called(ctx, id, from, to)
	if fn, ok := args.Get(0).(func(context.Context, string, model.Status, model.Status) repository.UpdateResult); ok {
		return fn(ctx, id, from, to), args.Error(1)
	}
	return args.Get(0).(repository.UpdateResult), args.Error(1)
}

func (m *MockTransactionRepository) ReapExpired(ctx context.Context, now time.Time, limit int) ([]model.Transaction, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Transaction), args.Error(1)
}
