package mocks

import (
	"context"

	"invoiceapi/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, connectionID string, payload any) bool {
	args := m.Called(ctx, connectionID, payload)
	return args.Bool(0)
}

func (m *MockNotifier) SendStatus(ctx context.Context, transactionID, connectionID string, status model.Status) bool {
	args := m.Called(ctx, transactionID, connectionID, status)
	return args.Bool(0)
}

func (m *MockNotifier) Terminate(ctx context.Context, connectionID string) bool {
	args := m.Called(ctx, connectionID)
	return args.Bool(0)
}
