package mocks

import (
	"context"

	"invoiceapi/internal/audit"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, source, detailType string, detail audit.Detail) {
	m.Called(ctx, source, detailType, detail)
}
