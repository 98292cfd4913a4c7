package services_test

import (
	"context"
	"time"

	"receiptwise_go_backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockUsageStore struct {
	mock.Mock
}

func (m *MockUsageStore) GetUsage(ctx context.Context, userID string) (*models.UserUsage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserUsage), args.Error(1)
}

func (m *MockUsageStore) RecordUsage(ctx context.Context, userID string, now time.Time) error {
	args := m.Called(ctx, userID, now)
	return args.Error(0)
}

func (m *MockUsageStore) SetSubscription(ctx context.Context, userID, status string, expiresAt *time.Time) error {
	args := m.Called(ctx, userID, status, expiresAt)
	return args.Error(0)
}

func (m *MockUsageStore) LogError(ctx context.Context, userID, endpoint, message string, elapsed time.Duration) {
	m.Called(ctx, userID, endpoint, message, elapsed)
}

type MockModelGateway struct {
	mock.Mock
}

func (m *MockModelGateway) ExtractReceipt(ctx context.Context, text string) (*models.Receipt, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}

func (m *MockModelGateway) AnswerQuestion(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}
