package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"cardauth/internal/model"
	"cardauth/internal/provider"
	"cardauth/internal/repository"
)

// MockTransactionRepository is a mock implementation of TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *model.CardTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) SumApprovedAmount(ctx context.Context, cardID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, cardID, since)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockTransactionRepository) CountApproved(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	args := m.Called(ctx, cardID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) DistinctMCCHistory(ctx context.Context, cardID uuid.UUID) (map[string]struct{}, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockTransactionRepository) LastGeoTagged(ctx context.Context, cardID uuid.UUID) (*model.CardTransaction, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CardTransaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]model.CardTransaction, error) {
	args := m.Called(ctx, cardID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CardTransaction), args.Error(1)
}

// MockCardRepository is a mock implementation of CardRepository.
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Save(ctx context.Context, card *model.Card) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockCardRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockCardRepository) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockCardRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCardRepository) IncrementSpend(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	args := m.Called(ctx, id, amount, at)
	return args.Error(0)
}

// mockTransactor runs fn against the given mocks without a real transaction.
type mockTransactor struct {
	cards  repository.CardRepository
	ledger repository.TransactionRepository
}

func (t mockTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context, cards repository.CardRepository, ledger repository.TransactionRepository) error) error {
	return fn(ctx, t.cards, t.ledger)
}

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	args := m.Called(ctx, userID, message)
	return args.Error(0)
}

// stubProvider overrides GetCard on a real provider.
type stubProvider struct {
	provider.CardProvider
	getCard func(ctx context.Context, id uuid.UUID) (*model.Card, error)
}

func (p stubProvider) GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return p.getCard(ctx, id)
}
