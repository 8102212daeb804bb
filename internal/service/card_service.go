package service

import (
	"context"

	"github.com/google/uuid"

	"cardauth/internal/model"
	"cardauth/internal/provider"
	"cardauth/internal/repository"
)

const (
	DefaultTransactionPageSize = 50
	MaxTransactionPageSize     = 500
)

// CardService serves the read-only operations view of cards and their ledger.
type CardService interface {
	GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error)
	ListTransactions(ctx context.Context, cardID uuid.UUID, limit int) ([]model.CardTransaction, error)
}

type cardService struct {
	provider provider.CardProvider
	ledger   repository.TransactionRepository
}

// NewCardService creates a new card service.
func NewCardService(cardProvider provider.CardProvider, ledger repository.TransactionRepository) CardService {
	return &cardService{provider: cardProvider, ledger: ledger}
}

// GetCard returns the card with its controls and counters.
func (s *cardService) GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return s.provider.GetCard(ctx, id)
}

// ListTransactions returns the newest ledger rows for a card. The limit is clamped to [1, 500].
func (s *cardService) ListTransactions(ctx context.Context, cardID uuid.UUID, limit int) ([]model.CardTransaction, error) {
	if _, err := s.provider.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultTransactionPageSize
	case limit > MaxTransactionPageSize:
		limit = MaxTransactionPageSize
	}
	return s.ledger.ListByCard(ctx, cardID, limit)
}
