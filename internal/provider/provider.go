package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "cardauth/internal/errors"
	"cardauth/internal/model"
	"cardauth/internal/repository"
)

// CardProvider is the capability set every card-issuing vendor integration offers.
type CardProvider interface {
	// ID is the provider identifier carried in the X-Provider-Id header.
	ID() string
	// SignatureHeader names the header carrying the webhook signature.
	SignatureHeader() string
	VerifyWebhook(rawBody []byte, signature string) bool
	GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error)
	UpdateCard(ctx context.Context, card *model.Card) error
	// CancelCard reports whether this call moved the card to cancelled.
	CancelCard(ctx context.Context, id uuid.UUID) (bool, error)
}

// New returns the provider registered under name.
func New(name, secret string, cards repository.CardRepository) (CardProvider, error) {
	switch name {
	case "local":
		return NewLocal(secret, cards), nil
	case "anchor":
		return NewAnchor(secret, cards), nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownProvider, name)
	}
}

// mirror keeps card state in the Policy Store; vendors differ only in webhook authentication.
type mirror struct {
	cards repository.CardRepository
}

func (m mirror) GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return m.cards.FindByID(ctx, id)
}

func (m mirror) UpdateCard(ctx context.Context, card *model.Card) error {
	if err := m.cards.Save(ctx, card); err != nil {
		return fmt.Errorf("save card %s: %w", card.ID, err)
	}
	return nil
}

func (m mirror) CancelCard(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.cards.Cancel(ctx, id)
}
