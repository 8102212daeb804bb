package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "cardauth/internal/errors"
	"cardauth/internal/model"
)

// CardRepository defines Policy Store operations on cards.
type CardRepository interface {
	Save(ctx context.Context, card *model.Card) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	// FindByIDForUpdate locks the card row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error)
	// MarkUsed sets last_used_at if it is unset and reports whether this call set it.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// Cancel transitions the card to cancelled and reports whether the status changed.
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	// IncrementSpend adds amount to the total and monthly counters only if neither limit
	// would be exceeded. It returns apperrors.ErrLimitExceeded otherwise.
	IncrementSpend(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Save creates the card or overwrites the stored row.
func (r *cardRepository) Save(ctx context.Context, card *model.Card) error {
	return r.db.WithContext(ctx).Save(card).Error
}

// FindByID finds a card by ID together with its wallet.
func (r *cardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Preload("Wallet").Where("id = ?", id).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

// FindByIDForUpdate finds a card by ID with row-level lock for update.
func (r *cardRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *cardRepository) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ? AND last_used_at IS NULL", id).
		Update("last_used_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("mark card used: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *cardRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ? AND status <> ?", id, model.CardStatusCancelled).
		Update("status", model.CardStatusCancelled)
	if res.Error != nil {
		return false, fmt.Errorf("cancel card: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *cardRepository) IncrementSpend(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ?", id).
		Where("spending_limit IS NULL OR total_spent + ? <= spending_limit", amount).
		Where("monthly_limit IS NULL OR monthly_spent + ? <= monthly_limit", amount).
		Updates(map[string]interface{}{
			"total_spent":   gorm.Expr("total_spent + ?", amount),
			"monthly_spent": gorm.Expr("monthly_spent + ?", amount),
			"last_used_at":  at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return fmt.Errorf("increment spend: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrLimitExceeded
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrCardNotFound
	}
	return err
}
