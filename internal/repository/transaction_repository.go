package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cardauth/internal/model"
)

// TransactionRepository defines Transaction Ledger operations. The ledger is append-only.
type TransactionRepository interface {
	Create(ctx context.Context, txn *model.CardTransaction) error
	SumApprovedAmount(ctx context.Context, cardID uuid.UUID, since time.Time) (decimal.Decimal, error)
	CountApproved(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error)
	DistinctMCCHistory(ctx context.Context, cardID uuid.UUID) (map[string]struct{}, error)
	// LastGeoTagged returns nil when the card has no geo-tagged approved transaction.
	LastGeoTagged(ctx context.Context, cardID uuid.UUID) (*model.CardTransaction, error)
	ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]model.CardTransaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new ledger repository.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Create appends a ledger row.
func (r *transactionRepository) Create(ctx context.Context, txn *model.CardTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepository) approved(ctx context.Context, cardID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.CardTransaction{}).
		Where("card_id = ? AND status = ?", cardID, model.TransactionStatusApproved)
}

// SumApprovedAmount totals approved amounts dated at or after since.
func (r *transactionRepository) SumApprovedAmount(ctx context.Context, cardID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var result struct {
		Total decimal.NullDecimal
	}
	if err := r.approved(ctx, cardID).
		Select("SUM(amount) AS total").
		Where("transaction_date >= ?", since).
		Scan(&result).Error; err != nil {
		return decimal.Zero, fmt.Errorf("sum approved amount: %w", err)
	}
	if !result.Total.Valid {
		return decimal.Zero, nil
	}
	return result.Total.Decimal, nil
}

// CountApproved counts approved transactions dated at or after since.
func (r *transactionRepository) CountApproved(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	if err := r.approved(ctx, cardID).
		Where("transaction_date >= ?", since).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count approved: %w", err)
	}
	return count, nil
}

// DistinctMCCHistory returns every MCC the card has been approved at.
func (r *transactionRepository) DistinctMCCHistory(ctx context.Context, cardID uuid.UUID) (map[string]struct{}, error) {
	var mccs []string
	if err := r.approved(ctx, cardID).Distinct().Pluck("mcc", &mccs).Error; err != nil {
		return nil, fmt.Errorf("mcc history: %w", err)
	}
	history := make(map[string]struct{}, len(mccs))
	for _, mcc := range mccs {
		history[mcc] = struct{}{}
	}
	return history, nil
}

func (r *transactionRepository) LastGeoTagged(ctx context.Context, cardID uuid.UUID) (*model.CardTransaction, error) {
	var txn model.CardTransaction
	err := r.approved(ctx, cardID).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Order("transaction_date DESC").
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last geo-tagged transaction: %w", err)
	}
	return &txn, nil
}

// ListByCard returns the newest ledger rows for a card.
func (r *transactionRepository) ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]model.CardTransaction, error) {
	var txns []model.CardTransaction
	if err := r.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("transaction_date DESC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
