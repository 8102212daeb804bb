package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs card and ledger operations inside one database transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, cards CardRepository, ledger TransactionRepository) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a GORM-backed transactor.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// WithTransaction executes fn within a database transaction; a returned error rolls it back.
func (t *gormTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context, cards CardRepository, ledger TransactionRepository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &cardRepository{db: tx}, &transactionRepository{db: tx})
	})
}
