package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet holds the cached fiat balance of the wallet funding a card.
// The balance is synchronised by another process and is read-only here.
type Wallet struct {
	ID          uuid.UUID           `json:"id" gorm:"type:char(36);primaryKey"`
	UserID      uuid.UUID           `json:"user_id" gorm:"type:char(36);not null;index"`
	Currency    string              `json:"currency" gorm:"size:3;not null;default:'USD'"`
	FiatBalance decimal.NullDecimal `json:"fiat_balance" gorm:"type:decimal(20,2)"`
	SyncedAt    *time.Time          `json:"synced_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
