package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CardStatus represents the lifecycle state of a virtual card.
type CardStatus string

const (
	CardStatusActive    CardStatus = "active"
	CardStatusFrozen    CardStatus = "frozen"
	CardStatusCancelled CardStatus = "cancelled"
)

// DefaultCashbackRate is applied to cards that do not configure their own rate.
var DefaultCashbackRate = decimal.RequireFromString("0.02")

// CodeSet is a set of MCC or ISO country codes persisted as a JSON array.
type CodeSet []string

// Contains reports whether code is in the set. Comparison ignores case and surrounding space.
func (s CodeSet) Contains(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	return slices.ContainsFunc(s, func(c string) bool {
		return strings.ToUpper(strings.TrimSpace(c)) == code
	})
}

// Card is the Policy Store row for a virtual card: its controls and running spend counters.
type Card struct {
	ID           uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:char(36);not null;index"`
	WalletID     *uuid.UUID `json:"wallet_id,omitempty" gorm:"type:char(36);index"`
	Last4        string     `json:"last4" gorm:"size:4"`
	Status       CardStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	IsDisposable bool       `json:"is_disposable" gorm:"not null;default:false"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`

	AllowedMCC       CodeSet `json:"allowed_mcc" gorm:"serializer:json;type:text"`
	BlockedMCC       CodeSet `json:"blocked_mcc" gorm:"serializer:json;type:text"`
	AllowedCountries CodeSet `json:"allowed_countries" gorm:"serializer:json;type:text"`
	BlockedCountries CodeSet `json:"blocked_countries" gorm:"serializer:json;type:text"`

	// Null limits mean unlimited.
	SpendingLimit decimal.NullDecimal `json:"spending_limit" gorm:"type:decimal(20,2)"`
	DailyLimit    decimal.NullDecimal `json:"daily_limit" gorm:"type:decimal(20,2)"`
	MonthlyLimit  decimal.NullDecimal `json:"monthly_limit" gorm:"type:decimal(20,2)"`

	TotalSpent   decimal.Decimal `json:"total_spent" gorm:"type:decimal(20,2);not null;default:0"`
	MonthlySpent decimal.Decimal `json:"monthly_spent" gorm:"type:decimal(20,2);not null;default:0"`
	CashbackRate decimal.Decimal `json:"cashback_rate" gorm:"type:decimal(6,4);not null;default:0.02"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Wallet *Wallet `json:"wallet,omitempty" gorm:"foreignKey:WalletID"`
}

// BeforeCreate sets UUID before creating the record.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CachedFiatBalance returns the linked wallet's cached fiat balance, if one is known.
func (c *Card) CachedFiatBalance() (decimal.Decimal, bool) {
	if c.Wallet == nil || !c.Wallet.FiatBalance.Valid {
		return decimal.Zero, false
	}
	return c.Wallet.FiatBalance.Decimal, true
}
