package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStatus represents the status of a ledger row.
type TransactionStatus string

// Only approved authorizations are written to the ledger.
const TransactionStatusApproved TransactionStatus = "approved"

// CardTransaction is an immutable ledger row written once per approved authorization.
type CardTransaction struct {
	ID              uuid.UUID         `json:"id" gorm:"type:char(36);primaryKey"`
	CardID          uuid.UUID         `json:"card_id" gorm:"type:char(36);not null;index:idx_card_txn_date,priority:1"`
	Reference       string            `json:"reference,omitempty" gorm:"size:64;index"`
	Amount          decimal.Decimal   `json:"amount" gorm:"type:decimal(20,2);not null"`
	Currency        string            `json:"currency" gorm:"size:3;not null"`
	MerchantName    string            `json:"merchant_name" gorm:"size:255"`
	MerchantCity    string            `json:"merchant_city" gorm:"size:128"`
	MerchantCountry string            `json:"merchant_country" gorm:"size:3"`
	MCC             string            `json:"mcc" gorm:"size:4;index"`
	Latitude        *float64          `json:"latitude,omitempty"`
	Longitude       *float64          `json:"longitude,omitempty"`
	Status          TransactionStatus `json:"status" gorm:"type:varchar(20);not null;default:'approved';index"`
	CashbackAmount  decimal.Decimal   `json:"cashback_amount" gorm:"type:decimal(20,2);not null;default:0"`
	IsAnomaly       bool              `json:"is_anomaly" gorm:"not null;default:false;index"`
	AnomalySignals  CodeSet           `json:"anomaly_signals,omitempty" gorm:"serializer:json;type:text"`
	TransactionDate time.Time         `json:"transaction_date" gorm:"not null;index:idx_card_txn_date,priority:2"`
	CreatedAt       time.Time         `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (t *CardTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// HasCoordinates reports whether the row is geo-tagged.
func (t *CardTransaction) HasCoordinates() bool {
	return t.Latitude != nil && t.Longitude != nil
}
