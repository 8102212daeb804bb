package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeclineReason is the stable wire code for a declined authorization.
type DeclineReason string

const (
	DeclineCardNotFound               DeclineReason = "CARD_NOT_FOUND"
	DeclineCardInactive               DeclineReason = "CARD_INACTIVE"
	DeclineDisposableCardUsed         DeclineReason = "DISPOSABLE_CARD_USED"
	DeclineMerchantCategoryBlocked    DeclineReason = "MERCHANT_CATEGORY_BLOCKED"
	DeclineMerchantCategoryNotAllowed DeclineReason = "MERCHANT_CATEGORY_NOT_ALLOWED"
	DeclineCountryBlocked             DeclineReason = "COUNTRY_BLOCKED"
	DeclineCountryNotAllowed          DeclineReason = "COUNTRY_NOT_ALLOWED"
	DeclineSpendingLimitExceeded      DeclineReason = "SPENDING_LIMIT_EXCEEDED"
	DeclineMonthlyLimitExceeded       DeclineReason = "MONTHLY_LIMIT_EXCEEDED"
	DeclineDailyLimitExceeded         DeclineReason = "DAILY_LIMIT_EXCEEDED"
	DeclineInsufficientFunds          DeclineReason = "INSUFFICIENT_FUNDS"
	DeclineVelocityExceeded           DeclineReason = "VELOCITY_EXCEEDED"
	DeclineSystemError                DeclineReason = "SYSTEM_ERROR"
)

// AmountScale is the number of decimal places money columns store.
const AmountScale = 2

// ValidAmount reports whether amount is positive and representable in a money column without rounding.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(AmountScale))
}

// AuthorizationRequest is a validated, parsed authorization attempt. It is never persisted.
type AuthorizationRequest struct {
	// Reference is the processor's transaction reference, used for idempotent replay.
	Reference       string
	CardID          uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	MerchantName    string
	MerchantCity    string
	MerchantCountry string
	MCC             string
	Latitude        *float64
	Longitude       *float64
}

// HasCoordinates reports whether the request carries both latitude and longitude.
func (r AuthorizationRequest) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}
