package service

import (
	"fmt"

	"cardauth/internal/model"
)

// Outcome tags a Decision.
type Outcome int

const (
	OutcomeApproved Outcome = iota + 1
	OutcomeDeclined
	// OutcomeFault is an internal failure. It is reported to the processor as a SYSTEM_ERROR decline.
	OutcomeFault
)

// Pipeline stages, reported with faults.
const (
	stageValidate    = "validate"
	stageExistence   = "existence"
	stageStatus      = "status"
	stageDisposable  = "disposable"
	stagePolicy      = "policy"
	stageDailyLimit  = "daily_limit"
	stageBalance     = "balance"
	stageVelocity    = "velocity"
	stageScoring     = "scoring"
	stageCommit      = "commit"
	stageIdempotency = "idempotency"
)

// Decision is the result of one authorization: Approved, Declined(reason) or Fault(cause).
// It is translated to the wire format only by the HTTP handler.
type Decision struct {
	Outcome     Outcome                `json:"outcome"`
	Reason      model.DeclineReason    `json:"reason,omitempty"`
	Message     string                 `json:"message"`
	Transaction *model.CardTransaction `json:"transaction,omitempty"`
	// Replayed is set when the decision was served from the idempotency cache.
	Replayed bool `json:"-"`

	Stage string `json:"-"`
	Cause error  `json:"-"`
}

// Approved reports whether the authorization was approved.
func (d Decision) Approved() bool { return d.Outcome == OutcomeApproved }

// DeclineReason returns the wire reason; faults map to SYSTEM_ERROR.
func (d Decision) DeclineReason() model.DeclineReason {
	switch d.Outcome {
	case OutcomeApproved:
		return ""
	case OutcomeFault:
		return model.DeclineSystemError
	default:
		return d.Reason
	}
}

var declineMessages = map[model.DeclineReason]string{
	model.DeclineCardNotFound:               "Card not found",
	model.DeclineCardInactive:               "Card is not active",
	model.DeclineDisposableCardUsed:         "Disposable card has already been used",
	model.DeclineMerchantCategoryBlocked:    "Merchant category is blocked for this card",
	model.DeclineMerchantCategoryNotAllowed: "Merchant category is not allowed for this card",
	model.DeclineCountryBlocked:             "Merchant country is blocked for this card",
	model.DeclineCountryNotAllowed:          "Merchant country is not allowed for this card",
	model.DeclineSpendingLimitExceeded:      "Spending limit exceeded",
	model.DeclineMonthlyLimitExceeded:       "Monthly limit exceeded",
	model.DeclineDailyLimitExceeded:         "Daily limit exceeded",
	model.DeclineInsufficientFunds:          "Insufficient funds",
	model.DeclineVelocityExceeded:           "Too many transactions in a short period",
	model.DeclineSystemError:                "Authorization could not be completed",
}

func approve(txn *model.CardTransaction) Decision {
	return Decision{Outcome: OutcomeApproved, Message: "Transaction approved", Transaction: txn}
}

func decline(reason model.DeclineReason) Decision {
	return Decision{Outcome: OutcomeDeclined, Reason: reason, Message: declineMessages[reason]}
}

func declinef(reason model.DeclineReason, format string, args ...any) Decision {
	return Decision{Outcome: OutcomeDeclined, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func fault(stage string, cause error) Decision {
	return Decision{
		Outcome: OutcomeFault,
		Reason:  model.DeclineSystemError,
		Message: declineMessages[model.DeclineSystemError],
		Stage:   stage,
		Cause:   cause,
	}
}
