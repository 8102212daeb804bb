package service

import (
	"time"

	"github.com/shopspring/decimal"

	"cardauth/internal/model"
)

// checkMerchant evaluates steps 4–6: MCC blocklist, MCC allowlist, then country block/allow lists.
func checkMerchant(card *model.Card, req model.AuthorizationRequest) (Decision, bool) {
	if card.BlockedMCC.Contains(req.MCC) {
		return decline(model.DeclineMerchantCategoryBlocked), false
	}
	if len(card.AllowedMCC) > 0 && !card.AllowedMCC.Contains(req.MCC) {
		return decline(model.DeclineMerchantCategoryNotAllowed), false
	}
	if card.BlockedCountries.Contains(req.MerchantCountry) {
		return decline(model.DeclineCountryBlocked), false
	}
	if len(card.AllowedCountries) > 0 && !card.AllowedCountries.Contains(req.MerchantCountry) {
		return decline(model.DeclineCountryNotAllowed), false
	}
	return Decision{}, true
}

func exceeds(limit decimal.NullDecimal, spent, amount decimal.Decimal) bool {
	return limit.Valid && spent.Add(amount).GreaterThan(limit.Decimal)
}

// checkCounterLimits evaluates steps 7–8 against the card's running counters.
func checkCounterLimits(card *model.Card, amount decimal.Decimal) (Decision, bool) {
	if exceeds(card.SpendingLimit, card.TotalSpent, amount) {
		return decline(model.DeclineSpendingLimitExceeded), false
	}
	if exceeds(card.MonthlyLimit, card.MonthlySpent, amount) {
		return decline(model.DeclineMonthlyLimitExceeded), false
	}
	return Decision{}, true
}

// checkDailyLimit evaluates step 9 given today's approved sum.
func checkDailyLimit(card *model.Card, todaySpent, amount decimal.Decimal) (Decision, bool) {
	if exceeds(card.DailyLimit, todaySpent, amount) {
		return decline(model.DeclineDailyLimitExceeded), false
	}
	return Decision{}, true
}

// checkBalance evaluates step 10. An unknown balance never declines.
func checkBalance(card *model.Card, amount decimal.Decimal) (Decision, bool) {
	if balance, ok := card.CachedFiatBalance(); ok && balance.LessThan(amount) {
		return decline(model.DeclineInsufficientFunds), false
	}
	return Decision{}, true
}

// startOfDayUTC returns the UTC midnight that opens t's day.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// computeCashback rounds to cents. High-risk merchant categories earn nothing.
func computeCashback(card *model.Card, amount decimal.Decimal, highRisk bool) decimal.Decimal {
	if highRisk {
		return decimal.Zero
	}
	return amount.Mul(card.CashbackRate).Round(2)
}
