package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "cardauth/internal/errors"
	"cardauth/internal/model"
	"cardauth/internal/provider"
	"cardauth/internal/repository"
)

// DefaultCheckTimeout bounds each blocking stage when no timeout is configured.
const DefaultCheckTimeout = time.Second

// AuthorizationService decides whether a card transaction may proceed.
type AuthorizationService interface {
	Authorize(ctx context.Context, req model.AuthorizationRequest) Decision
}

// AuthorizationOptions tunes the decision pipeline.
type AuthorizationOptions struct {
	CheckTimeout time.Duration
	Now          func() time.Time
}

type authorizationService struct {
	provider     provider.CardProvider
	cards        repository.CardRepository
	ledger       repository.TransactionRepository
	scorer       FraudScorer
	spend        SpendLedger
	checkTimeout time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

// NewAuthorizationService creates the decision pipeline.
func NewAuthorizationService(
	cardProvider provider.CardProvider,
	cards repository.CardRepository,
	ledger repository.TransactionRepository,
	scorer FraudScorer,
	spend SpendLedger,
	opts AuthorizationOptions,
	logger zerolog.Logger,
) AuthorizationService {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = DefaultCheckTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &authorizationService{
		provider:     cardProvider,
		cards:        cards,
		ledger:       ledger,
		scorer:       scorer,
		spend:        spend,
		checkTimeout: opts.CheckTimeout,
		now:          opts.Now,
		logger:       logger,
	}
}

// Authorize runs the checks in precedence order and returns the first decline, or commits the approval.
// It never returns an error; faults are carried in the Decision.
func (s *authorizationService) Authorize(ctx context.Context, req model.AuthorizationRequest) (d Decision) {
	start := time.Now()
	stage := stageValidate

	defer func() {
		if r := recover(); r != nil {
			d = fault(stage, fmt.Errorf("panic: %v", r))
		}
		s.logDecision(req, d, time.Since(start))
	}()

	if !model.ValidAmount(req.Amount) {
		return fault(stage, apperrors.ErrInvalidAmount)
	}
	now := s.now().UTC()

	// 1. existence
	stage = stageExistence
	card, err := withTimeout(ctx, s.checkTimeout, func(ctx context.Context) (*model.Card, error) {
		return s.provider.GetCard(ctx, req.CardID)
	})
	if errors.Is(err, apperrors.ErrCardNotFound) {
		return decline(model.DeclineCardNotFound)
	}
	if err != nil {
		return fault(stage, err)
	}

	// 2. status
	stage = stageStatus
	if card.Status != model.CardStatusActive {
		return declinef(model.DeclineCardInactive, "Card is %s", card.Status)
	}

	// 3. disposable
	if card.IsDisposable {
		stage = stageDisposable
		if card.LastUsedAt != nil {
			return s.burn(ctx, card)
		}
		first, err := withTimeout(ctx, s.checkTimeout, func(ctx context.Context) (bool, error) {
			return s.cards.MarkUsed(ctx, card.ID, now)
		})
		if err != nil {
			return fault(stage, err)
		}
		if !first {
			return s.burn(ctx, card)
		}
		card.LastUsedAt = &now
	}

	// 4–8. merchant category, country, running counters
	stage = stagePolicy
	if d, ok := checkMerchant(card, req); !ok {
		return d
	}
	if d, ok := checkCounterLimits(card, req.Amount); !ok {
		return d
	}

	// 9. daily limit, measured from UTC midnight
	if card.DailyLimit.Valid {
		stage = stageDailyLimit
		today, err := withTimeout(ctx, s.checkTimeout, func(ctx context.Context) (decimal.Decimal, error) {
			return s.ledger.SumApprovedAmount(ctx, card.ID, startOfDayUTC(now))
		})
		if err != nil {
			return fault(stage, err)
		}
		if d, ok := checkDailyLimit(card, today, req.Amount); !ok {
			return d
		}
	}

	// 10. cached wallet balance
	stage = stageBalance
	if d, ok := checkBalance(card, req.Amount); !ok {
		return d
	}

	// 11. velocity, the only blocking fraud heuristic
	stage = stageVelocity
	tooFast, err := withTimeout(ctx, s.checkTimeout, func(ctx context.Context) (bool, error) {
		return s.scorer.VelocityExceeded(ctx, card.ID, now)
	})
	if err != nil {
		return fault(stage, err)
	}
	if tooFast {
		return decline(model.DeclineVelocityExceeded)
	}

	stage = stageScoring
	scoreCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	assessment := s.scorer.Score(scoreCtx, card, req, now)
	cancel()

	txn := &model.CardTransaction{
		CardID:          card.ID,
		Reference:       req.Reference,
		Amount:          req.Amount,
		Currency:        req.Currency,
		MerchantName:    req.MerchantName,
		MerchantCity:    req.MerchantCity,
		MerchantCountry: req.MerchantCountry,
		MCC:             req.MCC,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Status:          model.TransactionStatusApproved,
		CashbackAmount:  computeCashback(card, req.Amount, assessment.HighRisk),
		IsAnomaly:       assessment.Anomaly(),
		AnomalySignals:  assessment.Signals,
		TransactionDate: now,
	}

	stage = stageCommit
	commitCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()
	return s.spend.Commit(commitCtx, card, txn)
}

// burn declines a second use of a disposable card and cancels it.
// The decline stands even if cancellation fails.
func (s *authorizationService) burn(ctx context.Context, card *model.Card) Decision {
	cancelled, err := withTimeout(ctx, s.checkTimeout, func(ctx context.Context) (bool, error) {
		return s.provider.CancelCard(ctx, card.ID)
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("event", "disposable_cancel_failed").
			Str("card_id", card.ID.String()).
			Msg("failed to cancel used disposable card")
	} else if cancelled {
		s.logger.Info().
			Str("event", "disposable_cancelled").
			Str("card_id", card.ID.String()).
			Msg("disposable card cancelled after reuse")
	}
	return decline(model.DeclineDisposableCardUsed)
}

func (s *authorizationService) logDecision(req model.AuthorizationRequest, d Decision, latency time.Duration) {
	if d.Outcome == OutcomeFault {
		s.logger.Error().Err(d.Cause).
			Str("event", "authorization_fault").
			Str("card_id", req.CardID.String()).
			Str("amount", req.Amount.String()).
			Str("stage", d.Stage).
			Str("reference", req.Reference).
			Msg("authorization failed closed")
	}

	anomaly := d.Transaction != nil && d.Transaction.IsAnomaly
	s.logger.Info().
		Str("event", "authorization_decided").
		Str("card_id", req.CardID.String()).
		Bool("approved", d.Approved()).
		Str("decline_reason", string(d.DeclineReason())).
		Bool("anomaly", anomaly).
		Dur("latency", latency).
		Msg("authorization decided")
}

// withTimeout runs fn under a deadline and returns as soon as the deadline passes,
// even if fn ignores its context.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		select {
		case r := <-done:
			return r.value, r.err
		default:
		}
		var zero T
		return zero, fmt.Errorf("stage deadline: %w", ctx.Err())
	}
}
