package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "cardauth/internal/errors"
	"cardauth/internal/model"
	"cardauth/internal/notify"
	"cardauth/internal/repository"
)

// DefaultNotifyTimeout bounds a single notification delivery.
const DefaultNotifyTimeout = 5 * time.Second

// errLateDecline aborts the commit transaction when the locked snapshot no longer passes.
var errLateDecline = errors.New("late decline")

// SpendLedger commits an approved authorization: counters, ledger row, notification.
type SpendLedger interface {
	Commit(ctx context.Context, card *model.Card, txn *model.CardTransaction) Decision
}

type LedgerUpdater struct {
	tx            repository.Transactor
	notifier      notify.Notifier
	notifyTimeout time.Duration
	logger        zerolog.Logger
	wg            sync.WaitGroup
}

// NewLedgerUpdater creates the spend ledger updater.
func NewLedgerUpdater(tx repository.Transactor, notifier notify.Notifier, notifyTimeout time.Duration, logger zerolog.Logger) *LedgerUpdater {
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	return &LedgerUpdater{
		tx:            tx,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		logger:        logger,
	}
}

// Commit locks the card row, re-checks steps 7–9 against the locked snapshot and
// applies the conditional increment. Everything commits or nothing does.
func (l *LedgerUpdater) Commit(ctx context.Context, card *model.Card, txn *model.CardTransaction) Decision {
	var late Decision

	err := l.tx.WithTransaction(ctx, func(ctx context.Context, cards repository.CardRepository, ledger repository.TransactionRepository) error {
		locked, err := cards.FindByIDForUpdate(ctx, card.ID)
		if err != nil {
			return fmt.Errorf("lock card: %w", err)
		}
		if d, ok := checkCounterLimits(locked, txn.Amount); !ok {
			late = d
			return errLateDecline
		}

		if locked.DailyLimit.Valid {
			today, err := ledger.SumApprovedAmount(ctx, card.ID, startOfDayUTC(txn.TransactionDate))
			if err != nil {
				return fmt.Errorf("sum daily spend: %w", err)
			}
			if d, ok := checkDailyLimit(locked, today, txn.Amount); !ok {
				late = d
				return errLateDecline
			}
		}

		if err := cards.IncrementSpend(ctx, card.ID, txn.Amount, txn.TransactionDate); err != nil {
			if errors.Is(err, apperrors.ErrLimitExceeded) {
				late = decline(model.DeclineSpendingLimitExceeded)
				return errLateDecline
			}
			return fmt.Errorf("increment spend: %w", err)
		}

		if err := ledger.Create(ctx, txn); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})

	switch {
	case errors.Is(err, errLateDecline):
		return late
	case errors.Is(err, apperrors.ErrCardNotFound):
		return decline(model.DeclineCardNotFound)
	case err != nil:
		return fault(stageCommit, err)
	}

	l.dispatch(card, txn)
	return approve(txn)
}

// dispatch notifies the cardholder in the background. Failures are only logged.
func (l *LedgerUpdater) dispatch(card *model.Card, txn *model.CardTransaction) {
	message := ApprovalMessage(card, txn)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), l.notifyTimeout)
		defer cancel()

		if err := l.notifier.Notify(ctx, card.UserID, message); err != nil {
			l.logger.Error().Err(err).
				Str("event", "notify_failed").
				Str("user_id", card.UserID.String()).
				Str("transaction_id", txn.ID.String()).
				Msg("failed to deliver approval notification")
		}
	}()
}

// Wait blocks until in-flight notifications have finished.
func (l *LedgerUpdater) Wait() {
	l.wg.Wait()
}

// ApprovalMessage renders the cardholder notification for an approved transaction.
func ApprovalMessage(card *model.Card, txn *model.CardTransaction) string {
	return fmt.Sprintf("Card ending %s: %s %s at %s approved. Cashback %s.",
		card.Last4,
		txn.Amount.StringFixed(2),
		txn.Currency,
		txn.MerchantName,
		txn.CashbackAmount.StringFixed(2),
	)
}
