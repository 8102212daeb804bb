package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "cardauth/internal/errors"
	"cardauth/internal/model"
)

// DefaultInFlightTTL bounds how long a crashed request can hold its reference.
const DefaultInFlightTTL = 30 * time.Second

// DecisionCache is the key-value store holding replayable decisions. cache.Client satisfies it.
type DecisionCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// cachedDecision pins a stored decision to the request it answered.
type cachedDecision struct {
	CardID   uuid.UUID       `json:"cardId"`
	Amount   decimal.Decimal `json:"amount"`
	Decision Decision        `json:"decision"`
}

func (c cachedDecision) matches(req model.AuthorizationRequest) bool {
	return c.CardID == req.CardID && c.Amount.Equal(req.Amount)
}

type idempotentAuthorizer struct {
	next        AuthorizationService
	cache       DecisionCache
	namespace   string
	ttl         time.Duration
	inFlightTTL time.Duration
	logger      zerolog.Logger
}

// NewIdempotentAuthorizer wraps next so a retried reference replays the original decision
// instead of being evaluated again. Requests without a reference pass straight through.
func NewIdempotentAuthorizer(next AuthorizationService, cache DecisionCache, namespace string, ttl time.Duration, logger zerolog.Logger) AuthorizationService {
	return &idempotentAuthorizer{
		next:        next,
		cache:       cache,
		namespace:   namespace,
		ttl:         ttl,
		inFlightTTL: DefaultInFlightTTL,
		logger:      logger,
	}
}

// IdempotencyKey returns the cache key for a processor reference.
func IdempotencyKey(namespace, reference string) string {
	return fmt.Sprintf("authz:%s:%s", namespace, reference)
}

func (a *idempotentAuthorizer) Authorize(ctx context.Context, req model.AuthorizationRequest) Decision {
	if req.Reference == "" {
		return a.next.Authorize(ctx, req)
	}
	key := IdempotencyKey(a.namespace, req.Reference)

	if d, ok := a.lookup(ctx, key, req); ok {
		return d
	}

	acquired, err := a.cache.SetNX(ctx, key+":lock", []byte("1"), a.inFlightTTL)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("idempotency lock unavailable, proceeding without it")
		acquired = true
	}
	if !acquired {
		return fault(stageIdempotency, apperrors.ErrAuthorizationInFlight)
	}
	// The lock and the stored decision outlive a cancelled request context.
	storeCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := a.cache.Delete(storeCtx, key+":lock"); err != nil {
			a.logger.Warn().Err(err).Str("key", key).Msg("failed to release idempotency lock")
		}
	}()

	// A duplicate may have finished between the lookup and the lock.
	if d, ok := a.lookup(ctx, key, req); ok {
		return d
	}

	d := a.next.Authorize(ctx, req)
	if d.Outcome == OutcomeFault {
		return d
	}

	payload, err := json.Marshal(cachedDecision{CardID: req.CardID, Amount: req.Amount, Decision: d})
	if err != nil {
		a.logger.Error().Err(err).Str("key", key).Msg("failed to encode decision")
		return d
	}
	if err := a.cache.Set(storeCtx, key, payload, a.ttl); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("failed to store decision")
	}
	return d
}

// lookup returns the stored decision for key. A stored decision that answered a different card
// or amount is never replayed; the request faults instead.
func (a *idempotentAuthorizer) lookup(ctx context.Context, key string, req model.AuthorizationRequest) (Decision, bool) {
	data, err := a.cache.Get(ctx, key)
	if err != nil || data == nil {
		return Decision{}, false
	}
	var cached cachedDecision
	if err := json.Unmarshal(data, &cached); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached decision")
		return Decision{}, false
	}
	if !cached.matches(req) {
		a.logger.Warn().
			Str("event", "reference_reused").
			Str("key", key).
			Str("card_id", req.CardID.String()).
			Str("amount", req.Amount.String()).
			Msg("reference reused with a different card or amount")
		return fault(stageIdempotency, apperrors.ErrReferenceReused), true
	}
	d := cached.Decision
	d.Replayed = true
	a.logger.Info().
		Str("event", "authorization_replayed").
		Str("key", key).
		Bool("approved", d.Approved()).
		Msg("replaying cached decision")
	return d, true
}
