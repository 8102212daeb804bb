package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cardauth/internal/model"
	"cardauth/internal/repository"
)

const (
	VelocityWindow    = 10 * time.Minute
	VelocityThreshold = 5
	GeoWindow         = time.Hour
	GeoMaxDistanceKm  = 500.0
)

// Anomaly signals recorded on the ledger row.
const (
	SignalGeoMismatch   = "geo_mismatch"
	SignalNewMCC        = "new_mcc"
	SignalHighRiskMCC   = "high_risk_mcc"
	SignalScoringFailed = "scoring_unavailable"
)

// highRiskMCC holds gambling and lottery merchant categories.
var highRiskMCC = model.CodeSet{"7995", "7800", "7801", "7802", "9406", "9754"}

// IsHighRiskMCC reports whether mcc is a gambling or lottery category.
func IsHighRiskMCC(mcc string) bool {
	return highRiskMCC.Contains(mcc)
}

// Assessment is the advisory outcome of fraud scoring.
type Assessment struct {
	Signals []string
	// HighRisk zeroes cashback.
	HighRisk bool
}

// Anomaly reports whether any signal fired.
func (a Assessment) Anomaly() bool { return len(a.Signals) > 0 }

// FraudScorer evaluates the fraud heuristics for an authorization.
type FraudScorer interface {
	// VelocityExceeded is the one blocking heuristic.
	VelocityExceeded(ctx context.Context, cardID uuid.UUID, now time.Time) (bool, error)
	// Score never fails. A query error is itself treated as an anomaly.
	Score(ctx context.Context, card *model.Card, req model.AuthorizationRequest, now time.Time) Assessment
}

type fraudScorer struct {
	ledger repository.TransactionRepository
	logger zerolog.Logger
}

// NewFraudScorer creates a new fraud scorer.
func NewFraudScorer(ledger repository.TransactionRepository, logger zerolog.Logger) FraudScorer {
	return &fraudScorer{ledger: ledger, logger: logger}
}

func (s *fraudScorer) VelocityExceeded(ctx context.Context, cardID uuid.UUID, now time.Time) (bool, error) {
	count, err := s.ledger.CountApproved(ctx, cardID, now.Add(-VelocityWindow))
	if err != nil {
		return false, fmt.Errorf("count recent approvals: %w", err)
	}
	return count >= VelocityThreshold, nil
}

func (s *fraudScorer) Score(ctx context.Context, card *model.Card, req model.AuthorizationRequest, now time.Time) Assessment {
	var geoMismatch, newMCC bool

	g, gctx := errgroup.WithContext(ctx)
	if req.HasCoordinates() {
		g.Go(func() error {
			last, err := s.ledger.LastGeoTagged(gctx, card.ID)
			if err != nil {
				return fmt.Errorf("last geo-tagged transaction: %w", err)
			}
			geoMismatch = isGeoMismatch(last, req, now)
			return nil
		})
	}
	g.Go(func() error {
		history, err := s.ledger.DistinctMCCHistory(gctx, card.ID)
		if err != nil {
			return fmt.Errorf("mcc history: %w", err)
		}
		_, seen := history[req.MCC]
		newMCC = !seen
		return nil
	})

	var a Assessment
	if err := g.Wait(); err != nil {
		s.logger.Warn().Err(err).
			Str("event", "fraud_scoring_failed").
			Str("card_id", card.ID.String()).
			Msg("fraud scoring incomplete, flagging transaction")
		a.Signals = append(a.Signals, SignalScoringFailed)
	}
	if geoMismatch {
		a.Signals = append(a.Signals, SignalGeoMismatch)
	}
	if newMCC {
		a.Signals = append(a.Signals, SignalNewMCC)
	}
	if IsHighRiskMCC(req.MCC) {
		a.HighRisk = true
		a.Signals = append(a.Signals, SignalHighRiskMCC)
	}
	return a
}

func isGeoMismatch(last *model.CardTransaction, req model.AuthorizationRequest, now time.Time) bool {
	if last == nil || !last.HasCoordinates() {
		return false
	}
	if now.Sub(last.TransactionDate) > GeoWindow {
		return false
	}
	distance := HaversineKm(*last.Latitude, *last.Longitude, *req.Latitude, *req.Longitude)
	return distance > GeoMaxDistanceKm
}
