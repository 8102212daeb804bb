package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cardauth/internal/config"
	"cardauth/internal/db"
	"cardauth/internal/logger"
	"cardauth/internal/model"
	"cardauth/internal/provider"
	"cardauth/internal/repository"
)

// Fixture is the seed file layout: a list of cards, each optionally embedding its wallet.
type Fixture struct {
	Cards []model.Card `json:"cards"`
}

func main() {
	source := flag.String("file", "cmd/seed/cards.example.json", "path or http(s) URL of the card fixture")
	flag.Parse()

	cfg, err := config.Load(".")
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.Migrate(gormDB, false); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	cardProvider, err := provider.New(cfg.CardProvider, cfg.WebhookSecret, repository.NewCardRepository(gormDB))
	if err != nil {
		log.Fatal().Err(err).Msg("card provider")
	}

	log.Info().Str("source", *source).Msg("loading fixture")
	fixture, err := loadFixture(*source)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load fixture")
	}

	seeded, err := seedCards(context.Background(), cardProvider, fixture.Cards)
	if err != nil {
		log.Fatal().Err(err).Int("seeded", seeded).Msg("seed failed")
	}
	log.Info().Int("seeded", seeded).Str("provider", cardProvider.ID()).Msg("seed completed")
}

// loadFixture reads a fixture from a local file or an http(s) URL.
func loadFixture(source string) (*Fixture, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch fixture: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fixture source returned status code: %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixture: %w", err)
		}
		r = f
	}
	defer r.Close()

	return decodeFixture(r)
}

func decodeFixture(r io.Reader) (*Fixture, error) {
	var fixture Fixture
	if err := json.NewDecoder(r).Decode(&fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	for i := range fixture.Cards {
		card := &fixture.Cards[i]
		if card.Status == "" {
			card.Status = model.CardStatusActive
		}
		if card.CashbackRate.IsZero() {
			card.CashbackRate = model.DefaultCashbackRate
		}
		if card.Wallet != nil {
			if card.Wallet.UserID == uuid.Nil {
				card.Wallet.UserID = card.UserID
			}
			if card.WalletID == nil && card.Wallet.ID != uuid.Nil {
				id := card.Wallet.ID
				card.WalletID = &id
			}
		}
	}
	return &fixture, nil
}

// seedCards upserts cards through the provider so vendor-specific state stays consistent.
func seedCards(ctx context.Context, p provider.CardProvider, cards []model.Card) (int, error) {
	seeded := 0
	for i := range cards {
		if err := p.UpdateCard(ctx, &cards[i]); err != nil {
			return seeded, fmt.Errorf("error seeding card %s: %w", cards[i].ID, err)
		}
		seeded++
	}
	return seeded, nil
}
