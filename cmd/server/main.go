package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "cardauth/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"cardauth/internal/auth"
	"cardauth/internal/cache"
	"cardauth/internal/config"
	"cardauth/internal/db"
	"cardauth/internal/guard"
	"cardauth/internal/handler"
	"cardauth/internal/logger"
	"cardauth/internal/notify"
	"cardauth/internal/provider"
	"cardauth/internal/repository"
	"cardauth/internal/router"
	"cardauth/internal/service"
)

// @title Card Authorization API
// @version 1.0
// @description Real-time card authorization webhook and read-only card operations API.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database init")
	}
	if cfg.ResetDB {
		log.Warn().Msg("RESET_DB=true detected, dropping all tables")
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		log.Fatal().Err(err).Msg("auto-migrate")
	}

	cacheClient := cache.New(cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisKeyPrefix,
	}, log.With().Str("component", "cache").Logger())
	defer cacheClient.Close()

	// Initialize repositories
	cardRepo := repository.NewCardRepository(gormDB)
	ledgerRepo := repository.NewTransactionRepository(gormDB)
	transactor := repository.NewTransactor(gormDB)

	cardProvider, err := provider.New(cfg.CardProvider, cfg.WebhookSecret, cardRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("card provider")
	}
	if cfg.WebhookSecret == "" {
		log.Warn().Msg("WEBHOOK_SECRET is empty, every webhook will be rejected")
	}

	webhookGuard, err := guard.New(cardProvider, cfg.WebhookAllowIPs, log.With().Str("component", "guard").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("webhook guard")
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log.With().Str("component", "notifier").Logger())
	if cfg.RabbitMQURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.RabbitMQURL, cfg.NotifyExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("notifier init")
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	}

	// Initialize services
	serviceLog := log.With().Str("component", "authorization").Logger()
	ledgerUpdater := service.NewLedgerUpdater(transactor, notifier, service.DefaultNotifyTimeout, serviceLog)
	authorizer := service.NewIdempotentAuthorizer(
		service.NewAuthorizationService(
			cardProvider,
			cardRepo,
			ledgerRepo,
			service.NewFraudScorer(ledgerRepo, serviceLog),
			ledgerUpdater,
			service.AuthorizationOptions{CheckTimeout: cfg.CheckTimeout},
			serviceLog,
		),
		cacheClient,
		cardProvider.ID(),
		cfg.IdempotencyTTL,
		serviceLog,
	)
	cardService := service.NewCardService(cardProvider, ledgerRepo)

	// Initialize handlers
	authorizationHandler := handler.NewAuthorizationHandler(authorizer, cfg.AuthTimeout, serviceLog)
	cardHandler := handler.NewCardHandler(cardService)
	revocations := auth.NewRevocationStore(cacheClient)
	tokenHandler := handler.NewTokenHandler(revocations)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Register routes
	if err := router.Register(e, cfg, log, webhookGuard, revocations, authorizationHandler, cardHandler, tokenHandler); err != nil {
		log.Fatal().Err(err).Msg("register routes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.ServerPort
	go func() {
		log.Info().
			Str("addr", addr).
			Str("provider", cardProvider.ID()).
			Str("db_driver", cfg.DBDriver).
			Msg("server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	ledgerUpdater.Wait()
}
