package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"cardauth/internal/auth"
	"cardauth/internal/config"
	"cardauth/internal/guard"
	"cardauth/internal/handler"
)

// Register wires routes and middleware. The client IP seen by the webhook guard comes from
// the socket peer unless the request arrived through a configured trusted proxy.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger zerolog.Logger,
	webhookGuard *guard.Guard,
	revocations *auth.RevocationStore,
	authorizationHandler *handler.AuthorizationHandler,
	cardHandler *handler.CardHandler,
	tokenHandler *handler.TokenHandler,
) error {
	ipExtractor, err := guard.ClientIPExtractor(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	e.IPExtractor = ipExtractor

	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Processor webhooks (signature and origin checked before the body is parsed)
	webhooks := e.Group("/webhooks", webhookGuard.Middleware())
	webhooks.POST("/authorize", authorizationHandler.Authorize)

	// Secured routes (require JWT authentication)
	secured := e.Group("/api", echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:" + echo.HeaderAuthorization,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
	}), revocations.Middleware())

	// Token routes
	secured.GET("/me", tokenHandler.Me)
	secured.POST("/tokens/revoke", tokenHandler.Revoke)

	// Card routes
	secured.GET("/cards/:id", cardHandler.GetCard)
	secured.GET("/cards/:id/transactions", cardHandler.ListTransactions)

	return nil
}

// requestLogger writes one access log line per request through zerolog.
func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil {
				event = logger.Error().Err(v.Error)
			}
			event.
				Str("event", "http_request").
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
