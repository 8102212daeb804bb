package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cardauth/internal/errors"
)

const revokedTokenKeyPrefix = "revoked_token:"

// TokenCache is the subset of cache.Client the revocation list needs.
type TokenCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RevocationStore keeps revoked token IDs in Redis until the token would have expired anyway.
type RevocationStore struct {
	cache TokenCache
}

// NewRevocationStore creates a new revocation store.
func NewRevocationStore(cache TokenCache) *RevocationStore {
	return &RevocationStore{cache: cache}
}

// Revoke blacklists a token ID for ttl.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, revokedTokenKeyPrefix+tokenID, []byte("1"), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token ID has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	data, err := s.cache.Get(ctx, revokedTokenKeyPrefix+tokenID)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return data != nil, nil
}

// Middleware rejects tokens that were revoked. It runs after the JWT middleware.
func (s *RevocationStore) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFromToken(c.Get("user"))
			if !ok {
				httpErr := errors.MapErrorToHTTP(errors.ErrUnauthorized)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			revoked, err := s.IsRevoked(c.Request().Context(), claims.ID)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, errors.ErrorResponse{
					Error: "token status unavailable",
					Code:  "UNAVAILABLE",
				})
			}
			if revoked {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: "token has been revoked",
					Code:  "TOKEN_REVOKED",
				})
			}
			return next(c)
		}
	}
}
