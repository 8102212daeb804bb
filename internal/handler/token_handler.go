package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cardauth/internal/auth"
	"cardauth/internal/errors"
)

// TokenHandler handles operator token endpoints.
type TokenHandler struct {
	revocations *auth.RevocationStore
}

// NewTokenHandler creates a new token handler.
func NewTokenHandler(revocations *auth.RevocationStore) *TokenHandler {
	return &TokenHandler{revocations: revocations}
}

// MeResponse describes the calling operator.
type MeResponse struct {
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Me godoc
// @Summary Describe the calling operator token
// @Tags tokens
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/me [get]
func (h *TokenHandler) Me(c echo.Context) error {
	claims, ok := auth.ClaimsFromToken(c.Get("user"))
	if !ok {
		httpErr := errors.MapErrorToHTTP(errors.ErrUnauthorized)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	resp := MeResponse{Subject: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	return c.JSON(http.StatusOK, resp)
}

// Revoke godoc
// @Summary Revoke the calling operator token
// @Tags tokens
// @Security BearerAuth
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/tokens/revoke [post]
func (h *TokenHandler) Revoke(c echo.Context) error {
	claims, ok := auth.ClaimsFromToken(c.Get("user"))
	if !ok {
		httpErr := errors.MapErrorToHTTP(errors.ErrUnauthorized)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	if claims.ID == "" || claims.ExpiresAt == nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "token cannot be revoked",
			Code:  "NOT_REVOCABLE",
		})
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := h.revocations.Revoke(c.Request().Context(), claims.ID, ttl); err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.NoContent(http.StatusNoContent)
}
