package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cardauth/internal/errors"
	"cardauth/internal/model"
	"cardauth/internal/service"
)

// HeaderIdempotencyKey carries the processor reference when the body does not.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// AuthorizationHandler handles the processor's real-time authorization webhook.
type AuthorizationHandler struct {
	authz   service.AuthorizationService
	timeout time.Duration
	logger  zerolog.Logger
}

// NewAuthorizationHandler creates a new authorization handler. timeout bounds the whole decision.
func NewAuthorizationHandler(authz service.AuthorizationService, timeout time.Duration, logger zerolog.Logger) *AuthorizationHandler {
	return &AuthorizationHandler{authz: authz, timeout: timeout, logger: logger}
}

// AuthorizeRequest represents an authorization webhook body.
type AuthorizeRequest struct {
	CardID               string          `json:"cardId" validate:"required,uuid"`
	Amount               decimal.Decimal `json:"amount" swaggertype:"number"`
	Currency             string          `json:"currency" validate:"required,len=3,alpha"`
	MerchantName         string          `json:"merchantName" validate:"required,max=255"`
	MerchantCity         string          `json:"merchantCity" validate:"max=128"`
	MerchantCountry      string          `json:"merchantCountry" validate:"required,min=2,max=3,alpha"`
	MCC                  string          `json:"mcc" validate:"required,len=4,numeric"`
	Latitude             *float64        `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude            *float64        `json:"longitude,omitempty" validate:"omitempty,longitude"`
	TransactionReference string          `json:"transactionReference,omitempty" validate:"omitempty,max=64"`
}

// AuthorizeResponse is returned with HTTP 200 for approvals and declines alike.
type AuthorizeResponse struct {
	Approved       bool                `json:"approved"`
	TransactionID  string              `json:"transactionId,omitempty"`
	CashbackAmount *float64            `json:"cashbackAmount,omitempty"`
	DeclineReason  model.DeclineReason `json:"declineReason,omitempty"`
	Message        string              `json:"message"`
}

// Authorize godoc
// @Summary Authorize a card transaction
// @Description Business declines and internal failures are both returned with HTTP 200 and a declineReason.
// @Tags authorizations
// @Accept json
// @Produce json
// @Param X-Webhook-Signature header string true "HMAC signature of the raw body"
// @Param X-Idempotency-Key header string false "Processor transaction reference"
// @Param request body AuthorizeRequest true "Authorization data"
// @Success 200 {object} AuthorizeResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /webhooks/authorize [post]
func (h *AuthorizationHandler) Authorize(c echo.Context) (err error) {
	var cardID uuid.UUID
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Err(fmt.Errorf("panic: %v", r)).
				Str("event", "authorization_fault").
				Str("card_id", cardID.String()).
				Str("stage", "handler").
				Msg("authorization failed closed")
			err = c.JSON(http.StatusOK, systemErrorResponse())
		}
	}()

	var req AuthorizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	parsed, parseErr := uuid.Parse(req.CardID)
	if parseErr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid cardId",
			Code:  "INVALID_UUID",
		})
	}
	cardID = parsed

	if (req.Latitude == nil) != (req.Longitude == nil) {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "latitude and longitude must be sent together",
			Code:  "VALIDATION_ERROR",
		})
	}

	if !model.ValidAmount(req.Amount) {
		httpErr := errors.MapErrorToHTTP(errors.ErrInvalidAmount)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	reference := req.TransactionReference
	if reference == "" {
		reference = c.Request().Header.Get(HeaderIdempotencyKey)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	decision := h.authz.Authorize(ctx, model.AuthorizationRequest{
		Reference:       reference,
		CardID:          cardID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		MerchantName:    req.MerchantName,
		MerchantCity:    req.MerchantCity,
		MerchantCountry: req.MerchantCountry,
		MCC:             req.MCC,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
	})

	return c.JSON(http.StatusOK, toAuthorizeResponse(decision))
}

func toAuthorizeResponse(d service.Decision) AuthorizeResponse {
	if !d.Approved() {
		return AuthorizeResponse{
			Approved:      false,
			DeclineReason: d.DeclineReason(),
			Message:       d.Message,
		}
	}

	resp := AuthorizeResponse{Approved: true, Message: d.Message}
	if d.Transaction != nil {
		cashback := d.Transaction.CashbackAmount.InexactFloat64()
		resp.TransactionID = d.Transaction.ID.String()
		resp.CashbackAmount = &cashback
	}
	return resp
}

func systemErrorResponse() AuthorizeResponse {
	return AuthorizeResponse{
		Approved:      false,
		DeclineReason: model.DeclineSystemError,
		Message:       "Authorization could not be completed",
	}
}
