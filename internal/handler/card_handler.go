package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"cardauth/internal/errors"
	"cardauth/internal/model"
	"cardauth/internal/service"
)

// CardHandler serves the read-only operations view of cards.
type CardHandler struct {
	cardService service.CardService
}

// NewCardHandler creates a new card handler.
func NewCardHandler(cardService service.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// TransactionsResponse represents a page of ledger rows.
type TransactionsResponse struct {
	CardID       uuid.UUID               `json:"card_id"`
	Transactions []model.CardTransaction `json:"transactions"`
}

// GetCard godoc
// @Summary Get card controls and counters
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/cards/{id} [get]
func (h *CardHandler) GetCard(c echo.Context) error {
	cardID, err := parseCardID(c)
	if err != nil {
		return err
	}

	card, err := h.cardService.GetCard(c.Request().Context(), cardID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, card)
}

// ListTransactions godoc
// @Summary List a card's latest ledger rows
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param limit query int false "Page size (default 50, max 500)"
// @Success 200 {object} TransactionsResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/cards/{id}/transactions [get]
func (h *CardHandler) ListTransactions(c echo.Context) error {
	cardID, err := parseCardID(c)
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_LIMIT",
			})
		}
	}

	txns, err := h.cardService.ListTransactions(c.Request().Context(), cardID, limit)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	if txns == nil {
		txns = []model.CardTransaction{}
	}

	return c.JSON(http.StatusOK, TransactionsResponse{CardID: cardID, Transactions: txns})
}

func parseCardID(c echo.Context) (uuid.UUID, error) {
	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid card ID",
			Code:  "INVALID_UUID",
		})
	}
	return cardID, nil
}
