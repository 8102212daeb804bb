package guard

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "cardauth/internal/errors"
	"cardauth/internal/provider"
)

// Rejection reasons reported in audit events.
const (
	ReasonMissingSignature = "missing_signature"
	ReasonIPNotAllowed     = "ip_not_allowed"
	ReasonInvalidSignature = "invalid_signature"
)

// ProviderHeader optionally names the provider that signed the webhook.
const ProviderHeader = "X-Provider-Id"

const maxBodyBytes = 1 << 20

// RejectionError describes why a webhook was refused before reaching business logic.
type RejectionError struct {
	Reason string
	err    error
}

func (e *RejectionError) Error() string { return e.Reason }

func (e *RejectionError) Unwrap() error { return e.err }

// Guard validates webhook authenticity and origin on raw request bytes.
type Guard struct {
	provider provider.CardProvider
	allow    []netip.Prefix
	logger   zerolog.Logger
}

// New builds a guard. Allowlist entries are single IPs or CIDR ranges; an empty list allows any origin.
func New(p provider.CardProvider, allowlist []string, logger zerolog.Logger) (*Guard, error) {
	allow, err := parsePrefixes(allowlist)
	if err != nil {
		return nil, fmt.Errorf("parse allowlist: %w", err)
	}
	return &Guard{provider: p, allow: allow, logger: logger}, nil
}

// parsePrefixes accepts single IPs and CIDR ranges; a single IP becomes a full-length prefix.
func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("entry %q: %w", entry, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Verify checks signature presence, origin and signature validity, in that order.
func (g *Guard) Verify(rawBody []byte, signature, providerID, ip string) error {
	if strings.TrimSpace(signature) == "" {
		return &RejectionError{Reason: ReasonMissingSignature, err: apperrors.ErrUnauthorized}
	}
	if !g.ipAllowed(ip) {
		return &RejectionError{Reason: ReasonIPNotAllowed, err: apperrors.ErrForbidden}
	}
	if providerID != "" && !strings.EqualFold(providerID, g.provider.ID()) {
		return &RejectionError{Reason: ReasonInvalidSignature, err: apperrors.ErrUnauthorized}
	}
	if !g.provider.VerifyWebhook(rawBody, signature) {
		return &RejectionError{Reason: ReasonInvalidSignature, err: apperrors.ErrUnauthorized}
	}
	return nil
}

func (g *Guard) ipAllowed(ip string) bool {
	if len(g.allow) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range g.allow {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware rejects unauthenticated webhooks with 401/403 and restores the body for the handler.
func (g *Guard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			body, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
					Error: "cannot read request body",
					Code:  "INVALID_REQUEST",
				})
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			ip := c.RealIP()
			if err := g.Verify(body, req.Header.Get(g.provider.SignatureHeader()), req.Header.Get(ProviderHeader), ip); err != nil {
				reason := err.Error()
				g.logger.Warn().
					Str("event", "webhook_rejected").
					Str("reason", reason).
					Str("ip", ip).
					Str("provider", g.provider.ID()).
					Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
					Msg("webhook rejected")
				httpErr := apperrors.MapErrorToHTTP(err)
				return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			return next(c)
		}
	}
}
