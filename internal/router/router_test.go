package router

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardauth/internal/auth"
	"cardauth/internal/config"
	"cardauth/internal/guard"
	"cardauth/internal/handler"
	"cardauth/internal/model"
	"cardauth/internal/provider"
	"cardauth/internal/service"
)

const (
	webhookSecret = "webhook-secret"
	jwtSecret     = "jwt-secret"
)

type stubAuthorizer struct{}

func (stubAuthorizer) Authorize(context.Context, model.AuthorizationRequest) service.Decision {
	return service.Decision{Outcome: service.OutcomeDeclined, Reason: model.DeclineCardNotFound, Message: "Card not found"}
}

type stubCards struct{}

func (stubCards) GetCard(_ context.Context, id uuid.UUID) (*model.Card, error) {
	return &model.Card{ID: id, Last4: "4242", Status: model.CardStatusActive}, nil
}

func (stubCards) ListTransactions(context.Context, uuid.UUID, int) ([]model.CardTransaction, error) {
	return nil, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	return newServerWith(t, &config.Config{JWTSecret: jwtSecret}, nil)
}

func newServerWith(t *testing.T, cfg *config.Config, allowlist []string) *echo.Echo {
	t.Helper()
	revocations := auth.NewRevocationStore(&memCache{data: map[string][]byte{}})
	e := echo.New()
	g, err := guard.New(provider.NewLocal(webhookSecret, nil), allowlist, zerolog.Nop())
	require.NoError(t, err)

	err = Register(
		e,
		cfg,
		zerolog.Nop(),
		g,
		revocations,
		handler.NewAuthorizationHandler(stubAuthorizer{}, time.Second, zerolog.Nop()),
		handler.NewCardHandler(stubCards{}),
		handler.NewTokenHandler(revocations),
	)
	require.NoError(t, err)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(newServer(t), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestWebhookAuthorize(t *testing.T) {
	body := `{"cardId":"` + uuid.NewString() + `","amount":12.5,"currency":"USD","merchantName":"Corner Bistro","merchantCountry":"US","mcc":"5812"}`
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	valid := hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name      string
		signature string
		status    int
		contains  string
	}{
		{name: "missing signature", status: http.StatusUnauthorized, contains: "UNAUTHORIZED"},
		{name: "wrong signature", signature: strings.Repeat("0", 64), status: http.StatusUnauthorized, contains: "UNAUTHORIZED"},
		{name: "valid signature", signature: valid, status: http.StatusOK, contains: `"declineReason":"CARD_NOT_FOUND"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/authorize", strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.signature != "" {
				req.Header.Set("X-Webhook-Signature", tt.signature)
			}

			rec := serve(newServer(t), req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestWebhookOrigin(t *testing.T) {
	body := `{"cardId":"` + uuid.NewString() + `","amount":12.5,"currency":"USD","merchantName":"Corner Bistro","merchantCountry":"US","mcc":"5812"}`
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	signature := hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		forwarded  string
		realIP     string
		status     int
	}{
		{name: "allowlisted peer", remoteAddr: "10.1.2.3:4444", status: http.StatusOK},
		{name: "spoofed forwarded-for from direct client", remoteAddr: "203.0.113.5:4444", forwarded: "10.9.9.9", status: http.StatusForbidden},
		{name: "spoofed real-ip from direct client", remoteAddr: "203.0.113.5:4444", realIP: "10.9.9.9", status: http.StatusForbidden},
		{name: "forwarded by trusted proxy", trusted: []string{"192.0.2.0/24"}, remoteAddr: "192.0.2.10:4444", forwarded: "10.9.9.9", status: http.StatusOK},
		{name: "trusted proxy forwarding outsider", trusted: []string{"192.0.2.0/24"}, remoteAddr: "192.0.2.10:4444", forwarded: "10.9.9.9, 203.0.113.5", status: http.StatusForbidden},
		{name: "untrusted peer with proxies configured", trusted: []string{"192.0.2.0/24"}, remoteAddr: "203.0.113.5:4444", forwarded: "10.9.9.9", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{JWTSecret: jwtSecret, TrustedProxies: tt.trusted}
			e := newServerWith(t, cfg, []string{"10.0.0.0/8"})

			req := httptest.NewRequest(http.MethodPost, "/webhooks/authorize", strings.NewReader(body))
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req.Header.Set("X-Webhook-Signature", signature)
			if tt.forwarded != "" {
				req.Header.Set(echo.HeaderXForwardedFor, tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set(echo.HeaderXRealIP, tt.realIP)
			}

			rec := serve(e, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRegister_RejectsBadTrustedProxy(t *testing.T) {
	revocations := auth.NewRevocationStore(&memCache{data: map[string][]byte{}})
	g, err := guard.New(provider.NewLocal(webhookSecret, nil), nil, zerolog.Nop())
	require.NoError(t, err)

	err = Register(
		echo.New(),
		&config.Config{JWTSecret: jwtSecret, TrustedProxies: []string{"not-an-ip"}},
		zerolog.Nop(),
		g,
		revocations,
		handler.NewAuthorizationHandler(stubAuthorizer{}, time.Second, zerolog.Nop()),
		handler.NewCardHandler(stubCards{}),
		handler.NewTokenHandler(revocations),
	)

	assert.Error(t, err)
}

func TestSecuredRoutes(t *testing.T) {
	signed, err := auth.NewJWTService(jwtSecret).Issue("ops@example.com", auth.RoleAuditor, time.Hour)
	require.NoError(t, err)
	foreign, err := auth.NewJWTService("not-the-secret").Issue("ops@example.com", auth.RoleAuditor, time.Hour)
	require.NoError(t, err)

	id := uuid.NewString()
	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{name: "card without token", path: "/api/cards/" + id, status: http.StatusUnauthorized},
		{name: "card with foreign token", path: "/api/cards/" + id, auth: "Bearer " + foreign, status: http.StatusUnauthorized},
		{name: "card with token", path: "/api/cards/" + id, auth: "Bearer " + signed, status: http.StatusOK},
		{name: "transactions with token", path: "/api/cards/" + id + "/transactions?limit=5", auth: "Bearer " + signed, status: http.StatusOK},
		{name: "claims", path: "/api/me", auth: "Bearer " + signed, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.auth)
			}

			rec := serve(newServer(t), req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRevokedTokenIsRejected(t *testing.T) {
	signed, err := auth.NewJWTService(jwtSecret).Issue("ops@example.com", auth.RoleOperator, time.Hour)
	require.NoError(t, err)
	e := newServer(t)

	request := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed)
		return serve(e, req)
	}

	me := request(http.MethodGet, "/api/me")
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"subject":"ops@example.com"`)

	assert.Equal(t, http.StatusNoContent, request(http.MethodPost, "/api/tokens/revoke").Code)
	assert.Equal(t, http.StatusUnauthorized, request(http.MethodGet, "/api/me").Code)
}
