package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "cardauth/internal/errors"
	"cardauth/internal/model"
)

// MockCardRepository is a mock implementation of repository.CardRepository.
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Save(ctx context.Context, card *model.Card) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockCardRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockCardRepository) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockCardRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCardRepository) IncrementSpend(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	args := m.Called(ctx, id, amount, at)
	return args.Error(0)
}

var body = []byte(`{"cardId":"00000000-0000-0000-0000-000000000001","amount":12.5}`)

func sha256Hex(secret string, b []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(b)
	return hex.EncodeToString(mac.Sum(nil))
}

func sha1Base64(secret string, b []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(b)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestNew(t *testing.T) {
	repo := new(MockCardRepository)

	p, err := New("local", "s", repo)
	require.NoError(t, err)
	assert.Equal(t, "local", p.ID())

	p, err = New("anchor", "s", repo)
	require.NoError(t, err)
	assert.Equal(t, "anchor", p.ID())
	assert.Equal(t, "X-Anchor-Signature", p.SignatureHeader())

	_, err = New("acme", "s", repo)
	assert.ErrorIs(t, err, apperrors.ErrUnknownProvider)
}

func TestLocal_VerifyWebhook(t *testing.T) {
	p := NewLocal("topsecret", nil)
	valid := sha256Hex("topsecret", body)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"bare hex", valid, true},
		{"prefixed hex", "sha256=" + valid, true},
		{"wrong secret", sha256Hex("other", body), false},
		{"not hex", "zzzz", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.VerifyWebhook(body, tt.signature))
		})
	}
}

func TestLocal_EmptySecretNeverVerifies(t *testing.T) {
	p := NewLocal("", nil)
	assert.False(t, p.VerifyWebhook(body, sha256Hex("", body)))
}

func TestAnchor_VerifyWebhook(t *testing.T) {
	p := NewAnchor("anchor-secret", nil)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"sha1 base64", sha1Base64("anchor-secret", body), true},
		{"sha1 prefixed", "sha1=" + sha1Base64("anchor-secret", body), true},
		{"sha256 in list", "t=123, sha256=" + sha256Hex("anchor-secret", body), true},
		{"tampered body", sha1Base64("anchor-secret", []byte("{}")), false},
		{"garbage", "not-a-signature", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.VerifyWebhook(body, tt.signature))
		})
	}
}

func TestMirror_DelegatesToRepository(t *testing.T) {
	repo := new(MockCardRepository)
	p := NewLocal("s", repo)
	ctx := context.Background()
	card := &model.Card{ID: uuid.New(), Status: model.CardStatusActive}

	repo.On("FindByID", ctx, card.ID).Return(card, nil)
	repo.On("Save", ctx, card).Return(nil)
	repo.On("Cancel", ctx, card.ID).Return(true, nil)

	got, err := p.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Same(t, card, got)

	require.NoError(t, p.UpdateCard(ctx, card))

	cancelled, err := p.CancelCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	repo.AssertExpectations(t)
}
