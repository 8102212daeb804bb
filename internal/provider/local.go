package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"cardauth/internal/repository"
)

// Local authenticates webhooks with a hex-encoded HMAC-SHA256 of the raw body.
type Local struct {
	mirror
	secret []byte
}

// NewLocal creates the in-house provider.
func NewLocal(secret string, cards repository.CardRepository) *Local {
	return &Local{mirror: mirror{cards: cards}, secret: []byte(secret)}
}

func (p *Local) ID() string { return "local" }

func (p *Local) SignatureHeader() string { return "X-Webhook-Signature" }

// VerifyWebhook accepts the bare hex digest or a "sha256=" prefixed one.
func (p *Local) VerifyWebhook(rawBody []byte, signature string) bool {
	if len(p.secret) == 0 {
		return false
	}
	sig := strings.TrimSpace(signature)
	sig = strings.TrimPrefix(strings.TrimPrefix(sig, "sha256="), "SHA256=")
	provided, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(rawBody)
	return hmac.Equal(provided, mac.Sum(nil))
}
