package provider

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"cardauth/internal/repository"
)

// Anchor authenticates webhooks the way the Anchor BaaS platform signs them:
// a base64 HMAC-SHA1 digest, or a comma-separated list that may include "sha256=<hex>".
type Anchor struct {
	mirror
	secret []byte
}

// NewAnchor creates the Anchor provider.
func NewAnchor(secret string, cards repository.CardRepository) *Anchor {
	return &Anchor{mirror: mirror{cards: cards}, secret: []byte(secret)}
}

func (p *Anchor) ID() string { return "anchor" }

func (p *Anchor) SignatureHeader() string { return "X-Anchor-Signature" }

func (p *Anchor) VerifyWebhook(rawBody []byte, signature string) bool {
	if len(p.secret) == 0 {
		return false
	}

	sha1Mac := hmac.New(sha1.New, p.secret)
	sha1Mac.Write(rawBody)
	sha1Expected := sha1Mac.Sum(nil)

	sha256Mac := hmac.New(sha256.New, p.secret)
	sha256Mac.Write(rawBody)
	sha256Expected := sha256Mac.Sum(nil)

	for _, part := range strings.Split(signature, ",") {
		sig := strings.TrimSpace(part)
		lower := strings.ToLower(sig)
		switch {
		case sig == "":
			continue
		case strings.HasPrefix(lower, "sha256="):
			if provided, err := hex.DecodeString(sig[len("sha256="):]); err == nil && hmac.Equal(provided, sha256Expected) {
				return true
			}
		case strings.HasPrefix(lower, "sha1="):
			if provided, err := base64.StdEncoding.DecodeString(sig[len("sha1="):]); err == nil && hmac.Equal(provided, sha1Expected) {
				return true
			}
		default:
			if provided, err := base64.StdEncoding.DecodeString(sig); err == nil && hmac.Equal(provided, sha1Expected) {
				return true
			}
		}
	}
	return false
}
