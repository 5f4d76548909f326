package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body,
// keyed with the shared webhook secret.
const SignatureHeader = "X-Proxy-Webhook-Signature"

var ErrInvalidWebhookSignature = errors.New("webhooks: invalid webhook signature")

// HMACVerifier authenticates webhook deliveries before any event is acted
// on. Unverified deliveries never reach the ledger.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, fmt.Errorf("webhooks: webhook secret is required")
	}
	return &HMACVerifier{secret: []byte(trimmed)}, nil
}

func (v *HMACVerifier) Verify(body []byte, signature string) error {
	if v == nil || len(v.secret) == 0 {
		return fmt.Errorf("webhooks: verifier is not configured")
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// Sign computes the delivery signature for a body. Used by tests and by
// operators wiring the forwarding relay.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
