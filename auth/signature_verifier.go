package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-paypal-proxy/core"
)

const defaultReplayWindow = time.Hour

var (
	ErrUnknownKey   = errors.New("auth: unknown api key")
	ErrBadSignature = errors.New("auth: invalid authentication signature")
	ErrExpired      = errors.New("auth: authentication timestamp has expired")
)

// SiteResolver is the slice of the credential store the verifier needs.
// Implementations return only active sites.
type SiteResolver interface {
	GetByAPIKey(ctx context.Context, apiKey string) (core.TenantSite, error)
}

type VerifierConfig struct {
	Sites        SiteResolver
	ReplayWindow time.Duration
	Now          func() time.Time
}

// Verifier validates inbound tenant requests against the shared secret of
// the tenant whose api_key was presented. The check is pure: callers decide
// what the signed payload means per endpoint.
type Verifier struct {
	config VerifierConfig
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	window := cfg.ReplayWindow
	if window <= 0 {
		window = defaultReplayWindow
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Verifier{
		config: VerifierConfig{
			Sites:        cfg.Sites,
			ReplayWindow: window,
			Now:          now,
		},
	}
}

// Verify authenticates one request. The expected signature is
// hex(HMAC-SHA256(secret, timestamp || payload || api_key)); comparison is
// constant time. A timestamp exactly at the replay window boundary passes.
func (v *Verifier) Verify(ctx context.Context, in core.VerifyInput) (core.TenantSite, error) {
	if v == nil || v.config.Sites == nil {
		return core.TenantSite{}, fmt.Errorf("auth: site resolver is not configured")
	}

	apiKey := strings.TrimSpace(in.APIKey)
	if apiKey == "" {
		return core.TenantSite{}, ErrUnknownKey
	}
	site, err := v.config.Sites.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return core.TenantSite{}, ErrUnknownKey
	}
	if !site.Active() {
		return core.TenantSite{}, ErrUnknownKey
	}

	now := v.config.Now().UTC()
	drift := now.Unix() - in.Timestamp
	if drift < 0 {
		drift = -drift
	}
	if time.Duration(drift)*time.Second > v.config.ReplayWindow {
		return core.TenantSite{}, ErrExpired
	}

	expected := Sign(site.APISecret, in.Timestamp, in.Payload, apiKey)
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(in.Signature))) {
		return core.TenantSite{}, ErrBadSignature
	}

	return site, nil
}

// Sign computes the wire signature for timestamp || payload || api_key.
// Shared with the callback notifier, which signs the mirrored construction
// for outbound notifications.
func Sign(secret string, timestamp int64, payload string, apiKey string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(payload))
	mac.Write([]byte(apiKey))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ core.SignatureVerifier = (*Verifier)(nil)
