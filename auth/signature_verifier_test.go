package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-paypal-proxy/core"
)

type staticSiteResolver struct {
	sites map[string]core.TenantSite
}

func (r staticSiteResolver) GetByAPIKey(_ context.Context, apiKey string) (core.TenantSite, error) {
	site, ok := r.sites[apiKey]
	if !ok {
		return core.TenantSite{}, core.ErrSiteNotFound
	}
	return site, nil
}

func testVerifier(now time.Time) *Verifier {
	return NewVerifier(VerifierConfig{
		Sites: staticSiteResolver{sites: map[string]core.TenantSite{
			"key_live": {
				ID:        "site_1",
				URL:       "https://shop.example.com",
				APIKey:    "key_live",
				APISecret: "secret_live",
				Status:    core.SiteStatusActive,
			},
			"key_disabled": {
				ID:        "site_2",
				URL:       "https://old.example.com",
				APIKey:    "key_disabled",
				APISecret: "secret_disabled",
				Status:    core.SiteStatusInactive,
			},
		}},
		Now: func() time.Time { return now },
	})
}

func TestVerifier_Verify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	verifier := testVerifier(now)

	timestamp := now.Unix()
	payload := "order_99" + "42.50"
	site, err := verifier.Verify(context.Background(), core.VerifyInput{
		APIKey:    "key_live",
		Timestamp: timestamp,
		Signature: Sign("secret_live", timestamp, payload, "key_live"),
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if site.ID != "site_1" {
		t.Fatalf("expected site_1, got %q", site.ID)
	}
}

func TestVerifier_UnknownKey(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	verifier := testVerifier(now)

	_, err := verifier.Verify(context.Background(), core.VerifyInput{
		APIKey:    "key_missing",
		Timestamp: now.Unix(),
		Signature: "deadbeef",
		Payload:   "payload",
	})
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestVerifier_InactiveSiteRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	verifier := testVerifier(now)

	timestamp := now.Unix()
	_, err := verifier.Verify(context.Background(), core.VerifyInput{
		APIKey:    "key_disabled",
		Timestamp: timestamp,
		Signature: Sign("secret_disabled", timestamp, "payload", "key_disabled"),
		Payload:   "payload",
	})
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey for inactive site, got %v", err)
	}
}

func TestVerifier_BadSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	verifier := testVerifier(now)

	timestamp := now.Unix()
	_, err := verifier.Verify(context.Background(), core.VerifyInput{
		APIKey:    "key_live",
		Timestamp: timestamp,
		Signature: Sign("wrong_secret", timestamp, "payload", "key_live"),
		Payload:   "payload",
	})
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifier_PayloadTamperRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	verifier := testVerifier(now)

	timestamp := now.Unix()
	_, err := verifier.Verify(context.Background(), core.VerifyInput{
		APIKey:    "key_live",
		Timestamp: timestamp,
		Signature: Sign("secret_live", timestamp, "order_99"+"42.50", "key_live"),
		Payload:   "order_99" + "999.00",
	})
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifier_ReplayWindowBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	verifier := testVerifier(now)

	cases := []struct {
		name      string
		timestamp int64
		expired   bool
	}{
		{name: "exactly at window", timestamp: now.Unix() - 3600, expired: false},
		{name: "one past window", timestamp: now.Unix() - 3601, expired: true},
		{name: "future within window", timestamp: now.Unix() + 3600, expired: false},
		{name: "future past window", timestamp: now.Unix() + 3601, expired: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), core.VerifyInput{
				APIKey:    "key_live",
				Timestamp: tc.timestamp,
				Signature: Sign("secret_live", tc.timestamp, "payload", "key_live"),
				Payload:   "payload",
			})
			if tc.expired {
				if !errors.Is(err, ErrExpired) {
					t.Fatalf("expected ErrExpired, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
		})
	}
}

func TestSign_IsDeterministicHex(t *testing.T) {
	first := Sign("secret", 1_700_000_000, "order_1"+"10.00", "key")
	second := Sign("secret", 1_700_000_000, "order_1"+"10.00", "key")
	if first != second {
		t.Fatalf("expected deterministic signature")
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}
