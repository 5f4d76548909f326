package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const tokenPath = "/v1/oauth2/token"

type TokenSourceConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	HTTPClient   HTTPDoer
	RenewBefore  time.Duration
	Now          func() time.Time
}

// TokenSource exchanges client credentials for an access token and caches
// it until shortly before expiry. Safe for concurrent use; at most one
// exchange is in flight at a time.
type TokenSource struct {
	config TokenSourceConfig

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenSource(cfg TokenSourceConfig) *TokenSource {
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = 2 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &TokenSource{
		config: TokenSourceConfig{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			BaseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			HTTPClient:   httpClient,
			RenewBefore:  renewBefore,
			Now:          now,
		},
	}
}

// Token returns a cached access token, exchanging credentials when the
// cache is empty or within RenewBefore of expiry.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Now()
	if s.token != "" && now.Before(s.expiresAt.Add(-s.config.RenewBefore)) {
		return s.token, nil
	}

	token, expiresIn, err := s.exchange(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiresAt = now.Add(expiresIn)
	return token, nil
}

// Invalidate drops the cached token so the next Token call re-exchanges.
// Called when the API rejects a token that has not reached its advertised
// expiry.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

func (s *TokenSource) exchange(ctx context.Context) (string, time.Duration, error) {
	if s.config.ClientID == "" || s.config.ClientSecret == "" {
		return "", 0, &GatewayError{
			Operation: "token",
			Message:   "client credentials are not configured",
		}
	}

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+tokenPath, body)
	if err != nil {
		return "", 0, transportError("token", err)
	}
	req.SetBasicAuth(s.config.ClientID, s.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.config.HTTPClient.Do(req)
	if err != nil {
		return "", 0, transportError("token", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, transportError("token", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, apiError("token", resp.StatusCode, raw, "token exchange failed")
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", 0, transportError("token", fmt.Errorf("decode token response: %w", err))
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", 0, apiError("token", resp.StatusCode, raw, "token response missing access_token")
	}

	expiresIn := time.Duration(parsed.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return parsed.AccessToken, expiresIn, nil
}
