package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	apiKeyBytes    = 16
	apiSecretBytes = 32
)

// Admin operations manage tenant sites and the ledger out of band. They are
// reached through the command/query surface, never through the tenant API.

type RegisterSiteRequest struct {
	URL  string
	Name string
}

// RegisterSite provisions a new tenant site with freshly generated
// credentials. The api_secret is returned exactly once, here.
func (s *Service) RegisterSite(ctx context.Context, req RegisterSiteRequest) (TenantSite, error) {
	siteURL := strings.TrimSpace(req.URL)
	if siteURL == "" {
		return TenantSite{}, s.badInput("core: site url is required")
	}
	if !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		return TenantSite{}, s.badInput("core: site url must be an http(s) url")
	}

	apiKey, err := generateCredential(apiKeyBytes)
	if err != nil {
		return TenantSite{}, s.mapError(err)
	}
	apiSecret, err := generateCredential(apiSecretBytes)
	if err != nil {
		return TenantSite{}, s.mapError(err)
	}

	now := time.Now().UTC()
	site, err := s.siteStore.Create(ctx, TenantSite{
		ID:        uuid.NewString(),
		URL:       siteURL,
		Name:      strings.TrimSpace(req.Name),
		APIKey:    apiKey,
		APISecret: apiSecret,
		Status:    SiteStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return TenantSite{}, s.mapError(err)
	}

	s.logInfo(ctx, "tenant site registered", map[string]any{
		"site_id": site.ID,
		"url":     site.URL,
	})
	return site, nil
}

// UpdateSiteRequest carries a partial update. Blank fields keep the stored
// value; credentials rotate through RotateSiteCredentials only.
type UpdateSiteRequest struct {
	ID     string
	URL    string
	Name   string
	Status SiteStatus
}

func (s *Service) UpdateSite(ctx context.Context, req UpdateSiteRequest) (TenantSite, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return TenantSite{}, s.badInput("core: site id is required")
	}

	site, err := s.siteStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return TenantSite{}, s.notFound("core: tenant site not found")
		}
		return TenantSite{}, s.mapError(err)
	}

	if url := strings.TrimSpace(req.URL); url != "" {
		site.URL = url
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		site.Name = name
	}
	if req.Status != "" {
		switch req.Status {
		case SiteStatusActive, SiteStatusInactive:
			site.Status = req.Status
		default:
			return TenantSite{}, s.badInput(fmt.Sprintf("core: invalid site status %q", req.Status))
		}
	}
	site.UpdatedAt = time.Now().UTC()

	updated, err := s.siteStore.Update(ctx, site)
	if err != nil {
		return TenantSite{}, s.mapError(err)
	}
	return updated, nil
}

// RotateSiteCredentials replaces both the api_key and api_secret. The old
// key stops authenticating as soon as the update lands.
func (s *Service) RotateSiteCredentials(ctx context.Context, id string) (TenantSite, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return TenantSite{}, s.badInput("core: site id is required")
	}

	site, err := s.siteStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return TenantSite{}, s.notFound("core: tenant site not found")
		}
		return TenantSite{}, s.mapError(err)
	}

	apiKey, err := generateCredential(apiKeyBytes)
	if err != nil {
		return TenantSite{}, s.mapError(err)
	}
	apiSecret, err := generateCredential(apiSecretBytes)
	if err != nil {
		return TenantSite{}, s.mapError(err)
	}
	site.APIKey = apiKey
	site.APISecret = apiSecret
	site.UpdatedAt = time.Now().UTC()

	updated, err := s.siteStore.Update(ctx, site)
	if err != nil {
		return TenantSite{}, s.mapError(err)
	}

	s.logInfo(ctx, "tenant site credentials rotated", map[string]any{
		"site_id": site.ID,
	})
	return updated, nil
}

func (s *Service) DeleteSite(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.badInput("core: site id is required")
	}
	if err := s.siteStore.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return s.notFound("core: tenant site not found")
		}
		return s.mapError(err)
	}
	return nil
}

func (s *Service) GetSite(ctx context.Context, id string) (TenantSite, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return TenantSite{}, s.badInput("core: site id is required")
	}
	site, err := s.siteStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return TenantSite{}, s.notFound("core: tenant site not found")
		}
		return TenantSite{}, s.mapError(err)
	}
	return site, nil
}

func (s *Service) ListSites(ctx context.Context) ([]TenantSite, error) {
	sites, err := s.siteStore.List(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return sites, nil
}

func (s *Service) FindTransaction(ctx context.Context, key TransactionKey) (Transaction, error) {
	if key.Empty() {
		return Transaction{}, s.badInput("core: transaction key is required")
	}
	tx, err := s.ledger.Find(ctx, key)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return Transaction{}, s.notFound("core: transaction not found")
		}
		return Transaction{}, s.mapError(err)
	}
	return tx, nil
}

// CancelTransaction moves a pending transaction to cancelled. No external
// operation produces this status; it exists for operator intervention on
// abandoned checkouts. A terminal row is left untouched, Applied=false.
func (s *Service) CancelTransaction(ctx context.Context, key TransactionKey, reason string) (TransitionResult, error) {
	if key.Empty() {
		return TransitionResult{}, s.badInput("core: transaction key is required")
	}
	result, err := s.ledger.Transition(ctx, key, TransactionStatusCancelled, nil)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return TransitionResult{}, s.notFound("core: transaction not found")
		}
		return TransitionResult{}, s.mapError(err)
	}
	s.logInfo(ctx, "transaction cancelled by operator", map[string]any{
		"site_id":         key.SiteID,
		"order_id":        key.OrderID,
		"paypal_order_id": key.PayPalOrderID,
		"reason":          reason,
		"applied":         result.Applied,
	})
	return result, nil
}

func generateCredential(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("core: credential generation failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
