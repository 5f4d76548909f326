package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-paypal-proxy/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const siteCacheKeyPrefix = "go-paypal-proxy::tenant_site::v1"

// CachedSiteStore fronts a SiteStore with a read-through cache on the
// api_key lookup, the path hit by every authenticated request. Writes go
// straight to the base store and invalidate the affected key.
type CachedSiteStore struct {
	base  core.SiteStore
	cache repositorycache.CacheService
}

func NewCachedSiteStore(base core.SiteStore, cacheService repositorycache.CacheService) (*CachedSiteStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base site store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: site cache service is required")
	}
	return &CachedSiteStore{base: base, cache: cacheService}, nil
}

// SiteCacheKey returns the deterministic cache key for api_key lookups:
// go-paypal-proxy::tenant_site::v1::<api_key> with the key URL-path escaped.
func SiteCacheKey(apiKey string) (string, error) {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: api key is required")
	}
	return siteCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedSiteStore) GetByAPIKey(ctx context.Context, apiKey string) (core.TenantSite, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.TenantSite{}, fmt.Errorf("sqlstore: cached site store is not configured")
	}
	cacheKey, err := SiteCacheKey(apiKey)
	if err != nil {
		return core.TenantSite{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.TenantSite, error) {
		return s.base.GetByAPIKey(ctx, apiKey)
	})
}

func (s *CachedSiteStore) GetByID(ctx context.Context, id string) (core.TenantSite, error) {
	if s == nil || s.base == nil {
		return core.TenantSite{}, fmt.Errorf("sqlstore: cached site store is not configured")
	}
	return s.base.GetByID(ctx, id)
}

func (s *CachedSiteStore) Create(ctx context.Context, site core.TenantSite) (core.TenantSite, error) {
	if s == nil || s.base == nil {
		return core.TenantSite{}, fmt.Errorf("sqlstore: cached site store is not configured")
	}
	created, err := s.base.Create(ctx, site)
	if err != nil {
		return core.TenantSite{}, err
	}
	if err := s.invalidate(ctx, created.APIKey); err != nil {
		return core.TenantSite{}, err
	}
	return created, nil
}

func (s *CachedSiteStore) Update(ctx context.Context, site core.TenantSite) (core.TenantSite, error) {
	if s == nil || s.base == nil {
		return core.TenantSite{}, fmt.Errorf("sqlstore: cached site store is not configured")
	}
	// The api_key may be rotating: drop both the previous and the new key.
	previous, err := s.base.GetByID(ctx, site.ID)
	if err != nil {
		return core.TenantSite{}, err
	}
	updated, err := s.base.Update(ctx, site)
	if err != nil {
		return core.TenantSite{}, err
	}
	if err := s.invalidate(ctx, previous.APIKey); err != nil {
		return core.TenantSite{}, err
	}
	if updated.APIKey != previous.APIKey {
		if err := s.invalidate(ctx, updated.APIKey); err != nil {
			return core.TenantSite{}, err
		}
	}
	return updated, nil
}

func (s *CachedSiteStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached site store is not configured")
	}
	previous, err := s.base.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, previous.APIKey)
}

func (s *CachedSiteStore) List(ctx context.Context) ([]core.TenantSite, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached site store is not configured")
	}
	return s.base.List(ctx)
}

func (s *CachedSiteStore) invalidate(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	cacheKey, err := SiteCacheKey(apiKey)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.SiteStore = (*CachedSiteStore)(nil)
