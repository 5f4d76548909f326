package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-paypal-proxy/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SiteStore persists tenant site registrations. Lookup by api_key is the
// hot path; everything else serves admin tooling.
type SiteStore struct {
	db   *bun.DB
	repo repository.Repository[*tenantSiteRecord]
}

func NewSiteStore(db *bun.DB) (*SiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*tenantSiteRecord](db, tenantSiteHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid tenant site repository wiring: %w", err)
		}
	}
	return &SiteStore{db: db, repo: repo}, nil
}

// GetByAPIKey resolves an active site. Inactive and unknown keys both map
// to core.ErrSiteNotFound so callers cannot distinguish them.
func (s *SiteStore) GetByAPIKey(ctx context.Context, apiKey string) (core.TenantSite, error) {
	if s == nil || s.db == nil {
		return core.TenantSite{}, fmt.Errorf("sqlstore: site store is not configured")
	}
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return core.TenantSite{}, core.ErrSiteNotFound
	}

	record := &tenantSiteRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.api_key = ?", trimmed).
		Where("?TableAlias.status = ?", string(core.SiteStatusActive)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TenantSite{}, core.ErrSiteNotFound
		}
		return core.TenantSite{}, err
	}
	return record.toDomain(), nil
}

func (s *SiteStore) GetByID(ctx context.Context, id string) (core.TenantSite, error) {
	if s == nil || s.repo == nil {
		return core.TenantSite{}, fmt.Errorf("sqlstore: site store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TenantSite{}, core.ErrSiteNotFound
		}
		return core.TenantSite{}, err
	}
	return record.toDomain(), nil
}

func (s *SiteStore) Create(ctx context.Context, site core.TenantSite) (core.TenantSite, error) {
	if s == nil || s.repo == nil {
		return core.TenantSite{}, fmt.Errorf("sqlstore: site store is not configured")
	}
	if err := site.Validate(); err != nil {
		return core.TenantSite{}, err
	}
	if strings.TrimSpace(site.ID) == "" {
		site.ID = uuid.NewString()
	}

	record := newTenantSiteRecord(site, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.TenantSite{}, err
	}
	return created.toDomain(), nil
}

func (s *SiteStore) Update(ctx context.Context, site core.TenantSite) (core.TenantSite, error) {
	if s == nil || s.repo == nil {
		return core.TenantSite{}, fmt.Errorf("sqlstore: site store is not configured")
	}
	trimmedID := strings.TrimSpace(site.ID)
	if trimmedID == "" {
		return core.TenantSite{}, fmt.Errorf("sqlstore: site id is required")
	}
	if err := site.Validate(); err != nil {
		return core.TenantSite{}, err
	}

	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TenantSite{}, core.ErrSiteNotFound
		}
		return core.TenantSite{}, err
	}

	current.URL = strings.TrimSpace(site.URL)
	current.Name = strings.TrimSpace(site.Name)
	current.APIKey = strings.TrimSpace(site.APIKey)
	current.APISecret = site.APISecret
	current.Status = string(site.Status)
	current.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	if err != nil {
		return core.TenantSite{}, err
	}
	return updated.toDomain(), nil
}

func (s *SiteStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: site store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: site id is required")
	}
	result, err := s.db.NewDelete().
		Model((*tenantSiteRecord)(nil)).
		Where("id = ?", trimmedID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrSiteNotFound
	}
	return nil
}

func (s *SiteStore) List(ctx context.Context) ([]core.TenantSite, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: site store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.TenantSite, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ core.SiteStore = (*SiteStore)(nil)
