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

// PendingOrderStore holds the short-lived checkout staging rows, keyed by
// (site_id, order_id). Put replaces any previous registration for the key.
type PendingOrderStore struct {
	db   *bun.DB
	repo repository.Repository[*pendingOrderRecord]
}

func NewPendingOrderStore(db *bun.DB) (*PendingOrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*pendingOrderRecord](db, pendingOrderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid pending order repository wiring: %w", err)
		}
	}
	return &PendingOrderStore{db: db, repo: repo}, nil
}

func (s *PendingOrderStore) Put(ctx context.Context, order core.PendingOrder) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: pending order store is not configured")
	}
	siteID := strings.TrimSpace(order.SiteID)
	orderID := strings.TrimSpace(order.OrderID)
	if siteID == "" || orderID == "" {
		return fmt.Errorf("sqlstore: pending order site id and order id are required")
	}

	now := time.Now().UTC()
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	expiresAt := order.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(core.PendingOrderTTL)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &pendingOrderRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.site_id = ?", siteID).
			Where("?TableAlias.order_id = ?", orderID).
			Limit(1).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if errors.Is(err, sql.ErrNoRows) {
			record := &pendingOrderRecord{
				ID:        uuid.NewString(),
				SiteID:    siteID,
				OrderID:   orderID,
				Total:     order.Total,
				Currency:  strings.ToUpper(strings.TrimSpace(order.Currency)),
				OrderData: append([]byte(nil), order.OrderData...),
				CreatedAt: createdAt,
				ExpiresAt: expiresAt,
			}
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}

		existing.Total = order.Total
		existing.Currency = strings.ToUpper(strings.TrimSpace(order.Currency))
		existing.OrderData = append([]byte(nil), order.OrderData...)
		existing.CreatedAt = createdAt
		existing.ExpiresAt = expiresAt
		_, updateErr := tx.NewUpdate().Model(existing).WherePK().Exec(ctx)
		return updateErr
	})
}

func (s *PendingOrderStore) Get(ctx context.Context, siteID string, orderID string) (core.PendingOrder, error) {
	if s == nil || s.db == nil {
		return core.PendingOrder{}, fmt.Errorf("sqlstore: pending order store is not configured")
	}
	record := &pendingOrderRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.site_id = ?", strings.TrimSpace(siteID)).
		Where("?TableAlias.order_id = ?", strings.TrimSpace(orderID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.PendingOrder{}, core.ErrPendingOrderNotFound
		}
		return core.PendingOrder{}, err
	}
	return record.toDomain(), nil
}

// DeleteExpired removes every row whose expires_at is strictly before now
// and reports how many were swept. A row at exactly expires_at is not yet
// expired, matching core.PendingOrder.Expired.
func (s *PendingOrderStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: pending order store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*pendingOrderRecord)(nil)).
		Where("expires_at < ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

var _ core.PendingOrderStore = (*PendingOrderStore)(nil)
