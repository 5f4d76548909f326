package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-paypal-proxy/core"
)

func (r *tenantSiteRecord) toDomain() core.TenantSite {
	if r == nil {
		return core.TenantSite{}
	}
	return core.TenantSite{
		ID:        r.ID,
		URL:       r.URL,
		Name:      r.Name,
		APIKey:    r.APIKey,
		APISecret: r.APISecret,
		Status:    core.SiteStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func newTenantSiteRecord(site core.TenantSite, now time.Time) *tenantSiteRecord {
	status := strings.TrimSpace(string(site.Status))
	if status == "" {
		status = string(core.SiteStatusActive)
	}
	createdAt := site.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &tenantSiteRecord{
		ID:        strings.TrimSpace(site.ID),
		URL:       strings.TrimSpace(site.URL),
		Name:      strings.TrimSpace(site.Name),
		APIKey:    strings.TrimSpace(site.APIKey),
		APISecret: site.APISecret,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
}

func (r *transactionRecord) toDomain() core.Transaction {
	if r == nil {
		return core.Transaction{}
	}
	return core.Transaction{
		ID:              r.ID,
		SiteID:          r.SiteID,
		OrderID:         r.OrderID,
		PayPalOrderID:   r.PayPalOrderID,
		Amount:          r.Amount,
		Currency:        r.Currency,
		Status:          core.TransactionStatus(r.Status),
		CreatedAt:       r.CreatedAt,
		CompletedAt:     copyTimePointer(r.CompletedAt),
		TransactionData: append([]byte(nil), r.TransactionData...),
	}
}

func newTransactionRecord(tx core.Transaction, now time.Time) *transactionRecord {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &transactionRecord{
		ID:              strings.TrimSpace(tx.ID),
		SiteID:          strings.TrimSpace(tx.SiteID),
		OrderID:         strings.TrimSpace(tx.OrderID),
		PayPalOrderID:   strings.TrimSpace(tx.PayPalOrderID),
		Amount:          tx.Amount,
		Currency:        strings.ToUpper(strings.TrimSpace(tx.Currency)),
		Status:          string(tx.Status),
		TransactionData: append([]byte(nil), tx.TransactionData...),
		CreatedAt:       createdAt,
		CompletedAt:     copyTimePointer(tx.CompletedAt),
	}
}

func (r *pendingOrderRecord) toDomain() core.PendingOrder {
	if r == nil {
		return core.PendingOrder{}
	}
	return core.PendingOrder{
		SiteID:    r.SiteID,
		OrderID:   r.OrderID,
		Total:     r.Total,
		Currency:  r.Currency,
		OrderData: append([]byte(nil), r.OrderData...),
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
