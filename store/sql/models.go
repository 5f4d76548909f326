package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type tenantSiteRecord struct {
	bun.BaseModel `bun:"table:tenant_sites,alias:ts"`

	ID        string    `bun:"id,pk"`
	URL       string    `bun:"url,notnull"`
	Name      string    `bun:"name"`
	APIKey    string    `bun:"api_key,notnull"`
	APISecret string    `bun:"api_secret,notnull"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type transactionRecord struct {
	bun.BaseModel `bun:"table:transaction_log,alias:tl"`

	ID              string     `bun:"id,pk"`
	SiteID          string     `bun:"site_id,notnull"`
	OrderID         string     `bun:"order_id,notnull"`
	PayPalOrderID   string     `bun:"paypal_order_id,notnull"`
	Amount          float64    `bun:"amount,notnull"`
	Currency        string     `bun:"currency,notnull"`
	Status          string     `bun:"status,notnull"`
	TransactionData []byte     `bun:"transaction_data"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	CompletedAt     *time.Time `bun:"completed_at,nullzero"`
}

type pendingOrderRecord struct {
	bun.BaseModel `bun:"table:pending_orders,alias:po"`

	ID        string    `bun:"id,pk"`
	SiteID    string    `bun:"site_id,notnull"`
	OrderID   string    `bun:"order_id,notnull"`
	Total     float64   `bun:"total,notnull"`
	Currency  string    `bun:"currency,notnull"`
	OrderData []byte    `bun:"order_data"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}
