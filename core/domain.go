package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTransactionStatusTransition = errors.New("core: invalid transaction status transition")
	ErrTransactionNotFound                = errors.New("core: transaction not found")
	ErrSiteNotFound                       = errors.New("core: tenant site not found")
	ErrPendingOrderNotFound               = errors.New("core: pending order not found")
)

// PendingOrderTTL bounds how long a registered order context survives
// before a PayPal order is created against it.
const PendingOrderTTL = 24 * time.Hour

type SiteStatus string

const (
	SiteStatusActive   SiteStatus = "active"
	SiteStatusInactive SiteStatus = "inactive"
)

// TenantSite is a registered storefront permitted to use the proxy. The
// api_key is the public identifier presented on every request; the
// api_secret signs requests and callback notifications and is never
// disclosed to other tenants.
type TenantSite struct {
	ID        string
	URL       string
	Name      string
	APIKey    string
	APISecret string
	Status    SiteStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s TenantSite) Active() bool {
	return s.Status == SiteStatusActive
}

func (s TenantSite) Validate() error {
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("core: site url is required")
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("core: site api key is required")
	}
	if strings.TrimSpace(s.APISecret) == "" {
		return fmt.Errorf("core: site api secret is required")
	}
	switch s.Status {
	case SiteStatusActive, SiteStatusInactive, "":
	default:
		return fmt.Errorf("core: invalid site status %q", s.Status)
	}
	return nil
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether no further transition is possible. Pending is
// the only non-terminal state.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

// Transaction is one attempted payment owned by exactly one tenant site.
// The tuple (SiteID, OrderID, PayPalOrderID) identifies at most one logical
// transaction.
type Transaction struct {
	ID            string
	SiteID        string
	OrderID       string
	PayPalOrderID string
	Amount        float64
	Currency      string
	Status        TransactionStatus
	CreatedAt     time.Time
	CompletedAt   *time.Time
	// TransactionData holds the last gateway or webhook payload verbatim,
	// kept for audit.
	TransactionData []byte
}

// CanTransitionTo enforces status monotonicity: terminal states are final
// and cancelled is reachable only from pending.
func (t Transaction) CanTransitionTo(next TransactionStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransactionStatusTransition, next)
	}
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransactionStatusTransition, t.Status, next)
	}
	return nil
}

// TransactionKey identifies a ledger row by whichever identifying fields
// the caller has. PayPalOrderID is always known to completion signals;
// SiteID and OrderID narrow the match when available.
type TransactionKey struct {
	SiteID        string
	OrderID       string
	PayPalOrderID string
}

func (k TransactionKey) Empty() bool {
	return strings.TrimSpace(k.SiteID) == "" &&
		strings.TrimSpace(k.OrderID) == "" &&
		strings.TrimSpace(k.PayPalOrderID) == ""
}

// PendingOrder is the short-lived staging context a tenant registers before
// a PayPal order exists. Keyed by (SiteID, OrderID); expired rows are swept
// by a scheduled job.
type PendingOrder struct {
	SiteID    string
	OrderID   string
	Total     float64
	Currency  string
	OrderData []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (p PendingOrder) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
