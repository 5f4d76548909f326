package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// SiteStore is the credential store: lookup for the protocol core, CRUD for
// admin tooling only.
type SiteStore interface {
	// GetByAPIKey resolves an active tenant site. Inactive sites are not
	// returned; callers treat a miss as an unknown key.
	GetByAPIKey(ctx context.Context, apiKey string) (TenantSite, error)
	GetByID(ctx context.Context, id string) (TenantSite, error)
	Create(ctx context.Context, site TenantSite) (TenantSite, error)
	Update(ctx context.Context, site TenantSite) (TenantSite, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]TenantSite, error)
}

// TransitionResult reports what a ledger transition observed. When the row
// was already terminal the transition is a no-op and Applied is false;
// Transaction carries the winner's state either way.
type TransitionResult struct {
	Transaction Transaction
	Applied     bool
}

// TransactionLedger is the single source of truth for transaction state.
// Implementations must serialize transitions per identity tuple so racing
// completion signals produce exactly one winner.
type TransactionLedger interface {
	// RecordPending upserts on (site_id, order_id, paypal_order_id):
	// an existing row is refreshed and forced back to pending, re-attempt
	// semantics; otherwise a new pending row is inserted.
	RecordPending(ctx context.Context, tx Transaction) (Transaction, error)
	// Transition moves the unique matching pending row to a terminal
	// status. A terminal row yields Applied=false with the existing state;
	// a missing row yields ErrTransactionNotFound.
	Transition(ctx context.Context, key TransactionKey, to TransactionStatus, data []byte) (TransitionResult, error)
	Find(ctx context.Context, key TransactionKey) (Transaction, error)
}

type PendingOrderStore interface {
	Put(ctx context.Context, order PendingOrder) error
	Get(ctx context.Context, siteID string, orderID string) (PendingOrder, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// OrderRef is the gateway's handle for a freshly created checkout order.
type OrderRef struct {
	ID     string
	Status string
	Links  []OrderLink
}

type OrderLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type CaptureResult struct {
	CaptureID string
	Status    string
	Raw       []byte
}

type OrderDetails struct {
	ID         string
	Status     string
	CaptureID  string
	PayerEmail string
	Raw        []byte
}

type CreateOrderInput struct {
	Amount      float64
	Currency    string
	ReferenceID string
	ReturnURL   string
	CancelURL   string
}

// Gateway encapsulates every PayPal HTTP interaction. Network failures and
// non-success responses both surface as *paypal.GatewayError so callers
// need one error path.
type Gateway interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (OrderRef, error)
	Capture(ctx context.Context, orderID string) (CaptureResult, error)
	GetOrder(ctx context.Context, orderID string) (OrderDetails, error)
}

// Notifier delivers the one-way signed callback to the tenant's endpoint.
// Delivery is best effort; the ledger is authoritative regardless.
type Notifier interface {
	Notify(ctx context.Context, site TenantSite, tx Transaction, status TransactionStatus, detail string) error
}

// VerifyInput carries the authentication material presented with a tenant
// request. Payload is the per-endpoint signed concatenation decided by the
// caller, e.g. order_id+amount for order creation.
type VerifyInput struct {
	APIKey    string
	Timestamp int64
	Signature string
	Payload   string
	Operation string
}

// SignatureVerifier authenticates inbound tenant requests against the
// credential store. Pure check, no side effects.
type SignatureVerifier interface {
	Verify(ctx context.Context, in VerifyInput) (TenantSite, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}
