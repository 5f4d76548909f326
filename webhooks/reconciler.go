package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-paypal-proxy/core"
	"github.com/goliatone/go-paypal-proxy/paypal"
)

// Result reports what one delivery did to the ledger.
type Result struct {
	EventType string
	Handled   bool
	Applied   bool
}

// Reconciler applies webhook capture outcomes to the transaction ledger.
// It is the out-of-band counterpart to the synchronous capture endpoint:
// both funnel into the same atomic transition, so whichever lands first
// wins and the other is a no-op.
type Reconciler struct {
	ledger   core.TransactionLedger
	sites    core.SiteStore
	notifier core.Notifier
	logger   core.Logger
}

type ReconcilerConfig struct {
	Ledger   core.TransactionLedger
	Sites    core.SiteStore
	Notifier core.Notifier
	Logger   core.Logger
}

func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("webhooks: transaction ledger is required")
	}
	if cfg.Sites == nil {
		return nil, fmt.Errorf("webhooks: site store is required")
	}
	return &Reconciler{
		ledger:   cfg.Ledger,
		sites:    cfg.Sites,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}, nil
}

// Handle applies one parsed event. Unknown event types and events for
// transactions this proxy never saw are acknowledged without error so the
// sender does not retry them.
func (r *Reconciler) Handle(ctx context.Context, event paypal.Event) (Result, error) {
	if r == nil || r.ledger == nil {
		return Result{}, fmt.Errorf("webhooks: reconciler is not configured")
	}

	switch typed := event.(type) {
	case paypal.CaptureCompletedEvent:
		return r.applyCapture(ctx, typed.EventType(), typed.PayPalOrderID,
			core.TransactionStatusCompleted, typed.CaptureID, typed.Raw)
	case paypal.CaptureDeniedEvent:
		return r.applyCapture(ctx, typed.EventType(), typed.PayPalOrderID,
			core.TransactionStatusFailed, typed.Reason, typed.Raw)
	case paypal.UnknownEvent:
		r.logInfo(ctx, "ignoring webhook event", "event_type", typed.Type)
		return Result{EventType: typed.Type}, nil
	default:
		return Result{}, fmt.Errorf("webhooks: unsupported event %T", event)
	}
}

func (r *Reconciler) applyCapture(
	ctx context.Context,
	eventType string,
	paypalOrderID string,
	status core.TransactionStatus,
	detail string,
	raw []byte,
) (Result, error) {
	if paypalOrderID == "" {
		r.logInfo(ctx, "webhook event carries no order id", "event_type", eventType)
		return Result{EventType: eventType}, nil
	}

	key := core.TransactionKey{PayPalOrderID: paypalOrderID}
	result, err := r.ledger.Transition(ctx, key, status, raw)
	if err != nil {
		if errors.Is(err, core.ErrTransactionNotFound) {
			// not ours: another system created this PayPal order
			r.logInfo(ctx, "webhook for unknown transaction",
				"event_type", eventType,
				"paypal_order_id", paypalOrderID,
			)
			return Result{EventType: eventType}, nil
		}
		return Result{}, err
	}

	if !result.Applied {
		r.logInfo(ctx, "webhook signal for already resolved transaction",
			"event_type", eventType,
			"paypal_order_id", paypalOrderID,
			"status", string(result.Transaction.Status),
		)
		return Result{EventType: eventType, Handled: true}, nil
	}

	r.logInfo(ctx, "webhook transitioned transaction",
		"event_type", eventType,
		"paypal_order_id", paypalOrderID,
		"site_id", result.Transaction.SiteID,
		"order_id", result.Transaction.OrderID,
		"status", string(status),
	)
	r.notifyTenant(ctx, result.Transaction, status, detail)
	return Result{EventType: eventType, Handled: true, Applied: true}, nil
}

// notifyTenant is best effort: the ledger already holds the outcome, the
// tenant can reconcile via verify-payment if delivery fails.
func (r *Reconciler) notifyTenant(ctx context.Context, tx core.Transaction, status core.TransactionStatus, detail string) {
	if r.notifier == nil {
		return
	}
	site, err := r.sites.GetByID(ctx, tx.SiteID)
	if err != nil {
		r.logError(ctx, "webhook notification skipped, site lookup failed",
			"site_id", tx.SiteID,
			"error", err.Error(),
		)
		return
	}
	if err := r.notifier.Notify(ctx, site, tx, status, detail); err != nil {
		r.logError(ctx, "webhook notification delivery failed",
			"site_id", tx.SiteID,
			"order_id", tx.OrderID,
			"error", err.Error(),
		)
	}
}

func (r *Reconciler) logInfo(ctx context.Context, message string, args ...any) {
	if r == nil || r.logger == nil {
		return
	}
	logger := r.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Info(message, args...)
}

func (r *Reconciler) logError(ctx context.Context, message string, args ...any) {
	if r == nil || r.logger == nil {
		return
	}
	logger := r.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error(message, args...)
}
