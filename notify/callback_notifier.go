package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-paypal-proxy/auth"
	"github.com/goliatone/go-paypal-proxy/core"
)

const (
	DefaultCallbackPath = "/wc-api/wpppc_callback"

	defaultTimeout = 30 * time.Second
)

// HTTPDoer lets tests swap the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type CallbackNotifierConfig struct {
	HTTPClient HTTPDoer
	// CallbackPath is appended to the tenant site URL.
	CallbackPath string
	Timeout      time.Duration
	Logger       core.Logger
	Now          func() time.Time
}

// CallbackNotifier delivers transaction outcomes back to tenant sites as a
// signed GET. Tenants authenticate the callback with the same HMAC scheme
// they sign requests with, mirrored: the proxy signs with the site secret.
type CallbackNotifier struct {
	config CallbackNotifierConfig
}

func NewCallbackNotifier(cfg CallbackNotifierConfig) *CallbackNotifier {
	path := strings.TrimSpace(cfg.CallbackPath)
	if path == "" {
		path = DefaultCallbackPath
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &CallbackNotifier{
		config: CallbackNotifierConfig{
			HTTPClient:   httpClient,
			CallbackPath: path,
			Timeout:      timeout,
			Logger:       cfg.Logger,
			Now:          now,
		},
	}
}

// Notify sends one status callback. The hash covers timestamp, order id
// and status so a tenant can verify the caller holds its secret. detail is
// the capture id for completed payments and the denial reason otherwise.
func (n *CallbackNotifier) Notify(
	ctx context.Context,
	site core.TenantSite,
	tx core.Transaction,
	status core.TransactionStatus,
	detail string,
) error {
	if n == nil {
		return fmt.Errorf("notify: notifier is not configured")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(site.URL), "/")
	if baseURL == "" {
		return fmt.Errorf("notify: site url is required")
	}

	timestamp := n.config.Now().Unix()
	hash := auth.Sign(site.APISecret, timestamp, tx.OrderID+string(status), site.APIKey)

	params := url.Values{}
	params.Set("order_id", tx.OrderID)
	params.Set("status", string(status))
	params.Set("paypal_order_id", tx.PayPalOrderID)
	if status == core.TransactionStatusCompleted {
		params.Set("transaction_id", detail)
	} else {
		params.Set("reason", detail)
	}
	params.Set("timestamp", strconv.FormatInt(timestamp, 10))
	params.Set("hash", hash)

	endpoint := baseURL + n.config.CallbackPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("notify: build callback request: %w", err)
	}

	resp, err := n.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: callback delivery to %s failed: %w", baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notify: callback to %s returned status %d", baseURL, resp.StatusCode)
	}

	n.logInfo(ctx, "callback delivered",
		"site_id", site.ID,
		"order_id", tx.OrderID,
		"status", string(status),
	)
	return nil
}

func (n *CallbackNotifier) logInfo(ctx context.Context, message string, args ...any) {
	if n == nil || n.config.Logger == nil {
		return
	}
	logger := n.config.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Info(message, args...)
}

var _ core.Notifier = (*CallbackNotifier)(nil)
