package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-paypal-proxy/core"
)

const (
	EnvironmentSandbox = "sandbox"
	EnvironmentLive    = "live"

	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	defaultTimeout = 30 * time.Second
)

// HTTPDoer lets tests swap the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	ClientID     string
	ClientSecret string
	// Environment selects the API host: "sandbox" (default) or "live".
	Environment string
	BaseURL     string
	HTTPClient  HTTPDoer
	Timeout     time.Duration
	Now         func() time.Time
}

// Client implements core.Gateway against the PayPal Orders v2 API. One
// instance serves every tenant; the proxy owns the PayPal account.
type Client struct {
	baseURL string
	http    HTTPDoer
	tokens  *TokenSource
}

func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = BaseURLFor(cfg.Environment)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		tokens: NewTokenSource(TokenSourceConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			BaseURL:      baseURL,
			HTTPClient:   httpClient,
			Now:          cfg.Now,
		}),
	}
}

func BaseURLFor(environment string) string {
	if strings.EqualFold(strings.TrimSpace(environment), EnvironmentLive) {
		return liveBaseURL
	}
	return sandboxBaseURL
}

// FormatAmount renders an amount the way the Orders API expects it:
// exactly two decimal places.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

type orderResponse struct {
	ID     string           `json:"id"`
	Status string           `json:"status"`
	Links  []core.OrderLink `json:"links"`
	Payer  struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateOrder creates a CAPTURE-intent order. Anything other than a 201
// with a non-empty order id is a failure.
func (c *Client) CreateOrder(ctx context.Context, in core.CreateOrderInput) (core.OrderRef, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"reference_id": in.ReferenceID,
				"amount": map[string]any{
					"currency_code": strings.ToUpper(strings.TrimSpace(in.Currency)),
					"value":         FormatAmount(in.Amount),
				},
			},
		},
	}
	if in.ReturnURL != "" || in.CancelURL != "" {
		payload["application_context"] = map[string]any{
			"return_url": in.ReturnURL,
			"cancel_url": in.CancelURL,
		}
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, nil)
	if err != nil {
		return core.OrderRef{}, err
	}
	if status != http.StatusCreated {
		return core.OrderRef{}, apiError("create_order", status, raw, "order creation failed")
	}

	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return core.OrderRef{}, transportError("create_order", err)
	}
	if strings.TrimSpace(parsed.ID) == "" {
		return core.OrderRef{}, apiError("create_order", status, raw, "order response missing id")
	}
	return core.OrderRef{
		ID:     parsed.ID,
		Status: parsed.Status,
		Links:  parsed.Links,
	}, nil
}

// Capture captures an approved order. Only a 201 counts as captured;
// anything else, including a 200, is a failure.
func (c *Client) Capture(ctx context.Context, orderID string) (core.CaptureResult, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	status, raw, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", map[string]any{}, headers)
	if err != nil {
		return core.CaptureResult{}, err
	}
	if status != http.StatusCreated {
		return core.CaptureResult{}, apiError("capture", status, raw, "payment capture failed")
	}

	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return core.CaptureResult{}, transportError("capture", err)
	}
	captureID, captureStatus := firstCapture(parsed)
	return core.CaptureResult{
		CaptureID: captureID,
		Status:    nonEmpty(captureStatus, parsed.Status),
		Raw:       raw,
	}, nil
}

// GetOrder fetches the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (core.OrderDetails, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, nil)
	if err != nil {
		return core.OrderDetails{}, err
	}
	if status != http.StatusOK {
		return core.OrderDetails{}, apiError("get_order", status, raw, "order lookup failed")
	}

	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return core.OrderDetails{}, transportError("get_order", err)
	}
	captureID, _ := firstCapture(parsed)
	return core.OrderDetails{
		ID:         parsed.ID,
		Status:     parsed.Status,
		CaptureID:  captureID,
		PayerEmail: parsed.Payer.EmailAddress,
		Raw:        raw,
	}, nil
}

// do runs one authorized API call. A 401 invalidates the cached token and
// retries once with a fresh one.
func (c *Client) do(ctx context.Context, method string, path string, body any, headers map[string]string) (int, []byte, error) {
	operation := strings.Trim(path, "/")
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return 0, nil, transportError(operation, err)
		}
	}

	status, raw, err := c.doOnce(ctx, method, path, encoded, headers)
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return c.doOnce(ctx, method, path, encoded, headers)
	}
	return status, raw, nil
}

func (c *Client) doOnce(ctx context.Context, method string, path string, body []byte, headers map[string]string) (int, []byte, error) {
	operation := strings.Trim(path, "/")
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, transportError(operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, transportError(operation, err)
	}
	return resp.StatusCode, raw, nil
}

func firstCapture(parsed orderResponse) (id string, status string) {
	for _, unit := range parsed.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			if strings.TrimSpace(capture.ID) != "" {
				return capture.ID, capture.Status
			}
		}
	}
	return "", ""
}

func nonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

var _ core.Gateway = (*Client)(nil)
