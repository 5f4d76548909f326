package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Service is the proxy protocol handler. It authenticates each tenant
// operation, talks to the gateway, and records the outcome in the ledger.
// Gateway calls always happen before the ledger write; notification happens
// after, never interleaved with the atomic transition.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	siteStore       SiteStore
	ledger          TransactionLedger
	pendingOrders   PendingOrderStore
	gateway         Gateway
	notifier        Notifier
	verifier        SignatureVerifier
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := serviceBuilder{runtimeConfig: cfg}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("paypal-proxy", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("paypal-proxy"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		siteStore:       builder.siteStore,
		ledger:          builder.ledger,
		pendingOrders:   builder.pendingOrders,
		gateway:         builder.gateway,
		notifier:        builder.notifier,
		verifier:        builder.verifier,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s != nil && s.errorMapper != nil {
		if mapped := s.errorMapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}

func (s *Service) badInput(message string) error {
	return ensureProxyErrorEnvelope(
		s.errorFactory(message, goerrors.CategoryBadInput).
			WithTextCode(ProxyErrorBadInput),
	)
}

func (s *Service) unauthenticated(message string) error {
	return ensureProxyErrorEnvelope(
		s.errorFactory(message, goerrors.CategoryAuth).
			WithTextCode(ProxyErrorUnauthenticated),
	)
}

func (s *Service) notFound(message string) error {
	return ensureProxyErrorEnvelope(
		s.errorFactory(message, goerrors.CategoryNotFound).
			WithTextCode(ProxyErrorNotFound),
	)
}

// authenticate resolves the tenant and enforces the declared signature
// policy for the operation. With an optional policy the HMAC check runs
// only when the caller actually sent a signature; key existence still
// gates the request either way.
func (s *Service) authenticate(ctx context.Context, in VerifyInput) (TenantSite, error) {
	if strings.TrimSpace(in.APIKey) == "" {
		return TenantSite{}, s.unauthenticated("core: api key is required")
	}

	policy := s.config.PolicyFor(in.Operation)
	signaturePresent := strings.TrimSpace(in.Signature) != ""
	if policy == SignatureRequired || (policy == SignatureOptional && signaturePresent) {
		if s.verifier == nil {
			return TenantSite{}, s.unauthenticated("core: signature verifier is not configured")
		}
		site, err := s.verifier.Verify(ctx, in)
		if err != nil {
			return TenantSite{}, s.mapError(err)
		}
		return site, nil
	}

	site, err := s.siteStore.GetByAPIKey(ctx, strings.TrimSpace(in.APIKey))
	if err != nil {
		return TenantSite{}, s.unauthenticated("core: invalid api key")
	}
	if !site.Active() {
		return TenantSite{}, s.unauthenticated("core: invalid api key")
	}
	return site, nil
}

type TestConnectionRequest struct {
	APIKey    string
	SiteURL   string
	Timestamp int64
	Signature string
}

type TestConnectionResponse struct {
	SiteName string
	Message  string
}

// TestConnection confirms that the api_key maps to an active site. A URL
// mismatch is logged, not rejected: trust is anchored on the key.
func (s *Service) TestConnection(ctx context.Context, req TestConnectionRequest) (TestConnectionResponse, error) {
	startedAt := time.Now()
	site, err := s.authenticate(ctx, VerifyInput{
		APIKey:    req.APIKey,
		Timestamp: req.Timestamp,
		Signature: req.Signature,
		Payload:   req.SiteURL,
		Operation: OperationTestConnection,
	})
	defer func() {
		s.observeOperation(ctx, startedAt, OperationTestConnection, err, map[string]any{
			"site_id": site.ID,
		})
	}()
	if err != nil {
		return TestConnectionResponse{}, err
	}

	if claimed := strings.TrimSpace(req.SiteURL); claimed != "" && claimed != site.URL {
		s.logInfo(ctx, "site url mismatch in test connection", map[string]any{
			"site_id":     site.ID,
			"claimed_url": claimed,
			"stored_url":  site.URL,
		})
	}

	return TestConnectionResponse{
		SiteName: site.Name,
		Message:  "Connection successful",
	}, nil
}

type RegisterOrderRequest struct {
	APIKey     string
	Timestamp  int64
	Signature  string
	OrderID    string
	OrderTotal float64
	Currency   string
	SiteURL    string
	OrderData  []byte
}

type RegisterOrderResponse struct {
	OrderID string
}

// RegisterOrder stages the tenant's order context for the later PayPal
// order creation. Re-registration with the same (site, order_id) overwrites.
func (s *Service) RegisterOrder(ctx context.Context, req RegisterOrderRequest) (RegisterOrderResponse, error) {
	startedAt := time.Now()
	var err error
	site := TenantSite{}
	defer func() {
		s.observeOperation(ctx, startedAt, OperationRegisterOrder, err, map[string]any{
			"site_id":  site.ID,
			"order_id": req.OrderID,
		})
	}()

	if strings.TrimSpace(req.OrderID) == "" {
		err = s.badInput("core: order_id is required")
		return RegisterOrderResponse{}, err
	}
	if req.OrderTotal <= 0 {
		err = s.badInput("core: order_total is required")
		return RegisterOrderResponse{}, err
	}
	if strings.TrimSpace(req.Currency) == "" {
		err = s.badInput("core: currency is required")
		return RegisterOrderResponse{}, err
	}

	site, err = s.authenticate(ctx, VerifyInput{
		APIKey:    req.APIKey,
		Timestamp: req.Timestamp,
		Signature: req.Signature,
		Payload:   req.OrderID + formatAmount(req.OrderTotal),
		Operation: OperationRegisterOrder,
	})
	if err != nil {
		return RegisterOrderResponse{}, err
	}

	if claimed := strings.TrimSpace(req.SiteURL); claimed != "" && claimed != site.URL {
		s.logInfo(ctx, "site url mismatch in order registration", map[string]any{
			"site_id":     site.ID,
			"claimed_url": claimed,
			"stored_url":  site.URL,
		})
	}

	now := time.Now().UTC()
	if putErr := s.pendingOrders.Put(ctx, PendingOrder{
		SiteID:    site.ID,
		OrderID:   strings.TrimSpace(req.OrderID),
		Total:     req.OrderTotal,
		Currency:  strings.ToUpper(strings.TrimSpace(req.Currency)),
		OrderData: req.OrderData,
		CreatedAt: now,
		ExpiresAt: now.Add(PendingOrderTTL),
	}); putErr != nil {
		err = s.mapError(putErr)
		return RegisterOrderResponse{}, err
	}

	return RegisterOrderResponse{OrderID: strings.TrimSpace(req.OrderID)}, nil
}

type CreatePayPalOrderRequest struct {
	APIKey    string
	Timestamp int64
	Signature string
	OrderID   string
	Amount    string
	Currency  string
	ReturnURL string
	CancelURL string
}

type CreatePayPalOrderResponse struct {
	PayPalOrderID string
	Status        string
	Links         []OrderLink
}

// CreatePayPalOrder creates the checkout order at the gateway and records a
// pending ledger row for it.
func (s *Service) CreatePayPalOrder(ctx context.Context, req CreatePayPalOrderRequest) (CreatePayPalOrderResponse, error) {
	startedAt := time.Now()
	var err error
	site := TenantSite{}
	ref := OrderRef{}
	defer func() {
		s.observeOperation(ctx, startedAt, OperationCreatePayPalOrder, err, map[string]any{
			"site_id":         site.ID,
			"order_id":        req.OrderID,
			"paypal_order_id": ref.ID,
		})
	}()

	if strings.TrimSpace(req.OrderID) == "" {
		err = s.badInput("core: order_id is required")
		return CreatePayPalOrderResponse{}, err
	}
	amount, parseErr := strconv.ParseFloat(strings.TrimSpace(req.Amount), 64)
	if parseErr != nil || amount <= 0 {
		err = s.badInput("core: amount is required")
		return CreatePayPalOrderResponse{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		err = s.badInput("core: currency is required")
		return CreatePayPalOrderResponse{}, err
	}

	// Signed payload is order_id followed by the amount exactly as sent.
	site, err = s.authenticate(ctx, VerifyInput{
		APIKey:    req.APIKey,
		Timestamp: req.Timestamp,
		Signature: req.Signature,
		Payload:   strings.TrimSpace(req.OrderID) + strings.TrimSpace(req.Amount),
		Operation: OperationCreatePayPalOrder,
	})
	if err != nil {
		return CreatePayPalOrderResponse{}, err
	}

	ref, err = s.gateway.CreateOrder(ctx, CreateOrderInput{
		Amount:      amount,
		Currency:    currency,
		ReferenceID: strings.TrimSpace(req.OrderID),
		ReturnURL:   strings.TrimSpace(req.ReturnURL),
		CancelURL:   strings.TrimSpace(req.CancelURL),
	})
	if err != nil {
		err = s.mapError(err)
		return CreatePayPalOrderResponse{}, err
	}

	if _, recordErr := s.ledger.RecordPending(ctx, Transaction{
		ID:            uuid.NewString(),
		SiteID:        site.ID,
		OrderID:       strings.TrimSpace(req.OrderID),
		PayPalOrderID: ref.ID,
		Amount:        amount,
		Currency:      currency,
		Status:        TransactionStatusPending,
		CreatedAt:     time.Now().UTC(),
	}); recordErr != nil {
		err = s.mapError(recordErr)
		return CreatePayPalOrderResponse{}, err
	}

	return CreatePayPalOrderResponse{
		PayPalOrderID: ref.ID,
		Status:        ref.Status,
		Links:         ref.Links,
	}, nil
}

type CapturePaymentRequest struct {
	APIKey        string
	Timestamp     int64
	Signature     string
	PayPalOrderID string
}

type CapturePaymentResponse struct {
	TransactionID string
	Status        string
}

// CapturePayment captures the approved order at the gateway, then resolves
// the pending ledger row to completed with the capture body as audit data.
// A missing pending row is logged, not fatal: the webhook may have resolved
// the transaction already.
func (s *Service) CapturePayment(ctx context.Context, req CapturePaymentRequest) (CapturePaymentResponse, error) {
	startedAt := time.Now()
	var err error
	site := TenantSite{}
	defer func() {
		s.observeOperation(ctx, startedAt, OperationCapturePayment, err, map[string]any{
			"site_id":         site.ID,
			"paypal_order_id": req.PayPalOrderID,
		})
	}()

	paypalOrderID := strings.TrimSpace(req.PayPalOrderID)
	if paypalOrderID == "" {
		err = s.badInput("core: paypal_order_id is required")
		return CapturePaymentResponse{}, err
	}

	site, err = s.authenticate(ctx, VerifyInput{
		APIKey:    req.APIKey,
		Timestamp: req.Timestamp,
		Signature: req.Signature,
		Payload:   paypalOrderID,
		Operation: OperationCapturePayment,
	})
	if err != nil {
		return CapturePaymentResponse{}, err
	}

	capture, captureErr := s.gateway.Capture(ctx, paypalOrderID)
	if captureErr != nil {
		err = s.mapError(captureErr)
		return CapturePaymentResponse{}, err
	}

	result, transitionErr := s.ledger.Transition(ctx, TransactionKey{
		SiteID:        site.ID,
		PayPalOrderID: paypalOrderID,
	}, TransactionStatusCompleted, capture.Raw)
	switch {
	case transitionErr != nil && errors.Is(transitionErr, ErrTransactionNotFound):
		s.logInfo(ctx, "no pending ledger row for captured order", map[string]any{
			"site_id":         site.ID,
			"paypal_order_id": paypalOrderID,
		})
	case transitionErr != nil:
		err = s.mapError(transitionErr)
		return CapturePaymentResponse{}, err
	case !result.Applied:
		s.logInfo(ctx, "capture observed an already resolved transaction", map[string]any{
			"site_id":         site.ID,
			"paypal_order_id": paypalOrderID,
			"status":          string(result.Transaction.Status),
		})
	}

	return CapturePaymentResponse{
		TransactionID: capture.CaptureID,
		Status:        capture.Status,
	}, nil
}

type VerifyPaymentRequest struct {
	APIKey        string
	Timestamp     int64
	Signature     string
	PayPalOrderID string
	OrderID       string
}

type VerifyPaymentResponse struct {
	Status        TransactionStatus
	TransactionID string
	PayerEmail    string
	PaymentMethod string
}

// VerifyPayment cross-checks the gateway's view of the order against the
// ledger. A pending row with a COMPLETED gateway order is self-healed to
// completed (covers a lost webhook); a terminal row is reported as-is and
// never flipped.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (VerifyPaymentResponse, error) {
	startedAt := time.Now()
	var err error
	site := TenantSite{}
	defer func() {
		s.observeOperation(ctx, startedAt, OperationVerifyPayment, err, map[string]any{
			"site_id":         site.ID,
			"order_id":        req.OrderID,
			"paypal_order_id": req.PayPalOrderID,
		})
	}()

	paypalOrderID := strings.TrimSpace(req.PayPalOrderID)
	orderID := strings.TrimSpace(req.OrderID)
	if paypalOrderID == "" || orderID == "" {
		err = s.badInput("core: paypal_order_id and order_id are required")
		return VerifyPaymentResponse{}, err
	}

	site, err = s.authenticate(ctx, VerifyInput{
		APIKey:    req.APIKey,
		Timestamp: req.Timestamp,
		Signature: req.Signature,
		Payload:   paypalOrderID + orderID,
		Operation: OperationVerifyPayment,
	})
	if err != nil {
		return VerifyPaymentResponse{}, err
	}

	details, detailsErr := s.gateway.GetOrder(ctx, paypalOrderID)
	if detailsErr != nil {
		err = s.mapError(detailsErr)
		return VerifyPaymentResponse{}, err
	}
	if details.Status != "COMPLETED" {
		err = s.badInput("core: payment has not been completed")
		return VerifyPaymentResponse{}, err
	}

	key := TransactionKey{
		SiteID:        site.ID,
		OrderID:       orderID,
		PayPalOrderID: paypalOrderID,
	}
	tx, findErr := s.ledger.Find(ctx, key)
	if findErr != nil {
		if errors.Is(findErr, ErrTransactionNotFound) {
			err = s.notFound("core: transaction not found")
			return VerifyPaymentResponse{}, err
		}
		err = s.mapError(findErr)
		return VerifyPaymentResponse{}, err
	}

	status := tx.Status
	if status == TransactionStatusPending {
		result, transitionErr := s.ledger.Transition(ctx, key, TransactionStatusCompleted, details.Raw)
		if transitionErr != nil && !errors.Is(transitionErr, ErrTransactionNotFound) {
			err = s.mapError(transitionErr)
			return VerifyPaymentResponse{}, err
		}
		if transitionErr == nil {
			status = result.Transaction.Status
		}
	}

	return VerifyPaymentResponse{
		Status:        status,
		TransactionID: details.CaptureID,
		PayerEmail:    details.PayerEmail,
		PaymentMethod: "paypal",
	}, nil
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
