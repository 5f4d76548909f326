package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fakeSiteStore struct {
	sites map[string]TenantSite

	created []TenantSite
	updated []TenantSite
	deleted []string
}

func newFakeSiteStore(sites ...TenantSite) *fakeSiteStore {
	store := &fakeSiteStore{sites: map[string]TenantSite{}}
	for _, site := range sites {
		store.sites[site.ID] = site
	}
	return store
}

func (s *fakeSiteStore) GetByAPIKey(_ context.Context, apiKey string) (TenantSite, error) {
	for _, site := range s.sites {
		if site.APIKey == apiKey && site.Active() {
			return site, nil
		}
	}
	return TenantSite{}, ErrSiteNotFound
}

func (s *fakeSiteStore) GetByID(_ context.Context, id string) (TenantSite, error) {
	site, ok := s.sites[id]
	if !ok {
		return TenantSite{}, ErrSiteNotFound
	}
	return site, nil
}

func (s *fakeSiteStore) Create(_ context.Context, site TenantSite) (TenantSite, error) {
	s.created = append(s.created, site)
	s.sites[site.ID] = site
	return site, nil
}

func (s *fakeSiteStore) Update(_ context.Context, site TenantSite) (TenantSite, error) {
	if _, ok := s.sites[site.ID]; !ok {
		return TenantSite{}, ErrSiteNotFound
	}
	s.updated = append(s.updated, site)
	s.sites[site.ID] = site
	return site, nil
}

func (s *fakeSiteStore) Delete(_ context.Context, id string) error {
	if _, ok := s.sites[id]; !ok {
		return ErrSiteNotFound
	}
	delete(s.sites, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeSiteStore) List(_ context.Context) ([]TenantSite, error) {
	out := make([]TenantSite, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, site)
	}
	return out, nil
}

type fakeLedger struct {
	recorded    []Transaction
	transitions []TransactionKey
	rows        map[string]Transaction

	transitionErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]Transaction{}}
}

func (l *fakeLedger) RecordPending(_ context.Context, tx Transaction) (Transaction, error) {
	tx.Status = TransactionStatusPending
	l.recorded = append(l.recorded, tx)
	l.rows[tx.PayPalOrderID] = tx
	return tx, nil
}

func (l *fakeLedger) Transition(_ context.Context, key TransactionKey, to TransactionStatus, data []byte) (TransitionResult, error) {
	l.transitions = append(l.transitions, key)
	if l.transitionErr != nil {
		return TransitionResult{}, l.transitionErr
	}
	tx, ok := l.rows[key.PayPalOrderID]
	if !ok {
		return TransitionResult{}, ErrTransactionNotFound
	}
	if tx.Status.Terminal() {
		return TransitionResult{Transaction: tx, Applied: false}, nil
	}
	tx.Status = to
	tx.TransactionData = data
	l.rows[key.PayPalOrderID] = tx
	return TransitionResult{Transaction: tx, Applied: true}, nil
}

func (l *fakeLedger) Find(_ context.Context, key TransactionKey) (Transaction, error) {
	tx, ok := l.rows[key.PayPalOrderID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

type fakePendingStore struct {
	orders map[string]PendingOrder
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{orders: map[string]PendingOrder{}}
}

func (s *fakePendingStore) Put(_ context.Context, order PendingOrder) error {
	s.orders[order.SiteID+"/"+order.OrderID] = order
	return nil
}

func (s *fakePendingStore) Get(_ context.Context, siteID string, orderID string) (PendingOrder, error) {
	order, ok := s.orders[siteID+"/"+orderID]
	if !ok {
		return PendingOrder{}, ErrPendingOrderNotFound
	}
	return order, nil
}

func (s *fakePendingStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

type fakeGateway struct {
	createFn func(ctx context.Context, in CreateOrderInput) (OrderRef, error)
	captureFn func(ctx context.Context, orderID string) (CaptureResult, error)
	getFn     func(ctx context.Context, orderID string) (OrderDetails, error)
}

func (g *fakeGateway) CreateOrder(ctx context.Context, in CreateOrderInput) (OrderRef, error) {
	if g.createFn == nil {
		return OrderRef{ID: "5O1", Status: "CREATED"}, nil
	}
	return g.createFn(ctx, in)
}

func (g *fakeGateway) Capture(ctx context.Context, orderID string) (CaptureResult, error) {
	if g.captureFn == nil {
		return CaptureResult{CaptureID: "3C6", Status: "COMPLETED", Raw: []byte(`{}`)}, nil
	}
	return g.captureFn(ctx, orderID)
}

func (g *fakeGateway) GetOrder(ctx context.Context, orderID string) (OrderDetails, error) {
	if g.getFn == nil {
		return OrderDetails{ID: orderID, Status: "COMPLETED", CaptureID: "3C6"}, nil
	}
	return g.getFn(ctx, orderID)
}

type fakeNotifier struct {
	notified int
}

func (n *fakeNotifier) Notify(context.Context, TenantSite, Transaction, TransactionStatus, string) error {
	n.notified++
	return nil
}

type fakeVerifier struct {
	site     TenantSite
	err      error
	payloads []string
}

func (v *fakeVerifier) Verify(_ context.Context, in VerifyInput) (TenantSite, error) {
	v.payloads = append(v.payloads, in.Payload)
	if v.err != nil {
		return TenantSite{}, v.err
	}
	return v.site, nil
}

func activeTestSite() TenantSite {
	return TenantSite{
		ID:        "site_1",
		URL:       "https://shop.example.com",
		Name:      "Example Shop",
		APIKey:    "key_1",
		APISecret: "secret_1",
		Status:    SiteStatusActive,
	}
}

type serviceFixture struct {
	service  *Service
	sites    *fakeSiteStore
	ledger   *fakeLedger
	pending  *fakePendingStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	verifier *fakeVerifier
}

func newServiceFixture(t *testing.T, cfg Config) *serviceFixture {
	t.Helper()
	fixture := &serviceFixture{
		sites:    newFakeSiteStore(activeTestSite()),
		ledger:   newFakeLedger(),
		pending:  newFakePendingStore(),
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		verifier: &fakeVerifier{site: activeTestSite()},
	}
	service, err := NewService(cfg,
		WithSiteStore(fixture.sites),
		WithTransactionLedger(fixture.ledger),
		WithPendingOrderStore(fixture.pending),
		WithGateway(fixture.gateway),
		WithNotifier(fixture.notifier),
		WithSignatureVerifier(fixture.verifier),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.service = service
	return fixture
}

func textCodeOf(t *testing.T, err error) string {
	t.Helper()
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T: %v", err, err)
	}
	return richErr.TextCode
}

func TestAuthenticate_RequiredPolicyUsesVerifier(t *testing.T) {
	fixture := newServiceFixture(t, Config{})
	fixture.verifier.err = errors.New("auth: invalid authentication signature")

	_, err := fixture.service.authenticate(context.Background(), VerifyInput{
		APIKey:    "key_1",
		Signature: "bad",
		Operation: OperationCapturePayment,
	})
	if err == nil {
		t.Fatalf("expected verifier rejection")
	}
	if code := textCodeOf(t, err); code != ProxyErrorUnauthenticated {
		t.Fatalf("expected unauthenticated code, got %q", code)
	}
	if len(fixture.verifier.payloads) != 1 {
		t.Fatalf("expected verifier invocation under required policy")
	}
}

func TestAuthenticate_OptionalPolicySkipsVerifierWithoutSignature(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	site, err := fixture.service.authenticate(context.Background(), VerifyInput{
		APIKey:    "key_1",
		Operation: OperationTestConnection,
	})
	if err != nil {
		t.Fatalf("expected key-only authentication: %v", err)
	}
	if site.ID != "site_1" {
		t.Fatalf("unexpected site %q", site.ID)
	}
	if len(fixture.verifier.payloads) != 0 {
		t.Fatalf("verifier must not run for optional policy without a signature")
	}
}

func TestAuthenticate_OptionalPolicyVerifiesPresentSignature(t *testing.T) {
	fixture := newServiceFixture(t, Config{})
	fixture.verifier.err = errors.New("auth: invalid authentication signature")

	_, err := fixture.service.authenticate(context.Background(), VerifyInput{
		APIKey:    "key_1",
		Signature: "deadbeef",
		Operation: OperationTestConnection,
	})
	if err == nil {
		t.Fatalf("a bad signature must fail even under the optional policy")
	}
	if len(fixture.verifier.payloads) != 1 {
		t.Fatalf("expected verifier invocation for present signature")
	}
}

func TestAuthenticate_NonePolicyIgnoresSignature(t *testing.T) {
	cfg := Config{}
	cfg.Signature.Policies = map[string]SignaturePolicy{
		OperationCapturePayment: SignatureNone,
	}
	fixture := newServiceFixture(t, cfg)
	fixture.verifier.err = errors.New("auth: invalid authentication signature")

	_, err := fixture.service.authenticate(context.Background(), VerifyInput{
		APIKey:    "key_1",
		Signature: "deadbeef",
		Operation: OperationCapturePayment,
	})
	if err != nil {
		t.Fatalf("none policy must skip signature verification: %v", err)
	}
	if len(fixture.verifier.payloads) != 0 {
		t.Fatalf("verifier must not run under none policy")
	}
}

func TestAuthenticate_UnknownKeyRejected(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	_, err := fixture.service.authenticate(context.Background(), VerifyInput{
		APIKey:    "key_unknown",
		Operation: OperationTestConnection,
	})
	if err == nil {
		t.Fatalf("expected unknown key rejection")
	}
	if code := textCodeOf(t, err); code != ProxyErrorUnauthenticated {
		t.Fatalf("expected unauthenticated code, got %q", code)
	}

	if _, err := fixture.service.authenticate(context.Background(), VerifyInput{}); err == nil {
		t.Fatalf("expected empty key rejection")
	}
}

func TestTestConnection_URLMismatchIsNotRejected(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	resp, err := fixture.service.TestConnection(context.Background(), TestConnectionRequest{
		APIKey:  "key_1",
		SiteURL: "https://other.example.com",
	})
	if err != nil {
		t.Fatalf("url mismatch must not reject: %v", err)
	}
	if resp.SiteName != "Example Shop" {
		t.Fatalf("unexpected site name %q", resp.SiteName)
	}
	if resp.Message != "Connection successful" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestRegisterOrder_Validation(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	cases := []RegisterOrderRequest{
		{APIKey: "key_1", OrderTotal: 10, Currency: "USD"},                    // missing order id
		{APIKey: "key_1", OrderID: "order_9", Currency: "USD"},                // missing total
		{APIKey: "key_1", OrderID: "order_9", OrderTotal: -5, Currency: "USD"}, // negative total
		{APIKey: "key_1", OrderID: "order_9", OrderTotal: 10},                 // missing currency
	}
	for i, req := range cases {
		_, err := fixture.service.RegisterOrder(context.Background(), req)
		if err == nil {
			t.Fatalf("case %d: expected validation rejection", i)
		}
		if code := textCodeOf(t, err); code != ProxyErrorBadInput {
			t.Fatalf("case %d: expected bad input code, got %q", i, code)
		}
	}
}

func TestRegisterOrder_StoresPendingOrderWithTTL(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	resp, err := fixture.service.RegisterOrder(context.Background(), RegisterOrderRequest{
		APIKey:     "key_1",
		Timestamp:  time.Now().Unix(),
		Signature:  "sig",
		OrderID:    "order_9",
		OrderTotal: 42.5,
		Currency:   "usd",
		OrderData:  []byte(`{"items":[]}`),
	})
	if err != nil {
		t.Fatalf("register order: %v", err)
	}
	if resp.OrderID != "order_9" {
		t.Fatalf("unexpected order id %q", resp.OrderID)
	}

	stored, err := fixture.pending.Get(context.Background(), "site_1", "order_9")
	if err != nil {
		t.Fatalf("pending order not stored: %v", err)
	}
	if stored.Currency != "USD" {
		t.Fatalf("expected uppercased currency, got %q", stored.Currency)
	}
	if got := stored.ExpiresAt.Sub(stored.CreatedAt); got != PendingOrderTTL {
		t.Fatalf("expected %s ttl, got %s", PendingOrderTTL, got)
	}
	if string(stored.OrderData) != `{"items":[]}` {
		t.Fatalf("order data must be stored verbatim")
	}

	// The signed payload covers the order id plus the normalized total.
	if fixture.verifier.payloads[0] != "order_9"+"42.50" {
		t.Fatalf("unexpected signed payload %q", fixture.verifier.payloads[0])
	}
}

func TestCreatePayPalOrder_RecordsPendingLedgerRow(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	resp, err := fixture.service.CreatePayPalOrder(context.Background(), CreatePayPalOrderRequest{
		APIKey:    "key_1",
		Timestamp: time.Now().Unix(),
		Signature: "sig",
		OrderID:   "order_9",
		Amount:    "42.50",
		Currency:  "usd",
	})
	if err != nil {
		t.Fatalf("create paypal order: %v", err)
	}
	if resp.PayPalOrderID != "5O1" {
		t.Fatalf("unexpected paypal order id %q", resp.PayPalOrderID)
	}

	if len(fixture.ledger.recorded) != 1 {
		t.Fatalf("expected one pending ledger row, got %d", len(fixture.ledger.recorded))
	}
	row := fixture.ledger.recorded[0]
	if row.SiteID != "site_1" || row.OrderID != "order_9" || row.PayPalOrderID != "5O1" {
		t.Fatalf("unexpected ledger row: %+v", row)
	}
	if row.Amount != 42.5 || row.Currency != "USD" {
		t.Fatalf("unexpected amount/currency: %+v", row)
	}
	if row.ID == "" {
		t.Fatalf("ledger row must get a generated id")
	}

	// The amount is signed exactly as the tenant sent it.
	if fixture.verifier.payloads[0] != "order_9"+"42.50" {
		t.Fatalf("unexpected signed payload %q", fixture.verifier.payloads[0])
	}
}

func TestCreatePayPalOrder_RejectsBadAmount(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	for _, amount := range []string{"", "abc", "-5", "0"} {
		_, err := fixture.service.CreatePayPalOrder(context.Background(), CreatePayPalOrderRequest{
			APIKey:   "key_1",
			OrderID:  "order_9",
			Amount:   amount,
			Currency: "USD",
		})
		if err == nil {
			t.Fatalf("expected rejection for amount %q", amount)
		}
	}
}

func TestCreatePayPalOrder_GatewayErrorMapped(t *testing.T) {
	fixture := newServiceFixture(t, Config{})
	fixture.gateway.createFn = func(context.Context, CreateOrderInput) (OrderRef, error) {
		return OrderRef{}, errors.New("paypal: create order: status 500")
	}

	_, err := fixture.service.CreatePayPalOrder(context.Background(), CreatePayPalOrderRequest{
		APIKey:    "key_1",
		Timestamp: time.Now().Unix(),
		Signature: "sig",
		OrderID:   "order_9",
		Amount:    "42.50",
		Currency:  "USD",
	})
	if err == nil {
		t.Fatalf("expected gateway error")
	}
	if code := textCodeOf(t, err); code != ProxyErrorGateway {
		t.Fatalf("expected gateway code, got %q", code)
	}
	if len(fixture.ledger.recorded) != 0 {
		t.Fatalf("no ledger row must be recorded on gateway failure")
	}
}

func TestCapturePayment_CompletesPendingRow(t *testing.T) {
	fixture := newServiceFixture(t, Config{})
	fixture.ledger.rows["5O1"] = Transaction{
		SiteID:        "site_1",
		OrderID:       "order_9",
		PayPalOrderID: "5O1",
		Status:        TransactionStatusPending,
	}

	resp, err := fixture.service.CapturePayment(context.Background(), CapturePaymentRequest{
		APIKey:        "key_1",
		Timestamp:     time.Now().Unix(),
		Signature:     "sig",
		PayPalOrderID: "5O1",
	})
	if err != nil {
		t.Fatalf("capture payment: %v", err)
	}
	if resp.TransactionID != "3C6" || resp.Status != "COMPLETED" {
		t.Fatalf("unexpected capture response: %+v", resp)
	}
	if fixture.ledger.rows["5O1"].Status != TransactionStatusCompleted {
		t.Fatalf("expected ledger row completed, got %q", fixture.ledger.rows["5O1"].Status)
	}
}

func TestCapturePayment_MissingLedgerRowStillSucceeds(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	resp, err := fixture.service.CapturePayment(context.Background(), CapturePaymentRequest{
		APIKey:        "key_1",
		Timestamp:     time.Now().Unix(),
		Signature:     "sig",
		PayPalOrderID: "5O1",
	})
	if err != nil {
		t.Fatalf("capture without ledger row must succeed: %v", err)
	}
	if resp.TransactionID != "3C6" {
		t.Fatalf("unexpected transaction id %q", resp.TransactionID)
	}
}

func TestCapturePayment_TerminalRowIsNoop(t *testing.T) {
	fixture := newServiceFixture(t, Config{})
	fixture.ledger.rows["5O1"] = Transaction{
		SiteID:        "site_1",
		PayPalOrderID: "5O1",
		Status:        TransactionStatusFailed,
	}

	if _, err := fixture.service.CapturePayment(context.Background(), CapturePaymentRequest{
		APIKey:        "key_1",
		Timestamp:     time.Now().Unix(),
		Signature:     "sig",
		PayPalOrderID: "5O1",
	}); err != nil {
		t.Fatalf("terminal row must not fail the capture response: %v", err)
	}
	if fixture.ledger.rows["5O1"].Status != TransactionStatusFailed {
		t.Fatalf("terminal row must not be flipped")
	}
}

func TestVerifyPayment_RejectsIncompleteGatewayOrder(t *testing.T) {
	fixture := newServiceFixture(t, Config{})
	fixture.gateway.getFn = func(_ context.Context, orderID string) (OrderDetails, error) {
		return OrderDetails{ID: orderID, Status: "APPROVED"}, nil
	}

	_, err := fixture.service.VerifyPayment(context.Background(), VerifyPaymentRequest{
		APIKey:        "key_1",
		Timestamp:     time.Now().Unix(),
		Signature:     "sig",
		PayPalOrderID: "5O1",
		OrderID:       "order_9",
	})
	if err == nil {
		t.Fatalf("expected rejection for incomplete order")
	}
	if !strings.Contains(err.Error(), "payment has not been completed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyPayment_SelfHealsPendingRow(t *testing.T) {
	fixture := newServiceFixture(t, Config{})
	fixture.ledger.rows["5O1"] = Transaction{
		SiteID:        "site_1",
		OrderID:       "order_9",
		PayPalOrderID: "5O1",
		Status:        TransactionStatusPending,
	}

	resp, err := fixture.service.VerifyPayment(context.Background(), VerifyPaymentRequest{
		APIKey:        "key_1",
		Timestamp:     time.Now().Unix(),
		Signature:     "sig",
		PayPalOrderID: "5O1",
		OrderID:       "order_9",
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if resp.Status != TransactionStatusCompleted {
		t.Fatalf("expected self-healed completed status, got %q", resp.Status)
	}
	if resp.TransactionID != "3C6" {
		t.Fatalf("unexpected transaction id %q", resp.TransactionID)
	}
	if resp.PaymentMethod != "paypal" {
		t.Fatalf("unexpected payment method %q", resp.PaymentMethod)
	}
	if fixture.ledger.rows["5O1"].Status != TransactionStatusCompleted {
		t.Fatalf("ledger row must be healed to completed")
	}
}

func TestVerifyPayment_TerminalRowReportedAsIs(t *testing.T) {
	fixture := newServiceFixture(t, Config{})
	fixture.ledger.rows["5O1"] = Transaction{
		SiteID:        "site_1",
		OrderID:       "order_9",
		PayPalOrderID: "5O1",
		Status:        TransactionStatusFailed,
	}

	resp, err := fixture.service.VerifyPayment(context.Background(), VerifyPaymentRequest{
		APIKey:        "key_1",
		Timestamp:     time.Now().Unix(),
		Signature:     "sig",
		PayPalOrderID: "5O1",
		OrderID:       "order_9",
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if resp.Status != TransactionStatusFailed {
		t.Fatalf("terminal ledger status must win, got %q", resp.Status)
	}
}

func TestVerifyPayment_MissingRowIsNotFound(t *testing.T) {
	fixture := newServiceFixture(t, Config{})

	_, err := fixture.service.VerifyPayment(context.Background(), VerifyPaymentRequest{
		APIKey:        "key_1",
		Timestamp:     time.Now().Unix(),
		Signature:     "sig",
		PayPalOrderID: "5O1",
		OrderID:       "order_9",
	})
	if err == nil {
		t.Fatalf("expected not found")
	}
	if code := textCodeOf(t, err); code != ProxyErrorNotFound {
		t.Fatalf("expected not found code, got %q", code)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		42.5:  "42.50",
		19.99: "19.99",
		100:   "100.00",
		0.1:   "0.10",
	}
	for amount, expected := range cases {
		if got := formatAmount(amount); got != expected {
			t.Fatalf("formatAmount(%v) = %q, want %q", amount, got, expected)
		}
	}
}
