package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestProxyErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := proxyErrorMapper(stderrors.New("auth: invalid authentication signature"))
	if mapped.TextCode != ProxyErrorUnauthenticated {
		t.Fatalf("expected unauthenticated text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", mapped.Code)
	}

	mapped = proxyErrorMapper(stderrors.New("auth: authentication timestamp has expired"))
	if mapped.TextCode != ProxyErrorUnauthenticated {
		t.Fatalf("expected expired timestamp to map to unauthenticated, got %q", mapped.TextCode)
	}

	mapped = proxyErrorMapper(stderrors.New("core: transaction not found"))
	if mapped.TextCode != ProxyErrorNotFound || mapped.Code != http.StatusNotFound {
		t.Fatalf("expected 404 not found mapping, got %q %d", mapped.TextCode, mapped.Code)
	}

	mapped = proxyErrorMapper(stderrors.New("paypal: create order: status 500"))
	if mapped.TextCode != ProxyErrorGateway || mapped.Code != http.StatusBadGateway {
		t.Fatalf("expected gateway mapping, got %q %d", mapped.TextCode, mapped.Code)
	}

	mapped = proxyErrorMapper(stderrors.New("core: order_id is required"))
	if mapped.TextCode != ProxyErrorBadInput || mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected bad input mapping, got %q %d", mapped.TextCode, mapped.Code)
	}
}

func TestProxyErrorMapper_PreservesRichErrors(t *testing.T) {
	original := goerrors.New("core: payment has not been completed", goerrors.CategoryBadInput).
		WithTextCode(ProxyErrorBadInput)
	mapped := proxyErrorMapper(original)
	if mapped.TextCode != ProxyErrorBadInput {
		t.Fatalf("expected original text code preserved, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected envelope to fill http status, got %d", mapped.Code)
	}
}

func TestEnsureProxyErrorEnvelope_Defaults(t *testing.T) {
	err := ensureProxyErrorEnvelope(goerrors.New("", goerrors.CategoryInternal))
	if err.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 default, got %d", err.Code)
	}
	if err.TextCode != ProxyErrorInternal {
		t.Fatalf("expected internal text code, got %q", err.TextCode)
	}
	if err.Message == "" {
		t.Fatalf("expected placeholder message for internal errors")
	}

	conflict := ensureProxyErrorEnvelope(goerrors.New("duplicate", goerrors.CategoryConflict))
	if conflict.Code != http.StatusConflict || conflict.TextCode != ProxyErrorConflict {
		t.Fatalf("expected conflict envelope, got %q %d", conflict.TextCode, conflict.Code)
	}
}

func TestProxyErrorMapper_NilError(t *testing.T) {
	if proxyErrorMapper(nil) != nil {
		t.Fatalf("nil error must map to nil")
	}
}
