package core

import (
	"context"
	"testing"
	"time"
)

func TestDefaultConfig_Policies(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PolicyFor(OperationTestConnection) != SignatureOptional {
		t.Fatalf("test_connection must default to optional")
	}
	for _, operation := range []string{
		OperationRegisterOrder,
		OperationCreatePayPalOrder,
		OperationCapturePayment,
		OperationVerifyPayment,
	} {
		if cfg.PolicyFor(operation) != SignatureRequired {
			t.Fatalf("%s must default to required", operation)
		}
	}
	if cfg.PolicyFor("unknown_operation") != SignatureRequired {
		t.Fatalf("unknown operations must default to required")
	}
	if cfg.Signature.ReplayWindow != time.Hour {
		t.Fatalf("expected 1h replay window, got %s", cfg.Signature.ReplayWindow)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	bad := DefaultConfig()
	bad.PayPal.Environment = "staging"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected invalid environment rejection")
	}

	bad = DefaultConfig()
	bad.Signature.Policies = map[string]SignaturePolicy{"x": "sometimes"}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected invalid policy rejection")
	}

	bad = DefaultConfig()
	bad.ServiceName = "  "
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected missing service name rejection")
	}
}

func TestCfgxConfigProvider_MergesRawOverDefaults(t *testing.T) {
	provider := NewCfgxConfigProvider(staticRawConfigLoader{Values: map[string]any{
		"http": map[string]any{"addr": ":9090"},
		"paypal": map[string]any{
			"environment": EnvironmentLive,
		},
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("expected overridden addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.PayPal.Environment != EnvironmentLive {
		t.Fatalf("expected live environment, got %q", cfg.PayPal.Environment)
	}
	if cfg.ServiceName != "paypal-proxy" {
		t.Fatalf("expected default service name to survive, got %q", cfg.ServiceName)
	}
}

func TestGoOptionsResolver_RuntimeWins(t *testing.T) {
	defaults := DefaultConfig()
	loaded := DefaultConfig()
	loaded.HTTP.Addr = ":9090"
	runtime := Config{}
	runtime.HTTP.Addr = ":7070"

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.HTTP.Addr != ":7070" {
		t.Fatalf("expected runtime addr to win, got %q", resolved.HTTP.Addr)
	}
	if resolved.Signature.ReplayWindow != defaults.Signature.ReplayWindow {
		t.Fatalf("expected default replay window to survive, got %s", resolved.Signature.ReplayWindow)
	}
}
