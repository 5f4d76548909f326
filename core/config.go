package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	EnvironmentSandbox = "sandbox"
	EnvironmentLive    = "live"
)

// SignaturePolicy declares how strictly an operation's HMAC signature is
// enforced. The original deployment disabled hash validation on one path
// "for testing"; enforcement is a declared per-operation policy here instead
// of ad hoc handler logic.
type SignaturePolicy string

const (
	SignatureRequired SignaturePolicy = "required"
	SignatureOptional SignaturePolicy = "optional"
	SignatureNone     SignaturePolicy = "none"
)

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type PayPalConfig struct {
	ClientID      string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret  string `koanf:"client_secret" mapstructure:"client_secret"`
	Environment   string `koanf:"environment" mapstructure:"environment"`
	WebhookSecret string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
}

type SignatureConfig struct {
	ReplayWindow time.Duration              `koanf:"replay_window" mapstructure:"replay_window"`
	Policies     map[string]SignaturePolicy `koanf:"policies" mapstructure:"policies"`
}

type NotifyConfig struct {
	Timeout      time.Duration `koanf:"timeout" mapstructure:"timeout"`
	CallbackPath string        `koanf:"callback_path" mapstructure:"callback_path"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig      `koanf:"http" mapstructure:"http"`
	PayPal      PayPalConfig    `koanf:"paypal" mapstructure:"paypal"`
	Signature   SignatureConfig `koanf:"signature" mapstructure:"signature"`
	Notify      NotifyConfig    `koanf:"notify" mapstructure:"notify"`
}

const (
	OperationTestConnection    = "test_connection"
	OperationRegisterOrder     = "register_order"
	OperationCreatePayPalOrder = "create_paypal_order"
	OperationCapturePayment    = "capture_payment"
	OperationVerifyPayment     = "verify_payment"
)

func DefaultConfig() Config {
	return Config{
		ServiceName: "paypal-proxy",
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		PayPal: PayPalConfig{
			Environment: EnvironmentSandbox,
		},
		Signature: SignatureConfig{
			ReplayWindow: time.Hour,
			Policies: map[string]SignaturePolicy{
				OperationTestConnection:    SignatureOptional,
				OperationRegisterOrder:     SignatureRequired,
				OperationCreatePayPalOrder: SignatureRequired,
				OperationCapturePayment:    SignatureRequired,
				OperationVerifyPayment:     SignatureRequired,
			},
		},
		Notify: NotifyConfig{
			Timeout:      30 * time.Second,
			CallbackPath: "/wc-api/wpppc_callback",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	env := strings.TrimSpace(strings.ToLower(c.PayPal.Environment))
	if env != "" && env != EnvironmentSandbox && env != EnvironmentLive {
		return fmt.Errorf("core: paypal environment must be %q or %q", EnvironmentSandbox, EnvironmentLive)
	}
	if c.Signature.ReplayWindow < 0 {
		return fmt.Errorf("core: signature replay_window must not be negative")
	}
	for operation, policy := range c.Signature.Policies {
		switch policy {
		case SignatureRequired, SignatureOptional, SignatureNone:
		default:
			return fmt.Errorf("core: invalid signature policy %q for operation %q", policy, operation)
		}
	}
	return nil
}

// PolicyFor resolves the declared enforcement policy for an operation,
// defaulting to required.
func (c Config) PolicyFor(operation string) SignaturePolicy {
	if policy, ok := c.Signature.Policies[strings.TrimSpace(operation)]; ok {
		return policy
	}
	return SignatureRequired
}
