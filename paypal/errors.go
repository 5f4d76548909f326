package paypal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GatewayError is the single error shape for every gateway failure, both
// transport errors and non-success API responses. Code carries PayPal's
// machine name when one was present.
type GatewayError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return "paypal: gateway error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("paypal: %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("paypal: %s failed: %s", e.Operation, e.Message)
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type apiErrorBody struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// extractAPIError pulls the most specific human message out of a PayPal
// error body. Precedence: message, then error_description, then the first
// detail description, then the fallback.
func extractAPIError(body []byte, fallback string) (code string, message string) {
	var parsed apiErrorBody
	if len(body) > 0 {
		_ = json.Unmarshal(body, &parsed)
	}

	code = strings.TrimSpace(parsed.Name)
	if code == "" {
		code = strings.TrimSpace(parsed.Error)
	}
	if code == "" && len(parsed.Details) > 0 {
		code = strings.TrimSpace(parsed.Details[0].Issue)
	}

	if msg := strings.TrimSpace(parsed.Message); msg != "" {
		return code, msg
	}
	if msg := strings.TrimSpace(parsed.ErrorDescription); msg != "" {
		return code, msg
	}
	if len(parsed.Details) > 0 {
		if msg := strings.TrimSpace(parsed.Details[0].Description); msg != "" {
			return code, msg
		}
	}
	return code, fallback
}

func apiError(operation string, statusCode int, body []byte, fallback string) *GatewayError {
	code, message := extractAPIError(body, fallback)
	return &GatewayError{
		Operation:  operation,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

func transportError(operation string, err error) *GatewayError {
	return &GatewayError{
		Operation: operation,
		Message:   err.Error(),
		Err:       err,
	}
}
