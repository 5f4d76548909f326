package rest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// Request shapes mirror what tenant plugins send. test-connection,
// register-order and verify-payment arrive as GET with query parameters;
// order creation and capture POST a JSON body. Every authenticated request
// carries api_key, timestamp and hash.

type testConnectionRequest struct {
	APIKey    string `form:"api_key" validate:"required"`
	SiteURL   string `form:"site_url"`
	Timestamp int64  `form:"timestamp"`
	Hash      string `form:"hash"`
}

// registerOrderRequest carries only the envelope: order_id, order_total,
// currency and site_url travel inside the base64 order_data JSON.
type registerOrderRequest struct {
	APIKey    string `form:"api_key" validate:"required"`
	Timestamp int64  `form:"timestamp"`
	Hash      string `form:"hash"`
	OrderData string `form:"order_data" validate:"required"`
}

type createPayPalOrderRequest struct {
	APIKey    string `json:"api_key" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"required"`
	Hash      string `json:"hash" validate:"required"`
	OrderID   string `json:"order_id" validate:"required"`
	// Amount stays a string: the signature covers it exactly as sent.
	Amount    string `json:"amount" validate:"required"`
	Currency  string `json:"currency" validate:"required,len=3"`
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
	CancelURL string `json:"cancel_url" validate:"omitempty,url"`
}

type capturePaymentRequest struct {
	APIKey        string `json:"api_key" validate:"required"`
	Timestamp     int64  `json:"timestamp" validate:"required"`
	Hash          string `json:"hash" validate:"required"`
	PayPalOrderID string `json:"paypal_order_id" validate:"required"`
}

type verifyPaymentRequest struct {
	APIKey        string `form:"api_key" validate:"required"`
	Timestamp     int64  `form:"timestamp"`
	Hash          string `form:"hash"`
	PayPalOrderID string `form:"paypal_order_id" validate:"required"`
	OrderID       string `form:"order_id" validate:"required"`
}

// orderPayload is the decoded order_data context. Tenant plugins are loose
// about types, so order_id and order_total accept strings and numbers.
type orderPayload struct {
	OrderID    string
	OrderTotal float64
	Currency   string
	SiteURL    string
	Raw        []byte
}

func decodeOrderPayload(encoded string) (orderPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return orderPayload{}, err
	}
	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return orderPayload{}, err
	}
	return orderPayload{
		OrderID:    stringField(fields, "order_id"),
		OrderTotal: numberField(fields, "order_total"),
		Currency:   stringField(fields, "currency"),
		SiteURL:    stringField(fields, "site_url"),
		Raw:        raw,
	}, nil
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	}
	return ""
}

func numberField(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

func newValidator() *validatorv10.Validate {
	return validatorv10.New()
}

// bindAndValidate binds the JSON body into out and runs validation. On
// failure it writes the 400 itself and returns the error so the handler
// can short-circuit.
func bindAndValidate(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "PROXY_BAD_INPUT",
			"message": "invalid request body",
		})
		return err
	}
	return validateStruct(c, out, v)
}

// bindQueryAndValidate is the GET counterpart, binding query parameters.
func bindQueryAndValidate(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := c.ShouldBindQuery(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "PROXY_BAD_INPUT",
			"message": "invalid query parameters",
		})
		return err
	}
	return validateStruct(c, out, v)
}

func validateStruct(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "PROXY_BAD_INPUT",
			"message": "validation failed",
			"fields":  validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return out
	}
	out["error"] = err.Error()
	return out
}
