package rest

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/goliatone/go-paypal-proxy/core"
	"github.com/goliatone/go-paypal-proxy/paypal"
	"github.com/goliatone/go-paypal-proxy/webhooks"
)

const APIBasePath = "/wppps/v1"

type RouterConfig struct {
	Service         *core.Service
	Reconciler      *webhooks.Reconciler
	WebhookVerifier *webhooks.HMACVerifier
	Logger          core.Logger
}

// NewRouter wires the tenant-facing proxy API. Connection test, order
// registration and payment verification are GET with query parameters;
// order creation, capture and the webhook are POST.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("rest: service is required")
	}
	if cfg.Reconciler == nil {
		return nil, fmt.Errorf("rest: webhook reconciler is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handler := &apiHandler{
		service:         cfg.Service,
		reconciler:      cfg.Reconciler,
		webhookVerifier: cfg.WebhookVerifier,
		logger:          cfg.Logger,
		validate:        newValidator(),
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group(APIBasePath)
	api.GET("/test-connection", handler.testConnection)
	api.GET("/register-order", handler.registerOrder)
	api.GET("/verify-payment", handler.verifyPayment)
	api.POST("/create-paypal-order", handler.createPayPalOrder)
	api.POST("/capture-payment", handler.capturePayment)
	api.POST("/paypal-webhook", handler.payPalWebhook)

	return router, nil
}

type apiHandler struct {
	service         *core.Service
	reconciler      *webhooks.Reconciler
	webhookVerifier *webhooks.HMACVerifier
	logger          core.Logger
	validate        *validatorv10.Validate
}

func (h *apiHandler) testConnection(c *gin.Context) {
	var req testConnectionRequest
	if err := bindQueryAndValidate(c, &req, h.validate); err != nil {
		return
	}

	resp, err := h.service.TestConnection(c.Request.Context(), core.TestConnectionRequest{
		APIKey:    req.APIKey,
		SiteURL:   decodeSiteURL(req.SiteURL),
		Timestamp: req.Timestamp,
		Signature: req.Hash,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"site_name": resp.SiteName,
		"message":   resp.Message,
	})
}

func (h *apiHandler) registerOrder(c *gin.Context) {
	var req registerOrderRequest
	if err := bindQueryAndValidate(c, &req, h.validate); err != nil {
		return
	}

	payload, err := decodeOrderPayload(req.OrderData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   core.ProxyErrorBadInput,
			"message": "order_data must be base64-encoded JSON",
		})
		return
	}

	resp, err := h.service.RegisterOrder(c.Request.Context(), core.RegisterOrderRequest{
		APIKey:     req.APIKey,
		Timestamp:  req.Timestamp,
		Signature:  req.Hash,
		OrderID:    payload.OrderID,
		OrderTotal: payload.OrderTotal,
		Currency:   payload.Currency,
		SiteURL:    payload.SiteURL,
		OrderData:  payload.Raw,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"order_id": resp.OrderID,
	})
}

func (h *apiHandler) createPayPalOrder(c *gin.Context) {
	var req createPayPalOrderRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	resp, err := h.service.CreatePayPalOrder(c.Request.Context(), core.CreatePayPalOrderRequest{
		APIKey:    req.APIKey,
		Timestamp: req.Timestamp,
		Signature: req.Hash,
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"paypal_order_id": resp.PayPalOrderID,
		"status":          resp.Status,
		"links":           resp.Links,
	})
}

func (h *apiHandler) capturePayment(c *gin.Context) {
	var req capturePaymentRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	resp, err := h.service.CapturePayment(c.Request.Context(), core.CapturePaymentRequest{
		APIKey:        req.APIKey,
		Timestamp:     req.Timestamp,
		Signature:     req.Hash,
		PayPalOrderID: req.PayPalOrderID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"transaction_id": resp.TransactionID,
		"status":         resp.Status,
	})
}

func (h *apiHandler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := bindQueryAndValidate(c, &req, h.validate); err != nil {
		return
	}

	resp, err := h.service.VerifyPayment(c.Request.Context(), core.VerifyPaymentRequest{
		APIKey:        req.APIKey,
		Timestamp:     req.Timestamp,
		Signature:     req.Hash,
		PayPalOrderID: req.PayPalOrderID,
		OrderID:       req.OrderID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"status":         string(resp.Status),
		"transaction_id": resp.TransactionID,
		"payer_email":    resp.PayerEmail,
		"payment_method": resp.PaymentMethod,
	})
}

// payPalWebhook acknowledges everything it could decode, even events it
// does not act on: a 4xx/5xx makes the sender retry, which only helps for
// transient storage failures.
func (h *apiHandler) payPalWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": core.ProxyErrorBadInput})
		return
	}

	if h.webhookVerifier != nil {
		if err := h.webhookVerifier.Verify(body, c.GetHeader(webhooks.SignatureHeader)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   core.ProxyErrorUnauthenticated,
				"message": "webhook signature verification failed",
			})
			return
		}
	}

	event, err := paypal.ParseEvent(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   core.ProxyErrorBadInput,
			"message": "malformed webhook event",
		})
		return
	}

	result, err := h.reconciler.Handle(c.Request.Context(), event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   core.ProxyErrorInternal,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"handled": result.Handled,
	})
}

// decodeSiteURL accepts both plain and base64-encoded site URLs. Tenant
// plugins encode the URL to survive form transports.
func decodeSiteURL(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil || !utf8.Valid(decoded) {
		return trimmed
	}
	text := string(decoded)
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		return text
	}
	return trimmed
}
