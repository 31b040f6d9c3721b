package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"paygate_app_echo/internal/gateway"
	"paygate_app_echo/internal/models"
	"paygate_app_echo/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
	webhooks *services.WebhookService
	gateways *gateway.Registry
	siteURL  string
}

func NewPaymentHandler(payments *services.PaymentService, webhooks *services.WebhookService, gateways *gateway.Registry, siteURL string) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		webhooks: webhooks,
		gateways: gateways,
		siteURL:  siteURL,
	}
}

// CreatePayment handles POST /api/payments. The flow is sequential: record
// the PENDING intent, call the gateway outside any transaction, then apply
// PROCESSING in a second short write. A gateway failure therefore leaves the
// intent in PENDING and the client may retry with the same idempotency key.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var req CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := getUintFromContext(c, "userID")

	payment, existing, err := h.payments.CreatePayment(ctx, userID, models.PaymentMethod(req.PaymentMethod), req.Amount, req.IdempotencyKey)
	if err != nil {
		return err
	}
	if existing {
		// Replay of a previous create: return the stored intent as-is, no
		// second checkout session
		return c.JSON(http.StatusOK, newPaymentResponse(payment, "", true))
	}

	gw, ok := h.gateways.Get(payment.PaymentMethod)
	if !ok {
		return services.ErrInvalidMethod
	}

	session, err := gw.CreateCheckout(ctx, payment, h.siteURL+"/api/payments/webhook")
	if err != nil {
		return err
	}

	payment, err = h.payments.MarkProcessing(ctx, payment.ID, session.ProviderReference)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, newPaymentResponse(payment, session.CheckoutURL, false))
}

// Webhook handles POST /api/payments/webhook. Authenticity is established by
// the signature over the raw body, not by a user session.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unable to read request body")
	}

	result, err := h.webhooks.Reconcile(c.Request().Context(), rawBody, c.Request().Header.Get("X-Signature"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"transaction_id": result.TransactionID,
		"status":         result.Status,
	})
}

// Status handles GET /api/payments/status
func (h *PaymentHandler) Status(c echo.Context) error {
	transactionID := c.QueryParam("transaction_id")
	paymentID := c.QueryParam("id")
	if transactionID == "" && paymentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction_id or id is required")
	}

	payment, err := h.payments.GetStatus(
		c.Request().Context(),
		getUintFromContext(c, "userID"),
		getBoolFromContext(c, "isAdmin"),
		transactionID,
		paymentID,
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}
