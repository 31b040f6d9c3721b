package handlers

import (
	"github.com/labstack/echo/v4"

	"paygate_app_echo/internal/models"
	"paygate_app_echo/internal/services"
)

// CreatePaymentRequest is the body of POST /api/payments
type CreatePaymentRequest struct {
	PaymentMethod  string  `json:"payment_method"`
	Amount         float64 `json:"amount"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// Validate checks the request shape before it reaches the ledger
func (r *CreatePaymentRequest) Validate() error {
	if r.Amount <= 0 {
		return services.ErrInvalidAmount
	}
	if !models.ValidPaymentMethod(models.PaymentMethod(r.PaymentMethod)) {
		return services.ErrInvalidMethod
	}
	return nil
}

// PaymentResponse is the projection returned by create and replayed creates
type PaymentResponse struct {
	ID               string               `json:"id"`
	TransactionID    string               `json:"transaction_id"`
	Status           models.PaymentStatus `json:"status"`
	CheckoutURL      string               `json:"checkout_url,omitempty"`
	GatewayReference string               `json:"gateway_reference,omitempty"`
	Existing         bool                 `json:"existing"`
}

func newPaymentResponse(p *models.Payment, checkoutURL string, existing bool) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		TransactionID: p.TransactionID,
		Status:        p.Status,
		CheckoutURL:   checkoutURL,
		Existing:      existing,
	}
	if p.GatewayReference != nil {
		resp.GatewayReference = *p.GatewayReference
	}
	return resp
}

// Helper to safely get uint from context
func getUintFromContext(c echo.Context, key string) uint {
	val := c.Get(key)
	if val == nil {
		return 0
	}
	uintVal, ok := val.(uint)
	if !ok {
		return 0
	}
	return uintVal
}

func getBoolFromContext(c echo.Context, key string) bool {
	val := c.Get(key)
	if val == nil {
		return false
	}
	boolVal, ok := val.(bool)
	if !ok {
		return false
	}
	return boolVal
}
