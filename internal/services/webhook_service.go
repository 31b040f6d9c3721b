package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"paygate_app_echo/internal/models"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// WebhookService reconciles asynchronous gateway callbacks into the ledger.
// Deliveries arrive duplicated and out of order; finalization is idempotent
// and every delivery is recorded for audit whatever its outcome.
type WebhookService struct {
	db       *gorm.DB
	payments *PaymentService

	secret string
	// allowUnsigned skips signature verification. Development only; set
	// PAYMENT_WEBHOOK_ALLOW_UNSIGNED=true explicitly, never in production.
	allowUnsigned bool
}

func NewWebhookService(db *gorm.DB, payments *PaymentService) *WebhookService {
	return &WebhookService{
		db:            db,
		payments:      payments,
		secret:        os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		allowUnsigned: os.Getenv("PAYMENT_WEBHOOK_ALLOW_UNSIGNED") == "true",
	}
}

// ReconcileResult is what a processed delivery resolves to
type ReconcileResult struct {
	TransactionID string               `json:"transaction_id"`
	Status        models.PaymentStatus `json:"status"`
	// Duplicate marks a replayed delivery for an already-final payment
	Duplicate bool `json:"duplicate"`
}

// VerifySignature checks the HMAC-SHA256 hex digest of the raw body against
// the shared secret. An unset secret verifies nothing.
func (s *WebhookService) VerifySignature(rawBody []byte, signature string) bool {
	if s.secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Reconcile verifies, parses and applies one webhook delivery.
//  1. authenticate the raw body (unless explicitly running unsigned)
//  2. parse and require a terminal target status
//  3. resolve the payment by transaction_id, falling back to the gateway reference
//  4. finalize idempotently; replays return the stored state untouched
func (s *WebhookService) Reconcile(ctx context.Context, rawBody []byte, signature string) (*ReconcileResult, error) {
	signatureValid := s.VerifySignature(rawBody, signature)
	if !signatureValid && !s.allowUnsigned {
		s.recordDelivery(ctx, "", "", rawPayloadMap(rawBody), false, models.WebhookOutcomeRejectedSignature)
		return nil, ErrInvalidSignature
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil || payload == nil {
		s.recordDelivery(ctx, "", "", rawPayloadMap(rawBody), signatureValid, models.WebhookOutcomeRejectedMalformed)
		return nil, ErrMalformedPayload
	}

	transactionID, _ := payload["transaction_id"].(string)
	gatewayRef, _ := payload["paymentID"].(string)
	if gatewayRef == "" {
		gatewayRef, _ = payload["gateway_reference"].(string)
	}
	statusStr, _ := payload["status"].(string)
	newStatus := models.PaymentStatus(strings.ToUpper(statusStr))

	if transactionID == "" && gatewayRef == "" {
		s.recordDelivery(ctx, "", "", payload, signatureValid, models.WebhookOutcomeRejectedMalformed)
		return nil, ErrMalformedPayload
	}
	if !models.IsTerminalStatus(newStatus) {
		s.recordDelivery(ctx, "", transactionID, payload, signatureValid, models.WebhookOutcomeRejectedStatus)
		return nil, ErrMalformedPayload
	}

	payment, err := s.resolvePayment(ctx, transactionID, gatewayRef)
	if err != nil {
		s.recordDelivery(ctx, "", transactionID, payload, signatureValid, models.WebhookOutcomeRejectedNotFound)
		return nil, err
	}

	payment, duplicate, err := s.payments.Finalize(ctx, payment.ID, newStatus, gatewayRef, payload)
	if err != nil {
		return nil, err
	}

	outcome := models.WebhookOutcomeFinalized
	if duplicate {
		outcome = models.WebhookOutcomeDuplicate
	}
	s.recordDelivery(ctx, string(payment.PaymentMethod), payment.TransactionID, payload, signatureValid, outcome)

	return &ReconcileResult{
		TransactionID: payment.TransactionID,
		Status:        payment.Status,
		Duplicate:     duplicate,
	}, nil
}

func (s *WebhookService) resolvePayment(ctx context.Context, transactionID, gatewayRef string) (*models.Payment, error) {
	if transactionID != "" {
		return s.payments.FindByTransactionID(ctx, transactionID)
	}
	return s.payments.FindByGatewayReference(ctx, gatewayRef)
}

// recordDelivery persists the audit row. Failing to record never fails the
// delivery itself.
func (s *WebhookService) recordDelivery(ctx context.Context, gateway, transactionID string, payload map[string]interface{}, signatureValid bool, outcome string) {
	delivery := models.WebhookDelivery{
		PaymentGateway: gateway,
		TransactionID:  transactionID,
		Payload:        datatypes.JSONMap(payload),
		SignatureValid: signatureValid,
		Outcome:        outcome,
	}
	if err := s.db.WithContext(ctx).Create(&delivery).Error; err != nil {
		log.Printf("failed to record webhook delivery: %v", err)
	}
}

// rawPayloadMap wraps an unparseable body so the audit row still holds it
func rawPayloadMap(rawBody []byte) map[string]interface{} {
	return map[string]interface{}{"raw": string(rawBody)}
}
