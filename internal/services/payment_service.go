package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"paygate_app_echo/internal/models"
)

// Errors the ledger hands back to callers. The HTTP layer maps these to
// status codes in one place.
var (
	ErrInvalidAmount     = errors.New("amount must be greater than 0")
	ErrInvalidMethod     = errors.New("unsupported payment method")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrAlreadyFinalized  = errors.New("payment already finalized")
	ErrInvalidTransition = errors.New("status is not a terminal state")
)

const (
	txIDAttempts  = 5
	createLockTTL = 10 * time.Second
)

// PaymentService owns the payment ledger: intent creation, the status state
// machine, and ownership-scoped reads. The cache is optional; when present
// it shortens the window between two racing creates with the same
// idempotency key, with the composite unique index as the backstop.
type PaymentService struct {
	db    *gorm.DB
	cache *RedisCache
}

func NewPaymentService(db *gorm.DB, cache *RedisCache) *PaymentService {
	return &PaymentService{db: db, cache: cache}
}

// CreatePayment records a new PENDING payment intent. When idempotencyKey is
// set and a payment with the same (owner, key) already exists, that payment
// is returned untouched and the second return value is true. No gateway call
// happens here; the caller drives the checkout only for fresh intents.
func (s *PaymentService) CreatePayment(ctx context.Context, userID uint, method models.PaymentMethod, amount float64, idempotencyKey string) (*models.Payment, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	if !models.ValidPaymentMethod(method) {
		return nil, false, ErrInvalidMethod
	}

	if idempotencyKey != "" {
		if s.cache != nil {
			lockKey := fmt.Sprintf("payments:create:%d:%s", userID, idempotencyKey)
			if ok, err := s.cache.SetNX(ctx, lockKey, 1, createLockTTL); err == nil && ok {
				defer func() { _ = s.cache.Delete(ctx, lockKey) }()
			}
		}

		existing, err := s.findByIdempotencyKey(ctx, userID, idempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	payment := &models.Payment{
		UserID:        userID,
		PaymentMethod: method,
		Amount:        amount,
		Currency:      "BDT",
		Status:        models.PaymentStatusPending,
		Metadata: datatypes.JSONMap{
			models.MetadataKeyCreateInitiator: fmt.Sprintf("user:%d", userID),
		},
	}
	if idempotencyKey != "" {
		payment.IdempotencyKey = &idempotencyKey
	}

	for attempt := 0; attempt < txIDAttempts; attempt++ {
		payment.ID = ""
		payment.TransactionID = newTransactionID()

		err := s.db.WithContext(ctx).Create(payment).Error
		if err == nil {
			return payment, false, nil
		}
		if !isUniqueViolation(err) {
			return nil, false, err
		}

		// Either the transaction id collided or a concurrent create with the
		// same idempotency key won the race. Resolve the latter first.
		if idempotencyKey != "" {
			existing, ferr := s.findByIdempotencyKey(ctx, userID, idempotencyKey)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing != nil {
				return existing, true, nil
			}
		}
	}

	return nil, false, fmt.Errorf("could not allocate a unique transaction id after %d attempts", txIDAttempts)
}

// MarkProcessing advances a payment to PROCESSING after a successful gateway
// handshake and records the provider reference. Terminal payments are left
// alone: a webhook may finalize the payment before this commits.
func (s *PaymentService) MarkProcessing(ctx context.Context, paymentID string, gatewayReference string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": models.PaymentStatusProcessing}
		if gatewayReference != "" {
			updates["gateway_reference"] = gatewayReference
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status NOT IN ?", paymentID, models.TerminalStatuses).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPaymentNotFound
				}
				return err
			}
			return ErrAlreadyFinalized
		}
		return tx.First(&payment, "id = ?", paymentID).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Finalize applies a terminal status exactly once. The second return value
// reports that the payment was already terminal, in which case the stored
// row is returned with zero mutation; providers retry webhooks and replays
// must be no-ops. The terminal check and the status write share one guarded
// update, so two concurrent finalize calls cannot both apply.
func (s *PaymentService) Finalize(ctx context.Context, paymentID string, newStatus models.PaymentStatus, gatewayReference string, rawPayload map[string]interface{}) (*models.Payment, bool, error) {
	if !models.IsTerminalStatus(newStatus) {
		return nil, false, ErrInvalidTransition
	}

	var payment models.Payment
	alreadyFinal := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		if payment.IsTerminal() {
			alreadyFinal = true
			return nil
		}

		metadata := payment.Metadata
		if metadata == nil {
			metadata = datatypes.JSONMap{}
		}
		if rawPayload != nil {
			metadata[models.MetadataKeyWebhookPayload] = rawPayload
		}

		updates := map[string]interface{}{
			"status":   newStatus,
			"metadata": metadata,
		}
		if gatewayReference != "" {
			// Overwrite policy: the reconciler is the last writer
			updates["gateway_reference"] = gatewayReference
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status NOT IN ?", paymentID, models.TerminalStatuses).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent finalize
			alreadyFinal = true
		}
		return tx.First(&payment, "id = ?", paymentID).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &payment, alreadyFinal, nil
}

// FindByTransactionID looks a payment up by its caller-visible correlation id
func (s *PaymentService) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).First(&payment, "transaction_id = ?", transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// FindByGatewayReference looks a payment up by the provider-assigned id
func (s *PaymentService) FindByGatewayReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).First(&payment, "gateway_reference = ?", reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// GetStatus resolves a payment by transaction id (preferred) or internal id
// and enforces ownership. Requesters who are neither the owner nor an admin
// get ErrPaymentNotFound so unowned payments are indistinguishable from
// absent ones.
func (s *PaymentService) GetStatus(ctx context.Context, requesterID uint, isAdmin bool, transactionID, paymentID string) (*models.Payment, error) {
	var payment *models.Payment
	var err error

	switch {
	case transactionID != "":
		payment, err = s.FindByTransactionID(ctx, transactionID)
	case paymentID != "":
		var p models.Payment
		ferr := s.db.WithContext(ctx).First(&p, "id = ?", paymentID).Error
		if errors.Is(ferr, gorm.ErrRecordNotFound) {
			err = ErrPaymentNotFound
		} else {
			payment, err = &p, ferr
		}
	default:
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	if payment.UserID != requesterID && !isAdmin {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *PaymentService) findByIdempotencyKey(ctx context.Context, userID uint, key string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// newTransactionID yields a 20-char hex correlation id
func newTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
