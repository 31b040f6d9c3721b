package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentMethod identifies the external gateway a payment goes through
type PaymentMethod string

const (
	PaymentMethodBkash PaymentMethod = "BKASH"
	PaymentMethodNagad PaymentMethod = "NAGAD"
)

// PaymentStatus is the lifecycle state of a payment.
// PENDING -> PROCESSING -> {SUCCESS, FAILED, CANCELED}; the last three are terminal.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSuccess    PaymentStatus = "SUCCESS"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCanceled   PaymentStatus = "CANCELED"
)

// Documented metadata keys. Metadata only ever accumulates keys.
const (
	MetadataKeyWebhookPayload  = "webhook_payload"
	MetadataKeyCreateInitiator = "create_initiator"
)

// TerminalStatuses are the states no payment ever leaves
var TerminalStatuses = []PaymentStatus{
	PaymentStatusSuccess,
	PaymentStatusFailed,
	PaymentStatusCanceled,
}

// Payment is the authoritative record of a payment intent. Rows are never
// hard-deleted; they are retained as the audit trail.
type Payment struct {
	ID               string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           uint              `gorm:"index;uniqueIndex:idx_payments_user_idem;not null" json:"user_id"`
	PaymentMethod    PaymentMethod     `gorm:"type:varchar(10);not null" json:"payment_method"`
	Amount           float64           `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency         string            `gorm:"type:varchar(8);default:'BDT'" json:"currency"`
	Status           PaymentStatus     `gorm:"type:varchar(12);default:'PENDING'" json:"status"`
	TransactionID    string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_id"`
	GatewayReference *string           `gorm:"type:varchar(128);index" json:"gateway_reference"`
	IdempotencyKey   *string           `gorm:"type:varchar(64);uniqueIndex:idx_payments_user_idem" json:"idempotency_key,omitempty"`
	Metadata         datatypes.JSONMap `json:"metadata"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// BeforeCreate assigns the UUID primary key
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal reports whether the payment reached a final state
func (p *Payment) IsTerminal() bool {
	return IsTerminalStatus(p.Status)
}

// IsTerminalStatus reports whether s is a final state
func IsTerminalStatus(s PaymentStatus) bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// ValidPaymentMethod reports whether m is a supported gateway
func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PaymentMethodBkash || m == PaymentMethodNagad
}
