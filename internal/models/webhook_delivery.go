package models

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook delivery outcomes
const (
	WebhookOutcomeFinalized         = "finalized"
	WebhookOutcomeDuplicate         = "duplicate"
	WebhookOutcomeRejectedSignature = "rejected:signature"
	WebhookOutcomeRejectedMalformed = "rejected:malformed"
	WebhookOutcomeRejectedStatus    = "rejected:status"
	WebhookOutcomeRejectedNotFound  = "rejected:not_found"
)

// WebhookDelivery records every inbound gateway callback, accepted or not.
// Finalized payments are never mutated by replays, so this table is where
// duplicate and rejected deliveries remain attributable.
type WebhookDelivery struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	PaymentGateway string            `gorm:"type:varchar(50)" json:"payment_gateway"`
	TransactionID  string            `gorm:"type:varchar(64);index" json:"transaction_id"`
	Payload        datatypes.JSONMap `json:"payload"`
	SignatureValid bool              `json:"signature_valid"`
	Outcome        string            `gorm:"type:varchar(50)" json:"outcome"`
	CreatedAt      time.Time         `json:"created_at"`
}
