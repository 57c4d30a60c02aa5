package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment records a single payment attempt against an order. The merchant
// transaction id correlates the attempt with asynchronous gateway callbacks.
type Payment struct {
	BaseModel
	OrderID               uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	Order                 *Order     `json:"order,omitempty"`
	MerchantTransactionID string     `gorm:"uniqueIndex" json:"merchant_transaction_id"`
	ProviderTransactionID string     `json:"provider_transaction_id"`
	Status                string     `json:"status"`
	Amount                float64    `json:"amount"`
	Currency              string     `json:"currency"`
	GatewayCode           string     `json:"gateway_code"`
	RawPayload            []byte     `gorm:"type:jsonb" json:"raw_payload"`
	PaidAt                *time.Time `json:"paid_at"`
}
