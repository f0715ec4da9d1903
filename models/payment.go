package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo enforces the forward-only payment lifecycle:
// pending -> completed|failed, completed -> refunded.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusCompleted || next == PaymentStatusFailed
	case PaymentStatusCompleted:
		return next == PaymentStatusRefunded
	case PaymentStatusFailed, PaymentStatusRefunded:
		return false
	}
	return false
}

type Payment struct {
	ID                    uuid.UUID       `json:"id"`
	SellerID              uuid.UUID       `json:"seller_id"`
	OrderID               *uuid.UUID      `json:"order_id,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Provider              string          `json:"provider"`
	Method                string          `json:"method"`
	Description           string          `json:"description"`
	ExternalTransactionID *string         `json:"external_transaction_id,omitempty"`
	Status                PaymentStatus   `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
}

// PaymentTransition is a compare-and-set request against a stored payment.
// It only applies while the payment still has status From.
type PaymentTransition struct {
	PaymentID             uuid.UUID
	From                  PaymentStatus
	To                    PaymentStatus
	ExternalTransactionID *string
	At                    time.Time
}

type ConfirmPaymentRequest struct {
	ExternalTransactionID string `json:"external_transaction_id" binding:"required"`
}

// WebhookEvent is the body a payment provider posts (or publishes) when a
// payment changes state on its side.
type WebhookEvent struct {
	EventType             string          `json:"event_type" binding:"required"`
	ExternalTransactionID string          `json:"external_transaction_id"`
	PaymentID             uuid.UUID       `json:"payment_id" binding:"required"`
	Status                string          `json:"status"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
}

const WebhookEventPaymentCompleted = "payment.completed"
