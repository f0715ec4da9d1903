package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated     = "order.created"
	EventOrderConfirmed   = "order.confirmed"
	EventPaymentCompleted = "payment.completed"
	EventPremiumActivated = "seller.premium_activated"
)

type Event struct {
	ID         uuid.UUID        `json:"id"`
	EventType  string           `json:"event_type"`
	OrderID    *uuid.UUID       `json:"order_id,omitempty"`
	PaymentID  *uuid.UUID       `json:"payment_id,omitempty"`
	SellerID   uuid.UUID        `json:"seller_id"`
	BuyerID    *uuid.UUID       `json:"buyer_id,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
