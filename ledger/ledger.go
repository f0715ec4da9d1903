package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/middleware"
	"marketplace-svc/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPendingPayments(ctx context.Context, createdBefore time.Time) ([]*models.Payment, error)
	TransitionPayment(ctx context.Context, t models.PaymentTransition) (bool, error)
}

// OrderMirror receives the denormalized payment status of an order.
type OrderMirror interface {
	UpdateOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status models.PaymentStatus, at time.Time) error
}

type CreatePaymentInput struct {
	SellerID    uuid.UUID
	OrderID     *uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Method      string
	Description string
}

// Ledger owns payment records and their forward-only lifecycle.
type Ledger struct {
	payments PaymentStore
	orders   OrderMirror
	provider string
	now      func() time.Time
	logger   *zap.Logger
}

func New(payments PaymentStore, orders OrderMirror, provider string, logger *zap.Logger) *Ledger {
	return &Ledger{
		payments: payments,
		orders:   orders,
		provider: provider,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) CreatePayment(ctx context.Context, in CreatePaymentInput) (*models.Payment, error) {
	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "Ledger.CreatePayment")
	defer span.End()

	if in.SellerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "seller id is required")
	}
	if in.Amount.IsNegative() {
		return nil, apperrors.New(apperrors.CodeValidation, "amount must not be negative")
	}
	if in.Currency == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "currency is required")
	}

	now := l.now().UTC()
	payment := &models.Payment{
		ID:          uuid.New(),
		SellerID:    in.SellerID,
		OrderID:     in.OrderID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Provider:    l.provider,
		Method:      in.Method,
		Description: in.Description,
		Status:      models.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	span.SetAttributes(attribute.String("payment.id", payment.ID.String()))

	if err := l.payments.CreatePayment(ctx, payment); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "create payment")
	}

	middleware.RecordPaymentCreated()
	l.logger.Info("Payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("seller_id", payment.SellerID.String()),
		zap.String("amount", payment.Amount.String()),
	)
	return payment, nil
}

func (l *Ledger) Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := l.payments.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "payment not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (l *Ledger) GetPending(ctx context.Context) ([]*models.Payment, error) {
	return l.PendingSince(ctx, l.now())
}

// PendingSince lists pending payments created before the cutoff.
func (l *Ledger) PendingSince(ctx context.Context, createdBefore time.Time) ([]*models.Payment, error) {
	payments, err := l.payments.ListPendingPayments(ctx, createdBefore)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list pending payments")
	}
	return payments, nil
}

// UpdateStatus moves a payment to next. Re-applying completed to a completed
// payment succeeds without writing. The store applies the change only while
// the payment still has the status we read, so concurrent callers cannot both
// win the same transition.
func (l *Ledger) UpdateStatus(ctx context.Context, paymentID uuid.UUID, next models.PaymentStatus, externalTxnID *string) (*models.Payment, error) {
	payment, _, err := l.transition(ctx, paymentID, next, externalTxnID)
	return payment, err
}

// Complete moves a payment to completed. applied is true only for the one
// call that performed the write; callers that found it already completed,
// including losers of a concurrent race, get false.
func (l *Ledger) Complete(ctx context.Context, paymentID uuid.UUID, externalTxnID *string) (payment *models.Payment, applied bool, err error) {
	return l.transition(ctx, paymentID, models.PaymentStatusCompleted, externalTxnID)
}

func (l *Ledger) transition(ctx context.Context, paymentID uuid.UUID, next models.PaymentStatus, externalTxnID *string) (*models.Payment, bool, error) {
	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "Ledger.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment.id", paymentID.String()),
		attribute.String("payment.next_status", string(next)),
	)

	if !next.Valid() {
		return nil, false, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown payment status %q", next))
	}

	payment, err := l.Get(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}

	if payment.Status == models.PaymentStatusCompleted && next == models.PaymentStatusCompleted {
		return payment, false, nil
	}
	if !payment.Status.CanTransitionTo(next) {
		return nil, false, fmt.Errorf("payment %s %s -> %s: %w", paymentID, payment.Status, next, apperrors.ErrInvalidTransition)
	}

	now := l.now().UTC()
	applied, err := l.payments.TransitionPayment(ctx, models.PaymentTransition{
		PaymentID:             paymentID,
		From:                  payment.Status,
		To:                    next,
		ExternalTransactionID: externalTxnID,
		At:                    now,
	})
	if err != nil {
		span.RecordError(err)
		return nil, false, apperrors.Wrap(apperrors.CodeDependency, err, "update payment status")
	}
	if !applied {
		// Someone else moved the payment first; report what they left behind.
		current, err := l.Get(ctx, paymentID)
		if err != nil {
			return nil, false, err
		}
		if current.Status == next && next == models.PaymentStatusCompleted {
			return current, false, nil
		}
		return nil, false, fmt.Errorf("payment %s changed concurrently to %s: %w", paymentID, current.Status, apperrors.ErrInvalidTransition)
	}

	payment.Status = next
	payment.UpdatedAt = now
	if externalTxnID != nil {
		payment.ExternalTransactionID = externalTxnID
	}
	if next == models.PaymentStatusCompleted {
		payment.CompletedAt = &now
	}

	middleware.RecordPaymentTransition(string(next))
	l.logger.Info("Payment status updated",
		zap.String("payment_id", paymentID.String()),
		zap.String("status", string(next)),
	)

	if payment.OrderID != nil {
		if err := l.orders.UpdateOrderPaymentStatus(ctx, *payment.OrderID, next, now); err != nil {
			// The payment row is the source of truth; the mirror is repaired on the next write.
			l.logger.Error("Failed to mirror payment status onto order",
				zap.String("payment_id", paymentID.String()),
				zap.String("order_id", payment.OrderID.String()),
				zap.Error(err),
			)
		}
	}

	return payment, true, nil
}
