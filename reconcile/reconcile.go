package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/ledger"
	"marketplace-svc/middleware"
	"marketplace-svc/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const batchSize = 100

type OrderScanner interface {
	ListOrdersWithoutPayment(ctx context.Context, limit int) ([]*models.Order, error)
}

type PaymentLedger interface {
	CreatePayment(ctx context.Context, in ledger.CreatePaymentInput) (*models.Payment, error)
	PendingSince(ctx context.Context, createdBefore time.Time) ([]*models.Payment, error)
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, next models.PaymentStatus, externalTxnID *string) (*models.Payment, error)
}

// Report summarizes one sweep.
type Report struct {
	PaymentsCreated int
	PaymentsExpired int
	Failures        int
}

// Reconciler repairs what checkout and confirmation leave behind when a step
// fails after the orders were written: orders that never got a payment, and
// payments that stayed pending past their TTL.
type Reconciler struct {
	orders     OrderScanner
	payments   PaymentLedger
	interval   time.Duration
	pendingTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func New(orders OrderScanner, payments PaymentLedger, interval, pendingTTL time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		orders:     orders,
		payments:   payments,
		interval:   interval,
		pendingTTL: pendingTTL,
		now:        time.Now,
		logger:     logger,
	}
}

func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Reconciler started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("Reconciliation sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		}
	}
}

// Sweep runs both repairs once. It returns an error only when a listing
// query fails; per-row failures are counted in the report.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "Reconciler.Sweep")
	defer span.End()

	var report Report

	if err := r.createMissingPayments(ctx, &report); err != nil {
		span.RecordError(err)
		return report, err
	}
	if err := r.expirePendingPayments(ctx, &report); err != nil {
		span.RecordError(err)
		return report, err
	}

	span.SetAttributes(
		attribute.Int("reconcile.payments_created", report.PaymentsCreated),
		attribute.Int("reconcile.payments_expired", report.PaymentsExpired),
		attribute.Int("reconcile.failures", report.Failures),
	)
	if report.PaymentsCreated > 0 || report.PaymentsExpired > 0 || report.Failures > 0 {
		r.logger.Info("Reconciliation sweep finished",
			zap.Int("payments_created", report.PaymentsCreated),
			zap.Int("payments_expired", report.PaymentsExpired),
			zap.Int("failures", report.Failures),
		)
	}
	return report, nil
}

func (r *Reconciler) createMissingPayments(ctx context.Context, report *Report) error {
	orders, err := r.orders.ListOrdersWithoutPayment(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("list orders without payment: %w", err)
	}

	for _, order := range orders {
		orderID := order.ID
		payment, err := r.payments.CreatePayment(ctx, ledger.CreatePaymentInput{
			SellerID:    order.SellerID,
			OrderID:     &orderID,
			Amount:      order.TotalAmount,
			Currency:    order.Currency,
			Method:      order.PaymentMethodID.String(),
			Description: fmt.Sprintf("Order %s", order.ID),
		})
		if errors.Is(err, apperrors.ErrDuplicate) {
			continue
		}
		if err != nil {
			report.Failures++
			r.logger.Error("Failed to create missing payment",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			continue
		}
		report.PaymentsCreated++
		middleware.RecordReconcileRepair("payment_created")
		r.logger.Info("Created missing payment",
			zap.String("order_id", order.ID.String()),
			zap.String("payment_id", payment.ID.String()),
		)
	}
	return nil
}

func (r *Reconciler) expirePendingPayments(ctx context.Context, report *Report) error {
	cutoff := r.now().UTC().Add(-r.pendingTTL)
	stale, err := r.payments.PendingSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale payments: %w", err)
	}

	for _, p := range stale {
		_, err := r.payments.UpdateStatus(ctx, p.ID, models.PaymentStatusFailed, nil)
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			// Completed after we listed it.
			continue
		}
		if err != nil {
			report.Failures++
			r.logger.Error("Failed to expire pending payment",
				zap.String("payment_id", p.ID.String()),
				zap.Error(err),
			)
			continue
		}
		report.PaymentsExpired++
		middleware.RecordReconcileRepair("payment_expired")
		r.logger.Info("Expired stale pending payment",
			zap.String("payment_id", p.ID.String()),
			zap.Time("created_at", p.CreatedAt),
		)
	}
	return nil
}
