package confirmation

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/middleware"
	"marketplace-svc/models"
	"marketplace-svc/notification"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PaymentLedger interface {
	Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	Complete(ctx context.Context, paymentID uuid.UUID, externalTxnID *string) (*models.Payment, bool, error)
}

type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub *models.PremiumSubscription) error
	FindSubscriptionByPayment(ctx context.Context, paymentID uuid.UUID) (*models.PremiumSubscription, error)
	HasActiveSubscription(ctx context.Context, sellerID uuid.UUID, at time.Time) (bool, error)
}

type ProfileStore interface {
	GetSellerProfile(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error)
	SaveSellerProfile(ctx context.Context, p *models.SellerProfile) error
}

type BadgeRule interface {
	IsBadgeEligible(ctx context.Context, sellerID, categoryID uuid.UUID) (bool, error)
}

const (
	resultCompleted = "completed"
	resultIgnored   = "ignored"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

// Service completes payments on an external signal and runs the premium
// cascade. Every step is safe to repeat, so duplicate deliveries and a manual
// confirm racing a webhook converge on the same state.
type Service struct {
	payments PaymentLedger
	subs     SubscriptionStore
	profiles ProfileStore
	badges   BadgeRule
	notifier notification.Notifier
	term     time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(payments PaymentLedger, subs SubscriptionStore, profiles ProfileStore, badges BadgeRule, notifier notification.Notifier, term time.Duration, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Service{
		payments: payments,
		subs:     subs,
		profiles: profiles,
		badges:   badges,
		notifier: notifier,
		term:     term,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Confirm is the manual (admin) confirmation path.
func (s *Service) Confirm(ctx context.Context, paymentID uuid.UUID, externalTxnID string) bool {
	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "Confirmation.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID.String()))

	payment, ok := s.load(ctx, paymentID)
	if !ok {
		return false
	}
	return s.complete(ctx, payment, externalTxnID)
}

// HandleWebhook processes a provider event. Events other than
// payment.completed are acknowledged without action. An event whose amount
// or currency disagrees with the stored payment is rejected.
func (s *Service) HandleWebhook(ctx context.Context, event models.WebhookEvent) bool {
	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "Confirmation.HandleWebhook")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("payment.id", event.PaymentID.String()),
	)

	traceID := middleware.GetTraceID(ctx)
	if event.EventType != models.WebhookEventPaymentCompleted {
		middleware.RecordConfirmation(resultIgnored)
		s.logger.Info("Ignoring webhook event",
			zap.String("trace_id", traceID),
			zap.String("event_type", event.EventType),
			zap.String("payment_id", event.PaymentID.String()),
		)
		return true
	}

	payment, ok := s.load(ctx, event.PaymentID)
	if !ok {
		return false
	}

	if !event.Amount.Equal(payment.Amount) ||
		(event.Currency != "" && !strings.EqualFold(event.Currency, payment.Currency)) {
		middleware.RecordConfirmation(resultRejected)
		s.logger.Warn("Webhook does not match payment",
			zap.String("trace_id", traceID),
			zap.String("payment_id", payment.ID.String()),
			zap.String("expected_amount", payment.Amount.String()),
			zap.String("amount", event.Amount.String()),
			zap.String("expected_currency", payment.Currency),
			zap.String("currency", event.Currency),
		)
		return false
	}

	return s.complete(ctx, payment, event.ExternalTransactionID)
}

func (s *Service) load(ctx context.Context, paymentID uuid.UUID) (*models.Payment, bool) {
	payment, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		middleware.RecordConfirmation(resultFailed)
		s.logger.Warn("Cannot confirm payment",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("payment_id", paymentID.String()),
			zap.Error(err),
		)
		return nil, false
	}
	return payment, true
}

func (s *Service) complete(ctx context.Context, payment *models.Payment, externalTxnID string) bool {
	traceID := middleware.GetTraceID(ctx)
	justCompleted := false

	if payment.Status != models.PaymentStatusCompleted {
		var txn *string
		if externalTxnID != "" {
			txn = &externalTxnID
		}
		updated, applied, err := s.payments.Complete(ctx, payment.ID, txn)
		if err != nil {
			middleware.RecordConfirmation(resultFailed)
			s.logger.Error("Failed to complete payment",
				zap.String("trace_id", traceID),
				zap.String("payment_id", payment.ID.String()),
				zap.String("status", string(payment.Status)),
				zap.Error(err),
			)
			return false
		}
		justCompleted = applied
		payment = updated
	}

	if justCompleted {
		amount := payment.Amount
		paymentID := payment.ID
		s.notifier.Notify(ctx, models.Event{
			EventType: models.EventPaymentCompleted,
			OrderID:   payment.OrderID,
			PaymentID: &paymentID,
			SellerID:  payment.SellerID,
			Amount:    &amount,
			Currency:  payment.Currency,
		})
	}

	if err := s.activatePremium(ctx, payment); err != nil {
		middleware.RecordConfirmation(resultFailed)
		s.logger.Error("Premium cascade failed",
			zap.String("trace_id", traceID),
			zap.String("payment_id", payment.ID.String()),
			zap.String("seller_id", payment.SellerID.String()),
			zap.Error(err),
		)
		return false
	}

	middleware.RecordConfirmation(resultCompleted)
	s.logger.Info("Payment confirmed",
		zap.String("trace_id", traceID),
		zap.String("payment_id", payment.ID.String()),
		zap.String("seller_id", payment.SellerID.String()),
		zap.Bool("first_confirmation", justCompleted),
	)
	return true
}

var errProfileMissing = errors.New("seller profile not found")

// activatePremium derives the seller's premium and badge flags from the
// completed payment. It is re-runnable: the subscription is created at most
// once per payment and the flags are recomputed from current state. A payment
// whose subscription has since lapsed does not open a new one, so a late
// redelivery leaves the seller non-premium.
func (s *Service) activatePremium(ctx context.Context, payment *models.Payment) error {
	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "Confirmation.ActivatePremium")
	defer span.End()

	now := s.now().UTC()

	created := false
	_, err := s.subs.FindSubscriptionByPayment(ctx, payment.ID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		sub := &models.PremiumSubscription{
			ID:        uuid.New(),
			SellerID:  payment.SellerID,
			PaymentID: payment.ID,
			StartDate: now,
			EndDate:   now.Add(s.term),
			Active:    true,
			CreatedAt: now,
		}
		err := s.subs.CreateSubscription(ctx, sub)
		switch {
		case errors.Is(err, apperrors.ErrDuplicate):
			// A concurrent confirmation of the same payment got there first.
		case err != nil:
			span.RecordError(err)
			return apperrors.Wrap(apperrors.CodeDependency, err, "create subscription")
		default:
			created = true
		}
	case err != nil:
		span.RecordError(err)
		return apperrors.Wrap(apperrors.CodeDependency, err, "look up subscription")
	}

	profile, err := s.profiles.GetSellerProfile(ctx, payment.SellerID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, errProfileMissing, payment.SellerID.String())
	}
	if err != nil {
		span.RecordError(err)
		return apperrors.Wrap(apperrors.CodeDependency, err, "load seller profile")
	}

	active, err := s.subs.HasActiveSubscription(ctx, payment.SellerID, now)
	if err != nil {
		span.RecordError(err)
		return apperrors.Wrap(apperrors.CodeDependency, err, "check active subscription")
	}

	profile.IsPremium = active
	switch {
	case !active:
		profile.PremiumSince = nil
	case profile.PremiumSince == nil:
		profile.PremiumSince = &now
	}

	eligible := false
	if profile.PrimaryCategoryID != nil {
		eligible, err = s.badges.IsBadgeEligible(ctx, profile.SellerID, *profile.PrimaryCategoryID)
		if err != nil {
			span.RecordError(err)
			return err
		}
	}
	profile.HasVerifiedBadge = eligible
	profile.UpdatedAt = now

	if err := s.profiles.SaveSellerProfile(ctx, profile); err != nil {
		span.RecordError(err)
		return apperrors.Wrap(apperrors.CodeDependency, err, "save seller profile")
	}

	span.SetAttributes(
		attribute.Bool("subscription.created", created),
		attribute.Bool("seller.verified_badge", eligible),
	)

	if created {
		paymentID := payment.ID
		s.notifier.Notify(ctx, models.Event{
			EventType: models.EventPremiumActivated,
			PaymentID: &paymentID,
			SellerID:  payment.SellerID,
		})
	}
	return nil
}
