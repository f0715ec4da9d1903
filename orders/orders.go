package orders

import (
	"context"
	"errors"
	"fmt"
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

type Store interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, at time.Time) (bool, error)
}

// Service drives the seller side of the order lifecycle.
type Service struct {
	store    Store
	notifier notification.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(store Store, notifier notification.Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Service{store: store, notifier: notifier, now: time.Now, logger: logger}
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// UpdateStatus moves a seller's order to next. Only the owning seller may do
// so, and only along the order lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, orderID, sellerID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "Orders.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.next_status", string(next)),
	)

	if !next.Valid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown order status %q", next))
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "order belongs to another seller")
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("order %s %s -> %s: %w", orderID, order.Status, next, apperrors.ErrInvalidTransition)
	}

	now := s.now().UTC()
	applied, err := s.store.UpdateOrderStatus(ctx, orderID, order.Status, next, now)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "update order status")
	}
	if !applied {
		return nil, fmt.Errorf("order %s changed concurrently: %w", orderID, apperrors.ErrInvalidTransition)
	}

	order.Status = next
	order.UpdatedAt = now

	s.logger.Info("Order status updated",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", orderID.String()),
		zap.String("seller_id", sellerID.String()),
		zap.String("status", string(next)),
	)

	if next == models.OrderStatusConfirmed {
		buyerID := order.BuyerID
		s.notifier.Notify(ctx, models.Event{
			EventType: models.EventOrderConfirmed,
			OrderID:   &orderID,
			SellerID:  sellerID,
			BuyerID:   &buyerID,
		})
	}
	return order, nil
}
