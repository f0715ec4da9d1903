package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/ledger"
	"marketplace-svc/middleware"
	"marketplace-svc/models"
	"marketplace-svc/notification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CartStore interface {
	GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	GetCartLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error)
	ClearLine(ctx context.Context, lineID uuid.UUID) error
}

type Catalog interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	SellerExists(ctx context.Context, sellerID uuid.UUID) (bool, error)
}

type OwnershipValidator interface {
	BuyerExists(ctx context.Context, buyerID uuid.UUID) (bool, error)
	AddressBelongsToUser(ctx context.Context, addressID, userID uuid.UUID) (bool, error)
	PaymentMethodBelongsToUser(ctx context.Context, methodID, userID uuid.UUID) (bool, error)
}

type OrderStore interface {
	CreateOrders(ctx context.Context, orders []*models.Order) error
}

type PaymentCreator interface {
	CreatePayment(ctx context.Context, in ledger.CreatePaymentInput) (*models.Payment, error)
}

// Service splits a buyer's cart into one order per seller and opens a
// pending payment for each order.
type Service struct {
	carts    CartStore
	catalog  Catalog
	owners   OwnershipValidator
	orders   OrderStore
	payments PaymentCreator
	notifier notification.Notifier
	currency string
	now      func() time.Time
	logger   *zap.Logger
}

type Deps struct {
	Carts    CartStore
	Catalog  Catalog
	Owners   OwnershipValidator
	Orders   OrderStore
	Payments PaymentCreator
	Notifier notification.Notifier
}

func NewService(deps Deps, currency string, logger *zap.Logger) *Service {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Service{
		carts:    deps.Carts,
		catalog:  deps.Catalog,
		owners:   deps.Owners,
		orders:   deps.Orders,
		payments: deps.Payments,
		notifier: notifier,
		currency: currency,
		now:      time.Now,
		logger:   logger,
	}
}

// sellerGroup keeps the lines of one seller in cart order.
type sellerGroup struct {
	sellerID uuid.UUID
	items    []models.OrderItem
}

// CreateOrder checks out the cart. Either it fails before any order is
// written, or it returns at least one order. Payment creation failures after
// the orders are persisted are logged and left to the reconciliation sweep.
func (s *Service) CreateOrder(ctx context.Context, buyerID uuid.UUID, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "Checkout.CreateOrder")
	defer span.End()

	traceID := middleware.GetTraceID(ctx)
	span.SetAttributes(
		attribute.String("buyer.id", buyerID.String()),
		attribute.String("cart.id", req.CartID.String()),
	)

	if err := s.validate(ctx, buyerID, req); err != nil {
		span.RecordError(err)
		return nil, err
	}

	lines, err := s.carts.GetCartLines(ctx, req.CartID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load cart lines")
	}
	if len(lines) == 0 {
		return nil, apperrors.ErrEmptyCart
	}

	groups, skipped, err := s.groupBySeller(ctx, lines)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(groups) == 0 {
		middleware.RecordLinesSkipped(len(skipped))
		return nil, apperrors.ErrNoValidItems
	}

	now := s.now().UTC()
	orders := make([]*models.Order, 0, len(groups))
	for _, g := range groups {
		order := &models.Order{
			ID:                uuid.New(),
			BuyerID:           buyerID,
			SellerID:          g.sellerID,
			CartID:            req.CartID,
			DeliveryAddressID: req.DeliveryAddressID,
			PaymentMethodID:   req.PaymentMethodID,
			Currency:          s.currency,
			Status:            models.OrderStatusPending,
			PaymentStatus:     models.PaymentStatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		for _, item := range g.items {
			item.ID = uuid.New()
			item.OrderID = order.ID
			order.Items = append(order.Items, item)
		}
		order.RecalculateTotal()
		orders = append(orders, order)
	}

	if err := s.orders.CreateOrders(ctx, orders); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "create orders")
	}
	middleware.RecordOrdersCreated(len(orders))

	payments := make([]*models.Payment, 0, len(orders))
	for _, order := range orders {
		orderID := order.ID
		payment, err := s.payments.CreatePayment(ctx, ledger.CreatePaymentInput{
			SellerID:    order.SellerID,
			OrderID:     &orderID,
			Amount:      order.TotalAmount,
			Currency:    order.Currency,
			Method:      req.PaymentMethodID.String(),
			Description: fmt.Sprintf("Order %s", order.ID),
		})
		if err != nil {
			s.logger.Error("Failed to create payment for order",
				zap.String("trace_id", traceID),
				zap.String("order_id", order.ID.String()),
				zap.String("seller_id", order.SellerID.String()),
				zap.Error(err),
			)
			continue
		}
		payments = append(payments, payment)
	}

	for _, line := range lines {
		if err := s.carts.ClearLine(ctx, line.ID); err != nil {
			s.logger.Error("Failed to clear cart line",
				zap.String("trace_id", traceID),
				zap.String("cart_line_id", line.ID.String()),
				zap.Error(err),
			)
		}
	}

	for _, order := range orders {
		orderID := order.ID
		amount := order.TotalAmount
		s.notifier.Notify(ctx, models.Event{
			EventType:  models.EventOrderCreated,
			OrderID:    &orderID,
			SellerID:   order.SellerID,
			BuyerID:    &buyerID,
			Amount:     &amount,
			Currency:   order.Currency,
			OccurredAt: now,
		})
	}

	middleware.RecordLinesSkipped(len(skipped))
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	s.logger.Info("Checkout completed",
		zap.String("trace_id", traceID),
		zap.String("buyer_id", buyerID.String()),
		zap.String("cart_id", req.CartID.String()),
		zap.Int("orders", len(orders)),
		zap.Int("payments", len(payments)),
		zap.Int("skipped_lines", len(skipped)),
	)

	return &models.CheckoutResponse{
		Orders:       orders,
		Payments:     payments,
		SkippedLines: skipped,
	}, nil
}

func (s *Service) validate(ctx context.Context, buyerID uuid.UUID, req models.CheckoutRequest) error {
	exists, err := s.owners.BuyerExists(ctx, buyerID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "look up buyer")
	}
	if !exists {
		return apperrors.New(apperrors.CodeNotFound, "buyer not found")
	}

	cart, err := s.carts.GetCart(ctx, req.CartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "cart not found")
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, "load cart")
	}
	if cart.BuyerID != buyerID {
		return apperrors.New(apperrors.CodeUnauthorized, "cart does not belong to buyer")
	}

	owns, err := s.owners.AddressBelongsToUser(ctx, req.DeliveryAddressID, buyerID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "check delivery address")
	}
	if !owns {
		return apperrors.New(apperrors.CodeUnauthorized, "delivery address does not belong to buyer")
	}

	owns, err = s.owners.PaymentMethodBelongsToUser(ctx, req.PaymentMethodID, buyerID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "check payment method")
	}
	if !owns {
		return apperrors.New(apperrors.CodeUnauthorized, "payment method does not belong to buyer")
	}
	return nil
}

// groupBySeller resolves each line's product and buckets the lines by seller,
// in the order sellers first appear in the cart. Lines whose product or
// seller is gone are skipped.
func (s *Service) groupBySeller(ctx context.Context, lines []models.CartLine) ([]*sellerGroup, []uuid.UUID, error) {
	var groups []*sellerGroup
	bySeller := make(map[uuid.UUID]*sellerGroup)
	sellerKnown := make(map[uuid.UUID]bool)
	var skipped []uuid.UUID

	skip := func(line models.CartLine, reason string) {
		s.logger.Warn("Skipping cart line",
			zap.String("cart_line_id", line.ID.String()),
			zap.String("product_id", line.ProductID.String()),
			zap.String("reason", reason),
		)
		skipped = append(skipped, line.ID)
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			skip(line, "non-positive quantity")
			continue
		}

		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if errors.Is(err, apperrors.ErrNotFound) {
			skip(line, "product not found")
			continue
		}
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.CodeDependency, err, "resolve product")
		}

		known, seen := sellerKnown[product.SellerID]
		if !seen {
			known, err = s.catalog.SellerExists(ctx, product.SellerID)
			if err != nil {
				return nil, nil, apperrors.Wrap(apperrors.CodeDependency, err, "resolve seller")
			}
			sellerKnown[product.SellerID] = known
		}
		if !known {
			skip(line, "seller not found")
			continue
		}

		g, ok := bySeller[product.SellerID]
		if !ok {
			g = &sellerGroup{sellerID: product.SellerID}
			bySeller[product.SellerID] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			TotalPrice:  line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}
	return groups, skipped, nil
}
