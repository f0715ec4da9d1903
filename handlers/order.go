package handlers

import (
	"context"
	"net/http"

	"marketplace-svc/middleware"
	"marketplace-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderService interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID, sellerID uuid.UUID, next models.OrderStatus) (*models.Order, error)
}

type OrderHandler struct {
	orders OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// GetOrder returns an order to its buyer, its seller, or an admin.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	userID, _ := middleware.UserID(c)
	if userID != order.BuyerID && userID != order.SellerID && middleware.Role(c) != middleware.RoleAdmin {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sellerID, _ := middleware.UserID(c)
	order, err := h.orders.UpdateStatus(ctx, orderID, sellerID, req.Status)
	if err != nil {
		span.RecordError(err)
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
