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

type PaymentConfirmer interface {
	Confirm(ctx context.Context, paymentID uuid.UUID, externalTxnID string) bool
	HandleWebhook(ctx context.Context, event models.WebhookEvent) bool
}

type PendingPayments interface {
	GetPending(ctx context.Context) ([]*models.Payment, error)
}

type PremiumPurchaser interface {
	Purchase(ctx context.Context, sellerID uuid.UUID) (*models.Payment, error)
}

type PaymentHandler struct {
	confirmer PaymentConfirmer
	pending   PendingPayments
	premium   PremiumPurchaser
	logger    *zap.Logger
}

func NewPaymentHandler(confirmer PaymentConfirmer, pending PendingPayments, premium PremiumPurchaser, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{confirmer: confirmer, pending: pending, premium: premium, logger: logger}
}

// ConfirmPayment is the manual confirmation path used by admins.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "ConfirmPayment")
	defer span.End()

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}

	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.String("payment.id", paymentID.String()))
	success := h.confirmer.Confirm(ctx, paymentID, req.ExternalTransactionID)
	span.SetAttributes(attribute.Bool("payment.confirmed", success))

	c.JSON(http.StatusOK, gin.H{"success": success})
}

// Webhook receives provider callbacks. A 500 asks the provider to retry;
// irrelevant events get a 200 so it stops.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "PaymentWebhook")
	defer span.End()

	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("payment.id", event.PaymentID.String()),
	)

	if !h.confirmer.HandleWebhook(ctx, event) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PaymentHandler) ListPending(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "ListPendingPayments")
	defer span.End()

	payments, err := h.pending.GetPending(ctx)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// PurchasePremium opens a premium upgrade payment for the calling seller.
func (h *PaymentHandler) PurchasePremium(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "PurchasePremium")
	defer span.End()

	sellerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid seller ID"})
		return
	}

	userID, _ := middleware.UserID(c)
	if userID != sellerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	payment, err := h.premium.Purchase(ctx, sellerID)
	if err != nil {
		span.RecordError(err)
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}
