package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"marketplace-svc/cache"
	"marketplace-svc/middleware"
	"marketplace-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

type CheckoutService interface {
	CreateOrder(ctx context.Context, buyerID uuid.UUID, req models.CheckoutRequest) (*models.CheckoutResponse, error)
}

type IdempotencyStore interface {
	Reserve(ctx context.Context, scope, key string) (bool, error)
	Complete(ctx context.Context, scope, key string, body []byte) error
	Release(ctx context.Context, scope, key string) error
	Lookup(ctx context.Context, scope, key string) (cache.IdempotencyState, []byte, error)
}

type CheckoutHandler struct {
	checkout    CheckoutService
	idempotency IdempotencyStore
	logger      *zap.Logger
}

// NewCheckoutHandler builds the checkout endpoint. idempotency may be nil, in
// which case the Idempotency-Key header is ignored.
func NewCheckoutHandler(checkout CheckoutService, idempotency IdempotencyStore, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, idempotency: idempotency, logger: logger}
}

func (h *CheckoutHandler) Checkout(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "Checkout")
	defer span.End()

	buyerID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.String("cart.id", req.CartID.String()))

	scope := buyerID.String()
	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	reserved := false
	if key != "" && h.idempotency != nil {
		ok, err := h.idempotency.Reserve(ctx, scope, key)
		if err != nil {
			h.logger.Warn("Idempotency store unavailable",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.Error(err),
			)
		} else if !ok {
			h.replay(ctx, c, scope, key)
			return
		} else {
			reserved = true
		}
	}

	resp, err := h.checkout.CreateOrder(ctx, buyerID, req)
	if err != nil {
		span.RecordError(err)
		if reserved {
			if err := h.idempotency.Release(ctx, scope, key); err != nil {
				h.logger.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
		writeError(c, h.logger, err)
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if reserved {
		if err := h.idempotency.Complete(ctx, scope, key, body); err != nil {
			h.logger.Warn("Failed to store idempotent response",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.Error(err),
			)
			// Leave the key free rather than in-flight until it expires.
			if err := h.idempotency.Release(ctx, scope, key); err != nil {
				h.logger.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}

	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

func (h *CheckoutHandler) replay(ctx context.Context, c *gin.Context, scope, key string) {
	state, body, err := h.idempotency.Lookup(ctx, scope, key)
	if err != nil {
		h.logger.Error("Failed to look up idempotency key", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Idempotency store unavailable"})
		return
	}

	switch state {
	case cache.IdempotencyCompleted:
		c.Header("Idempotent-Replayed", "true")
		c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "A request with this Idempotency-Key is already in progress"})
	}
}
