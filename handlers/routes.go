package handlers

import (
	"marketplace-svc/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Checkout *CheckoutHandler
	Orders   *OrderHandler
	Payments *PaymentHandler
}

// RegisterRoutes mounts the public and authenticated API on router. The
// webhook is unauthenticated; the provider reaches it directly.
func RegisterRoutes(router gin.IRouter, h Handlers, jwtSecret []byte) {
	router.GET("/health", HealthCheck)
	router.POST("/payments/webhook", h.Payments.Webhook)

	api := router.Group("/", middleware.AuthMiddleware(jwtSecret))

	api.POST("/checkout", middleware.RequireRole(middleware.RoleBuyer), h.Checkout.Checkout)

	api.GET("/orders/:id", h.Orders.GetOrder)
	api.PATCH("/orders/:id/status", middleware.RequireRole(middleware.RoleSeller), h.Orders.UpdateOrderStatus)

	admin := api.Group("/", middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/payments/pending", h.Payments.ListPending)
	admin.POST("/payments/:id/confirm", h.Payments.ConfirmPayment)

	api.POST("/sellers/:id/premium", middleware.RequireRole(middleware.RoleSeller), h.Payments.PurchasePremium)
}
