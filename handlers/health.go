package handlers

import (
	"errors"
	"net/http"

	"marketplace-svc/apperrors"
	"marketplace-svc/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "marketplace-service",
	})
}

// writeError renders err with the status of its error code. Server-side
// failures are logged and their details hidden from the client.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}

	message := "Internal server error"
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && apperrors.CodeOf(err) != apperrors.CodeInternal {
		message = appErr.Message
		if status == http.StatusBadGateway {
			message = "Upstream dependency unavailable"
		}
	}
	c.JSON(status, gin.H{"error": message, "code": apperrors.CodeOf(err)})
}
