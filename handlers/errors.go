package handlers

import (
	"context"
	"errors"
	"net/http"

	"kinder-payment-svc/admin"
	"kinder-payment-svc/analytics"
	"kinder-payment-svc/circuitbreaker"
	"kinder-payment-svc/gateway"
	"kinder-payment-svc/middleware"
	"kinder-payment-svc/store"
	"kinder-payment-svc/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	var (
		formErr  *admin.FormError
		fieldErr *gateway.ValidationError
	)
	switch {
	case errors.As(err, &formErr),
		errors.As(err, &fieldErr),
		errors.Is(err, gateway.ErrInvalidAmount),
		errors.Is(err, gateway.ErrRefundExceedsAmount),
		errors.Is(err, usecase.ErrInvalidStatus),
		errors.Is(err, admin.ErrUnknownAction),
		errors.Is(err, admin.ErrNoItems),
		errors.Is(err, store.ErrInvalidAmount),
		errors.Is(err, store.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, gateway.ErrPaymentNotFound),
		errors.Is(err, usecase.ErrReceiptUnavailable),
		errors.Is(err, analytics.ErrUnknownReport):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrRefundNotAllowed),
		errors.Is(err, usecase.ErrInvalidTransition),
		errors.Is(err, admin.ErrReminderUnavailable):
		return http.StatusConflict
	case errors.Is(err, circuitbreaker.ErrCircuitOpen),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err with the mapped status. Internal errors are logged
// and not echoed to the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		traceID := middleware.GetTraceID(c.Request.Context())
		logger.Error("Request failed", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(code, gin.H{"error": "Internal server error"})
		return
	}

	var formErr *admin.FormError
	if errors.As(err, &formErr) {
		c.JSON(code, gin.H{"error": "Invalid payment form", "violations": formErr.Violations})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
}
