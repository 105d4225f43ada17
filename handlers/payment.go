package handlers

import (
	"context"
	"errors"
	"net/http"

	"kinder-payment-svc/gateway"
	"kinder-payment-svc/middleware"
	"kinder-payment-svc/models"
	"kinder-payment-svc/store"
	"kinder-payment-svc/usecase"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PaymentService interface {
	ProcessPayment(ctx context.Context, req models.PaymentRequest) usecase.Result[models.PaymentResponse]
	ProcessRefund(ctx context.Context, req gateway.RefundRequest) usecase.Result[gateway.RefundResponse]
	GetReceipt(ctx context.Context, ref string) usecase.Result[*models.ReceiptData]
	GetParentPayments(ctx context.Context, parentID string) usecase.Result[[]models.PaymentRecord]
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, note string) usecase.Result[models.PaymentRecord]
}

type StatusReader interface {
	GetPaymentStatus(ctx context.Context, ref string) gateway.StatusResult
}

type PaymentFinder interface {
	FindPayment(ctx context.Context, ref string) (models.PaymentRecord, error)
}

type PaymentHandler struct {
	payments PaymentService
	status   StatusReader
	finder   PaymentFinder
	logger   *zap.Logger
}

func NewPaymentHandler(payments PaymentService, status StatusReader, finder PaymentFinder, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		status:   status,
		finder:   finder,
		logger:   logger,
	}
}

// ProcessPayment charges the caller. Only admins may pay on behalf of another
// parent.
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	ctx, span := otel.Tracer("payment-service").Start(c.Request.Context(), "ProcessPaymentHandler")
	defer span.End()

	identity, err := middleware.CurrentIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !identity.IsAdmin() || req.ParentID == "" {
		req.ParentID = identity.UserID
	}
	span.SetAttributes(
		attribute.String("payment.parent_id", req.ParentID),
		attribute.String("payment.method", string(req.Method)),
	)

	res := h.payments.ProcessPayment(ctx, req)
	switch {
	case res.OK():
		c.JSON(http.StatusCreated, res.Data)
	case len(res.Data.Details) > 0 || req.Amount <= 0:
		c.JSON(http.StatusBadRequest, res.Data)
	default:
		c.JSON(http.StatusPaymentRequired, res.Data)
	}
}

func (h *PaymentHandler) ProcessRefund(c *gin.Context) {
	ctx, span := otel.Tracer("payment-service").Start(c.Request.Context(), "ProcessRefundHandler")
	defer span.End()

	var req gateway.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("payment.transaction_id", req.TransactionID))

	res := h.payments.ProcessRefund(ctx, req)
	if !res.OK() {
		span.RecordError(res.Err)
		respondError(c, h.logger, res.Err)
		return
	}
	c.JSON(http.StatusOK, res.Data)
}

func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	ref := c.Param("ref")
	if !h.canAccess(c, ref) {
		return
	}

	result := h.status.GetPaymentStatus(c.Request.Context(), ref)
	if result.Status == nil {
		c.JSON(http.StatusNotFound, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) GetReceipt(c *gin.Context) {
	ref := c.Param("ref")
	if !h.canAccess(c, ref) {
		return
	}

	res := h.payments.GetReceipt(c.Request.Context(), ref)
	if !res.OK() {
		respondError(c, h.logger, res.Err)
		return
	}
	c.JSON(http.StatusOK, res.Data)
}

func (h *PaymentHandler) GetParentPayments(c *gin.Context) {
	identity, err := middleware.CurrentIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	parentID := c.Param("id")
	if !identity.IsAdmin() && identity.UserID != parentID {
		forbidden(c)
		return
	}

	res := h.payments.GetParentPayments(c.Request.Context(), parentID)
	if !res.OK() {
		respondError(c, h.logger, res.Err)
		return
	}
	c.JSON(http.StatusOK, res.Data)
}

type StatusUpdateRequest struct {
	Status models.PaymentStatus `json:"status" binding:"required"`
	Note   string               `json:"note"`
}

func (h *PaymentHandler) UpdatePaymentStatus(c *gin.Context) {
	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.payments.UpdatePaymentStatus(c.Request.Context(), c.Param("ref"), req.Status, req.Note)
	if !res.OK() {
		respondError(c, h.logger, res.Err)
		return
	}
	c.JSON(http.StatusOK, res.Data)
}

// canAccess lets admins read any payment and parents only their own. It writes
// the error response and returns false when access is denied.
func (h *PaymentHandler) canAccess(c *gin.Context, ref string) bool {
	identity, err := middleware.CurrentIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	if identity.IsAdmin() {
		return true
	}

	record, err := h.finder.FindPayment(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return false
		}
		respondError(c, h.logger, err)
		return false
	}
	if record.ParentID != identity.UserID {
		forbidden(c)
		return false
	}
	return true
}
