package handlers

import (
	"net/http"

	"kinder-payment-svc/admin"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AdminHandler struct {
	service *admin.Service
	logger  *zap.Logger
}

func NewAdminHandler(service *admin.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

func (h *AdminHandler) ListPayments(c *gin.Context) {
	ctx, span := otel.Tracer("payment-service").Start(c.Request.Context(), "AdminListPayments")
	defer span.End()

	var q admin.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.service.ListPayments(ctx, q)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.Int("payments.total", page.Total))
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandler) GetPayment(c *gin.Context) {
	row, err := h.service.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *AdminHandler) AddPayment(c *gin.Context) {
	var form admin.NewPaymentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.service.AddPayment(c.Request.Context(), form)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *AdminHandler) Remind(c *gin.Context) {
	record, err := h.service.Remind(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type adminRefundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

func (h *AdminHandler) Refund(c *gin.Context) {
	var req adminRefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	resp, err := h.service.Refund(c.Request.Context(), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) MarkPaid(c *gin.Context) {
	record, err := h.service.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *AdminHandler) Receipt(c *gin.Context) {
	receipt, err := h.service.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *AdminHandler) Bulk(c *gin.Context) {
	ctx, span := otel.Tracer("payment-service").Start(c.Request.Context(), "AdminBulk")
	defer span.End()

	var req admin.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(
		attribute.String("bulk.action", req.Action),
		attribute.Int("bulk.items", len(req.IDs)),
	)

	report, err := h.service.Bulk(ctx, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Dashboard(c.Request.Context()))
}

func (h *AdminHandler) Report(c *gin.Context) {
	name := c.Param("report")
	data, fallback, err := h.service.Report(c.Request.Context(), name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":   name,
		"fallback": fallback,
		"data":     data,
	})
}
