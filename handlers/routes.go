package handlers

import (
	"kinder-payment-svc/middleware"
	"kinder-payment-svc/models"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the authenticated API. Health and metrics are mounted
// by the caller.
func RegisterRoutes(router gin.IRouter, secret []byte, payments *PaymentHandler, notifications *NotificationHandler, adm *AdminHandler) {
	api := router.Group("/")
	api.Use(middleware.AuthMiddleware(secret))
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	api.POST("/payments", payments.ProcessPayment)
	api.POST("/payments/refunds", adminOnly, payments.ProcessRefund)
	api.GET("/payments/:ref/status", payments.GetPaymentStatus)
	api.GET("/payments/:ref/receipt", payments.GetReceipt)
	api.PATCH("/payments/:ref/status", adminOnly, payments.UpdatePaymentStatus)
	api.GET("/parents/:id/payments", payments.GetParentPayments)

	api.GET("/notifications", notifications.List)
	api.POST("/notifications/read-all", notifications.MarkAllRead)
	api.POST("/notifications/:id/read", notifications.MarkRead)

	a := api.Group("/admin", adminOnly)
	a.GET("/payments", adm.ListPayments)
	a.POST("/payments", adm.AddPayment)
	a.POST("/payments/bulk", adm.Bulk)
	a.GET("/payments/:id", adm.GetPayment)
	a.GET("/payments/:id/receipt", adm.Receipt)
	a.POST("/payments/:id/remind", adm.Remind)
	a.POST("/payments/:id/refund", adm.Refund)
	a.POST("/payments/:id/mark-paid", adm.MarkPaid)
	a.GET("/dashboard", adm.Dashboard)
	a.GET("/analytics/:report", adm.Report)
}
