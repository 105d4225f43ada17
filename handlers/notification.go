package handlers

import (
	"context"
	"net/http"

	"kinder-payment-svc/middleware"
	"kinder-payment-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationService interface {
	List(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type NotificationHandler struct {
	notifications NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

func (h *NotificationHandler) List(c *gin.Context) {
	identity, err := middleware.CurrentIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	list, err := h.notifications.List(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	identity, err := middleware.CurrentIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	identity, err := middleware.CurrentIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.notifications.MarkAllRead(c.Request.Context(), identity.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
