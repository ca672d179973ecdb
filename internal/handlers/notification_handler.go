package handlers

import (
	"net/http"

	"freelance-market/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// ListNotifications lists the caller's notifications
// GET /api/notifications?unread=true
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit, offset := page(c)
	unread := c.Query("unread") == "true"
	notifications, total, err := h.notificationService.List(c.Request.Context(), userID, unread, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, notifications, total, limit, offset)
}

// MarkRead marks one notification as read
// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	notificationID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
