package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/dto"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// ListNotifications lists the caller's notifications; ?unread_only=true
// hides read ones.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	page := utils.GetPaginationParams(c)

	notifications, total, err := h.notificationService.List(c.Request.Context(), principal.OrganizationID, principal.UserID, c.Query("unread_only") == "true", page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToListResponse(notifications, page, total))
}

// MarkNotificationRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	principal := middleware.GetPrincipal(c)
	if err := h.notificationService.MarkRead(c.Request.Context(), principal.OrganizationID, principal.UserID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
