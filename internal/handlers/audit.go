package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
)

type AuditHandler struct {
	auditService  *services.AuditService
	configService *services.AlertConfigService
}

func NewAuditHandler(auditService *services.AuditService, configService *services.AlertConfigService) *AuditHandler {
	return &AuditHandler{auditService: auditService, configService: configService}
}

// ListLogs lists audit logs of the organization, newest first.
// Filters: entity_type, entity_id, action, user_id, since (RFC 3339).
func (h *AuditHandler) ListLogs(c *gin.Context) {
	filter := repository.AuditLogFilter{
		OrganizationID: middleware.GetPrincipal(c).OrganizationID,
		EntityType:     c.Query("entity_type"),
		EntityID:       c.Query("entity_id"),
		Action:         strings.ToUpper(c.Query("action")),
		Page:           utils.GetPaginationParams(c),
	}

	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid user_id")
			return
		}
		filter.UserID = &userID
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid since, expected RFC 3339")
			return
		}
		filter.Since = &since
	}

	logs, total, err := h.auditService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToListResponse(logs, filter.Page, total))
}

type alertConfigRequest struct {
	Name            string   `json:"name" binding:"required,max=255"`
	TriggerActions  []string `json:"trigger_actions"`
	TriggerEntities []string `json:"trigger_entities"`
	NotifyUserIDs   []uint64 `json:"notify_user_ids"`
	NotifyRoles     []string `json:"notify_roles"`
	NotifyInApp     bool     `json:"notify_in_app"`
	NotifyEmail     bool     `json:"notify_email"`
	NotifyWebhook   bool     `json:"notify_webhook"`
	WebhookURL      string   `json:"webhook_url"`
	WebhookSecret   *string  `json:"webhook_secret"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	IsActive        *bool    `json:"is_active"`
}

func (r alertConfigRequest) input() services.AlertConfigInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return services.AlertConfigInput{
		Name:            r.Name,
		TriggerActions:  r.TriggerActions,
		TriggerEntities: r.TriggerEntities,
		NotifyUserIDs:   r.NotifyUserIDs,
		NotifyRoles:     r.NotifyRoles,
		NotifyInApp:     r.NotifyInApp,
		NotifyEmail:     r.NotifyEmail,
		NotifyWebhook:   r.NotifyWebhook,
		WebhookURL:      r.WebhookURL,
		WebhookSecret:   r.WebhookSecret,
		CooldownMinutes: r.CooldownMinutes,
		IsActive:        active,
	}
}

// ListAlertConfigs lists the organization's alert rules
func (h *AuditHandler) ListAlertConfigs(c *gin.Context) {
	configs, err := h.configService.List(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert_configs": configs})
}

// GetAlertConfig returns one alert rule
func (h *AuditHandler) GetAlertConfig(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	config, err := h.configService.Get(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

// CreateAlertConfig creates an alert rule
func (h *AuditHandler) CreateAlertConfig(c *gin.Context) {
	var req alertConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	principal := middleware.GetPrincipal(c)
	config, err := h.configService.Create(c.Request.Context(), principal.OrganizationID, principal.UserID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{EntityID: formatID(config.ID), NewValue: config})
	c.JSON(http.StatusCreated, config)
}

// UpdateAlertConfig replaces an alert rule
func (h *AuditHandler) UpdateAlertConfig(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req alertConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	before, after, err := h.configService.Update(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID, id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{OldValue: before, NewValue: after})
	c.JSON(http.StatusOK, after)
}

// DeleteAlertConfig deletes an alert rule
func (h *AuditHandler) DeleteAlertConfig(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	config, err := h.configService.Delete(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{OldValue: config})
	c.JSON(http.StatusOK, gin.H{"message": "Alert config deleted"})
}
