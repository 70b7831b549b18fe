package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

type FeatureFlagHandler struct {
	flagService *services.FeatureFlagService
}

func NewFeatureFlagHandler(flagService *services.FeatureFlagService) *FeatureFlagHandler {
	return &FeatureFlagHandler{flagService: flagService}
}

type setFlagRequest struct {
	IsEnabled *bool `json:"is_enabled" binding:"required"`
}

// ListFlags returns the effective flags of the organization
func (h *FeatureFlagHandler) ListFlags(c *gin.Context) {
	flags, err := h.flagService.List(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags})
}

// SetOrganizationFlag overrides a flag for the current organization
func (h *FeatureFlagHandler) SetOrganizationFlag(c *gin.Context) {
	var req setFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	flag, err := h.flagService.SetOrganizationFlag(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID, c.Param("key"), *req.IsEnabled)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityID:   formatID(flag.ID),
		EntityName: flag.Key,
		NewValue:   flag,
	})
	c.JSON(http.StatusOK, services.FlagState{Key: flag.Key, IsEnabled: flag.IsEnabled})
}

// SetGlobalFlag sets the global default of a flag. The change is audited in
// the acting super-admin's current organization when one resolves.
func (h *FeatureFlagHandler) SetGlobalFlag(c *gin.Context) {
	var req setFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	flag, err := h.flagService.SetGlobalFlag(c.Request.Context(), c.Param("key"), *req.IsEnabled)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityID:   formatID(flag.ID),
		EntityName: flag.Key,
		NewValue:   flag,
	})
	c.JSON(http.StatusOK, services.FlagState{Key: flag.Key, IsEnabled: flag.IsEnabled})
}
