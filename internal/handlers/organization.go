package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

type OrganizationHandler struct {
	orgService *services.OrganizationService
}

func NewOrganizationHandler(orgService *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService}
}

// CreateOrganization creates a new organization owned by the current user
// and selects it for the session.
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	type CreateOrgRequest struct {
		Name string `json:"name" binding:"required,max=255"`
		Slug string `json:"slug" binding:"max=100"`
	}

	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, membership, err := h.orgService.CreateOrganization(c.Request.Context(), services.CreateOrganizationInput{
		Name:  req.Name,
		Slug:  req.Slug,
		Owner: middleware.GetCurrentUser(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(constants.ContextKeyOrganizationID, org.ID)
	_ = session.Save()

	middleware.RecordAudit(c, middleware.AuditEvent{
		OrganizationID: org.ID,
		EntityID:       formatID(org.ID),
		NewValue:       org,
	})
	c.JSON(http.StatusCreated, dto.OrganizationWithRoleDTO{
		OrganizationDTO: dto.ToOrganizationDTO(*org),
		Role:            membership.Role,
	})
}

// ListOrganizations returns all organizations the user is an active member of
func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	memberships, err := h.orgService.ListOrganizationsForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.OrganizationWithRoleDTO, len(memberships))
	for i, m := range memberships {
		out[i] = dto.ToOrganizationWithRoleDTO(m)
	}
	c.JSON(http.StatusOK, gin.H{"organizations": out})
}

// GetCurrentOrganization returns the organization of the request principal
func (h *OrganizationHandler) GetCurrentOrganization(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	org, err := h.orgService.GetOrganization(c.Request.Context(), principal.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OrganizationWithRoleDTO{
		OrganizationDTO: dto.ToOrganizationDTO(*org),
		Role:            principal.Role,
	})
}

// UpdateOrganization changes name, slug or settings. A null settings value
// removes the key.
func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	type UpdateOrgRequest struct {
		Name     *string                `json:"name" binding:"omitempty,max=255"`
		Slug     *string                `json:"slug" binding:"omitempty,max=100"`
		Settings map[string]interface{} `json:"settings"`
	}

	var req UpdateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	principal := middleware.GetPrincipal(c)
	before, after, err := h.orgService.UpdateOrganization(c.Request.Context(), principal.OrganizationID, services.UpdateOrganizationInput{
		Name:     req.Name,
		Slug:     req.Slug,
		Settings: req.Settings,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityID: formatID(after.ID),
		OldValue: before,
		NewValue: after,
	})
	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*after))
}

// DeactivateOrganization soft-deletes the current organization
func (h *OrganizationHandler) DeactivateOrganization(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	org, err := h.orgService.DeactivateOrganization(c.Request.Context(), principal.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityID: formatID(org.ID),
		OldValue: org,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Organization deactivated"})
}

// SetCurrentSprint stores the sprint as the organization's current one
func (h *OrganizationHandler) SetCurrentSprint(c *gin.Context) {
	sprintID, ok := parseID(c, "id")
	if !ok {
		return
	}

	principal := middleware.GetPrincipal(c)
	org, err := h.orgService.SetCurrentSprint(c.Request.Context(), principal.OrganizationID, sprintID)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityID: formatID(org.ID),
		NewValue: gin.H{"name": org.Name, constants.SettingCurrentSprintID: sprintID},
	})
	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org))
}
