package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

// SessionHandler manages the session-level tenant selection.
type SessionHandler struct {
	resolver *services.OrganizationResolver
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(resolver *services.OrganizationResolver) *SessionHandler {
	return &SessionHandler{resolver: resolver}
}

// SelectOrganization stores the organization subsequent requests default to.
// The selection follows the same access rules as the selector header.
func (h *SessionHandler) SelectOrganization(c *gin.Context) {
	type SelectRequest struct {
		OrganizationID uint64 `json:"organization_id" binding:"required"`
	}

	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	allowed, err := h.resolver.CanAccess(c.Request.Context(), middleware.GetCurrentUser(c), req.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !allowed {
		// Same answer for missing and foreign organizations.
		apierrors.NotFound(c, "")
		return
	}

	session := sessions.Default(c)
	session.Set(constants.ContextKeyOrganizationID, req.OrganizationID)
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"organization_id": req.OrganizationID})
}

// GetPrincipal returns the principal of the current request, or null when no
// organization resolves.
func (h *SessionHandler) GetPrincipal(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"principal": middleware.GetPrincipal(c)})
}
