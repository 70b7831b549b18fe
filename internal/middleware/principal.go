package middleware

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

// PrincipalBuilder builds the request principal.
type PrincipalBuilder interface {
	Build(ctx context.Context, user *models.User, headerValue string, sessionValue uint64) *services.Principal
}

// LoadPrincipal builds the principal from the selector header and session and
// stores it in the context. It never aborts; gates decide what a missing
// principal means.
func LoadPrincipal(builder PrincipalBuilder) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionOrg, _ := toUint64(sessions.Default(c).Get(constants.ContextKeyOrganizationID))
		principal := builder.Build(
			c.Request.Context(),
			GetCurrentUser(c),
			c.GetHeader(constants.HeaderOrganizationID),
			sessionOrg,
		)
		if principal != nil {
			c.Set(constants.ContextKeyPrincipal, principal)
		}
		c.Next()
	}
}

// RequireOrganization rejects requests that resolved no organization.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetPrincipal(c) == nil {
			deny(c, apierrors.ErrCodeOrganizationRequired)
			apierrors.OrganizationRequired(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the principal stored by LoadPrincipal, or nil.
func GetPrincipal(c *gin.Context) *services.Principal {
	value, exists := c.Get(constants.ContextKeyPrincipal)
	if !exists {
		return nil
	}
	principal, _ := value.(*services.Principal)
	return principal
}
