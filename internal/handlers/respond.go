package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

// validationError is a request error found by a handler before any service
// call.
type validationError string

func (e validationError) Error() string { return string(e) }

// respondError maps a service error onto the API error taxonomy. Unknown
// errors are attached to the context for the request logger and answered
// with a bare 500.
func respondError(c *gin.Context, err error) {
	var invalid validationError
	switch {
	case errors.As(err, &invalid):
		apierrors.BadRequest(c, invalid.Error())

	case errors.Is(err, services.ErrWorkItemNotFound),
		errors.Is(err, services.ErrCrossTenant),
		errors.Is(err, services.ErrTeamNotFound),
		errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrOrganizationNotFound),
		errors.Is(err, services.ErrSprintNotFound),
		errors.Is(err, services.ErrAlertConfigNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "")

	case errors.Is(err, services.ErrCodeTaken):
		apierrors.Conflict(c, "code", "")
	case errors.Is(err, services.ErrSlugTaken):
		apierrors.Conflict(c, "slug", "")
	case errors.Is(err, services.ErrTeamNameTaken):
		apierrors.Conflict(c, "name", "")
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.Conflict(c, "email", "")

	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))
	case errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrInvalidOrganizationName),
		errors.Is(err, services.ErrInvalidSlug),
		errors.Is(err, services.ErrInvalidTeamName),
		errors.Is(err, services.ErrInvalidTeam),
		errors.Is(err, services.ErrTeamOutOfScope),
		errors.Is(err, services.ErrInvalidOwner),
		errors.Is(err, services.ErrDefaultTeamRequired),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrCannotRemoveYourself),
		errors.Is(err, services.ErrInvalidFlagKey),
		errors.Is(err, services.ErrInvalidAlertConfig),
		errors.Is(err, services.ErrAlertTriggersRequired),
		errors.Is(err, services.ErrInvalidCooldown),
		errors.Is(err, services.ErrWebhookURLRequired),
		errors.Is(err, services.ErrInvalidWebhookURL):
		apierrors.BadRequest(c, err.Error())

	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c)
	case errors.Is(err, services.ErrAccountDisabled):
		apierrors.AccountDisabled(c)

	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, err.Error())
	case errors.Is(err, services.ErrAINoTasksGenerated),
		errors.Is(err, services.ErrAINoValidTasks):
		apierrors.BadRequest(c, err.Error())

	default:
		_ = c.Error(err)
		apierrors.InternalError(c, "")
	}
}

// parseID reads a positive numeric route parameter. It writes the 400 itself.
func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
