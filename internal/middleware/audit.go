package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

// AuditEvent is what a handler declares about the change it made.
type AuditEvent struct {
	// OrganizationID overrides the principal's organization, for changes
	// made before the request had one.
	OrganizationID uint64
	// Action overrides the action derived from the HTTP verb.
	Action string
	// EntityType overrides the entity type of the route.
	EntityType string
	EntityID   string
	EntityName string
	OldValue   interface{}
	NewValue   interface{}
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry services.AuditEntry) (*models.AuditLog, error)
}

// RecordAudit declares an audit event of the current request. A request that
// changes several entities declares one event per entity.
func RecordAudit(c *gin.Context, event AuditEvent) {
	c.Set(constants.ContextKeyAuditEvent, append(auditEvents(c), event))
}

// SkipAudit stops AuditCapture from recording the current request.
func SkipAudit(c *gin.Context) {
	c.Set(constants.ContextKeyAuditSkip, true)
}

func auditEvents(c *gin.Context) []AuditEvent {
	if value, ok := c.Get(constants.ContextKeyAuditEvent); ok {
		events, _ := value.([]AuditEvent)
		return events
	}
	return nil
}

// AuditCapture records an audit log for entityType after the handler ran.
// Only mutating requests that completed with 2xx are captured. Failures are
// logged and never change the response.
func AuditCapture(entityType string, recorder AuditRecorder, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		action := services.ActionForMethod(c.Request.Method)
		if action == models.AuditActionRead || c.GetBool(constants.ContextKeyAuditSkip) {
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 300 {
			return
		}

		events := auditEvents(c)
		if len(events) == 0 {
			events = []AuditEvent{{}}
		}
		for _, event := range events {
			recordEvent(c, recorder, log, event, action, entityType, start)
		}
	}
}

func recordEvent(c *gin.Context, recorder AuditRecorder, log logrus.FieldLogger, event AuditEvent, action, entityType string, start time.Time) {
	if event.Action != "" {
		action = event.Action
	}
	if event.EntityType != "" {
		entityType = event.EntityType
	}

	orgID := event.OrganizationID
	if orgID == 0 {
		if principal := GetPrincipal(c); principal != nil {
			orgID = principal.OrganizationID
		}
	}
	if orgID == 0 {
		log.WithFields(logrus.Fields{
			"entity_type": entityType,
			"request_id":  GetRequestID(c),
		}).Warn("Skipping audit log without organization")
		return
	}

	entityID := event.EntityID
	if entityID == "" {
		entityID = c.Param("id")
	}
	if entityID == "" {
		entityID = services.EntityID(event.NewValue)
	}

	entry := services.AuditEntry{
		OrganizationID: orgID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		EntityName:     event.EntityName,
		OldValue:       event.OldValue,
		NewValue:       event.NewValue,
		Actor:          GetCurrentUser(c),
		Metadata: map[string]interface{}{
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  GetRequestID(c),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"route":       c.FullPath(),
		},
	}

	if _, err := recorder.Record(c.Request.Context(), entry); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
			"action":      action,
			"request_id":  GetRequestID(c),
		}).Error("Failed to record audit log")
	}
}
