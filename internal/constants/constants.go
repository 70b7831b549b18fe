package constants

import "time"

// Session and context keys
const (
	SessionCookieName = "rocks_session"

	ContextKeyUserID = "user_id"
	// ContextKeyOrganizationID holds the session-level tenant selection.
	ContextKeyOrganizationID = "organization_id"

	ContextKeyUser              = "current_user"
	ContextKeyPrincipal         = "principal"
	ContextKeyRequestID         = "request_id"
	ContextKeyOwnershipRequired = "ownership_required"
	ContextKeyAuditEvent        = "audit_event"
	ContextKeyAuditSkip         = "audit_skip"
	// ContextKeyDenial carries the error code of a rejected gate for metrics.
	ContextKeyDenial = "authz_denial"
)

// Request headers
const (
	HeaderOrganizationID = "X-Organization-Id"
	HeaderRequestID      = "X-Request-ID"
	HeaderSignature      = "X-Rocks-Signature"
	HeaderEventID        = "X-Rocks-Event-ID"
)

// Tenancy defaults
const (
	// DefaultTeamName is the implicit team every organization owns.
	DefaultTeamName = "כללי"

	FlagTeamScoping = "team_scoping"

	SettingCurrentSprintID = "currentSprintId"
)

// Validation limits
const (
	MinPasswordLength   = 8
	MaxAIGeneratedTasks = 20
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Alerting defaults
const (
	DefaultAlertCacheTTL      = 60 * time.Second
	DefaultAlertCacheSize     = 1024
	DefaultCooldownMaxEntries = 1000
	DefaultCooldownMaxAge     = time.Hour
	DefaultWebhookTimeout     = 10 * time.Second
)
