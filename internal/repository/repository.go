package repository

import (
	"context"
	"time"

	"github.com/yukikurage/rocks-tracker-api/internal/database"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email (case-insensitive)
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// Update updates a user
	Update(ctx context.Context, user *models.User) error

	// IsSuperAdminEmail reports whether email is listed in super_admin_emails
	IsSuperAdminEmail(ctx context.Context, email string) (bool, error)
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	// CreateWithOwner creates an organization, its default team and the
	// creator's ADMIN membership within a single transaction
	CreateWithOwner(ctx context.Context, org *models.Organization, owner *models.User) (*models.Membership, error)

	// FindByID finds an organization by ID regardless of its active flag
	FindByID(ctx context.Context, id uint64) (*models.Organization, error)

	// FindActiveByID finds an active organization by ID
	FindActiveByID(ctx context.Context, id uint64) (*models.Organization, error)

	// Update updates an organization
	Update(ctx context.Context, org *models.Organization) error

	// FindLegacyMember finds the legacy OrganizationMember row for a pair
	FindLegacyMember(ctx context.Context, organizationID, userID uint64) (*models.OrganizationMember, error)

	// FirstLegacyOrganizationID returns the first active organization the
	// user has a legacy membership in
	FirstLegacyOrganizationID(ctx context.Context, userID uint64) (uint64, error)
}

// MembershipRepository defines the interface for the new membership model
type MembershipRepository interface {
	// FindActive finds the active membership of a user in an organization
	FindActive(ctx context.Context, organizationID, userID uint64) (*models.Membership, error)

	// FindForUser finds the user's membership in an organization, active or not
	FindForUser(ctx context.Context, organizationID, userID uint64) (*models.Membership, error)

	// FindByID finds a membership inside an organization
	FindByID(ctx context.Context, organizationID, id uint64) (*models.Membership, error)

	// FirstActiveOrganizationID returns the organization of the user's first
	// active membership in an active organization
	FirstActiveOrganizationID(ctx context.Context, userID uint64) (uint64, error)

	// Upsert creates or reactivates the membership keyed by (organization, email)
	Upsert(ctx context.Context, membership *models.Membership) (*models.Membership, error)

	// Create creates a membership
	Create(ctx context.Context, membership *models.Membership) error

	// Update updates a membership
	Update(ctx context.Context, membership *models.Membership) error

	// LinkUserByEmail attaches userID to memberships invited by email
	LinkUserByEmail(ctx context.Context, userID uint64, email string) error

	// ListByOrganization lists memberships of an organization with users preloaded
	ListByOrganization(ctx context.Context, organizationID uint64) ([]models.Membership, error)

	// ListForUser lists active memberships of a user with organizations preloaded
	ListForUser(ctx context.Context, userID uint64) ([]models.Membership, error)

	// ActiveUserIDsWithRoles returns user IDs of active members holding any role
	ActiveUserIDsWithRoles(ctx context.Context, organizationID uint64, roles []rbac.Role) ([]uint64, error)

	// ActiveUserIDsIn filters userIDs down to active members of the organization
	ActiveUserIDsIn(ctx context.Context, organizationID uint64, userIDs []uint64) ([]uint64, error)
}

// TeamRepository defines the interface for team data access
type TeamRepository interface {
	// EnsureDefault finds or creates the organization's default team
	EnsureDefault(ctx context.Context, organizationID uint64) (*models.Team, error)

	// EnsureTeamMembership links a membership to a team if not yet linked
	EnsureTeamMembership(ctx context.Context, teamID, membershipID uint64) error

	// HasTeamMembership reports whether the membership is linked to any team
	HasTeamMembership(ctx context.Context, membershipID uint64) (bool, error)

	// RemoveTeamMembership unlinks a membership from a team
	RemoveTeamMembership(ctx context.Context, teamID, membershipID uint64) error

	// ActiveTeamIDs returns the active teams of the organization a membership belongs to
	ActiveTeamIDs(ctx context.Context, organizationID, membershipID uint64) ([]uint64, error)

	// Create creates a team
	Create(ctx context.Context, team *models.Team) error

	// Update updates a team
	Update(ctx context.Context, team *models.Team) error

	// FindByID finds a team inside an organization
	FindByID(ctx context.Context, organizationID, id uint64) (*models.Team, error)

	// List lists the organization's teams
	List(ctx context.Context, organizationID uint64, includeInactive bool) ([]models.Team, error)

	// ListMembers lists team memberships with their membership preloaded
	ListMembers(ctx context.Context, teamID uint64) ([]models.TeamMembership, error)
}

// FeatureFlagRepository defines the interface for feature flag data access
type FeatureFlagRepository interface {
	// ListForOrganization returns global rows and rows of organizationID
	ListForOrganization(ctx context.Context, organizationID uint64) ([]models.FeatureFlag, error)

	// Set creates or updates the row for (key, organizationID); nil means global
	Set(ctx context.Context, key string, organizationID *uint64, enabled bool) (*models.FeatureFlag, error)
}

// AuditLogFilter holds filtering options for listing audit logs
type AuditLogFilter struct {
	OrganizationID uint64
	EntityType     string
	EntityID       string
	Action         string
	UserID         *uint64
	Since          *time.Time
	Page           utils.PaginationParams
}

// AuditRepository defines the interface for audit log data access
type AuditRepository interface {
	// Create appends an audit log
	Create(ctx context.Context, log *models.AuditLog) error

	// List lists audit logs newest first
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error)

	// DeleteOlderThan removes logs created before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertConfigRepository defines the interface for audit alert rules
type AlertConfigRepository interface {
	ListActive(ctx context.Context, organizationID uint64) ([]models.AuditAlertConfig, error)
	List(ctx context.Context, organizationID uint64) ([]models.AuditAlertConfig, error)
	FindByID(ctx context.Context, organizationID, id uint64) (*models.AuditAlertConfig, error)
	Create(ctx context.Context, config *models.AuditAlertConfig) error
	Update(ctx context.Context, config *models.AuditAlertConfig) error
	Delete(ctx context.Context, organizationID, id uint64) error
}

// NotificationRepository defines the interface for in-app notifications
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListForUser(ctx context.Context, organizationID, userID uint64, unreadOnly bool, page utils.PaginationParams) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, organizationID, userID, id uint64) error
}

// EntityRepository is the data access shared by the tenant-partitioned domain
// models. Every method is organization-scoped.
type EntityRepository[T any] interface {
	// List returns one page of rows matching scope and the total count
	List(ctx context.Context, scope database.Scope, page utils.PaginationParams) ([]T, int64, error)

	// FindByID finds a row by ID inside the organization, further narrowed by scope
	FindByID(ctx context.Context, organizationID, id uint64, scope database.Scope) (*T, error)

	// Create creates a row
	Create(ctx context.Context, entity *T) error

	// CreateWithCode assigns the next "<prefix>-<n>" code for the organization
	// and creates the row in one transaction
	CreateWithCode(ctx context.Context, organizationID uint64, prefix string, entity *T, assign func(*T, string)) error

	// Update saves a row
	Update(ctx context.Context, entity *T) error

	// Delete deletes a row inside the organization
	Delete(ctx context.Context, organizationID, id uint64) error
}
