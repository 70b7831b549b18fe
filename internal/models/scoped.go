package models

// Scoped carries the partition keys shared by every domain entity.
// OrganizationID is the tenant key; a nil TeamID marks a legacy org-wide row.
type Scoped struct {
	OrganizationID uint64  `gorm:"not null;index" json:"organization_id"`
	TeamID         *uint64 `gorm:"index" json:"team_id"`
	OwnerID        *uint64 `gorm:"index" json:"owner_id"`
}

func (s Scoped) GetOrganizationID() uint64 { return s.OrganizationID }
func (s Scoped) GetTeamID() *uint64 { return s.TeamID }
func (s Scoped) GetOwnerID() *uint64 { return s.OwnerID }

// Entity is implemented by every tenant-partitioned model.
type Entity interface {
	GetOrganizationID() uint64
	GetTeamID() *uint64
	GetOwnerID() *uint64
}

// Entity type names, as recorded in audit logs and alert triggers.
const (
	EntityOrganization     = "Organization"
	EntityMembership       = "Membership"
	EntityTeam             = "Team"
	EntityFeatureFlag      = "FeatureFlag"
	EntityAuditAlertConfig = "AuditAlertConfig"
	EntityObjective        = "Objective"
	EntityRock             = "Rock"
	EntitySprint           = "Sprint"
	EntityStory            = "Story"
	EntityTask             = "Task"
)
