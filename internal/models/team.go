package models

import "time"

// Team groups memberships inside an organization for visibility scoping.
type Team struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	OrganizationID uint64    `gorm:"not null;uniqueIndex:idx_teams_org_name" json:"organization_id"`
	Name           string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_teams_org_name" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Members []TeamMembership `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

// TeamMembership links a Membership to a Team, unique per pair.
type TeamMembership struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	TeamID       uint64    `gorm:"not null;uniqueIndex:idx_team_memberships_pair" json:"team_id"`
	MembershipID uint64    `gorm:"not null;uniqueIndex:idx_team_memberships_pair;index" json:"membership_id"`
	RoleCode     *string   `gorm:"type:varchar(50)" json:"role_code"`
	CreatedAt    time.Time `json:"created_at"`

	Team       Team       `gorm:"foreignKey:TeamID" json:"-"`
	Membership Membership `gorm:"foreignKey:MembershipID" json:"membership,omitempty"`
}
