package models

import (
	"time"

	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
)

// Membership is a user's participation in an organization. One row per
// (organization, email); UserID is linked on first login for invited emails.
type Membership struct {
	ID             uint64     `gorm:"primarykey" json:"id"`
	OrganizationID uint64     `gorm:"not null;uniqueIndex:idx_memberships_org_email" json:"organization_id"`
	Email          string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_memberships_org_email" json:"email"`
	UserID         *uint64    `gorm:"index" json:"user_id"`
	Role           rbac.Role  `gorm:"type:varchar(20);not null" json:"role"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	JoinedAt       *time.Time `json:"joined_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relations
	Organization    Organization     `gorm:"foreignKey:OrganizationID" json:"-"`
	User            *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TeamMemberships []TeamMembership `gorm:"foreignKey:MembershipID" json:"-"`
}

// SuperAdminEmail grants super-admin status to whoever logs in with Email.
type SuperAdminEmail struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
