package models

import "time"

// OrganizationMember is the legacy (user x organization) relation. It coexists
// with Membership until every row is provisioned into the new model; Role
// holds whatever spelling the legacy data used.
type OrganizationMember struct {
	OrganizationID uint64    `gorm:"primarykey" json:"organization_id"`
	UserID         uint64    `gorm:"primarykey" json:"user_id"`
	Role           string    `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt       time.Time `json:"joined_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
