package models

import "time"

// FeatureFlag is a boolean toggle. A nil OrganizationID marks the global
// default; an organization row overrides it for that key only.
type FeatureFlag struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	Key            string    `gorm:"type:varchar(100);not null;index" json:"key"`
	OrganizationID *uint64   `gorm:"index" json:"organization_id"`
	IsEnabled      bool      `gorm:"not null" json:"is_enabled"`
	Description    string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
