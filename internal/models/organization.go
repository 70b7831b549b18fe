package models

import (
	"time"

	"gorm.io/datatypes"
)

// Organization is the tenant boundary. Organizations are deactivated, never
// hard-deleted.
type Organization struct {
	ID          uint64            `gorm:"primarykey" json:"id"`
	Name        string            `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	IsActive    bool              `gorm:"not null" json:"is_active"`
	Settings    datatypes.JSONMap `json:"settings"`
	CreatedByID uint64            `json:"created_by_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	// Relations
	Memberships []Membership `gorm:"foreignKey:OrganizationID" json:"-"`
	Teams       []Team       `gorm:"foreignKey:OrganizationID" json:"-"`
}

// CurrentSprintID returns the sprint pointer stored in Settings, if any.
func (o Organization) CurrentSprintID() *uint64 {
	if o.Settings == nil {
		return nil
	}
	switch v := o.Settings["currentSprintId"].(type) {
	case float64:
		id := uint64(v)
		return &id
	case uint64:
		return &v
	case int:
		id := uint64(v)
		return &id
	}
	return nil
}
