package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/rocks-tracker-api/internal/utils"
)

// Scope is a composable query refinement.
type Scope = func(db *gorm.DB) *gorm.DB

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// ForOrganization restricts a query to one tenant. Every domain read goes
// through it.
func ForOrganization(organizationID uint64) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("organization_id = ?", organizationID)
	}
}

// Identity returns the query unchanged.
func Identity(db *gorm.DB) *gorm.DB {
	return db
}
