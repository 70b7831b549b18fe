package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"gorm.io/gorm"
)

// GormFeatureFlagRepository is a GORM implementation of FeatureFlagRepository
type GormFeatureFlagRepository struct {
	db *gorm.DB
}

// NewFeatureFlagRepository creates a new FeatureFlagRepository
func NewFeatureFlagRepository(db *gorm.DB) FeatureFlagRepository {
	return &GormFeatureFlagRepository{db: db}
}

// ListForOrganization returns global rows and the organization's own rows
func (r *GormFeatureFlagRepository) ListForOrganization(ctx context.Context, organizationID uint64) ([]models.FeatureFlag, error) {
	var flags []models.FeatureFlag
	if err := r.db.WithContext(ctx).
		Where("organization_id IS NULL OR organization_id = ?", organizationID).
		Order("id").
		Find(&flags).Error; err != nil {
		return nil, err
	}
	return flags, nil
}

// Set creates or updates the row for (key, organizationID)
func (r *GormFeatureFlagRepository) Set(ctx context.Context, key string, organizationID *uint64, enabled bool) (*models.FeatureFlag, error) {
	db := r.db.WithContext(ctx)

	query := db.Where(map[string]interface{}{"key": key})
	if organizationID == nil {
		query = query.Where("organization_id IS NULL")
	} else {
		query = query.Where("organization_id = ?", *organizationID)
	}

	var flag models.FeatureFlag
	err := query.First(&flag).Error
	switch {
	case err == nil:
		flag.IsEnabled = enabled
		if err := db.Model(&flag).Update("is_enabled", enabled).Error; err != nil {
			return nil, err
		}
		return &flag, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		flag = models.FeatureFlag{Key: key, OrganizationID: organizationID, IsEnabled: enabled}
		if err := db.Create(&flag).Error; err != nil {
			return nil, err
		}
		return &flag, nil
	default:
		return nil, err
	}
}
