package repository

import (
	"context"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"gorm.io/gorm"
)

// GormAlertConfigRepository is a GORM implementation of AlertConfigRepository
type GormAlertConfigRepository struct {
	db *gorm.DB
}

// NewAlertConfigRepository creates a new AlertConfigRepository
func NewAlertConfigRepository(db *gorm.DB) AlertConfigRepository {
	return &GormAlertConfigRepository{db: db}
}

func (r *GormAlertConfigRepository) ListActive(ctx context.Context, organizationID uint64) ([]models.AuditAlertConfig, error) {
	var configs []models.AuditAlertConfig
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Order("id").
		Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *GormAlertConfigRepository) List(ctx context.Context, organizationID uint64) ([]models.AuditAlertConfig, error) {
	var configs []models.AuditAlertConfig
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("id").
		Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *GormAlertConfigRepository) FindByID(ctx context.Context, organizationID, id uint64) (*models.AuditAlertConfig, error) {
	var config models.AuditAlertConfig
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		First(&config).Error; err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *GormAlertConfigRepository) Create(ctx context.Context, config *models.AuditAlertConfig) error {
	return r.db.WithContext(ctx).Create(config).Error
}

func (r *GormAlertConfigRepository) Update(ctx context.Context, config *models.AuditAlertConfig) error {
	return r.db.WithContext(ctx).Save(config).Error
}

func (r *GormAlertConfigRepository) Delete(ctx context.Context, organizationID, id uint64) error {
	result := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		Delete(&models.AuditAlertConfig{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
