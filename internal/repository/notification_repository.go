package repository

import (
	"context"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
	"gorm.io/gorm"
)

// GormNotificationRepository is a GORM implementation of NotificationRepository
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &GormNotificationRepository{db: db}
}

// CreateBatch inserts notifications in a single statement
func (r *GormNotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&notifications).Error
}

// ListForUser lists a user's notifications newest first
func (r *GormNotificationRepository) ListForUser(ctx context.Context, organizationID, userID uint64, unreadOnly bool, page utils.PaginationParams) ([]models.Notification, int64, error) {
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Notification{}).
			Where("organization_id = ? AND user_id = ?", organizationID, userID)
		if unreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	if err := query().
		Order("id DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// MarkRead marks one of the user's notifications as read
func (r *GormNotificationRepository) MarkRead(ctx context.Context, organizationID, userID, id uint64) error {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("organization_id = ? AND user_id = ? AND id = ?", organizationID, userID, id).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
