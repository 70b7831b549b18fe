package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService reads and acknowledges in-app notifications.
type NotificationService struct {
	repo repository.NotificationRepository
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// List lists the user's notifications in the organization.
func (s *NotificationService) List(ctx context.Context, orgID, userID uint64, unreadOnly bool, page utils.PaginationParams) ([]models.Notification, int64, error) {
	notifications, total, err := s.repo.ListForUser(ctx, orgID, userID, unreadOnly, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, orgID, userID, id uint64) error {
	if err := s.repo.MarkRead(ctx, orgID, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
