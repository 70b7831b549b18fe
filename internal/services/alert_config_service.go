package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrAlertConfigNotFound   = errors.New("alert config not found")
	ErrInvalidAlertConfig    = errors.New("invalid alert config")
	ErrWebhookURLRequired    = errors.New("webhook url is required when the webhook channel is enabled")
	ErrInvalidWebhookURL     = errors.New("webhook url must be an absolute http or https url")
	ErrInvalidCooldown       = errors.New("cooldown minutes cannot be negative")
	ErrAlertTriggersRequired = errors.New("trigger actions and trigger entities cannot be empty")
)

// ConfigInvalidator drops cached alert configs of an organization.
type ConfigInvalidator interface {
	Invalidate(organizationID uint64)
}

// AlertConfigService manages audit alert rules. Every change invalidates the
// organization's cached rules.
type AlertConfigService struct {
	repo  repository.AlertConfigRepository
	cache ConfigInvalidator
}

// NewAlertConfigService creates a new AlertConfigService.
func NewAlertConfigService(repo repository.AlertConfigRepository, cache ConfigInvalidator) *AlertConfigService {
	return &AlertConfigService{repo: repo, cache: cache}
}

// AlertConfigInput holds the fields of an alert rule.
type AlertConfigInput struct {
	Name            string
	TriggerActions  []string
	TriggerEntities []string
	NotifyUserIDs   []uint64
	NotifyRoles     []string
	NotifyInApp     bool
	NotifyEmail     bool
	NotifyWebhook   bool
	WebhookURL      string
	WebhookSecret   *string
	CooldownMinutes int
	IsActive        bool
}

// List lists the organization's alert configs.
func (s *AlertConfigService) List(ctx context.Context, orgID uint64) ([]models.AuditAlertConfig, error) {
	configs, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert configs: %w", err)
	}
	return configs, nil
}

// Get returns one alert config.
func (s *AlertConfigService) Get(ctx context.Context, orgID, id uint64) (*models.AuditAlertConfig, error) {
	config, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertConfigNotFound
		}
		return nil, fmt.Errorf("failed to find alert config: %w", err)
	}
	return config, nil
}

// Create creates an alert config.
func (s *AlertConfigService) Create(ctx context.Context, orgID, actorID uint64, input AlertConfigInput) (*models.AuditAlertConfig, error) {
	config := &models.AuditAlertConfig{OrganizationID: orgID, CreatedByID: &actorID}
	if err := applyAlertInput(config, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, config); err != nil {
		return nil, fmt.Errorf("failed to create alert config: %w", err)
	}
	s.cache.Invalidate(orgID)
	return config, nil
}

// Update replaces the fields of an alert config and returns the previous and
// updated rows.
func (s *AlertConfigService) Update(ctx context.Context, orgID, id uint64, input AlertConfigInput) (before, after *models.AuditAlertConfig, err error) {
	config, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, nil, err
	}
	snapshot := *config
	if err := applyAlertInput(config, input); err != nil {
		return nil, nil, err
	}
	if err := s.repo.Update(ctx, config); err != nil {
		return nil, nil, fmt.Errorf("failed to update alert config: %w", err)
	}
	s.cache.Invalidate(orgID)
	return &snapshot, config, nil
}

// Delete deletes an alert config and returns the deleted row.
func (s *AlertConfigService) Delete(ctx context.Context, orgID, id uint64) (*models.AuditAlertConfig, error) {
	config, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertConfigNotFound
		}
		return nil, fmt.Errorf("failed to delete alert config: %w", err)
	}
	s.cache.Invalidate(orgID)
	return config, nil
}

func applyAlertInput(config *models.AuditAlertConfig, input AlertConfigInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAlertConfig)
	}
	actions := cleanSet(input.TriggerActions, true)
	entities := cleanSet(input.TriggerEntities, false)
	if len(actions) == 0 || len(entities) == 0 {
		return ErrAlertTriggersRequired
	}
	if input.CooldownMinutes < 0 {
		return ErrInvalidCooldown
	}

	roles := make([]string, 0, len(input.NotifyRoles))
	for _, r := range input.NotifyRoles {
		role, ok := rbac.ParseRole(r)
		if !ok {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidRole, r)
		}
		roles = append(roles, string(role))
	}

	webhookURL := strings.TrimSpace(input.WebhookURL)
	if input.NotifyWebhook {
		if webhookURL == "" {
			return ErrWebhookURLRequired
		}
		parsed, err := url.Parse(webhookURL)
		if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return ErrInvalidWebhookURL
		}
	}

	config.Name = name
	config.TriggerActions = actions
	config.TriggerEntities = entities
	config.NotifyUserIDs = append([]uint64{}, input.NotifyUserIDs...)
	config.NotifyRoles = roles
	config.NotifyInApp = input.NotifyInApp
	config.NotifyEmail = input.NotifyEmail
	config.NotifyWebhook = input.NotifyWebhook
	config.WebhookURL = webhookURL
	if input.WebhookSecret != nil {
		config.WebhookSecret = *input.WebhookSecret
	}
	config.CooldownMinutes = input.CooldownMinutes
	config.IsActive = input.IsActive
	return nil
}

func cleanSet(values []string, upper bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if upper {
			v = strings.ToUpper(v)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
