package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrOrganizationNotFound    = errors.New("organization not found")
	ErrInvalidOrganizationName = errors.New("organization name cannot be empty")
	ErrInvalidSlug             = errors.New("slug may only contain letters, digits and dashes")
	ErrSlugTaken               = errors.New("slug is already in use")
	ErrSlugGenerationFailed    = errors.New("failed to generate slug")
	ErrSprintNotFound          = errors.New("sprint not found")
)

// OrganizationService provides business logic for organization operations.
type OrganizationService struct {
	orgRepo        repository.OrganizationRepository
	membershipRepo repository.MembershipRepository
	sprintRepo     repository.EntityRepository[models.Sprint]
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(
	orgRepo repository.OrganizationRepository,
	membershipRepo repository.MembershipRepository,
	sprintRepo repository.EntityRepository[models.Sprint],
) *OrganizationService {
	return &OrganizationService{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		sprintRepo:     sprintRepo,
	}
}

// CreateOrganizationInput represents parameters to create a new organization.
type CreateOrganizationInput struct {
	Name  string
	Slug  string
	Owner *models.User
}

// CreateOrganization creates an organization. The owner becomes its ADMIN and
// the default team is created with it.
func (s *OrganizationService) CreateOrganization(ctx context.Context, input CreateOrganizationInput) (*models.Organization, *models.Membership, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, ErrInvalidOrganizationName
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		generated, err := utils.GenerateSlug(name)
		if err != nil {
			return nil, nil, ErrSlugGenerationFailed
		}
		slug = generated
	} else if slug = utils.Slugify(slug); !utils.IsValidSlug(slug) {
		return nil, nil, ErrInvalidSlug
	}

	org := &models.Organization{
		Name:        name,
		Slug:        slug,
		IsActive:    true,
		Settings:    datatypes.JSONMap{},
		CreatedByID: input.Owner.ID,
	}

	membership, err := s.orgRepo.CreateWithOwner(ctx, org, input.Owner)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, ErrSlugTaken
		}
		return nil, nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return org, membership, nil
}

// ListOrganizationsForUser returns the user's active memberships with their
// organizations.
func (s *OrganizationService) ListOrganizationsForUser(ctx context.Context, userID uint64) ([]models.Membership, error) {
	memberships, err := s.membershipRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return memberships, nil
}

// GetOrganization returns an active organization.
func (s *OrganizationService) GetOrganization(ctx context.Context, orgID uint64) (*models.Organization, error) {
	org, err := s.orgRepo.FindActiveByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}

// UpdateOrganizationInput holds the mutable organization fields.
type UpdateOrganizationInput struct {
	Name     *string
	Slug     *string
	Settings map[string]interface{}
}

// UpdateOrganization applies input and returns the previous and updated rows.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, orgID uint64, input UpdateOrganizationInput) (before, after *models.Organization, err error) {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	snapshot := *org
	snapshot.Settings = copySettings(org.Settings)

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, nil, ErrInvalidOrganizationName
		}
		org.Name = name
	}
	if input.Slug != nil {
		slug := utils.Slugify(*input.Slug)
		if !utils.IsValidSlug(slug) {
			return nil, nil, ErrInvalidSlug
		}
		org.Slug = slug
	}
	if input.Settings != nil {
		settings := copySettings(org.Settings)
		for k, v := range input.Settings {
			if v == nil {
				delete(settings, k)
				continue
			}
			settings[k] = v
		}
		org.Settings = settings
	}

	if err := s.orgRepo.Update(ctx, org); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, ErrSlugTaken
		}
		return nil, nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return &snapshot, org, nil
}

// DeactivateOrganization soft-deletes an organization.
func (s *OrganizationService) DeactivateOrganization(ctx context.Context, orgID uint64) (*models.Organization, error) {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	org.IsActive = false
	if err := s.orgRepo.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to deactivate organization: %w", err)
	}
	return org, nil
}

// SetCurrentSprint points the organization's settings at a sprint of the same
// organization.
func (s *OrganizationService) SetCurrentSprint(ctx context.Context, orgID, sprintID uint64) (*models.Organization, error) {
	if _, err := s.sprintRepo.FindByID(ctx, orgID, sprintID, nil); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSprintNotFound
		}
		return nil, fmt.Errorf("failed to find sprint: %w", err)
	}
	_, org, err := s.UpdateOrganization(ctx, orgID, UpdateOrganizationInput{
		Settings: map[string]interface{}{constants.SettingCurrentSprintID: sprintID},
	})
	return org, err
}

func copySettings(settings datatypes.JSONMap) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range settings {
		out[k] = v
	}
	return out
}
