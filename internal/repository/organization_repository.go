package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"gorm.io/gorm"
)

var (
	// ErrCreateOrganization is returned when creating the organization row fails.
	ErrCreateOrganization = errors.New("organization repository: create organization failed")
	// ErrCreateDefaultTeam is returned when creating the default team fails.
	ErrCreateDefaultTeam = errors.New("organization repository: create default team failed")
	// ErrCreateOwnerMembership is returned when creating the owner membership fails.
	ErrCreateOwnerMembership = errors.New("organization repository: create owner membership failed")
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// CreateWithOwner creates the organization, its default team and the ADMIN
// membership of owner atomically.
func (r *GormOrganizationRepository) CreateWithOwner(ctx context.Context, org *models.Organization, owner *models.User) (*models.Membership, error) {
	var membership *models.Membership
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrCreateOrganization, err)
		}

		team := &models.Team{
			OrganizationID: org.ID,
			Name:           constants.DefaultTeamName,
			IsActive:       true,
		}
		if err := tx.Create(team).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrCreateDefaultTeam, err)
		}

		now := time.Now()
		userID := owner.ID
		membership = &models.Membership{
			OrganizationID: org.ID,
			Email:          normalizeEmail(owner.Email),
			UserID:         &userID,
			Role:           rbac.RoleAdmin,
			IsActive:       true,
			JoinedAt:       &now,
		}
		if err := tx.Create(membership).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrCreateOwnerMembership, err)
		}

		link := &models.TeamMembership{TeamID: team.ID, MembershipID: membership.ID}
		if err := tx.Create(link).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrCreateOwnerMembership, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id uint64) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindActiveByID finds an active organization by ID
func (r *GormOrganizationRepository) FindActiveByID(ctx context.Context, id uint64) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// Update updates an organization
func (r *GormOrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Save(org).Error
}

// FindLegacyMember finds a specific legacy organization member
func (r *GormOrganizationRepository) FindLegacyMember(ctx context.Context, organizationID, userID uint64) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// FirstLegacyOrganizationID returns the first active organization reachable
// through a legacy membership.
func (r *GormOrganizationRepository) FirstLegacyOrganizationID(ctx context.Context, userID uint64) (uint64, error) {
	var member models.OrganizationMember
	if err := r.db.WithContext(ctx).
		Joins("JOIN organizations ON organizations.id = organization_members.organization_id").
		Where("organization_members.user_id = ? AND organizations.is_active = ?", userID, true).
		First(&member).Error; err != nil {
		return 0, err
	}
	return member.OrganizationID, nil
}
