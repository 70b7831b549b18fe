package repository

import (
	"context"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMembershipRepository is a GORM implementation of MembershipRepository
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new MembershipRepository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &GormMembershipRepository{db: db}
}

// FindActive finds the active membership of a user in an organization
func (r *GormMembershipRepository) FindActive(ctx context.Context, organizationID, userID uint64) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ? AND is_active = ?", organizationID, userID, true).
		First(&membership).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindForUser finds the user's membership in an organization regardless of
// its active flag
func (r *GormMembershipRepository) FindForUser(ctx context.Context, organizationID, userID uint64) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&membership).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindByID finds a membership inside an organization
func (r *GormMembershipRepository) FindByID(ctx context.Context, organizationID, id uint64) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ? AND id = ?", organizationID, id).
		First(&membership).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// FirstActiveOrganizationID returns the organization of the user's first
// active membership, ordered by membership ID.
func (r *GormMembershipRepository) FirstActiveOrganizationID(ctx context.Context, userID uint64) (uint64, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Joins("JOIN organizations ON organizations.id = memberships.organization_id").
		Where("memberships.user_id = ? AND memberships.is_active = ? AND organizations.is_active = ?", userID, true, true).
		First(&membership).Error; err != nil {
		return 0, err
	}
	return membership.OrganizationID, nil
}

// Upsert creates the membership or, when (organization, email) already
// exists, reactivates it with the given user, role and join time. The stored
// row is re-read so the caller always gets its ID.
func (r *GormMembershipRepository) Upsert(ctx context.Context, membership *models.Membership) (*models.Membership, error) {
	db := r.db.WithContext(ctx)
	membership.Email = normalizeEmail(membership.Email)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "role", "is_active", "joined_at", "updated_at"}),
	}).Create(membership).Error
	if err != nil {
		return nil, err
	}

	var stored models.Membership
	if err := db.Where("organization_id = ? AND email = ?", membership.OrganizationID, membership.Email).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// Create creates a membership
func (r *GormMembershipRepository) Create(ctx context.Context, membership *models.Membership) error {
	membership.Email = normalizeEmail(membership.Email)
	return r.db.WithContext(ctx).Create(membership).Error
}

// Update updates a membership
func (r *GormMembershipRepository) Update(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(membership).Error
}

// LinkUserByEmail attaches userID to memberships invited by email
func (r *GormMembershipRepository) LinkUserByEmail(ctx context.Context, userID uint64, email string) error {
	return r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("email = ? AND user_id IS NULL", normalizeEmail(email)).
		Update("user_id", userID).Error
}

// ListByOrganization lists all memberships of an organization
func (r *GormMembershipRepository) ListByOrganization(ctx context.Context, organizationID uint64) ([]models.Membership, error) {
	var memberships []models.Membership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ?", organizationID).
		Order("id").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListForUser lists the user's active memberships in active organizations
func (r *GormMembershipRepository) ListForUser(ctx context.Context, userID uint64) ([]models.Membership, error) {
	var memberships []models.Membership
	if err := r.db.WithContext(ctx).
		Preload("Organization").
		Joins("JOIN organizations ON organizations.id = memberships.organization_id").
		Where("memberships.user_id = ? AND memberships.is_active = ? AND organizations.is_active = ?", userID, true, true).
		Order("memberships.id").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// ActiveUserIDsWithRoles returns user IDs of active members holding any of roles
func (r *GormMembershipRepository) ActiveUserIDsWithRoles(ctx context.Context, organizationID uint64, roles []rbac.Role) ([]uint64, error) {
	var ids []uint64
	if len(roles) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("organization_id = ? AND is_active = ? AND user_id IS NOT NULL AND role IN ?", organizationID, true, roles).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ActiveUserIDsIn filters userIDs down to active members of the organization
func (r *GormMembershipRepository) ActiveUserIDsIn(ctx context.Context, organizationID uint64, userIDs []uint64) ([]uint64, error) {
	var ids []uint64
	if len(userIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("organization_id = ? AND is_active = ? AND user_id IN ?", organizationID, true, userIDs).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}
