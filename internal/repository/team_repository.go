package repository

import (
	"context"

	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTeamRepository is a GORM implementation of TeamRepository
type GormTeamRepository struct {
	db *gorm.DB
}

// NewTeamRepository creates a new TeamRepository
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &GormTeamRepository{db: db}
}

// EnsureDefault finds or creates the default team. A deactivated default team
// is reactivated, since memberships linked only to it would otherwise lose
// visibility of every team-scoped row.
func (r *GormTeamRepository) EnsureDefault(ctx context.Context, organizationID uint64) (*models.Team, error) {
	db := r.db.WithContext(ctx)
	var team models.Team
	if err := db.
		Where(&models.Team{OrganizationID: organizationID, Name: constants.DefaultTeamName}).
		Attrs(models.Team{IsActive: true}).
		FirstOrCreate(&team).Error; err != nil {
		return nil, err
	}
	if !team.IsActive {
		team.IsActive = true
		if err := db.Model(&team).Update("is_active", true).Error; err != nil {
			return nil, err
		}
	}
	return &team, nil
}

// EnsureTeamMembership links a membership to a team if not yet linked
func (r *GormTeamRepository) EnsureTeamMembership(ctx context.Context, teamID, membershipID uint64) error {
	link := &models.TeamMembership{TeamID: teamID, MembershipID: membershipID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link).Error
}

// HasTeamMembership reports whether the membership is linked to any team
func (r *GormTeamRepository) HasTeamMembership(ctx context.Context, membershipID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.TeamMembership{}).
		Where("membership_id = ?", membershipID).
		Count(&n).Error
	return n > 0, err
}

// RemoveTeamMembership unlinks a membership from a team
func (r *GormTeamRepository) RemoveTeamMembership(ctx context.Context, teamID, membershipID uint64) error {
	return r.db.WithContext(ctx).
		Where("team_id = ? AND membership_id = ?", teamID, membershipID).
		Delete(&models.TeamMembership{}).Error
}

// ActiveTeamIDs returns the IDs of active teams within the organization that
// the membership belongs to
func (r *GormTeamRepository) ActiveTeamIDs(ctx context.Context, organizationID, membershipID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&models.TeamMembership{}).
		Joins("JOIN teams ON teams.id = team_memberships.team_id").
		Where("team_memberships.membership_id = ? AND teams.organization_id = ? AND teams.is_active = ?", membershipID, organizationID, true).
		Order("teams.id").
		Pluck("teams.id", &ids).Error
	return ids, err
}

// Create creates a team
func (r *GormTeamRepository) Create(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).Create(team).Error
}

// Update updates a team
func (r *GormTeamRepository) Update(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(team).Error
}

// FindByID finds a team inside an organization
func (r *GormTeamRepository) FindByID(ctx context.Context, organizationID, id uint64) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// List lists the organization's teams
func (r *GormTeamRepository) List(ctx context.Context, organizationID uint64, includeInactive bool) ([]models.Team, error) {
	var teams []models.Team
	query := r.db.WithContext(ctx).Where("organization_id = ?", organizationID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("id").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

// ListMembers lists the memberships linked to a team
func (r *GormTeamRepository) ListMembers(ctx context.Context, teamID uint64) ([]models.TeamMembership, error) {
	var links []models.TeamMembership
	if err := r.db.WithContext(ctx).
		Preload("Membership").
		Preload("Membership.User").
		Where("team_id = ?", teamID).
		Order("id").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}
