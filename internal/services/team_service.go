package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTeamNotFound        = errors.New("team not found")
	ErrInvalidTeamName     = errors.New("team name cannot be empty")
	ErrTeamNameTaken       = errors.New("team name already exists in this organization")
	ErrDefaultTeamRequired = errors.New("the default team cannot be renamed or deactivated")
	ErrInvalidTeam         = errors.New("team does not belong to this organization")
	ErrTeamOutOfScope      = errors.New("team is not one of your teams")
	ErrInvalidOwner        = errors.New("owner is not an active member of this organization")
)

// TeamService provides business logic for teams and team membership.
type TeamService struct {
	teamRepo       repository.TeamRepository
	membershipRepo repository.MembershipRepository
}

// NewTeamService creates a new TeamService.
func NewTeamService(teamRepo repository.TeamRepository, membershipRepo repository.MembershipRepository) *TeamService {
	return &TeamService{
		teamRepo:       teamRepo,
		membershipRepo: membershipRepo,
	}
}

// ListTeams lists the organization's teams.
func (s *TeamService) ListTeams(ctx context.Context, orgID uint64, includeInactive bool) ([]models.Team, error) {
	teams, err := s.teamRepo.List(ctx, orgID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// GetTeam returns a team with its members.
func (s *TeamService) GetTeam(ctx context.Context, orgID, teamID uint64) (*models.Team, error) {
	team, err := s.findTeam(ctx, orgID, teamID)
	if err != nil {
		return nil, err
	}
	members, err := s.teamRepo.ListMembers(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	team.Members = members
	return team, nil
}

// CreateTeamInput represents parameters to create a team.
type CreateTeamInput struct {
	OrganizationID uint64
	Name           string
	Description    string
}

// CreateTeam creates an active team.
func (s *TeamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidTeamName
	}
	team := &models.Team{
		OrganizationID: input.OrganizationID,
		Name:           name,
		Description:    input.Description,
		IsActive:       true,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrTeamNameTaken
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

// UpdateTeamInput holds the mutable team fields.
type UpdateTeamInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// UpdateTeam applies input and returns the previous and updated rows.
func (s *TeamService) UpdateTeam(ctx context.Context, orgID, teamID uint64, input UpdateTeamInput) (before, after *models.Team, err error) {
	team, err := s.findTeam(ctx, orgID, teamID)
	if err != nil {
		return nil, nil, err
	}
	snapshot := *team
	isDefault := team.Name == constants.DefaultTeamName

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, nil, ErrInvalidTeamName
		}
		if isDefault && name != team.Name {
			return nil, nil, ErrDefaultTeamRequired
		}
		team.Name = name
	}
	if input.Description != nil {
		team.Description = *input.Description
	}
	if input.IsActive != nil {
		if isDefault && !*input.IsActive {
			return nil, nil, ErrDefaultTeamRequired
		}
		team.IsActive = *input.IsActive
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, ErrTeamNameTaken
		}
		return nil, nil, fmt.Errorf("failed to update team: %w", err)
	}
	return &snapshot, team, nil
}

// AddMember links a membership of the same organization to a team.
func (s *TeamService) AddMember(ctx context.Context, orgID, teamID, membershipID uint64) error {
	if _, err := s.findTeam(ctx, orgID, teamID); err != nil {
		return err
	}
	if _, err := s.membershipRepo.FindByID(ctx, orgID, membershipID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to find membership: %w", err)
	}
	if err := s.teamRepo.EnsureTeamMembership(ctx, teamID, membershipID); err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

// RemoveMember unlinks a membership from a team.
func (s *TeamService) RemoveMember(ctx context.Context, orgID, teamID, membershipID uint64) error {
	if _, err := s.findTeam(ctx, orgID, teamID); err != nil {
		return err
	}
	if err := s.teamRepo.RemoveTeamMembership(ctx, teamID, membershipID); err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	return nil
}

// ValidateTeam checks that an optional team reference points at an active
// team of the organization.
func (s *TeamService) ValidateTeam(ctx context.Context, orgID uint64, teamID *uint64) error {
	if teamID == nil {
		return nil
	}
	team, err := s.teamRepo.FindByID(ctx, orgID, *teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidTeam
		}
		return fmt.Errorf("failed to find team: %w", err)
	}
	if !team.IsActive {
		return ErrInvalidTeam
	}
	return nil
}

// ValidateOwner checks that an optional owner reference points at an active
// member of the organization.
func (s *TeamService) ValidateOwner(ctx context.Context, orgID uint64, ownerID *uint64) error {
	if ownerID == nil {
		return nil
	}
	ids, err := s.membershipRepo.ActiveUserIDsIn(ctx, orgID, []uint64{*ownerID})
	if err != nil {
		return fmt.Errorf("failed to find owner: %w", err)
	}
	if len(ids) == 0 {
		return ErrInvalidOwner
	}
	return nil
}

func (s *TeamService) findTeam(ctx context.Context, orgID, teamID uint64) (*models.Team, error) {
	team, err := s.teamRepo.FindByID(ctx, orgID, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return team, nil
}
