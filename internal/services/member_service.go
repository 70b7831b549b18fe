package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrMemberNotFound       = errors.New("member not found")
	ErrInvalidRole          = errors.New("invalid role")
	ErrCannotRemoveYourself = errors.New("cannot deactivate or demote yourself")
)

// MemberService manages the memberships of an organization.
type MemberService struct {
	membershipRepo repository.MembershipRepository
	userRepo       repository.UserRepository
	teamRepo       repository.TeamRepository
}

// NewMemberService creates a new MemberService.
func NewMemberService(
	membershipRepo repository.MembershipRepository,
	userRepo repository.UserRepository,
	teamRepo repository.TeamRepository,
) *MemberService {
	return &MemberService{
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
		teamRepo:       teamRepo,
	}
}

// ListMembers lists every membership of the organization.
func (s *MemberService) ListMembers(ctx context.Context, orgID uint64) ([]models.Membership, error) {
	members, err := s.membershipRepo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// InviteMemberInput represents an invitation by email.
type InviteMemberInput struct {
	OrganizationID uint64
	Email          string
	Role           string
}

// InviteMember creates or reactivates the membership of an email. A
// registered user is linked right away; otherwise the link happens on their
// first login. The membership joins the default team.
func (s *MemberService) InviteMember(ctx context.Context, input InviteMemberInput) (*models.Membership, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	role, ok := rbac.ParseRole(input.Role)
	if !ok {
		return nil, ErrInvalidRole
	}

	membership := &models.Membership{
		OrganizationID: input.OrganizationID,
		Email:          email,
		Role:           role,
		IsActive:       true,
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		now := time.Now()
		userID := user.ID
		membership.UserID = &userID
		membership.JoinedAt = &now
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	stored, err := s.membershipRepo.Upsert(ctx, membership)
	if err != nil {
		return nil, fmt.Errorf("failed to invite member: %w", err)
	}

	team, err := s.teamRepo.EnsureDefault(ctx, input.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure default team: %w", err)
	}
	if err := s.teamRepo.EnsureTeamMembership(ctx, team.ID, stored.ID); err != nil {
		return nil, fmt.Errorf("failed to link default team: %w", err)
	}
	return stored, nil
}

// UpdateMemberInput holds the mutable membership fields.
type UpdateMemberInput struct {
	Role     *string
	IsActive *bool
}

// UpdateMember changes role or active state of a membership. Actors cannot
// demote or deactivate their own membership.
func (s *MemberService) UpdateMember(ctx context.Context, orgID, membershipID, actorID uint64, input UpdateMemberInput) (before, after *models.Membership, err error) {
	membership, err := s.membershipRepo.FindByID(ctx, orgID, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMemberNotFound
		}
		return nil, nil, fmt.Errorf("failed to find member: %w", err)
	}
	snapshot := *membership
	self := membership.UserID != nil && *membership.UserID == actorID

	if input.Role != nil {
		role, ok := rbac.ParseRole(*input.Role)
		if !ok {
			return nil, nil, ErrInvalidRole
		}
		if self && role != membership.Role {
			return nil, nil, ErrCannotRemoveYourself
		}
		membership.Role = role
	}
	if input.IsActive != nil {
		if self && !*input.IsActive {
			return nil, nil, ErrCannotRemoveYourself
		}
		membership.IsActive = *input.IsActive
	}

	if err := s.membershipRepo.Update(ctx, membership); err != nil {
		return nil, nil, fmt.Errorf("failed to update member: %w", err)
	}
	return &snapshot, membership, nil
}
