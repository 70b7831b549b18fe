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

var ErrMembershipInactive = errors.New("membership is deactivated")

// MembershipSource tells which representation served a CanonicalMembership.
type MembershipSource string

const (
	// SourceMembership means an active Membership row already existed.
	SourceMembership MembershipSource = "membership"
	// SourceProvisioned means a Membership was provisioned from a legacy
	// member row or super-admin access during this call.
	SourceProvisioned MembershipSource = "legacy-provisioned"
	// SourceFallback means there was no basis to provision; Membership is nil
	// and Role is the fallback role.
	SourceFallback MembershipSource = "fallback"
)

// CanonicalMembership is the current membership of a user in an organization,
// whichever model it came from.
type CanonicalMembership struct {
	Source     MembershipSource
	Membership *models.Membership
	Role       rbac.Role
}

// MembershipResolver applies the precedence rule between the new Membership
// model and the legacy OrganizationMember rows: the new model wins, a legacy
// row is provisioned into it, otherwise a fallback role is used.
type MembershipResolver struct {
	orgRepo        repository.OrganizationRepository
	membershipRepo repository.MembershipRepository
	teamRepo       repository.TeamRepository
}

// NewMembershipResolver creates a new MembershipResolver.
func NewMembershipResolver(
	orgRepo repository.OrganizationRepository,
	membershipRepo repository.MembershipRepository,
	teamRepo repository.TeamRepository,
) *MembershipResolver {
	return &MembershipResolver{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		teamRepo:       teamRepo,
	}
}

// Resolve returns the canonical membership of user in organizationID,
// provisioning it when the user has legacy access or is a super-admin.
// Provisioning is idempotent. An active membership left without team links by
// an interrupted provisioning is linked to the default team when the same
// basis still holds. A deactivated membership is final except for
// super-admins, who are provisioned again.
func (r *MembershipResolver) Resolve(ctx context.Context, user *models.User, organizationID uint64) (CanonicalMembership, error) {
	existing, err := r.membershipRepo.FindForUser(ctx, organizationID, user.ID)
	switch {
	case err == nil && existing.IsActive:
		if err := r.repairTeamLink(ctx, user, existing); err != nil {
			return CanonicalMembership{}, err
		}
		return CanonicalMembership{
			Source:     SourceMembership,
			Membership: existing,
			Role:       normalizeRole(string(existing.Role)),
		}, nil
	case err == nil && !user.IsSuperAdmin:
		return CanonicalMembership{}, ErrMembershipInactive
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return CanonicalMembership{}, fmt.Errorf("failed to find membership: %w", err)
	}

	legacy, err := r.findLegacy(ctx, organizationID, user.ID)
	if err != nil {
		return CanonicalMembership{}, err
	}

	if legacy == nil && !user.IsSuperAdmin {
		return CanonicalMembership{Source: SourceFallback, Role: fallbackRole(user)}, nil
	}

	role := rbac.RoleViewer
	switch {
	case legacy != nil:
		role = normalizeRole(legacy.Role)
	case existing != nil:
		role = normalizeRole(string(existing.Role))
	}
	email := user.Email
	if existing != nil {
		email = existing.Email
	}
	membership, err := r.provision(ctx, user, organizationID, email, role)
	if err != nil {
		return CanonicalMembership{}, err
	}
	return CanonicalMembership{
		Source:     SourceProvisioned,
		Membership: membership,
		Role:       normalizeRole(string(membership.Role)),
	}, nil
}

func (r *MembershipResolver) findLegacy(ctx context.Context, organizationID, userID uint64) (*models.OrganizationMember, error) {
	legacy, err := r.orgRepo.FindLegacyMember(ctx, organizationID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find legacy member: %w", err)
	}
	return legacy, nil
}

// repairTeamLink finishes a provisioning that stopped after the membership
// upsert. Memberships without a provisioning basis are left alone, so a
// member an admin removed from every team stays teamless.
func (r *MembershipResolver) repairTeamLink(ctx context.Context, user *models.User, membership *models.Membership) error {
	linked, err := r.teamRepo.HasTeamMembership(ctx, membership.ID)
	if err != nil {
		return fmt.Errorf("failed to check team links: %w", err)
	}
	if linked {
		return nil
	}
	if !user.IsSuperAdmin {
		legacy, err := r.findLegacy(ctx, membership.OrganizationID, user.ID)
		if err != nil {
			return err
		}
		if legacy == nil {
			return nil
		}
	}
	return r.linkDefaultTeam(ctx, membership)
}

// provision upserts the membership and then links it to the default team.
// The two steps are separate upserts; rerunning after a failure between them
// finishes the job.
func (r *MembershipResolver) provision(ctx context.Context, user *models.User, organizationID uint64, email string, role rbac.Role) (*models.Membership, error) {
	now := time.Now()
	userID := user.ID
	membership, err := r.membershipRepo.Upsert(ctx, &models.Membership{
		OrganizationID: organizationID,
		Email:          email,
		UserID:         &userID,
		Role:           role,
		IsActive:       true,
		JoinedAt:       &now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision membership: %w", err)
	}

	if err := r.linkDefaultTeam(ctx, membership); err != nil {
		return nil, err
	}
	return membership, nil
}

func (r *MembershipResolver) linkDefaultTeam(ctx context.Context, membership *models.Membership) error {
	team, err := r.teamRepo.EnsureDefault(ctx, membership.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to ensure default team: %w", err)
	}
	if err := r.teamRepo.EnsureTeamMembership(ctx, team.ID, membership.ID); err != nil {
		return fmt.Errorf("failed to link default team: %w", err)
	}
	return nil
}

// fallbackRole is used when neither model has a row: the user's global role,
// else VIEWER.
func fallbackRole(user *models.User) rbac.Role {
	if role, ok := rbac.ParseRole(user.Role); ok {
		return role
	}
	return rbac.RoleViewer
}

func normalizeRole(value string) rbac.Role {
	if role, ok := rbac.ParseRole(value); ok {
		return role
	}
	return rbac.RoleViewer
}
