package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"gorm.io/gorm"
)

// OrganizationResolver picks the tenant a request operates against.
type OrganizationResolver struct {
	orgRepo        repository.OrganizationRepository
	membershipRepo repository.MembershipRepository
}

// NewOrganizationResolver creates a new OrganizationResolver.
func NewOrganizationResolver(orgRepo repository.OrganizationRepository, membershipRepo repository.MembershipRepository) *OrganizationResolver {
	return &OrganizationResolver{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
	}
}

// Resolve returns the organization for user, trying in order the selector
// header, the session selection and the user's first active membership. A
// header or session value the user may not use is ignored and resolution
// falls through. ok is false when nothing resolves.
func (r *OrganizationResolver) Resolve(ctx context.Context, user *models.User, headerValue string, sessionValue uint64) (uint64, bool, error) {
	if user == nil {
		return 0, false, nil
	}

	if id, ok := parseOrganizationID(headerValue); ok {
		allowed, err := r.CanAccess(ctx, user, id)
		if err != nil {
			return 0, false, err
		}
		if allowed {
			return id, true, nil
		}
	}

	if sessionValue != 0 {
		allowed, err := r.CanAccess(ctx, user, sessionValue)
		if err != nil {
			return 0, false, err
		}
		if allowed {
			return sessionValue, true, nil
		}
	}

	id, err := r.membershipRepo.FirstActiveOrganizationID(ctx, user.ID)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, fmt.Errorf("failed to find default membership: %w", err)
	}

	id, err = r.orgRepo.FirstLegacyOrganizationID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to find legacy membership: %w", err)
	}
	allowed, err := r.CanAccess(ctx, user, id)
	if err != nil || !allowed {
		return 0, false, err
	}
	return id, true, nil
}

// CanAccess reports whether user may operate in organizationID. Super-admins
// may select any active organization; everyone else needs an active
// membership or a legacy member row there.
func (r *OrganizationResolver) CanAccess(ctx context.Context, user *models.User, organizationID uint64) (bool, error) {
	if _, err := r.orgRepo.FindActiveByID(ctx, organizationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to find organization: %w", err)
	}
	if user.IsSuperAdmin {
		return true, nil
	}

	membership, err := r.membershipRepo.FindForUser(ctx, organizationID, user.ID)
	if err == nil {
		// A deactivated membership wins over any legacy row.
		return membership.IsActive, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to find membership: %w", err)
	}

	_, err = r.orgRepo.FindLegacyMember(ctx, organizationID, user.ID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to find legacy member: %w", err)
	}
	return false, nil
}

func parseOrganizationID(value string) (uint64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
