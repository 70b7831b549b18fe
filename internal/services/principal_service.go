package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
)

// PrincipalService builds the Principal of each request.
type PrincipalService struct {
	resolver    *OrganizationResolver
	memberships *MembershipResolver
	teamRepo    repository.TeamRepository
	flags       *FeatureFlagService
	log         logrus.FieldLogger
	metrics     *observability.Metrics
}

// NewPrincipalService creates a new PrincipalService.
func NewPrincipalService(
	resolver *OrganizationResolver,
	memberships *MembershipResolver,
	teamRepo repository.TeamRepository,
	flags *FeatureFlagService,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) *PrincipalService {
	return &PrincipalService{
		resolver:    resolver,
		memberships: memberships,
		teamRepo:    teamRepo,
		flags:       flags,
		log:         log,
		metrics:     metrics,
	}
}

// Build returns the principal of user, or nil when no organization resolves
// or any step fails. Failures are logged, never returned: a missing principal
// is rejected later by the gates that need one.
func (s *PrincipalService) Build(ctx context.Context, user *models.User, headerValue string, sessionValue uint64) (principal *Principal) {
	if user == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(user, fmt.Errorf("panic: %v", r))
			principal = nil
		}
	}()

	p, err := s.build(ctx, user, headerValue, sessionValue)
	if err != nil {
		s.fail(user, err)
		return nil
	}
	return p
}

func (s *PrincipalService) build(ctx context.Context, user *models.User, headerValue string, sessionValue uint64) (*Principal, error) {
	orgID, ok, err := s.resolver.Resolve(ctx, user, headerValue, sessionValue)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organization: %w", err)
	}
	if !ok {
		return nil, nil
	}

	canonical, err := s.memberships.Resolve(ctx, user, orgID)
	if err != nil {
		return nil, err
	}
	if canonical.Source == SourceProvisioned {
		s.metrics.Provisioned.Inc()
		s.log.WithFields(logrus.Fields{
			"user_id":         user.ID,
			"organization_id": orgID,
			"membership_id":   canonical.Membership.ID,
			"role":            canonical.Role,
		}).Info("Provisioned membership")
	}

	principal := &Principal{
		OrganizationID: orgID,
		UserID:         user.ID,
		Role:           canonical.Role,
		TeamIDs:        []uint64{},
		IsSuperAdmin:   user.IsSuperAdmin,
	}

	if canonical.Membership != nil {
		id := canonical.Membership.ID
		principal.MembershipID = &id

		teamIDs, err := s.teamRepo.ActiveTeamIDs(ctx, orgID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load teams: %w", err)
		}
		if teamIDs != nil {
			principal.TeamIDs = teamIDs
		}
	}

	flags, err := s.flags.Resolve(ctx, orgID)
	if err != nil {
		return nil, err
	}
	principal.Flags = flags

	return principal, nil
}

func (s *PrincipalService) fail(user *models.User, err error) {
	s.metrics.PrincipalFailures.Inc()
	s.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to build principal")
}
