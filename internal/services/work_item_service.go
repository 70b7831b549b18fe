package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/yukikurage/rocks-tracker-api/internal/database"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrWorkItemNotFound = errors.New("item not found")
	ErrCodeTaken        = errors.New("code already exists in this organization")
	ErrCrossTenant      = errors.New("item belongs to another organization")
)

// WorkItem is a tenant-partitioned model stored through an EntityRepository.
type WorkItem[T any] interface {
	*T
	models.Entity
}

// WorkItemService is the organization-scoped, team-scoped CRUD shared by
// objectives, rocks, sprints, stories and tasks.
type WorkItemService[T any, PT WorkItem[T]] struct {
	repo       repository.EntityRepository[T]
	teams      *TeamService
	entityType string
	codePrefix string
	assignCode func(*T, string)
}

// NewWorkItemService creates a new WorkItemService for entityType.
func NewWorkItemService[T any, PT WorkItem[T]](repo repository.EntityRepository[T], teams *TeamService, entityType string) *WorkItemService[T, PT] {
	return &WorkItemService[T, PT]{
		repo:       repo,
		teams:      teams,
		entityType: entityType,
	}
}

// WithCode makes Create assign sequential "<prefix>-<n>" codes.
func (s *WorkItemService[T, PT]) WithCode(prefix string, assign func(*T, string)) *WorkItemService[T, PT] {
	s.codePrefix = prefix
	s.assignCode = assign
	return s
}

// EntityType returns the audit entity type name of T.
func (s *WorkItemService[T, PT]) EntityType() string {
	return s.entityType
}

// List returns one page of items visible to principal, narrowed by filter.
func (s *WorkItemService[T, PT]) List(ctx context.Context, principal *Principal, filter database.Scope, page utils.PaginationParams) ([]T, int64, error) {
	items, total, err := s.repo.List(ctx, s.scope(principal, filter), page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", s.entityType, err)
	}
	return items, total, nil
}

// Get returns one item. Items of another organization, or outside the
// principal's teams, are reported as not found.
func (s *WorkItemService[T, PT]) Get(ctx context.Context, principal *Principal, id uint64) (*T, error) {
	item, err := s.repo.FindByID(ctx, principal.OrganizationID, id, s.scope(principal, nil))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkItemNotFound
		}
		return nil, fmt.Errorf("failed to find %s: %w", s.entityType, err)
	}
	return item, nil
}

// Create stores item in the principal's organization.
func (s *WorkItemService[T, PT]) Create(ctx context.Context, principal *Principal, item *T) error {
	if err := s.validate(ctx, principal, nil, item); err != nil {
		return err
	}

	var err error
	if s.codePrefix != "" {
		err = s.repo.CreateWithCode(ctx, principal.OrganizationID, s.codePrefix, item, s.assignCode)
	} else {
		err = s.repo.Create(ctx, item)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrCodeTaken
		}
		return fmt.Errorf("failed to create %s: %w", s.entityType, err)
	}
	return nil
}

// Update saves item, which must have been loaded through Get. before is the
// item as loaded; an owner it already had is not revalidated.
func (s *WorkItemService[T, PT]) Update(ctx context.Context, principal *Principal, before, item *T) error {
	if err := s.validate(ctx, principal, before, item); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrCodeTaken
		}
		return fmt.Errorf("failed to update %s: %w", s.entityType, err)
	}
	return nil
}

// Delete deletes an item of the principal's organization.
func (s *WorkItemService[T, PT]) Delete(ctx context.Context, principal *Principal, id uint64) error {
	if err := s.repo.Delete(ctx, principal.OrganizationID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkItemNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", s.entityType, err)
	}
	return nil
}

func (s *WorkItemService[T, PT]) scope(principal *Principal, filter database.Scope) database.Scope {
	base := database.ForOrganization(principal.OrganizationID)
	if filter != nil {
		org := base
		base = func(db *gorm.DB) *gorm.DB {
			return filter(org(db))
		}
	}
	return ApplyTeamScope(base, principal, TeamScopeOptions{EntityType: s.entityType})
}

func (s *WorkItemService[T, PT]) validate(ctx context.Context, principal *Principal, before, item *T) error {
	entity := PT(item)
	if entity.GetOrganizationID() != principal.OrganizationID {
		return ErrCrossTenant
	}

	teamID := entity.GetTeamID()
	if err := s.teams.ValidateTeam(ctx, principal.OrganizationID, teamID); err != nil {
		return err
	}
	// A team-scoped principal cannot file items where it would lose sight of them.
	if teamID != nil && IsTeamScoped(principal) && !slices.Contains(principal.TeamIDs, *teamID) {
		return ErrTeamOutOfScope
	}

	ownerID := entity.GetOwnerID()
	if ownerID == nil || *ownerID == principal.UserID {
		return nil
	}
	if before != nil {
		if previous := PT(before).GetOwnerID(); previous != nil && *previous == *ownerID {
			return nil
		}
	}
	return s.teams.ValidateOwner(ctx, principal.OrganizationID, ownerID)
}
