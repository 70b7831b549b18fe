package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
)

var ErrInvalidFlagKey = errors.New("flag key cannot be empty")

// FlagState is the effective value of one flag for an organization.
type FlagState struct {
	Key       string `json:"key"`
	IsEnabled bool   `json:"isEnabled"`
}

// FeatureFlagService merges global and organization flag rows. Results are
// never cached so a change applies to the next request.
type FeatureFlagService struct {
	repo repository.FeatureFlagRepository
}

// NewFeatureFlagService creates a new FeatureFlagService.
func NewFeatureFlagService(repo repository.FeatureFlagRepository) *FeatureFlagService {
	return &FeatureFlagService{repo: repo}
}

// Resolve returns the effective flags of the organization. An organization row
// overrides the global row for its key; keys without any row are absent.
func (s *FeatureFlagService) Resolve(ctx context.Context, organizationID uint64) (map[string]FlagState, error) {
	rows, err := s.repo.ListForOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature flags: %w", err)
	}
	return mergeFlags(rows, organizationID), nil
}

// List returns the effective flags sorted by key.
func (s *FeatureFlagService) List(ctx context.Context, organizationID uint64) ([]FlagState, error) {
	flags, err := s.Resolve(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	out := make([]FlagState, 0, len(flags))
	for _, flag := range flags {
		out = append(out, flag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SetOrganizationFlag stores an override of key for one organization.
func (s *FeatureFlagService) SetOrganizationFlag(ctx context.Context, organizationID uint64, key string, enabled bool) (*models.FeatureFlag, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidFlagKey
	}
	flag, err := s.repo.Set(ctx, key, &organizationID, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to set feature flag: %w", err)
	}
	return flag, nil
}

// SetGlobalFlag stores the global default of key.
func (s *FeatureFlagService) SetGlobalFlag(ctx context.Context, key string, enabled bool) (*models.FeatureFlag, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidFlagKey
	}
	flag, err := s.repo.Set(ctx, key, nil, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to set feature flag: %w", err)
	}
	return flag, nil
}

func mergeFlags(rows []models.FeatureFlag, organizationID uint64) map[string]FlagState {
	flags := make(map[string]FlagState, len(rows))
	for _, row := range rows {
		if row.OrganizationID == nil {
			if _, ok := flags[row.Key]; !ok {
				flags[row.Key] = FlagState{Key: row.Key, IsEnabled: row.IsEnabled}
			}
		}
	}
	for _, row := range rows {
		if row.OrganizationID != nil && *row.OrganizationID == organizationID {
			flags[row.Key] = FlagState{Key: row.Key, IsEnabled: row.IsEnabled}
		}
	}
	return flags
}
