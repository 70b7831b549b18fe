// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/rocks-tracker-api/internal/database"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database. The pool is pinned to a
// single connection so goroutines share the same in-memory schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db, observability.NewDiscardLogger()))
	return db
}

// CreateUser inserts an active user.
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		Name:         email,
		PasswordHash: "hashed",
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateOrganization inserts an active organization with its default team.
func CreateOrganization(t *testing.T, db *gorm.DB, name string) (*models.Organization, *models.Team) {
	t.Helper()
	org := &models.Organization{Name: name, Slug: name, IsActive: true}
	require.NoError(t, db.Create(org).Error)
	team := &models.Team{OrganizationID: org.ID, Name: "כללי", IsActive: true}
	require.NoError(t, db.Create(team).Error)
	return org, team
}

// CreateTeam inserts an active team.
func CreateTeam(t *testing.T, db *gorm.DB, orgID uint64, name string) *models.Team {
	t.Helper()
	team := &models.Team{OrganizationID: orgID, Name: name, IsActive: true}
	require.NoError(t, db.Create(team).Error)
	return team
}

// CreateMembership inserts an active membership and links it to teams.
func CreateMembership(t *testing.T, db *gorm.DB, orgID uint64, user *models.User, role rbac.Role, teams ...*models.Team) *models.Membership {
	t.Helper()
	now := time.Now()
	userID := user.ID
	m := &models.Membership{
		OrganizationID: orgID,
		Email:          user.Email,
		UserID:         &userID,
		Role:           role,
		IsActive:       true,
		JoinedAt:       &now,
	}
	require.NoError(t, db.Create(m).Error)
	for _, team := range teams {
		require.NoError(t, db.Create(&models.TeamMembership{TeamID: team.ID, MembershipID: m.ID}).Error)
	}
	return m
}

// CreateLegacyMember inserts a legacy OrganizationMember row.
func CreateLegacyMember(t *testing.T, db *gorm.DB, orgID, userID uint64, role string) *models.OrganizationMember {
	t.Helper()
	m := &models.OrganizationMember{OrganizationID: orgID, UserID: userID, Role: role, JoinedAt: time.Now()}
	require.NoError(t, db.Create(m).Error)
	return m
}

// SetFlag inserts a feature flag row; orgID nil means global.
func SetFlag(t *testing.T, db *gorm.DB, key string, orgID *uint64, enabled bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.FeatureFlag{Key: key, OrganizationID: orgID, IsEnabled: enabled}).Error)
}

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 {
	return &v
}
