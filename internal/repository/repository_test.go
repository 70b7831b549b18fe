package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/rocks-tracker-api/internal/database"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/testutil"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
	"gorm.io/gorm"
)

func TestMembershipRepository_UpsertIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewMembershipRepository(db)

	user := testutil.CreateUser(t, db, "Dana@Example.com")
	org, _ := testutil.CreateOrganization(t, db, "acme")

	now := time.Now()
	first, err := repo.Upsert(ctx, &models.Membership{
		OrganizationID: org.ID,
		Email:          user.Email,
		UserID:         testutil.Uint64(user.ID),
		Role:           rbac.RoleManager,
		IsActive:       true,
		JoinedAt:       &now,
	})
	require.NoError(t, err)
	require.Equal(t, "dana@example.com", first.Email)

	second, err := repo.Upsert(ctx, &models.Membership{
		OrganizationID: org.ID,
		Email:          "dana@example.com",
		UserID:         testutil.Uint64(user.ID),
		Role:           rbac.RoleManager,
		IsActive:       true,
		JoinedAt:       &now,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Membership{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestMembershipRepository_UpsertReactivates(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewMembershipRepository(db)

	user := testutil.CreateUser(t, db, "x@example.com")
	org, _ := testutil.CreateOrganization(t, db, "acme")
	m := testutil.CreateMembership(t, db, org.ID, user, rbac.RoleViewer)
	require.NoError(t, db.Model(m).Update("is_active", false).Error)

	_, err := repo.FindActive(ctx, org.ID, user.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stored, err := repo.Upsert(ctx, &models.Membership{
		OrganizationID: org.ID,
		Email:          user.Email,
		UserID:         testutil.Uint64(user.ID),
		Role:           rbac.RoleMember,
		IsActive:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, m.ID, stored.ID)
	assert.True(t, stored.IsActive)
	assert.Equal(t, rbac.RoleMember, stored.Role)
}

func TestMembershipRepository_FirstActiveOrganizationSkipsInactiveOrgs(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewMembershipRepository(db)

	user := testutil.CreateUser(t, db, "x@example.com")
	closed, _ := testutil.CreateOrganization(t, db, "closed")
	open, _ := testutil.CreateOrganization(t, db, "open")
	require.NoError(t, db.Model(closed).Update("is_active", false).Error)
	testutil.CreateMembership(t, db, closed.ID, user, rbac.RoleAdmin)
	testutil.CreateMembership(t, db, open.ID, user, rbac.RoleMember)

	orgID, err := repo.FirstActiveOrganizationID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, orgID)
}

func TestMembershipRepository_ActiveUserIDsWithRoles(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewMembershipRepository(db)

	org, _ := testutil.CreateOrganization(t, db, "acme")
	admin := testutil.CreateUser(t, db, "admin@example.com")
	manager := testutil.CreateUser(t, db, "manager@example.com")
	member := testutil.CreateUser(t, db, "member@example.com")
	testutil.CreateMembership(t, db, org.ID, admin, rbac.RoleAdmin)
	testutil.CreateMembership(t, db, org.ID, manager, rbac.RoleManager)
	testutil.CreateMembership(t, db, org.ID, member, rbac.RoleMember)

	ids, err := repo.ActiveUserIDsWithRoles(ctx, org.ID, []rbac.Role{rbac.RoleAdmin, rbac.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, []uint64{admin.ID, manager.ID}, ids)

	ids, err = repo.ActiveUserIDsIn(ctx, org.ID, []uint64{member.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, []uint64{member.ID}, ids)
}

func TestTeamRepository_ActiveTeamIDs(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewTeamRepository(db)

	user := testutil.CreateUser(t, db, "x@example.com")
	org, general := testutil.CreateOrganization(t, db, "acme")
	other, otherGeneral := testutil.CreateOrganization(t, db, "other")
	alpha := testutil.CreateTeam(t, db, org.ID, "alpha")
	retired := testutil.CreateTeam(t, db, org.ID, "retired")
	require.NoError(t, db.Model(retired).Update("is_active", false).Error)

	m := testutil.CreateMembership(t, db, org.ID, user, rbac.RoleMember, general, alpha, retired)
	// A link to another tenant's team must not leak into this organization.
	require.NoError(t, db.Create(&models.TeamMembership{TeamID: otherGeneral.ID, MembershipID: m.ID}).Error)
	_ = other

	ids, err := repo.ActiveTeamIDs(ctx, org.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{general.ID, alpha.ID}, ids)
}

func TestTeamRepository_EnsureDefaultAndLink(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewTeamRepository(db)

	org := &models.Organization{Name: "bare", Slug: "bare", IsActive: true}
	require.NoError(t, db.Create(org).Error)

	team, err := repo.EnsureDefault(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "כללי", team.Name)
	assert.True(t, team.IsActive)

	again, err := repo.EnsureDefault(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, team.ID, again.ID)

	user := testutil.CreateUser(t, db, "x@example.com")
	m := testutil.CreateMembership(t, db, org.ID, user, rbac.RoleMember)
	require.NoError(t, repo.EnsureTeamMembership(ctx, team.ID, m.ID))
	require.NoError(t, repo.EnsureTeamMembership(ctx, team.ID, m.ID))

	var count int64
	require.NoError(t, db.Model(&models.TeamMembership{}).Where("membership_id = ?", m.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFeatureFlagRepository_Set(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewFeatureFlagRepository(db)

	org, _ := testutil.CreateOrganization(t, db, "acme")

	_, err := repo.Set(ctx, "dark_mode", nil, true)
	require.NoError(t, err)
	_, err = repo.Set(ctx, "dark_mode", &org.ID, false)
	require.NoError(t, err)
	updated, err := repo.Set(ctx, "dark_mode", &org.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsEnabled)

	flags, err := repo.ListForOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Len(t, flags, 2)
}

func TestEntityRepository_CreateWithCode(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewEntityRepository[models.Story](db)

	orgA, _ := testutil.CreateOrganization(t, db, "a")
	orgB, _ := testutil.CreateOrganization(t, db, "b")

	assign := func(s *models.Story, code string) { s.Code = code }
	for i := 0; i < 3; i++ {
		s := &models.Story{Scoped: models.Scoped{OrganizationID: orgA.ID}, Title: "story", Status: models.StoryStatusBacklog}
		require.NoError(t, repo.CreateWithCode(ctx, orgA.ID, "S", s, assign))
	}
	b := &models.Story{Scoped: models.Scoped{OrganizationID: orgB.ID}, Title: "story", Status: models.StoryStatusBacklog}
	require.NoError(t, repo.CreateWithCode(ctx, orgB.ID, "S", b, assign))

	assert.Equal(t, "S-1", b.Code)

	items, total, err := repo.List(ctx, database.ForOrganization(orgA.ID), utils.NewPaginationParams(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "S-3", items[0].Code)

	dup := &models.Story{Scoped: models.Scoped{OrganizationID: orgA.ID}, Code: "S-3", Title: "dup", Status: models.StoryStatusBacklog}
	err = repo.Create(ctx, dup)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestEntityRepository_TenantIsolation(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewEntityRepository[models.Rock](db)

	orgA, _ := testutil.CreateOrganization(t, db, "a")
	orgB, _ := testutil.CreateOrganization(t, db, "b")
	rock := &models.Rock{Scoped: models.Scoped{OrganizationID: orgB.ID}, Name: "B rock", Status: models.RockStatusOnTrack}
	require.NoError(t, repo.Create(ctx, rock))

	_, err := repo.FindByID(ctx, orgA.ID, rock.ID, database.Identity)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = repo.Delete(ctx, orgA.ID, rock.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	found, err := repo.FindByID(ctx, orgB.ID, rock.ID, database.Identity)
	require.NoError(t, err)
	assert.Equal(t, "B rock", found.Name)
}

func TestAuditRepository_ListAndRetention(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewAuditRepository(db)

	org, _ := testutil.CreateOrganization(t, db, "acme")
	old := &models.AuditLog{OrganizationID: org.ID, Action: "CREATE", EntityType: "Rock", EntityID: "1", CreatedAt: time.Now().AddDate(0, 0, -400)}
	recent := &models.AuditLog{OrganizationID: org.ID, Action: "DELETE", EntityType: "Story", EntityID: "2"}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))

	logs, total, err := repo.List(ctx, AuditLogFilter{OrganizationID: org.ID, EntityType: "Story", Page: utils.NewPaginationParams(1, 20)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, recent.ID, logs[0].ID)

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().AddDate(0, 0, -365))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
