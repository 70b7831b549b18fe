package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	fixtures "github.com/yukikurage/rocks-tracker-api/internal/testutil"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
	"gorm.io/gorm"
)

var firstPage = utils.NewPaginationParams(1, 50)

func scopingFlags(enabled bool) map[string]FlagState {
	return map[string]FlagState{
		constants.FlagTeamScoping: {Key: constants.FlagTeamScoping, IsEnabled: enabled},
	}
}

func newStoryService(db *gorm.DB) *WorkItemService[models.Story, *models.Story] {
	teams := NewTeamService(repository.NewTeamRepository(db), repository.NewMembershipRepository(db))
	return NewWorkItemService[models.Story, *models.Story](repository.NewEntityRepository[models.Story](db), teams, models.EntityStory).
		WithCode("S", func(s *models.Story, code string) { s.Code = code })
}

func newTaskService(db *gorm.DB) *WorkItemService[models.Task, *models.Task] {
	teams := NewTeamService(repository.NewTeamRepository(db), repository.NewMembershipRepository(db))
	return NewWorkItemService[models.Task, *models.Task](repository.NewEntityRepository[models.Task](db), teams, models.EntityTask).
		WithCode("T", func(t *models.Task, code string) { t.Code = code })
}

func insertStory(t *testing.T, db *gorm.DB, orgID uint64, teamID *uint64, code string) *models.Story {
	t.Helper()
	story := &models.Story{
		Scoped: models.Scoped{OrganizationID: orgID, TeamID: teamID},
		Code:   code,
		Title:  "story " + code,
		Status: models.StoryStatusBacklog,
	}
	require.NoError(t, db.Create(story).Error)
	return story
}

func storyIDs(stories []models.Story) []uint64 {
	ids := make([]uint64, 0, len(stories))
	for _, s := range stories {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestTeamScope_Visibility(t *testing.T) {
	db := fixtures.NewDB(t)
	ctx := context.Background()
	stories := newStoryService(db)

	org, general := fixtures.CreateOrganization(t, db, "acme")
	alpha := fixtures.CreateTeam(t, db, org.ID, "alpha")
	inAlpha := insertStory(t, db, org.ID, &alpha.ID, "S-1")
	legacy := insertStory(t, db, org.ID, nil, "S-2")
	inGeneral := insertStory(t, db, org.ID, &general.ID, "S-3")

	other, _ := fixtures.CreateOrganization(t, db, "other")
	insertStory(t, db, other.ID, nil, "S-1")

	cases := []struct {
		name      string
		principal *Principal
		want      []uint64
	}{
		{
			name:      "teamless member sees only org-wide rows",
			principal: &Principal{OrganizationID: org.ID, Role: rbac.RoleMember, TeamIDs: []uint64{}, Flags: scopingFlags(true)},
			want:      []uint64{legacy.ID},
		},
		{
			name:      "member sees own team and org-wide rows",
			principal: &Principal{OrganizationID: org.ID, Role: rbac.RoleMember, TeamIDs: []uint64{alpha.ID}, Flags: scopingFlags(true)},
			want:      []uint64{inAlpha.ID, legacy.ID},
		},
		{
			name:      "viewer is scoped too",
			principal: &Principal{OrganizationID: org.ID, Role: rbac.RoleViewer, TeamIDs: []uint64{general.ID}, Flags: scopingFlags(true)},
			want:      []uint64{legacy.ID, inGeneral.ID},
		},
		{
			name:      "manager sees every team",
			principal: &Principal{OrganizationID: org.ID, Role: rbac.RoleManager, TeamIDs: []uint64{}, Flags: scopingFlags(true)},
			want:      []uint64{inAlpha.ID, legacy.ID, inGeneral.ID},
		},
		{
			name:      "super-admin sees every team",
			principal: &Principal{OrganizationID: org.ID, Role: rbac.RoleViewer, IsSuperAdmin: true, Flags: scopingFlags(true)},
			want:      []uint64{inAlpha.ID, legacy.ID, inGeneral.ID},
		},
		{
			name:      "flag off leaves the organization filter only",
			principal: &Principal{OrganizationID: org.ID, Role: rbac.RoleMember, TeamIDs: []uint64{}, Flags: scopingFlags(false)},
			want:      []uint64{inAlpha.ID, legacy.ID, inGeneral.ID},
		},
		{
			name:      "missing flag means off",
			principal: &Principal{OrganizationID: org.ID, Role: rbac.RoleMember},
			want:      []uint64{inAlpha.ID, legacy.ID, inGeneral.ID},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, total, err := stories.List(ctx, tc.principal, nil, firstPage)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, storyIDs(items))
			assert.Equal(t, int64(len(tc.want)), total)
		})
	}
}

func TestTeamScope_TasksExcludeNullTeam(t *testing.T) {
	db := fixtures.NewDB(t)
	ctx := context.Background()
	tasks := newTaskService(db)

	org, _ := fixtures.CreateOrganization(t, db, "acme")
	alpha := fixtures.CreateTeam(t, db, org.ID, "alpha")
	scoped := &models.Task{Scoped: models.Scoped{OrganizationID: org.ID, TeamID: &alpha.ID}, Code: "T-1", Title: "a", Status: models.TaskStatusTodo, CreatorID: 1}
	orphan := &models.Task{Scoped: models.Scoped{OrganizationID: org.ID}, Code: "T-2", Title: "b", Status: models.TaskStatusTodo, CreatorID: 1}
	require.NoError(t, db.Create(scoped).Error)
	require.NoError(t, db.Create(orphan).Error)

	member := &Principal{OrganizationID: org.ID, Role: rbac.RoleMember, TeamIDs: []uint64{alpha.ID}, Flags: scopingFlags(true)}
	items, _, err := tasks.List(ctx, member, nil, firstPage)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, scoped.ID, items[0].ID)

	teamless := &Principal{OrganizationID: org.ID, Role: rbac.RoleMember, TeamIDs: []uint64{}, Flags: scopingFlags(true)}
	items, _, err = tasks.List(ctx, teamless, nil, firstPage)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestApplyTeamScope_OverrideAndBase(t *testing.T) {
	db := fixtures.NewDB(t)
	org, _ := fixtures.CreateOrganization(t, db, "acme")
	insertStory(t, db, org.ID, nil, "S-1")

	deny := false
	member := &Principal{OrganizationID: org.ID, Role: rbac.RoleMember, TeamIDs: []uint64{}, Flags: scopingFlags(true)}
	scope := ApplyTeamScope(nil, member, TeamScopeOptions{EntityType: models.EntityStory, AllowNullTeam: &deny})

	var n int64
	require.NoError(t, db.Model(&models.Story{}).Scopes(scope).Count(&n).Error)
	assert.Equal(t, int64(0), n)

	assert.True(t, TeamScopeOptions{EntityType: "Unknown"}.allowNullTeam())
	assert.False(t, TeamScopeOptions{EntityType: models.EntityTask}.allowNullTeam())
}

func TestWorkItemService_CrossTenantIsNotFound(t *testing.T) {
	db := fixtures.NewDB(t)
	ctx := context.Background()
	stories := newStoryService(db)

	orgA, _ := fixtures.CreateOrganization(t, db, "a")
	orgB, _ := fixtures.CreateOrganization(t, db, "b")
	foreign := insertStory(t, db, orgB.ID, nil, "S-1")

	principal := &Principal{OrganizationID: orgA.ID, Role: rbac.RoleAdmin}

	_, err := stories.Get(ctx, principal, foreign.ID)
	assert.ErrorIs(t, err, ErrWorkItemNotFound)
	assert.ErrorIs(t, stories.Delete(ctx, principal, foreign.ID), ErrWorkItemNotFound)

	foreign.Title = "hijacked"
	assert.ErrorIs(t, stories.Update(ctx, principal, nil, foreign), ErrCrossTenant)

	var reloaded models.Story
	require.NoError(t, db.First(&reloaded, foreign.ID).Error)
	assert.Equal(t, "story S-1", reloaded.Title)
}

func TestWorkItemService_InvisibleTeamIsNotFound(t *testing.T) {
	db := fixtures.NewDB(t)
	stories := newStoryService(db)

	org, _ := fixtures.CreateOrganization(t, db, "a")
	alpha := fixtures.CreateTeam(t, db, org.ID, "alpha")
	story := insertStory(t, db, org.ID, &alpha.ID, "S-1")

	outsider := &Principal{OrganizationID: org.ID, Role: rbac.RoleMember, TeamIDs: []uint64{}, Flags: scopingFlags(true)}
	_, err := stories.Get(context.Background(), outsider, story.ID)
	assert.ErrorIs(t, err, ErrWorkItemNotFound)
}

func TestWorkItemService_CreateAssignsCodes(t *testing.T) {
	db := fixtures.NewDB(t)
	ctx := context.Background()
	stories := newStoryService(db)

	orgA, teamA := fixtures.CreateOrganization(t, db, "a")
	orgB, teamB := fixtures.CreateOrganization(t, db, "b")
	principalA := &Principal{OrganizationID: orgA.ID, Role: rbac.RoleAdmin}
	principalB := &Principal{OrganizationID: orgB.ID, Role: rbac.RoleAdmin}

	var codesA []string
	for i := 0; i < 2; i++ {
		story := &models.Story{Scoped: models.Scoped{OrganizationID: orgA.ID, TeamID: &teamA.ID}, Title: "s", Status: models.StoryStatusBacklog}
		require.NoError(t, stories.Create(ctx, principalA, story))
		codesA = append(codesA, story.Code)
	}
	assert.Equal(t, []string{"S-1", "S-2"}, codesA)

	storyB := &models.Story{Scoped: models.Scoped{OrganizationID: orgB.ID, TeamID: &teamB.ID}, Title: "s", Status: models.StoryStatusBacklog}
	require.NoError(t, stories.Create(ctx, principalB, storyB))
	assert.Equal(t, "S-1", storyB.Code, "codes are per organization")

	wrongTeam := &models.Story{Scoped: models.Scoped{OrganizationID: orgA.ID, TeamID: &teamB.ID}, Title: "s", Status: models.StoryStatusBacklog}
	assert.ErrorIs(t, stories.Create(ctx, principalA, wrongTeam), ErrInvalidTeam)

	wrongOrg := &models.Story{Scoped: models.Scoped{OrganizationID: orgB.ID}, Title: "s", Status: models.StoryStatusBacklog}
	assert.ErrorIs(t, stories.Create(ctx, principalA, wrongOrg), ErrCrossTenant)
}

func TestWorkItemService_UpdateDuplicateCode(t *testing.T) {
	db := fixtures.NewDB(t)
	ctx := context.Background()
	stories := newStoryService(db)

	org, _ := fixtures.CreateOrganization(t, db, "a")
	principal := &Principal{OrganizationID: org.ID, Role: rbac.RoleAdmin}
	insertStory(t, db, org.ID, nil, "S-1")
	second := insertStory(t, db, org.ID, nil, "S-2")

	second.Code = "S-1"
	assert.ErrorIs(t, stories.Update(ctx, principal, nil, second), ErrCodeTaken)
}

func TestWorkItemService_ScopedTeamAndOwner(t *testing.T) {
	db := fixtures.NewDB(t)
	ctx := context.Background()
	stories := newStoryService(db)

	org, general := fixtures.CreateOrganization(t, db, "a")
	alpha := fixtures.CreateTeam(t, db, org.ID, "alpha")
	member := fixtures.CreateUser(t, db, "member@example.com")
	colleague := fixtures.CreateUser(t, db, "colleague@example.com")
	outsider := fixtures.CreateUser(t, db, "outsider@example.com")
	fixtures.CreateMembership(t, db, org.ID, member, rbac.RoleMember, general)
	fixtures.CreateMembership(t, db, org.ID, colleague, rbac.RoleMember, general)

	scoped := &Principal{OrganizationID: org.ID, UserID: member.ID, Role: rbac.RoleMember, TeamIDs: []uint64{general.ID}, Flags: scopingFlags(true)}
	newStory := func(teamID, ownerID *uint64) *models.Story {
		return &models.Story{Scoped: models.Scoped{OrganizationID: org.ID, TeamID: teamID, OwnerID: ownerID}, Title: "s", Status: models.StoryStatusBacklog}
	}

	assert.ErrorIs(t, stories.Create(ctx, scoped, newStory(&alpha.ID, &member.ID)), ErrTeamOutOfScope)
	require.NoError(t, stories.Create(ctx, scoped, newStory(&general.ID, &member.ID)))

	unscoped := *scoped
	unscoped.Flags = scopingFlags(false)
	require.NoError(t, stories.Create(ctx, &unscoped, newStory(&alpha.ID, &member.ID)))

	assert.ErrorIs(t, stories.Create(ctx, scoped, newStory(&general.ID, &outsider.ID)), ErrInvalidOwner)
	require.NoError(t, stories.Create(ctx, scoped, newStory(&general.ID, &colleague.ID)))

	// A kept owner who has since left the organization does not block edits.
	stale := insertStory(t, db, org.ID, &general.ID, "S-9")
	require.NoError(t, db.Model(stale).Update("owner_id", outsider.ID).Error)
	loaded, err := stories.Get(ctx, scoped, stale.ID)
	require.NoError(t, err)
	before := *loaded
	loaded.Title = "renamed"
	require.NoError(t, stories.Update(ctx, scoped, &before, loaded))
}

type fakeGenerator struct {
	tasks []GeneratedTask
	err   error
}

func (g fakeGenerator) GenerateTasksForStory(ctx context.Context, title, description string) ([]GeneratedTask, error) {
	return g.tasks, g.err
}

func TestStoryTaskService_GenerateTasks(t *testing.T) {
	db := fixtures.NewDB(t)
	ctx := context.Background()

	org, _ := fixtures.CreateOrganization(t, db, "a")
	alpha := fixtures.CreateTeam(t, db, org.ID, "alpha")
	story := insertStory(t, db, org.ID, &alpha.ID, "S-1")
	principal := &Principal{OrganizationID: org.ID, UserID: 42, Role: rbac.RoleMember, TeamIDs: []uint64{alpha.ID}, Flags: scopingFlags(true)}

	svc := NewStoryTaskService(newStoryService(db), newTaskService(db), fakeGenerator{tasks: []GeneratedTask{
		{Title: "Write migration"},
		{Title: "   "},
		{Title: "Add endpoint", Description: "REST"},
	}})

	gotStory, tasks, err := svc.GenerateTasks(ctx, principal, story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.ID, gotStory.ID)
	require.Len(t, tasks, 2)
	for i, task := range tasks {
		assert.Equal(t, alpha.ID, *task.TeamID, "tasks inherit the story team")
		assert.Equal(t, uint64(42), *task.OwnerID)
		assert.Equal(t, uint64(42), task.CreatorID)
		assert.Equal(t, story.ID, *task.StoryID)
		assert.Equal(t, models.TaskStatusTodo, task.Status)
		assert.Equal(t, []string{"T-1", "T-2"}[i], task.Code)
	}
}

func TestStoryTaskService_Errors(t *testing.T) {
	db := fixtures.NewDB(t)
	ctx := context.Background()

	org, _ := fixtures.CreateOrganization(t, db, "a")
	story := insertStory(t, db, org.ID, nil, "S-1")
	principal := &Principal{OrganizationID: org.ID, UserID: 1, Role: rbac.RoleAdmin}

	_, _, err := NewStoryTaskService(newStoryService(db), newTaskService(db), nil).GenerateTasks(ctx, principal, story.ID)
	assert.ErrorIs(t, err, ErrAIServiceNotConfigured)

	_, _, err = NewStoryTaskService(newStoryService(db), newTaskService(db), fakeGenerator{}).GenerateTasks(ctx, principal, story.ID)
	assert.ErrorIs(t, err, ErrAINoTasksGenerated)

	_, _, err = NewStoryTaskService(newStoryService(db), newTaskService(db), fakeGenerator{tasks: []GeneratedTask{{Title: ""}}}).GenerateTasks(ctx, principal, story.ID)
	assert.ErrorIs(t, err, ErrAINoValidTasks)

	_, _, err = NewStoryTaskService(newStoryService(db), newTaskService(db), fakeGenerator{tasks: []GeneratedTask{{Title: "x"}}}).GenerateTasks(ctx, principal, story.ID+100)
	assert.ErrorIs(t, err, ErrWorkItemNotFound)
}

func TestAIService_GenerateTasksForStory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, openai.GPT4o, req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Checkout flow")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: "```json\n[{\"title\":\"Build cart\",\"description\":\"\",\"due_date\":null}]\n```",
				},
			}},
		})
	}))
	defer server.Close()

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	svc := NewAIServiceWithConfig(config)

	tasks, err := svc.GenerateTasksForStory(context.Background(), "Checkout flow", "Let users pay")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Build cart", tasks[0].Title)
	assert.Nil(t, tasks[0].DueDate)

	var nilService *AIService
	_, err = nilService.GenerateTasksForStory(context.Background(), "x", "y")
	assert.Error(t, err)
}
