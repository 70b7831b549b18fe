package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	fixtures "github.com/yukikurage/rocks-tracker-api/internal/testutil"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
)

var pageOfTen = utils.NewPaginationParams(1, 10)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingLoader struct {
	mu      sync.Mutex
	calls   map[uint64]int
	configs map[uint64][]models.AuditAlertConfig
}

func (l *countingLoader) ListActive(_ context.Context, orgID uint64) ([]models.AuditAlertConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[uint64]int{}
	}
	l.calls[orgID]++
	return l.configs[orgID], nil
}

func TestMatches_Wildcard(t *testing.T) {
	config := models.AuditAlertConfig{
		TriggerActions:  []string{"*"},
		TriggerEntities: []string{"Rock"},
	}

	for _, action := range []string{models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete} {
		assert.True(t, Matches(config, action, models.EntityRock), action)
		assert.False(t, Matches(config, action, models.EntitySprint), action)
	}
}

func TestMatches_ExplicitSets(t *testing.T) {
	config := models.AuditAlertConfig{
		TriggerActions:  []string{"DELETE"},
		TriggerEntities: []string{"*"},
	}
	assert.True(t, Matches(config, "DELETE", "Story"))
	assert.False(t, Matches(config, "UPDATE", "Story"))

	assert.False(t, Matches(models.AuditAlertConfig{TriggerEntities: []string{"*"}}, "DELETE", "Story"))
}

func TestMatches_EntityIsExact(t *testing.T) {
	config := models.AuditAlertConfig{
		TriggerActions:  []string{"DELETE"},
		TriggerEntities: []string{models.EntityRock},
	}
	assert.True(t, Matches(config, "DELETE", models.EntityRock))
	assert.False(t, Matches(config, "DELETE", "rock"))
	assert.False(t, Matches(config, "DELETE", "ROCK"))
}

func TestMemoryCooldown_Window(t *testing.T) {
	clock := newFakeClock()
	tracker := NewMemoryCooldown(constants.DefaultCooldownMaxEntries, constants.DefaultCooldownMaxAge, clock.Now)
	ctx := context.Background()

	ok, err := tracker.TryAcquire(ctx, 1, "42", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(time.Minute)
	ok, _ = tracker.TryAcquire(ctx, 1, "42", 10*time.Minute)
	assert.False(t, ok, "second event one minute later is suppressed")

	ok, _ = tracker.TryAcquire(ctx, 1, "43", 10*time.Minute)
	assert.True(t, ok, "other entity has its own cooldown")
	ok, _ = tracker.TryAcquire(ctx, 2, "42", 10*time.Minute)
	assert.True(t, ok, "other config has its own cooldown")

	clock.Advance(10 * time.Minute)
	ok, _ = tracker.TryAcquire(ctx, 1, "42", 10*time.Minute)
	assert.True(t, ok, "eleven minutes after the first event")
}

func TestMemoryCooldown_ZeroCooldownAlwaysFires(t *testing.T) {
	tracker := NewMemoryCooldown(10, time.Hour, newFakeClock().Now)
	for i := 0; i < 3; i++ {
		ok, err := tracker.TryAcquire(context.Background(), 1, "", 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMemoryCooldown_PrunesOldEntries(t *testing.T) {
	clock := newFakeClock()
	tracker := NewMemoryCooldown(3, time.Hour, clock.Now)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := tracker.TryAcquire(ctx, 1, id, time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, 3, tracker.Len())

	clock.Advance(2 * time.Hour)
	_, err := tracker.TryAcquire(ctx, 1, "4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, tracker.Len())
}

func TestRedisCooldown_Window(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tracker := NewRedisCooldown(client)
	ctx := context.Background()

	ok, err := tracker.TryAcquire(ctx, 7, "9", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute)
	ok, err = tracker.TryAcquire(ctx, 7, "9", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(10 * time.Minute)
	ok, err = tracker.TryAcquire(ctx, 7, "9", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfigCache_TTLPerOrganization(t *testing.T) {
	clock := newFakeClock()
	loader := &countingLoader{configs: map[uint64][]models.AuditAlertConfig{
		1: {{ID: 10, OrganizationID: 1}},
		2: {{ID: 20, OrganizationID: 2}},
	}}
	metrics := observability.NewMetrics()
	cache, err := NewConfigCache(loader, time.Minute, 16, clock.Now, metrics)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	clock.Advance(50 * time.Second)

	// Loading org 2 must not refresh the staleness of org 1.
	_, err = cache.Get(ctx, 2)
	require.NoError(t, err)
	clock.Advance(20 * time.Second)

	configs, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), configs[0].ID)
	assert.Equal(t, 2, loader.calls[1], "org 1 expired after 70s")

	_, err = cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls[2], "org 2 is 20s old")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertConfigCacheHits))
}

func TestConfigCache_Invalidate(t *testing.T) {
	loader := &countingLoader{configs: map[uint64][]models.AuditAlertConfig{}}
	cache, err := NewConfigCache(loader, time.Hour, 16, newFakeClock().Now, observability.NewMetrics())
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = cache.Get(ctx, 1)
	_, _ = cache.Get(ctx, 1)
	require.Equal(t, 1, loader.calls[1])

	cache.Invalidate(1)
	_, _ = cache.Get(ctx, 1)
	assert.Equal(t, 2, loader.calls[1])
}

type dispatchEnv struct {
	repo       repository.NotificationRepository
	dispatcher *Dispatcher
	orgID      uint64
	admin      *models.User
	manager    *models.User
	member     *models.User
}

func setupDispatchEnv(t *testing.T) dispatchEnv {
	t.Helper()
	db := fixtures.NewDB(t)
	org, _ := fixtures.CreateOrganization(t, db, "acme")
	admin := fixtures.CreateUser(t, db, "admin@example.com")
	manager := fixtures.CreateUser(t, db, "manager@example.com")
	member := fixtures.CreateUser(t, db, "member@example.com")
	fixtures.CreateMembership(t, db, org.ID, admin, rbac.RoleAdmin)
	fixtures.CreateMembership(t, db, org.ID, manager, rbac.RoleManager)
	fixtures.CreateMembership(t, db, org.ID, member, rbac.RoleMember)

	notifications := repository.NewNotificationRepository(db)
	dispatcher := NewDispatcher(
		repository.NewMembershipRepository(db),
		notifications,
		&http.Client{Timeout: time.Second},
		observability.NewDiscardLogger(),
		observability.NewMetrics(),
	)
	return dispatchEnv{repo: notifications, dispatcher: dispatcher, orgID: org.ID, admin: admin, manager: manager, member: member}
}

func (e dispatchEnv) notified(t *testing.T, userID uint64) int64 {
	t.Helper()
	_, total, err := e.repo.ListForUser(context.Background(), e.orgID, userID, false, pageOfTen)
	require.NoError(t, err)
	return total
}

func TestDispatcher_Targets(t *testing.T) {
	env := setupDispatchEnv(t)

	config := models.AuditAlertConfig{
		OrganizationID: env.orgID,
		NotifyUserIDs:  []uint64{env.member.ID, 9999},
		NotifyRoles:    []string{"ADMIN", "MANAGER"},
	}
	log := models.AuditLog{UserID: fixtures.Uint64(env.admin.ID)}

	targets, err := env.dispatcher.Targets(context.Background(), config, log)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{env.member.ID, env.manager.ID}, targets)
}

func TestDispatcher_WebhookSignedAndIndependentOfInApp(t *testing.T) {
	env := setupDispatchEnv(t)

	var (
		mu        sync.Mutex
		body      []byte
		signature string
		eventID   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(constants.HeaderSignature)
		eventID = r.Header.Get(constants.HeaderEventID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := models.AuditAlertConfig{
		ID:             3,
		OrganizationID: env.orgID,
		Name:           "rock deleted",
		NotifyRoles:    []string{"ADMIN"},
		NotifyInApp:    true,
		NotifyWebhook:  true,
		NotifyEmail:    true,
		WebhookURL:     server.URL,
		WebhookSecret:  "s3cret",
	}
	log := models.AuditLog{ID: 5, OrganizationID: env.orgID, Action: "DELETE", EntityType: "Rock", EntityID: "1"}

	require.NoError(t, env.dispatcher.Dispatch(context.Background(), config, log))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, VerifySignature(body, signature, "s3cret"))
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, eventID, payload.EventID)
	assert.Equal(t, WebhookEventAuditAlert, payload.Event)
	assert.Equal(t, uint64(3), payload.Alert.ID)
	assert.Equal(t, "Rock", payload.AuditLog.EntityType)
	assert.Equal(t, int64(1), env.notified(t, env.admin.ID))
}

func TestDispatcher_FailingWebhookStillNotifiesInApp(t *testing.T) {
	env := setupDispatchEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := models.AuditAlertConfig{
		OrganizationID: env.orgID,
		Name:           "anything",
		NotifyUserIDs:  []uint64{env.member.ID},
		NotifyInApp:    true,
		NotifyWebhook:  true,
		WebhookURL:     server.URL,
	}
	err := env.dispatcher.Dispatch(context.Background(), config, models.AuditLog{OrganizationID: env.orgID, Action: "CREATE", EntityType: "Story"})
	require.Error(t, err)
	assert.Equal(t, int64(1), env.notified(t, env.member.ID))
}

func TestEvaluator_CooldownAcrossEvents(t *testing.T) {
	env := setupDispatchEnv(t)
	clock := newFakeClock()

	loader := &countingLoader{configs: map[uint64][]models.AuditAlertConfig{
		env.orgID: {{
			ID:              1,
			OrganizationID:  env.orgID,
			Name:            "rock changes",
			TriggerActions:  []string{"*"},
			TriggerEntities: []string{"Rock"},
			NotifyUserIDs:   []uint64{env.member.ID},
			NotifyInApp:     true,
			CooldownMinutes: 10,
			IsActive:        true,
		}},
	}}
	metrics := observability.NewMetrics()
	cache, err := NewConfigCache(loader, time.Hour, 16, clock.Now, metrics)
	require.NoError(t, err)
	evaluator := NewEvaluator(cache, NewMemoryCooldown(1000, time.Hour, clock.Now), env.dispatcher, observability.NewDiscardLogger(), metrics)

	event := models.AuditLog{OrganizationID: env.orgID, Action: "UPDATE", EntityType: "Rock", EntityID: "77"}

	evaluator.Notify(event)
	evaluator.Wait()
	clock.Advance(time.Minute)
	evaluator.Notify(event)
	evaluator.Wait()
	assert.Equal(t, int64(1), env.notified(t, env.member.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertCooldownSkips))

	clock.Advance(10 * time.Minute)
	evaluator.Notify(event)
	evaluator.Wait()
	assert.Equal(t, int64(2), env.notified(t, env.member.ID))

	evaluator.Notify(models.AuditLog{OrganizationID: env.orgID, Action: "UPDATE", EntityType: "Sprint", EntityID: "77"})
	evaluator.Wait()
	assert.Equal(t, int64(2), env.notified(t, env.member.ID))
}
