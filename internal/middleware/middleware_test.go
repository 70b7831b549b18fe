package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
	fixtures "github.com/yukikurage/rocks-tracker-api/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	r.Use(RequestID())
	r.POST("/login/:id", func(c *gin.Context) {
		id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
		session := sessions.Default(c)
		session.Set(constants.ContextKeyUserID, id)
		if org := c.Query("org"); org != "" {
			orgID, _ := strconv.ParseUint(org, 10, 64)
			session.Set(constants.ContextKeyOrganizationID, orgID)
		}
		if err := session.Save(); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func login(t *testing.T, r *gin.Engine, path string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	return w.Result().Cookies()
}

func do(r *gin.Engine, method, path string, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()
	var body apierrors.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// withPrincipal stands in for RequireAuth and LoadPrincipal.
func withPrincipal(user *models.User, principal *services.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(constants.ContextKeyUserID, user.ID)
			c.Set(constants.ContextKeyUser, user)
		}
		if principal != nil {
			c.Set(constants.ContextKeyPrincipal, principal)
		}
		c.Next()
	}
}

func TestRequireAuth(t *testing.T) {
	db := fixtures.NewDB(t)
	active := fixtures.CreateUser(t, db, "active@example.com")
	disabled := fixtures.CreateUser(t, db, "disabled@example.com")
	require.NoError(t, db.Model(disabled).Update("is_active", false).Error)

	r := newEngine()
	r.GET("/me", RequireAuth(repository.NewUserRepository(db)), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": GetCurrentUser(c).Email})
	})

	w := do(r, http.MethodGet, "/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apierrors.ErrCodeUnauthorized, decodeError(t, w).Code)

	w = do(r, http.MethodGet, "/me", login(t, r, "/login/"+strconv.FormatUint(disabled.ID, 10)), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apierrors.ErrCodeAccountDisabled, decodeError(t, w).Code)

	w = do(r, http.MethodGet, "/me", login(t, r, "/login/9999"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/me", login(t, r, "/login/"+strconv.FormatUint(active.ID, 10)), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "active@example.com")
}

func TestLoadPrincipal(t *testing.T) {
	db := fixtures.NewDB(t)
	user := fixtures.CreateUser(t, db, "u@example.com")
	orgA, _ := fixtures.CreateOrganization(t, db, "a")
	orgB, _ := fixtures.CreateOrganization(t, db, "b")
	foreign, _ := fixtures.CreateOrganization(t, db, "foreign")
	fixtures.CreateMembership(t, db, orgA.ID, user, rbac.RoleMember)
	fixtures.CreateMembership(t, db, orgB.ID, user, rbac.RoleAdmin)

	orgRepo := repository.NewOrganizationRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	builder := services.NewPrincipalService(
		services.NewOrganizationResolver(orgRepo, membershipRepo),
		services.NewMembershipResolver(orgRepo, membershipRepo, teamRepo),
		teamRepo,
		services.NewFeatureFlagService(repository.NewFeatureFlagRepository(db)),
		observability.NewDiscardLogger(),
		observability.NewMetrics(),
	)

	r := newEngine()
	r.GET("/principal", RequireAuth(repository.NewUserRepository(db)), LoadPrincipal(builder), RequireOrganization(), func(c *gin.Context) {
		c.JSON(http.StatusOK, GetPrincipal(c))
	})

	orgOf := func(w *httptest.ResponseRecorder) uint64 {
		var p services.Principal
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
		return p.OrganizationID
	}
	userPath := "/login/" + strconv.FormatUint(user.ID, 10)

	w := do(r, http.MethodGet, "/principal", login(t, r, userPath), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orgA.ID, orgOf(w))

	w = do(r, http.MethodGet, "/principal", login(t, r, userPath+"?org="+strconv.FormatUint(orgB.ID, 10)), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orgB.ID, orgOf(w), "session selection")

	w = do(r, http.MethodGet, "/principal", login(t, r, userPath), map[string]string{
		constants.HeaderOrganizationID: strconv.FormatUint(foreign.ID, 10),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orgA.ID, orgOf(w), "foreign header is ignored")

	loner := fixtures.CreateUser(t, db, "loner@example.com")
	w = do(r, http.MethodGet, "/principal", login(t, r, "/login/"+strconv.FormatUint(loner.ID, 10)), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apierrors.ErrCodeOrganizationRequired, decodeError(t, w).Code)
}

func TestRequirePermission(t *testing.T) {
	metrics := observability.NewMetrics()
	user := &models.User{ID: 7, Email: "m@example.com", IsActive: true}
	member := &services.Principal{OrganizationID: 1, UserID: 7, Role: rbac.RoleMember}

	r := newEngine()
	r.Use(Logger(observability.NewDiscardLogger(), metrics))
	r.DELETE("/rocks/:id", withPrincipal(user, member), RequirePermission(rbac.PermRocksDelete), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.PUT("/stories/:id", withPrincipal(user, member), RequirePermission(rbac.PermStoriesUpdate), func(c *gin.Context) {
		own := uint64(7)
		other := uint64(8)
		c.JSON(http.StatusOK, gin.H{
			"required": OwnershipRequired(c),
			"own":      CheckOwnership(c, &own),
			"other":    CheckOwnership(c, &other),
			"unowned":  CheckOwnership(c, nil),
		})
	})
	r.DELETE("/admin/rocks/:id", withPrincipal(user, &services.Principal{OrganizationID: 1, Role: rbac.RoleViewer, IsSuperAdmin: true}), RequirePermission(rbac.PermRocksDelete), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.DELETE("/nobody/rocks/:id", withPrincipal(user, nil), RequirePermission(rbac.PermRocksDelete), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := do(r, http.MethodDelete, "/rocks/1", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apierrors.ErrCodeForbidden, body.Code)
	assert.Equal(t, "rocks:delete", body.Required)
	assert.Equal(t, "MEMBER", body.UserRole)
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthorizationDenials.WithLabelValues(apierrors.ErrCodeForbidden)))

	w = do(r, http.MethodPut, "/stories/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"required":true,"own":true,"other":false,"unowned":false}`, w.Body.String())

	w = do(r, http.MethodDelete, "/admin/rocks/1", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodDelete, "/nobody/rocks/1", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apierrors.ErrCodeOrganizationRequired, decodeError(t, w).Code)
}

func TestCheckOwnership_NotRequired(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(constants.ContextKeyPrincipal, &services.Principal{UserID: 1, Role: rbac.RoleManager})
	other := uint64(2)
	assert.True(t, CheckOwnership(c, &other))
	assert.True(t, CheckOwnership(c, nil))
}

func TestRequireRole(t *testing.T) {
	r := newEngine()
	r.GET("/viewer", withPrincipal(nil, &services.Principal{Role: rbac.RoleViewer}), RequireRole(rbac.RoleManager), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/admin", withPrincipal(nil, &services.Principal{Role: rbac.RoleAdmin}), RequireRole(rbac.RoleManager), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := do(r, http.MethodGet, "/viewer", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "MANAGER", body.Required)
	assert.Equal(t, "VIEWER", body.UserRole)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/admin", nil, nil).Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	r := newEngine()
	r.PUT("/plain", withPrincipal(&models.User{ID: 1}, nil), RequireSuperAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PUT("/root", withPrincipal(&models.User{ID: 1, IsSuperAdmin: true}, nil), RequireSuperAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPut, "/plain", nil, nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPut, "/root", nil, nil).Code)
}

type fakeRecorder struct {
	entries []services.AuditEntry
	err     error
}

func (f *fakeRecorder) Record(ctx context.Context, entry services.AuditEntry) (*models.AuditLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, entry)
	return &models.AuditLog{}, nil
}

func TestAuditCapture(t *testing.T) {
	recorder := &fakeRecorder{}
	user := &models.User{ID: 3, Email: "a@example.com"}
	principal := &services.Principal{OrganizationID: 5, UserID: 3, Role: rbac.RoleAdmin}

	r := newEngine()
	group := r.Group("/rocks", withPrincipal(user, principal), AuditCapture(models.EntityRock, recorder, observability.NewDiscardLogger()))
	group.POST("", func(c *gin.Context) {
		RecordAudit(c, AuditEvent{EntityID: "42", NewValue: map[string]interface{}{"name": "Ship v2"}})
		c.Status(http.StatusCreated)
	})
	group.PUT("/:id", func(c *gin.Context) {
		RecordAudit(c, AuditEvent{OldValue: gin.H{"name": "a"}, NewValue: gin.H{"name": "b"}})
		c.Status(http.StatusOK)
	})
	group.DELETE("/:id", func(c *gin.Context) {
		apierrors.Forbidden(c, "")
	})
	group.GET("/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	group.PATCH("/:id", func(c *gin.Context) {
		SkipAudit(c)
		c.Status(http.StatusOK)
	})

	w := do(r, http.MethodPost, "/rocks", nil, map[string]string{constants.HeaderRequestID: "req-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, recorder.entries, 1)
	created := recorder.entries[0]
	assert.Equal(t, uint64(5), created.OrganizationID)
	assert.Equal(t, models.AuditActionCreate, created.Action)
	assert.Equal(t, models.EntityRock, created.EntityType)
	assert.Equal(t, "42", created.EntityID)
	assert.Equal(t, user, created.Actor)
	assert.Equal(t, "req-1", created.Metadata["request_id"])
	assert.Contains(t, created.Metadata, "duration_ms")
	assert.Contains(t, created.Metadata, "ip")
	assert.Contains(t, created.Metadata, "user_agent")

	do(r, http.MethodPut, "/rocks/9", nil, nil)
	require.Len(t, recorder.entries, 2)
	assert.Equal(t, "9", recorder.entries[1].EntityID, "falls back to the route id")
	assert.Equal(t, models.AuditActionUpdate, recorder.entries[1].Action)

	do(r, http.MethodDelete, "/rocks/9", nil, nil)
	do(r, http.MethodGet, "/rocks/9", nil, nil)
	do(r, http.MethodPatch, "/rocks/9", nil, nil)
	assert.Len(t, recorder.entries, 2, "non-2xx, reads and skipped requests are not recorded")
}

func TestAuditCapture_FailureIsSwallowed(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("db down")}
	r := newEngine()
	r.POST("/teams", withPrincipal(nil, &services.Principal{OrganizationID: 1}), AuditCapture(models.EntityTeam, recorder, observability.NewDiscardLogger()), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": 1})
	})

	w := do(r, http.MethodPost, "/teams", nil, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1}`, w.Body.String())
}

func TestAuditCapture_OrganizationOverride(t *testing.T) {
	recorder := &fakeRecorder{}
	r := newEngine()
	r.POST("/organizations", withPrincipal(&models.User{ID: 1}, nil), AuditCapture(models.EntityOrganization, recorder, observability.NewDiscardLogger()), func(c *gin.Context) {
		if c.Query("declare") != "" {
			RecordAudit(c, AuditEvent{OrganizationID: 11, EntityID: "11"})
		}
		c.Status(http.StatusCreated)
	})

	do(r, http.MethodPost, "/organizations", nil, nil)
	assert.Empty(t, recorder.entries, "no organization to attribute")

	do(r, http.MethodPost, "/organizations?declare=1", nil, nil)
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, uint64(11), recorder.entries[0].OrganizationID)
}

func TestRecovery(t *testing.T) {
	for _, development := range []bool{true, false} {
		r := newEngine()
		r.Use(Recovery(observability.NewDiscardLogger(), development))
		r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

		w := do(r, http.MethodGet, "/boom", nil, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, apierrors.ErrCodeInternalError, body.Code)
		if development {
			assert.Contains(t, body.Message, "kaboom")
		} else {
			assert.NotContains(t, body.Message, "kaboom")
		}
	}
}

func TestRequestID(t *testing.T) {
	r := newEngine()
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := do(r, http.MethodGet, "/id", nil, map[string]string{constants.HeaderRequestID: "given"})
	assert.Equal(t, "given", w.Body.String())
	assert.Equal(t, "given", w.Header().Get(constants.HeaderRequestID))

	w = do(r, http.MethodGet, "/id", nil, nil)
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(constants.HeaderRequestID))
}
