package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

// RouterConfig holds the HTTP-level settings of the API.
type RouterConfig struct {
	Log          logrus.FieldLogger
	Metrics      *observability.Metrics
	SessionStore sessions.Store
	CORSOrigins  []string
	Development  bool
}

// Services bundles everything the routes call into.
type Services struct {
	Users         repository.UserRepository
	Auth          *services.AuthService
	Resolver      *services.OrganizationResolver
	Principals    *services.PrincipalService
	Organizations *services.OrganizationService
	Teams         *services.TeamService
	Members       *services.MemberService
	Flags         *services.FeatureFlagService
	Audit         *services.AuditService
	AlertConfigs  *services.AlertConfigService
	Notifications *services.NotificationService

	Objectives *ObjectiveService
	Rocks      *RockService
	Sprints    *SprintService
	Stories    *StoryService
	Tasks      *TaskService
	StoryTasks *services.StoryTaskService
}

type crudHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// NewRouter builds the gin engine with every API route.
func NewRouter(cfg RouterConfig, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(cfg.Log, cfg.Development))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(cfg.Log, cfg.Metrics))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", constants.HeaderOrganizationID, constants.HeaderRequestID},
			ExposeHeaders:    []string{constants.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(sessions.Sessions(constants.SessionCookieName, cfg.SessionStore))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Rocks Tracker API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	audit := func(entityType string) gin.HandlerFunc {
		return middleware.AuditCapture(entityType, svc.Audit, cfg.Log)
	}

	authHandler := NewAuthHandler(svc.Auth)
	sessionHandler := NewSessionHandler(svc.Resolver)
	orgHandler := NewOrganizationHandler(svc.Organizations)
	teamHandler := NewTeamHandler(svc.Teams)
	memberHandler := NewMemberHandler(svc.Members)
	flagHandler := NewFeatureFlagHandler(svc.Flags)
	auditHandler := NewAuditHandler(svc.Audit, svc.AlertConfigs)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	storyTaskHandler := NewStoryTaskHandler(svc.StoryTasks)

	api := r.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", middleware.RequireAuth(svc.Users), authHandler.GetCurrentUser)
	}

	authed := api.Group("")
	authed.Use(middleware.RequireAuth(svc.Users), middleware.LoadPrincipal(svc.Principals))

	session := authed.Group("/session")
	{
		session.GET("/principal", sessionHandler.GetPrincipal)
		session.PUT("/organization", sessionHandler.SelectOrganization)
	}

	orgs := authed.Group("/organizations", audit(models.EntityOrganization))
	{
		orgs.POST("", orgHandler.CreateOrganization)
		orgs.GET("", orgHandler.ListOrganizations)

		current := orgs.Group("/current", middleware.RequireOrganization())
		current.GET("", orgHandler.GetCurrentOrganization)
		current.PATCH("", middleware.RequirePermission(rbac.PermOrganizationUpdate), orgHandler.UpdateOrganization)
		current.DELETE("", middleware.RequirePermission(rbac.PermOrganizationDeactivate), orgHandler.DeactivateOrganization)
	}

	admin := authed.Group("/admin", middleware.RequireSuperAdmin(), audit(models.EntityFeatureFlag))
	{
		admin.PUT("/feature-flags/:key", flagHandler.SetGlobalFlag)
	}

	scoped := authed.Group("", middleware.RequireOrganization())

	teams := scoped.Group("/teams", audit(models.EntityTeam))
	{
		teams.GET("", middleware.RequirePermission(rbac.PermTeamsRead), teamHandler.ListTeams)
		teams.GET("/:id", middleware.RequirePermission(rbac.PermTeamsRead), teamHandler.GetTeam)
		teams.POST("", middleware.RequirePermission(rbac.PermTeamsManage), teamHandler.CreateTeam)
		teams.PATCH("/:id", middleware.RequirePermission(rbac.PermTeamsManage), teamHandler.UpdateTeam)
		teams.POST("/:id/members", middleware.RequirePermission(rbac.PermTeamsManage), teamHandler.AddTeamMember)
		teams.DELETE("/:id/members/:membershipId", middleware.RequirePermission(rbac.PermTeamsManage), teamHandler.RemoveTeamMember)
	}

	members := scoped.Group("/members", audit(models.EntityMembership))
	{
		members.GET("", middleware.RequirePermission(rbac.PermMembersRead), memberHandler.ListMembers)
		members.POST("", middleware.RequirePermission(rbac.PermMembersManage), memberHandler.InviteMember)
		members.PATCH("/:id", middleware.RequirePermission(rbac.PermMembersManage), memberHandler.UpdateMember)
	}

	flags := scoped.Group("/feature-flags", audit(models.EntityFeatureFlag))
	{
		flags.GET("", flagHandler.ListFlags)
		flags.PUT("/:key", middleware.RequirePermission(rbac.PermFlagsManage), flagHandler.SetOrganizationFlag)
	}

	scoped.GET("/audit-logs", middleware.RequirePermission(rbac.PermAuditRead), auditHandler.ListLogs)

	alerts := scoped.Group("/alert-configs", middleware.RequirePermission(rbac.PermAlertsManage), audit(models.EntityAuditAlertConfig))
	{
		alerts.GET("", auditHandler.ListAlertConfigs)
		alerts.GET("/:id", auditHandler.GetAlertConfig)
		alerts.POST("", auditHandler.CreateAlertConfig)
		alerts.PUT("/:id", auditHandler.UpdateAlertConfig)
		alerts.DELETE("/:id", auditHandler.DeleteAlertConfig)
	}

	notifications := scoped.Group("/notifications", middleware.RequirePermission(rbac.PermNotificationsRead))
	{
		notifications.GET("", notificationHandler.ListNotifications)
		notifications.POST("/:id/read", notificationHandler.MarkNotificationRead)
	}

	registerCRUD(scoped, "objectives", models.EntityObjective, NewObjectiveHandler(svc.Objectives), audit)
	registerCRUD(scoped, "rocks", models.EntityRock, NewRockHandler(svc.Rocks, svc.Objectives), audit)
	registerCRUD(scoped, "sprints", models.EntitySprint, NewSprintHandler(svc.Sprints), audit)
	// Selecting the current sprint changes the organization, not the sprint.
	scoped.PUT("/sprints/:id/current", audit(models.EntityOrganization), middleware.RequirePermission(rbac.PermSprintsUpdate), orgHandler.SetCurrentSprint)
	registerCRUD(scoped, "stories", models.EntityStory, NewStoryHandler(svc.Stories, svc.Rocks, svc.Sprints), audit)
	// Generated tasks are audited as task creations, one entry per task.
	scoped.POST("/stories/:id/generate-tasks", audit(models.EntityTask), middleware.RequirePermission(rbac.PermTasksCreate), storyTaskHandler.GenerateTasks)
	registerCRUD(scoped, "tasks", models.EntityTask, NewTaskHandler(svc.Tasks, svc.Stories), audit)

	return r
}

// registerCRUD mounts the five CRUD routes of resource, each behind its
// resource:action permission.
func registerCRUD(parent *gin.RouterGroup, resource, entityType string, h crudHandler, audit func(string) gin.HandlerFunc) *gin.RouterGroup {
	perm := func(action string) gin.HandlerFunc {
		return middleware.RequirePermission(rbac.Permission(resource + ":" + action))
	}

	group := parent.Group("/"+resource, audit(entityType))
	group.GET("", perm("read"), h.List)
	group.GET("/:id", perm("read"), h.Get)
	group.POST("", perm("create"), h.Create)
	group.PATCH("/:id", perm("update"), h.Update)
	group.DELETE("/:id", perm("delete"), h.Delete)
	return group
}
