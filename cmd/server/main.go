package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/rocks-tracker-api/internal/alerting"
	"github.com/yukikurage/rocks-tracker-api/internal/config"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/database"
	"github.com/yukikurage/rocks-tracker-api/internal/handlers"
	"github.com/yukikurage/rocks-tracker-api/internal/jobs"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := observability.NewLogger(cfg.LogLevel, cfg.GinMode)
	metrics := observability.NewMetrics()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Run migrations
	if err := database.Migrate(db, log); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	// Setup session store with Redis
	store, err := redisStore.NewStore(
		10,              // Redis pool size
		"tcp",           // network type
		cfg.RedisAddr(), // Redis address from config
		"",              // username (empty for default user)
		"",              // password (empty = no password)
		[]byte(cfg.SessionSecret),
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Redis session store")
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   !cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	alertConfigRepo := repository.NewAlertConfigRepository(db)
	sprintRepo := repository.NewEntityRepository[models.Sprint](db)

	// Alert pipeline
	configCache, err := alerting.NewConfigCache(alertConfigRepo, cfg.AlertCacheTTL, constants.DefaultAlertCacheSize, time.Now, metrics)
	if err != nil {
		log.WithError(err).Fatal("Failed to create alert config cache")
	}
	cooldown := newCooldown(cfg, log)
	dispatcher := alerting.NewDispatcher(membershipRepo, notificationRepo, &http.Client{Timeout: cfg.WebhookTimeout}, log, metrics)
	evaluator := alerting.NewEvaluator(configCache, cooldown, dispatcher, log, metrics)

	// Services
	resolver := services.NewOrganizationResolver(orgRepo, membershipRepo)
	flags := services.NewFeatureFlagService(repository.NewFeatureFlagRepository(db))
	teams := services.NewTeamService(teamRepo, membershipRepo)
	memberships := services.NewMembershipResolver(orgRepo, membershipRepo, teamRepo)
	auditService := services.NewAuditService(repository.NewAuditRepository(db), evaluator, log, metrics)

	stories := services.NewWorkItemService[models.Story, *models.Story](repository.NewEntityRepository[models.Story](db), teams, models.EntityStory).
		WithCode("S", func(s *models.Story, code string) { s.Code = code })
	tasks := services.NewWorkItemService[models.Task, *models.Task](repository.NewEntityRepository[models.Task](db), teams, models.EntityTask).
		WithCode("T", func(t *models.Task, code string) { t.Code = code })

	// Initialize AI service
	var generator services.TaskGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = services.NewAIService(cfg.OpenAIAPIKey)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Log:          log,
		Metrics:      metrics,
		SessionStore: store,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		Development:  cfg.IsDevelopment(),
	}, handlers.Services{
		Users:         userRepo,
		Auth:          services.NewAuthService(userRepo, membershipRepo, cfg, log),
		Resolver:      resolver,
		Principals:    services.NewPrincipalService(resolver, memberships, teamRepo, flags, log, metrics),
		Organizations: services.NewOrganizationService(orgRepo, membershipRepo, sprintRepo),
		Teams:         teams,
		Members:       services.NewMemberService(membershipRepo, userRepo, teamRepo),
		Flags:         flags,
		Audit:         auditService,
		AlertConfigs:  services.NewAlertConfigService(alertConfigRepo, configCache),
		Notifications: services.NewNotificationService(notificationRepo),

		Objectives: services.NewWorkItemService[models.Objective, *models.Objective](repository.NewEntityRepository[models.Objective](db), teams, models.EntityObjective),
		Rocks:      services.NewWorkItemService[models.Rock, *models.Rock](repository.NewEntityRepository[models.Rock](db), teams, models.EntityRock),
		Sprints:    services.NewWorkItemService[models.Sprint, *models.Sprint](sprintRepo, teams, models.EntitySprint),
		Stories:    stories,
		Tasks:      tasks,
		StoryTasks: services.NewStoryTaskService(stories, tasks, generator),
	})

	// Audit retention
	scheduler := cron.New()
	retention := jobs.NewRetentionJob(auditService, cfg.AuditRetentionDays, log)
	if _, err := retention.Schedule(scheduler, cfg.AuditRetentionSchedule); err != nil {
		log.WithError(err).Fatal("Failed to schedule audit retention")
	}
	scheduler.Start()

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ServerAddr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}

	// Let a running purge and pending alert evaluations finish.
	<-scheduler.Stop().Done()
	evaluator.Wait()
	log.Info("Server stopped")
}

func newCooldown(cfg *config.Config, log logrus.FieldLogger) alerting.CooldownTracker {
	if cfg.AlertCooldownBackend == "redis" {
		log.WithField("addr", cfg.RedisAddr()).Info("Using Redis alert cooldowns")
		return alerting.NewRedisCooldown(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()}))
	}
	return alerting.NewMemoryCooldown(cfg.AlertCooldownMaxEntries, cfg.AlertCooldownMaxAge, time.Now)
}
