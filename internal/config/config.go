package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
)

type Config struct {
	ServerAddr    string
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	RedisHost     string
	RedisPort     string
	SessionSecret string
	GinMode       string
	LogLevel      string
	OpenAIAPIKey  string

	// SuperAdminEmails bootstraps super-admin accounts before any are stored
	// in the database.
	SuperAdminEmails   []string
	CORSAllowedOrigins []string

	AlertCacheTTL           time.Duration
	AlertCooldownBackend    string
	AlertCooldownMaxEntries int
	AlertCooldownMaxAge     time.Duration
	WebhookTimeout          time.Duration

	AuditRetentionDays     int
	AuditRetentionSchedule string
}

// IsDevelopment reports whether internal error details may be exposed.
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// RedisAddr returns host:port for the Redis server.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// IsBootstrapSuperAdmin reports whether email is listed in SUPER_ADMIN_EMAILS.
func (c *Config) IsBootstrapSuperAdmin(email string) bool {
	for _, e := range c.SuperAdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func Load() *Config {
	v := viper.New()

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "rocks")
	v.SetDefault("DB_PASSWORD", "rockspassword")
	v.SetDefault("DB_NAME", "rocks_tracker")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("SESSION_SECRET", "default-secret-key-change-me")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("SUPER_ADMIN_EMAILS", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("ALERT_CACHE_TTL", constants.DefaultAlertCacheTTL)
	v.SetDefault("ALERT_COOLDOWN_BACKEND", "memory")
	v.SetDefault("ALERT_COOLDOWN_MAX_ENTRIES", constants.DefaultCooldownMaxEntries)
	v.SetDefault("ALERT_COOLDOWN_MAX_AGE", constants.DefaultCooldownMaxAge)
	v.SetDefault("WEBHOOK_TIMEOUT", constants.DefaultWebhookTimeout)
	v.SetDefault("AUDIT_RETENTION_DAYS", 365)
	v.SetDefault("AUDIT_RETENTION_SCHEDULE", "30 3 * * *")

	// Optional config.yaml next to the binary; env vars win.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	return &Config{
		ServerAddr:              v.GetString("SERVER_ADDR"),
		DBDriver:                v.GetString("DB_DRIVER"),
		DBHost:                  v.GetString("DB_HOST"),
		DBPort:                  v.GetString("DB_PORT"),
		DBUser:                  v.GetString("DB_USER"),
		DBPassword:              v.GetString("DB_PASSWORD"),
		DBName:                  v.GetString("DB_NAME"),
		RedisHost:               v.GetString("REDIS_HOST"),
		RedisPort:               v.GetString("REDIS_PORT"),
		SessionSecret:           v.GetString("SESSION_SECRET"),
		GinMode:                 v.GetString("GIN_MODE"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		OpenAIAPIKey:            v.GetString("OPENAI_API_KEY"),
		SuperAdminEmails:        splitList(v.GetString("SUPER_ADMIN_EMAILS")),
		CORSAllowedOrigins:      splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		AlertCacheTTL:           v.GetDuration("ALERT_CACHE_TTL"),
		AlertCooldownBackend:    v.GetString("ALERT_COOLDOWN_BACKEND"),
		AlertCooldownMaxEntries: v.GetInt("ALERT_COOLDOWN_MAX_ENTRIES"),
		AlertCooldownMaxAge:     v.GetDuration("ALERT_COOLDOWN_MAX_AGE"),
		WebhookTimeout:          v.GetDuration("WEBHOOK_TIMEOUT"),
		AuditRetentionDays:      v.GetInt("AUDIT_RETENTION_DAYS"),
		AuditRetentionSchedule:  v.GetString("AUDIT_RETENTION_SCHEDULE"),
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
