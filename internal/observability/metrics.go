package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthorizationDenials *prometheus.CounterVec
	PrincipalFailures    prometheus.Counter
	Provisioned          prometheus.Counter

	// Audit metrics
	AuditLogsRecorded *prometheus.CounterVec
	AuditFailures     prometheus.Counter

	// Alert metrics
	AlertsMatched         *prometheus.CounterVec
	AlertDispatches       *prometheus.CounterVec
	AlertCooldownSkips    prometheus.Counter
	AlertConfigCacheHits  prometheus.Counter
	AlertConfigCacheMiss  prometheus.Counter
	AuditRetentionDeleted prometheus.Counter
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rocks_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rocks_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthorizationDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rocks_authorization_denials_total",
				Help: "Requests rejected by an authorization gate",
			},
			[]string{"code"},
		),
		PrincipalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocks_principal_failures_total",
			Help: "Principal builds that failed and degraded to no principal",
		}),
		Provisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocks_memberships_provisioned_total",
			Help: "Memberships auto-provisioned from legacy or super-admin access",
		}),
		AuditLogsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rocks_audit_logs_recorded_total",
				Help: "Audit log entries persisted",
			},
			[]string{"action", "entity_type"},
		),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocks_audit_failures_total",
			Help: "Audit captures that failed and were discarded",
		}),
		AlertsMatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rocks_alerts_matched_total",
				Help: "Alert configs that matched an audit event",
			},
			[]string{"entity_type"},
		),
		AlertDispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rocks_alert_dispatches_total",
				Help: "Alert channel dispatch attempts",
			},
			[]string{"channel", "result"},
		),
		AlertCooldownSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocks_alert_cooldown_skips_total",
			Help: "Matching alerts suppressed by cooldown",
		}),
		AlertConfigCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocks_alert_config_cache_hits_total",
			Help: "Alert config cache hits",
		}),
		AlertConfigCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocks_alert_config_cache_misses_total",
			Help: "Alert config cache misses",
		}),
		AuditRetentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocks_audit_retention_deleted_total",
			Help: "Audit logs removed by the retention sweep",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthorizationDenials,
		m.PrincipalFailures,
		m.Provisioned,
		m.AuditLogsRecorded,
		m.AuditFailures,
		m.AlertsMatched,
		m.AlertDispatches,
		m.AlertCooldownSkips,
		m.AlertConfigCacheHits,
		m.AlertConfigCacheMiss,
		m.AuditRetentionDeleted,
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
