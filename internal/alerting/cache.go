// Package alerting evaluates audit logs against per-organization alert rules
// and dispatches the matches.
package alerting

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
)

// Clock returns the current time.
type Clock func() time.Time

// ConfigLoader loads the active alert configs of an organization.
type ConfigLoader interface {
	ListActive(ctx context.Context, organizationID uint64) ([]models.AuditAlertConfig, error)
}

type cacheEntry struct {
	configs  []models.AuditAlertConfig
	loadedAt time.Time
}

// ConfigCache caches active alert configs per organization. Each entry
// expires ttl after it was loaded; staleness is tracked per organization.
// Invalidate drops an entry immediately. The cache lives for the whole
// process and is never persisted.
type ConfigCache struct {
	loader  ConfigLoader
	ttl     time.Duration
	now     Clock
	entries *lru.Cache[uint64, cacheEntry]
	metrics *observability.Metrics
}

// NewConfigCache creates a cache holding up to size organizations.
func NewConfigCache(loader ConfigLoader, ttl time.Duration, size int, now Clock, metrics *observability.Metrics) (*ConfigCache, error) {
	entries, err := lru.New[uint64, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert config cache: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &ConfigCache{
		loader:  loader,
		ttl:     ttl,
		now:     now,
		entries: entries,
		metrics: metrics,
	}, nil
}

// Get returns the active configs of the organization, loading them when the
// cached entry is missing or older than the TTL.
func (c *ConfigCache) Get(ctx context.Context, organizationID uint64) ([]models.AuditAlertConfig, error) {
	if entry, ok := c.entries.Get(organizationID); ok && c.now().Sub(entry.loadedAt) < c.ttl {
		c.metrics.AlertConfigCacheHits.Inc()
		return entry.configs, nil
	}
	c.metrics.AlertConfigCacheMiss.Inc()

	configs, err := c.loader.ListActive(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert configs: %w", err)
	}
	c.entries.Add(organizationID, cacheEntry{configs: configs, loadedAt: c.now()})
	return configs, nil
}

// Invalidate drops the cached configs of the organization.
func (c *ConfigCache) Invalidate(organizationID uint64) {
	c.entries.Remove(organizationID)
}
