package alerting

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownTracker suppresses repeated alerts for the same (config, entity).
// TryAcquire checks the cooldown and, when it has elapsed, marks the pair as
// fired in the same step. It reports whether the caller may dispatch.
type CooldownTracker interface {
	TryAcquire(ctx context.Context, configID uint64, entityID string, cooldown time.Duration) (bool, error)
}

func cooldownKey(configID uint64, entityID string) string {
	if entityID == "" {
		entityID = "none"
	}
	return strconv.FormatUint(configID, 10) + ":" + entityID
}

// MemoryCooldown keeps last-fired times in process memory. Each instance of
// the service has its own view.
type MemoryCooldown struct {
	mu         sync.Mutex
	fired      map[string]time.Time
	now        Clock
	maxEntries int
	maxAge     time.Duration
}

// NewMemoryCooldown creates a tracker that prunes entries older than maxAge
// whenever it holds more than maxEntries.
func NewMemoryCooldown(maxEntries int, maxAge time.Duration, now Clock) *MemoryCooldown {
	if now == nil {
		now = time.Now
	}
	return &MemoryCooldown{
		fired:      make(map[string]time.Time),
		now:        now,
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}
}

func (m *MemoryCooldown) TryAcquire(_ context.Context, configID uint64, entityID string, cooldown time.Duration) (bool, error) {
	key := cooldownKey(configID, entityID)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.fired[key]; ok && now.Sub(last) < cooldown {
		return false, nil
	}
	m.fired[key] = now

	if len(m.fired) > m.maxEntries {
		m.prune(now)
	}
	return true, nil
}

// Len returns the number of tracked pairs.
func (m *MemoryCooldown) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fired)
}

func (m *MemoryCooldown) prune(now time.Time) {
	for key, last := range m.fired {
		if now.Sub(last) > m.maxAge {
			delete(m.fired, key)
		}
	}
}

// RedisCooldown shares cooldowns between instances through Redis keys that
// expire with the cooldown.
type RedisCooldown struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCooldown creates a Redis-backed tracker.
func NewRedisCooldown(client redis.UniversalClient) *RedisCooldown {
	return &RedisCooldown{client: client, prefix: "rocks:alert-cooldown:"}
}

func (r *RedisCooldown) TryAcquire(ctx context.Context, configID uint64, entityID string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, r.prefix+cooldownKey(configID, entityID), time.Now().Unix(), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire alert cooldown: %w", err)
	}
	return ok, nil
}
