package dashboard

import (
	"log/slog"
	"time"

	"unfinial/internal/cache"
	"unfinial/internal/events"
)

// Registry keeps one Dashboard per session. Idle dashboards expire after
// the TTL and the least recently used are dropped beyond the size limit.
type Registry struct {
	backend   Backend
	publisher events.Publisher
	logger    *slog.Logger
	cache     *cache.LRUCache[*Dashboard]
}

func NewRegistry(backend Backend, publisher events.Publisher, logger *slog.Logger, size int, ttl time.Duration) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		backend:   backend,
		publisher: publisher,
		logger:    logger,
		cache:     cache.NewLRUCache[*Dashboard](size, ttl),
	}
	r.cache.OnEvict(func(sessionID string, _ *Dashboard) {
		logger.Debug("Dashboard dropped", "session_prefix", prefix(sessionID))
	})
	return r
}

// Get returns the session's dashboard and whether it was just created.
func (r *Registry) Get(sessionID string) (*Dashboard, bool) {
	created := false
	d := r.cache.GetOrCreate(sessionID, func() *Dashboard {
		created = true
		return New(r.backend, r.publisher, r.logger)
	})
	return d, created
}

// Remove drops the session's dashboard.
func (r *Registry) Remove(sessionID string) {
	r.cache.Delete(sessionID)
}

// CleanExpired lets a cache.Manager sweep idle dashboards.
func (r *Registry) CleanExpired() int {
	return r.cache.CleanExpired()
}

func (r *Registry) Stats() cache.Stats {
	return r.cache.Stats()
}

func prefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
