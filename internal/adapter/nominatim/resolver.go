package nominatim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/seismowatch/quake-ingest/internal/domain"
)

// lookupSpacing is the minimum time between external reverse-geocoding
// calls, per the provider's one-request-per-second usage policy (with
// margin).
const lookupSpacing = 1100 * time.Millisecond

// Resolver resolves an event's coordinates to a place name through a
// bounded cache. Cache keys are coordinates rounded to two decimals, so
// nearby events share one external lookup. Misses wait out the rate limit
// before calling the provider; the resolved name — including the fallback
// to the event's own place label when the lookup fails — is what gets
// cached.
type Resolver struct {
	geocoder domain.Geocoder
	cache    *fifoCache
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewResolver creates a Resolver over a geocoder with the given cache
// capacity and the default lookup spacing.
func NewResolver(geocoder domain.Geocoder, cacheSize int, logger *slog.Logger) *Resolver {
	limiter := rate.NewLimiter(rate.Every(lookupSpacing), 1)
	// Drain the initial token so even the first miss waits out the spacing.
	limiter.Allow()
	return newResolver(geocoder, cacheSize, limiter, logger)
}

func newResolver(geocoder domain.Geocoder, cacheSize int, limiter *rate.Limiter, logger *slog.Logger) *Resolver {
	return &Resolver{
		geocoder: geocoder,
		cache:    newFIFOCache(cacheSize),
		limiter:  limiter,
		logger:   logger,
	}
}

// Resolve returns the place name for the event's coordinates: the cached
// name on a hit, otherwise the rate-limited external lookup with the
// event's source-provided place as fallback. Resolve never fails; the
// worst case is the fallback name.
func (r *Resolver) Resolve(ctx context.Context, event domain.Event) string {
	key := cacheKey(event.Latitude, event.Longitude)
	if name, ok := r.cache.get(key); ok {
		return name
	}

	if err := r.limiter.Wait(ctx); err != nil {
		// Context cancelled while queued; skip the lookup entirely.
		return event.Place
	}

	name := domain.ResolvePlace(ctx, event, r.geocoder, r.logger)
	r.cache.put(key, name)
	return name
}

// CacheSize reports the number of cached place names, for health reporting.
func (r *Resolver) CacheSize() int {
	return r.cache.len()
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// fifoCache is a thread-safe insertion-order-bounded cache: when the bound
// is exceeded, the oldest-inserted entry is evicted. Unlike an LRU, reads
// do not promote entries.
type fifoCache struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]string
	order    []string // insertion order, oldest first
}

func newFIFOCache(capacity int) *fifoCache {
	return &fifoCache{
		capacity: capacity,
		entries:  make(map[string]string),
	}
}

func (c *fifoCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fifoCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = value

	if len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *fifoCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
