package personalize

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/annpale/discovery/pkg/models"
)

const (
	defaultCacheTTL     = 30 * time.Second // short TTL, profiles move fast
	defaultCacheMaxSize = 200

	cacheEvictionPercent   = 10 // evict 10% when the cache is full
	cacheEvictionThreshold = 80 // start the expiry scan at 80% capacity

	cacheCleanupInterval = time.Minute
)

// Metrics tracks ranking performance statistics.
type Metrics struct {
	TotalRankings     int64
	TotalLatencyNs    int64
	CacheHits         int64
	CoalescedRequests int64
}

// GetStats returns the current ranking statistics.
func (m *Metrics) GetStats() map[string]any {
	total := atomic.LoadInt64(&m.TotalRankings)
	latency := atomic.LoadInt64(&m.TotalLatencyNs)

	avgLatencyMs := float64(0)
	if total > 0 {
		avgLatencyMs = float64(latency) / float64(total) / 1e6
	}

	return map[string]any{
		"total_rankings":     total,
		"cache_hits":         atomic.LoadInt64(&m.CacheHits),
		"coalesced_requests": atomic.LoadInt64(&m.CoalescedRequests),
		"avg_latency_ms":     avgLatencyMs,
	}
}

// cachedRanking stores a ranked result set with expiry.
type cachedRanking struct {
	results   []models.ScoredCreator
	expiresAt time.Time
}

// Manager combines the profile store and the calculator behind a cached,
// request-coalescing ranking surface.
type Manager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	profiles  *ProfileStore
	calc      *Calculator
	metrics   *Metrics
	log       zerolog.Logger
	rankGroup singleflight.Group

	resultCache   map[string]*cachedRanking
	resultCacheMu sync.RWMutex
	cacheTTL      time.Duration
	cacheMaxSize  int
}

// Option configures a Manager.
type Option func(*Manager)

// WithCacheTTL overrides the ranking cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.cacheTTL = ttl
		}
	}
}

// WithCacheMaxSize overrides the ranking cache capacity.
func WithCacheMaxSize(size int) Option {
	return func(m *Manager) {
		if size > 0 {
			m.cacheMaxSize = size
		}
	}
}

// NewManager creates a ranking manager over the given profile store.
func NewManager(profiles *ProfileStore, calc *Calculator, log zerolog.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		ctx:          ctx,
		cancel:       cancel,
		profiles:     profiles,
		calc:         calc,
		metrics:      &Metrics{},
		log:          log.With().Str("component", "personalize").Logger(),
		resultCache:  make(map[string]*cachedRanking),
		cacheTTL:     defaultCacheTTL,
		cacheMaxSize: defaultCacheMaxSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanupCacheLoop()
	return m
}

// Close stops the background cache cleanup goroutine.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Rank scores the candidates against the user's persisted profile and
// returns them in descending score order. Identical concurrent requests
// are coalesced and recent results are served from cache.
func (m *Manager) Rank(ctx context.Context, userID string, candidates []models.Creator) ([]models.ScoredCreator, error) {
	start := time.Now()
	defer func() {
		atomic.AddInt64(&m.metrics.TotalRankings, 1)
		atomic.AddInt64(&m.metrics.TotalLatencyNs, time.Since(start).Nanoseconds())
	}()

	profile, err := m.profiles.GetOrInit(ctx, userID)
	if err != nil {
		return nil, err
	}

	cacheKey := m.getCacheKey(profile, candidates)
	if cached, ok := m.getFromCache(cacheKey); ok {
		return cached, nil
	}

	result, err, shared := m.rankGroup.Do(cacheKey, func() (any, error) {
		return m.calc.PersonalizeResults(candidates, profile), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		atomic.AddInt64(&m.metrics.CoalescedRequests, 1)
	}

	scored := result.([]models.ScoredCreator)
	m.putInCache(cacheKey, scored)
	return scored, nil
}

// Recommend builds recommendation buckets for the user from the candidate
// slate. Bucket generation is cheap relative to ranking so it bypasses
// the cache.
func (m *Manager) Recommend(ctx context.Context, userID string, candidates []models.Creator) ([]models.PersonalizedRecommendation, error) {
	profile, err := m.profiles.GetOrInit(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.calc.GenerateRecommendations(candidates, profile), nil
}

// Profiles exposes the underlying profile store.
func (m *Manager) Profiles() *ProfileStore {
	return m.profiles
}

// Metrics returns the ranking metrics for monitoring.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// CacheStats returns current cache statistics.
func (m *Manager) CacheStats() map[string]any {
	m.resultCacheMu.RLock()
	size := len(m.resultCache)
	m.resultCacheMu.RUnlock()

	return map[string]any{
		"size":     size,
		"max_size": m.cacheMaxSize,
		"ttl_sec":  m.cacheTTL.Seconds(),
	}
}

// ClearCache drops every cached ranking. Called after profile mutations.
func (m *Manager) ClearCache() {
	m.resultCacheMu.Lock()
	m.resultCache = make(map[string]*cachedRanking)
	m.resultCacheMu.Unlock()
}

// getCacheKey hashes the user, the profile revision, and the candidate
// slate. Including LastUpdated means any profile mutation naturally
// invalidates prior rankings.
func (m *Manager) getCacheKey(profile *models.UserProfile, candidates []models.Creator) string {
	h := fnv.New64a()
	h.Write([]byte(profile.UserID))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(profile.LastUpdated.UnixNano(), 10)))
	for i := range candidates {
		h.Write([]byte{'|'})
		h.Write([]byte(candidates[i].ID))
	}
	return strconv.FormatUint(h.Sum64(), 36)
}

func (m *Manager) getFromCache(key string) ([]models.ScoredCreator, bool) {
	m.resultCacheMu.RLock()
	defer m.resultCacheMu.RUnlock()

	if cached, ok := m.resultCache[key]; ok {
		if time.Now().Before(cached.expiresAt) {
			atomic.AddInt64(&m.metrics.CacheHits, 1)
			return cached.results, true
		}
	}
	return nil, false
}

func (m *Manager) putInCache(key string, results []models.ScoredCreator) {
	m.resultCacheMu.Lock()
	defer m.resultCacheMu.Unlock()

	now := time.Now()
	size := len(m.resultCache)

	// Scan for expired entries only near capacity (amortized cleanup).
	if size >= (m.cacheMaxSize*cacheEvictionThreshold)/100 {
		for k, v := range m.resultCache {
			if now.After(v.expiresAt) {
				delete(m.resultCache, k)
			}
		}
		size = len(m.resultCache)
	}

	// Random-order map iteration doubles as cheap eviction when still full.
	if size >= m.cacheMaxSize {
		evictCount := max(m.cacheMaxSize*cacheEvictionPercent/100, 1)
		evicted := 0
		for k := range m.resultCache {
			delete(m.resultCache, k)
			evicted++
			if evicted >= evictCount {
				break
			}
		}
	}

	m.resultCache[key] = &cachedRanking{
		results:   results,
		expiresAt: now.Add(m.cacheTTL),
	}
}

// cleanupCacheLoop periodically removes expired cache entries.
func (m *Manager) cleanupCacheLoop() {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.resultCacheMu.Lock()
			now := time.Now()
			for k, v := range m.resultCache {
				if now.After(v.expiresAt) {
					delete(m.resultCache, k)
				}
			}
			m.resultCacheMu.Unlock()
		}
	}
}
