// Package worker provides the HTTP worker service for the Ann Pale
// discovery backend.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/annpale/discovery/internal/config"
	"github.com/annpale/discovery/internal/history"
	"github.com/annpale/discovery/internal/kv"
	"github.com/annpale/discovery/internal/kv/postgres"
	"github.com/annpale/discovery/internal/kv/sqlite"
	"github.com/annpale/discovery/internal/personalize"
	"github.com/annpale/discovery/internal/retention"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ReadyPollInterval is how often WaitReady checks initialization status.
	ReadyPollInterval = 50 * time.Millisecond

	// MaxRequestBodyBytes caps incoming request bodies.
	MaxRequestBodyBytes = 1 << 20 // 1 MiB

	// Per-client rate limit for the API surface.
	apiRateLimit = 50.0
	apiRateBurst = 100
)

// RequestStats tracks per-operation request counters.
type RequestStats struct {
	HistoryWrites   int64 // Recorded search entries
	HistoryReads    int64 // History list and export requests
	RankingRequests int64 // Personalized ranking requests
	Recommendations int64 // Recommendation bucket requests
	Interactions    int64 // Tracked item interactions
	PrivacyUpdates  int64 // Privacy settings changes
}

// Service is the main worker service orchestrator.
type Service struct {
	// Version of the worker binary
	version string

	// Configuration
	config *config.Config

	// Storage
	store kv.Store

	// Domain services
	history     *history.Manager
	personalize *personalize.Manager
	retention   *retention.Service

	// HTTP server
	router    *chi.Mux
	server    *http.Server
	startTime time.Time

	// Request statistics
	requestStats RequestStats

	// Per-client rate limiting
	rateLimiter *PerClientRateLimiter

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Initialization state (for deferred init)
	ready     atomic.Bool
	initError error
	initMu    sync.RWMutex
}

// NewService creates a new worker service with deferred initialization.
// The HTTP router comes up immediately with the health endpoint available
// while storage initialization happens in the background.
func NewService(version string) (*Service, error) {
	cfg := config.Get()

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:     version,
		config:      cfg,
		router:      chi.NewRouter(),
		ctx:         ctx,
		cancel:      cancel,
		startTime:   time.Now(),
		rateLimiter: NewPerClientRateLimiter(apiRateLimit, apiRateBurst),
	}

	svc.setupMiddleware()
	svc.setupRoutes()

	go svc.initializeAsync()

	return svc, nil
}

// initializeAsync performs storage initialization in the background.
func (s *Service) initializeAsync() {
	log.Info().Str("backend", s.config.StorageBackend).Msg("Starting async initialization...")

	if err := config.EnsureDataDir(); err != nil {
		s.setInitError(fmt.Errorf("ensure data dir: %w", err))
		return
	}

	store, err := s.openStore()
	if err != nil {
		s.setInitError(err)
		return
	}

	historyMgr := history.NewManager(store, log.Logger,
		history.WithMaxEntries(s.config.HistoryMaxEntries))

	profiles := personalize.NewProfileStore(store, log.Logger)
	personalizeMgr := personalize.NewManager(profiles, personalize.NewCalculator(nil), log.Logger,
		personalize.WithCacheTTL(time.Duration(s.config.CacheTTLSeconds)*time.Second),
		personalize.WithCacheMaxSize(s.config.CacheMaxSize))

	retentionSvc := retention.NewService(historyMgr, s.config, log.Logger)

	s.initMu.Lock()
	s.store = store
	s.history = historyMgr
	s.personalize = personalizeMgr
	s.retention = retentionSvc
	s.initMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		retentionSvc.Start(s.ctx)
	}()

	s.ready.Store(true)
	log.Info().Msg("Async initialization complete - service ready")
}

// openStore selects the storage backend from configuration.
func (s *Service) openStore() (kv.Store, error) {
	switch s.config.StorageBackend {
	case config.BackendPostgres:
		store, err := postgres.NewStore(postgres.Config{
			DSN:      s.config.PostgresDSN,
			MaxConns: s.config.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		return kv.NewMemory(), nil
	default:
		store, err := sqlite.NewStore(sqlite.StoreConfig{
			Path:     s.config.DBPath,
			MaxConns: s.config.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return store, nil
	}
}

// setInitError records an initialization failure.
func (s *Service) setInitError(err error) {
	s.initMu.Lock()
	s.initError = err
	s.initMu.Unlock()
	log.Error().Err(err).Msg("Async initialization failed")
}

// GetInitError returns the initialization error, if any.
func (s *Service) GetInitError() error {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initError
}

// WaitReady blocks until initialization completes or the context expires.
func (s *Service) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(ReadyPollInterval)
	defer ticker.Stop()

	for {
		if s.ready.Load() {
			return nil
		}
		if err := s.GetInitError(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(RequestLogger)
	s.router.Use(SecurityHeaders)
	s.router.Use(MaxBodySize(MaxRequestBodyBytes))
	s.router.Use(RequireJSONContentType)
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	// Health check returns 200 immediately so callers can probe during init.
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)

	// Readiness check returns 200 only when storage is initialized.
	s.router.Get("/api/ready", s.handleReady)

	// Version endpoint for stale worker detection.
	s.router.Get("/api/version", s.handleVersion)

	// Routes that require storage to be ready.
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Use(s.rateLimiter.Middleware)

		r.Get("/api/stats", s.handleStats)

		r.Route("/api/users/{userID}", func(r chi.Router) {
			// Search history
			r.Get("/history", s.handleGetHistory)
			r.Post("/history", s.handleAddHistory)
			r.Delete("/history", s.handleClearHistory)
			r.Delete("/history/{entryID}", s.handleDeleteHistoryEntry)
			r.Get("/history/export", s.handleExportHistory)

			// Saved searches and alerts
			r.Get("/saved-searches", s.handleGetSavedSearches)
			r.Post("/saved-searches", s.handleSaveSearch)
			r.Delete("/saved-searches/{searchID}", s.handleDeleteSavedSearch)
			r.Post("/saved-searches/{searchID}/use", s.handleUseSavedSearch)
			r.Get("/alerts", s.handleGetAlerts)

			// Privacy
			r.Get("/privacy", s.handleGetPrivacy)
			r.Put("/privacy", s.handleUpdatePrivacy)

			// Personalization
			r.Get("/profile", s.handleGetProfile)
			r.Get("/profile/effectiveness", s.handleProfileEffectiveness)
			r.Post("/personalize", s.handlePersonalize)
			r.Post("/recommendations", s.handleRecommendations)
			r.Post("/interactions", s.handleTrackInteraction)
		})
	})
}

// requireReady gates requests on initialization state.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			if err := s.GetInitError(); err != nil {
				http.Error(w, "service initialization failed: "+err.Error(), http.StatusInternalServerError)
				return
			}
			http.Error(w, "service initializing", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server. Storage initialization continues in the
// background; requests that need it return 503 until it completes.
func (s *Service) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
			s.setInitError(err)
		}
	}()

	log.Info().Int("port", s.config.WorkerPort).Str("version", s.version).Msg("Worker service started")
	return nil
}

// Shutdown gracefully stops the service.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	s.initMu.RLock()
	retentionSvc := s.retention
	personalizeMgr := s.personalize
	store := s.store
	s.initMu.RUnlock()

	if retentionSvc != nil {
		retentionSvc.Stop()
		retentionSvc.Wait()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	if personalizeMgr != nil {
		personalizeMgr.Close()
	}

	if store != nil {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Storage close error")
		}
	}

	s.wg.Wait()

	log.Info().Msg("Worker service shutdown complete")
	return nil
}

// recordRequestStat atomically bumps one request counter.
func (s *Service) recordRequestStat(counter *int64) {
	atomic.AddInt64(counter, 1)
}

// GetRequestStats returns a copy of the request stats.
func (s *Service) GetRequestStats() RequestStats {
	return RequestStats{
		HistoryWrites:   atomic.LoadInt64(&s.requestStats.HistoryWrites),
		HistoryReads:    atomic.LoadInt64(&s.requestStats.HistoryReads),
		RankingRequests: atomic.LoadInt64(&s.requestStats.RankingRequests),
		Recommendations: atomic.LoadInt64(&s.requestStats.Recommendations),
		Interactions:    atomic.LoadInt64(&s.requestStats.Interactions),
		PrivacyUpdates:  atomic.LoadInt64(&s.requestStats.PrivacyUpdates),
	}
}
