package worker

import (
	"context"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/annpale/discovery/internal/config"
	"github.com/annpale/discovery/internal/history"
	"github.com/annpale/discovery/internal/kv"
	"github.com/annpale/discovery/internal/personalize"
	"github.com/annpale/discovery/internal/retention"
)

// testService creates a fully initialized Service over an in-memory store.
func testService(t *testing.T) (*Service, func()) {
	t.Helper()

	cfg := config.Default()
	cfg.StorageBackend = config.BackendMemory

	store := kv.NewMemory()
	historyMgr := history.NewManager(store, zerolog.Nop())
	profiles := personalize.NewProfileStore(store, zerolog.Nop())
	personalizeMgr := personalize.NewManager(profiles, personalize.NewCalculator(nil), zerolog.Nop())
	retentionSvc := retention.NewService(historyMgr, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:     "test-version",
		config:      cfg,
		store:       store,
		history:     historyMgr,
		personalize: personalizeMgr,
		retention:   retentionSvc,
		router:      chi.NewRouter(),
		ctx:         ctx,
		cancel:      cancel,
		startTime:   time.Now(),
		rateLimiter: NewPerClientRateLimiter(apiRateLimit, apiRateBurst),
	}

	svc.setupMiddleware()
	svc.setupRoutes()
	svc.ready.Store(true)

	cleanup := func() {
		cancel()
		personalizeMgr.Close()
		_ = store.Close()
	}

	return svc, cleanup
}
