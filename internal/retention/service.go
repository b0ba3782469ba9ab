// Package retention provides the scheduled history-retention sweep for
// the discovery service.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/annpale/discovery/internal/config"
	"github.com/annpale/discovery/internal/history"
)

// Service periodically drops search-history entries that have outlived
// their user's retention window.
type Service struct {
	log     zerolog.Logger
	history *history.Manager
	config  *config.Config
	now     func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}

	mu              sync.Mutex
	running         bool
	lastRunTime     time.Time
	lastRunDuration time.Duration
	totalRemoved    int64
	totalRuns       int64
}

// NewService creates a new retention sweep service.
func NewService(historyMgr *history.Manager, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		history: historyMgr,
		config:  cfg,
		log:     log.With().Str("component", "retention").Logger(),
		now:     time.Now,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the sweep loop: one run immediately, then one per interval.
// Blocks until the context is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	interval := max(time.Duration(s.config.SweepIntervalHours)*time.Hour, time.Hour)

	s.log.Info().
		Dur("interval", interval).
		Msg("Starting retention sweep scheduler")

	s.runSweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Retention sweep shutting down due to context cancellation")
			return
		case <-s.stopCh:
			s.log.Info().Msg("Retention sweep shutting down due to stop signal")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// Stop signals the service to stop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
}

// Wait waits for the service to finish.
func (s *Service) Wait() {
	<-s.doneCh
}

// RunNow triggers an immediate sweep run.
func (s *Service) RunNow(ctx context.Context) {
	go s.runSweep(ctx)
}

// runSweep executes one sweep across all users with persisted history.
func (s *Service) runSweep(ctx context.Context) {
	start := s.now()

	users, err := s.history.HistoryUserIDs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to enumerate users for retention sweep")
		return
	}

	var removed int
	for _, userID := range users {
		n, err := s.history.SweepExpired(ctx, userID, start)
		if err != nil {
			s.log.Error().Err(err).Str("user", userID).Msg("Failed to sweep user history")
			continue
		}
		removed += n
	}

	s.mu.Lock()
	s.lastRunTime = s.now()
	s.lastRunDuration = time.Since(start)
	s.totalRemoved += int64(removed)
	s.totalRuns++
	s.mu.Unlock()

	s.log.Info().
		Int("users", len(users)).
		Int("entries_removed", removed).
		Dur("duration", time.Since(start)).
		Msg("Retention sweep completed")
}

// Stats returns sweep statistics.
func (s *Service) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"interval_hours":   s.config.SweepIntervalHours,
		"last_run":         s.lastRunTime,
		"last_duration_ms": s.lastRunDuration.Milliseconds(),
		"total_removed":    s.totalRemoved,
		"total_runs":       s.totalRuns,
		"running":          s.running,
	}
}
