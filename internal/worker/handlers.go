package worker

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/annpale/discovery/internal/history"
	"github.com/annpale/discovery/internal/personalize"
	"github.com/annpale/discovery/pkg/models"
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// decodeJSON decodes a request body, rejecting unknown garbage early.
func decodeJSON(r *http.Request, out interface{}) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func userID(r *http.Request) string {
	return models.NormalizeUserID(chi.URLParam(r, "userID"))
}

// handleHealth handles health check requests.
// Returns 200 OK immediately (even during init) so probes connect quickly.
// Use /api/ready for the full readiness check.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	} else if err := s.GetInitError(); err != nil {
		status = "error"
	}
	writeJSON(w, map[string]interface{}{
		"status":  status,
		"version": s.version,
	})
}

// handleReady returns 200 only when storage initialization is complete.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.GetInitError(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !s.ready.Load() {
		http.Error(w, "service initializing", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

// handleVersion returns the worker version for version checking.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version": s.version,
	})
}

// handleStats returns service-wide operational statistics.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.GetRequestStats()
	writeJSON(w, map[string]interface{}{
		"uptime_sec":       time.Since(s.startTime).Seconds(),
		"version":          s.version,
		"backend":          s.config.StorageBackend,
		"history_writes":   stats.HistoryWrites,
		"history_reads":    stats.HistoryReads,
		"ranking_requests": stats.RankingRequests,
		"recommendations":  stats.Recommendations,
		"interactions":     stats.Interactions,
		"privacy_updates":  stats.PrivacyUpdates,
		"retention":        s.retention.Stats(),
		"ranking_cache":    s.personalize.CacheStats(),
		"ranking_metrics":  s.personalize.Metrics().GetStats(),
	})
}

// =============================================================================
// Search history
// =============================================================================

// handleGetHistory returns the user's search history, most recent first.
func (s *Service) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	s.recordRequestStat(&s.requestStats.HistoryReads)

	entries, err := s.history.History(r.Context(), userID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleAddHistory records one search. When privacy settings suppress
// collection the request still succeeds but nothing is stored. After a
// recorded search the user's personalization profile is re-learned from
// the full history, unless personalization is disabled.
func (s *Service) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	s.recordRequestStat(&s.requestStats.HistoryWrites)
	uid := userID(r)

	var entry models.SearchHistoryEntry
	if err := decodeJSON(r, &entry); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored, err := s.history.AddEntry(r.Context(), uid, entry)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if stored == nil {
		writeJSON(w, map[string]interface{}{"recorded": false})
		return
	}

	settings, err := s.history.PrivacySettings(r.Context(), uid)
	if err == nil && settings.PersonalizeResults {
		entries, histErr := s.history.History(r.Context(), uid)
		if histErr == nil {
			if _, learnErr := s.personalize.Profiles().Learn(r.Context(), uid, entries); learnErr != nil {
				log.Warn().Err(learnErr).Str("user", uid).Msg("Profile learning failed")
			}
		}
	}

	writeJSON(w, map[string]interface{}{
		"recorded": true,
		"entry":    stored,
	})
}

// handleClearHistory removes the user's entire search history.
func (s *Service) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.ClearHistory(r.Context(), userID(r)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"cleared": true})
}

// handleDeleteHistoryEntry removes one history entry by id.
func (s *Service) handleDeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	if err := s.history.DeleteEntry(r.Context(), userID(r), entryID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

// handleExportHistory returns the downloadable bundle of the user's data.
func (s *Service) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	s.recordRequestStat(&s.requestStats.HistoryReads)

	export, err := s.history.Export(r.Context(), userID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="annpale-search-data.json"`)
	writeJSON(w, export)
}

// =============================================================================
// Saved searches and alerts
// =============================================================================

func (s *Service) handleGetSavedSearches(w http.ResponseWriter, r *http.Request) {
	searches, err := s.history.SavedSearches(r.Context(), userID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"saved_searches": searches,
		"count":          len(searches),
	})
}

// saveSearchRequest is the payload for creating a saved search.
type saveSearchRequest struct {
	Name         string                    `json:"name"`
	Entry        models.SearchHistoryEntry `json:"entry"`
	EnableAlerts bool                      `json:"enable_alerts"`
}

func (s *Service) handleSaveSearch(w http.ResponseWriter, r *http.Request) {
	var req saveSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := s.history.SaveSearch(r.Context(), userID(r), req.Entry, req.Name, req.EnableAlerts)
	if err != nil {
		if errors.Is(err, history.ErrEmptyName) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, saved)
}

func (s *Service) handleDeleteSavedSearch(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "searchID")
	if err := s.history.DeleteSavedSearch(r.Context(), userID(r), searchID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

func (s *Service) handleUseSavedSearch(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "searchID")
	saved, err := s.history.UseSavedSearch(r.Context(), userID(r), searchID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, saved)
}

func (s *Service) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.history.Alerts(r.Context(), userID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// =============================================================================
// Privacy
// =============================================================================

func (s *Service) handleGetPrivacy(w http.ResponseWriter, r *http.Request) {
	settings, err := s.history.PrivacySettings(r.Context(), userID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settings)
}

func (s *Service) handleUpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	s.recordRequestStat(&s.requestStats.PrivacyUpdates)

	var patch models.PrivacySettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := s.history.UpdatePrivacySettings(r.Context(), userID(r), patch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settings)
}

// =============================================================================
// Personalization
// =============================================================================

func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.personalize.Profiles().GetOrInit(r.Context(), userID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, profile)
}

func (s *Service) handleProfileEffectiveness(w http.ResponseWriter, r *http.Request) {
	profile, err := s.personalize.Profiles().GetOrInit(r.Context(), userID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]float64{
		"effectiveness": personalize.EffectivenessScore(profile),
	})
}

// candidatesRequest carries a candidate slate from the search backend.
type candidatesRequest struct {
	Creators []models.Creator `json:"creators"`
}

// handlePersonalize re-ranks the candidate slate against the user's
// profile. When personalization is disabled by privacy settings the slate
// comes back in its original order with zero scores.
func (s *Service) handlePersonalize(w http.ResponseWriter, r *http.Request) {
	s.recordRequestStat(&s.requestStats.RankingRequests)
	uid := userID(r)

	var req candidatesRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := s.history.PrivacySettings(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !settings.PersonalizeResults {
		passthrough := make([]models.ScoredCreator, 0, len(req.Creators))
		for _, c := range req.Creators {
			passthrough = append(passthrough, models.ScoredCreator{Creator: c})
		}
		writeJSON(w, map[string]interface{}{
			"results":      passthrough,
			"personalized": false,
		})
		return
	}

	scored, err := s.personalize.Rank(r.Context(), uid, req.Creators)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"results":      scored,
		"personalized": true,
	})
}

// handleRecommendations builds recommendation buckets from the candidate
// slate and the user's profile.
func (s *Service) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	s.recordRequestStat(&s.requestStats.Recommendations)
	uid := userID(r)

	var req candidatesRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := s.history.PrivacySettings(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !settings.PersonalizeResults {
		writeJSON(w, map[string]interface{}{
			"recommendations": []models.PersonalizedRecommendation{},
			"personalized":    false,
		})
		return
	}

	recs, err := s.personalize.Recommend(r.Context(), uid, req.Creators)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []models.PersonalizedRecommendation{}
	}
	writeJSON(w, map[string]interface{}{
		"recommendations": recs,
		"personalized":    true,
	})
}

// interactionRequest is the payload for tracking an item interaction.
type interactionRequest struct {
	CreatorID string                 `json:"creator_id"`
	Type      models.InteractionType `json:"type"`
	Price     float64                `json:"price"`
	Duration  float64                `json:"duration"`
}

func (s *Service) handleTrackInteraction(w http.ResponseWriter, r *http.Request) {
	s.recordRequestStat(&s.requestStats.Interactions)
	uid := userID(r)

	var req interactionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.CreatorID == "" {
		http.Error(w, "creator_id is required", http.StatusBadRequest)
		return
	}
	if !req.Type.Valid() {
		http.Error(w, "invalid interaction type", http.StatusBadRequest)
		return
	}

	profile, err := s.personalize.Profiles().TrackInteraction(
		r.Context(), uid, req.CreatorID, req.Type, req.Price, req.Duration)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"tracked": true,
		"profile": profile,
	})
}
