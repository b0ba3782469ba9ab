// Package history maintains the privacy-governed, size-bounded log of
// search events and user-named saved searches.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/annpale/discovery/internal/kv"
	"github.com/annpale/discovery/internal/privacy"
	"github.com/annpale/discovery/pkg/models"
)

// Persisted key prefixes; each user's state lives under its own key.
const (
	historyKeyPrefix = "search-history-"
	savedKeyPrefix   = "saved-searches-"
	privacyKeyPrefix = "privacy-settings-"
	alertsKeyPrefix  = "search-alerts-"
)

// ErrEmptyName is returned when saving a search without a name.
var ErrEmptyName = errors.New("history: saved search name is empty")

// ErrNotFound is returned by UseSavedSearch for an unknown id.
var ErrNotFound = errors.New("history: saved search not found")

// Manager owns the per-user history, saved-search, and privacy-settings
// lifecycles. All mutating operations persist before returning, so the
// persisted and in-memory views never diverge.
type Manager struct {
	store      kv.Store
	log        zerolog.Logger
	maxEntries int
	now        func() time.Time

	// Serializes read-modify-write cycles. The persisted layout assumes a
	// single writer per process; concurrent processes are last-write-wins.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxEntries overrides the per-user history cap.
func WithMaxEntries(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a history manager over the given store.
func NewManager(store kv.Store, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		log:        log.With().Str("component", "history").Logger(),
		maxEntries: 100,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PrivacySettings returns the user's privacy policy, falling back to
// defaults when none has been persisted.
func (m *Manager) PrivacySettings(ctx context.Context, userID string) (models.PrivacySettings, error) {
	userID = models.NormalizeUserID(userID)

	var settings models.PrivacySettings
	found, err := m.loadJSON(ctx, privacyKeyPrefix+userID, &settings)
	if err != nil {
		return models.PrivacySettings{}, err
	}
	if !found {
		return models.DefaultPrivacySettings(), nil
	}
	return settings, nil
}

// UpdatePrivacySettings merges the patch into the user's current settings
// and persists the result. Toggling incognito on is a pure flag flip; it
// never deletes existing history.
func (m *Manager) UpdatePrivacySettings(ctx context.Context, userID string, patch models.PrivacySettingsPatch) (models.PrivacySettings, error) {
	userID = models.NormalizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	settings, err := m.PrivacySettings(ctx, userID)
	if err != nil {
		return models.PrivacySettings{}, err
	}

	settings = patch.Apply(settings)
	if err := m.saveJSON(ctx, privacyKeyPrefix+userID, settings); err != nil {
		return models.PrivacySettings{}, err
	}

	m.log.Info().Str("user", userID).
		Bool("incognito", settings.IncognitoMode).
		Str("retention", string(settings.DataRetention)).
		Msg("Privacy settings updated")
	return settings, nil
}

// AddEntry records a search. Under incognito mode or with history saving
// disabled this is a no-op and returns (nil, nil). The recorded entry gets
// a fresh id and timestamp; queries are scrubbed of personal data first.
func (m *Manager) AddEntry(ctx context.Context, userID string, entry models.SearchHistoryEntry) (*models.SearchHistoryEntry, error) {
	userID = models.NormalizeUserID(userID)

	settings, err := m.PrivacySettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings.Suppressed() {
		return nil, nil
	}

	entry.ID = uuid.NewString()
	entry.Timestamp = m.now()
	entry.Query = privacy.ScrubQuery(entry.Query)
	if entry.ResultCount < 0 {
		entry.ResultCount = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Most-recent-first, capped.
	entries = append([]models.SearchHistoryEntry{entry}, entries...)
	if len(entries) > m.maxEntries {
		entries = entries[:m.maxEntries]
	}

	if err := m.saveJSON(ctx, historyKeyPrefix+userID, entries); err != nil {
		return nil, err
	}
	return &entry, nil
}

// History returns the user's recorded searches, most recent first. Corrupt
// persisted state is treated as no prior state.
func (m *Manager) History(ctx context.Context, userID string) ([]models.SearchHistoryEntry, error) {
	userID = models.NormalizeUserID(userID)

	var entries []models.SearchHistoryEntry
	if _, err := m.loadJSON(ctx, historyKeyPrefix+userID, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteEntry removes a single entry. Deleting an unknown id is a no-op.
func (m *Manager) DeleteEntry(ctx context.Context, userID, entryID string) error {
	userID = models.NormalizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.History(ctx, userID)
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != entryID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return m.saveJSON(ctx, historyKeyPrefix+userID, kept)
}

// ClearHistory empties the log and removes the persisted state entirely.
func (m *Manager) ClearHistory(ctx context.Context, userID string) error {
	userID = models.NormalizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, historyKeyPrefix+userID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	m.log.Info().Str("user", userID).Msg("Search history cleared")
	return nil
}

// SavedSearches returns the user's saved searches, most recent first.
func (m *Manager) SavedSearches(ctx context.Context, userID string) ([]models.SavedSearch, error) {
	userID = models.NormalizeUserID(userID)

	var saved []models.SavedSearch
	if _, err := m.loadJSON(ctx, savedKeyPrefix+userID, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveSearch creates a named saved search from a history entry's query and
// filters. An empty name is rejected with ErrEmptyName. With enableAlerts
// set, a daily email alert is created alongside.
func (m *Manager) SaveSearch(ctx context.Context, userID string, entry models.SearchHistoryEntry, name string, enableAlerts bool) (*models.SavedSearch, error) {
	userID = models.NormalizeUserID(userID)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	saved, err := m.SavedSearches(ctx, userID)
	if err != nil {
		return nil, err
	}

	search := models.SavedSearch{
		ID:        uuid.NewString(),
		Name:      name,
		Query:     entry.Query,
		Filters:   entry.Filters,
		CreatedAt: m.now(),
		Alerts:    enableAlerts,
	}
	if enableAlerts {
		search.AlertFrequency = models.AlertDaily
	}

	saved = append([]models.SavedSearch{search}, saved...)
	if err := m.saveJSON(ctx, savedKeyPrefix+userID, saved); err != nil {
		return nil, err
	}

	if enableAlerts {
		if err := m.createAlert(ctx, userID, search.ID); err != nil {
			return nil, err
		}
	}
	return &search, nil
}

// DeleteSavedSearch removes the saved search and cascade-deletes any
// alerts referencing it. Unknown ids are a no-op.
func (m *Manager) DeleteSavedSearch(ctx context.Context, userID, searchID string) error {
	userID = models.NormalizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	saved, err := m.SavedSearches(ctx, userID)
	if err != nil {
		return err
	}

	kept := saved[:0]
	for _, s := range saved {
		if s.ID != searchID {
			kept = append(kept, s)
		}
	}
	if len(kept) != len(saved) {
		if err := m.saveJSON(ctx, savedKeyPrefix+userID, kept); err != nil {
			return err
		}
	}

	alerts, err := m.Alerts(ctx, userID)
	if err != nil {
		return err
	}
	keptAlerts := alerts[:0]
	for _, a := range alerts {
		if a.SavedSearchID != searchID {
			keptAlerts = append(keptAlerts, a)
		}
	}
	if len(keptAlerts) != len(alerts) {
		return m.saveJSON(ctx, alertsKeyPrefix+userID, keptAlerts)
	}
	return nil
}

// UseSavedSearch marks a saved search as reused (useCount, lastUsed) and
// returns the updated search so the caller can execute its query and
// filters.
func (m *Manager) UseSavedSearch(ctx context.Context, userID, searchID string) (*models.SavedSearch, error) {
	userID = models.NormalizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	saved, err := m.SavedSearches(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range saved {
		if saved[i].ID != searchID {
			continue
		}
		saved[i].UseCount++
		saved[i].LastUsed = m.now()
		if err := m.saveJSON(ctx, savedKeyPrefix+userID, saved); err != nil {
			return nil, err
		}
		result := saved[i]
		return &result, nil
	}
	return nil, ErrNotFound
}

// Alerts returns the user's active search alerts.
func (m *Manager) Alerts(ctx context.Context, userID string) ([]models.SearchAlert, error) {
	userID = models.NormalizeUserID(userID)

	var alerts []models.SearchAlert
	if _, err := m.loadJSON(ctx, alertsKeyPrefix+userID, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (m *Manager) createAlert(ctx context.Context, userID, savedSearchID string) error {
	alerts, err := m.Alerts(ctx, userID)
	if err != nil {
		return err
	}
	alerts = append(alerts, models.SearchAlert{
		ID:            uuid.NewString(),
		SavedSearchID: savedSearchID,
		Frequency:     models.AlertDaily,
		Channel:       models.ChannelEmail,
		CreatedAt:     m.now(),
	})
	return m.saveJSON(ctx, alertsKeyPrefix+userID, alerts)
}

// Export produces an immutable snapshot bundle of the user's history,
// saved searches, and privacy settings. Pure read; no side effects.
func (m *Manager) Export(ctx context.Context, userID string) (*models.HistoryExport, error) {
	userID = models.NormalizeUserID(userID)

	entries, err := m.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	saved, err := m.SavedSearches(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings, err := m.PrivacySettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.HistoryExport{
		SearchHistory:   entries,
		SavedSearches:   saved,
		PrivacySettings: settings,
		ExportDate:      m.now(),
	}, nil
}

// SweepExpired drops the user's entries older than their retention window
// and persists the filtered list. Returns the number of removed entries.
// Users with an infinite window or with history saving disabled are left
// untouched.
func (m *Manager) SweepExpired(ctx context.Context, userID string, now time.Time) (int, error) {
	userID = models.NormalizeUserID(userID)

	settings, err := m.PrivacySettings(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !settings.SaveHistory {
		return 0, nil
	}
	days, finite := settings.DataRetention.Days()
	if !finite {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -days)

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.History(ctx, userID)
	if err != nil {
		return 0, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := m.saveJSON(ctx, historyKeyPrefix+userID, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// HistoryUserIDs enumerates the users (or anonymous sessions) that
// currently have persisted history.
func (m *Manager) HistoryUserIDs(ctx context.Context) ([]string, error) {
	keys, err := m.store.Keys(ctx, historyKeyPrefix)
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(keys))
	for _, key := range keys {
		users = append(users, strings.TrimPrefix(key, historyKeyPrefix))
	}
	return users, nil
}

// loadJSON reads and decodes the value under key into out. A missing key
// returns (false, nil). Corrupt JSON is logged and treated as no prior
// state, never as a fatal error.
func (m *Manager) loadJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load %q: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		m.log.Warn().Str("key", key).Err(err).Msg("Corrupt persisted state, starting fresh")
		return false, nil
	}
	return true, nil
}

func (m *Manager) saveJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := m.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("persist %q: %w", key, err)
	}
	return nil
}
