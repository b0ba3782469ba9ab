// Package models contains domain models for the Ann Pale discovery service.
package models

import (
	"strings"
	"time"
)

// SearchMethod identifies how a search was submitted.
type SearchMethod string

const (
	MethodText    SearchMethod = "text"
	MethodVoice   SearchMethod = "voice"
	MethodImage   SearchMethod = "image"
	MethodGesture SearchMethod = "gesture"
)

// SearchPattern classifies the intent behind a search.
type SearchPattern string

const (
	PatternExploratory   SearchPattern = "exploratory"
	PatternTransactional SearchPattern = "transactional"
	PatternKnownItem     SearchPattern = "known_item"
)

// RetentionPeriod controls how long search history is kept.
type RetentionPeriod string

const (
	Retention7Days   RetentionPeriod = "7days"
	Retention30Days  RetentionPeriod = "30days"
	Retention90Days  RetentionPeriod = "90days"
	Retention1Year   RetentionPeriod = "1year"
	RetentionForever RetentionPeriod = "forever"
)

// Days returns the retention window in days. The second return value is
// false for RetentionForever (no expiry) and for unknown values.
func (r RetentionPeriod) Days() (int, bool) {
	switch r {
	case Retention7Days:
		return 7, true
	case Retention30Days:
		return 30, true
	case Retention90Days:
		return 90, true
	case Retention1Year:
		return 365, true
	default:
		return 0, false
	}
}

// Valid reports whether r is a known retention period.
func (r RetentionPeriod) Valid() bool {
	switch r {
	case Retention7Days, Retention30Days, Retention90Days, Retention1Year, RetentionForever:
		return true
	}
	return false
}

// AlertFrequency controls how often a saved-search alert fires.
type AlertFrequency string

const (
	AlertInstant AlertFrequency = "instant"
	AlertDaily   AlertFrequency = "daily"
	AlertWeekly  AlertFrequency = "weekly"
)

// AlertChannel is the delivery channel for a saved-search alert.
type AlertChannel string

const (
	ChannelEmail AlertChannel = "email"
	ChannelPush  AlertChannel = "push"
)

// SearchFilters is the closed set of filter criteria a search can carry.
// A nil or zero value means the search was unfiltered.
type SearchFilters struct {
	Categories    []string `json:"categories,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	MinPrice      float64  `json:"min_price,omitempty"`
	MaxPrice      float64  `json:"max_price,omitempty"`
	MinRating     float64  `json:"min_rating,omitempty"`
	AvailableOnly bool     `json:"available_only,omitempty"`
}

// IsZero reports whether no filter criteria are set.
func (f *SearchFilters) IsZero() bool {
	if f == nil {
		return true
	}
	return len(f.Categories) == 0 &&
		len(f.Languages) == 0 &&
		f.MinPrice == 0 &&
		f.MaxPrice == 0 &&
		f.MinRating == 0 &&
		!f.AvailableOnly
}

// SearchHistoryEntry is one recorded search. Entries are immutable once
// created; they are only ever deleted, never updated.
type SearchHistoryEntry struct {
	ID             string         `json:"id"`
	Query          string         `json:"query"`
	Timestamp      time.Time      `json:"timestamp"`
	Filters        *SearchFilters `json:"filters,omitempty"`
	ResultCount    int            `json:"result_count"`
	ClickedResults []string       `json:"clicked_results,omitempty"`
	SearchMethod   SearchMethod   `json:"search_method"`
	Language       string         `json:"language"`
	Pattern        SearchPattern  `json:"pattern,omitempty"`
	Intent         string         `json:"intent,omitempty"`
	Duration       float64        `json:"duration"` // seconds spent on results
	Successful     bool           `json:"successful"`
}

// SavedSearch is a named, reusable query created explicitly by the user.
type SavedSearch struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Query          string         `json:"query"`
	Filters        *SearchFilters `json:"filters,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastUsed       time.Time      `json:"last_used"`
	UseCount       int            `json:"use_count"`
	Alerts         bool           `json:"alerts"`
	AlertFrequency AlertFrequency `json:"alert_frequency,omitempty"`
}

// SearchAlert notifies the user about new results for a saved search.
type SearchAlert struct {
	ID            string         `json:"id"`
	SavedSearchID string         `json:"saved_search_id"`
	Frequency     AlertFrequency `json:"frequency"`
	Channel       AlertChannel   `json:"channel"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PrivacySettings is the per-user policy governing history collection.
type PrivacySettings struct {
	SaveHistory        bool            `json:"save_history"`
	PersonalizeResults bool            `json:"personalize_results"`
	ShareAnonymousData bool            `json:"share_anonymous_data"`
	IncognitoMode      bool            `json:"incognito_mode"`
	DataRetention      RetentionPeriod `json:"data_retention"`
}

// DefaultPrivacySettings returns the policy applied to users who have never
// touched their privacy settings.
func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		SaveHistory:        true,
		PersonalizeResults: true,
		ShareAnonymousData: false,
		IncognitoMode:      false,
		DataRetention:      Retention90Days,
	}
}

// Suppressed reports whether new history entries must not be recorded.
func (p PrivacySettings) Suppressed() bool {
	return p.IncognitoMode || !p.SaveHistory
}

// PrivacySettingsPatch is a partial update to PrivacySettings. Nil fields
// are left unchanged by Apply.
type PrivacySettingsPatch struct {
	SaveHistory        *bool            `json:"save_history,omitempty"`
	PersonalizeResults *bool            `json:"personalize_results,omitempty"`
	ShareAnonymousData *bool            `json:"share_anonymous_data,omitempty"`
	IncognitoMode      *bool            `json:"incognito_mode,omitempty"`
	DataRetention      *RetentionPeriod `json:"data_retention,omitempty"`
}

// Apply merges the patch into settings and returns the result.
func (p PrivacySettingsPatch) Apply(settings PrivacySettings) PrivacySettings {
	if p.SaveHistory != nil {
		settings.SaveHistory = *p.SaveHistory
	}
	if p.PersonalizeResults != nil {
		settings.PersonalizeResults = *p.PersonalizeResults
	}
	if p.ShareAnonymousData != nil {
		settings.ShareAnonymousData = *p.ShareAnonymousData
	}
	if p.IncognitoMode != nil {
		settings.IncognitoMode = *p.IncognitoMode
	}
	if p.DataRetention != nil && p.DataRetention.Valid() {
		settings.DataRetention = *p.DataRetention
	}
	return settings
}

// HistoryExport is the downloadable snapshot bundle of a user's data.
type HistoryExport struct {
	SearchHistory   []SearchHistoryEntry `json:"search_history"`
	SavedSearches   []SavedSearch        `json:"saved_searches"`
	PrivacySettings PrivacySettings      `json:"privacy_settings"`
	ExportDate      time.Time            `json:"export_date"`
}

// AnonymousUser is the namespace used when no user id is supplied.
const AnonymousUser = "anonymous"

// NormalizeUserID maps an empty or whitespace-only user id to the
// anonymous namespace.
func NormalizeUserID(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return AnonymousUser
	}
	return userID
}
