package personalize

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/annpale/discovery/internal/kv"
	"github.com/annpale/discovery/pkg/models"
)

// ProfileSuite is a test suite for the ProfileStore and its reducers.
type ProfileSuite struct {
	suite.Suite
	store *kv.Memory
	ps    *ProfileStore
	ctx   context.Context
	now   time.Time
}

func (s *ProfileSuite) SetupTest() {
	s.store = kv.NewMemory()
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ps = NewProfileStore(s.store, zerolog.Nop()).WithClock(func() time.Time { return s.now })
	s.ctx = context.Background()
}

func TestProfileSuite(t *testing.T) {
	suite.Run(t, new(ProfileSuite))
}

func (s *ProfileSuite) entry(lang string, pattern models.SearchPattern, successful bool, filters *models.SearchFilters) models.SearchHistoryEntry {
	return models.SearchHistoryEntry{
		ID:         "e",
		Query:      "comedians",
		Timestamp:  s.now,
		Language:   lang,
		Pattern:    pattern,
		Successful: successful,
		Filters:    filters,
	}
}

// =============================================================================
// GOOD SCENARIOS - Expected normal operations
// =============================================================================

func (s *ProfileSuite) TestGetOrInit_GoodScenarios_CreatesAndPersists() {
	profile, err := s.ps.GetOrInit(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("u1", profile.UserID)
	s.NotNil(profile.Preferences.Categories)

	// A second read returns the persisted snapshot, not a new one.
	_, err = s.store.Get(s.ctx, "user-profile-u1")
	s.NoError(err)
}

func (s *ProfileSuite) TestGetOrInit_GoodScenarios_AnonymousNamespace() {
	profile, err := s.ps.GetOrInit(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(models.AnonymousUser, profile.UserID)
}

func (s *ProfileSuite) TestLearn_GoodScenarios_FoldsSignals() {
	entries := []models.SearchHistoryEntry{
		s.entry("en", models.PatternExploratory, true, nil),
		s.entry("en", models.PatternExploratory, true, &models.SearchFilters{Categories: []string{"Comedy"}}),
		s.entry("fr", models.PatternTransactional, false, nil),
	}

	profile, err := s.ps.Learn(s.ctx, "u1", entries)
	s.Require().NoError(err)

	s.Equal(3, profile.History.TotalSearches)
	s.Equal(2, profile.Behavior.SearchPatterns[models.PatternExploratory])
	s.Equal(1, profile.Behavior.SearchPatterns[models.PatternTransactional])
	s.InDelta(0.2, profile.Preferences.Languages["en"], 0.0001)
	s.InDelta(0.1, profile.Preferences.Languages["fr"], 0.0001)
	// Two successes pull bounce below zero (clamped), one failure adds back.
	s.InDelta(0.01, profile.Learning.BounceRate, 0.0001)
	s.InDelta(0.05, profile.Learning.RefinementRate, 0.0001)
	s.Equal(s.now, profile.LastUpdated)
}

func (s *ProfileSuite) TestLearn_GoodScenarios_RepeatFoldsReinforce() {
	// Re-learning the same history keeps nudging the counters in the same
	// direction while totalSearches stays derived from the list length.
	// That drift is the intended reinforcement behavior.
	entries := []models.SearchHistoryEntry{
		s.entry("en", models.PatternExploratory, true, nil),
	}

	first, err := s.ps.Learn(s.ctx, "u1", entries)
	s.Require().NoError(err)
	second, err := s.ps.Learn(s.ctx, "u1", entries)
	s.Require().NoError(err)

	s.Equal(1, first.History.TotalSearches)
	s.Equal(1, second.History.TotalSearches)
	s.InDelta(0.1, first.Preferences.Languages["en"], 0.0001)
	s.InDelta(0.2, second.Preferences.Languages["en"], 0.0001)
	s.Equal(2, second.Behavior.SearchPatterns[models.PatternExploratory])
}

func (s *ProfileSuite) TestLearn_GoodScenarios_LanguageAffinityClamps() {
	entries := make([]models.SearchHistoryEntry, 15)
	for i := range entries {
		entries[i] = s.entry("ht", models.PatternKnownItem, true, nil)
	}

	profile, err := s.ps.Learn(s.ctx, "u1", entries)
	s.Require().NoError(err)
	s.Equal(1.0, profile.Preferences.Languages["ht"])
}

func (s *ProfileSuite) TestTrackInteraction_GoodScenarios_ViewCounts() {
	_, err := s.ps.TrackInteraction(s.ctx, "u1", "c1", models.InteractionView, 0, 0)
	s.Require().NoError(err)
	profile, err := s.ps.TrackInteraction(s.ctx, "u1", "c1", models.InteractionView, 0, 0)
	s.Require().NoError(err)

	s.Require().Len(profile.History.ViewedCreators, 1)
	s.Equal(2, profile.History.ViewedCreators[0].Count)
	s.Equal(s.now, profile.History.ViewedCreators[0].LastViewed)
}

func (s *ProfileSuite) TestTrackInteraction_GoodScenarios_DwellTimeEMA() {
	_, err := s.ps.TrackInteraction(s.ctx, "u1", "c1", models.InteractionView, 0, 10)
	s.Require().NoError(err)
	profile, err := s.ps.TrackInteraction(s.ctx, "u1", "c1", models.InteractionView, 0, 20)
	s.Require().NoError(err)

	// 10×0.7 + 20×0.3 = 13
	s.InDelta(13, profile.Learning.DwellTimes["c1"], 0.0001)
}

func (s *ProfileSuite) TestTrackInteraction_GoodScenarios_BookingAverage() {
	_, err := s.ps.TrackInteraction(s.ctx, "u1", "c1", models.InteractionBook, 100, 0)
	s.Require().NoError(err)
	_, err = s.ps.TrackInteraction(s.ctx, "u1", "c2", models.InteractionBook, 50, 0)
	s.Require().NoError(err)
	profile, err := s.ps.TrackInteraction(s.ctx, "u1", "c3", models.InteractionBook, 30, 0)
	s.Require().NoError(err)

	s.Equal(3, profile.History.TotalBookings)
	s.Require().Len(profile.History.BookingHistory, 3)
	// Arithmetic mean over every booking, not a decaying average.
	s.InDelta(60, profile.Preferences.PriceRange.Average, 0.0001)
}

func (s *ProfileSuite) TestTrackInteraction_GoodScenarios_FavoriteDeduplicated() {
	_, err := s.ps.TrackInteraction(s.ctx, "u1", "c1", models.InteractionFavorite, 0, 0)
	s.Require().NoError(err)
	profile, err := s.ps.TrackInteraction(s.ctx, "u1", "c1", models.InteractionFavorite, 0, 0)
	s.Require().NoError(err)

	s.Equal([]string{"c1"}, profile.History.FavoriteCreators)
}

func (s *ProfileSuite) TestEffectivenessScore_GoodScenarios_Indicators() {
	profile := models.NewUserProfile("u1")
	// Fresh profile: only the bounce-rate indicator (0 < 0.3) fires.
	s.InDelta(20, EffectivenessScore(profile), 0.0001)

	profile.History.TotalSearches = 5
	profile.Preferences.Categories["Comedy"] = 0.3
	profile.Preferences.Languages["en"] = 0.4
	profile.History.TotalBookings = 1
	s.InDelta(100, EffectivenessScore(profile), 0.0001)

	profile.Learning.BounceRate = 0.5
	s.InDelta(80, EffectivenessScore(profile), 0.0001)
}

// =============================================================================
// BAD SCENARIOS - Error conditions and edge cases
// =============================================================================

func (s *ProfileSuite) TestGetOrInit_BadScenarios_CorruptStateReinitializes() {
	s.Require().NoError(s.store.Set(s.ctx, "user-profile-u1", []byte("{not json")))

	profile, err := s.ps.GetOrInit(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("u1", profile.UserID)
	s.Zero(profile.History.TotalSearches)
}

func (s *ProfileSuite) TestGetOrInit_BadScenarios_RehydratedMapsUsable() {
	// A persisted profile whose empty maps were dropped by omitempty must
	// come back writable.
	s.Require().NoError(s.store.Set(s.ctx, "user-profile-u1",
		[]byte(`{"user_id":"u1","preferences":{},"behavior":{},"history":{},"learning":{}}`)))

	profile, err := s.ps.GetOrInit(s.ctx, "u1")
	s.Require().NoError(err)
	s.NotPanics(func() {
		profile.Learning.DwellTimes["c1"] = 1
		profile.Preferences.Categories["Comedy"] = 0.1
	})
}

func (s *ProfileSuite) TestLearn_BadScenarios_EmptyHistoryResetsCount() {
	_, err := s.ps.Learn(s.ctx, "u1", []models.SearchHistoryEntry{
		s.entry("en", models.PatternExploratory, true, nil),
	})
	s.Require().NoError(err)

	profile, err := s.ps.Learn(s.ctx, "u1", nil)
	s.Require().NoError(err)
	s.Zero(profile.History.TotalSearches, "count mirrors the supplied history")
}

func (s *ProfileSuite) TestReducers_BadScenarios_InputProfileUntouched() {
	original := models.NewUserProfile("u1")
	original.Preferences.Languages["en"] = 0.4

	_ = LearnFromHistory(original, []models.SearchHistoryEntry{
		s.entry("en", models.PatternExploratory, false, nil),
	}, s.now)
	_ = ApplyInteraction(original, "c1", models.InteractionBook, 75, 5, s.now)

	s.InDelta(0.4, original.Preferences.Languages["en"], 0.0001)
	s.Zero(original.Learning.BounceRate)
	s.Empty(original.History.BookingHistory)
	s.Empty(original.History.ViewedCreators)
}
