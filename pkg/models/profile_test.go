package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserProfileZeroValued(t *testing.T) {
	profile := NewUserProfile("u1")

	assert.Equal(t, "u1", profile.UserID)
	assert.Empty(t, profile.Preferences.Categories)
	assert.Empty(t, profile.Preferences.Languages)
	assert.Zero(t, profile.History.TotalSearches)
	assert.Zero(t, profile.Learning.BounceRate)
	assert.NotNil(t, profile.Behavior.SearchPatterns)
}

func TestNewUserProfileAnonymous(t *testing.T) {
	profile := NewUserProfile("")
	assert.Equal(t, AnonymousUser, profile.UserID)
}

// Serialization fidelity: encode, decode, and compare every field
// including rehydrated time values.
func TestUserProfileRoundTrip(t *testing.T) {
	profile := NewUserProfile("u1")
	profile.Preferences.Categories["Comedy"] = 0.8
	profile.Preferences.Languages["ht"] = 0.6
	profile.Preferences.PriceRange = PriceRange{Min: 25, Max: 150, Average: 80}
	profile.Behavior.SearchPatterns[PatternExploratory] = 3
	profile.History.TotalSearches = 14
	profile.History.ViewedCreators = []ViewedCreator{
		{CreatorID: "c1", Count: 2, LastViewed: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)},
	}
	profile.History.BookingHistory = []BookingRecord{
		{CreatorID: "c1", Date: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC), Price: 75},
	}
	profile.Learning.ClickThroughRates[1] = 0.4
	profile.Learning.DwellTimes["c1"] = 12.5
	profile.Learning.BounceRate = 0.22
	profile.LastUpdated = time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

	data, err := json.Marshal(profile)
	require.NoError(t, err)

	var decoded UserProfile
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *profile, decoded)
}

func TestCloneIsDeep(t *testing.T) {
	profile := NewUserProfile("u1")
	profile.Preferences.Categories["Music"] = 0.5

	clone := profile.Clone()
	clone.Preferences.Categories["Music"] = 0.9
	clone.History.ViewedCreators = append(clone.History.ViewedCreators, ViewedCreator{CreatorID: "c1"})

	assert.Equal(t, 0.5, profile.Preferences.Categories["Music"])
	assert.Empty(t, profile.History.ViewedCreators)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.3))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
}

func TestTopCategories(t *testing.T) {
	profile := NewUserProfile("u1")
	profile.Preferences.Categories["Comedy"] = 0.9
	profile.Preferences.Categories["Music"] = 0.7
	profile.Preferences.Categories["Sports"] = 0.7
	profile.Preferences.Categories["Dance"] = 0.1

	top := profile.TopCategories(3)
	require.Len(t, top, 3)
	assert.Equal(t, "Comedy", top[0])
	// Equal scores order by name.
	assert.Equal(t, []string{"Music", "Sports"}, top[1:])

	assert.Len(t, profile.TopCategories(10), 4)
}

func TestDominantPattern(t *testing.T) {
	profile := NewUserProfile("u1")
	assert.Equal(t, SearchPattern(""), profile.DominantPattern())

	profile.Behavior.SearchPatterns[PatternExploratory] = 2
	profile.Behavior.SearchPatterns[PatternTransactional] = 5
	assert.Equal(t, PatternTransactional, profile.DominantPattern())
}

func TestPriceRangeContains(t *testing.T) {
	r := PriceRange{Min: 25, Max: 100}
	assert.True(t, r.Contains(25))
	assert.True(t, r.Contains(100))
	assert.False(t, r.Contains(100.01))
	assert.False(t, r.Contains(24.99))
}

func TestScoringWeightsTotal(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultScoringWeights().Total(), 1e-9)
}
