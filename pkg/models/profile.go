package models

import "time"

// PriceRange tracks a user's observed booking price band.
type PriceRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Contains reports whether price falls inside the range (inclusive).
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}

// ViewedCreator records repeat views of a creator profile.
type ViewedCreator struct {
	CreatorID  string    `json:"creator_id"`
	Count      int       `json:"count"`
	LastViewed time.Time `json:"last_viewed"`
}

// BookingRecord is one completed booking. The booking history is
// append-only.
type BookingRecord struct {
	CreatorID string    `json:"creator_id"`
	Date      time.Time `json:"date"`
	Price     float64   `json:"price"`
}

// ProfilePreferences holds learned taste signals. All affinity scores are
// clamped to [0,1].
type ProfilePreferences struct {
	Categories    map[string]float64 `json:"categories"`
	Languages     map[string]float64 `json:"languages"`
	PriceRange    PriceRange         `json:"price_range"`
	ResponseTimes []string           `json:"response_times,omitempty"`
	Features      []string           `json:"features,omitempty"`
}

// ProfileBehavior aggregates observed usage behavior.
type ProfileBehavior struct {
	SearchPatterns     map[SearchPattern]int `json:"search_patterns"`
	AvgSessionDuration float64               `json:"avg_session_duration"`
	PeakSearchHours    []int                 `json:"peak_search_hours,omitempty"`
	DeviceUsage        map[string]float64    `json:"device_usage,omitempty"`
	ConversionRate     float64               `json:"conversion_rate"`
}

// ProfileHistory holds lifetime counters and interaction logs.
type ProfileHistory struct {
	TotalSearches    int             `json:"total_searches"`
	TotalBookings    int             `json:"total_bookings"`
	FavoriteCreators []string        `json:"favorite_creators,omitempty"`
	ViewedCreators   []ViewedCreator `json:"viewed_creators,omitempty"`
	BookingHistory   []BookingRecord `json:"booking_history,omitempty"`
}

// ProfileLearning holds feedback-loop rates. BounceRate and RefinementRate
// are clamped to [0,1]; DwellTimes is an exponential moving average per
// creator id.
type ProfileLearning struct {
	ClickThroughRates map[int]float64    `json:"click_through_rates,omitempty"` // by result position
	DwellTimes        map[string]float64 `json:"dwell_times,omitempty"`
	BounceRate        float64            `json:"bounce_rate"`
	RefinementRate    float64            `json:"refinement_rate"`
}

// UserProfile is the aggregate personalization state for one user (or the
// anonymous session). It is never hard-deleted, only overwritten.
type UserProfile struct {
	UserID      string             `json:"user_id"`
	Preferences ProfilePreferences `json:"preferences"`
	Behavior    ProfileBehavior    `json:"behavior"`
	History     ProfileHistory     `json:"history"`
	Learning    ProfileLearning    `json:"learning"`
	LastUpdated time.Time          `json:"last_updated"`
}

// NewUserProfile returns a zero-valued profile with all maps initialized.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID: NormalizeUserID(userID),
		Preferences: ProfilePreferences{
			Categories: make(map[string]float64),
			Languages:  make(map[string]float64),
		},
		Behavior: ProfileBehavior{
			SearchPatterns: make(map[SearchPattern]int),
			DeviceUsage:    make(map[string]float64),
		},
		Learning: ProfileLearning{
			ClickThroughRates: make(map[int]float64),
			DwellTimes:        make(map[string]float64),
		},
		LastUpdated: time.Now(),
	}
}

// Clone returns a deep copy of the profile. Reducer-style updates operate
// on a clone so callers always hold an immutable snapshot.
func (p *UserProfile) Clone() *UserProfile {
	c := *p
	c.Preferences.Categories = copyMap(p.Preferences.Categories)
	c.Preferences.Languages = copyMap(p.Preferences.Languages)
	c.Preferences.ResponseTimes = append([]string(nil), p.Preferences.ResponseTimes...)
	c.Preferences.Features = append([]string(nil), p.Preferences.Features...)
	c.Behavior.SearchPatterns = copyMap(p.Behavior.SearchPatterns)
	c.Behavior.PeakSearchHours = append([]int(nil), p.Behavior.PeakSearchHours...)
	c.Behavior.DeviceUsage = copyMap(p.Behavior.DeviceUsage)
	c.History.FavoriteCreators = append([]string(nil), p.History.FavoriteCreators...)
	c.History.ViewedCreators = append([]ViewedCreator(nil), p.History.ViewedCreators...)
	c.History.BookingHistory = append([]BookingRecord(nil), p.History.BookingHistory...)
	c.Learning.ClickThroughRates = copyMap(p.Learning.ClickThroughRates)
	c.Learning.DwellTimes = copyMap(p.Learning.DwellTimes)
	return &c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clamp01 clamps v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TopCategories returns up to n category names ordered by descending
// affinity score. Ties break by name for determinism.
func (p *UserProfile) TopCategories(n int) []string {
	return topKeys(p.Preferences.Categories, n)
}

// PreferredLanguages returns the languages whose affinity score exceeds
// the given threshold.
func (p *UserProfile) PreferredLanguages(threshold float64) []string {
	var out []string
	for lang, score := range p.Preferences.Languages {
		if score > threshold {
			out = append(out, lang)
		}
	}
	return out
}

// DominantPattern returns the most frequent search pattern, or "" when no
// searches have been folded in yet.
func (p *UserProfile) DominantPattern() SearchPattern {
	var best SearchPattern
	bestCount := 0
	for pattern, count := range p.Behavior.SearchPatterns {
		if count > bestCount || (count == bestCount && pattern < best) {
			best = pattern
			bestCount = count
		}
	}
	if bestCount == 0 {
		return ""
	}
	return best
}

func topKeys[V int | float64](m map[string]V, n int) []string {
	type kv struct {
		key   string
		value V
	}
	pairs := make([]kv, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, kv{k, v})
	}
	// Insertion sort keeps this allocation-light for the small maps we see.
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0; j-- {
			a, b := pairs[j-1], pairs[j]
			if b.value > a.value || (b.value == a.value && b.key < a.key) {
				pairs[j-1], pairs[j] = b, a
			} else {
				break
			}
		}
	}
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]string, 0, n)
	for _, p := range pairs[:n] {
		out = append(out, p.key)
	}
	return out
}
