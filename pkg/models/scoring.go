package models

// ScoringWeights contains the per-signal weights used when ranking
// candidate creators against a user profile.
type ScoringWeights struct {
	// CategoryAffinity scales the profile's affinity score for the
	// creator's category.
	CategoryAffinity float64 `json:"category_affinity"`

	// PricePreference is added when the creator's price falls inside the
	// profile's observed price range.
	PricePreference float64 `json:"price_preference"`

	// LanguageMatch is added when the creator speaks a language the
	// profile strongly prefers (affinity > 0.5).
	LanguageMatch float64 `json:"language_match"`

	// BehavioralPattern is reserved for pattern-based boosting. The weight
	// participates in the table total but is not consumed by the ranking
	// formula; pattern matching is applied during recommendation bucket
	// generation instead.
	BehavioralPattern float64 `json:"behavioral_pattern"`

	// HistoricalInteraction scales min(1, viewCount*0.1) for creators the
	// user has viewed before.
	HistoricalInteraction float64 `json:"historical_interaction"`

	// TrendingBoost is added flat for creators marked trending.
	TrendingBoost float64 `json:"trending_boost"`

	// AvailabilityMatch is added flat for creators currently available.
	AvailabilityMatch float64 `json:"availability_match"`
}

// DefaultScoringWeights returns the default weight table. The weights sum
// to 1.0 so a perfect match scores exactly 1.
func DefaultScoringWeights() *ScoringWeights {
	return &ScoringWeights{
		CategoryAffinity:      0.25,
		PricePreference:       0.15,
		LanguageMatch:         0.15,
		BehavioralPattern:     0.15,
		HistoricalInteraction: 0.15,
		TrendingBoost:         0.10,
		AvailabilityMatch:     0.05,
	}
}

// Total returns the sum of all weights, including the reserved
// BehavioralPattern weight.
func (w *ScoringWeights) Total() float64 {
	return w.CategoryAffinity +
		w.PricePreference +
		w.LanguageMatch +
		w.BehavioralPattern +
		w.HistoricalInteraction +
		w.TrendingBoost +
		w.AvailabilityMatch
}
