// Package personalize maintains per-user personalization profiles and
// produces ranked results and recommendation buckets from them.
package personalize

import (
	"github.com/annpale/discovery/pkg/models"
)

// languageAffinityThreshold is the minimum language score counted as a
// real preference.
const languageAffinityThreshold = 0.5

// Calculator computes personalization scores for candidate creators.
type Calculator struct {
	weights *models.ScoringWeights
}

// NewCalculator creates a new scoring calculator.
// If weights is nil, uses the default weight table.
func NewCalculator(weights *models.ScoringWeights) *Calculator {
	if weights == nil {
		weights = models.DefaultScoringWeights()
	}
	return &Calculator{weights: weights}
}

// Calculate computes the personalization score for a creator against a
// profile at call time.
//
// The scoring formula is a weighted sum over six live signals, clamped to
// [0,1]:
//
//	Score = CategoryAffinity×0.25 + PriceInRange×0.15 + LanguageMatch×0.15
//	      + HistoricalInteraction×0.15 + TrendingBoost(0.10) + AvailabilityMatch(0.05)
//
// The BehavioralPattern weight in the table is reserved and not part of
// this sum; pattern matching feeds recommendation buckets instead.
func (c *Calculator) Calculate(creator *models.Creator, profile *models.UserProfile) float64 {
	return c.CalculateComponents(creator, profile).FinalScore
}

// CalculateComponents returns the individual components of the score.
// Useful for debugging and explaining rankings to users.
// This is the core calculation method - Calculate() delegates to this.
func (c *Calculator) CalculateComponents(creator *models.Creator, profile *models.UserProfile) ScoreComponents {
	// 1. Category affinity: the profile's learned score for this category
	// (absent categories contribute 0).
	categoryScore := profile.Preferences.Categories[creator.Category]
	categoryContrib := categoryScore * c.weights.CategoryAffinity

	// 2. Price preference: binary in-range signal.
	priceContrib := 0.0
	if profile.Preferences.PriceRange.Contains(creator.Price) {
		priceContrib = c.weights.PricePreference
	}

	// 3. Language match: any creator language with strong affinity.
	languageContrib := 0.0
	for _, lang := range creator.Languages {
		if profile.Preferences.Languages[lang] > languageAffinityThreshold {
			languageContrib = c.weights.LanguageMatch
			break
		}
	}

	// 4. Historical interaction: min(1, viewCount×0.1) for repeat views.
	historyContrib := 0.0
	for _, viewed := range profile.History.ViewedCreators {
		if viewed.CreatorID == creator.ID {
			boost := float64(viewed.Count) * 0.1
			if boost > 1 {
				boost = 1
			}
			historyContrib = boost * c.weights.HistoricalInteraction
			break
		}
	}

	// 5. Trending boost: flat bonus for trending creators.
	trendingContrib := 0.0
	if creator.Trending {
		trendingContrib = c.weights.TrendingBoost
	}

	// 6. Availability match: flat bonus for bookable creators.
	availabilityContrib := 0.0
	if creator.Available() {
		availabilityContrib = c.weights.AvailabilityMatch
	}

	finalScore := models.Clamp01(categoryContrib + priceContrib + languageContrib +
		historyContrib + trendingContrib + availabilityContrib)

	return ScoreComponents{
		CategoryContrib:     categoryContrib,
		PriceContrib:        priceContrib,
		LanguageContrib:     languageContrib,
		HistoryContrib:      historyContrib,
		TrendingContrib:     trendingContrib,
		AvailabilityContrib: availabilityContrib,
		FinalScore:          finalScore,
	}
}

// ScoreComponents contains the breakdown of a personalization score.
type ScoreComponents struct {
	CategoryContrib     float64 `json:"category_contrib"`
	PriceContrib        float64 `json:"price_contrib"`
	LanguageContrib     float64 `json:"language_contrib"`
	HistoryContrib      float64 `json:"history_contrib"`
	TrendingContrib     float64 `json:"trending_contrib"`
	AvailabilityContrib float64 `json:"availability_contrib"`
	FinalScore          float64 `json:"final_score"`
}

// Weights returns the calculator's current weight table.
func (c *Calculator) Weights() *models.ScoringWeights {
	return c.weights
}

// UpdateWeights replaces the weight table. Allows runtime tuning.
func (c *Calculator) UpdateWeights(weights *models.ScoringWeights) {
	if weights != nil {
		c.weights = weights
	}
}
