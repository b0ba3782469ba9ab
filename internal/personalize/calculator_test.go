package personalize

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/annpale/discovery/pkg/models"
)

// CalculatorSuite is a test suite for the Calculator.
type CalculatorSuite struct {
	suite.Suite
	calc *Calculator
}

func (s *CalculatorSuite) SetupTest() {
	s.calc = NewCalculator(nil)
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}

func (s *CalculatorSuite) availableCreator() *models.Creator {
	return &models.Creator{
		ID:           "c1",
		Name:         "Jean",
		Category:     "Comedy",
		Price:        50,
		Languages:    []string{"en"},
		Trending:     false,
		Availability: models.AvailabilityAvailable,
	}
}

// =============================================================================
// GOOD SCENARIOS - Expected normal operations
// =============================================================================

func (s *CalculatorSuite) TestCalculate_GoodScenarios_EmptyProfile() {
	// A fresh profile carries no taste signal, so only the availability
	// bonus fires.
	profile := models.NewUserProfile("u1")

	score := s.calc.Calculate(s.availableCreator(), profile)

	s.InDelta(0.05, score, 0.0001, "empty profile should score availability only")
}

func (s *CalculatorSuite) TestCalculate_GoodScenarios_PerfectMatch() {
	profile := models.NewUserProfile("u1")
	profile.Preferences.Categories["Comedy"] = 1.0
	profile.Preferences.Languages["en"] = 0.9
	profile.Preferences.PriceRange = models.PriceRange{Min: 25, Max: 100, Average: 50}
	profile.History.ViewedCreators = []models.ViewedCreator{{CreatorID: "c1", Count: 10}}

	creator := s.availableCreator()
	creator.Trending = true

	score := s.calc.Calculate(creator, profile)

	// 0.25 + 0.15 + 0.15 + min(1, 10×0.1)×0.15 + 0.10 + 0.05 = 0.85
	s.InDelta(0.85, score, 0.0001)
}

func (s *CalculatorSuite) TestCalculate_GoodScenarios_CategoryAffinityScales() {
	creator := s.availableCreator()

	low := models.NewUserProfile("u1")
	low.Preferences.Categories["Comedy"] = 0.2
	high := models.NewUserProfile("u1")
	high.Preferences.Categories["Comedy"] = 0.8

	lowScore := s.calc.Calculate(creator, low)
	highScore := s.calc.Calculate(creator, high)

	s.Greater(highScore, lowScore, "stronger category affinity must rank higher")
	s.InDelta(0.05+0.8*0.25, highScore, 0.0001)
}

func (s *CalculatorSuite) TestCalculateComponents_GoodScenarios_Breakdown() {
	profile := models.NewUserProfile("u1")
	profile.Preferences.Categories["Music"] = 0.6
	profile.Preferences.Languages["fr"] = 0.7
	profile.Preferences.PriceRange = models.PriceRange{Min: 40, Max: 60}
	profile.History.ViewedCreators = []models.ViewedCreator{{CreatorID: "c2", Count: 3}}

	creator := &models.Creator{
		ID:           "c2",
		Category:     "Music",
		Price:        55,
		Languages:    []string{"fr", "ht"},
		Trending:     true,
		Availability: models.AvailabilityBusy,
	}

	comp := s.calc.CalculateComponents(creator, profile)

	s.InDelta(0.6*0.25, comp.CategoryContrib, 0.0001)
	s.InDelta(0.15, comp.PriceContrib, 0.0001)
	s.InDelta(0.15, comp.LanguageContrib, 0.0001)
	s.InDelta(0.3*0.15, comp.HistoryContrib, 0.0001)
	s.InDelta(0.10, comp.TrendingContrib, 0.0001)
	s.Zero(comp.AvailabilityContrib, "busy creator earns no availability bonus")
	s.InDelta(comp.CategoryContrib+comp.PriceContrib+comp.LanguageContrib+
		comp.HistoryContrib+comp.TrendingContrib, comp.FinalScore, 0.0001)
}

func (s *CalculatorSuite) TestCalculate_GoodScenarios_ViewBoostSaturates() {
	creator := s.availableCreator()

	few := models.NewUserProfile("u1")
	few.History.ViewedCreators = []models.ViewedCreator{{CreatorID: "c1", Count: 10}}
	many := models.NewUserProfile("u1")
	many.History.ViewedCreators = []models.ViewedCreator{{CreatorID: "c1", Count: 500}}

	s.InDelta(s.calc.Calculate(creator, few), s.calc.Calculate(creator, many), 0.0001,
		"view boost caps at 10 views")
}

// =============================================================================
// BAD SCENARIOS - Error conditions and edge cases
// =============================================================================

func (s *CalculatorSuite) TestCalculate_BadScenarios_WeakLanguageAffinityIgnored() {
	// Affinity at or below the 0.5 threshold is not a real preference.
	profile := models.NewUserProfile("u1")
	profile.Preferences.Languages["en"] = 0.5

	score := s.calc.Calculate(s.availableCreator(), profile)

	s.InDelta(0.05, score, 0.0001, "threshold affinity must not trigger the language bonus")
}

func (s *CalculatorSuite) TestCalculate_BadScenarios_PriceOutsideRange() {
	profile := models.NewUserProfile("u1")
	profile.Preferences.PriceRange = models.PriceRange{Min: 100, Max: 200}

	comp := s.calc.CalculateComponents(s.availableCreator(), profile)

	s.Zero(comp.PriceContrib)
}

func (s *CalculatorSuite) TestCalculate_BadScenarios_ScoreStaysInUnitInterval() {
	profile := models.NewUserProfile("u1")
	profile.Preferences.Categories["Comedy"] = 1.0
	profile.Preferences.Languages["en"] = 1.0
	profile.Preferences.PriceRange = models.PriceRange{Min: 0, Max: 1000}
	profile.History.ViewedCreators = []models.ViewedCreator{{CreatorID: "c1", Count: 50}}

	creator := s.availableCreator()
	creator.Trending = true

	// Inflated weight table pushes the raw sum past 1.
	s.calc.UpdateWeights(&models.ScoringWeights{
		CategoryAffinity:      0.9,
		PricePreference:       0.9,
		LanguageMatch:         0.9,
		HistoricalInteraction: 0.9,
		TrendingBoost:         0.9,
		AvailabilityMatch:     0.9,
	})

	score := s.calc.Calculate(creator, profile)

	s.Equal(1.0, score, "score must clamp to 1")
}

func (s *CalculatorSuite) TestUpdateWeights_BadScenarios_NilKeepsCurrent() {
	before := s.calc.Weights()
	s.calc.UpdateWeights(nil)
	s.Same(before, s.calc.Weights())
}
