package personalize

import (
	"fmt"
	"sort"

	"github.com/annpale/discovery/pkg/models"
)

const bucketSize = 5

// PersonalizeResults scores every candidate against the profile and
// returns them ordered by descending score. Candidates with equal scores
// keep their input order, so the backend's own relevance order survives
// as the tiebreaker.
func (c *Calculator) PersonalizeResults(candidates []models.Creator, profile *models.UserProfile) []models.ScoredCreator {
	scored := make([]models.ScoredCreator, 0, len(candidates))
	for i := range candidates {
		scored = append(scored, models.ScoredCreator{
			Creator: candidates[i],
			Score:   c.Calculate(&candidates[i], profile),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// GenerateRecommendations builds recommendation buckets from the profile:
// per-category picks for the top learned categories, a price-band bucket,
// a preferred-language bucket, and a behavioral bucket keyed on the
// dominant search pattern. Buckets that match no candidates are dropped.
func (c *Calculator) GenerateRecommendations(candidates []models.Creator, profile *models.UserProfile) []models.PersonalizedRecommendation {
	var recs []models.PersonalizedRecommendation

	for _, category := range profile.TopCategories(3) {
		matches := pickCreators(candidates, bucketSize, func(cr *models.Creator) bool {
			return cr.Category == category
		})
		if len(matches) == 0 {
			continue
		}
		confidence := profile.Preferences.Categories[category]
		if confidence == 0 {
			confidence = 0.5
		}
		recs = append(recs, models.PersonalizedRecommendation{
			Creators:   matches,
			Reason:     fmt.Sprintf("Based on your interest in %s", category),
			Confidence: confidence,
			Type:       models.RecTypeCategory,
		})
	}

	if r := profile.Preferences.PriceRange; r.Max > r.Min {
		matches := pickCreators(candidates, bucketSize, func(cr *models.Creator) bool {
			return r.Contains(cr.Price)
		})
		if len(matches) > 0 {
			recs = append(recs, models.PersonalizedRecommendation{
				Creators:   matches,
				Reason:     "Within your typical budget",
				Confidence: 0.7,
				Type:       models.RecTypePrice,
			})
		}
	}

	if languages := profile.PreferredLanguages(languageAffinityThreshold); len(languages) > 0 {
		matches := pickCreators(candidates, bucketSize, func(cr *models.Creator) bool {
			return cr.SpeaksAny(languages)
		})
		if len(matches) > 0 {
			recs = append(recs, models.PersonalizedRecommendation{
				Creators:   matches,
				Reason:     "Speaks your preferred languages",
				Confidence: 0.8,
				Type:       models.RecTypeLanguage,
			})
		}
	}

	if rec, ok := c.behavioralBucket(candidates, profile); ok {
		recs = append(recs, rec)
	}

	return recs
}

// behavioralBucket maps the dominant search pattern to a candidate
// filter: explorers get featured creators, transactional users get
// bookable ones, and known-item searchers get creators they already
// viewed. Viewed ids absent from the candidate slate are skipped.
func (c *Calculator) behavioralBucket(candidates []models.Creator, profile *models.UserProfile) (models.PersonalizedRecommendation, bool) {
	var matches []models.Creator
	var reason string

	switch profile.DominantPattern() {
	case models.PatternExploratory:
		reason = "New creators to explore"
		matches = pickCreators(candidates, bucketSize, func(cr *models.Creator) bool {
			return cr.Featured
		})
	case models.PatternTransactional:
		reason = "Ready to book now"
		matches = pickCreators(candidates, bucketSize, func(cr *models.Creator) bool {
			return cr.Available()
		})
	case models.PatternKnownItem:
		reason = "Creators you keep coming back to"
		byID := make(map[string]*models.Creator, len(candidates))
		for i := range candidates {
			byID[candidates[i].ID] = &candidates[i]
		}
		for _, viewed := range profile.History.ViewedCreators {
			if cr, ok := byID[viewed.CreatorID]; ok {
				matches = append(matches, *cr)
				if len(matches) == bucketSize {
					break
				}
			}
		}
	default:
		return models.PersonalizedRecommendation{}, false
	}

	if len(matches) == 0 {
		return models.PersonalizedRecommendation{}, false
	}
	return models.PersonalizedRecommendation{
		Creators:   matches,
		Reason:     reason,
		Confidence: 0.6,
		Type:       models.RecTypeBehavioral,
	}, true
}

func pickCreators(candidates []models.Creator, limit int, match func(*models.Creator) bool) []models.Creator {
	var out []models.Creator
	for i := range candidates {
		if match(&candidates[i]) {
			out = append(out, candidates[i])
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
