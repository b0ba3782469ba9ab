package models

// RecommendationType labels which signal produced a recommendation bucket.
type RecommendationType string

const (
	RecTypeCategory   RecommendationType = "category"
	RecTypeSimilar    RecommendationType = "similar"
	RecTypeTrending   RecommendationType = "trending"
	RecTypePrice      RecommendationType = "price"
	RecTypeLanguage   RecommendationType = "language"
	RecTypeBehavioral RecommendationType = "behavioral"
)

// PersonalizedRecommendation is one labeled bucket of recommended creators.
// Buckets are derived on demand from the profile and candidate set; they
// are never persisted.
type PersonalizedRecommendation struct {
	Creators   []Creator          `json:"creators"`
	Reason     string             `json:"reason"`
	Confidence float64            `json:"confidence"` // [0,1]
	Type       RecommendationType `json:"type"`
}
