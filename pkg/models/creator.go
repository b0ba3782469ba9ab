package models

// Availability is a creator's current booking availability.
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityBusy        Availability = "busy"
	AvailabilityUnavailable Availability = "unavailable"
)

// Creator is a candidate result item: one creator profile as surfaced by
// the marketplace search backend.
type Creator struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Category     string       `json:"category"`
	Price        float64      `json:"price"`
	Languages    []string     `json:"languages,omitempty"`
	ResponseTime string       `json:"response_time,omitempty"`
	Rating       float64      `json:"rating"`
	Trending     bool         `json:"trending"`
	Featured     bool         `json:"featured"`
	Availability Availability `json:"availability"`
}

// Available reports whether the creator can currently be booked.
func (c *Creator) Available() bool {
	return c.Availability == AvailabilityAvailable
}

// SpeaksAny reports whether the creator lists any of the given languages.
func (c *Creator) SpeaksAny(languages []string) bool {
	for _, want := range languages {
		for _, have := range c.Languages {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ScoredCreator pairs a creator with its personalization score.
type ScoredCreator struct {
	Creator Creator `json:"creator"`
	Score   float64 `json:"score"`
}

// InteractionType classifies a tracked item interaction.
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionClick    InteractionType = "click"
	InteractionFavorite InteractionType = "favorite"
	InteractionBook     InteractionType = "book"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionView, InteractionClick, InteractionFavorite, InteractionBook:
		return true
	}
	return false
}
