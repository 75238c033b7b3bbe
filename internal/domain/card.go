package domain

import "time"

// Source describes one streaming service offering a card.
type Source struct {
	Service string `json:"service"`
	Type    string `json:"type,omitempty"`
	Link    string `json:"link,omitempty"`
}

// Card is a single catalog entry: one film or title with its streaming sources.
// Runtime and Rating use nil for unknown; zero values read from storage are
// normalized to nil.
type Card struct {
	ID        string
	Title     string
	Year      *int
	Genres    []string
	Runtime   *int
	Rating    *float32
	Featured  bool
	Sources   []Source
	IMDbID    *string
	PosterURL *string
	Plot      *string
	Director  *string
	Country   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasService reports whether any source's service name contains needle,
// ignoring case. This is the single service matching rule of the catalog.
func (c Card) HasService(needle string) bool {
	for _, src := range c.Sources {
		if ContainsFold(src.Service, needle) {
			return true
		}
	}
	return false
}
