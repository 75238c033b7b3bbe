package domain

import "time"

// List kinds.
const (
	ListKindCurated   = "curated"
	ListKindCommunity = "community"
)

// WatchlistItem associates a user with a card they saved.
type WatchlistItem struct {
	UserID   string
	CardID   string
	Position int
	AddedAt  time.Time
	Card     *Card
}

// List is a named, ordered collection of cards owned by one user.
type List struct {
	ID          string
	OwnerID     string
	Slug        string
	Title       string
	Description string
	Kind        string
	IsPublic    bool
	ItemCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListItem is one card placed on a list.
type ListItem struct {
	ListID   string
	CardID   string
	Position int
	Note     string
	AddedAt  time.Time
	Card     *Card
}
