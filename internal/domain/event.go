package domain

import "time"

// Session tracks one browsing visit.
type Session struct {
	ID         string
	UserID     *string
	UserAgent  string
	Referrer   string
	StartedAt  time.Time
	LastSeenAt time.Time
	EndedAt    *time.Time
}

// ClickEvent records a click-out from a card to a streaming service.
type ClickEvent struct {
	ID        string
	SessionID *string
	CardID    string
	Service   string
	Link      string
	CreatedAt time.Time
}

// DashboardStats summarizes catalog and engagement numbers for operators.
type DashboardStats struct {
	Cards          int64
	FeaturedCards  int64
	WatchlistItems int64
	Lists          int64
	Sessions24h    int64
	Clicks24h      int64
	TopServices    []CountByKey
	TopCards       []CountByKey
}

// CountByKey is a label/count pair used in rankings.
type CountByKey struct {
	Key   string
	Label string
	Count int64
}
