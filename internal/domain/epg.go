package domain

import "time"

// Program categories assigned by the EPG classifier.
const (
	CategoryHorror = "horror"
	CategorySciFi  = "scifi"
)

// Channel is a live-TV channel from the EPG feed.
type Channel struct {
	ID       string
	Slug     string
	Name     string
	Number   int
	Category string
	LogoURL  string
}

// Program is one scheduled airing on a channel.
type Program struct {
	ID            string
	ChannelID     string
	ChannelName   string
	ChannelNumber int
	Title         string
	Description   string
	Genre         string
	Start         time.Time
	Stop          time.Time
	Category      string
}

// OnAt reports whether the program is airing at t.
func (p Program) OnAt(t time.Time) bool {
	return !p.Start.After(t) && t.Before(p.Stop)
}

// StartsWithin reports whether the program starts after t and no later than t+window.
func (p Program) StartsWithin(t time.Time, window time.Duration) bool {
	return p.Start.After(t) && !p.Start.After(t.Add(window))
}
