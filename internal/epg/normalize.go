package epg

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// Normalize turns feed channels into classified programs. Airings with
// unparseable times, stop <= start or no matching category are dropped.
func Normalize(channels []FeedChannel, classifier *Classifier) []domain.Program {
	programs := make([]domain.Program, 0)
	for _, fc := range channels {
		ch := normalizeChannel(fc)
		for _, tl := range fc.Timelines {
			start, err := parseFeedTime(tl.Start)
			if err != nil {
				continue
			}
			stop, err := parseFeedTime(tl.Stop)
			if err != nil || !stop.After(start) {
				continue
			}

			title := strings.TrimSpace(tl.Title)
			if title == "" {
				title = strings.TrimSpace(tl.Episode.Name)
			}
			description := strings.TrimSpace(tl.Episode.Description)
			genre := strings.TrimSpace(tl.Episode.Genre)

			category := classifier.Classify(genre, tl.Episode.SubGenre, title, description, ch.Category)
			if category == "" {
				continue
			}

			id := strings.TrimSpace(tl.ID)
			if id == "" {
				id = ch.ID + ":" + strconv.FormatInt(start.Unix(), 10)
			}
			programs = append(programs, domain.Program{
				ID:            id,
				ChannelID:     ch.ID,
				ChannelName:   ch.Name,
				ChannelNumber: ch.Number,
				Title:         title,
				Description:   description,
				Genre:         genre,
				Start:         start,
				Stop:          stop,
				Category:      category,
			})
		}
	}
	SortPrograms(programs)
	return programs
}

func normalizeChannel(fc FeedChannel) domain.Channel {
	return domain.Channel{
		ID:       strings.TrimSpace(fc.ID),
		Slug:     strings.TrimSpace(fc.Slug),
		Name:     strings.TrimSpace(fc.Name),
		Number:   fc.Number,
		Category: strings.TrimSpace(fc.Category),
		LogoURL:  strings.TrimSpace(fc.Logo.Path),
	}
}

func parseFeedTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// SortPrograms orders programs by start, then channel number, then id.
func SortPrograms(programs []domain.Program) {
	sort.SliceStable(programs, func(i, j int) bool {
		a, b := programs[i], programs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.ChannelNumber != b.ChannelNumber {
			return a.ChannelNumber < b.ChannelNumber
		}
		return a.ID < b.ID
	})
}
