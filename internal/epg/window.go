package epg

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// Window names.
const (
	WindowNow      = "now"
	WindowUpcoming = "upcoming"
)

const (
	// DefaultUpcoming is the look-ahead used when none is requested.
	DefaultUpcoming = 4 * time.Hour
	// MaxUpcoming bounds the look-ahead and the fetched feed range.
	MaxUpcoming = 24 * time.Hour
)

// ErrInvalidWindow marks a rejected window request.
var ErrInvalidWindow = errors.New("epg: invalid window")

// Window selects programs relative to a reference instant.
type Window struct {
	Name string
	Span time.Duration
}

// ParseWindow reads a window name and an optional look-ahead in hours.
func ParseWindow(name, hours string) (Window, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", WindowNow:
		if strings.TrimSpace(hours) != "" {
			return Window{}, fmt.Errorf("%w: hours only applies to %q", ErrInvalidWindow, WindowUpcoming)
		}
		return Window{Name: WindowNow}, nil
	case WindowUpcoming:
	default:
		return Window{}, fmt.Errorf("%w: unknown window %q", ErrInvalidWindow, name)
	}

	span := DefaultUpcoming
	if hours = strings.TrimSpace(hours); hours != "" {
		d, err := time.ParseDuration(hours + "h")
		if err != nil || d <= 0 || d > MaxUpcoming {
			return Window{}, fmt.Errorf("%w: hours must be in (0, %d]", ErrInvalidWindow, int(MaxUpcoming.Hours()))
		}
		span = d
	}
	return Window{Name: WindowUpcoming, Span: span}, nil
}

// Includes reports whether p falls in the window at now.
func (w Window) Includes(p domain.Program, now time.Time) bool {
	if w.Name == WindowUpcoming {
		return p.StartsWithin(now, w.Span)
	}
	return p.OnAt(now)
}

// Select returns the programs inside the window, keeping their order.
func (w Window) Select(programs []domain.Program, now time.Time) []domain.Program {
	out := make([]domain.Program, 0)
	for _, p := range programs {
		if w.Includes(p, now) {
			out = append(out, p)
		}
	}
	return out
}
