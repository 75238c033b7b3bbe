package catalog

import (
	"strings"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// Matches applies the filters to a single card in memory with exactly the
// semantics of the SQL produced by Build.
func Matches(c domain.Card, f Filters) bool {
	if genre := NormalizeGenre(f.Genre); genre != "" {
		found := false
		for _, g := range c.Genres {
			if NormalizeGenre(g) == genre {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Decade != nil && (c.Year == nil || !f.Decade.Contains(*c.Year)) {
		return false
	}
	if f.Runtime != nil && (c.Runtime == nil || !f.Runtime.Contains(*c.Runtime)) {
		return false
	}
	if service := NormalizeService(f.Service); service != "" && !c.HasService(service) {
		return false
	}
	return true
}

// Less orders two cards the way the SQL ORDER BY for s does.
func Less(a, b domain.Card, s Sort) bool {
	switch s {
	case SortRating:
		if c := compareNullableDesc(ratingKey(a), ratingKey(b)); c != 0 {
			return c < 0
		}
	case SortYearDesc:
		if c := compareNullableDesc(intKey(a.Year), intKey(b.Year)); c != 0 {
			return c < 0
		}
	case SortYearAsc:
		if c := compareNullableAsc(intKey(a.Year), intKey(b.Year)); c != 0 {
			return c < 0
		}
	case SortTitle:
		if c := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c < 0
		}
	case SortRecent:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
	default:
		if a.Featured != b.Featured {
			return a.Featured
		}
		if c := compareNullableDesc(ratingKey(a), ratingKey(b)); c != 0 {
			return c < 0
		}
	}
	return a.ID < b.ID
}

func ratingKey(c domain.Card) *float64 {
	if c.Rating == nil || *c.Rating == 0 {
		return nil
	}
	v := float64(*c.Rating)
	return &v
}

func intKey(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// NULLs sort last in both directions.
func compareNullableDesc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	}
	return 0
}

func compareNullableAsc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}
