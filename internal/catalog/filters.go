package catalog

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PageSize is the fixed number of cards per browse page.
const PageSize = 24

const (
	maxTextFilterLen = 64
	maxPage          = 100_000
)

// ErrInvalidFilter marks filter input rejected before any query is issued.
var ErrInvalidFilter = errors.New("catalog: invalid filter")

// Sort selects the ordering of browse results.
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortRating    Sort = "rating"
	SortYearDesc  Sort = "year_desc"
	SortYearAsc   Sort = "year_asc"
	SortTitle     Sort = "title"
	SortRecent    Sort = "recent"
)

var sorts = map[Sort]struct{}{
	SortRelevance: {}, SortRating: {}, SortYearDesc: {},
	SortYearAsc: {}, SortTitle: {}, SortRecent: {},
}

// ParseSort maps a sort key to a Sort. The empty string selects relevance.
func ParseSort(raw string) (Sort, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return SortRelevance, nil
	}
	s := Sort(raw)
	if _, ok := sorts[s]; !ok {
		return "", fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, raw)
	}
	return s, nil
}

// Filters is the full set of browse selections for one page request.
type Filters struct {
	Genre   string
	Decade  *Bucket
	Runtime *Bucket
	Service string
	Sort    Sort
	Page    int
}

// Validate checks the filters are safe to turn into a query.
func (f Filters) Validate() error {
	if f.Page < 0 || f.Page > maxPage {
		return fmt.Errorf("%w: page must be between 0 and %d", ErrInvalidFilter, maxPage)
	}
	if utf8.RuneCountInString(f.Genre) > maxTextFilterLen {
		return fmt.Errorf("%w: genre too long", ErrInvalidFilter)
	}
	if utf8.RuneCountInString(f.Service) > maxTextFilterLen {
		return fmt.Errorf("%w: service too long", ErrInvalidFilter)
	}
	if f.Sort != "" {
		if _, ok := sorts[f.Sort]; !ok {
			return fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, f.Sort)
		}
	}
	return nil
}

// NormalizeGenre folds a genre to the key stored in genre_keys.
func NormalizeGenre(genre string) string {
	return strings.ToLower(strings.TrimSpace(genre))
}

// NormalizeService folds a service name to the form stored in service_names.
func NormalizeService(service string) string {
	return strings.ToLower(strings.TrimSpace(service))
}

// NextPage returns the index of the page after page, or nil when page is the last.
func NextPage(page int, total int64) *int {
	if int64(page+1)*PageSize >= total {
		return nil
	}
	next := page + 1
	return &next
}
