package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/ghost-guide/internal/catalog"
	"github.com/Clark-Hu/ghost-guide/internal/domain"
	"github.com/Clark-Hu/ghost-guide/internal/repository"
)

const browseCacheControl = "public, max-age=60, s-maxage=60, stale-while-revalidate=300"

type cardResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Year      *int            `json:"year"`
	Genres    []string        `json:"genres"`
	Runtime   *int            `json:"runtime"`
	Rating    *float32        `json:"rating"`
	Featured  bool            `json:"featured"`
	Sources   []domain.Source `json:"sources"`
	IMDbID    *string         `json:"imdbId,omitempty"`
	PosterURL *string         `json:"posterUrl,omitempty"`
	Plot      *string         `json:"plot,omitempty"`
	Director  *string         `json:"director,omitempty"`
	Country   *string         `json:"country,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type cardPageResponse struct {
	Cards      []cardResponse `json:"cards"`
	TotalCount int64          `json:"totalCount"`
	NextPage   *int           `json:"nextPage"`
}

type bucketResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   *int   `json:"max"`
}

type filterOptionsResponse struct {
	Decades  []bucketResponse `json:"decades"`
	Runtimes []bucketResponse `json:"runtimes"`
	Sorts    []catalog.Sort   `json:"sorts"`
	PageSize int              `json:"pageSize"`
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	filters, err := buildCardFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	page, err := s.repo.Cards.List(r.Context(), filters)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidFilter) {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		s.respondInternal(w, "list cards", err)
		return
	}

	resp := cardPageResponse{
		Cards:      make([]cardResponse, 0, len(page.Cards)),
		TotalCount: page.TotalCount,
		NextPage:   page.NextPage,
	}
	for _, c := range page.Cards {
		resp.Cards = append(resp.Cards, toCardResponse(c))
	}
	w.Header().Set("Cache-Control", browseCacheControl)
	s.respondJSON(w, http.StatusOK, resp)
}

// buildCardFilters parses browse query parameters. Unknown bucket or sort
// keys, bad page numbers and over-long text are rejected.
func buildCardFilters(query url.Values) (catalog.Filters, error) {
	var filters catalog.Filters

	filters.Genre = strings.TrimSpace(query.Get("genre"))
	filters.Service = strings.TrimSpace(query.Get("service"))

	if val := strings.TrimSpace(query.Get("decade")); val != "" {
		b, ok := catalog.DecadeByKey(strings.ToLower(val))
		if !ok {
			return filters, fmt.Errorf("invalid decade value")
		}
		filters.Decade = &b
	}
	if val := strings.TrimSpace(query.Get("runtime")); val != "" {
		b, ok := catalog.RuntimeByKey(strings.ToLower(val))
		if !ok {
			return filters, fmt.Errorf("invalid runtime value")
		}
		filters.Runtime = &b
	}

	sort, err := catalog.ParseSort(query.Get("sort"))
	if err != nil {
		return filters, fmt.Errorf("invalid sort value")
	}
	filters.Sort = sort

	if val := strings.TrimSpace(query.Get("page")); val != "" {
		page, err := strconv.Atoi(val)
		if err != nil || page < 0 {
			return filters, fmt.Errorf("invalid page value")
		}
		filters.Page = page
	}

	if err := filters.Validate(); err != nil {
		return filters, err
	}
	return filters, nil
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.repo.Cards.GetByID(r.Context(), chi.URLParam(r, "cardID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "get card", err)
		return
	}
	w.Header().Set("Cache-Control", browseCacheControl)
	s.respondJSON(w, http.StatusOK, toCardResponse(card))
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	resp := filterOptionsResponse{
		Decades:  toBucketResponses(catalog.Decades),
		Runtimes: toBucketResponses(catalog.Runtimes),
		Sorts: []catalog.Sort{
			catalog.SortRelevance, catalog.SortRating, catalog.SortYearDesc,
			catalog.SortYearAsc, catalog.SortTitle, catalog.SortRecent,
		},
		PageSize: catalog.PageSize,
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.respondJSON(w, http.StatusOK, resp)
}

func toBucketResponses(buckets []catalog.Bucket) []bucketResponse {
	out := make([]bucketResponse, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketResponse{Key: b.Key, Label: b.Label, Min: b.Min, Max: b.Max})
	}
	return out
}

func toCardResponse(c domain.Card) cardResponse {
	genres := c.Genres
	if genres == nil {
		genres = []string{}
	}
	sources := c.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return cardResponse{
		ID:        c.ID,
		Title:     c.Title,
		Year:      c.Year,
		Genres:    genres,
		Runtime:   c.Runtime,
		Rating:    c.Rating,
		Featured:  c.Featured,
		Sources:   sources,
		IMDbID:    c.IMDbID,
		PosterURL: c.PosterURL,
		Plot:      c.Plot,
		Director:  c.Director,
		Country:   c.Country,
		CreatedAt: c.CreatedAt,
	}
}
