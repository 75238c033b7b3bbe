package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
	"github.com/Clark-Hu/ghost-guide/internal/metadata"
	"github.com/Clark-Hu/ghost-guide/internal/repository"
)

type countResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type statsResponse struct {
	Cards          int64           `json:"cards"`
	FeaturedCards  int64           `json:"featuredCards"`
	WatchlistItems int64           `json:"watchlistItems"`
	Lists          int64           `json:"lists"`
	Sessions24h    int64           `json:"sessions24h"`
	Clicks24h      int64           `json:"clicks24h"`
	TopServices    []countResponse `json:"topServices"`
	TopCards       []countResponse `json:"topCards"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	stats, err := s.repo.Stats.Dashboard(r.Context(), now)
	if err != nil {
		s.respondInternal(w, "dashboard stats", err)
		return
	}
	s.respondJSON(w, http.StatusOK, statsResponse{
		Cards:          stats.Cards,
		FeaturedCards:  stats.FeaturedCards,
		WatchlistItems: stats.WatchlistItems,
		Lists:          stats.Lists,
		Sessions24h:    stats.Sessions24h,
		Clicks24h:      stats.Clicks24h,
		TopServices:    toCountResponses(stats.TopServices),
		TopCards:       toCountResponses(stats.TopCards),
		GeneratedAt:    now.UTC(),
	})
}

// handleEnrichCard fills the card's missing metadata from the lookup service.
// The card is left untouched when the lookup fails.
func (s *Server) handleEnrichCard(w http.ResponseWriter, r *http.Request) {
	if s.metadata == nil {
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Metadata lookup is not configured")
		return
	}

	card, err := s.repo.Cards.GetByID(r.Context(), chi.URLParam(r, "cardID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "get card", err)
		return
	}
	if card.IMDbID == nil || *card.IMDbID == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Card has no imdbId to look up")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.OMDBTimeoutSecs)*time.Second)
	defer cancel()

	result, err := s.metadata.Lookup(ctx, *card.IMDbID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "No metadata found for this card")
			return
		}
		s.logger.Warn("metadata lookup failed", zap.String("card_id", card.ID), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Metadata lookup failed")
		return
	}

	updated, err := s.repo.Cards.FillMetadata(r.Context(), card.ID, repository.CardMetadata{
		PosterURL: result.PosterURL,
		Plot:      result.Plot,
		Rating:    result.Rating,
		Runtime:   result.Runtime,
		Director:  result.Director,
		Country:   result.Country,
		Genres:    result.Genres,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "fill metadata", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toCardResponse(updated))
}

func toCountResponses(counts []domain.CountByKey) []countResponse {
	out := make([]countResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, countResponse{Key: c.Key, Label: c.Label, Count: c.Count})
	}
	return out
}
