package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
	"github.com/Clark-Hu/ghost-guide/internal/repository"
)

type watchlistAddRequest struct {
	CardID string `json:"cardId" validate:"required,max=128"`
}

type reorderRequest struct {
	CardIDs []string `json:"cardIds" validate:"required,max=1000,dive,required,max=128"`
}

type watchlistItemResponse struct {
	CardID   string        `json:"cardId"`
	Position int           `json:"position"`
	AddedAt  time.Time     `json:"addedAt"`
	Card     *cardResponse `json:"card,omitempty"`
}

type watchlistResponse struct {
	Items []watchlistItemResponse `json:"items"`
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	s.respondWatchlist(w, r, http.StatusOK)
}

func (s *Server) respondWatchlist(w http.ResponseWriter, r *http.Request, status int) {
	items, err := s.repo.Watchlist.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.respondInternal(w, "list watchlist", err)
		return
	}
	resp := watchlistResponse{Items: make([]watchlistItemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, toWatchlistItemResponse(item))
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistAddRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	item, inserted, err := s.repo.Watchlist.Add(r.Context(), userIDFrom(r.Context()), req.CardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "add to watchlist", err)
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, toWatchlistItemResponse(item))
}

func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	err := s.repo.Watchlist.Remove(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "cardID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "remove from watchlist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReorderWatchlist answers with the reordered watchlist.
func (s *Server) handleReorderWatchlist(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	err := s.repo.Watchlist.Reorder(r.Context(), userIDFrom(r.Context()), req.CardIDs)
	if err != nil {
		if errors.Is(err, repository.ErrOrderMismatch) {
			s.respondError(w, http.StatusUnprocessableEntity, "ORDER_MISMATCH", "cardIds must list exactly the current items")
			return
		}
		s.respondInternal(w, "reorder watchlist", err)
		return
	}
	s.respondWatchlist(w, r, http.StatusOK)
}

func toWatchlistItemResponse(item domain.WatchlistItem) watchlistItemResponse {
	resp := watchlistItemResponse{
		CardID:   item.CardID,
		Position: item.Position,
		AddedAt:  item.AddedAt,
	}
	if item.Card != nil {
		card := toCardResponse(*item.Card)
		resp.Card = &card
	}
	return resp
}
