package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
	"github.com/Clark-Hu/ghost-guide/internal/repository"
)

type listCreateRequest struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=1000"`
	Kind        string `json:"kind" validate:"omitempty,oneof=curated community"`
	IsPublic    *bool  `json:"isPublic"`
}

type listItemRequest struct {
	CardID string `json:"cardId" validate:"required,max=128"`
	Note   string `json:"note" validate:"max=500"`
}

type listResponse struct {
	ID          string             `json:"id"`
	OwnerID     string             `json:"ownerId"`
	Slug        string             `json:"slug"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Kind        string             `json:"kind"`
	IsPublic    bool               `json:"isPublic"`
	ItemCount   int                `json:"itemCount"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Items       []listItemResponse `json:"items,omitempty"`
}

type listItemResponse struct {
	CardID   string        `json:"cardId"`
	Position int           `json:"position"`
	Note     string        `json:"note,omitempty"`
	AddedAt  time.Time     `json:"addedAt"`
	Card     *cardResponse `json:"card,omitempty"`
}

type listsResponse struct {
	Lists      []listResponse `json:"lists"`
	TotalCount *int64         `json:"totalCount,omitempty"`
	NextPage   *int           `json:"nextPage"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req listCreateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required")
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.ListKindCommunity
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	list, err := s.repo.Lists.Create(r.Context(), repository.ListCreateParams{
		OwnerID:     userIDFrom(r.Context()),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Kind:        kind,
		IsPublic:    isPublic,
	})
	if err != nil {
		s.respondInternal(w, "create list", err)
		return
	}
	w.Header().Set("Location", "/lists/"+list.Slug)
	s.respondJSON(w, http.StatusCreated, toListResponse(list, nil))
}

// handleGetList resolves a list by slug. Private lists are only visible to
// their owner; everyone else gets 404.
func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.Lists.GetBySlug(r.Context(), chi.URLParam(r, "list"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "get list", err)
		return
	}
	if !list.IsPublic && list.OwnerID != userIDFrom(r.Context()) {
		s.respondNotFound(w)
		return
	}

	items, err := s.repo.Lists.Items(r.Context(), list.ID)
	if err != nil {
		s.respondInternal(w, "list items", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toListResponse(list, items))
}

func (s *Server) handleCommunityLists(w http.ResponseWriter, r *http.Request) {
	page := 0
	if val := strings.TrimSpace(r.URL.Query().Get("page")); val != "" {
		p, err := strconv.Atoi(val)
		if err != nil || p < 0 {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid page value")
			return
		}
		page = p
	}

	result, err := s.repo.Lists.Community(r.Context(), page)
	if err != nil {
		s.respondInternal(w, "community lists", err)
		return
	}
	total := result.TotalCount
	resp := listsResponse{
		Lists:      toListResponses(result.Lists),
		TotalCount: &total,
		NextPage:   result.NextPage,
	}
	w.Header().Set("Cache-Control", browseCacheControl)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMyLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.repo.Lists.ListByOwner(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.respondInternal(w, "my lists", err)
		return
	}
	s.respondJSON(w, http.StatusOK, listsResponse{Lists: toListResponses(lists)})
}

// ownedList loads the list named by the {list} id parameter and checks the
// caller owns it, writing 404 or 403 otherwise.
func (s *Server) ownedList(w http.ResponseWriter, r *http.Request) (domain.List, bool) {
	list, err := s.repo.Lists.GetByID(r.Context(), chi.URLParam(r, "list"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return domain.List{}, false
		}
		s.respondInternal(w, "get list", err)
		return domain.List{}, false
	}
	if list.OwnerID != userIDFrom(r.Context()) {
		s.respondError(w, http.StatusForbidden, "FORBIDDEN", "Only the list owner may change it")
		return domain.List{}, false
	}
	return list, true
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	list, ok := s.ownedList(w, r)
	if !ok {
		return
	}
	if err := s.repo.Lists.Delete(r.Context(), list.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "delete list", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddListItem(w http.ResponseWriter, r *http.Request) {
	list, ok := s.ownedList(w, r)
	if !ok {
		return
	}
	var req listItemRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	item, inserted, err := s.repo.Lists.AddItem(r.Context(), list.ID, req.CardID, strings.TrimSpace(req.Note))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "add list item", err)
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, toListItemResponse(item))
}

func (s *Server) handleRemoveListItem(w http.ResponseWriter, r *http.Request) {
	list, ok := s.ownedList(w, r)
	if !ok {
		return
	}
	if err := s.repo.Lists.RemoveItem(r.Context(), list.ID, chi.URLParam(r, "cardID")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "remove list item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderList(w http.ResponseWriter, r *http.Request) {
	list, ok := s.ownedList(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.repo.Lists.Reorder(r.Context(), list.ID, req.CardIDs); err != nil {
		if errors.Is(err, repository.ErrOrderMismatch) {
			s.respondError(w, http.StatusUnprocessableEntity, "ORDER_MISMATCH", "cardIds must list exactly the current items")
			return
		}
		s.respondInternal(w, "reorder list", err)
		return
	}

	items, err := s.repo.Lists.Items(r.Context(), list.ID)
	if err != nil {
		s.respondInternal(w, "list items", err)
		return
	}
	list.ItemCount = len(items)
	s.respondJSON(w, http.StatusOK, toListResponse(list, items))
}

func toListResponses(lists []domain.List) []listResponse {
	out := make([]listResponse, 0, len(lists))
	for _, l := range lists {
		out = append(out, toListResponse(l, nil))
	}
	return out
}

func toListResponse(l domain.List, items []domain.ListItem) listResponse {
	resp := listResponse{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		Slug:        l.Slug,
		Title:       l.Title,
		Description: l.Description,
		Kind:        l.Kind,
		IsPublic:    l.IsPublic,
		ItemCount:   l.ItemCount,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if items != nil {
		resp.Items = make([]listItemResponse, 0, len(items))
		for _, item := range items {
			resp.Items = append(resp.Items, toListItemResponse(item))
		}
	}
	return resp
}

func toListItemResponse(item domain.ListItem) listItemResponse {
	resp := listItemResponse{
		CardID:   item.CardID,
		Position: item.Position,
		Note:     item.Note,
		AddedAt:  item.AddedAt,
	}
	if item.Card != nil {
		card := toCardResponse(*item.Card)
		resp.Card = &card
	}
	return resp
}
