package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/ghost-guide/internal/repository"
)

type sessionStartRequest struct {
	UserAgent string `json:"userAgent" validate:"max=512"`
	Referrer  string `json:"referrer" validate:"max=2048"`
}

type clickRequest struct {
	CardID    string  `json:"cardId" validate:"required,max=128"`
	Service   string  `json:"service" validate:"required,max=64"`
	Link      string  `json:"link" validate:"omitempty,url,max=2048"`
	SessionID *string `json:"sessionId" validate:"omitempty,uuid"`
}

type idResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if r.ContentLength != 0 {
		if !s.decodeAndValidate(w, r, &req) {
			return
		}
	}
	userAgent := strings.TrimSpace(req.UserAgent)
	if userAgent == "" {
		userAgent = truncate(r.UserAgent(), 512)
	}

	params := repository.SessionStartParams{
		UserAgent: userAgent,
		Referrer:  strings.TrimSpace(req.Referrer),
	}
	if userID := userIDFrom(r.Context()); userID != "" {
		params.UserID = &userID
	}

	session, err := s.repo.Events.StartSession(r.Context(), params)
	if err != nil {
		s.respondInternal(w, "start session", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, idResponse{ID: session.ID})
}

func (s *Server) handleSessionHeartbeat(w http.ResponseWriter, r *http.Request) {
	_, err := s.repo.Events.TouchSession(r.Context(), chi.URLParam(r, "sessionID"), s.now())
	s.respondSessionUpdate(w, err, "session heartbeat")
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	_, err := s.repo.Events.EndSession(r.Context(), chi.URLParam(r, "sessionID"), s.now())
	s.respondSessionUpdate(w, err, "end session")
}

func (s *Server) respondSessionUpdate(w http.ResponseWriter, err error, op string) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repository.ErrNotFound):
		s.respondNotFound(w)
	default:
		s.respondInternal(w, op, err)
	}
}

func (s *Server) handleRecordClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	click, err := s.repo.Events.RecordClick(r.Context(), repository.ClickParams{
		SessionID: req.SessionID,
		CardID:    req.CardID,
		Service:   strings.TrimSpace(req.Service),
		Link:      req.Link,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.respondInternal(w, "record click", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, idResponse{ID: click.ID})
}

func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	return v[:max]
}
