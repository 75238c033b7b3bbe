package httpserver

import (
	"net/http"
	"time"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
	"github.com/Clark-Hu/ghost-guide/internal/epg"
)

const epgCacheControl = "public, max-age=60, stale-while-revalidate=300"

type programResponse struct {
	ID            string    `json:"id"`
	ChannelID     string    `json:"channelId"`
	ChannelName   string    `json:"channelName"`
	ChannelNumber int       `json:"channelNumber"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Genre         string    `json:"genre,omitempty"`
	Start         time.Time `json:"start"`
	Stop          time.Time `json:"stop"`
	Category      string    `json:"category"`
}

type epgResponse struct {
	Window      string            `json:"window"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Programs    []programResponse `json:"programs"`
	Degraded    bool              `json:"degraded"`
}

func (s *Server) handleEPG(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	window, err := epg.ParseWindow(query.Get("window"), query.Get("hours"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result := s.guide.Programs(r.Context(), window)
	resp := epgResponse{
		Window:      result.Window,
		GeneratedAt: result.GeneratedAt,
		Programs:    make([]programResponse, 0, len(result.Programs)),
		Degraded:    result.Degraded,
	}
	for _, p := range result.Programs {
		resp.Programs = append(resp.Programs, toProgramResponse(p))
	}
	if !result.Degraded {
		w.Header().Set("Cache-Control", epgCacheControl)
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func toProgramResponse(p domain.Program) programResponse {
	return programResponse{
		ID:            p.ID,
		ChannelID:     p.ChannelID,
		ChannelName:   p.ChannelName,
		ChannelNumber: p.ChannelNumber,
		Title:         p.Title,
		Description:   p.Description,
		Genre:         p.Genre,
		Start:         p.Start,
		Stop:          p.Stop,
		Category:      p.Category,
	}
}
