package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Clark-Hu/ghost-guide/internal/config"
	"github.com/Clark-Hu/ghost-guide/internal/epg"
	"github.com/Clark-Hu/ghost-guide/internal/metadata"
	"github.com/Clark-Hu/ghost-guide/internal/repository"
	"github.com/Clark-Hu/ghost-guide/internal/store"
)

// Guide serves live-TV windows.
type Guide interface {
	Programs(ctx context.Context, w epg.Window) epg.Result
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	store    *store.Store
	repo     *repository.Repository
	metadata metadata.Client
	guide    Guide
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes. meta may be
// nil when no metadata credentials are configured.
func New(cfg config.Config, st *store.Store, repo *repository.Repository, meta metadata.Client, guide Guide, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:      cfg,
		store:    st,
		repo:     repo,
		metadata: meta,
		guide:    guide,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
		router:   r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/cards", func(r chi.Router) {
		r.Get("/", s.handleListCards)
		r.Get("/filters", s.handleFilterOptions)
		r.Get("/{cardID}", s.handleGetCard)
	})
	s.router.Get("/epg", s.handleEPG)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.handleGetWatchlist)
			r.Post("/", s.handleAddToWatchlist)
			r.Put("/order", s.handleReorderWatchlist)
			r.Delete("/{cardID}", s.handleRemoveFromWatchlist)
		})
		r.Get("/me/lists", s.handleMyLists)
	})

	s.router.Route("/lists", func(r chi.Router) {
		r.Get("/community", s.handleCommunityLists)
		r.With(s.optionalUser).Get("/{list}", s.handleGetList)
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/", s.handleCreateList)
			r.Delete("/{list}", s.handleDeleteList)
			r.Post("/{list}/items", s.handleAddListItem)
			r.Delete("/{list}/items/{cardID}", s.handleRemoveListItem)
			r.Put("/{list}/order", s.handleReorderList)
		})
	})

	s.router.Route("/events", func(r chi.Router) {
		r.Use(s.optionalUser)
		r.Post("/sessions", s.handleStartSession)
		r.Post("/sessions/{sessionID}/heartbeat", s.handleSessionHeartbeat)
		r.Post("/sessions/{sessionID}/end", s.handleEndSession)
		r.Post("/clicks", s.handleRecordClick)
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/stats", s.handleAdminStats)
		r.Post("/cards/{cardID}/enrich", s.handleEnrichCard)
	})
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown failed", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
