// Package httpapi exposes sync control and article maintenance over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"newsdesk/internal/domain"
	"newsdesk/internal/service"
)

// ActorHeader carries the id of the acting admin, set by the upstream gateway
// after authentication.
const ActorHeader = "X-Admin-ID"

type SyncService interface {
	RunSync(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error)
	GetStatus(ctx context.Context) (*domain.SyncStatusReport, error)
	GetLogs(ctx context.Context, page, limit int, status string) (*domain.SyncLogPage, error)
}

type ArticleService interface {
	Get(ctx context.Context, id string) (*domain.Article, error)
	Create(ctx context.Context, input service.ArticleInput, actorID string) (*domain.Article, error)
	Update(ctx context.Context, id string, fields domain.ArticleFields, actorID string) (*domain.Article, error)
	List(ctx context.Context, query service.ArticleQuery) (*domain.ArticlePage, error)
	Delete(ctx context.Context, id string, actorID string) error
}

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	router   *chi.Mux
	sync     SyncService
	articles ArticleService
	db       Pinger
	logger   *slog.Logger
}

func New(sync SyncService, articles ArticleService, db Pinger, logger *slog.Logger, requestTimeout time.Duration) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		sync:     sync,
		articles: articles,
		db:       db,
		logger:   logger.With("component", "http"),
	}

	s.setupRoutes(requestTimeout)
	return s
}

func (s *Server) setupRoutes(requestTimeout time.Duration) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	timeout := func(next http.Handler) http.Handler { return next }
	if requestTimeout > 0 {
		timeout = middleware.Timeout(requestTimeout)
	}

	s.router.With(timeout).Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			// A run may outlast any fixed request timeout and keeps going
			// without the client, so the trigger is not bounded here.
			r.Post("/", s.handleTriggerSync)
			r.With(timeout).Get("/status", s.handleSyncStatus)
			r.With(timeout).Get("/logs", s.handleSyncLogs)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Use(timeout)
			r.Get("/", s.handleListArticles)
			r.Post("/", s.handleCreateArticle)
			r.Get("/{id}", s.handleGetArticle)
			r.Patch("/{id}", s.handleUpdateArticle)
			r.Delete("/{id}", s.handleDeleteArticle)
		})
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "database unreachable", nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"status": "ok"}})
}
