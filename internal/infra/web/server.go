package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/queue"
	"document-ai-pipeline/internal/usecase"
)

// RateLimiter guards the search endpoint. A nil limiter disables limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server exposes the pipeline API: document upload and processing, job
// inspection and requeue, similarity search, health and metrics.
type Server struct {
	docUC    *usecase.DocumentUseCase
	searchUC *usecase.SearchUseCase
	queue    *queue.Queue
	limiter  RateLimiter
	search   config.SearchConfig
	apiKey   string
	log      *zerolog.Logger
}

func NewServer(
	docUC *usecase.DocumentUseCase,
	searchUC *usecase.SearchUseCase,
	q *queue.Queue,
	limiter RateLimiter,
	search config.SearchConfig,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	wlog := logger.With().Str("component", "web").Logger()
	return &Server{
		docUC:    docUC,
		searchUC: searchUC,
		queue:    q,
		limiter:  limiter,
		search:   search,
		apiKey:   apiKey,
		log:      &wlog,
	}
}

// Router builds the chi route tree. Everything under /api/v1 requires the
// bearer API key.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/documents", s.handleUploadDocument)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Post("/documents/{id}/process", s.handleProcessDocument)

		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/{id}/requeue", s.handleRequeueJob)

		r.Post("/search", s.handleSearch)
	})

	return r
}

// authMiddleware provides simple Bearer token authentication for the API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
