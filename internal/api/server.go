// Package api provides the HTTP API server and handlers for the workspace server.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/http/response"
	"github.com/rebase-energy/workspace-server/internal/ratelimit"
	"github.com/rebase-energy/workspace-server/internal/sse"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// Options configures the HTTP layer.
type Options struct {
	AllowedOrigins []string
	// RateLimit is the number of mutating requests per minute allowed per
	// client IP. Zero disables limiting.
	RateLimit int
	Version   string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	gateway    store.Gateway
	services   *Services
	sseManager *sse.Manager
	limiter    *ratelimit.KeyedRateLimiter
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(gateway store.Gateway, services *Services, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	s := &Server{
		gateway:    gateway,
		services:   services,
		sseManager: sseManager,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if opts.RateLimit > 0 {
		s.limiter = ratelimit.PerMinute(opts.RateLimit)
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Workspace API", opts.Version)
	humaConfig.Info.Description = "Collections, entities and their memberships per workspace."
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerWorkspaceRoutes()
	s.registerCollectionRoutes()
	s.registerMembershipRoutes()
	s.registerEntityRoutes()
	s.registerSearchRoutes()
	s.registerCacheRoutes()
	s.registerEventRoutes()

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "route not found", s.logger)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w, s.logger)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.limiter != nil {
		s.router.Use(rateLimitMutations(s.limiter, s.logger))
	}
}

// workspace resolves the workspace named by a path slug, creating and
// seeding it on first use.
func (s *Server) workspace(ctx context.Context, slug string) (*domain.Workspace, error) {
	return s.services.Bootstrap.Ensure(ctx, slug)
}

func (s *Server) registerEventRoutes() {
	handler := sse.NewHandler(s.sseManager, func(ctx context.Context, slug string) (string, error) {
		ws, err := s.workspace(ctx, slug)
		if err != nil {
			return "", err
		}
		return ws.ID, nil
	}, s.logger)
	s.router.Get("/api/v1/workspaces/{slug}/events", handler.ServeHTTP)
}
