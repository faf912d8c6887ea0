// Package web serves the read-only catalog dashboard and its JSON API.
package web

import (
	"log/slog"
	"net/http"

	"github.com/duckalog/duckalog/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Options configures the optional HTTP surfaces.
type Options struct {
	// BearerToken, when set, is required on every route but /health.
	BearerToken string
	// CORSOrigins enables CORS on /api for the listed origins.
	CORSOrigins []string
}

// Handler holds the services behind the dashboard.
type Handler struct {
	Explorer *service.ExplorerService
	Query    *service.QueryService
	Logger   *slog.Logger
	Version  string
}

func NewHandler(explorer *service.ExplorerService, query *service.QueryService, logger *slog.Logger, version string) *Handler {
	return &Handler{
		Explorer: explorer,
		Query:    query,
		Logger:   logger,
		Version:  version,
	}
}

// NewRouter mounts the dashboard and API routes.
func NewRouter(h *Handler, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware(h.Logger))
	r.Use(requestLogger(h.Logger))

	r.Get("/health", h.Health)

	r.Get("/", h.ViewsPage)
	r.Get("/views/{schema}/{name}", h.ViewPage)
	r.Get("/views/{schema}/{name}/profile", h.ProfilePage)
	r.Get("/query", h.QueryPage)
	r.Post("/query", h.QueryRun)

	r.Route("/api", func(r chi.Router) {
		if len(opts.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: opts.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				MaxAge:         300,
			}))
		}
		r.Get("/schemas", h.APISchemas)
		r.Get("/views", h.APIViews)
		r.Get("/views/{schema}/{name}", h.APIView)
		r.Post("/query", h.APIQuery)
		r.Post("/check", h.APICheck)
	})

	if opts.BearerToken != "" {
		return bearerAuthMiddleware(r, opts.BearerToken)
	}
	return r
}
