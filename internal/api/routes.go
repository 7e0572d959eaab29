package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"seasonstay/internal/catalog"
	"seasonstay/internal/favorites"
	"seasonstay/internal/metrics"
	"seasonstay/internal/session"
)

// Deps are the services the router serves
type Deps struct {
	Catalog        *catalog.Catalog
	Places         Places
	Favorites      *favorites.Stores
	Sessions       *session.Manager
	Logger         zerolog.Logger
	Environment    string
	AllowedOrigins []string
}

// NewRouter creates and configures the Chi router
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(RequestID(deps.Logger))
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(deps.AllowedOrigins))
	r.Use(metrics.HTTPMiddleware)

	h := NewHandlers(deps)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/listings", h.ListListings)
		r.Get("/listings/{id}", h.GetListing)
		r.Get("/filters/options", h.GetFilterOptions)

		r.Get("/places/search", h.SearchPlaces)
		r.Get("/places/reverse", h.ReversePlace)

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", h.ListFavorites)
			r.Get("/{id}", h.GetFavorite)
			r.Post("/{id}/toggle", h.ToggleFavorite)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Put("/query", h.SetSessionQuery)
				r.Post("/select", h.SelectSessionPlace)
				r.Patch("/filters", h.PatchSessionFilters)
				r.Post("/panels/{panel}", h.ToggleSessionPanel)
				r.Post("/click", h.SessionClick)
			})
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return r
}
