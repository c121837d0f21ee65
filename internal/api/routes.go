package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inmo-search/internal/db"
	"inmo-search/internal/search"
)

// NewRouter creates and configures the Chi router
func NewRouter(database *db.DB, synonyms *search.Synonyms) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(Logger)
	r.Use(CORS)

	// Create handlers
	h := NewHandlers(database, synonyms)

	// Public API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/propiedades", h.ListListings)
		r.Get("/propiedades/{codigo}", h.GetListing)
		r.Get("/buscar", h.SearchListings)
		r.Get("/cercanas", h.Nearby)
		r.Get("/destacadas", h.Featured)
		r.Get("/filtros/opciones", h.GetFilterOptions)

		// Staff panel: IP allowlist (when enabled) in front of everything,
		// session auth on the management routes.
		r.Route("/panel", func(r chi.Router) {
			r.Use(NewIPAllowlistFromEnv().Middleware)

			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireStaff)
				r.Get("/propiedades", h.PanelListListings)
				r.Post("/propiedades", h.PanelCreateListing)
				r.Put("/propiedades/{codigo}", h.PanelUpdateListing)
				r.Post("/propiedades/{codigo}/estado", h.PanelSetEstado)
			})
		})
	})

	return r
}
