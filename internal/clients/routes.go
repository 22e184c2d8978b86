package clients

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients", h.list)
	r.Get("/clients/{id}", h.show)
	r.Post("/clients", h.create)
	r.Put("/clients/{id}", h.update)
	r.Delete("/clients/{id}", h.delete)
}
