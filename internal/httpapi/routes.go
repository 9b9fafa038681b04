// internal/httpapi/routes.go
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes builds the /api/v1 router.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Post("/session/start", h.StartSession)
		r.Post("/session/stop", h.StopSession)
		r.Get("/stats", h.GetStats)
		r.Get("/trades", h.GetTrades)
		r.Get("/markers", h.GetMarkers)
	})

	return r
}
