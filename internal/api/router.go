package api

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/JakeConal/smart-restaurant/internal/hub"
	"github.com/JakeConal/smart-restaurant/internal/logger"
)

func NewRouter(h *Handler, notifications *hub.Hub) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(logger.WithLogging)
		r.Use(chiMiddleware.Recoverer)

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/transition", h.TransitionOrder)
			r.Post("/{id}/bill-request", h.RequestBill)
			r.Post("/{id}/settle", h.SettleOrder)
		})

		r.Route("/api/payments", func(r chi.Router) {
			r.Post("/checkout", h.BeginCheckout)
			r.Get("/return", h.PaymentReturn)
		})
	})

	// The websocket upgrade needs the raw ResponseWriter, so no logging
	// wrapper on this route.
	r.Get("/ws", hub.Handler(notifications))

	return r
}
