package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/ibeloyar/payrelay/pgk/auth"
	"golang.org/x/time/rate"
)

const apiTimeout = 30 * time.Second

// InitRoutes mounts the API. The event stream is kept out of the request
// timeout group since it is long-lived.
func InitRoutes(r *chi.Mux, c *Controller, orderLimiter *rate.Limiter, metricsHandler http.Handler) *chi.Mux {
	r.Get("/ping", c.Ping)

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(apiTimeout))

			r.Post("/webhooks/bank", c.Webhook)
			r.With(RateLimit(orderLimiter)).Post("/orders", c.CreateOrder)
			r.Get("/orders/{code}", c.GetOrder)
		})

		r.With(auth.AuthBearerMiddlewareInit[model.StreamTokenInfo](c.opts.StreamSecret)).
			Get("/events", c.Events)
	})

	return r
}
