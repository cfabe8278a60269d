// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/wardrobe/internal/config"
	"github.com/tomtom215/wardrobe/internal/middleware"
)

// NewRouter wires the full HTTP surface: CORS, rate limiting, request ids,
// metrics, the wardrobe CRUD endpoints, and the WebSocket push channel.
func NewRouter(cfg config.ServerConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Liveness probe stays outside the rate limiter so client reachability
	// checks are never throttled.
	r.Get("/healthz", handler.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", handler.WebSocket)

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(
			cfg.RateLimitReqs,
			cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited),
		))
		r.Use(middleware.PrometheusMetrics)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", handler.ListItems)
			r.Post("/", handler.CreateItem)
			r.Put("/{id}", handler.UpdateItem)
			r.Delete("/{id}", handler.DeleteItem)
		})

		r.Route("/outfits", func(r chi.Router) {
			r.Get("/", handler.ListOutfits)
			r.Post("/", handler.CreateOutfit)
			r.Put("/{id}", handler.UpdateOutfit)
			r.Delete("/{id}", handler.DeleteOutfit)
		})
	})

	return r
}

// rateLimited mirrors the standard error envelope for throttled requests.
func rateLimited(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded")
}
