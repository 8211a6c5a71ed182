// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router binds the handler to its middleware.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil middleware uses the defaults.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Global middleware, applied in order
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.With(router.chiMiddleware.RateLimitHealth()).Get("/healthz", h.Healthz)
	r.With(router.chiMiddleware.RateLimitHealth()).Handle("/metrics", promhttp.Handler())
	r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics)

		r.Get("/status", h.Status)
		r.Put("/network", h.SetNetwork)

		r.Route("/session", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitSession()).Post("/", h.Login)
			r.Delete("/", h.Logout)
		})

		r.Route("/sync", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitSync()).Post("/", h.TriggerSync)
			r.Get("/last", h.LastSync)
		})

		// Everything below acts on the logged-in user's data
		r.Group(func(r chi.Router) {
			r.Use(RequireSession(h.session))

			r.Route("/queues/{kind}", func(r chi.Router) {
				r.Get("/", h.PendingQueue)
				r.Get("/failed", h.FailedQueue)
				r.Delete("/failed", h.ClearFailed)
				r.Post("/failed/{queueId}/retry", h.RetryFailed)
			})

			if h.workouts != nil {
				r.Route("/workouts", h.workouts.Routes)
			}
			if h.templates != nil {
				r.Route("/templates", h.templates.Routes)
			}
			if h.profiles != nil {
				r.Route("/profile", h.profiles.Routes)
			}
		})
	})

	return r
}
