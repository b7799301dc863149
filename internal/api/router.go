// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/middleware"
)

// NewRouter builds the HTTP routing tree.
func NewRouter(cfg config.Server, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Prometheus)

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook intake gets its own per-IP budget: providers retry
		// aggressively, and a misbehaving sender must not starve the rest
		// of the API.
		r.With(httprate.LimitByIP(positiveOr(cfg.WebhookRateLimit, 120), time.Minute)).
			Post("/webhook", h.Webhook)

		r.Get("/health", h.Health)

		r.Route("/sync", func(r chi.Router) {
			r.Use(httprate.LimitByIP(300, time.Minute))
			r.Get("/runs", h.SyncRuns)
			r.Get("/stats", h.SyncStats)
			r.Post("/item/{id}", h.TriggerSync)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
