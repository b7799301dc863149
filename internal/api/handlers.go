// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package api provides the HTTP surface: webhook intake, run and stats
// introspection, targeted sync triggers, health, and Prometheus metrics.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cinegraph/internal/models"
	"github.com/tomtom215/cinegraph/internal/ratelimit"
	"github.com/tomtom215/cinegraph/internal/respcache"
	"github.com/tomtom215/cinegraph/internal/store"
	"github.com/tomtom215/cinegraph/internal/webhook"
)

// maxWebhookBody bounds webhook request bodies. Provider change events are
// small; anything past this is garbage or abuse.
const maxWebhookBody = 1 << 20

// TaskQueue is the queue surface the API needs: targeted sync triggers and
// depth for the stats endpoint. Implemented by queue.Queue.
type TaskQueue interface {
	Enqueue(kind models.Kind, externalID, localID int64, delay time.Duration) error
	Depth() int
}

// LimiterInspector exposes rate limiter windows for the stats endpoint.
// Implemented by ratelimit.Limiter and ratelimit.AdaptiveLimiter.
type LimiterInspector interface {
	Snapshot(endpoint string) (*ratelimit.Window, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	ingester *webhook.Ingester
	cache    *respcache.Cache
	limiter  LimiterInspector
	runs     store.SyncRunStore
	content  store.ContentStore
	queue    TaskQueue
	health   func() error
	started  time.Time
}

// NewHandlers wires the handler set. health may be nil.
func NewHandlers(ingester *webhook.Ingester, cache *respcache.Cache, limiter LimiterInspector,
	runs store.SyncRunStore, content store.ContentStore, queue TaskQueue, health func() error) *Handlers {
	return &Handlers{
		ingester: ingester,
		cache:    cache,
		limiter:  limiter,
		runs:     runs,
		content:  content,
		queue:    queue,
		health:   health,
		started:  time.Now(),
	}
}

// Health reports process liveness and backing-store reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	var detail string
	if h.health != nil {
		if err := h.health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			detail = err.Error()
		}
	}
	respondJSON(w, code, models.SuccessResponse(map[string]interface{}{
		"status":         status,
		"detail":         detail,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}))
}

// Webhook receives provider change notifications. Signature verification
// and event handling live in the ingester; this handler only moves bytes.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read request body", err)
		return
	}
	if len(body) > maxWebhookBody {
		respondError(w, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Request body too large", nil)
		return
	}

	status, resp := h.ingester.Handle(r.Context(), body, r.Header)
	respondJSON(w, status, resp)
}

// SyncRuns returns recent scheduled run summaries, most recent first.
func (h *Handlers) SyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 20, 1, 200)
	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load runs", err)
		return
	}
	if runs == nil {
		runs = []models.SyncRunRecord{}
	}
	respondJSON(w, http.StatusOK, models.SuccessResponse(map[string]interface{}{
		"runs": runs,
	}))
}

// SyncStats exposes cache totals, queue depth, recent runs, and (when the
// endpoint query parameter names one) a rate limiter window snapshot.
func (h *Handlers) SyncStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"cache":       h.cache.GetStats(),
		"queue_depth": h.queue.Depth(),
	}

	if runs, err := h.runs.RecentRuns(r.Context(), 5); err == nil {
		stats["recent_runs"] = runs
	}

	if endpoint := r.URL.Query().Get("endpoint"); endpoint != "" && h.limiter != nil {
		if window, err := h.limiter.Snapshot(endpoint); err == nil {
			stats["rate_window"] = map[string]interface{}{
				"in_window":            len(window.Requests),
				"consecutive_failures": window.ConsecutiveFailures,
				"total_allowed":        window.TotalAllowed,
				"total_denied":         window.TotalDenied,
			}
		}
	}

	respondJSON(w, http.StatusOK, models.SuccessResponse(stats))
}

// TriggerSync queues a targeted sync for one local record. The sync itself
// runs on the queue worker; this endpoint only schedules it.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	localID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || localID <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid record id", nil)
		return
	}

	kind, externalID, err := h.content.GetExternalID(r.Context(), localID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No such record", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve record", err)
		return
	}
	if externalID <= 0 {
		respondError(w, http.StatusConflict, "VALIDATION_ERROR", "Record has no provider id", nil)
		return
	}

	if err := h.queue.Enqueue(kind, externalID, localID, 0); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to schedule sync", err)
		return
	}
	respondJSON(w, http.StatusAccepted, models.SuccessResponse(map[string]interface{}{
		"queued":   true,
		"local_id": localID,
	}))
}

// intQuery reads an integer query parameter with a default and bounds.
func intQuery(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return def
	}
	return v
}
