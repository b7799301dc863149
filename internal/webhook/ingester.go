// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

/*
Package webhook ingests provider change notifications.

Deliveries are verified against an HMAC-SHA256 signature over the raw body
(an empty configured secret means verification is explicitly skipped), then
parsed as a structured change event. Created and updated events establish a
local placeholder when needed and enqueue a deferred targeted sync; deleted
events apply the configured three-way deletion policy. Processing is
idempotent: placeholder creation is find-or-create and the queue coalesces
duplicate deliveries.
*/
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/logging"
	"github.com/tomtom215/cinegraph/internal/metrics"
	"github.com/tomtom215/cinegraph/internal/models"
	"github.com/tomtom215/cinegraph/internal/store"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Cinegraph-Signature"

// Enqueuer schedules deferred targeted syncs. Implemented by queue.Queue.
type Enqueuer interface {
	Enqueue(kind models.Kind, externalID, localID int64, delay time.Duration) error
}

// Ingester handles inbound change notifications.
type Ingester struct {
	cfg     config.Webhook
	content store.ContentStore
	queue   Enqueuer
}

// New creates an ingester.
func New(cfg config.Webhook, content store.ContentStore, queue Enqueuer) *Ingester {
	return &Ingester{cfg: cfg, content: content, queue: queue}
}

// Handle processes one delivery and returns the HTTP status plus the
// response envelope. It never executes a sync inline.
func (i *Ingester) Handle(ctx context.Context, body []byte, header http.Header) (int, *models.APIResponse) {
	if !i.cfg.Enabled {
		metrics.WebhookEvents.WithLabelValues("unknown", "disabled").Inc()
		return http.StatusForbidden, models.ErrorResponse("DISABLED", "Webhook ingestion is disabled")
	}

	if i.cfg.Secret != "" {
		if !i.verifySignature(body, header.Get(SignatureHeader)) {
			logging.Warn().Msg("Webhook signature mismatch")
			metrics.WebhookEvents.WithLabelValues("unknown", "unauthorized").Inc()
			return http.StatusUnauthorized, models.ErrorResponse("AUTHENTICATION_ERROR", "Webhook signature mismatch")
		}
	}

	var event models.ChangeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "malformed").Inc()
		return http.StatusBadRequest, models.ErrorResponse("VALIDATION_ERROR", "Unparseable event body")
	}
	if !event.Valid() {
		metrics.WebhookEvents.WithLabelValues(event.Action, "invalid").Inc()
		return http.StatusBadRequest, models.ErrorResponse("VALIDATION_ERROR", "Unrecognized action, object type, or object id")
	}

	switch event.Action {
	case models.ActionDeleted:
		return i.handleDeleted(ctx, &event)
	default:
		return i.handleUpsert(ctx, &event)
	}
}

// verifySignature compares the delivery signature in constant time.
func (i *Ingester) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(i.cfg.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (i *Ingester) handleUpsert(ctx context.Context, event *models.ChangeEvent) (int, *models.APIResponse) {
	kind := event.Kind()

	var localID int64
	rec, err := i.content.FindByExternalID(ctx, kind, event.ObjectID)
	switch {
	case err == nil:
		localID = rec.LocalID
	case errors.Is(err, store.ErrNotFound):
		localID, err = i.content.CreatePlaceholder(ctx, kind, event.ObjectID, event.Title)
		if err != nil {
			logging.Error().Err(err).Str("kind", string(kind)).Int64("external_id", event.ObjectID).Msg("Failed to create placeholder")
			metrics.WebhookEvents.WithLabelValues(event.Action, "error").Inc()
			return http.StatusInternalServerError, models.ErrorResponse("INTERNAL_ERROR", "Failed to create local record")
		}
	default:
		metrics.WebhookEvents.WithLabelValues(event.Action, "error").Inc()
		return http.StatusInternalServerError, models.ErrorResponse("INTERNAL_ERROR", "Local store lookup failed")
	}

	if err := i.queue.Enqueue(kind, event.ObjectID, localID, i.cfg.SettleDelay); err != nil {
		logging.Error().Err(err).Int64("local_id", localID).Msg("Failed to enqueue targeted sync")
		metrics.WebhookEvents.WithLabelValues(event.Action, "error").Inc()
		return http.StatusInternalServerError, models.ErrorResponse("INTERNAL_ERROR", "Failed to schedule sync")
	}

	logging.Info().
		Str("action", event.Action).
		Str("kind", string(kind)).
		Int64("external_id", event.ObjectID).
		Int64("local_id", localID).
		Msg("Change event queued")
	metrics.WebhookEvents.WithLabelValues(event.Action, "queued").Inc()
	return http.StatusOK, models.SuccessResponse(map[string]interface{}{
		"queued":   true,
		"local_id": localID,
	})
}

func (i *Ingester) handleDeleted(ctx context.Context, event *models.ChangeEvent) (int, *models.APIResponse) {
	kind := event.Kind()

	rec, err := i.content.FindByExternalID(ctx, kind, event.ObjectID)
	if errors.Is(err, store.ErrNotFound) {
		// Unknown record: deletion is a no-op, not an error.
		metrics.WebhookEvents.WithLabelValues(event.Action, "noop").Inc()
		return http.StatusOK, models.SuccessResponse(map[string]interface{}{"deleted": false})
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(event.Action, "error").Inc()
		return http.StatusInternalServerError, models.ErrorResponse("INTERNAL_ERROR", "Local store lookup failed")
	}

	if err := i.content.DeleteOrMark(ctx, rec.LocalID, i.cfg.DeletionPolicy, i.cfg.DemoteStatus); err != nil {
		logging.Error().Err(err).Int64("local_id", rec.LocalID).Msg("Failed to apply deletion policy")
		metrics.WebhookEvents.WithLabelValues(event.Action, "error").Inc()
		return http.StatusInternalServerError, models.ErrorResponse("INTERNAL_ERROR", "Failed to apply deletion policy")
	}

	logging.Info().
		Str("kind", string(kind)).
		Int64("external_id", event.ObjectID).
		Int64("local_id", rec.LocalID).
		Str("policy", string(i.cfg.DeletionPolicy)).
		Msg("Deletion notification applied")
	metrics.WebhookEvents.WithLabelValues(event.Action, "applied").Inc()
	return http.StatusOK, models.SuccessResponse(map[string]interface{}{
		"deleted":  true,
		"local_id": rec.LocalID,
		"policy":   string(i.cfg.DeletionPolicy),
	})
}
