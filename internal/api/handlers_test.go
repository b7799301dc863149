// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/models"
	"github.com/tomtom215/cinegraph/internal/respcache"
	"github.com/tomtom215/cinegraph/internal/store"
	"github.com/tomtom215/cinegraph/internal/webhook"
)

type stubQueue struct {
	enqueued []int64
	depth    int
	err      error
}

func (q *stubQueue) Enqueue(_ models.Kind, _, localID int64, _ time.Duration) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, localID)
	return nil
}

func (q *stubQueue) Depth() int { return q.depth }

type apiFixture struct {
	router  http.Handler
	content *store.MemoryContentStore
	runs    *store.MemoryRunStore
	queue   *stubQueue
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	content := store.NewMemoryContentStore(nil)
	runs := store.NewMemoryRunStore()
	queue := &stubQueue{}
	cache := respcache.New(respcache.NewMemoryStore(), respcache.Options{MaxEntries: 100})
	ingester := webhook.New(config.Webhook{
		Enabled:        true,
		SettleDelay:    time.Second,
		DeletionPolicy: config.DeletionMark,
	}, content, queue)

	h := NewHandlers(ingester, cache, nil, runs, content, queue, nil)
	return &apiFixture{
		router:  NewRouter(config.Server{WebhookRateLimit: 1000}, h),
		content: content,
		runs:    runs,
		queue:   queue,
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "success", resp.Status)
}

func TestWebhookEndpointQueuesEvent(t *testing.T) {
	f := newAPIFixture(t)

	body := []byte(`{"action":"created","object_type":"movie","object_id":550,"title":"Fight Club"}`)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.queue.enqueued, 1)

	_, err := f.content.FindByExternalID(context.Background(), models.KindMovie, 550)
	assert.NoError(t, err)
}

func TestWebhookEndpointRejectsOversizedBody(t *testing.T) {
	f := newAPIFixture(t)

	body := bytes.Repeat([]byte("x"), maxWebhookBody+1)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSyncRunsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	run := &models.SyncRunRecord{ID: "run-1", RunType: models.RunIncremental, StartedAt: time.Now()}
	require.NoError(t, f.runs.StartRun(context.Background(), run))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/runs?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	runs, ok := data["runs"].([]interface{})
	require.True(t, ok)
	assert.Len(t, runs, 1)
}

func TestSyncStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.queue.depth = 3

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 3, data["queue_depth"].(float64), 0.01)
	assert.Contains(t, data, "cache")
}

func TestTriggerSyncEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	localID, err := f.content.CreatePlaceholder(context.Background(), models.KindMovie, 550, "Fight Club")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	target := "/api/v1/sync/item/" + strconv.FormatInt(localID, 10)
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Contains(t, f.queue.enqueued, localID)
}

func TestTriggerSyncUnknownRecord(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/item/9999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/item/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSyncRecordWithoutProviderID(t *testing.T) {
	f := newAPIFixture(t)

	localID, err := f.content.CreatePlaceholder(context.Background(), models.KindMovie, 0, "Orphan")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/item/"+strconv.FormatInt(localID, 10), nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsEndpointExposed(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

