// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cinegraph/internal/config"
	"github.com/tomtom215/cinegraph/internal/models"
	"github.com/tomtom215/cinegraph/internal/store"
)

type recordedEnqueue struct {
	kind       models.Kind
	externalID int64
	localID    int64
	delay      time.Duration
}

type fakeQueue struct {
	calls []recordedEnqueue
	err   error
}

func (q *fakeQueue) Enqueue(kind models.Kind, externalID, localID int64, delay time.Duration) error {
	if q.err != nil {
		return q.err
	}
	q.calls = append(q.calls, recordedEnqueue{kind: kind, externalID: externalID, localID: localID, delay: delay})
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newFixture(cfg config.Webhook) (*Ingester, *store.MemoryContentStore, *fakeQueue) {
	content := store.NewMemoryContentStore(nil)
	queue := &fakeQueue{}
	return New(cfg, content, queue), content, queue
}

func enabledConfig() config.Webhook {
	return config.Webhook{
		Enabled:        true,
		SettleDelay:    30 * time.Second,
		DeletionPolicy: config.DeletionMark,
	}
}

func TestHandleDisabled(t *testing.T) {
	ing, _, _ := newFixture(config.Webhook{Enabled: false})

	status, resp := ing.Handle(context.Background(), []byte(`{}`), http.Header{})

	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "error", resp.Status)
}

func TestHandleSignatureVerification(t *testing.T) {
	cfg := enabledConfig()
	cfg.Secret = "topsecret"
	ing, _, queue := newFixture(cfg)

	body := []byte(`{"action":"created","object_type":"movie","object_id":550,"title":"Fight Club"}`)

	status, _ := ing.Handle(context.Background(), body, http.Header{})
	assert.Equal(t, http.StatusUnauthorized, status, "missing signature must be rejected")

	header := http.Header{}
	header.Set(SignatureHeader, sign("wrongsecret", body))
	status, _ = ing.Handle(context.Background(), body, header)
	assert.Equal(t, http.StatusUnauthorized, status, "mismatched signature must be rejected")
	assert.Empty(t, queue.calls)

	header.Set(SignatureHeader, sign("topsecret", body))
	status, _ = ing.Handle(context.Background(), body, header)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, queue.calls, 1)
}

func TestHandleEmptySecretSkipsVerification(t *testing.T) {
	ing, _, queue := newFixture(enabledConfig())

	body := []byte(`{"action":"created","object_type":"movie","object_id":550}`)
	status, _ := ing.Handle(context.Background(), body, http.Header{})

	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, queue.calls, 1)
}

func TestHandleMalformedAndInvalidBodies(t *testing.T) {
	ing, _, _ := newFixture(enabledConfig())

	status, _ := ing.Handle(context.Background(), []byte(`not json`), http.Header{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ing.Handle(context.Background(), []byte(`{"action":"exploded","object_type":"movie","object_id":550}`), http.Header{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ing.Handle(context.Background(), []byte(`{"action":"created","object_type":"movie","object_id":0}`), http.Header{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreatedEstablishesPlaceholderAndQueues(t *testing.T) {
	ing, content, queue := newFixture(enabledConfig())

	body := []byte(`{"action":"created","object_type":"tv","object_id":1396,"title":"Breaking Bad"}`)
	status, resp := ing.Handle(context.Background(), body, http.Header{})

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)

	rec, err := content.FindByExternalID(context.Background(), models.KindSeries, 1396)
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", rec.Title)
	assert.Equal(t, models.StatusDraft, rec.Status)
	assert.Nil(t, rec.LastSyncedAt)

	require.Len(t, queue.calls, 1)
	assert.Equal(t, models.KindSeries, queue.calls[0].kind)
	assert.Equal(t, int64(1396), queue.calls[0].externalID)
	assert.Equal(t, rec.LocalID, queue.calls[0].localID)
	assert.Equal(t, 30*time.Second, queue.calls[0].delay)
}

func TestDuplicateCreatedYieldsSinglePlaceholder(t *testing.T) {
	ing, content, queue := newFixture(enabledConfig())

	body := []byte(`{"action":"created","object_type":"movie","object_id":550,"title":"Fight Club"}`)
	for i := 0; i < 2; i++ {
		status, _ := ing.Handle(context.Background(), body, http.Header{})
		require.Equal(t, http.StatusOK, status)
	}

	rec, err := content.FindByExternalID(context.Background(), models.KindMovie, 550)
	require.NoError(t, err)

	// Both deliveries resolve to the same local record.
	require.Len(t, queue.calls, 2)
	assert.Equal(t, rec.LocalID, queue.calls[0].localID)
	assert.Equal(t, rec.LocalID, queue.calls[1].localID)
}

func TestUpdatedForKnownRecordDoesNotCreate(t *testing.T) {
	ing, content, queue := newFixture(enabledConfig())

	localID, err := content.CreatePlaceholder(context.Background(), models.KindMovie, 550, "Fight Club")
	require.NoError(t, err)

	body := []byte(`{"action":"updated","object_type":"movie","object_id":550}`)
	status, _ := ing.Handle(context.Background(), body, http.Header{})

	require.Equal(t, http.StatusOK, status)
	require.Len(t, queue.calls, 1)
	assert.Equal(t, localID, queue.calls[0].localID)
}

func TestDeletedUnknownRecordIsNoop(t *testing.T) {
	ing, _, queue := newFixture(enabledConfig())

	body := []byte(`{"action":"deleted","object_type":"movie","object_id":999}`)
	status, resp := ing.Handle(context.Background(), body, http.Header{})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)
	assert.Empty(t, queue.calls)
}

func TestDeletedMarkPolicyKeepsRecordQueryable(t *testing.T) {
	cfg := enabledConfig()
	cfg.DeletionPolicy = config.DeletionMark
	ing, content, _ := newFixture(cfg)

	localID, err := content.CreatePlaceholder(context.Background(), models.KindMovie, 550, "Fight Club")
	require.NoError(t, err)

	body := []byte(`{"action":"deleted","object_type":"movie","object_id":550}`)
	status, _ := ing.Handle(context.Background(), body, http.Header{})
	require.Equal(t, http.StatusOK, status)

	rec, err := content.Get(context.Background(), localID)
	require.NoError(t, err, "marked record must remain queryable")
	assert.Equal(t, models.StatusUnavailable, rec.Status)
	assert.Equal(t, true, rec.Fields["unavailable"])
}

func TestDeletedHardPolicyRemovesRecord(t *testing.T) {
	cfg := enabledConfig()
	cfg.DeletionPolicy = config.DeletionHard
	ing, content, _ := newFixture(cfg)

	localID, err := content.CreatePlaceholder(context.Background(), models.KindMovie, 550, "Fight Club")
	require.NoError(t, err)

	body := []byte(`{"action":"deleted","object_type":"movie","object_id":550}`)
	status, _ := ing.Handle(context.Background(), body, http.Header{})
	require.Equal(t, http.StatusOK, status)

	_, err = content.Get(context.Background(), localID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeletedMarkDemotePolicy(t *testing.T) {
	cfg := enabledConfig()
	cfg.DeletionPolicy = config.DeletionMarkDemote
	cfg.DemoteStatus = models.StatusDraft
	ing, content, _ := newFixture(cfg)

	localID, err := content.CreatePlaceholder(context.Background(), models.KindSeries, 1396, "Breaking Bad")
	require.NoError(t, err)
	require.NoError(t, content.UpsertFields(context.Background(), localID, map[string]interface{}{"status": string(models.StatusPublished)}))

	body := []byte(`{"action":"deleted","object_type":"tv","object_id":1396}`)
	status, _ := ing.Handle(context.Background(), body, http.Header{})
	require.Equal(t, http.StatusOK, status)

	rec, err := content.Get(context.Background(), localID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, rec.Status)
	assert.Equal(t, true, rec.Fields["unavailable"])
}

func TestEnqueueFailureSurfacesAsInternalError(t *testing.T) {
	ing, _, queue := newFixture(enabledConfig())
	queue.err = assert.AnError

	body := []byte(`{"action":"created","object_type":"movie","object_id":550}`)
	status, resp := ing.Handle(context.Background(), body, http.Header{})

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "error", resp.Status)
}
