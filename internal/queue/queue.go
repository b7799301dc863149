// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

/*
Package queue implements the durable deferred sync queue.

Webhook deliveries do not sync inline: they enqueue a targeted task with a
visibility delay so provider-side consistency can settle first. Tasks are
keyed by (kind, external id), so duplicate deliveries for the same object
coalesce into one pending task instead of piling up. The queue is
badger-backed: pending tasks survive a process restart.
*/
package queue

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/metrics"
	"github.com/tomtom215/cinegraph/internal/models"
)

var taskPrefix = []byte("task:")

// Task is one deferred targeted sync.
type Task struct {
	ID         string      `json:"id"`
	Kind       models.Kind `json:"kind"`
	ExternalID int64       `json:"external_id"`
	LocalID    int64       `json:"local_id"`
	Attempts   int         `json:"attempts"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	// VisibleAt is when the task becomes eligible for the worker.
	VisibleAt time.Time `json:"visible_at"`
}

// coalesceKey is the storage key: one pending task per (kind, external id).
func coalesceKey(kind models.Kind, externalID int64) []byte {
	return []byte(fmt.Sprintf("task:%s:%d", kind, externalID))
}

// Queue is the badger-backed deferred task queue.
type Queue struct {
	db     *badger.DB
	clk    clock.Clock
	ownsDB bool
}

// Open creates (or reopens) a queue at dir. Pending tasks from a previous
// process are picked up as-is.
func Open(dir string, clk clock.Clock) (*Queue, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue at %s: %w", dir, err)
	}
	q := NewWithDB(db, clk)
	q.ownsDB = true
	return q, nil
}

// NewWithDB wraps an already-open badger database (shared store directory,
// or in-memory for tests).
func NewWithDB(db *badger.DB, clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Queue{db: db, clk: clk}
}

// Enqueue schedules a targeted sync for (kind, externalID) after delay.
// If a pending task for the same object already exists, the delivery
// coalesces into it: the earlier visibility time wins and no second task
// is created. The coalesced record takes this delivery's identity, so a
// Complete racing on an in-flight task leaves it pending.
func (q *Queue) Enqueue(kind models.Kind, externalID, localID int64, delay time.Duration) error {
	now := q.clk.Now()
	task := Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		ExternalID: externalID,
		LocalID:    localID,
		EnqueuedAt: now,
		VisibleAt:  now.Add(delay),
	}

	err := q.db.Update(func(txn *badger.Txn) error {
		key := coalesceKey(kind, externalID)
		if item, err := txn.Get(key); err == nil {
			var existing Task
			decodeErr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			})
			if decodeErr == nil {
				if existing.VisibleAt.Before(task.VisibleAt) {
					task.VisibleAt = existing.VisibleAt
				}
				task.EnqueuedAt = existing.EnqueuedAt
			}
		}
		raw, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return txn.Set(key, raw)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue task for %s/%d: %w", kind, externalID, err)
	}
	q.publishDepth()
	return nil
}

// Due returns up to limit tasks whose visibility time has passed.
func (q *Queue) Due(limit int) ([]Task, error) {
	now := q.clk.Now()
	var due []Task

	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = taskPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(due) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var task Task
				if err := json.Unmarshal(val, &task); err != nil {
					// Undecodable task: skip; Complete cleans it up later
					// via the raw key path.
					return nil
				}
				if !task.VisibleAt.After(now) {
					due = append(due, task)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// Complete removes a finished (or permanently failed) task. When a newer
// delivery coalesced onto the same object while this task was in flight,
// the pending record is not touched; the worker picks it up on a later
// pass.
func (q *Queue) Complete(task Task) error {
	err := q.db.Update(func(txn *badger.Txn) error {
		key := coalesceKey(task.Kind, task.ExternalID)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var stored Task
		decodeErr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
		if decodeErr == nil && stored.ID != task.ID {
			return nil
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	q.publishDepth()
	return nil
}

// Retry re-schedules a failed task after delay, bumping its attempt count.
// The caller decides when attempts are exhausted. A task superseded by a
// newer coalesced delivery is not rescheduled; the pending record already
// covers the object.
func (q *Queue) Retry(task Task, delay time.Duration) error {
	task.Attempts++
	task.VisibleAt = q.clk.Now().Add(delay)

	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.db.Update(func(txn *badger.Txn) error {
		key := coalesceKey(task.Kind, task.ExternalID)
		if item, err := txn.Get(key); err == nil {
			var stored Task
			decodeErr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if decodeErr == nil && stored.ID != task.ID {
				return nil
			}
		}
		return txn.Set(key, raw)
	})
}

// Depth counts all pending tasks, visible or not.
func (q *Queue) Depth() int {
	count := 0
	_ = q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = taskPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if bytes.HasPrefix(it.Item().Key(), taskPrefix) {
				count++
			}
		}
		return nil
	})
	return count
}

func (q *Queue) publishDepth() {
	metrics.QueueDepth.Set(float64(q.Depth()))
}

// Close releases the underlying database when this queue owns it.
func (q *Queue) Close() error {
	if q.ownsDB {
		return q.db.Close()
	}
	return nil
}
