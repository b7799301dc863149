// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package ratelimit

import (
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// BadgerStore persists rate windows so that admission state survives process
// restarts. Persistence is a performance nicety only: losing it means the
// limiter briefly over-admits after a restart, which the provider-side 429
// handling absorbs.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte

	// mu serializes read-modify-write cycles per store. Badger transactions
	// would detect conflicts, but retry loops are more machinery than this
	// low-key-cardinality store needs.
	mu sync.Mutex
}

// NewBadgerStore opens (or creates) a badger-backed window store at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open rate window store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, prefix: []byte("rw:")}, nil
}

// NewBadgerStoreWithDB wraps an already-open badger database.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, prefix: []byte("rw:")}
}

func (b *BadgerStore) key(k string) []byte {
	return append(append([]byte{}, b.prefix...), k...)
}

func (b *BadgerStore) load(txn *badger.Txn, key string) (*Window, error) {
	item, err := txn.Get(b.key(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &Window{}, nil
	}
	if err != nil {
		return nil, err
	}
	var w Window
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &w)
	})
	if err != nil {
		// A corrupt window resets to empty rather than blocking admission
		// state forever.
		return &Window{}, nil
	}
	return &w, nil
}

func (b *BadgerStore) Update(key string, fn func(w *Window)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Update(func(txn *badger.Txn) error {
		w, err := b.load(txn, key)
		if err != nil {
			return err
		}
		fn(w)
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("failed to encode rate window: %w", err)
		}
		return txn.Set(b.key(key), data)
	})
}

func (b *BadgerStore) Snapshot(key string) (*Window, error) {
	var w *Window
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		w, err = b.load(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (b *BadgerStore) Reset(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
}

// Close releases the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
