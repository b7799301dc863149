// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package respcache

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// BadgerStore persists cache entries in a badger key-value database so that a
// warm cache survives process restarts. Corrupt values are treated as absent:
// the cache layer re-fetches and overwrites them.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
}

// NewBadgerStore opens (or creates) a badger-backed entry store at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, prefix: []byte("rc:")}, nil
}

// NewBadgerStoreWithDB wraps an already-open badger database, allowing the
// cache, rate-limit windows, and queue to share one store directory.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, prefix: []byte("rc:")}
}

func (b *BadgerStore) key(k string) []byte {
	return append(append([]byte{}, b.prefix...), k...)
}

func (b *BadgerStore) Get(key string) (*Entry, bool, error) {
	var entry *Entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			entry = &e
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (b *BadgerStore) Put(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(e.Key), data)
	})
}

func (b *BadgerStore) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
}

func (b *BadgerStore) Scan(fn func(e *Entry) bool) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				// Skip undecodable values; Validate() removes them.
				continue
			}
			if !fn(&e) {
				break
			}
		}
		return nil
	})
}

func (b *BadgerStore) Len() (int, error) {
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close releases the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
