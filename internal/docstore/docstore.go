// Package docstore provides a keyed JSON document store with live
// per-document change subscriptions.
//
// This package defines a Store interface with implementations for:
// - MemoryStore: in-process storage for development and tests
// - PostgresStore: JSONB documents with LISTEN/NOTIFY change push
// - RedisStore: values with pub/sub change push
//
// The store is deliberately small: get-by-key, whole-document set-by-key, and
// a subscription that observes one document. Writes are last-write-wins; the
// document is the unit of replacement, never merged.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("docstore: store closed")

// Unsubscribe cancels a subscription. It must be called exactly once; the
// implementations make extra calls harmless so a deferred call cannot leak
// or panic.
type Unsubscribe func()

// ChangeFunc receives the document state. ok is false when the document does
// not exist. The callback runs on the store's dispatch goroutine and must not
// block for long; slow consumers should hand off to their own queue.
type ChangeFunc func(doc json.RawMessage, ok bool)

// Store is a keyed JSON document store.
type Store interface {
	// Get returns the document stored at key. ok is false when no document
	// exists.
	Get(ctx context.Context, key string) (doc json.RawMessage, ok bool, err error)

	// Set overwrites the whole document at key. The write is idempotent:
	// setting the same document twice leaves the same state.
	Set(ctx context.Context, key string, doc json.RawMessage) error

	// Subscribe watches a single document. fn is invoked once immediately
	// with the current state, and again on every subsequent change. The
	// returned Unsubscribe releases the watch.
	Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error)

	// Close releases the store's connections. Subscriptions stop firing.
	Close() error
}

// Provider identifiers for configuration.
const (
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
	ProviderRedis    = "redis"
)
