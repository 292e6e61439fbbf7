// Package storage provides the durable key-value store backing all offline
// state. Values are JSON-encoded; every key is independent, so a failed
// write never corrupts unrelated keys. There are no cross-key transactions:
// callers that write related keys sequentially accept eventual consistency.
package storage

import (
	"context"
	"errors"
)

// Logical keys for persisted offline state. Each is an independent
// JSON-encoded value in the store.
const (
	KeyDraftEntry         = "offline:draft_entry"
	KeyPendingSubmissions = "offline:pending_submissions"
	KeyCachedCategories   = "offline:cached_categories"
	KeyCachedClients      = "offline:cached_clients"
	KeyLastSyncCategories = "offline:last_sync_categories"
	KeyLastSyncClients    = "offline:last_sync_clients"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Store is a persisted mapping from string key to JSON-serializable value.
type Store interface {
	// Get unmarshals the value for key into out and reports whether the
	// key was present. A missing key is not an error.
	Get(ctx context.Context, key string, out any) (bool, error)

	// Set marshals value and overwrites the key in full (last-write-wins).
	Set(ctx context.Context, key string, value any) error

	// Remove deletes a key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// RemoveMany deletes the given keys in one operation.
	RemoveMany(ctx context.Context, keys []string) error
}

// AllKeys returns every logical offline key, for clear-all operations.
func AllKeys() []string {
	return []string{
		KeyDraftEntry,
		KeyPendingSubmissions,
		KeyCachedCategories,
		KeyCachedClients,
		KeyLastSyncCategories,
		KeyLastSyncClients,
	}
}
