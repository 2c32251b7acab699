// Package storage defines the durable key-value store behind saved form
// configurations, with SQLite, file-system and in-memory providers.
package storage

import "context"

// Provider is a flat key-value store. Writes to the same key are
// last-writer-wins.
type Provider interface {
	// Get returns the value stored under key, or apperr.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources held by the provider.
	Close() error
}
