package store

import (
	"context"
	"time"
)

// Store is the composite interface for all data access.
type Store interface {
	EntryStore
	Tx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

// EntryStore manages cache entry records.
type EntryStore interface {
	// GetEntry returns the entry for a fingerprint without touching its
	// counters. ErrNotFound if absent.
	GetEntry(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// CreateEntry inserts a new entry with usage_count 1. ErrAlreadyExists
	// if the fingerprint is already present; callers degrade to RecordHit
	// plus a confidence merge, never an overwrite.
	CreateEntry(ctx context.Context, e *CacheEntry) error

	// RecordHit atomically increments usage_count, bumps last_used_at, and
	// returns the updated entry. Concurrent hits for the same fingerprint
	// must all be reflected in the final count.
	RecordHit(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// UpdateConfidence replaces the stored confidence. Only called inside a
	// Tx alongside RecordHit when a racing create merges into an existing
	// entry.
	UpdateConfidence(ctx context.Context, fingerprint string, confidence float64) error

	// ScanEntries streams every entry to fn. Used for boot-time stats
	// rebuilds and offline tooling only, never on the request path.
	ScanEntries(ctx context.Context, fn func(*CacheEntry) error) error

	// DeleteStaleEntries removes entries last used before the cutoff with
	// usage_count at or below maxUsage, returning the deleted rows so the
	// caller can decrement aggregates.
	DeleteStaleEntries(ctx context.Context, before time.Time, maxUsage int64) ([]CacheEntry, error)
}
