// Package cache provides the content-addressed prompt cache: a Hasher that
// fingerprints images and a Store that maps (fingerprint, variant) to a
// previously generated prompt with TTL-based expiration.
package cache

import "time"

// DefaultTTL is how long a generated prompt stays valid.
const DefaultTTL = 24 * time.Hour

// Entry is a cached prompt with metadata. Entries are values; the store
// replaces them wholesale and never hands out a pointer into its map.
type Entry struct {
	Result      string    `json:"result"`
	CreatedAt   time.Time `json:"createdAt"`
	Variant     string    `json:"variant"`
	Fingerprint string    `json:"fingerprint"`
}

// Stats is a read-only aggregate view of the store. Oldest and Newest are nil
// when the store is empty.
type Stats struct {
	TotalEntries int        `json:"totalEntries"`
	OldestEntry  *time.Time `json:"oldestEntry"`
	NewestEntry  *time.Time `json:"newestEntry"`
}

// Reader defines the interface for reading cached prompts
type Reader interface {
	// Get returns the cached result for fingerprint and variant if present
	// and not expired. Expired entries are deleted as a side effect.
	Get(fingerprint, variant string) (string, bool)
}

// Writer defines the interface for writing cached prompts
type Writer interface {
	// Set inserts or replaces the entry for fingerprint and variant.
	Set(fingerprint, variant, result string)
}

// ReadWriter combines both cache operations
type ReadWriter interface {
	Reader
	Writer
}

// Maintainer exposes the housekeeping side of a store.
type Maintainer interface {
	// Sweep removes every expired entry and returns how many were removed.
	Sweep() int

	// Stats reports entry count and the oldest/newest insertion times.
	Stats() Stats

	// Clear empties the store and returns how many entries were removed.
	Clear() int
}

// Cache is the main interface that combines all cache operations
type Cache interface {
	ReadWriter
	Maintainer
}
