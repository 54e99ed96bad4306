package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Observer receives cache events so operators can tell when caching is
// working and when it silently degrades. Implementations must be safe for
// concurrent use.
type Observer interface {
	Hit(variant string)
	Miss(variant string)
	Expired(n int)
	HashFallback(err error)
}

type nopObserver struct{}

func (nopObserver) Hit(string)         {}
func (nopObserver) Miss(string)        {}
func (nopObserver) Expired(int)        {}
func (nopObserver) HashFallback(error) {}

// MemoryStore is the process-local Cache implementation. Every operation runs
// under one mutex, so no caller can observe a half-written entry. There is no
// background timer: expired entries are dropped lazily by Get and in bulk by
// Sweep, which costs O(entries) and should be called at a bounded rate.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]Entry

	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
	observer Observer
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithLogger sets the logger used for cache events.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *MemoryStore) { s.log = l }
}

// WithObserver attaches an event observer such as a metrics recorder.
func WithObserver(o Observer) StoreOption {
	return func(s *MemoryStore) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewMemoryStore creates an empty store. Construct one per process (or per
// test) and pass it to whatever needs it.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[Key]Entry),
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      zerolog.Nop(),
		observer: nopObserver{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TTL returns the validity window applied to entries.
func (s *MemoryStore) TTL() time.Duration {
	return s.ttl
}

func mustKey(fingerprint, variant string) Key {
	if fingerprint == "" {
		panic("cache: empty fingerprint")
	}
	return KeyFor(fingerprint, variant)
}

func (s *MemoryStore) expired(e Entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) > s.ttl
}

// Get implements Reader. An entry exactly TTL old is still valid.
func (s *MemoryStore) Get(fingerprint, variant string) (string, bool) {
	key := mustKey(fingerprint, variant)

	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && s.expired(entry, s.now()) {
		delete(s.entries, key)
		s.mu.Unlock()
		s.observer.Expired(1)
		s.observer.Miss(variant)
		s.log.Debug().Str("key", key.String()).Msg("cache entry expired")
		return "", false
	}
	s.mu.Unlock()

	if !ok {
		s.observer.Miss(variant)
		return "", false
	}
	s.observer.Hit(variant)
	s.log.Debug().Str("key", key.String()).Msg("cache hit")
	return entry.Result, true
}

// Set implements Writer. Last writer wins.
func (s *MemoryStore) Set(fingerprint, variant, result string) {
	key := mustKey(fingerprint, variant)

	s.mu.Lock()
	s.entries[key] = Entry{
		Result:      result,
		CreatedAt:   s.now(),
		Variant:     variant,
		Fingerprint: fingerprint,
	}
	s.mu.Unlock()

	s.log.Debug().Str("key", key.String()).Int("result_len", len(result)).Msg("cache set")
}

// Sweep implements Maintainer.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.observer.Expired(removed)
		s.log.Info().Int("removed", removed).Msg("swept expired cache entries")
	}
	return removed
}

// Stats implements Maintainer. It never mutates the store, so it may report
// entries that are expired but not yet swept.
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{TotalEntries: len(s.entries)}
	for _, e := range s.entries {
		created := e.CreatedAt
		if st.OldestEntry == nil || created.Before(*st.OldestEntry) {
			oldest := created
			st.OldestEntry = &oldest
		}
		if st.NewestEntry == nil || created.After(*st.NewestEntry) {
			newest := created
			st.NewestEntry = &newest
		}
	}
	return st
}

// Clear implements Maintainer.
func (s *MemoryStore) Clear() int {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[Key]Entry)
	s.mu.Unlock()

	s.log.Info().Int("removed", n).Msg("cleared prompt cache")
	return n
}

// Ensure MemoryStore implements Cache
var _ Cache = (*MemoryStore)(nil)
