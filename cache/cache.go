package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a catalogue entry stays fresh after write.
const DefaultTTL = 5 * time.Minute

// CategoriesKey is the slot holding the lightweight category list.
const CategoriesKey = "categories"

// ProductsKey builds the slot key for one category page.
func ProductsKey(categoryID string, page int) string {
	return fmt.Sprintf("products_%s_%d", categoryID, page)
}

type entry struct {
	data     []byte
	storedAt time.Time
}

// Store is a session-scoped TTL cache for catalogue reads. Values are kept
// as JSON so a corrupt entry surfaces as a miss, the same way a mangled
// storage slot would. Writes past the entry quota evict the oldest half of
// the product entries and retry once.
type Store struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	nowFn      func() time.Time
	entries    map[string]entry
}

// New creates a store with the given TTL and entry quota. maxEntries <= 0
// means unbounded.
func New(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:        ttl,
		maxEntries: maxEntries,
		nowFn:      time.Now,
		entries:    make(map[string]entry),
	}
}

// Get loads the entry under key into out. Expired or corrupt entries are
// treated as a miss and deleted.
func (s *Store) Get(key string, out interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if s.nowFn().Sub(e.storedAt) > s.ttl {
		delete(s.entries, key)
		return false
	}
	if err := json.Unmarshal(e.data, out); err != nil {
		delete(s.entries, key)
		return false
	}
	return true
}

// Set stores value under key. When the quota is exceeded the oldest half of
// the products_* entries are evicted and the write is retried once; if it
// still does not fit the write is dropped and an error returned.
func (s *Store) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fits(key) {
		s.evictOldestProducts()
		if !s.fits(key) {
			return fmt.Errorf("cache quota exceeded for key %s", key)
		}
	}

	s.entries[key] = entry{data: data, storedAt: s.nowFn()}
	return nil
}

// Has reports whether a fresh entry exists without decoding it.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if s.nowFn().Sub(e.storedAt) > s.ttl {
		delete(s.entries, key)
		return false
	}
	return true
}

// Clear drops every catalogue entry (categories and all product pages).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		if key == CategoriesKey || strings.HasPrefix(key, "products_") {
			delete(s.entries, key)
		}
	}
}

// Len reports the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fits reports whether a write to key would stay within the quota.
// Overwriting an existing key never grows the store.
func (s *Store) fits(key string) bool {
	if s.maxEntries <= 0 {
		return true
	}
	if _, ok := s.entries[key]; ok {
		return true
	}
	return len(s.entries) < s.maxEntries
}

// evictOldestProducts removes the oldest half of the products_* entries.
func (s *Store) evictOldestProducts() {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		if strings.HasPrefix(key, "products_") {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return
	}

	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].storedAt.Before(s.entries[keys[j]].storedAt)
	})

	half := (len(keys) + 1) / 2
	for _, key := range keys[:half] {
		delete(s.entries, key)
	}
}
