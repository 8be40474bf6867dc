// Package cache holds previously fused supplier records keyed by the
// deterministic request hash. It is a cost-avoidance layer, not a system of
// record: entries expire on TTL and the store enforces a maximum entry count.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/procurehq/supplierscope/internal/discovery"
)

// Stats reports cumulative cache counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Store is the cache contract consumed by the engine. Set, Delete and
// UpdateIfBetter must be atomic per key.
type Store interface {
	// Get returns the live record for key, or nil on a miss. Expired
	// entries count as misses.
	Get(ctx context.Context, key string) (*discovery.FusedRecord, error)
	// Set writes record under key with the given TTL (0 means the store
	// default), replacing any existing entry.
	Set(ctx context.Context, key string, record *discovery.FusedRecord, ttl time.Duration) error
	// Has reports whether a live entry exists without counting a hit or miss.
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// DeleteAll removes every entry whose key equals baseKey or derives
	// from it with a context-hash suffix.
	DeleteAll(ctx context.Context, baseKey string) (int, error)
	// UpdateIfBetter writes record only when no entry exists for key or
	// the new overall confidence is strictly greater than the cached one.
	// It returns true when the write happened.
	UpdateIfBetter(ctx context.Context, key string, record *discovery.FusedRecord, ttl time.Duration) (bool, error)
	// Scan visits every live entry until fn returns false. Visit order is
	// unspecified; counters are not touched.
	Scan(ctx context.Context, fn func(key string, record *discovery.FusedRecord) bool) error
	Stats() Stats
	Len(ctx context.Context) (int, error)
}

type memoryEntry struct {
	record   *discovery.FusedRecord
	storedAt time.Time
	ttl      time.Duration
}

func (e memoryEntry) expiredAt(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// MemoryStore is the in-process Store used by default. All mutation paths
// hold the mutex, which gives per-key atomicity including the
// compare-and-swap in UpdateIfBetter.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	maxEntries int
	hits       int64
	misses     int64
}

// NewMemoryStore builds an in-memory store with the given default TTL and
// entry cap.
func NewMemoryStore(defaultTTL time.Duration, maxEntries int) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = 6 * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*discovery.FusedRecord, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || entry.expiredAt(now) {
		if ok {
			delete(s.entries, key)
		}
		s.misses++
		return nil, nil
	}
	s.hits++
	return copyRecord(entry.record), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, record *discovery.FusedRecord, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	rec := copyRecord(record)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{record: rec, storedAt: time.Now(), ttl: ttl}
	s.evictLocked()
	return nil
}

func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if entry.expiredAt(now) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, baseKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if keyDerivesFrom(key, baseKey) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) UpdateIfBetter(_ context.Context, key string, record *discovery.FusedRecord, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()
	rec := copyRecord(record)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[key]
	if ok && !existing.expiredAt(now) && existing.record.Confidence.Overall >= record.Confidence.Overall {
		return false, nil
	}
	s.entries[key] = memoryEntry{record: rec, storedAt: now, ttl: ttl}
	s.evictLocked()
	return true, nil
}

func (s *MemoryStore) Scan(_ context.Context, fn func(key string, record *discovery.FusedRecord) bool) error {
	now := time.Now()
	s.mu.Lock()
	type pair struct {
		key string
		rec *discovery.FusedRecord
	}
	live := make([]pair, 0, len(s.entries))
	for key, entry := range s.entries {
		if entry.expiredAt(now) {
			continue
		}
		live = append(live, pair{key: key, rec: copyRecord(entry.record)})
	}
	s.mu.Unlock()
	for _, p := range live {
		if !fn(p.key, p.rec) {
			return nil
		}
	}
	return nil
}

// copyRecord clones a record including its map and slice fields; the cache
// must never share mutable memory with callers in either direction.
func copyRecord(record *discovery.FusedRecord) *discovery.FusedRecord {
	rec := *record
	if record.Confidence.Fields != nil {
		rec.Confidence.Fields = make(map[string]float64, len(record.Confidence.Fields))
		for k, v := range record.Confidence.Fields {
			rec.Confidence.Fields[k] = v
		}
	}
	rec.Compliance.Certifications = append([]string(nil), record.Compliance.Certifications...)
	rec.SourcesUsed = append([]string(nil), record.SourcesUsed...)
	return &rec
}

func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Hits: s.hits, Misses: s.misses}
	if total := s.hits + s.misses; total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	return st
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// evictLocked enforces the entry cap: TTL-expired entries go first, then
// oldest insertion order until the store is back under capacity.
func (s *MemoryStore) evictLocked() {
	if len(s.entries) <= s.maxEntries {
		return
	}
	now := time.Now()
	for key, entry := range s.entries {
		if entry.expiredAt(now) {
			delete(s.entries, key)
		}
	}
	if len(s.entries) <= s.maxEntries {
		return
	}
	type aged struct {
		key      string
		storedAt time.Time
	}
	order := make([]aged, 0, len(s.entries))
	for key, entry := range s.entries {
		order = append(order, aged{key: key, storedAt: entry.storedAt})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].storedAt.Before(order[j].storedAt) })
	for _, a := range order {
		if len(s.entries) <= s.maxEntries {
			break
		}
		delete(s.entries, a.key)
	}
}

// keyDerivesFrom reports whether key equals baseKey or is baseKey plus a
// context-hash suffix.
func keyDerivesFrom(key, baseKey string) bool {
	if key == baseKey {
		return true
	}
	return len(key) > len(baseKey) && key[:len(baseKey)] == baseKey && key[len(baseKey)] == ':'
}
