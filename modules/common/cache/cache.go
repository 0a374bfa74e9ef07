package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"
)

// Store - in-memory LRU cache with per-entry TTL.
type Store[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// New - create a store keeping at most maxSize entries, each alive for ttl
func New[T any](maxSize int, ttl time.Duration) *Store[T] {
	return &Store[T]{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Key - cache key for a data URL, hashing only the base64 payload so that
// identical image bytes hit regardless of mime prefix differences.
func Key(dataURL string) string {
	payload := dataURL
	if idx := strings.Index(dataURL, ","); idx >= 0 {
		payload = dataURL[idx+1:]
	}
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Get - fetch a live entry, refreshing its recency. Expired entries are
// removed on access.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	el, ok := s.entries[key]
	if !ok {
		return zero, false
	}

	ent := el.Value.(*entry[T])
	if !time.Now().Before(ent.expiresAt) {
		s.removeLocked(el)
		return zero, false
	}

	s.order.MoveToFront(el)
	return ent.value, true
}

// Set - store a value with the default TTL
func (s *Store[T]) Set(key string, value T) {
	s.SetTTL(key, value, s.ttl)
}

// SetTTL - store a value with an explicit TTL. A non-positive TTL produces an
// entry that is already expired.
func (s *Store[T]) SetTTL(key string, value T, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if el, ok := s.entries[key]; ok {
		ent := el.Value.(*entry[T])
		ent.value = value
		ent.expiresAt = now.Add(ttl)
		s.order.MoveToFront(el)
		return
	}

	if s.order.Len() >= s.maxSize {
		if oldest := s.order.Back(); oldest != nil {
			s.removeLocked(oldest)
		}
	}

	el := s.order.PushFront(&entry[T]{key: key, value: value, expiresAt: now.Add(ttl)})
	s.entries[key] = el
}

// Delete - remove a single entry
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.removeLocked(el)
	}
}

// Clear - drop all entries
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.order.Init()
}

// Len - number of entries currently held, including not-yet-swept expired ones
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Cleanup - remove every expired entry, returning how many were dropped
func (s *Store[T]) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		ent := el.Value.(*entry[T])
		if !now.Before(ent.expiresAt) {
			s.removeLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (s *Store[T]) removeLocked(el *list.Element) {
	ent := el.Value.(*entry[T])
	delete(s.entries, ent.key)
	s.order.Remove(el)
}

// Sweepable - anything the background sweeper can clean
type Sweepable interface {
	Cleanup() int
}

// StartSweeper - periodically sweep expired entries from the given stores.
// The returned function stops the sweeper.
func StartSweeper(interval time.Duration, stores ...Sweepable) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				total := 0
				for _, store := range stores {
					total += store.Cleanup()
				}
				if total > 0 {
					log.Printf("🧹 Cache sweep removed %d expired entries", total)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
