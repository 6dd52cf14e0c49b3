// Package cache provides the storefront's catalog cache layer: a namespaced
// key space, per-domain TTL policy, a distributed store client, and an
// in-process tier for the hottest read paths.
package cache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-process implementation of domain.Store
// with TTL support and an LRU size bound. Used as the Community tier store
// and as the store backing tests.
type MemoryStore struct {
	mu      sync.RWMutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new in-process store with the specified max size.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryStore{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a value. Returns nil, nil on a miss.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, _, err := s.GetWithTTL(ctx, key)
	return val, err
}

// GetWithTTL retrieves a value together with its remaining TTL.
func (s *MemoryStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return nil, 0, nil
	}

	entry := elem.Value.(*memoryEntry)
	remaining := time.Until(entry.expiresAt)
	if remaining <= 0 {
		s.removeElement(elem)
		return nil, 0, nil
	}

	// Move to front (most recently used)
	s.order.MoveToFront(elem)
	return entry.value, remaining, nil
}

// Set stores a value with TTL.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Update existing entry
	if elem, ok := s.items[key]; ok {
		s.order.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		return nil
	}

	// Add new entry
	entry := &memoryEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	elem := s.order.PushFront(entry)
	s.items[key] = elem

	// Evict if over capacity
	for s.order.Len() > s.maxSize {
		s.removeOldest()
	}

	return nil
}

// Delete removes a key. Deleting an absent key is a no-op success.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.removeElement(elem)
	}
	return nil
}

// DeletePattern removes every key matching a glob pattern.
func (s *MemoryStore) DeletePattern(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, elem := range s.items {
		if ok, _ := path.Match(pattern, key); ok {
			s.removeElement(elem)
		}
	}
	return nil
}

// Keys returns every live key matching a glob pattern. Test helper.
func (s *MemoryStore) Keys(pattern string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	now := time.Now()
	for key, elem := range s.items {
		if elem.Value.(*memoryEntry).expiresAt.Before(now) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Ping checks store health.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close cleans up the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element)
	s.order = list.New()
	return nil
}

// Stats returns store statistics.
func (s *MemoryStore) Stats() (size int, capacity int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len(), s.maxSize
}

func (s *MemoryStore) removeElement(elem *list.Element) {
	s.order.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(s.items, entry.key)
}

func (s *MemoryStore) removeOldest() {
	elem := s.order.Back()
	if elem != nil {
		s.removeElement(elem)
	}
}
