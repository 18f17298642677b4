package agent

import (
	"container/list"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
)

// DefaultCacheSize bounds the number of live sessions.
const DefaultCacheSize = 10

// ErrNilBuilder reports cache construction without a builder.
var ErrNilBuilder = errors.New("agent: cache builder is required")

// cacheKey identifies one session configuration. Only a one-way hash of the
// credential is kept, so a cache dump never exposes raw keys.
type cacheKey struct {
	model       string
	temperature float32
	credHash    [32]byte
}

// Builder constructs a session for a configuration on cache miss. The raw
// credential is passed through for client construction and not retained.
type Builder func(model string, temperature float32, credential string) (*Session, error)

type cacheEntry struct {
	key     cacheKey
	session *Session
}

// Cache is an LRU cache of configured sessions.
//
// The lock covers only map and recency-list bookkeeping. Construction of a
// missing session runs outside it, so a slow build for one key never blocks
// hits on other keys; concurrent builds of the same key are resolved by a
// double-check on insert, keeping the first inserted session.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]*list.Element
	order    *list.List // front = most recently used
	build    Builder
}

// NewCache creates a Cache. capacity <= 0 takes DefaultCacheSize.
func NewCache(capacity int, build Builder) (*Cache, error) {
	if build == nil {
		return nil, ErrNilBuilder
	}
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element),
		order:    list.New(),
		build:    build,
	}, nil
}

// Get returns the session for (model, temperature, credential), building it
// on first use. A hit promotes the entry to most recently used; an insert
// past capacity evicts the least recently used entry.
func (c *Cache) Get(model string, temperature float32, credential string) (*Session, error) {
	key := cacheKey{model: model, temperature: temperature, credHash: sha256.Sum256([]byte(credential))}

	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		session := elem.Value.(*cacheEntry).session
		c.mu.Unlock()
		return session, nil
	}
	c.mu.Unlock()

	session, err := c.build(model, temperature, credential)
	if err != nil {
		return nil, fmt.Errorf("building session for model %s: %w", model, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have built the same key while we were outside the
	// lock; keep theirs.
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry).session, nil
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, session: session})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return session, nil
}

// Len reports the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every cached session.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*list.Element)
	c.order.Init()
}
