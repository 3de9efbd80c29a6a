package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// Cache is a bounded, least recently used cache whose writes can be made
// conditional on the entry they replace.
type Cache[K comparable, V any] struct {
	log *logrus.Entry

	// mu orders conditional writes; the lru is safe on its own for reads.
	mu      sync.Mutex
	entries *lru.Cache[K, V]
	size    int
}

// New returns a cache holding at most size entries. A size below one is
// treated as one.
func New[K comparable, V any](name string, size int) *Cache[K, V] {
	size = max(size, 1)

	c := &Cache[K, V]{
		log:  logrus.StandardLogger().WithFields(logrus.Fields{"type": "cache", "cache": name}),
		size: size,
	}

	// Only fails for a non-positive size
	c.entries, _ = lru.NewWithEvict[K, V](size, func(key K, _ V) {
		c.log.WithField("key", key).Trace("evicted")
	})
	return c
}

// Get returns the entry for key and marks it as recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.entries.Get(key)
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(key, value)
}

// PutIf stores value unless an entry for key exists and keep reports that
// it should be retained. It returns whether value was stored.
func (c *Cache[K, V]) PutIf(key K, value V, keep func(existing V) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries.Peek(key); ok && keep(existing) {
		return false
	}

	c.entries.Add(key, value)
	return true
}

// Delete removes key, returning whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Remove(key)
}

func (c *Cache[K, V]) Len() int {
	return c.entries.Len()
}

func (c *Cache[K, V]) Size() int {
	return c.size
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
}
