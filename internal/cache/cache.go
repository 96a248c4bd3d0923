package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type CacheItem struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is an in-memory TTL map with a background sweeper.
type Cache struct {
	mu    sync.RWMutex
	items map[string]CacheItem
	now   func() time.Time

	stop chan struct{}
	once sync.Once
}

// New starts a cache that sweeps expired items every interval
// (hourly when interval is zero).
func New(interval time.Duration) *Cache {
	if interval <= 0 {
		interval = time.Hour
	}
	c := &Cache{
		items: make(map[string]CacheItem),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	go c.cleanupLoop(interval)

	return c
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = CacheItem{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if c.now().After(item.ExpiresAt) {
		c.expire(key)
		return nil, false
	}

	return item.Value, true
}

// expire drops key if it is still expired once the write lock is held; a
// Set between the read and this call wins.
func (c *Cache) expire(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.items[key]; ok && c.now().After(item.ExpiresAt) {
		delete(c.items, key)
	}
}

// Key hashes parts into a stable cache key.
func Key(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// Stop ends the sweeper. It is safe to call more than once.
func (c *Cache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
		}
	}
}
