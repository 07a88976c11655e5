package cache

import (
	"sync"
	"time"
)

// Item represents a cached value with its expiry in unix nanoseconds
type Item struct {
	Value      any
	Expiration int64
}

// Expired checks if the item has expired at the given instant
func (item Item) Expired(now int64) bool {
	return item.Expiration > 0 && now > item.Expiration
}

// Options configures a Cache
type Options struct {
	// TTL applies to Set. Zero keeps entries until evicted.
	TTL time.Duration
	// PurgeWindow is the interval of the expired-entry sweep. Zero disables it.
	PurgeWindow time.Duration
	// MaxSize bounds the number of entries. Zero means unbounded.
	MaxSize int
}

// Cache is a thread-safe in-memory cache with expiration
type Cache struct {
	items     map[string]Item
	mu        sync.RWMutex
	opts      Options
	onEvicted func(string, any)
	stop      chan struct{}
	stopOnce  sync.Once
}

// New creates a cache and starts the sweeper when a purge window is set
func New(opts Options) *Cache {
	c := &Cache{
		items: make(map[string]Item),
		opts:  opts,
		stop:  make(chan struct{}),
	}
	if opts.PurgeWindow > 0 {
		go c.sweep()
	}
	return c
}

// Set adds an item with the default TTL
func (c *Cache) Set(key string, value any) {
	c.SetWithExpiration(key, value, c.opts.TTL)
}

// SetWithExpiration adds an item with a specific TTL
func (c *Cache) SetWithExpiration(key string, value any, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value, d)
}

// SetIfAbsent stores value only when key is missing or expired.
// It reports whether the value was stored.
func (c *Cache) SetIfAbsent(key string, value any, d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found && !item.Expired(time.Now().UnixNano()) {
		return false
	}
	c.put(key, value, d)
	return true
}

func (c *Cache) put(key string, value any, d time.Duration) {
	var exp int64
	if d > 0 {
		exp = time.Now().Add(d).UnixNano()
	}

	if _, exists := c.items[key]; !exists && c.opts.MaxSize > 0 && len(c.items) >= c.opts.MaxSize {
		c.evictOldest()
	}

	c.items[key] = Item{Value: value, Expiration: exp}
}

// Get retrieves a live item
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.Expired(time.Now().UnixNano()) {
		return nil, false
	}
	return item.Value, true
}

// Delete removes an item
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found && c.onEvicted != nil {
		c.onEvicted(key, item.Value)
	}
	delete(c.items, key)
}

// Flush removes all items
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvicted != nil {
		for k, v := range c.items {
			c.onEvicted(k, v.Value)
		}
	}
	c.items = make(map[string]Item)
}

// Count returns the number of entries, expired ones included
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// SetOnEvicted sets the callback run when an entry is removed
func (c *Cache) SetOnEvicted(f func(string, any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvicted = f
}

// Close stops the sweeper goroutine
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(c.opts.PurgeWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	for k, v := range c.items {
		if v.Expired(now) {
			if c.onEvicted != nil {
				c.onEvicted(k, v.Value)
			}
			delete(c.items, k)
		}
	}
}

// evictOldest drops the entry closest to expiry; entries without expiry go last.
func (c *Cache) evictOldest() {
	var (
		victim string
		best   int64
		found  bool
	)
	for k, v := range c.items {
		exp := v.Expiration
		if exp == 0 {
			exp = 1<<63 - 1
		}
		if !found || exp < best {
			victim, best, found = k, exp, true
		}
	}
	if !found {
		return
	}
	if c.onEvicted != nil {
		c.onEvicted(victim, c.items[victim].Value)
	}
	delete(c.items, victim)
}
