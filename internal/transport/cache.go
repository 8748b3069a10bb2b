package transport

import (
	"context"
	"net/url"
	"sync"
)

// CachedGetter wraps a Getter with an in-memory LRU cache of successful GET
// responses. The watch consumer can receive several notifications naming
// the same Datamart file; the cache keeps those from hitting the upstream
// repeatedly. POSTs are handshakes with side effects and are never cached.
type CachedGetter struct {
	inner Getter
	cache *lruCache
}

// NewCachedGetter creates a cache decorator around a transport.
func NewCachedGetter(inner Getter, maxEntries int) *CachedGetter {
	return &CachedGetter{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedGetter) Get(ctx context.Context, rawURL string, params url.Values) (*RawResponse, error) {
	key := rawURL
	if len(params) > 0 {
		key = rawURL + "?" + params.Encode()
	}
	if resp, ok := c.cache.get(key); ok {
		return resp, nil
	}
	resp, err := c.inner.Get(ctx, rawURL, params)
	if err != nil {
		// Failures are not cached so transient errors can be retried.
		return nil, err
	}
	c.cache.put(key, resp)
	return resp, nil
}

func (c *CachedGetter) PostForm(ctx context.Context, rawURL string, form url.Values) (*RawResponse, error) {
	return c.inner.PostForm(ctx, rawURL, form)
}

// lruCache is a simple thread-safe LRU cache for raw responses.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *RawResponse
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*RawResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *RawResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
