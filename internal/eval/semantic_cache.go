package eval

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/promptgate/gateway/internal/semantic"
)

// semanticLRUEntry is a doubly-linked list node for the semantic score cache.
type semanticLRUEntry struct {
	key    uint64
	result semantic.Result
	ok     bool
	prev   *semanticLRUEntry
	next   *semanticLRUEntry
}

// semanticCache bounds the cost of repeated identical near-duplicate checks
// (e.g. a client retrying the same prompt) behind a small LRU, keyed on the
// request kind and text since a matcher's n-gram range is fixed for its
// lifetime.
type semanticCache struct {
	mu      sync.Mutex
	entries map[uint64]*semanticLRUEntry
	head    *semanticLRUEntry
	tail    *semanticLRUEntry
	maxSize int
}

func newSemanticCache(maxSize int) *semanticCache {
	return &semanticCache{
		entries: make(map[uint64]*semanticLRUEntry, maxSize),
		maxSize: maxSize,
	}
}

func (c *semanticCache) get(key uint64) (semantic.Result, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, found := c.entries[key]; found {
		c.moveToHeadLocked(e)
		return e.result, e.ok, true
	}
	return semantic.Result{}, false, false
}

func (c *semanticCache) put(key uint64, result semantic.Result, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, found := c.entries[key]; found {
		e.result, e.ok = result, ok
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &semanticLRUEntry{key: key, result: result, ok: ok}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

func (c *semanticCache) moveToHeadLocked(e *semanticLRUEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *semanticCache) pushHeadLocked(e *semanticLRUEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *semanticCache) unlinkLocked(e *semanticLRUEntry) {
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
	e.prev = nil
	e.next = nil
}

func (c *semanticCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// semanticCacheKey hashes the request kind and text into a single key.
func semanticCacheKey(kind string, text string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(kind)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(text)
	return h.Sum64()
}
