package cache

import (
	"container/list"
	"sync"
)

type lruEntry[K comparable, V any] struct {
	key    K
	value  V
	weight int64
}

// LRU is a thread-safe, weight-bounded LRU cache.
// When the total weight exceeds the capacity, items are evicted from the least
// recently used end. Items that were never touched again leave in insertion order.
type LRU[K comparable, V any] struct {
	capacity int64
	weight   int64
	weigh    func(V) int64
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
	onEvict  func(key K, value V) // Called for capacity evictions only
}

// NewLRU creates a cache holding at most capacity units of weight.
// A nil weigh function counts every item as 1. Negative capacity panics.
func NewLRU[K comparable, V any](capacity int64, weigh func(V) int64) *LRU[K, V] {
	if capacity < 0 {
		panic("LRU capacity must not be negative")
	}
	if weigh == nil {
		weigh = func(V) int64 { return 1 }
	}
	return &LRU[K, V]{
		capacity: capacity,
		weigh:    weigh,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
	}
}

// SetEvictCallback sets a function called whenever an item is evicted to
// satisfy the capacity. Remove and Clear do not trigger it.
func (c *LRU[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get retrieves a value and marks it as recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		return elem.Value.(*lruEntry[K, V]).value, true
	}

	var zero V
	return zero, false
}

// Peek retrieves a value without changing its recency.
func (c *LRU[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		return elem.Value.(*lruEntry[K, V]).value, true
	}

	var zero V
	return zero, false
}

// Put adds or updates a value and marks it as most recently used, then evicts
// from the back until the weight fits the capacity. An item heavier than the
// whole capacity is evicted right away.
// Returns the previous value if it existed, and a boolean indicating if it existed.
func (c *LRU[K, V]) Put(key K, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		old     V
		existed bool
	)
	w := c.weigh(value)
	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*lruEntry[K, V])
		old, existed = entry.value, true
		c.weight += w - entry.weight
		entry.value = value
		entry.weight = w
	} else {
		c.items[key] = c.eviction.PushFront(&lruEntry[K, V]{key: key, value: value, weight: w})
		c.weight += w
	}

	c.evictOverflow()
	return old, existed
}

// Remove removes an item from the cache.
// Returns the removed value and true if it existed, zero value and false otherwise.
func (c *LRU[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := c.removeElement(elem)
		return entry.value, true
	}

	var zero V
	return zero, false
}

// Oldest returns the least recently used item without touching it.
func (c *LRU[K, V]) Oldest() (K, V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem := c.eviction.Back(); elem != nil {
		entry := elem.Value.(*lruEntry[K, V])
		return entry.key, entry.value, true
	}

	var (
		zeroK K
		zeroV V
	)
	return zeroK, zeroV, false
}

// Keys returns the keys from least to most recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.eviction.Len())
	for elem := c.eviction.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(*lruEntry[K, V]).key)
	}
	return keys
}

func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Weight returns the summed weight of all items.
func (c *LRU[K, V]) Weight() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

func (c *LRU[K, V]) Capacity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// SetCapacity changes the capacity, evicting immediately when the current
// weight no longer fits. Negative capacity panics.
func (c *LRU[K, V]) SetCapacity(capacity int64) {
	if capacity < 0 {
		panic("LRU capacity must not be negative")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = capacity
	c.evictOverflow()
}

// Clear removes all items from the cache without calling the evict callback.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.eviction.Init()
	c.weight = 0
}

// Must be called with lock held.
func (c *LRU[K, V]) evictOverflow() {
	for c.weight > c.capacity {
		elem := c.eviction.Back()
		if elem == nil {
			return
		}
		entry := c.removeElement(elem)
		if c.onEvict != nil {
			c.onEvict(entry.key, entry.value)
		}
	}
}

// Must be called with lock held.
func (c *LRU[K, V]) removeElement(elem *list.Element) *lruEntry[K, V] {
	c.eviction.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)
	c.weight -= entry.weight
	return entry
}
