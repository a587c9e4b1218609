package internal

import (
	"container/list"
	"sync"
	"weak"
)

type lruEntry[K any, V any] struct {
	key   weak.Pointer[K]
	value V
}

// WeakKeyedLRU is a bounded, access-ordered cache keyed by the weak
// identity of a *K, holding only a weak reference to the key itself. It
// backs the FlatMap combinator's "invoke selector at most once per
// currently-reachable outer key" memoisation (spec section 4.9): the cache
// never pins a key alive the way a plain map-based cache would. An entry
// whose key has been collected is never returned as a hit; it keeps its
// value until the size cap evicts it or Purge removes it. The map is keyed
// on weak.Pointer[K] itself, not
// on keyPtr boxed directly in an any — boxing a live *K that way would be
// a strong reference and defeat the whole point of a weak-keyed cache.
type WeakKeyedLRU[K any, V any] struct {
	mu         sync.Mutex
	capacity   int
	order      *list.List
	byIdentity map[any]*list.Element
}

func NewWeakKeyedLRU[K any, V any](capacity int) *WeakKeyedLRU[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &WeakKeyedLRU[K, V]{
		capacity:   capacity,
		order:      list.New(),
		byIdentity: make(map[any]*list.Element),
	}
}

// GetOrCompute returns the cached value for keyPtr if present and its key
// is still resolvable, otherwise computes it via fn, stores it (evicting
// the least-recently-used entry if at capacity), and returns it.
func (c *WeakKeyedLRU[K, V]) GetOrCompute(keyPtr *K, fn func() V) V {
	wp := weak.Make(keyPtr)
	identity := any(wp)

	c.mu.Lock()
	if el, ok := c.byIdentity[identity]; ok {
		entry := el.Value.(*lruEntry[K, V])
		if entry.key.Value() != nil {
			c.order.MoveToFront(el)
			v := entry.value
			c.mu.Unlock()
			return v
		}
		c.removeElementLocked(el)
	}
	c.mu.Unlock()

	value := fn()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byIdentity[identity]; ok {
		entry := el.Value.(*lruEntry[K, V])
		c.order.MoveToFront(el)
		return entry.value
	}

	entry := &lruEntry[K, V]{key: wp, value: value}
	el := c.order.PushFront(entry)
	c.byIdentity[identity] = el

	for c.order.Len() > c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElementLocked(oldest)
		}
	}

	return value
}

func (c *WeakKeyedLRU[K, V]) removeElementLocked(el *list.Element) {
	entry := el.Value.(*lruEntry[K, V])
	delete(c.byIdentity, any(entry.key))
	c.order.Remove(el)
}

// Purge drops every entry whose key has already been reclaimed.
func (c *WeakKeyedLRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*lruEntry[K, V]).key.Value() == nil {
			c.removeElementLocked(el)
		}
		el = next
	}
}

func (c *WeakKeyedLRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
