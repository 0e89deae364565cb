// Package session keeps per-user state for the bot, such as the last novel
// a user scraped or their last search results.
package session

import (
	"container/list"
	"sync"
)

// Cache is a bounded LRU keyed by user ID.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[int64]*list.Element
}

type entry[V any] struct {
	userID int64
	value  V
}

// New creates a cache holding at most capacity entries. Capacity below 1
// is treated as 1.
func New[V any](capacity int) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[int64]*list.Element, capacity),
	}
}

// Get returns the user's entry and marks it recently used.
func (c *Cache[V]) Get(userID int64) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[userID]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[V]).value, true
}

// Put stores value for the user, evicting the least recently used entry
// when full.
func (c *Cache[V]) Put(userID int64, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[userID]; ok {
		el.Value.(*entry[V]).value = value
		c.order.MoveToFront(el)
		return
	}

	c.items[userID] = c.order.PushFront(&entry[V]{userID: userID, value: value})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).userID)
	}
}

// Delete forgets the user's entry.
func (c *Cache[V]) Delete(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[userID]; ok {
		c.order.Remove(el)
		delete(c.items, userID)
	}
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
