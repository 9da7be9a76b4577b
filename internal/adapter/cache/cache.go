// Package cache keeps recently read days of fire focuses in memory.
package cache

import (
	"sync"
	"time"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
	"github.com/couchcryptid/fire-data-etl/internal/observability"
)

// DayCache is a thread-safe LRU of day key to records. It sits in front of
// store reads; writers must invalidate the days they change. Every
// invalidation bumps the day's generation so a reader that loaded the day
// earlier cannot put stale records back.
type DayCache struct {
	maxEntries int
	metrics    *observability.Metrics

	mu      sync.Mutex
	entries map[int64]*entry
	gens    map[int64]uint64
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key   int64
	value []domain.FireFocus
	prev  *entry
	next  *entry
}

// New creates a cache holding at most maxEntries days.
func New(maxEntries int, metrics *observability.Metrics) *DayCache {
	return &DayCache{
		maxEntries: max(maxEntries, 1),
		metrics:    metrics,
		entries:    make(map[int64]*entry),
		gens:       make(map[int64]uint64),
	}
}

func keyOf(day time.Time) int64 {
	return domain.UTC.StartOfDay(day).Unix()
}

// Get returns a copy of the cached records for the day.
func (c *DayCache) Get(day time.Time) ([]domain.FireFocus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[keyOf(day)]
	if !ok {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	c.moveToFront(e)
	return append([]domain.FireFocus(nil), e.value...), true
}

// Generation returns the day's current generation.
func (c *DayCache) Generation(day time.Time) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[keyOf(day)]
}

// Put stores a copy of the records for the day, evicting the least recently
// used day when full.
func (c *DayCache) Put(day time.Time, records []domain.FireFocus) {
	value := append([]domain.FireFocus(nil), records...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(keyOf(day), value)
}

// PutIfCurrent stores the records only when the day has not been
// invalidated since gen was read. It reports whether they were stored.
func (c *DayCache) PutIfCurrent(day time.Time, records []domain.FireFocus, gen uint64) bool {
	value := append([]domain.FireFocus(nil), records...)
	key := keyOf(day)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	c.put(key, value)
	return true
}

func (c *DayCache) put(key int64, value []domain.FireFocus) {
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

// Invalidate drops the given days and advances their generations.
func (c *DayCache) Invalidate(days ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range days {
		c.gens[keyOf(d)]++
		if e, ok := c.entries[keyOf(d)]; ok {
			delete(c.entries, e.key)
			c.remove(e)
		}
	}
}

// Len reports the number of cached days.
func (c *DayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *DayCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *DayCache) addToFront(e *entry) {
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

func (c *DayCache) remove(e *entry) {
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

func (c *DayCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
