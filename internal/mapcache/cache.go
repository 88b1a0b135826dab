package mapcache

import (
	"container/list"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/experience/internal/mmap"
)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("mapcache: cache is closed")

// Unlimited retains every mapping until Close.
const Unlimited = -1

// Cache is a reference-counted LRU of open mappings keyed by file path.
type Cache struct {
	mu       sync.Mutex
	capacity int
	pattern  mmap.AccessPattern
	items    map[string]*entry
	idle     *list.List // entries with refs == 0, front = most recently used
	closed   bool

	open func(path string) (*mmap.Mapping, error)

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry struct {
	path string
	m    *mmap.Mapping
	refs int
	elem *list.Element // non-nil while idle
}

// New creates a cache retaining at most capacity mappings.
// Every newly opened mapping is advised with pattern.
func New(capacity int, pattern mmap.AccessPattern) *Cache {
	return &Cache{
		capacity: capacity,
		pattern:  pattern,
		items:    make(map[string]*entry),
		idle:     list.New(),
		open:     mmap.Open,
	}
}

// Acquire returns the mapping for path, opening it if needed.
// The mapping stays valid until release is called; release is idempotent.
func (c *Cache) Acquire(path string) (*mmap.Mapping, func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if e, ok := c.items[path]; ok {
		c.ref(e)
		c.mu.Unlock()
		c.hits.Add(1)
		return e.m, c.releaser(e), nil
	}
	c.mu.Unlock()

	c.misses.Add(1)
	m, err := c.open(path)
	if err != nil {
		return nil, nil, err
	}
	_ = m.Advise(c.pattern)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		_ = m.Close()
		return nil, nil, ErrClosed
	}
	// Lost a race with a concurrent open of the same file.
	if e, ok := c.items[path]; ok {
		_ = m.Close()
		c.ref(e)
		return e.m, c.releaser(e), nil
	}

	e := &entry{path: path, m: m, refs: 1}
	c.items[path] = e
	return m, c.releaser(e), nil
}

// ref must be called with c.mu held.
func (c *Cache) ref(e *entry) {
	if e.elem != nil {
		c.idle.Remove(e.elem)
		e.elem = nil
	}
	e.refs++
}

func (c *Cache) releaser(e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() { c.release(e) })
	}
}

func (c *Cache) release(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}
	if c.closed {
		_ = e.m.Close()
		return
	}
	e.elem = c.idle.PushFront(e)
	c.evict()
}

// evict must be called with c.mu held.
func (c *Cache) evict() {
	if c.capacity < 0 {
		return
	}
	for len(c.items) > c.capacity {
		back := c.idle.Back()
		if back == nil {
			return // everything left is in use
		}
		e := back.Value.(*entry)
		c.idle.Remove(back)
		e.elem = nil
		delete(c.items, e.path)
		_ = e.m.Close()
		c.evictions.Add(1)
	}
}

// Len returns the number of mappings currently open.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit, miss and eviction counters.
func (c *Cache) Stats() (hits, misses, evictions int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

// Close unmaps every idle mapping. Mappings still in use are unmapped when
// released. Close is idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for path, e := range c.items {
		delete(c.items, path)
		if e.refs > 0 {
			continue
		}
		if err := e.m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.idle.Init()
	return errors.Join(errs...)
}
