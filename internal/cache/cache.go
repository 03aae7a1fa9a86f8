// Package cache holds short-lived copies of read results. Entries expire
// after a TTL and every write path flushes the whole cache.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Flush drops every entry and starts a new generation.
	Flush()
	Size() int
	// Generation identifies the entries written since the last Flush.
	Generation() uint64
	// SetIfCurrent stores data only if the cache is still at gen. Readers
	// take gen before loading data so a Flush racing the load wins.
	SetIfCurrent(key string, data T, gen uint64) bool
}

// TTLCache is a typed view over a patrickmn/go-cache store.
type TTLCache[T any] struct {
	c   *gocache.Cache
	mu  sync.Mutex
	gen uint64
}

// New returns a cache whose entries live for ttl. Expired entries are
// swept every 2*ttl.
func New[T any](ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{c: gocache.New(ttl, 2*ttl)}
}

func (t *TTLCache[T]) Get(key string) (T, bool) {
	v, ok := t.c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	data, ok := v.(T)
	return data, ok
}

func (t *TTLCache[T]) Set(key string, data T) {
	t.c.Set(key, data, gocache.DefaultExpiration)
}

func (t *TTLCache[T]) Delete(key string) { t.c.Delete(key) }

func (t *TTLCache[T]) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.c.Flush()
}

func (t *TTLCache[T]) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

func (t *TTLCache[T]) SetIfCurrent(key string, data T, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return false
	}
	t.c.Set(key, data, gocache.DefaultExpiration)
	return true
}

func (t *TTLCache[T]) Size() int { return t.c.ItemCount() }

// Noop never stores anything. It stands in when caching is disabled.
type Noop[T any] struct{}

func (Noop[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}
func (Noop[T]) Set(string, T) {}
func (Noop[T]) Delete(string) {}
func (Noop[T]) Flush()        {}
func (Noop[T]) Size() int     { return 0 }

func (Noop[T]) Generation() uint64                  { return 0 }
func (Noop[T]) SetIfCurrent(string, T, uint64) bool { return false }

var (
	_ Cache[int] = (*TTLCache[int])(nil)
	_ Cache[int] = Noop[int]{}
)
