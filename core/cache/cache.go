// Package cache keeps serialized models and settings in memory in front of
// the persistent store.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Stats contains cache statistics.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Size       int   `json:"size"`
	MaxSize    int   `json:"max_size"`
	TotalBytes int64 `json:"total_bytes,omitempty"`
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called with the key and blob of every entry that leaves
	// the cache.
	OnEvict func(key string, blob []byte)

	// Clock is used for TTL checks. Nil means the real clock.
	Clock clockwork.Clock
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize: 32,
	}
}

type entry struct {
	key       string
	blob      []byte
	expiresAt time.Time
}

// BlobCache is an LRU cache of byte slices bounded by both entry count and
// total size.
type BlobCache struct {
	mu       sync.Mutex
	config   Config
	entries  map[string]*list.Element
	order    *list.List
	stats    Stats
	maxBytes int64
	size     int64
}

// NewBlobCache creates a blob cache. maxBytes of 0 means no byte limit.
func NewBlobCache(config Config, maxBytes int64) *BlobCache {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &BlobCache{
		config:   config,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		maxBytes: maxBytes,
	}
}

// Get retrieves a blob. Expired blobs count as misses and are dropped.
func (b *BlobCache) Get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.entries[key]
	if !ok {
		b.stats.Misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if b.config.TTL > 0 && b.config.Clock.Now().After(e.expiresAt) {
		b.remove(el)
		b.stats.Misses++
		return nil, false
	}
	b.order.MoveToFront(el)
	b.stats.Hits++
	return e.blob, true
}

// Put stores a blob, evicting least recently used blobs until both limits
// hold. Blobs larger than the byte limit are not cached.
func (b *BlobCache) Put(key string, blob []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if el, ok := b.entries[key]; ok {
		b.remove(el)
	}
	n := int64(len(blob))
	if b.maxBytes > 0 && n > b.maxBytes {
		return
	}
	for b.order.Len() > 0 && b.full(n) {
		b.remove(b.order.Back())
		b.stats.Evictions++
	}

	var expires time.Time
	if b.config.TTL > 0 {
		expires = b.config.Clock.Now().Add(b.config.TTL)
	}
	b.entries[key] = b.order.PushFront(&entry{key: key, blob: blob, expiresAt: expires})
	b.size += n
}

// full reports whether adding n bytes as a new entry breaks a limit.
func (b *BlobCache) full(n int64) bool {
	if b.config.MaxSize > 0 && b.order.Len() >= b.config.MaxSize {
		return true
	}
	return b.maxBytes > 0 && b.size+n > b.maxBytes
}

// Remove removes a blob.
func (b *BlobCache) Remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if el, ok := b.entries[key]; ok {
		b.remove(el)
	}
}

// Clear removes all blobs without calling OnEvict.
func (b *BlobCache) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]*list.Element)
	b.order.Init()
	b.size = 0
}

// Len returns the number of cached blobs.
func (b *BlobCache) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order.Len()
}

// Stats returns cache statistics including the byte total.
func (b *BlobCache) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Size = b.order.Len()
	s.MaxSize = b.config.MaxSize
	s.TotalBytes = b.size
	return s
}

func (b *BlobCache) remove(el *list.Element) {
	b.order.Remove(el)
	e := el.Value.(*entry)
	delete(b.entries, e.key)
	b.size -= int64(len(e.blob))
	if b.config.OnEvict != nil {
		b.config.OnEvict(e.key, e.blob)
	}
}
