package build

import (
	"hash/crc32"
	"strconv"
	"sync"
	"sync/atomic"
)

// DefaultCacheSize bounds the bytes of expanded output an OutputCache keeps.
const DefaultCacheSize = 16 << 20

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// ContentHash returns a CRC32 (Castagnoli) checksum over parts, in order,
// as lowercase hex.
func ContentHash(parts ...[]byte) string {
	var sum uint32
	for _, p := range parts {
		sum = crc32.Update(sum, crcTable, p)
		// Separate the parts so that ("ab","c") and ("a","bc") differ.
		sum = crc32.Update(sum, crcTable, []byte{0})
	}

	return strconv.FormatUint(uint64(sum), 16)
}

// OutputCache keeps expanded documents keyed by source path, valid only for
// the content hash they were produced from. Entries are evicted least
// recently used first once the total output size passes the limit.
type OutputCache struct {
	entries     map[string]*cacheEntry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	// LRU list with sentinel head and tail
	head *cacheEntry
	tail *cacheEntry

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key   string
	hash  string
	value []byte
	size  int64
	prev  *cacheEntry
	next  *cacheEntry
}

// CacheStats is a snapshot of an OutputCache.
type CacheStats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits as a percentage of lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total) * 100
}

// NewOutputCache creates a cache holding up to maxSize bytes of output.
// Values below 1 select DefaultCacheSize.
func NewOutputCache(maxSize int64) *OutputCache {
	if maxSize < 1 {
		maxSize = DefaultCacheSize
	}
	c := &OutputCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		head:    &cacheEntry{},
		tail:    &cacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get returns the output cached for key when it was produced from hash.
// A stale entry is dropped.
func (c *OutputCache) Get(key, hash string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)

		return nil, false
	}
	if entry.hash != hash {
		c.remove(entry)
		atomic.AddInt64(&c.misses, 1)

		return nil, false
	}

	c.moveToFront(entry)
	atomic.AddInt64(&c.hits, 1)

	return entry.value, true
}

// Set stores value as the output of key for hash. Values larger than the
// whole cache are not stored.
func (c *OutputCache) Set(key, hash string, value []byte) {
	size := int64(len(value))
	if size > c.maxSize {
		c.Invalidate(key)

		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.currentSize += size - entry.size
		entry.hash = hash
		entry.value = value
		entry.size = size
		c.moveToFront(entry)
		c.evict(entry)

		return
	}

	entry := &cacheEntry{key: key, hash: hash, value: value, size: size}
	c.entries[key] = entry
	c.currentSize += size
	c.addToFront(entry)
	c.evict(entry)
}

// Invalidate drops the entry for key.
func (c *OutputCache) Invalidate(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.remove(entry)
	}
}

// Clear drops every entry and resets the statistics.
func (c *OutputCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.currentSize = 0
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// Stats returns a snapshot of the cache counters.
func (c *OutputCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return CacheStats{
		Entries:   len(c.entries),
		Size:      c.currentSize,
		MaxSize:   c.maxSize,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

// evict removes least recently used entries, never keep, until the cache
// fits. Callers hold the mutex.
func (c *OutputCache) evict(keep *cacheEntry) {
	for c.currentSize > c.maxSize && c.tail.prev != c.head {
		lru := c.tail.prev
		if lru == keep {
			break
		}
		c.remove(lru)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *OutputCache) remove(entry *cacheEntry) {
	c.unlink(entry)
	delete(c.entries, entry.key)
	c.currentSize -= entry.size
}

// LRU doubly-linked list operations
func (c *OutputCache) addToFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *OutputCache) unlink(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (c *OutputCache) moveToFront(entry *cacheEntry) {
	c.unlink(entry)
	c.addToFront(entry)
}
