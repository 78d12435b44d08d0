package statepath

// CacheEntry is a memoized value with its dirty flag. The cache never
// recomputes an entry; callers consult Dirty on the next read.
type CacheEntry struct {
	Value any
	Dirty bool
}

// Cache maps addresses to entries. Keys are compared by identity, so memoized
// address pointers make natural keys.
type Cache[K comparable] struct {
	entries map[K]*CacheEntry
}

// NewCache returns an empty cache.
func NewCache[K comparable]() *Cache[K] {
	return &Cache[K]{entries: map[K]*CacheEntry{}}
}

// GetEntry returns the entry stored for key, or nil.
func (c *Cache[K]) GetEntry(key K) *CacheEntry {
	return c.entries[key]
}

// SetEntry stores entry for key; a nil entry deletes it.
func (c *Cache[K]) SetEntry(key K, entry *CacheEntry) {
	if entry == nil {
		delete(c.entries, key)
		return
	}
	if c.entries == nil {
		c.entries = map[K]*CacheEntry{}
	}
	c.entries[key] = entry
}

// MarkDirty flags an existing entry. Absent keys are left absent.
func (c *Cache[K]) MarkDirty(key K) bool {
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	entry.Dirty = true
	return true
}

// Len returns the number of stored entries.
func (c *Cache[K]) Len() int {
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache[K]) Clear() {
	c.entries = map[K]*CacheEntry{}
}
