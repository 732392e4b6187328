package ngramdb

import (
	"sync"

	"github.com/rafael/stride/internal/ngram"
)

// lookupResult mirrors the tuple returned by DB.Lookup, cached so that
// hot digests (common contexts like a bare "= 0x0 ;") skip the binary
// search on repeat occurrences within the same eval run.
type lookupResult struct {
	total  uint32
	types  []uint32
	counts []uint32
	ok     bool
}

// Cache is an LRU cache of recent DB.Lookup results, keyed by digest.
// Modeled on the teacher's SearchCache: a map plus an access-order
// slice for eviction, guarded by a single mutex.
type Cache struct {
	mu         sync.RWMutex
	db         *DB
	entries    map[ngram.Digest]lookupResult
	maxEntries int
	accessOrder []ngram.Digest
}

// NewCache wraps db with an LRU lookup cache holding up to maxEntries
// digests.
func NewCache(db *DB, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Cache{
		db:          db,
		entries:     make(map[ngram.Digest]lookupResult, maxEntries),
		maxEntries:  maxEntries,
		accessOrder: make([]ngram.Digest, 0, maxEntries),
	}
}

// Lookup returns the cached result for digest if present, otherwise
// delegates to the wrapped DB and caches the outcome (including
// misses, so repeated misses on a rare digest stay cheap).
func (c *Cache) Lookup(digest ngram.Digest) (uint32, []uint32, []uint32, bool) {
	c.mu.RLock()
	res, hit := c.entries[digest]
	c.mu.RUnlock()
	if hit {
		c.mu.Lock()
		c.touch(digest)
		c.mu.Unlock()
		return res.total, res.types, res.counts, res.ok
	}

	total, types, counts, ok := c.db.lookupUncached(digest)

	c.mu.Lock()
	if _, exists := c.entries[digest]; !exists {
		if len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
		c.entries[digest] = lookupResult{total, types, counts, ok}
		c.accessOrder = append(c.accessOrder, digest)
	}
	c.mu.Unlock()

	return total, types, counts, ok
}

func (c *Cache) touch(digest ngram.Digest) {
	for i, d := range c.accessOrder {
		if d == digest {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
	c.accessOrder = append(c.accessOrder, digest)
}

func (c *Cache) evictOldest() {
	if len(c.accessOrder) == 0 {
		return
	}
	oldest := c.accessOrder[0]
	c.accessOrder = c.accessOrder[1:]
	delete(c.entries, oldest)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
