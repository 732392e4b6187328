// Package ngramdb implements the immutable, sorted, columnar n-gram
// database: digest -> (total count, top-K (label-id, count) pairs),
// with binary-search lookup and a self-describing binary persistence
// format (spec §4.5, §6).
package ngramdb

import (
	"sort"

	"github.com/rafael/stride/internal/ngram"
)

// magic identifies the container format. version 1 fixes DigestSize at
// 12 bytes; a future widening to 16 bytes (spec §9 Open Question) would
// bump this and be rejected by Load on older readers.
const (
	magic      = "STRNGDB1"
	formatVers = 1

	flagCompressed = 1 << 0

	headerLen = len(magic) + 1 + 1 + 4 + 4 + 4
)

// Record is one database row: a digest, the pre-truncation total count
// observed across all labels, and up to K (vocabulary id, count) pairs
// sorted by count descending with padding (id 0, count 0) at the tail.
type Record struct {
	Digest ngram.Digest
	Total  uint32
	Types  []uint32
	Counts []uint32
}

// backend abstracts over an in-memory (Build) or mmap-backed (Load)
// array layout so Lookup works identically over either.
type backend interface {
	len() int
	digestAt(i int) ngram.Digest
	totalAt(i int) uint32
	typesAt(i int) []uint32
	countsAt(i int) []uint32
	Close() error
}

// DB is a read-only, digest-sorted n-gram database for a fixed n-gram
// Size and top-K width K.
type DB struct {
	Size int
	K    int

	b     backend
	cache *Cache
}

// Close releases any resources (mmap handles) held by the database.
// It is a no-op for in-memory databases built with Build.
func (db *DB) Close() error {
	if db.b == nil {
		return nil
	}
	return db.b.Close()
}

// Len returns the number of records in the database.
func (db *DB) Len() int { return db.b.len() }

// memBackend holds fully materialized arrays, used by Build.
type memBackend struct {
	digests []ngram.Digest
	totals  []uint32
	types   [][]uint32
	counts  [][]uint32
}

func (m *memBackend) len() int                     { return len(m.digests) }
func (m *memBackend) digestAt(i int) ngram.Digest   { return m.digests[i] }
func (m *memBackend) totalAt(i int) uint32          { return m.totals[i] }
func (m *memBackend) typesAt(i int) []uint32        { return m.types[i] }
func (m *memBackend) countsAt(i int) []uint32       { return m.counts[i] }
func (m *memBackend) Close() error                  { return nil }

// Build sorts records by digest ascending and returns the resulting DB
// (spec §4.5 step 4). records is sorted in place.
func Build(size, k int, records []Record) *DB {
	sort.Slice(records, func(i, j int) bool {
		return ngram.Less(records[i].Digest, records[j].Digest)
	})

	mb := &memBackend{
		digests: make([]ngram.Digest, len(records)),
		totals:  make([]uint32, len(records)),
		types:   make([][]uint32, len(records)),
		counts:  make([][]uint32, len(records)),
	}
	for i, r := range records {
		mb.digests[i] = r.Digest
		mb.totals[i] = r.Total
		mb.types[i] = r.Types
		mb.counts[i] = r.Counts
	}
	return &DB{Size: size, K: k, b: mb}
}

// Lookup resolves digest to its record, routing through the db's LRU
// cache when one is attached (see EnableCache) and falling back to a
// direct binary search otherwise.
func (db *DB) Lookup(digest ngram.Digest) (total uint32, types []uint32, counts []uint32, ok bool) {
	if db.cache != nil {
		return db.cache.Lookup(digest)
	}
	return db.lookupUncached(digest)
}

// EnableCache attaches an LRU lookup cache of the given size (0 for the
// package default) to db, so that subsequent calls to Lookup route
// through it. Mmap-backed databases opened with Load benefit most,
// since a cache hit skips re-touching mapped pages for hot digests.
func (db *DB) EnableCache(maxEntries int) {
	db.cache = NewCache(db, maxEntries)
}

// lookupUncached performs a binary search for digest over the sorted
// digest array (spec §4.5 "Lookup"). ok is false if no record matches.
func (db *DB) lookupUncached(digest ngram.Digest) (total uint32, types []uint32, counts []uint32, ok bool) {
	a, b := 0, db.b.len()
	for a < b {
		m := (a + b) / 2
		d := db.b.digestAt(m)
		switch {
		case d == digest:
			return db.b.totalAt(m), db.b.typesAt(m), db.b.countsAt(m), true
		case ngram.Less(d, digest):
			a = m + 1
		default:
			b = m
		}
	}
	return 0, nil, nil, false
}
