package ngramdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafael/stride/internal/ngram"
)

func digestOf(b byte) ngram.Digest {
	var d ngram.Digest
	d[0] = b
	return d
}

func TestBuildSortsByDigestAscending(t *testing.T) {
	records := []Record{
		{Digest: digestOf(3), Total: 1, Types: []uint32{1}, Counts: []uint32{1}},
		{Digest: digestOf(1), Total: 1, Types: []uint32{1}, Counts: []uint32{1}},
		{Digest: digestOf(2), Total: 1, Types: []uint32{1}, Counts: []uint32{1}},
	}
	db := Build(3, 1, records)

	require.Equal(t, 3, db.Len())
	assert.Equal(t, digestOf(1), db.b.digestAt(0))
	assert.Equal(t, digestOf(2), db.b.digestAt(1))
	assert.Equal(t, digestOf(3), db.b.digestAt(2))
}

func TestLookupFindsExistingDigest(t *testing.T) {
	records := []Record{
		{Digest: digestOf(1), Total: 5, Types: []uint32{2, 0}, Counts: []uint32{4, 0}},
		{Digest: digestOf(9), Total: 2, Types: []uint32{3, 0}, Counts: []uint32{2, 0}},
	}
	db := Build(3, 2, records)

	total, types, counts, ok := db.Lookup(digestOf(9))
	require.True(t, ok)
	assert.Equal(t, uint32(2), total)
	assert.Equal(t, []uint32{3, 0}, types)
	assert.Equal(t, []uint32{2, 0}, counts)

	_, _, _, ok = db.Lookup(digestOf(5))
	assert.False(t, ok)
}

func TestTopKOrderingAndTotalInvariant(t *testing.T) {
	// total (10) exceeds sum(counts) (7) because the third observed
	// label (count 3) was truncated away by top-K=2 (spec §8).
	records := []Record{
		{Digest: digestOf(1), Total: 10, Types: []uint32{1, 2}, Counts: []uint32{5, 2}},
	}
	db := Build(3, 2, records)

	total, _, counts, ok := db.Lookup(digestOf(1))
	require.True(t, ok)
	assert.GreaterOrEqual(t, counts[0], counts[1])

	sum := uint32(0)
	for _, c := range counts {
		sum += c
	}
	assert.GreaterOrEqual(t, total, sum)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	records := []Record{
		{Digest: digestOf(1), Total: 5, Types: []uint32{2, 0}, Counts: []uint32{4, 0}},
		{Digest: digestOf(9), Total: 2, Types: []uint32{3, 0}, Counts: []uint32{2, 0}},
	}
	db := Build(3, 2, records)

	dir := t.TempDir()
	path := filepath.Join(dir, "ngrams.db")
	require.NoError(t, db.Save(path, false))

	loaded, err := Load(path)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, db.Size, loaded.Size)
	assert.Equal(t, db.K, loaded.K)
	require.Equal(t, db.Len(), loaded.Len())

	total, types, counts, ok := loaded.Lookup(digestOf(9))
	require.True(t, ok)
	assert.Equal(t, uint32(2), total)
	assert.Equal(t, []uint32{3, 0}, types)
	assert.Equal(t, []uint32{2, 0}, counts)
}

func TestSaveLoadRoundTripCompressed(t *testing.T) {
	records := []Record{
		{Digest: digestOf(1), Total: 7, Types: []uint32{1, 2}, Counts: []uint32{5, 2}},
	}
	db := Build(2, 2, records)

	dir := t.TempDir()
	path := filepath.Join(dir, "ngrams_compressed.db")
	require.NoError(t, db.Save(path, true))

	loaded, err := Load(path)
	require.NoError(t, err)
	defer loaded.Close()

	total, types, counts, ok := loaded.Lookup(digestOf(1))
	require.True(t, ok)
	assert.Equal(t, uint32(7), total)
	assert.Equal(t, []uint32{1, 2}, types)
	assert.Equal(t, []uint32{5, 2}, counts)
}

func TestLoadEnablesCacheOnLookup(t *testing.T) {
	records := []Record{
		{Digest: digestOf(1), Total: 5, Types: []uint32{2, 0}, Counts: []uint32{4, 0}},
	}
	db := Build(3, 2, records)

	dir := t.TempDir()
	path := filepath.Join(dir, "ngrams.db")
	require.NoError(t, db.Save(path, false))

	loaded, err := Load(path)
	require.NoError(t, err)
	defer loaded.Close()

	require.NotNil(t, loaded.cache)

	total, types, counts, ok := loaded.Lookup(digestOf(1))
	require.True(t, ok)
	assert.Equal(t, uint32(5), total)
	assert.Equal(t, []uint32{2, 0}, types)
	assert.Equal(t, []uint32{4, 0}, counts)
	assert.Equal(t, 1, loaded.cache.Len())
}

func TestCacheReturnsSameResultAsDirectLookup(t *testing.T) {
	records := []Record{
		{Digest: digestOf(1), Total: 5, Types: []uint32{2, 0}, Counts: []uint32{4, 0}},
	}
	db := Build(3, 2, records)
	cache := NewCache(db, 10)

	total, types, counts, ok := cache.Lookup(digestOf(1))
	require.True(t, ok)
	assert.Equal(t, uint32(5), total)
	assert.Equal(t, []uint32{2, 0}, types)
	assert.Equal(t, []uint32{4, 0}, counts)

	// second lookup is served from the cache; same values.
	total2, _, _, ok2 := cache.Lookup(digestOf(1))
	assert.True(t, ok2)
	assert.Equal(t, total, total2)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	records := []Record{
		{Digest: digestOf(1), Total: 1, Types: []uint32{1}, Counts: []uint32{1}},
		{Digest: digestOf(2), Total: 1, Types: []uint32{1}, Counts: []uint32{1}},
		{Digest: digestOf(3), Total: 1, Types: []uint32{1}, Counts: []uint32{1}},
	}
	db := Build(1, 1, records)
	cache := NewCache(db, 2)

	cache.Lookup(digestOf(1))
	cache.Lookup(digestOf(2))
	cache.Lookup(digestOf(3))

	assert.Equal(t, 2, cache.Len())
}
