package predictor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafael/stride/internal/corpus"
	"github.com/rafael/stride/internal/ngram"
	"github.com/rafael/stride/internal/ngramdb"
	"github.com/rafael/stride/internal/vocab"
)

func singleEntry(t *testing.T, line string) *corpus.Entry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o644))

	var got *corpus.Entry
	require.NoError(t, corpus.Open(path, false).Each(func(e *corpus.Entry) bool {
		got = e
		return true
	}))
	return got
}

func buildDB(t *testing.T, size, k int, records []ngramdb.Record) *ngramdb.DB {
	t.Helper()
	return ngramdb.Build(size, k, records)
}

// scenario 5 (spec §8): two databases, sizes 3 and 1. The size-3
// window misses in db3 but the size-1 window hits in db1; the
// prediction comes from db1's label.
func TestPredictMultiBackOffToSmallerSize(t *testing.T) {
	e := singleEntry(t, `{"tokens":["a","b","@@x@@","c","d"],"labels":{"name":{"x":{"label":"count","human":true}}}}`)
	v, err := vocab.New([]string{"count"}, []int{1})
	require.NoError(t, err)
	countID, _ := v.Lookup("count")

	db3 := buildDB(t, 3, 1, nil) // empty: every size-3 lookup misses

	// size-1 centered window around index 2 in [a,b,@@x@@,c,d] is [b,x,c].
	hit1 := ngram.Hash([]string{"b", "@@var_0@@", "c"}, ngram.SideNone)
	db1 := buildDB(t, 1, 1, []ngramdb.Record{
		{Digest: hit1, Total: 1, Types: []uint32{uint32(countID)}, Counts: []uint32{1}},
	})

	preds := PredictMulti(e, v, Config{LabelKind: "name", DBs: []*ngramdb.DB{db3, db1}})
	assert.Equal(t, "count", preds["x"])
}

// scenario 6 (spec §8): two labels tie on aggregate score; label A has
// global count 100, label B has global count 50; the predictor emits A.
func TestPredictMultiTieBreaksOnVocabFrequency(t *testing.T) {
	e := singleEntry(t, `{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"a","human":true}}}}`)
	v, err := vocab.New([]string{"a", "b"}, []int{100, 50})
	require.NoError(t, err)
	idA, _ := v.Lookup("a")
	idB, _ := v.Lookup("b")

	digest := ngram.Hash([]string{"??", "@@var_0@@", "??"}, ngram.SideNone)
	db := buildDB(t, 1, 2, []ngramdb.Record{
		{Digest: digest, Total: 2, Types: []uint32{uint32(idA), uint32(idB)}, Counts: []uint32{1, 1}},
	})

	preds := PredictMulti(e, v, Config{LabelKind: "name", DBs: []*ngramdb.DB{db}})
	assert.Equal(t, "a", preds["x"])
}

func TestPredictMultiNoHitLeavesVariableUnpredicted(t *testing.T) {
	e := singleEntry(t, `{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"count","human":true}}}}`)
	v, err := vocab.New([]string{"count"}, []int{1})
	require.NoError(t, err)

	db := buildDB(t, 1, 1, nil)
	preds := PredictMulti(e, v, Config{LabelKind: "name", DBs: []*ngramdb.DB{db}})
	_, ok := preds["x"]
	assert.False(t, ok)
}

func TestPredictDetailedReturnsPerSizeCandidatesWithoutAggregation(t *testing.T) {
	e := singleEntry(t, `{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"count","human":true}}}}`)
	v, err := vocab.New([]string{"count", "index"}, []int{5, 1})
	require.NoError(t, err)
	countID, _ := v.Lookup("count")
	indexID, _ := v.Lookup("index")

	digest1 := ngram.Hash([]string{"??", "@@var_0@@", "??"}, ngram.SideNone)
	db1 := buildDB(t, 1, 2, []ngramdb.Record{
		{Digest: digest1, Total: 2, Types: []uint32{uint32(countID), uint32(indexID)}, Counts: []uint32{3, 1}},
	})

	locs, detailed := PredictDetailed(e, v, Config{LabelKind: "name", DBs: []*ngramdb.DB{db1}})
	positions := locs["x"]
	require.Len(t, positions, 1)

	dp := detailed[positions[0]]
	require.NotNil(t, dp)
	require.Contains(t, dp.BySize, 1)
	require.Len(t, dp.BySize[1], 2)
	assert.Equal(t, "count", dp.BySize[1][0].Label)
	assert.Equal(t, uint32(3), dp.BySize[1][0].Count)
}
