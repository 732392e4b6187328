package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafael/stride/internal/corpus"
	"github.com/rafael/stride/internal/ngram"
	"github.com/rafael/stride/internal/vocab"
)

func writeCorpus(t *testing.T, lines ...string) *corpus.Corpus {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return corpus.Open(path, false)
}

// scenario 1 from spec §8: tokens [int, =, @@x@@, 0x0, ;], label x ->
// "count" (human), vocab [count, i, n]. Expect one record for the
// digest of [=, @@var_0@@, 0x0] with label count, count 1, total 1.
func TestBuildSingleFunctionSizeOneCentered(t *testing.T) {
	c := writeCorpus(t, `{"tokens":["int","=","@@x@@","0x0",";"],"labels":{"name":{"x":{"label":"count","human":true}}}}`)

	v, err := vocab.New([]string{"count", "i", "n"}, []int{1, 1, 1})
	require.NoError(t, err)

	cfg := Config{LabelKind: "name", Size: 1, TopK: 5, NumWorkers: 2}
	db, err := Build(c, v, cfg)
	require.NoError(t, err)

	digest := ngram.Hash([]string{"=", "@@var_0@@", "0x0"}, ngram.SideNone)
	total, types, counts, ok := db.Lookup(digest)
	require.True(t, ok)
	assert.Equal(t, uint32(1), total)

	countID, _ := v.Lookup("count")
	require.Equal(t, uint32(countID), types[0])
	assert.Equal(t, uint32(1), counts[0])
	for i := 1; i < len(types); i++ {
		assert.Equal(t, uint32(0), types[i])
		assert.Equal(t, uint32(0), counts[i])
	}
}

func TestBuildSkipsNonHumanLabels(t *testing.T) {
	c := writeCorpus(t, `{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"<none>","human":false}}}}`)
	v, err := vocab.New([]string{"count"}, []int{1})
	require.NoError(t, err)

	db, err := Build(c, v, Config{LabelKind: "name", Size: 1, TopK: 3, NumWorkers: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, db.Len())
}

func TestBuildDropsLabelsMissingFromVocabulary(t *testing.T) {
	c := writeCorpus(t,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"rare_label","human":true}}}}`,
	)
	// "rare_label" never appears in the vocabulary built below; the
	// digest still gets a record, padded entirely.
	v, err := vocab.New([]string{"count"}, []int{1})
	require.NoError(t, err)

	db, err := Build(c, v, Config{LabelKind: "name", Size: 1, TopK: 2, NumWorkers: 1})
	require.NoError(t, err)
	require.Equal(t, 1, db.Len())

	digest := ngram.Hash([]string{"??", "@@var_0@@", "??"}, ngram.SideNone)
	total, types, counts, ok := db.Lookup(digest)
	require.True(t, ok)
	assert.Equal(t, uint32(1), total) // pre-truncation total still counts the dropped label
	assert.Equal(t, []uint32{0, 0}, types)
	assert.Equal(t, []uint32{0, 0}, counts)
}

func TestBuildAggregatesAcrossMultipleEntries(t *testing.T) {
	c := writeCorpus(t,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"count","human":true}}}}`,
		`{"tokens":["@@y@@"],"labels":{"name":{"y":{"label":"count","human":true}}}}`,
		`{"tokens":["@@z@@"],"labels":{"name":{"z":{"label":"index","human":true}}}}`,
	)
	v, err := vocab.New([]string{"count", "index"}, []int{2, 1})
	require.NoError(t, err)

	db, err := Build(c, v, Config{LabelKind: "name", Size: 1, TopK: 2, NumWorkers: 4})
	require.NoError(t, err)
	require.Equal(t, 1, db.Len())

	digest := ngram.Hash([]string{"??", "@@var_0@@", "??"}, ngram.SideNone)
	total, types, counts, ok := db.Lookup(digest)
	require.True(t, ok)
	assert.Equal(t, uint32(3), total)

	countID, _ := v.Lookup("count")
	indexID, _ := v.Lookup("index")
	assert.Equal(t, uint32(countID), types[0])
	assert.Equal(t, uint32(2), counts[0])
	assert.Equal(t, uint32(indexID), types[1])
	assert.Equal(t, uint32(1), counts[1])
}

// An invalid label occupying a top-K count slot shrinks the record; it
// is never backfilled from a lower-ranked, vocabulary-valid label
// (original ngram.py slices to [:topk] before filtering).
func TestBuildTruncatesBeforeFilteringInvalidLabels(t *testing.T) {
	c := writeCorpus(t,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"invalid_label","human":true}}}}`,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"invalid_label","human":true}}}}`,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"invalid_label","human":true}}}}`,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"invalid_label","human":true}}}}`,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"invalid_label","human":true}}}}`,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"valid_label","human":true}}}}`,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"valid_label","human":true}}}}`,
		`{"tokens":["@@x@@"],"labels":{"name":{"x":{"label":"valid_label","human":true}}}}`,
	)
	v, err := vocab.New([]string{"valid_label"}, []int{3})
	require.NoError(t, err)

	db, err := Build(c, v, Config{LabelKind: "name", Size: 1, TopK: 1, NumWorkers: 1})
	require.NoError(t, err)
	require.Equal(t, 1, db.Len())

	digest := ngram.Hash([]string{"??", "@@var_0@@", "??"}, ngram.SideNone)
	total, types, counts, ok := db.Lookup(digest)
	require.True(t, ok)
	assert.Equal(t, uint32(8), total)
	assert.Equal(t, []uint32{0}, types)
	assert.Equal(t, []uint32{0}, counts)
}
