// Package labelindex provides a fuzzy full-text search over a
// vocabulary's label strings, used by the label-search diagnostic
// subcommand (SPEC_FULL.md §3 domain stack) to let a user
// find the nearest known labels to a misspelled or partial guess.
//
// Adapted from the teacher's internal/rag.BleveSearcher: the same
// bleve index-mapping-plus-boosted-boolean-query shape, narrowed from
// code chunks down to a single Label/Count document.
package labelindex

import (
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/rafael/stride/internal/vocab"
)

// Hit is one search result: a label string, its global occurrence
// count, and the bleve relevance score.
type Hit struct {
	Label string
	Count int
	Score float64
}

// Index is a bleve-backed, on-disk fuzzy index over vocabulary labels.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
}

// Open opens the index at path, creating it with the label mapping if
// it does not already exist.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, labelMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("labelindex: open %s: %w", path, err)
	}
	return &Index{index: idx, path: path}, nil
}

func labelMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	label := bleve.NewTextFieldMapping()
	label.Analyzer = "standard"
	label.Store = true
	label.IncludeInAll = true
	doc.AddFieldMappingsAt("label", label)

	labelExact := bleve.NewTextFieldMapping()
	labelExact.Analyzer = "keyword"
	labelExact.Store = true
	doc.AddFieldMappingsAt("label_exact", labelExact)

	count := bleve.NewNumericFieldMapping()
	count.Store = true
	count.IncludeInAll = false
	doc.AddFieldMappingsAt("count", count)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = "standard"
	return im
}

// Build indexes every label in v, replacing any prior contents.
func Build(path string, v *vocab.Vocabulary) (*Index, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("labelindex: clear %s: %w", path, err)
	}
	idx, err := bleve.New(path, labelMapping())
	if err != nil {
		return nil, fmt.Errorf("labelindex: create %s: %w", path, err)
	}
	li := &Index{index: idx, path: path}

	for id := 1; id <= v.Len(); id++ {
		label, _ := v.Reverse(id)
		if err := li.indexLabel(label, v.CountByID(id)); err != nil {
			idx.Close()
			return nil, err
		}
	}
	return li, nil
}

func (li *Index) indexLabel(label string, count int) error {
	doc := map[string]interface{}{
		"label":       label,
		"label_exact": label,
		"count":       count,
	}
	return li.index.Index(label, doc)
}

// Search returns up to limit labels matching query, ranked by a
// boosted query: exact match highest, fuzzy match (edit distance 2)
// lowest, so near-misses like a transposed letter still surface.
func (li *Index) Search(query string, limit int) ([]Hit, error) {
	li.mu.RLock()
	defer li.mu.RUnlock()

	bq := bleve.NewBooleanQuery()

	exact := bleve.NewTermQuery(query)
	exact.SetField("label_exact")
	exact.SetBoost(5.0)
	bq.AddShould(exact)

	match := bleve.NewMatchQuery(query)
	match.SetField("label")
	match.SetBoost(2.0)
	bq.AddShould(match)

	fuzzy := bleve.NewFuzzyQuery(query)
	fuzzy.SetField("label")
	fuzzy.SetFuzziness(2)
	fuzzy.SetBoost(0.5)
	bq.AddShould(fuzzy)

	req := bleve.NewSearchRequest(bq)
	req.Size = limit
	req.Fields = []string{"label", "count"}

	res, err := li.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("labelindex: search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		if label, ok := h.Fields["label"].(string); ok {
			hit.Label = label
		}
		if count, ok := h.Fields["count"].(float64); ok {
			hit.Count = int(count)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close closes the underlying bleve index.
func (li *Index) Close() error {
	return li.index.Close()
}
