// Package builder implements the parallel map-reduce n-gram database
// builder (spec §4.5, §4.6): a worker pool maps each corpus entry to a
// partial digest -> label -> count histogram, a single reducer merges
// histograms in streaming order, and a final truncation pass keeps the
// top-K vocabulary-mapped candidates per digest before sorting into an
// ngramdb.DB.
package builder

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/sirupsen/logrus"

	"github.com/rafael/stride/internal/corpus"
	"github.com/rafael/stride/internal/ngram"
	"github.com/rafael/stride/internal/ngramdb"
	"github.com/rafael/stride/internal/stridelog"
	"github.com/rafael/stride/internal/vocab"
)

// Config controls one build-db run.
type Config struct {
	LabelKind  string // "name" or "type"
	Size       int    // n-gram size
	TopK       int    // candidates kept per digest
	Flanking   bool
	NumWorkers int
	Logger     *logrus.Logger
}

// DefaultConfig returns the spec's documented CLI defaults
// (--size 3 --topk 5), sized to GOMAXPROCS workers.
func DefaultConfig() Config {
	return Config{
		LabelKind:  "name",
		Size:       3,
		TopK:       5,
		Flanking:   false,
		NumWorkers: runtime.GOMAXPROCS(0),
		Logger:     stridelog.Default,
	}
}

// histogram is one worker's partial result: digest -> label -> count.
type histogram map[ngram.Digest]map[string]int

// Build streams c, maps each entry to a partial histogram across
// cfg.NumWorkers goroutines pulling from a shared queue (spec §4.6
// "unordered pool"), merges results sequentially as they complete, and
// returns the resulting sorted, top-K-truncated database.
func Build(c *corpus.Corpus, vc *vocab.Vocabulary, cfg Config) (*ngramdb.DB, error) {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = stridelog.Default
	}

	entries := make(chan *corpus.Entry, cfg.NumWorkers*4)
	results := make(chan histogram, cfg.NumWorkers*4)

	var wg sync.WaitGroup
	wg.Add(cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		go func() {
			defer wg.Done()
			for e := range entries {
				results <- mapEntry(e, cfg.LabelKind, cfg.Size, cfg.Flanking)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var readErr error
	go func() {
		defer close(entries)
		readErr = c.Each(func(e *corpus.Entry) bool {
			entries <- e
			return true
		})
	}()

	merged := make(histogram)
	processed := 0
	for h := range results {
		mergeInto(merged, h)
		processed++
		if processed%10000 == 0 {
			cfg.Logger.Infof("build-db: merged %d entries, %d distinct digests", processed, len(merged))
		}
	}

	if readErr != nil {
		return nil, fmt.Errorf("builder: %w", readErr)
	}

	cfg.Logger.Infof("build-db: mapped %d entries into %d distinct digests", processed, len(merged))

	records := truncate(merged, vc, cfg.TopK)
	db := ngramdb.Build(cfg.Size, cfg.TopK, records)
	cfg.Logger.Infof("build-db: %d sorted records, size=%d topk=%d", db.Len(), cfg.Size, cfg.TopK)
	return db, nil
}

// mapEntry is the map phase for a single entry (spec §4.5 step 1):
// only occurrences whose label is human contribute.
func mapEntry(e *corpus.Entry, labelKind string, size int, flanking bool) histogram {
	labels := e.Labels(labelKind)
	h := make(histogram)

	e.IterNgrams(size, flanking, func(occ corpus.NgramOccurrence) bool {
		lbl := labels.Get(occ.Name)
		if !lbl.Human {
			return true
		}
		byLabel, ok := h[occ.Digest]
		if !ok {
			byLabel = make(map[string]int)
			h[occ.Digest] = byLabel
		}
		byLabel[lbl.Label]++
		return true
	})
	return h
}

// mergeInto sums src into dst (spec §4.5 step 2: reduction is
// commutative and associative, so streaming order does not affect the
// result).
func mergeInto(dst histogram, src histogram) {
	for digest, byLabel := range src {
		dstByLabel, ok := dst[digest]
		if !ok {
			dst[digest] = byLabel
			continue
		}
		for label, count := range byLabel {
			dstByLabel[label] += count
		}
	}
}

type labelCount struct {
	label string
	count int
}

// truncate performs spec §4.5 step 3: for each digest, sort by count
// descending, keep the top K, drop labels absent from the vocabulary,
// pad with (id=0, count=0), and record the pre-truncation total.
func truncate(merged histogram, vc *vocab.Vocabulary, topK int) []ngramdb.Record {
	validIDs := roaring.New()
	for id := 1; id <= vc.Len(); id++ {
		validIDs.Add(uint32(id))
	}

	records := make([]ngramdb.Record, 0, len(merged))
	for digest, byLabel := range merged {
		pairs := make([]labelCount, 0, len(byLabel))
		total := 0
		for label, count := range byLabel {
			total += count
			pairs = append(pairs, labelCount{label, count})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].count != pairs[j].count {
				return pairs[i].count > pairs[j].count
			}
			return pairs[i].label < pairs[j].label
		})

		// Slice to the top K *before* filtering invalid labels (original
		// ngram.py: build_ngram_db_multi does sorted(...)[:topk] first).
		// A vocabulary-cutoff label occupying a top-K slot shrinks the
		// record rather than being backfilled from rank K+1.
		if len(pairs) > topK {
			pairs = pairs[:topK]
		}

		types := make([]uint32, 0, topK)
		counts := make([]uint32, 0, topK)
		for _, p := range pairs {
			id, ok := vc.Lookup(p.label)
			if !ok || !validIDs.Contains(uint32(id)) {
				continue
			}
			types = append(types, uint32(id))
			counts = append(counts, uint32(p.count))
		}
		for len(types) < topK {
			types = append(types, 0)
			counts = append(counts, 0)
		}

		records = append(records, ngramdb.Record{
			Digest: digest,
			Total:  uint32(total),
			Types:  types,
			Counts: counts,
		})
	}
	return records
}
