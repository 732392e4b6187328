// Package predictor implements multi-database back-off lookup with
// per-variable score aggregation and winner selection (spec §4.7).
package predictor

import (
	"github.com/rafael/stride/internal/corpus"
	"github.com/rafael/stride/internal/ngramdb"
	"github.com/rafael/stride/internal/vocab"
)

// Candidate is one (label, observed-count) pair surviving a database
// lookup at a single occurrence.
type Candidate struct {
	Label string
	Count uint32
}

// posPrediction is what a hit at one occurrence position records: the
// n-gram size that produced it, the digest's pre-truncation total, and
// the vocabulary-resolved candidate list.
type posPrediction struct {
	size       int
	total      uint32
	candidates []Candidate
}

// Config selects the label kind and flanking mode; dbs must already be
// ordered from largest n-gram size to smallest (spec §4.7 back-off
// order).
type Config struct {
	LabelKind string
	Flanking  bool
	DBs       []*ngramdb.DB
}

// PredictMulti returns, for each variable NAME in e, the single
// best-label prediction (or "" with ok=false if no occurrence produced
// any candidate at all).
func PredictMulti(e *corpus.Entry, vc *vocab.Vocabulary, cfg Config) map[string]string {
	locs, preds := collect(e, vc, cfg)

	agg := make(map[string]map[string]float64, len(locs))
	for name, positions := range locs {
		scores := make(map[string]float64)
		for _, pos := range positions {
			p := preds[pos]
			if p == nil || len(p.candidates) == 0 {
				continue
			}
			var entryTotal uint32
			for _, c := range p.candidates {
				entryTotal += c.Count
			}
			if entryTotal == 0 {
				continue
			}
			for _, c := range p.candidates {
				// map the within-position ratio into [0.5, 1.0] so any
				// match contributes at least half a vote (spec §4.7 step 3).
				score := (float64(c.Count)/float64(entryTotal))*0.5 + 0.5
				scores[c.Label] += score
			}
		}
		agg[name] = scores
	}

	out := make(map[string]string, len(agg))
	for name, scores := range agg {
		best, ok := pickBest(scores, vc)
		if ok {
			out[name] = best
		}
	}
	return out
}

// DetailedPrediction is the per-occurrence, per-database-size view
// returned by PredictDetailed: no back-off, no aggregation.
type DetailedPrediction struct {
	BySize map[int][]Candidate
}

// PredictDetailed returns, for each occurrence position, the full
// per-database candidate list without back-off or aggregation — a
// diagnostic variant for inspecting disagreement between n-gram
// scales. No CLI subcommand calls it.
func PredictDetailed(e *corpus.Entry, vc *vocab.Vocabulary, cfg Config) (locs map[string][]corpus.Position, detailed map[corpus.Position]*DetailedPrediction) {
	locs = make(map[string][]corpus.Position)
	detailed = make(map[corpus.Position]*DetailedPrediction)

	e.IterNgrams(1, cfg.Flanking, func(occ corpus.NgramOccurrence) bool {
		locs[occ.Name] = append(locs[occ.Name], occ.Position)
		detailed[occ.Position] = &DetailedPrediction{BySize: make(map[int][]Candidate)}
		return true
	})

	for _, db := range cfg.DBs {
		e.IterNgrams(db.Size, cfg.Flanking, func(occ corpus.NgramOccurrence) bool {
			dp := detailed[occ.Position]
			if dp == nil {
				return true
			}
			_, types, counts, ok := db.Lookup(occ.Digest)
			if !ok {
				dp.BySize[db.Size] = nil
				return true
			}
			dp.BySize[db.Size] = resolveCandidates(vc, types, counts)
			return true
		})
	}
	return locs, detailed
}

// collect builds locs (name -> occurrence positions) and preds
// (position -> winning database's candidates, first hit wins) per
// spec §4.7 steps 1-2.
func collect(e *corpus.Entry, vc *vocab.Vocabulary, cfg Config) (map[string][]corpus.Position, map[corpus.Position]*posPrediction) {
	locs := make(map[string][]corpus.Position)
	preds := make(map[corpus.Position]*posPrediction)

	e.IterNgrams(1, cfg.Flanking, func(occ corpus.NgramOccurrence) bool {
		locs[occ.Name] = append(locs[occ.Name], occ.Position)
		preds[occ.Position] = nil
		return true
	})

	for _, db := range cfg.DBs {
		e.IterNgrams(db.Size, cfg.Flanking, func(occ corpus.NgramOccurrence) bool {
			if existing, seen := preds[occ.Position]; seen && existing != nil {
				return true // back-off: a larger-size match already won
			}
			total, types, counts, ok := db.Lookup(occ.Digest)
			if !ok {
				return true
			}
			candidates := resolveCandidates(vc, types, counts)
			preds[occ.Position] = &posPrediction{size: db.Size, total: total, candidates: candidates}
			return true
		})
	}
	return locs, preds
}

// resolveCandidates maps each non-zero-count (id, count) pair through
// the vocabulary, dropping ids that reverse to null (spec §4.7 step 2).
func resolveCandidates(vc *vocab.Vocabulary, types, counts []uint32) []Candidate {
	out := make([]Candidate, 0, len(types))
	for i, id := range types {
		c := counts[i]
		if c == 0 {
			continue
		}
		label, ok := vc.Reverse(int(id))
		if !ok {
			continue
		}
		out = append(out, Candidate{Label: label, Count: c})
	}
	return out
}

// pickBest selects the label with the highest aggregate score,
// breaking ties by global vocabulary frequency (spec §4.7 step 4,
// SPEC_FULL.md's Open Question decision: further ties break on the
// label string ascending, a total order).
func pickBest(scores map[string]float64, vc *vocab.Vocabulary) (string, bool) {
	var best string
	var bestScore float64
	found := false

	for label, score := range scores {
		if !found {
			best, bestScore, found = label, score, true
			continue
		}
		if score > bestScore {
			best, bestScore = label, score
			continue
		}
		if score == bestScore {
			bid, _ := vc.Lookup(best)
			lid, _ := vc.Lookup(label)
			bCount, lCount := vc.CountByID(bid), vc.CountByID(lid)
			if lCount > bCount || (lCount == bCount && label < best) {
				best, bestScore = label, score
			}
		}
	}
	return best, found
}
