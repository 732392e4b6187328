// Package vocab implements the bidirectional label<->id table used to
// train and predict against, plus the global frequency counts used for
// tie-breaking during prediction.
//
// Id 0 is reserved as the padding/null id (see SPEC_FULL.md's Open
// Question decisions) — real labels are assigned ids starting at 1, in
// descending order of global frequency.
package vocab

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// NullID is the reserved padding id. It is never returned by Lookup
// for a real label and never resolves to a label via Reverse.
const NullID = 0

// Vocabulary is an ordered, bidirectional label<->id table.
type Vocabulary struct {
	labels []string       // index i holds the label for id i+1
	counts []int          // parallel global occurrence counts
	ids    map[string]int // label -> id (1-based)
}

// New builds a Vocabulary from labels sorted by descending count;
// ids are assigned 1, 2, 3, ... in that order.
func New(labels []string, counts []int) (*Vocabulary, error) {
	if len(labels) != len(counts) {
		return nil, fmt.Errorf("vocab: %d labels but %d counts", len(labels), len(counts))
	}
	ids := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, dup := ids[l]; dup {
			return nil, fmt.Errorf("vocab: duplicate label %q", l)
		}
		ids[l] = i + 1
	}
	return &Vocabulary{labels: labels, counts: counts, ids: ids}, nil
}

// Lookup returns the id for label, or (0, false) if label is not in
// the vocabulary.
func (v *Vocabulary) Lookup(label string) (int, bool) {
	id, ok := v.ids[label]
	return id, ok
}

// Reverse returns the label for id, or "" and false for NullID or any
// id outside the vocabulary's range.
func (v *Vocabulary) Reverse(id int) (string, bool) {
	if id == NullID || id < 1 || id > len(v.labels) {
		return "", false
	}
	return v.labels[id-1], true
}

// CountByID returns the global occurrence count recorded for id, used
// for tie-breaking during prediction. Returns 0 for NullID or an
// out-of-range id.
func (v *Vocabulary) CountByID(id int) int {
	if id == NullID || id < 1 || id > len(v.counts) {
		return 0
	}
	return v.counts[id-1]
}

// Len returns the number of real labels (excluding NullID).
func (v *Vocabulary) Len() int {
	return len(v.labels)
}

// Save writes the vocabulary as a two-column TSV file ("LABEL\tCOUNT\n"
// per line), in id order. Line i (0-based) holds the entry for id i+1.
func (v *Vocabulary) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vocab: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, label := range v.labels {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", label, v.counts[i]); err != nil {
			return fmt.Errorf("vocab: write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("vocab: flush %s: %w", path, err)
	}
	return nil
}

// Load reads a vocabulary previously written by Save, preserving id
// order.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: open %s: %w", path, err)
	}
	defer f.Close()

	var labels []string
	var counts []int

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("vocab: %s:%d: malformed line %q", path, lineNo, line)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("vocab: %s:%d: bad count %q: %w", path, lineNo, parts[1], err)
		}
		labels = append(labels, parts[0])
		counts = append(counts, count)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}

	return New(labels, counts)
}

// Counter accumulates label -> count observations, then produces a
// Vocabulary sorted by descending count (ties broken lexicographically
// ascending on the label, a total order — SPEC_FULL.md's Open Question
// decision).
type Counter struct {
	counts map[string]int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add accumulates n occurrences of label.
func (c *Counter) Add(label string, n int) {
	c.counts[label] += n
}

// Build sorts accumulated labels by descending count (ties broken
// lexicographically ascending) and returns the resulting Vocabulary.
func (c *Counter) Build() (*Vocabulary, error) {
	type pair struct {
		label string
		count int
	}
	pairs := make([]pair, 0, len(c.counts))
	for l, n := range c.counts {
		pairs = append(pairs, pair{l, n})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].label < pairs[j].label
	})

	labels := make([]string, len(pairs))
	counts := make([]int, len(pairs))
	for i, p := range pairs {
		labels[i] = p.label
		counts[i] = p.count
	}
	return New(labels, counts)
}
