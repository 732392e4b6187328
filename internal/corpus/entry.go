package corpus

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/rafael/stride/internal/ngram"
	"github.com/rafael/stride/internal/token"
)

// sentinel is the padding token used when an n-gram window runs past
// the start or end of a function's token sequence.
const sentinel = "??"

// Label is one (label-string, human-flag) observation for a variable.
type Label struct {
	Label string `json:"label"`
	Human bool   `json:"human"`
}

// rawEntry mirrors the corpus JSONL record shape (spec.md §6).
type rawEntry struct {
	Tokens []string                  `json:"tokens"`
	Labels map[string]map[string]Label `json:"labels"`
	Meta   map[string]interface{}    `json:"meta"`
}

// Entry is one decompiled function's record: its token stream, its
// per-label-kind variable label maps, and optional passthrough
// metadata.
type Entry struct {
	raw       rawEntry
	fullStrip bool

	stripped []string // memoized normalized tokens
	hasStrip bool

	placeholders *bitset.BitSet // memoized: token index -> is placeholder
}

func newEntry(raw rawEntry, fullStrip bool) *Entry {
	return &Entry{raw: raw, fullStrip: fullStrip}
}

// Tokens returns the entry's raw token sequence.
func (e *Entry) Tokens() []string {
	return e.raw.Tokens
}

// Meta returns the entry's free-form passthrough metadata, or nil.
func (e *Entry) Meta() map[string]interface{} {
	return e.raw.Meta
}

// StrippedTokens returns the normalized token sequence (spec §4.1),
// computed once and memoized for the lifetime of the Entry.
func (e *Entry) StrippedTokens() []string {
	if e.hasStrip {
		return e.stripped
	}
	out := token.NormalizeAll(e.raw.Tokens)
	if e.fullStrip {
		out = token.FullStrip(out)
	}
	e.stripped = out
	e.hasStrip = true
	return out
}

// placeholderBits lazily computes and caches a bitset marking which
// token positions are variable placeholders, avoiding repeated
// prefix/suffix string tests in AllVars/VarCounts/IterNgrams.
func (e *Entry) placeholderBits() *bitset.BitSet {
	if e.placeholders != nil {
		return e.placeholders
	}
	bs := bitset.New(uint(len(e.raw.Tokens)))
	for i, t := range e.raw.Tokens {
		if token.IsPlaceholder(t) {
			bs.Set(uint(i))
		}
	}
	e.placeholders = bs
	return bs
}

// Labels returns an accessor into the entry's label map for the given
// label kind (e.g. "name" or "type").
func (e *Entry) Labels(kind string) Labels {
	return Labels{raw: e.raw.Labels[kind]}
}

// AllVars returns the set of distinct variable NAMEs appearing as
// placeholders in the token stream.
func (e *Entry) AllVars() map[string]struct{} {
	bits := e.placeholderBits()
	out := make(map[string]struct{})
	for i := uint(0); i < bits.Len(); i++ {
		if bits.Test(i) {
			out[token.PlaceholderName(e.raw.Tokens[i])] = struct{}{}
		}
	}
	return out
}

// VarCounts returns, for each distinct variable NAME, its number of
// placeholder occurrences in the token stream.
func (e *Entry) VarCounts() map[string]int {
	bits := e.placeholderBits()
	out := make(map[string]int)
	for i := uint(0); i < bits.Len(); i++ {
		if bits.Test(i) {
			out[token.PlaceholderName(e.raw.Tokens[i])]++
		}
	}
	return out
}

// NgramOccurrence is one emission of IterNgrams: the digest of a
// window, the window itself, the occurrence position, and the
// variable NAME it belongs to.
type NgramOccurrence struct {
	Digest   ngram.Digest
	Window   []string
	Position Position
	Name     string
}

// Position identifies an occurrence site. In centered mode it is a
// bare token Index; in flanking mode Side additionally distinguishes
// the left and right half-windows of the same Index.
type Position struct {
	Index int
	Side  ngram.Side
}

// IterNgrams calls yield once per variable placeholder occurrence. In
// centered mode it yields the 2*size+1 window around the occurrence;
// in flanking mode it yields two tuples per occurrence (left then
// right half-window, each size tokens, the center token excluded from
// both). Iteration stops early if yield returns false.
func (e *Entry) IterNgrams(size int, flanking bool, yield func(NgramOccurrence) bool) {
	stripped := e.StrippedTokens()
	padded := make([]string, 0, len(stripped)+2*size)
	for k := 0; k < size; k++ {
		padded = append(padded, sentinel)
	}
	padded = append(padded, stripped...)
	for k := 0; k < size; k++ {
		padded = append(padded, sentinel)
	}

	bits := e.placeholderBits()
	for i := uint(0); i < bits.Len(); i++ {
		if !bits.Test(i) {
			continue
		}
		idx := int(i)
		name := token.PlaceholderName(e.raw.Tokens[idx])

		if !flanking {
			span := padded[idx : idx+size*2+1]
			occ := NgramOccurrence{
				Digest:   ngram.Hash(span, ngram.SideNone),
				Window:   span,
				Position: Position{Index: idx},
				Name:     name,
			}
			if !yield(occ) {
				return
			}
			continue
		}

		leftSpan := padded[idx : idx+size]
		rightSpan := padded[idx+size+1 : idx+size*2+1]

		left := NgramOccurrence{
			Digest:   ngram.Hash(leftSpan, ngram.SideLeft),
			Window:   leftSpan,
			Position: Position{Index: idx, Side: ngram.SideLeft},
			Name:     name,
		}
		if !yield(left) {
			return
		}

		right := NgramOccurrence{
			Digest:   ngram.Hash(rightSpan, ngram.SideRight),
			Window:   rightSpan,
			Position: Position{Index: idx, Side: ngram.SideRight},
			Name:     name,
		}
		if !yield(right) {
			return
		}
	}
}

// Labels is an accessor into one label-kind's variable -> Label map.
type Labels struct {
	raw map[string]Label
}

// Get returns the Label recorded for variable NAME var, or the zero
// Label (Human == false) if none was recorded.
func (l Labels) Get(name string) Label {
	return l.raw[name]
}

// AllHumanLabels returns every label string marked human in this
// label kind.
func (l Labels) AllHumanLabels() []string {
	out := make([]string, 0, len(l.raw))
	for _, v := range l.raw {
		if v.Human {
			out = append(out, v.Label)
		}
	}
	return out
}
