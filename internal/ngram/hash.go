// Package ngram computes the fixed-width digest of an n-gram window,
// canonicalizing the names of any variable placeholders it contains so
// that the identity of the target variable never influences the hash.
package ngram

import (
	"crypto/sha256"
	"fmt"

	"github.com/rafael/stride/internal/token"
)

// DigestSize is the number of leading SHA-256 bytes kept as a digest.
const DigestSize = 12

// Digest identifies an n-gram equivalence class.
type Digest [DigestSize]byte

// Side discriminates a flanking half-window.
type Side int

const (
	// SideNone marks a centered (whole-window) hash.
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) bytes() []byte {
	switch s {
	case SideLeft:
		return []byte("left")
	case SideRight:
		return []byte("right")
	default:
		return nil
	}
}

// Hash computes the digest of window, renaming every variable
// placeholder it contains to a canonical "@@var_K@@" form keyed by the
// zero-based index of the NAME's first appearance in window, then
// hashing the 0xFF-separated concatenation plus the side discriminator.
func Hash(window []string, side Side) Digest {
	rewritten := make([]string, len(window))
	seen := make(map[string]int, 4)

	for i, tok := range window {
		if token.IsPlaceholder(tok) {
			name := token.PlaceholderName(tok)
			idx, ok := seen[name]
			if !ok {
				idx = len(seen)
				seen[name] = idx
			}
			rewritten[i] = fmt.Sprintf("@@var_%d@@", idx)
		} else {
			rewritten[i] = tok
		}
	}

	h := sha256.New()
	for i, tok := range rewritten {
		if i > 0 {
			h.Write([]byte{0xFF})
		}
		h.Write([]byte(tok))
	}
	if d := side.bytes(); d != nil {
		h.Write(d)
	}

	sum := h.Sum(nil)
	var digest Digest
	copy(digest[:], sum[:DigestSize])
	return digest
}

// Less reports whether a sorts strictly before b, lexicographically
// over their raw bytes — the ordering the database is sorted by.
func Less(a, b Digest) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Compare returns -1, 0 or 1 as a is lexicographically less than,
// equal to, or greater than b.
func Compare(a, b Digest) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
