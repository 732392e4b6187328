package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseError reports a malformed corpus line, identified by file path
// and 1-based line number (spec §7: "fail fast, report the line number
// and file path").
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Corpus streams entries from one or more line-delimited JSONL shard
// files, read in order as though concatenated. Each line is a
// self-contained function record (spec §6). Producing entries is
// lazy — Corpus parses each entry on demand and holds at most one file
// handle open at a time; no global state is retained across entries.
type Corpus struct {
	paths     []string
	fullStrip bool
}

// Open returns a Corpus reading from the single file at path. fullStrip
// enables the "full-strip" normalization mode (spec §4.1) for every
// entry it produces.
func Open(path string, fullStrip bool) *Corpus {
	return &Corpus{paths: []string{path}, fullStrip: fullStrip}
}

// OpenShards returns a Corpus reading from every path in paths, in
// order, as a directory-of-shards input (SPEC_FULL.md §3: a corpus
// input may be a directory of *.jsonl shards discovered via
// internal/corpusfs rather than a single file).
func OpenShards(paths []string, fullStrip bool) *Corpus {
	return &Corpus{paths: paths, fullStrip: fullStrip}
}

// Each opens each shard file in turn and calls yield once per entry,
// in file then line order, stopping early if yield returns false. It
// returns a *ParseError wrapping the first malformed line encountered,
// identifying the shard path and the 1-based line number within it.
func (c *Corpus) Each(yield func(*Entry) bool) error {
	for _, path := range c.paths {
		stop, err := c.eachInFile(path, yield)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (c *Corpus) eachInFile(path string, yield func(*Entry) bool) (stop bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("corpus: open %s: %w", path, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 1<<20)
	lineNo := 0
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			trimmed := trimNewline(line)
			if len(trimmed) != 0 {
				var raw rawEntry
				if decErr := jsonAPI.Unmarshal(trimmed, &raw); decErr != nil {
					return false, &ParseError{Path: path, Line: lineNo, Err: decErr}
				}
				if validateErr := validate(raw); validateErr != nil {
					return false, &ParseError{Path: path, Line: lineNo, Err: validateErr}
				}
				if !yield(newEntry(raw, c.fullStrip)) {
					return true, nil
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return false, nil
			}
			return false, fmt.Errorf("corpus: read %s: %w", path, readErr)
		}
	}
}

// Count streams the corpus once and returns the number of entries.
func (c *Corpus) Count() (int, error) {
	n := 0
	err := c.Each(func(*Entry) bool {
		n++
		return true
	})
	return n, err
}

func trimNewline(line []byte) []byte {
	n := len(line)
	for n > 0 && (line[n-1] == '\n' || line[n-1] == '\r') {
		n--
	}
	return line[:n]
}

// validate rejects a record whose placeholder tokens are syntactically
// invalid: a "@@NAME@@" token with an empty NAME. It does not check
// that a placeholder has an entry in any label map; missing labels are
// tolerated here (spec §7 "missing variable label" policy handles
// those at build/predict time, not at parse time).
func validate(raw rawEntry) error {
	for _, tok := range raw.Tokens {
		if len(tok) >= 4 && tok[:2] == "@@" && tok[len(tok)-2:] == "@@" {
			name := tok[2 : len(tok)-2]
			if name == "" {
				return fmt.Errorf("empty variable name in placeholder %q", tok)
			}
			continue
		}
	}
	return nil
}
