// Package corpusfs discovers corpus shard files on disk, honoring
// .gitignore-style exclusion so generated or vendored JSONL shards
// never leak into a build-db/eval run.
//
// Adapted from the teacher's internal/rag.ProperGitIgnore
// (gitignore_proper.go), which already wraps denormal/go-gitignore
// rather than the package's other two hand-rolled parsers
// (GitIgnore's "this is a very simplified pattern matcher... use a
// proper gitignore library" and ImprovedGitIgnore's regex rewrite).
package corpusfs

import (
	"fmt"
	"os"
	"path/filepath"

	gitignore "github.com/denormal/go-gitignore"
)

// Ignorer reports whether a path should be excluded from corpus shard
// discovery. A nil-valued Ignorer (no .gitignore present) ignores
// nothing.
type Ignorer struct {
	rules gitignore.GitIgnore
}

// LoadIgnorer reads root/.gitignore, if present. A missing file is not
// an error; it yields an Ignorer that excludes nothing.
func LoadIgnorer(root string) (*Ignorer, error) {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Ignorer{}, nil
	}

	rules, err := gitignore.NewFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("corpusfs: parse %s: %w", path, err)
	}
	return &Ignorer{rules: rules}, nil
}

// Ignored reports whether path (relative to the Ignorer's root) should
// be excluded.
func (ig *Ignorer) Ignored(path string, isDir bool) bool {
	if ig == nil || ig.rules == nil {
		return false
	}
	m := ig.rules.Relative(path, isDir)
	return m != nil && m.Ignore()
}
