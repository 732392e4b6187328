package corpusfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultExcludes are directory names always skipped during shard
// discovery, regardless of .gitignore contents (spec is silent on
// this; adapted from the teacher's discoverFilesWithExcludes, whose
// default-exclude list served the same "never walk into build output
// or vendored trees" purpose for source files).
var defaultExcludes = []string{
	"node_modules", "vendor", "dist", "build",
	".git", "target", "__pycache__", ".tox",
}

// shardExt is the corpus shard file extension (spec §6: line-delimited
// JSONL records).
const shardExt = ".jsonl"

// DiscoverShards walks root and returns every corpus shard path
// (files named *.jsonl), skipping defaultExcludes directories, hidden
// directories, and anything matched by a root-level .gitignore.
func DiscoverShards(root string, extraExcludes []string) ([]string, error) {
	ig, err := LoadIgnorer(root)
	if err != nil {
		return nil, err
	}

	excludes := make(map[string]struct{}, len(defaultExcludes)+len(extraExcludes))
	for _, e := range defaultExcludes {
		excludes[e] = struct{}{}
	}
	for _, e := range extraExcludes {
		excludes[e] = struct{}{}
	}

	var shards []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole walk
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		if info.IsDir() {
			name := info.Name()
			if _, excluded := excludes[name]; excluded {
				return filepath.SkipDir
			}
			if strings.HasPrefix(name, ".") && rel != "." {
				return filepath.SkipDir
			}
			if ig.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if ig.Ignored(rel, false) {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), shardExt) {
			shards = append(shards, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpusfs: walk %s: %w", root, err)
	}
	return shards, nil
}
