package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rafael/stride/internal/corpus"
	"github.com/rafael/stride/internal/corpusfs"
	"github.com/rafael/stride/internal/manifest"
	"github.com/rafael/stride/internal/stridelog"
)

// newLogger returns the CLI's shared logger, bumped to debug level
// when --verbose is set.
func newLogger(verbose bool) *logrus.Logger {
	logger := stridelog.New()
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// partitionArgs splits args into flag tokens (and their values) and
// positional tokens, so a flag.FlagSet can parse the flags regardless
// of where they fall relative to positional arguments on the command
// line — spec.md §6's usage strings put positionals first, which
// stdlib flag.Parse alone cannot handle (it stops at the first
// non-flag token). boolFlags names the flags that take no value.
func partitionArgs(args []string, boolFlags map[string]bool) (flagArgs, positional []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			positional = append(positional, a)
			continue
		}
		flagArgs = append(flagArgs, a)
		if strings.Contains(a, "=") {
			continue
		}
		name := strings.TrimLeft(a, "-")
		if boolFlags[name] {
			continue
		}
		if i+1 < len(args) {
			i++
			flagArgs = append(flagArgs, args[i])
		}
	}
	return flagArgs, positional
}

// excludeList collects repeated "--exclude PATTERN" occurrences into a
// slice; flag.FlagSet.Var calls Set once per flag instance, unlike
// flag.String which only keeps the last.
type excludeList []string

func (e *excludeList) String() string { return strings.Join(*e, ",") }
func (e *excludeList) Set(v string) error {
	*e = append(*e, v)
	return nil
}

// resolveCorpus opens input as a corpus. If input names a directory, it
// is treated as a directory of corpus shards (SPEC_FULL.md §3):
// internal/corpusfs discovers every *.jsonl file under it, honoring a
// root .gitignore, the built-in default excludes, and any additional
// --exclude directory names (matched exactly against directory base
// names, not as patterns), and the shards are read in sorted-path order as
// though concatenated. Otherwise input is opened as a single corpus
// file, as before.
func resolveCorpus(input string, fullStrip bool, extraExcludes []string) (*corpus.Corpus, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stride: stat %s: %w", input, err)
	}
	if !info.IsDir() {
		return corpus.Open(input, fullStrip), nil
	}

	shards, err := corpusfs.DiscoverShards(input, extraExcludes)
	if err != nil {
		return nil, fmt.Errorf("stride: %w", err)
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("stride: no .jsonl shards found under %s", input)
	}
	sort.Strings(shards)
	return corpus.OpenShards(shards, fullStrip), nil
}

// hashCorpusInput returns a manifest content hash for a corpus input
// that may be a single file or (per resolveCorpus) a directory of
// shards, under the same exclude set resolveCorpus would apply. A
// directory hashes to the SHA-256 of its sorted shard paths' individual
// hashes, so adding, removing, or editing any shard changes the result.
func hashCorpusInput(input string, extraExcludes []string) (string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return "", fmt.Errorf("stride: stat %s: %w", input, err)
	}
	if !info.IsDir() {
		return manifest.HashFile(input)
	}

	shards, err := corpusfs.DiscoverShards(input, extraExcludes)
	if err != nil {
		return "", fmt.Errorf("stride: %w", err)
	}
	sort.Strings(shards)

	h := sha256.New()
	for _, s := range shards {
		shardHash, err := manifest.HashFile(s)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s  %s\n", shardHash, s)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
