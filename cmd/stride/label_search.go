package main

import (
	"flag"
	"fmt"

	"github.com/rafael/stride/internal/labelindex"
	"github.com/rafael/stride/internal/vocab"
)

// runLabelSearch implements the diagnostic `label-search` subcommand
// (SPEC_FULL.md §3): fuzzy lookup of the nearest known vocabulary
// labels to a typed or misspelled query, useful when curating a
// vocabulary cutoff.
func runLabelSearch(args []string) error {
	flagArgs, positional := partitionArgs(args, map[string]bool{"build": true, "verbose": true})

	fs := flag.NewFlagSet("label-search", flag.ContinueOnError)
	limit := fs.Int("limit", 10, "maximum number of results")
	indexPath := fs.String("index", "", "bleve index path (default: VOCAB.labelindex)")
	rebuild := fs.Bool("build", false, "(re)build the index from VOCAB before searching")
	verbose := fs.Bool("verbose", false, "enable debug-level logging")
	if err := fs.Parse(flagArgs); err != nil {
		return err
	}
	if len(positional) != 2 {
		return fmt.Errorf("usage: stride label-search VOCAB QUERY [--limit N] [--index PATH] [--build]")
	}
	vocabPath, query := positional[0], positional[1]

	logger := newLogger(*verbose)

	path := *indexPath
	if path == "" {
		path = vocabPath + ".labelindex"
	}

	var idx *labelindex.Index
	var err error
	if *rebuild {
		vc, loadErr := vocab.Load(vocabPath)
		if loadErr != nil {
			return fmt.Errorf("label-search: %w", loadErr)
		}
		idx, err = labelindex.Build(path, vc)
		if err != nil {
			return fmt.Errorf("label-search: %w", err)
		}
		logger.Infof("label-search: rebuilt index at %s from %d labels", path, vc.Len())
	} else {
		idx, err = labelindex.Open(path)
		if err != nil {
			return fmt.Errorf("label-search: %w", err)
		}
	}
	defer idx.Close()

	hits, err := idx.Search(query, *limit)
	if err != nil {
		return fmt.Errorf("label-search: %w", err)
	}

	if len(hits) == 0 {
		fmt.Printf("no matches for %q\n", query)
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%-30s count=%-8d score=%.3f\n", h.Label, h.Count, h.Score)
	}
	return nil
}
