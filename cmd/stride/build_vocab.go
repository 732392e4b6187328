package main

import (
	"flag"
	"fmt"

	"github.com/rafael/stride/internal/corpus"
	"github.com/rafael/stride/internal/vocab"
)

func runBuildVocab(args []string) error {
	flagArgs, positional := partitionArgs(args, map[string]bool{"verbose": true})

	fs := flag.NewFlagSet("build-vocab", flag.ContinueOnError)
	labelKind := fs.String("type", "name", "label kind to build a vocabulary for (name|type)")
	verbose := fs.Bool("verbose", false, "enable debug-level logging")
	var excludes excludeList
	fs.Var(&excludes, "exclude", "directory name to skip when INPUT is a shard directory (repeatable; matched exactly against directory base names, not as a gitignore pattern)")
	if err := fs.Parse(flagArgs); err != nil {
		return err
	}
	if len(positional) != 2 {
		return fmt.Errorf("usage: stride build-vocab INPUT OUTPUT [--type name|type] [--exclude DIRNAME]")
	}
	input, output := positional[0], positional[1]

	logger := newLogger(*verbose)

	c, err := resolveCorpus(input, false, excludes)
	if err != nil {
		return fmt.Errorf("build-vocab: %w", err)
	}
	counter := vocab.NewCounter()

	n := 0
	err = c.Each(func(e *corpus.Entry) bool {
		labels := e.Labels(*labelKind)
		for name, count := range e.VarCounts() {
			lbl := labels.Get(name)
			if !lbl.Human {
				continue
			}
			counter.Add(lbl.Label, count)
		}
		n++
		if n%10000 == 0 {
			logger.Infof("build-vocab: scanned %d entries", n)
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("build-vocab: %w", err)
	}

	vc, err := counter.Build()
	if err != nil {
		return fmt.Errorf("build-vocab: %w", err)
	}
	if err := vc.Save(output); err != nil {
		return fmt.Errorf("build-vocab: %w", err)
	}

	logger.Infof("build-vocab: wrote %d labels to %s", vc.Len(), output)
	return nil
}
