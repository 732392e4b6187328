package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rafael/stride/internal/builder"
	"github.com/rafael/stride/internal/manifest"
	"github.com/rafael/stride/internal/vocab"
)

func runBuildDB(args []string) error {
	flagArgs, positional := partitionArgs(args, map[string]bool{
		"flanking": true, "strip": true, "compress": true, "verbose": true,
	})

	fs := flag.NewFlagSet("build-db", flag.ContinueOnError)
	labelKind := fs.String("type", "name", "label kind to train against (name|type)")
	size := fs.Int("size", 3, "n-gram size")
	topK := fs.Int("topk", 5, "candidates kept per digest")
	flanking := fs.Bool("flanking", false, "use flanking (non-centered) n-gram windows")
	strip := fs.Bool("strip", false, "apply full-strip normalization before windowing")
	compress := fs.Bool("compress", false, "snappy-compress the persisted typ/counts arrays")
	nproc := fs.Int("nproc", 0, "worker count (default: GOMAXPROCS)")
	verbose := fs.Bool("verbose", false, "enable debug-level logging")
	var excludes excludeList
	fs.Var(&excludes, "exclude", "directory name to skip when INPUT is a shard directory (repeatable; matched exactly against directory base names, not as a gitignore pattern)")
	if err := fs.Parse(flagArgs); err != nil {
		return err
	}
	if len(positional) != 3 {
		return fmt.Errorf("usage: stride build-db INPUT VOCAB OUTPUT [--type NAME] [--size N] [--topk K] [--flanking] [--strip] [--compress] [--nproc P] [--exclude DIRNAME]")
	}
	input, vocabPath, output := positional[0], positional[1], positional[2]

	logger := newLogger(*verbose)

	vc, err := vocab.Load(vocabPath)
	if err != nil {
		return fmt.Errorf("build-db: %w", err)
	}

	cfg := builder.DefaultConfig()
	cfg.LabelKind = *labelKind
	cfg.Size = *size
	cfg.TopK = *topK
	cfg.Flanking = *flanking
	cfg.Logger = logger
	if *nproc > 0 {
		cfg.NumWorkers = *nproc
	}

	c, err := resolveCorpus(input, *strip, excludes)
	if err != nil {
		return fmt.Errorf("build-db: %w", err)
	}

	db, err := builder.Build(c, vc, cfg)
	if err != nil {
		return fmt.Errorf("build-db: %w", err)
	}
	defer db.Close()

	if err := db.Save(output, *compress); err != nil {
		return fmt.Errorf("build-db: %w", err)
	}

	if err := recordManifest(output, input, vocabPath, excludes, cfg, *strip, logger); err != nil {
		logger.Warnf("build-db: manifest not recorded: %v", err)
	}

	logger.Infof("build-db: wrote %d records to %s", db.Len(), output)
	return nil
}

// recordManifest stamps build provenance next to output, in a
// <output>.manifest BoltDB file (spec §4 provenance tracking; does not
// affect the database file itself).
func recordManifest(output, input, vocabPath string, excludes []string, cfg builder.Config, strip bool, logger *logrus.Logger) error {
	corpusHash, err := hashCorpusInput(input, excludes)
	if err != nil {
		return err
	}
	vocabHash, err := manifest.HashFile(vocabPath)
	if err != nil {
		return err
	}

	store, err := manifest.Open(output + ".manifest")
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Record(manifest.BuildRecord{
		CorpusHash: corpusHash,
		VocabHash:  vocabHash,
		LabelKind:  cfg.LabelKind,
		Size:       cfg.Size,
		TopK:       cfg.TopK,
		Flanking:   cfg.Flanking,
		Strip:      strip,
		OutputPath: filepath.Clean(output),
		BuiltAt:    time.Now(),
	})
}
