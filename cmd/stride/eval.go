package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/rafael/stride/internal/corpus"
	"github.com/rafael/stride/internal/manifest"
	"github.com/rafael/stride/internal/ngramdb"
	"github.com/rafael/stride/internal/predictor"
	"github.com/rafael/stride/internal/vocab"
	"github.com/rafael/stride/internal/watch"
)

// extractDBs pulls a "--dbs D1 D2 ..." run out of args (spec.md §6's
// nargs-style flag: one or more space-separated database paths
// following a single --dbs), returning the db paths and the remaining
// args for the standard flag.FlagSet to parse.
func extractDBs(args []string) (dbs []string, rest []string) {
	for i := 0; i < len(args); i++ {
		if args[i] != "--dbs" && args[i] != "-dbs" {
			rest = append(rest, args[i])
			continue
		}
		for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			dbs = append(dbs, args[i+1])
			i++
		}
	}
	return dbs, rest
}

func runEval(args []string) error {
	dbPaths, rest := extractDBs(args)
	flagArgs, positional := partitionArgs(rest, map[string]bool{
		"flanking": true, "strip": true, "watch": true, "verbose": true,
	})

	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	labelKind := fs.String("type", "name", "label kind to evaluate (name|type)")
	flanking := fs.Bool("flanking", false, "use flanking n-gram windows")
	strip := fs.Bool("strip", false, "apply full-strip normalization before windowing")
	nproc := fs.Int("nproc", 0, "worker count for parallel prediction (default: GOMAXPROCS)")
	watchMode := fs.Bool("watch", false, "re-run on every change to input/vocab/any db")
	verbose := fs.Bool("verbose", false, "enable debug-level logging")
	var excludes excludeList
	fs.Var(&excludes, "exclude", "directory name to skip when INPUT is a shard directory (repeatable; matched exactly against directory base names, not as a gitignore pattern)")
	if err := fs.Parse(flagArgs); err != nil {
		return err
	}
	if len(positional) != 3 {
		return fmt.Errorf("usage: stride eval INPUT VOCAB OUTPUT.csv --dbs D1 D2 ... [--type NAME] [--flanking] [--strip] [--nproc P] [--exclude DIRNAME] [--watch]")
	}
	if len(dbPaths) == 0 {
		return fmt.Errorf("eval: at least one --dbs path is required")
	}
	input, vocabPath, output := positional[0], positional[1], positional[2]

	logger := newLogger(*verbose)

	workers := *nproc
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	run := func() error {
		return evalOnce(input, vocabPath, output, dbPaths, *labelKind, *flanking, *strip, workers, excludes, logger)
	}

	if !*watchMode {
		return run()
	}

	watchPaths := append([]string{input, vocabPath}, dbPaths...)
	w, err := watch.New(watch.Config{
		Paths:  watchPaths,
		Logger: logger,
		Handler: func(changed []string) error {
			logger.Infof("eval --watch: re-running after change to %v", changed)
			return run()
		},
	})
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	if err := run(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	w.Start(ctx)
	logger.Infof("eval --watch: watching %v, press ctrl-c to stop", watchPaths)
	<-ctx.Done()
	return w.Stop()
}

func evalOnce(input, vocabPath, output string, dbPaths []string, labelKind string, flanking, strip bool, workers int, excludes []string, logger *logrus.Logger) error {
	vc, err := vocab.Load(vocabPath)
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	dbs := make([]*ngramdb.DB, 0, len(dbPaths))
	defer func() {
		for _, db := range dbs {
			db.Close()
		}
	}()
	for _, p := range dbPaths {
		db, err := ngramdb.Load(p)
		if err != nil {
			return fmt.Errorf("eval: %w", err)
		}
		dbs = append(dbs, db)
		warnIfStale(p, input, vocabPath, excludes, logger)
	}
	sort.Slice(dbs, func(i, j int) bool { return dbs[i].Size > dbs[j].Size })

	cfg := predictor.Config{LabelKind: labelKind, Flanking: flanking, DBs: dbs}

	c, err := resolveCorpus(input, strip, excludes)
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("eval: create %s: %w", output, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if workers < 1 {
		workers = 1
	}

	entries := make(chan *corpus.Entry, workers*4)
	results := make(chan evalResult, workers*4)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for e := range entries {
				results <- predictEntry(e, vc, cfg, labelKind)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var readErr error
	go func() {
		defer close(entries)
		readErr = c.Each(func(e *corpus.Entry) bool {
			entries <- e
			return true
		})
	}()

	header := []string{"var", "pred", "label", "count"}
	headerWritten := false

	rows := 0
	for res := range results {
		if !headerWritten {
			// meta is assumed homogeneous across the corpus (spec §6:
			// conventionally fit/id/func_name); only the first processed
			// entry's keys become CSV columns.
			_ = w.Write(append(header, res.metaKeys...))
			headerWritten = true
		}
		for _, row := range res.rows {
			if err := w.Write(row); err != nil {
				return fmt.Errorf("eval: write %s: %w", output, err)
			}
			rows++
		}
	}
	if readErr != nil {
		return fmt.Errorf("eval: %w", readErr)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("eval: write %s: %w", output, err)
	}

	logger.Infof("eval: wrote %d predictions to %s", rows, output)
	return nil
}

// evalResult is one worker's output for a single corpus entry: its CSV
// rows (one per human-labeled variable) and the meta column names it
// observed.
type evalResult struct {
	rows     [][]string
	metaKeys []string
}

// predictEntry is the map phase of eval's worker pool (mirroring
// internal/builder.mapEntry's shape): run prediction for one entry and
// render its human-labeled variables into CSV rows. Workers never
// share mutable state — the DBs underneath cfg are read-only (binary
// search or LRU-cached lookups), so concurrent PredictMulti calls are
// safe.
func predictEntry(e *corpus.Entry, vc *vocab.Vocabulary, cfg predictor.Config, labelKind string) evalResult {
	preds := predictor.PredictMulti(e, vc, cfg)
	labels := e.Labels(labelKind)
	counts := e.VarCounts()
	meta := e.Meta()
	metaKeys := sortedMetaKeys(meta)

	rows := make([][]string, 0, len(counts))
	for name, count := range counts {
		lbl := labels.Get(name)
		if !lbl.Human {
			continue
		}
		// pred is "" for a variable no database produced a candidate for.
		row := []string{name, preds[name], lbl.Label, strconv.Itoa(count)}
		for _, k := range metaKeys {
			row = append(row, metaValueString(meta, k))
		}
		rows = append(rows, row)
	}
	return evalResult{rows: rows, metaKeys: metaKeys}
}

// warnIfStale compares dbPath's recorded build provenance (if any)
// against the corpus/vocab eval is about to run against, logging a
// warning on any mismatch (SPEC_FULL.md §3: manifest staleness
// warnings at eval time). A db with no manifest file is silently
// skipped — Open would otherwise create one, a write side effect
// inappropriate for a read-only eval run.
func warnIfStale(dbPath, input, vocabPath string, excludes []string, logger *logrus.Logger) {
	manifestPath := dbPath + ".manifest"
	if _, err := os.Stat(manifestPath); err != nil {
		return
	}

	store, err := manifest.Open(manifestPath)
	if err != nil {
		logger.Warnf("eval: %s: could not open manifest: %v", dbPath, err)
		return
	}
	defer store.Close()

	rec, ok, err := store.Get(filepath.Clean(dbPath))
	if err != nil {
		logger.Warnf("eval: %s: could not read manifest: %v", dbPath, err)
		return
	}
	if !ok {
		return
	}

	corpusHash, err := hashCorpusInput(input, excludes)
	if err != nil {
		logger.Warnf("eval: %s: could not hash corpus for staleness check: %v", dbPath, err)
		return
	}
	if corpusHash != rec.CorpusHash {
		logger.Warnf("eval: %s was built from a different corpus than %s (hash mismatch) — predictions may be stale", dbPath, input)
	}

	vocabHash, err := manifest.HashFile(vocabPath)
	if err != nil {
		logger.Warnf("eval: %s: could not hash vocabulary for staleness check: %v", dbPath, err)
		return
	}
	if vocabHash != rec.VocabHash {
		logger.Warnf("eval: %s was built from a different vocabulary than %s (hash mismatch) — predictions may be stale", dbPath, vocabPath)
	}
}

// sortedMetaKeys returns meta's keys in sorted order so the CSV header
// and every row list the meta columns in the same order. Entries whose
// meta carries different keys produce rows that do not line up with
// the header.
func sortedMetaKeys(meta map[string]interface{}) []string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func metaValueString(meta map[string]interface{}, key string) string {
	v, ok := meta[key]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
