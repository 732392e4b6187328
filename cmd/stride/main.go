// Command stride predicts human-meaningful variable names and types
// in decompiled binary code, trained from a corpus of partially
// human-labeled functions (spec.md §6).
package main

import (
	"fmt"
	"os"
	"strings"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	var err error
	switch command {
	case "build-vocab":
		err = runBuildVocab(args)
	case "build-db":
		err = runBuildDB(args)
	case "eval":
		err = runEval(args)
	case "label-search":
		err = runLabelSearch(args)
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		fmt.Printf("stride version %s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "stride: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "stride: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `stride - n-gram variable name/type prediction for decompiled code

Usage:
  stride build-vocab INPUT OUTPUT [--type name|type] [--exclude DIRNAME]
  stride build-db INPUT VOCAB OUTPUT [--type NAME] [--size N] [--topk K] [--flanking] [--strip] [--compress] [--nproc P] [--exclude DIRNAME]
  stride eval INPUT VOCAB OUTPUT.csv --dbs D1 D2 ... [--type NAME] [--flanking] [--strip] [--nproc P] [--exclude DIRNAME] [--watch]
  stride label-search VOCAB QUERY [--limit N] [--index PATH] [--build]

INPUT may be a single corpus file or a directory of *.jsonl shards,
discovered via a root .gitignore, built-in default excludes, and any
--exclude directory names given (matched exactly, not as patterns).

Flags shared across commands:
  --verbose       enable debug-level logging

Run 'stride <command> -h' for command-specific flags.
`)
}
