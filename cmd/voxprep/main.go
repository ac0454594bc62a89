// Command voxprep prepares and validates single-speaker TTS training
// corpora: transcript chunking, ASR-based forced alignment, dataset quality
// reporting, and multi-GPU sharded validation.
package main

import (
	"fmt"
	"os"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "prepare":
		return runPrepare(rest)
	case "chunk":
		return runChunk(rest)
	case "align":
		return runAlign(rest)
	case "report":
		return runReport(rest)
	case "validate":
		return runValidate(rest)
	case "shard":
		return runShard(rest)
	case "version", "--version", "-version":
		fmt.Println("voxprep", version)
		return 0
	case "help", "--help", "-h":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "voxprep: unknown command %q\n\n", cmd)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: voxprep <command> [flags]

Commands:
  prepare    segment long recordings into short clips via ASR timecodes
  chunk      split manifest transcripts into bounded-length chunks
  align      align chunks to audio via ASR word timestamps
  report     run quality checks over a dataset and write report artifacts
  validate   like report, but the exit code carries the PASS/FAIL verdict
  shard      split a dataset and validate shards in parallel worker processes
  version    print the build version

Run "voxprep <command> -h" for command flags.
`)
}
