package main

import (
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/dkrasnelis/voxprep/internal/chunker"
	"github.com/dkrasnelis/voxprep/internal/config"
	"github.com/dkrasnelis/voxprep/internal/manifest"
)

func runChunk(args []string) int {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "path to the YAML configuration file")
		inPath     = fs.String("in", "", "source manifest (JSONL); \"-\" reads stdin")
		outPath    = fs.String("out", "", "chunk-list output file (JSON array)")
		maxLen     = fs.Int("max-len", -1, "maximum chunk length in characters (overrides config)")
		minLen     = fs.Int("min-len", -1, "minimum final-chunk length before orphan merge (overrides config)")
		limit      = fs.Int("limit", 0, "process at most N manifest records; 0 means all")
		dryRun     = fs.Bool("dry-run", false, "report what would be written without writing")
		overwrite  = fs.Bool("overwrite", false, "replace an existing output file")
	)
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fatalf("%v", err)
	}
	if *maxLen > 0 {
		cfg.Chunk.MaxLen = *maxLen
	}
	if *minLen > 0 {
		cfg.Chunk.MinLen = *minLen
	}
	if err := config.Validate(cfg); err != nil {
		return fatalf("%v", err)
	}
	if *inPath == "" || *outPath == "" {
		return fatalf("chunk: -in and -out are required")
	}
	if !*dryRun {
		if err := checkOutput(*outPath, *overwrite); err != nil {
			return fatalf("%v", err)
		}
	}

	var in io.Reader
	if *inPath == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(*inPath)
		if err != nil {
			return fatalf("chunk: %v", err)
		}
		defer f.Close()
		in = f
	}

	entries, err := manifest.ReadManifest(in, *limit)
	if err != nil {
		return fatalf("chunk: %v", err)
	}

	var (
		items      []manifest.Item
		skipped    int
		chunkTotal int
		longest    int
	)
	for _, e := range entries {
		if e.AudioPath == "" || e.Text == "" {
			skipped++
			continue
		}
		clean := chunker.CleanText(e.Text)
		chunks := chunker.Chunk(chunker.SplitSentences(clean), cfg.Chunk.MaxLen, cfg.Chunk.MinLen)
		if len(chunks) == 0 {
			skipped++
			continue
		}
		chunkTotal += len(chunks)
		for _, c := range chunks {
			if n := len([]rune(c)); n > longest {
				longest = n
			}
		}
		items = append(items, manifest.Item{
			AudioPath:        e.AudioPath,
			Sentences:        chunks,
			OriginalFullText: e.Text,
			SourceMeta:       e.Meta,
		})
	}

	slog.Info("chunking finished",
		"items", len(items),
		"skipped", skipped,
		"chunks", chunkTotal,
		"longest_chunk", longest,
		"max_len", cfg.Chunk.MaxLen,
	)

	if *dryRun {
		slog.Info("dry run, not writing", "out", *outPath)
		return 0
	}
	if err := manifest.WriteItems(*outPath, items); err != nil {
		return fatalf("chunk: %v", err)
	}
	slog.Info("chunk list written", "out", *outPath)
	return 0
}
