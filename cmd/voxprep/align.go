package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkrasnelis/voxprep/internal/align"
	"github.com/dkrasnelis/voxprep/internal/config"
	"github.com/dkrasnelis/voxprep/internal/cutlist"
	"github.com/dkrasnelis/voxprep/internal/manifest"
	"github.com/dkrasnelis/voxprep/internal/observe"
	"github.com/dkrasnelis/voxprep/pkg/asr/whisper"
)

func runAlign(args []string) int {
	fs := flag.NewFlagSet("align", flag.ExitOnError)
	var (
		configPath    = fs.String("config", "", "path to the YAML configuration file")
		chunksPath    = fs.String("chunks", "", "chunk-list input file (JSON array)")
		audioRoot     = fs.String("audio-root", ".", "directory audio paths are resolved against")
		outPath       = fs.String("out", "", "cutlist output file (JSONL)")
		modelPath     = fs.String("model", "", "whisper.cpp model file (overrides config)")
		language      = fs.String("lang", "", "transcription language hint (overrides config)")
		threads       = fs.Int("threads", 0, "CPU threads per transcription context (overrides config)")
		minSim        = fs.Float64("min-sim", -1, "similarity acceptance threshold (overrides config)")
		maxExtra      = fs.Int("max-extra", -1, "window token slack (overrides config)")
		maxCandidates = fs.Int("max-candidates", -1, "candidate cap per chunk (overrides config)")
		pad           = fs.Float64("pad", -1, "interval padding in seconds (overrides config)")
		limit         = fs.Int("limit", 0, "process at most N chunk-list items; 0 means all")
		dryRun        = fs.Bool("dry-run", false, "align and print a summary without writing the cutlist")
		overwrite     = fs.Bool("overwrite", false, "replace an existing output file")
	)
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fatalf("%v", err)
	}
	if *modelPath != "" {
		cfg.ASR.ModelPath = *modelPath
	}
	if *language != "" {
		cfg.ASR.Language = *language
	}
	if *threads > 0 {
		cfg.ASR.Threads = *threads
	}
	if *minSim >= 0 {
		cfg.Align.MinSimilarity = *minSim
	}
	if *maxExtra >= 0 {
		cfg.Align.MaxExtraTokens = *maxExtra
	}
	if *maxCandidates > 0 {
		cfg.Align.MaxCandidates = *maxCandidates
	}
	if *pad >= 0 {
		cfg.Align.PadSeconds = *pad
	}
	if err := config.Validate(cfg); err != nil {
		return fatalf("%v", err)
	}
	if *chunksPath == "" || *outPath == "" {
		return fatalf("align: -chunks and -out are required")
	}
	if cfg.ASR.ModelPath == "" {
		return fatalf("align: an ASR model is required (-model or asr.model_path)")
	}
	if !*dryRun {
		if err := checkOutput(*outPath, *overwrite); err != nil {
			return fatalf("%v", err)
		}
	}

	items, err := manifest.ReadItems(*chunksPath)
	if err != nil {
		return fatalf("align: %v", err)
	}
	items = applyLimit(items, *limit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var engineOpts []whisper.Option
	if cfg.ASR.Language != "" {
		engineOpts = append(engineOpts, whisper.WithLanguage(cfg.ASR.Language))
	}
	if cfg.ASR.Threads > 0 {
		engineOpts = append(engineOpts, whisper.WithThreads(uint(cfg.ASR.Threads)))
	}
	engine, err := whisper.New(cfg.ASR.ModelPath, engineOpts...)
	if err != nil {
		return fatalf("align: load model: %v", err)
	}
	defer engine.Close()

	metrics, err := observe.DefaultMetrics()
	if err != nil {
		return fatalf("align: metrics: %v", err)
	}

	aligner := align.New(engine, cfg.AlignSettings(), metrics)

	records, total, err := alignItems(ctx, aligner, items, *audioRoot)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fatalf("align: interrupted")
		}
		return fatalf("align: %v", err)
	}

	if *dryRun {
		fmt.Println("dry run: not writing cutlist")
		fmt.Printf("chunk-list items: %d\n", len(items))
		fmt.Printf("chunks: total=%d matched=%d unresolved=%d\n",
			total.Total, total.Matched, total.Unresolved)
		if sample := sampleRecords(records, 5); len(sample) > 0 {
			fmt.Println("sample records:")
			if err := cutlist.Write(os.Stdout, sample); err != nil {
				return fatalf("align: %v", err)
			}
		}
		return 0
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fatalf("align: %v", err)
	}
	defer out.Close()
	if err := cutlist.Write(out, records); err != nil {
		return fatalf("align: %v", err)
	}

	slog.Info("alignment finished",
		"items", len(items),
		"chunks", total.Total,
		"matched", total.Matched,
		"unresolved", total.Unresolved,
		"out", *outPath,
	)
	return 0
}

// alignItems runs the aligner over every chunk-list item and accumulates the
// cutlist records plus the combined match statistics.
func alignItems(ctx context.Context, aligner *align.Aligner, items []manifest.Item, audioRoot string) ([]cutlist.Record, align.Stats, error) {
	var (
		records []cutlist.Record
		total   align.Stats
	)
	for i, item := range items {
		recs, stats, err := aligner.AlignItem(ctx, item, audioRoot)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, total, err
			}
			return nil, total, fmt.Errorf("item %d (%s): %w", i, item.AudioPath, err)
		}
		records = append(records, recs...)
		total.Total += stats.Total
		total.Matched += stats.Matched
		total.Unresolved += stats.Unresolved
		slog.Info("item aligned",
			"item", i+1, "of", len(items), "audio", item.AudioPath,
			"ok", stats.Matched, "unresolved", stats.Unresolved)
	}
	return records, total, nil
}

// applyLimit truncates items to the first n when n is positive.
func applyLimit(items []manifest.Item, n int) []manifest.Item {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// sampleRecords returns up to n leading records for dry-run previews.
func sampleRecords(records []cutlist.Record, n int) []cutlist.Record {
	if len(records) > n {
		return records[:n]
	}
	return records
}
