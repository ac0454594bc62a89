package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dkrasnelis/voxprep/internal/config"
	"github.com/dkrasnelis/voxprep/internal/corpus"
	"github.com/dkrasnelis/voxprep/internal/observe"
	"github.com/dkrasnelis/voxprep/internal/prepare"
	"github.com/dkrasnelis/voxprep/pkg/asr/whisper"
)

func runPrepare(args []string) int {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "path to the YAML configuration file")
		dataDir    = fs.String("data", "", "source dataset directory with long recordings")
		outDir     = fs.String("out", "", "output dataset directory; default <data>_prepared")
		wavsFile   = fs.String("wavs-file", "", "optional file listing WAV names or paths, one per line")
		modelPath  = fs.String("model", "", "whisper.cpp model file (overrides config)")
		language   = fs.String("lang", "", "transcription language hint (overrides config)")
		threads    = fs.Int("threads", 0, "CPU threads per transcription context (overrides config)")
		sampleRate = fs.Int("sample-rate", 0, "output clip sample rate (overrides config)")
		minSeg     = fs.Float64("min-seg", -1, "minimum kept segment duration in seconds (overrides config)")
		maxSeg     = fs.Float64("max-seg", -1, "maximum kept segment duration in seconds (overrides config)")
		minText    = fs.Int("min-text", -1, "minimum segment text length in characters (overrides config)")
		maxText    = fs.Int("max-text", -1, "maximum segment text length in characters (overrides config)")
		limitFiles = fs.Int("limit-files", 0, "process at most N source recordings; 0 means all")
		overwrite  = fs.Bool("overwrite", false, "replace an existing output dataset")
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
	if *sampleRate > 0 {
		cfg.Prepare.SampleRate = *sampleRate
	}
	if *minSeg >= 0 {
		cfg.Prepare.MinSegSeconds = *minSeg
	}
	if *maxSeg >= 0 {
		cfg.Prepare.MaxSegSeconds = *maxSeg
	}
	if *minText >= 0 {
		cfg.Prepare.MinTextChars = *minText
	}
	if *maxText >= 0 {
		cfg.Prepare.MaxTextChars = *maxText
	}
	if err := config.Validate(cfg); err != nil {
		return fatalf("%v", err)
	}
	if *dataDir == "" {
		return fatalf("prepare: -data is required")
	}
	if cfg.ASR.ModelPath == "" {
		return fatalf("prepare: an ASR model is required (-model or asr.model_path)")
	}

	out := *outDir
	if out == "" {
		out = *dataDir + "_prepared"
	}
	if _, err := os.Stat(out); err == nil {
		if !*overwrite {
			return fatalf("output %q already exists; pass -overwrite to replace it", out)
		}
		if err := os.RemoveAll(out); err != nil {
			return fatalf("prepare: %v", err)
		}
	}

	ds, err := corpus.Open(*dataDir)
	if err != nil {
		return fatalf("prepare: %v", err)
	}
	srcWavs, err := resolveSourceWavs(ds, *wavsFile)
	if err != nil {
		return fatalf("prepare: %v", err)
	}
	if *limitFiles > 0 && len(srcWavs) > *limitFiles {
		srcWavs = srcWavs[:*limitFiles]
	}
	if len(srcWavs) == 0 {
		return fatalf("prepare: no source recordings to process")
	}

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
		return fatalf("prepare: load model: %v", err)
	}
	defer engine.Close()

	metrics, err := observe.DefaultMetrics()
	if err != nil {
		return fatalf("prepare: metrics: %v", err)
	}

	res, err := prepare.New(engine, cfg.PrepareSettings(), metrics).Run(ctx, ds, srcWavs, out)
	if err != nil {
		return fatalf("%v", err)
	}

	fmt.Printf("prepare: %d clips from %d recordings -> %s\n", len(res.Clips), len(res.Files), out)
	slog.Info("dataset prepared",
		"out", out,
		"recordings", len(res.Files),
		"clips", len(res.Clips),
		"sample_rate", cfg.Prepare.SampleRate,
	)
	return 0
}

// resolveSourceWavs lists the recordings to segment: the dataset's wavs/ by
// default, or the entries of wavsFile. Relative entries are resolved against
// the dataset's wavs/ first, then against the list file's directory.
func resolveSourceWavs(ds *corpus.Dataset, wavsFile string) ([]string, error) {
	if wavsFile == "" {
		names := ds.ListWavs()
		out := make([]string, 0, len(names))
		for _, n := range names {
			out = append(out, ds.WavPath(n))
		}
		return out, nil
	}

	f, err := os.Open(wavsFile)
	if err != nil {
		return nil, fmt.Errorf("read wavs file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line = trimComment(line); line == "" {
			continue
		}
		if filepath.IsAbs(line) {
			out = append(out, line)
			continue
		}
		candidate := ds.WavPath(line)
		if _, err := os.Stat(candidate); err == nil {
			out = append(out, candidate)
			continue
		}
		out = append(out, filepath.Join(filepath.Dir(wavsFile), line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read wavs file: %w", err)
	}
	return out, nil
}

func trimComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	return line
}
