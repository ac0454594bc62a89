package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/dkrasnelis/voxprep/internal/config"
	"github.com/dkrasnelis/voxprep/internal/corpus"
	"github.com/dkrasnelis/voxprep/internal/observe"
	"github.com/dkrasnelis/voxprep/internal/quality"
	"github.com/dkrasnelis/voxprep/pkg/asr"
	"github.com/dkrasnelis/voxprep/pkg/asr/whisper"
)

func runReport(args []string) int {
	_, code := qualityRun("report", args)
	return code
}

// runValidate is report with the verdict carried in the exit code, so CI and
// the shard orchestrator can gate on it.
func runValidate(args []string) int {
	verdict, code := qualityRun("validate", args)
	if code != 0 {
		return code
	}
	if verdict != "PASS" {
		return 1
	}
	return 0
}

func qualityRun(name string, args []string) (verdict string, code int) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var (
		configPath  = fs.String("config", "", "path to the YAML configuration file")
		dataDir     = fs.String("data", "", "dataset directory")
		outDir      = fs.String("out", "", "report output directory")
		seed        = fs.Int64("seed", 0, "sampling seed; 0 derives one from the clock")
		suspectTop  = fs.Int("suspect-top", -1, "suspects.tsv row cap (overrides config)")
		sampleN     = fs.Int("sample-n", -1, "samples.tsv row count (overrides config)")
		asrCheck    = fs.Bool("asr-check", false, "enable the ASR round-trip pass")
		asrRequired = fs.Bool("asr-required", false, "round-trip findings gate the verdict")
		asrSample   = fs.Int("asr-sample", -1, "round-trip sample size; 0 means all rows (overrides config)")
		asrTimeout  = fs.Float64("asr-timeout", -1, "per-file transcription timeout in seconds; 0 disables (overrides config)")
		modelPath   = fs.String("model", "", "whisper.cpp model file (overrides config)")
		language    = fs.String("lang", "", "transcription language hint (overrides config)")
	)
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return "", fatalf("%v", err)
	}
	if *suspectTop >= 0 {
		cfg.Quality.SuspectTop = *suspectTop
	}
	if *sampleN >= 0 {
		cfg.Quality.SampleN = *sampleN
	}
	if *asrCheck {
		cfg.Quality.RoundTrip.Enabled = true
	}
	if *asrRequired {
		cfg.Quality.RoundTrip.Enabled = true
		cfg.Quality.RoundTrip.Required = true
	}
	if *asrSample >= 0 {
		cfg.Quality.RoundTrip.SampleN = *asrSample
	}
	if *asrTimeout >= 0 {
		cfg.Quality.RoundTrip.TimeoutSec = *asrTimeout
	}
	if *modelPath != "" {
		cfg.ASR.ModelPath = *modelPath
	}
	if *language != "" {
		cfg.ASR.Language = *language
	}
	if err := config.Validate(cfg); err != nil {
		return "", fatalf("%v", err)
	}
	if *dataDir == "" || *outDir == "" {
		return "", fatalf("%s: -data and -out are required", name)
	}

	ds, err := corpus.Open(*dataDir)
	if err != nil {
		return "", fatalf("%s: %v", name, err)
	}
	rows, err := corpus.ReadMetadata(ds.MetadataPath())
	if err != nil {
		return "", fatalf("%s: %v", name, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var transcriber asr.Transcriber
	if cfg.Quality.RoundTrip.Enabled {
		if cfg.ASR.ModelPath == "" {
			return "", fatalf("%s: the round-trip pass needs an ASR model (-model or asr.model_path)", name)
		}
		var opts []whisper.Option
		if cfg.ASR.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.ASR.Language))
		}
		if cfg.ASR.Threads > 0 {
			opts = append(opts, whisper.WithThreads(uint(cfg.ASR.Threads)))
		}
		engine, err := whisper.New(cfg.ASR.ModelPath, opts...)
		if err != nil {
			return "", fatalf("%s: load model: %v", name, err)
		}
		defer engine.Close()
		transcriber = engine
	}

	metrics, err := observe.DefaultMetrics()
	if err != nil {
		return "", fatalf("%s: metrics: %v", name, err)
	}

	engine := quality.NewEngine(cfg.CheckSettings(), cfg.RoundTripSettings(), transcriber, metrics, *seed)
	res, err := engine.Evaluate(ctx, ds, rows)
	if err != nil {
		return "", fatalf("%s: %v", name, err)
	}

	opts := quality.ReportOptions{SuspectTop: cfg.Quality.SuspectTop, SampleN: cfg.Quality.SampleN}
	if err := quality.WriteArtifacts(res, *outDir, opts); err != nil {
		return "", fatalf("%s: %v", name, err)
	}

	verdict = res.Verdict()
	fmt.Printf("%s: %s (%d rows, %d suspects)\n", name, verdict, len(rows), len(res.Suspects))
	slog.Info("report written", "out", *outDir, "verdict", verdict)
	return verdict, 0
}
