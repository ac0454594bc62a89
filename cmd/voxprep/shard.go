package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkrasnelis/voxprep/internal/config"
	"github.com/dkrasnelis/voxprep/internal/corpus"
	"github.com/dkrasnelis/voxprep/internal/health"
	"github.com/dkrasnelis/voxprep/internal/observe"
	"github.com/dkrasnelis/voxprep/internal/shard"
)

func runShard(args []string) int {
	fs := flag.NewFlagSet("shard", flag.ExitOnError)
	var (
		configPath  = fs.String("config", "", "path to the YAML configuration file")
		dataDir     = fs.String("data", "", "dataset directory")
		workDir     = fs.String("workdir", "", "scratch directory for shard datasets; default <out>/shards")
		outDir      = fs.String("out", "", "merged report output directory")
		shardCount  = fs.Int("shards", 0, "shard count; default devices × workers-per-device")
		devices     = fs.String("devices", "", "comma-separated accelerator ids (overrides config)")
		workers     = fs.Int("workers-per-device", 0, "concurrent workers per device (overrides config)")
		metricsAddr = fs.String("metrics-addr", "", "expose Prometheus /metrics on this address (overrides config)")
		keep        = fs.Bool("keep", false, "keep shard datasets and logs after a successful run")
		seed        = fs.Int64("seed", 0, "sampling seed passed to workers")
		asrCheck    = fs.Bool("asr-check", false, "workers run the ASR round-trip pass")
		asrRequired = fs.Bool("asr-required", false, "round-trip findings gate each worker's verdict")
		asrSample   = fs.Int("asr-sample", -1, "per-worker round-trip sample size")
		asrTimeout  = fs.Float64("asr-timeout", -1, "per-file transcription timeout in seconds")
		modelPath   = fs.String("model", "", "whisper.cpp model file passed to workers")
	)
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fatalf("%v", err)
	}
	if *devices != "" {
		cfg.Shard.Devices = splitList(*devices)
	}
	if *workers > 0 {
		cfg.Shard.WorkersPerDevice = *workers
	}
	if *metricsAddr != "" {
		cfg.Shard.MetricsAddr = *metricsAddr
	}
	if err := config.Validate(cfg); err != nil {
		return fatalf("%v", err)
	}
	if *dataDir == "" || *outDir == "" {
		return fatalf("shard: -data and -out are required")
	}

	deviceCount := len(cfg.Shard.Devices)
	if deviceCount == 0 {
		deviceCount = 1
	}
	n := *shardCount
	if n <= 0 {
		n = deviceCount * cfg.Shard.WorkersPerDevice
	}
	if n < 1 {
		n = 1
	}

	work := *workDir
	if work == "" {
		work = filepath.Join(*outDir, "shards")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fatalf("shard: telemetry: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	var progress health.Progress
	if addr := cfg.Shard.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(
			health.DirExists("dataset", *dataDir),
			health.DirExists("workdir", work),
			progress.Checker(),
		).Register(mux)
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics endpoint error", "err", err)
			}
		}()
		defer srv.Close()
		slog.Info("metrics endpoint up", "addr", addr)
	}

	metrics, err := observe.DefaultMetrics()
	if err != nil {
		return fatalf("shard: metrics: %v", err)
	}

	ds, err := corpus.Open(*dataDir)
	if err != nil {
		return fatalf("shard: %v", err)
	}
	rows, err := corpus.ReadMetadata(ds.MetadataPath())
	if err != nil {
		return fatalf("shard: %v", err)
	}

	parts := shard.RoundRobin(rows, n)
	shards, err := shard.Materialize(ds, parts, work)
	if err != nil {
		return fatalf("shard: %v", err)
	}
	slog.Info("shards materialized", "count", len(shards), "workdir", work, "rows", len(rows))
	progress.SetTotal(len(shards))

	workerArgs := func(s shard.Shard) []string {
		wa := []string{"validate", "-data", s.Dir, "-out", s.OutDir()}
		if *configPath != "" {
			wa = append(wa, "-config", *configPath)
		}
		if *seed != 0 {
			wa = append(wa, "-seed", fmt.Sprint(*seed+int64(s.Index)))
		}
		if *asrCheck {
			wa = append(wa, "-asr-check")
		}
		if *asrRequired {
			wa = append(wa, "-asr-required")
		}
		if *asrSample >= 0 {
			wa = append(wa, "-asr-sample", fmt.Sprint(*asrSample))
		}
		if *asrTimeout >= 0 {
			wa = append(wa, "-asr-timeout", fmt.Sprint(*asrTimeout))
		}
		if *modelPath != "" {
			wa = append(wa, "-model", *modelPath)
		}
		return wa
	}

	results, err := shard.Run(ctx, shards, shard.Options{
		Devices:          cfg.Shard.Devices,
		WorkersPerDevice: cfg.Shard.WorkersPerDevice,
		DeviceEnv:        cfg.Shard.DeviceEnv,
		ArgsFor:          workerArgs,
		LogDir:           filepath.Join(work, "logs"),
		OnExit:           func(shard.Result) { progress.MarkDone() },
		Metrics:          metrics,
	})
	if err != nil {
		return fatalf("shard: %v", err)
	}

	verdict, err := shard.Merge(ds.Dir, shards, results, *outDir, cfg.Quality.SuspectTop)
	if err != nil {
		return fatalf("shard: %v", err)
	}

	fmt.Printf("shard: %s (%d shards, %d rows)\n", verdict, len(shards), len(rows))
	if verdict == "PASS" && !*keep {
		if err := os.RemoveAll(work); err != nil {
			slog.Warn("could not remove shard workdir", "workdir", work, "err", err)
		}
	}
	if verdict != "PASS" {
		return 1
	}
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
