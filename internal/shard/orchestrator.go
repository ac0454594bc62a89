package shard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkrasnelis/voxprep/internal/observe"
)

// DefaultDeviceEnv is the environment variable used to pin a worker process
// to one accelerator.
const DefaultDeviceEnv = "CUDA_VISIBLE_DEVICES"

// Options configures a worker run.
type Options struct {
	// Devices are the accelerator identifiers to pin workers to, one value
	// of DeviceEnv per worker. An empty list runs workers without pinning.
	Devices []string

	// WorkersPerDevice is the number of concurrent workers sharing one
	// device. Minimum 1.
	WorkersPerDevice int

	// DeviceEnv is the environment variable carrying the device id.
	// Defaults to DefaultDeviceEnv.
	DeviceEnv string

	// Heartbeat is the interval between progress log lines while workers
	// run. Defaults to 60s.
	Heartbeat time.Duration

	// WorkerExe is the worker binary. Defaults to the current executable,
	// so shard workers are the same binary re-invoked with a different
	// subcommand.
	WorkerExe string

	// ArgsFor builds the worker argument vector for one shard. Required.
	ArgsFor func(s Shard) []string

	// LogDir receives one shard_NN.log per worker. Required.
	LogDir string

	// OnExit, when non-nil, is called once per finished worker, from the
	// worker's goroutine. Used to surface run progress to the health
	// endpoint.
	OnExit func(Result)

	// Metrics instruments the run when non-nil.
	Metrics *observe.Metrics
}

// Result is the outcome of one worker process.
type Result struct {
	Shard    int
	Device   string
	ExitCode int
	Err      string
	Elapsed  time.Duration
}

// Failed reports whether the worker did not complete cleanly.
func (r Result) Failed() bool { return r.ExitCode != 0 || r.Err != "" }

// Run executes one worker per shard, bounded by len(Devices) *
// WorkersPerDevice concurrent processes. A worker's non-zero exit is
// captured in its Result rather than aborting the run; the returned error
// covers only launch-level problems (bad options, unwritable logs) and
// context cancellation.
func Run(ctx context.Context, shards []Shard, o Options) ([]Result, error) {
	if o.ArgsFor == nil {
		return nil, fmt.Errorf("shard: ArgsFor is required")
	}
	if o.LogDir == "" {
		return nil, fmt.Errorf("shard: LogDir is required")
	}
	if err := os.MkdirAll(o.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("shard: create log dir: %w", err)
	}
	if o.WorkersPerDevice < 1 {
		o.WorkersPerDevice = 1
	}
	if o.DeviceEnv == "" {
		o.DeviceEnv = DefaultDeviceEnv
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = time.Minute
	}
	exe := o.WorkerExe
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("shard: resolve worker executable: %w", err)
		}
		exe = self
	}

	devices := o.Devices
	if len(devices) == 0 {
		devices = []string{""}
	}
	slots := make(chan string, len(devices)*o.WorkersPerDevice)
	for i := 0; i < o.WorkersPerDevice; i++ {
		for _, d := range devices {
			slots <- d
		}
	}

	results := make([]Result, len(shards))
	var running, done atomic.Int64

	hbCtx, stopHB := context.WithCancel(ctx)
	defer stopHB()
	go heartbeat(hbCtx, o.Heartbeat, &running, &done, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(slots))
	for i, s := range shards {
		i, s := i, s
		g.Go(func() error {
			device := <-slots
			defer func() { slots <- device }()

			running.Add(1)
			if o.Metrics != nil {
				o.Metrics.ActiveShards.Add(gctx, 1)
			}
			res := runWorker(gctx, exe, s, device, o)
			running.Add(-1)
			done.Add(1)
			if o.Metrics != nil {
				o.Metrics.ActiveShards.Add(gctx, -1)
				o.Metrics.RecordShardExit(gctx, res.Failed())
			}
			if o.OnExit != nil {
				o.OnExit(res)
			}

			results[i] = res
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("shard: run interrupted: %w", err)
	}
	return results, nil
}

func runWorker(ctx context.Context, exe string, s Shard, device string, o Options) Result {
	res := Result{Shard: s.Index, Device: device}

	logPath := filepath.Join(o.LogDir, fmt.Sprintf("shard_%02d.log", s.Index))
	logFile, err := os.Create(logPath)
	if err != nil {
		res.ExitCode = -1
		res.Err = fmt.Sprintf("create log: %v", err)
		return res
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, exe, o.ArgsFor(s)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()
	if device != "" {
		cmd.Env = append(cmd.Env, o.DeviceEnv+"="+device)
	}

	slog.Info("shard worker starting",
		"shard", s.Index, "rows", len(s.Rows), "device", device, "log", logPath)

	start := time.Now()
	err = cmd.Run()
	res.Elapsed = time.Since(start).Round(time.Second)

	switch e := err.(type) {
	case nil:
	case *exec.ExitError:
		res.ExitCode = e.ExitCode()
	default:
		res.ExitCode = -1
		res.Err = err.Error()
	}

	slog.Info("shard worker finished",
		"shard", s.Index, "device", device, "exit", res.ExitCode, "elapsed", res.Elapsed)
	return res
}

func heartbeat(ctx context.Context, every time.Duration, running, done *atomic.Int64, total int) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			slog.Info("shard progress",
				"running", running.Load(), "done", done.Load(), "total", total)
		}
	}
}
