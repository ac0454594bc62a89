// Package observe provides pipeline observability primitives: OpenTelemetry
// metric instruments and a Prometheus exporter bridge so long-running
// sharded validation runs can be scraped via a standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pipeline metrics.
const meterName = "github.com/dkrasnelis/voxprep"

// Metrics holds all OpenTelemetry metric instruments for the pipeline.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// RowsProcessed counts corpus rows evaluated by the quality engine.
	RowsProcessed metric.Int64Counter

	// SuspectsFound counts quality findings. Use with attribute:
	//   attribute.String("issue", ...)
	SuspectsFound metric.Int64Counter

	// ChunksAligned counts aligner output records. Use with attribute:
	//   attribute.String("status", ...)
	ChunksAligned metric.Int64Counter

	// ClipsCut counts per-segment clips written during dataset preparation.
	ClipsCut metric.Int64Counter

	// ShardExits counts worker process completions. Use with attribute:
	//   attribute.String("status", "ok"|"failed")
	ShardExits metric.Int64Counter

	// ASRDuration tracks per-file speech-recognition latency in seconds.
	ASRDuration metric.Float64Histogram

	// ActiveShards tracks the number of worker processes currently running.
	ActiveShards metric.Int64UpDownCounter
}

// asrBuckets defines histogram bucket boundaries (seconds) sized for
// per-clip transcription latencies, which range from sub-second short clips
// to minutes-long source recordings.
var asrBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RowsProcessed, err = m.Int64Counter("voxprep.rows.processed",
		metric.WithDescription("Corpus rows evaluated by the quality engine."),
	); err != nil {
		return nil, err
	}
	if met.SuspectsFound, err = m.Int64Counter("voxprep.suspects.found",
		metric.WithDescription("Quality findings recorded, by issue kind."),
	); err != nil {
		return nil, err
	}
	if met.ChunksAligned, err = m.Int64Counter("voxprep.chunks.aligned",
		metric.WithDescription("Aligner output records, by status."),
	); err != nil {
		return nil, err
	}
	if met.ClipsCut, err = m.Int64Counter("voxprep.clips.cut",
		metric.WithDescription("Per-segment clips written during dataset preparation."),
	); err != nil {
		return nil, err
	}
	if met.ShardExits, err = m.Int64Counter("voxprep.shard.exits",
		metric.WithDescription("Worker process completions, by status."),
	); err != nil {
		return nil, err
	}
	if met.ASRDuration, err = m.Float64Histogram("voxprep.asr.duration",
		metric.WithDescription("Per-file speech-recognition latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(asrBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveShards, err = m.Int64UpDownCounter("voxprep.shard.active",
		metric.WithDescription("Worker processes currently running."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordSuspect increments the suspect counter for one issue kind.
func (m *Metrics) RecordSuspect(ctx context.Context, issue string) {
	m.SuspectsFound.Add(ctx, 1, metric.WithAttributes(attribute.String("issue", issue)))
}

// RecordChunkAligned increments the aligned-chunk counter for one status.
func (m *Metrics) RecordChunkAligned(ctx context.Context, status string) {
	m.ChunksAligned.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordShardExit increments the shard-exit counter.
func (m *Metrics) RecordShardExit(ctx context.Context, failed bool) {
	status := "ok"
	if failed {
		status = "failed"
	}
	m.ShardExits.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
	defaultErr     error
)

// DefaultMetrics returns the process-wide Metrics instance built from the
// global OTel meter provider. The first call wins; later provider changes
// are not picked up.
func DefaultMetrics() (*Metrics, error) {
	defaultOnce.Do(func() {
		defaultMetrics, defaultErr = NewMetrics(otel.GetMeterProvider())
	})
	return defaultMetrics, defaultErr
}
