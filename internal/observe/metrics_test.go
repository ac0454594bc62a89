package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			out[met.Name] = met
		}
	}
	return out
}

func TestNewMetricsInstruments(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	if m.RowsProcessed == nil || m.SuspectsFound == nil || m.ChunksAligned == nil ||
		m.ClipsCut == nil || m.ShardExits == nil || m.ASRDuration == nil ||
		m.ActiveShards == nil {
		t.Fatal("all instruments must be initialised")
	}
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, reader := newTestMetrics(t)

	m.RowsProcessed.Add(ctx, 3)
	m.RecordSuspect(ctx, "duplicate_text")
	m.RecordSuspect(ctx, "duplicate_text")
	m.RecordSuspect(ctx, "too_short_text")
	m.RecordChunkAligned(ctx, "ok")
	m.RecordShardExit(ctx, false)
	m.RecordShardExit(ctx, true)
	m.ASRDuration.Record(ctx, 1.2)
	m.ActiveShards.Add(ctx, 1)
	m.ActiveShards.Add(ctx, -1)

	got := collect(t, reader)

	rows, ok := got["voxprep.rows.processed"].Data.(metricdata.Sum[int64])
	if !ok || len(rows.DataPoints) != 1 || rows.DataPoints[0].Value != 3 {
		t.Errorf("rows.processed = %+v, want single point of 3", got["voxprep.rows.processed"].Data)
	}

	suspects, ok := got["voxprep.suspects.found"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("suspects.found has unexpected type %T", got["voxprep.suspects.found"].Data)
	}
	if len(suspects.DataPoints) != 2 {
		t.Errorf("suspects.found has %d series, want one per issue kind", len(suspects.DataPoints))
	}
	var total int64
	for _, dp := range suspects.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("suspects.found total = %d, want 3", total)
	}

	exits, ok := got["voxprep.shard.exits"].Data.(metricdata.Sum[int64])
	if !ok || len(exits.DataPoints) != 2 {
		t.Errorf("shard.exits = %+v, want ok and failed series", got["voxprep.shard.exits"].Data)
	}

	hist, ok := got["voxprep.asr.duration"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("asr.duration = %+v, want one recorded value", got["voxprep.asr.duration"].Data)
	}

	active, ok := got["voxprep.shard.active"].Data.(metricdata.Sum[int64])
	if !ok || len(active.DataPoints) != 1 || active.DataPoints[0].Value != 0 {
		t.Errorf("shard.active = %+v, want net 0", got["voxprep.shard.active"].Data)
	}
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	t.Parallel()

	a, err := DefaultMetrics()
	if err != nil {
		t.Fatalf("DefaultMetrics: %v", err)
	}
	b, err := DefaultMetrics()
	if err != nil {
		t.Fatalf("DefaultMetrics: %v", err)
	}
	if a != b {
		t.Error("DefaultMetrics must return the same instance")
	}
}
