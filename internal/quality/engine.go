package quality

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dkrasnelis/voxprep/internal/corpus"
	"github.com/dkrasnelis/voxprep/internal/observe"
	"github.com/dkrasnelis/voxprep/internal/text"
	"github.com/dkrasnelis/voxprep/pkg/asr"
)

// Engine evaluates a corpus row by row. It is single-use per run: duplicate
// detection state lives in the engine, so construct a fresh Engine per
// dataset (or per shard).
type Engine struct {
	checks      CheckConfig
	rt          RoundTripConfig
	transcriber asr.Transcriber
	metrics     *observe.Metrics
	rng         *rand.Rand
	seed        int64
}

// NewEngine constructs an engine. transcriber may be nil when the
// round-trip pass is disabled; metrics may be nil to disable
// instrumentation. seed drives sample selection; 0 selects a time-based
// seed.
func NewEngine(checks CheckConfig, rt RoundTripConfig, transcriber asr.Transcriber, metrics *observe.Metrics, seed int64) *Engine {
	if seed == 0 {
		seed = time.Now().Unix()
	}
	return &Engine{
		checks:      checks,
		rt:          rt,
		transcriber: transcriber,
		metrics:     metrics,
		rng:         rand.New(rand.NewSource(seed)),
		seed:        seed,
	}
}

// RoundTripResult is one re-transcription outcome.
type RoundTripResult struct {
	Row int
	WAV string
	Ref string
	Hyp string
	Sim *float64
	Err string
}

// RoundTripSummary summarises the round-trip pass.
type RoundTripSummary struct {
	Ran           bool               `json:"ran"`
	SampleN       int                `json:"sample_n"`
	LowSimilarity int                `json:"low_similarity_n"`
	Errors        int                `json:"errors_n"`
	Results       []RoundTripResult  `json:"-"`
	Similarity    DistStats          `json:"similarity"`
}

// Result is the outcome of one evaluation run.
type Result struct {
	Dataset       string
	Seed          int64
	Rows          []corpus.Row
	Suspects      []Suspect
	Errors        []string // dataset-level structural errors
	Durations     []float64
	TextLens      []float64
	DuplicateRows int
	ValidRows     int // rows whose referenced audio file exists
	ExtraWavs     []string
	RoundTrip     RoundTripSummary
	FailReasons   []string
}

// Verdict returns "PASS" or "FAIL". The gate is conjunctive: any structural
// error, duplicate, extra/missing audio file, or (when the round-trip pass
// is required) any round-trip issue fails the whole batch, so a partially
// broken corpus can never slip into training.
func (r *Result) Verdict() string {
	if len(r.FailReasons) > 0 {
		return "FAIL"
	}
	return "PASS"
}

// Evaluate runs all checks over rows of ds. Findings are captured as data;
// the returned error is reserved for environment problems (none today, the
// signature anticipates a cancellable context).
func (e *Engine) Evaluate(ctx context.Context, ds *corpus.Dataset, rows []corpus.Row) (*Result, error) {
	res := &Result{Dataset: ds.Dir, Seed: e.seed, Rows: rows}

	if ds.Config == nil {
		res.Errors = append(res.Errors, "missing_config")
	}
	if st, err := os.Stat(filepath.Join(ds.Dir, corpus.WavsDir)); err != nil || !st.IsDir() {
		res.Errors = append(res.Errors, "missing_wavs_dir")
	}

	addSuspect := func(s Suspect) {
		res.Suspects = append(res.Suspects, s)
		if e.metrics != nil {
			e.metrics.RecordSuspect(ctx, s.Issue)
		}
	}

	dupIndex := NewDuplicateIndex()
	seenWavs := make(map[string]int, len(rows))
	var validRows []corpus.Row

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("quality: evaluate cancelled: %w", err)
		}
		if e.metrics != nil {
			e.metrics.RowsProcessed.Add(ctx, 1)
		}

		if row.Issue != "" {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: row.Issue})
			continue
		}
		if row.WAV == "" || row.Text == "" {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueEmptyWavOrText, Text: row.Text})
			continue
		}

		if first, dup := dupWav(seenWavs, row); dup {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueDuplicateWav,
				Details: fmt.Sprintf("first_row=%d", first), Text: row.Text})
		}

		for _, s := range textSuspects(row.Num, row.WAV, row.Text, e.checks) {
			addSuspect(s)
		}

		if first, dup := dupIndex.Check(row.Num, row.Text); dup {
			res.DuplicateRows++
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueDuplicateText,
				Details: fmt.Sprintf("first_row=%d", first), Text: row.Text})
		} else if first, near := dupIndex.NearCheck(row.Num, row.Text, e.checks.NearDupHamming); near {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueNearDuplicate,
				Details: fmt.Sprintf("first_row=%d", first), Text: row.Text})
		}

		res.TextLens = append(res.TextLens, float64(len([]rune(row.Text))))

		info := corpus.ProbeAudio(ds.WavPath(row.WAV))
		if info.Err != "" {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: info.Err, Text: row.Text})
			continue
		}
		validRows = append(validRows, row)

		if info.Channels != 1 {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueNotMono,
				Details: fmt.Sprintf("channels=%d", info.Channels), Text: row.Text})
		}
		if info.BitDepth != 16 {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueNotPCM16,
				Details: fmt.Sprintf("bit_depth=%d", info.BitDepth), Text: row.Text})
		}
		if ds.SampleRate > 0 && info.SampleRate != ds.SampleRate {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueSampleRate,
				Details: fmt.Sprintf("got=%d want=%d", info.SampleRate, ds.SampleRate), Text: row.Text})
		}

		res.Durations = append(res.Durations, info.Duration)
		if info.Duration < e.checks.MinDuration {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueTooShortAudio,
				Details: fmt.Sprintf("dur=%.3f", info.Duration), Text: row.Text})
		}
		if info.Duration > e.checks.MaxDuration {
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueTooLongAudio,
				Details: fmt.Sprintf("dur=%.3f", info.Duration), Text: row.Text})
		}
	}
	res.ValidRows = len(validRows)

	// Audio files never referenced by any metadata row.
	for _, name := range ds.ListWavs() {
		if _, ok := seenWavs[name]; !ok {
			res.ExtraWavs = append(res.ExtraWavs, name)
			addSuspect(Suspect{Row: 0, WAV: name, Issue: IssueExtraWav})
		}
	}

	e.runRoundTrip(ctx, ds, validRows, res, addSuspect)

	res.FailReasons = e.failReasons(res)
	slog.Info("quality evaluation finished",
		"dataset", ds.Dir,
		"rows", len(rows),
		"suspects", len(res.Suspects),
		"verdict", res.Verdict(),
	)
	return res, nil
}

// dupWav registers the wav name and reports an earlier row using the same
// file.
func dupWav(seen map[string]int, row corpus.Row) (firstRow int, dup bool) {
	if first, ok := seen[row.WAV]; ok {
		return first, true
	}
	seen[row.WAV] = row.Num
	return 0, false
}

// runRoundTrip re-transcribes audio and compares against reference text.
// Engine exceptions are recorded per row and never abort the pass.
func (e *Engine) runRoundTrip(ctx context.Context, ds *corpus.Dataset, validRows []corpus.Row, res *Result, addSuspect func(Suspect)) {
	if !e.rt.Enabled || e.transcriber == nil {
		return
	}

	sample := append([]corpus.Row(nil), validRows...)
	if e.rt.SampleN > 0 && e.rt.SampleN < len(sample) {
		e.rng.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
		sample = sample[:e.rt.SampleN]
	}

	res.RoundTrip.Ran = true
	res.RoundTrip.SampleN = len(sample)
	var sims []float64

	for i, row := range sample {
		hyp, err := e.transcribeOne(ctx, ds.WavPath(row.WAV))
		if err != nil {
			res.RoundTrip.Errors++
			res.RoundTrip.Results = append(res.RoundTrip.Results, RoundTripResult{
				Row: row.Num, WAV: row.WAV, Ref: row.Text, Err: err.Error(),
			})
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueASRError, Details: err.Error(), Text: row.Text})
			continue
		}

		sim := text.Similarity(text.Normalize(row.Text), text.Normalize(hyp))
		sims = append(sims, sim)
		res.RoundTrip.Results = append(res.RoundTrip.Results, RoundTripResult{
			Row: row.Num, WAV: row.WAV, Ref: row.Text, Hyp: hyp, Sim: fptr(sim),
		})
		if sim < e.rt.Threshold {
			res.RoundTrip.LowSimilarity++
			addSuspect(Suspect{Row: row.Num, WAV: row.WAV, Issue: IssueASRLowSimilarity,
				Details: fmt.Sprintf("sim=%.3f", sim), Text: row.Text})
		}

		if (i+1)%25 == 0 {
			slog.Info("round-trip progress", "done", i+1, "total", len(sample))
		}
	}
	res.RoundTrip.Similarity = NewDistStats(sims)
}

// transcribeOne bounds a single transcription call with the configured
// timeout. Latency is recorded even for failed calls.
func (e *Engine) transcribeOne(ctx context.Context, wavPath string) (string, error) {
	callCtx := ctx
	if e.rt.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.rt.Timeout)
		defer cancel()
	}
	start := time.Now()
	hyp, err := e.transcriber.Transcribe(callCtx, wavPath)
	if e.metrics != nil {
		e.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds())
	}
	return hyp, err
}

// failReasons applies the verdict gate.
func (e *Engine) failReasons(res *Result) []string {
	var reasons []string
	reasons = append(reasons, res.Errors...)

	structural := 0
	duplicates := 0
	for _, s := range res.Suspects {
		switch s.Issue {
		case IssueEmptyRow, IssueMissingText, IssueEmptyWavOrText, IssueMissingWav:
			structural++
		case IssueDuplicateText, IssueDuplicateWav:
			duplicates++
		}
	}
	if structural > 0 {
		reasons = append(reasons, fmt.Sprintf("structural_issues=%d", structural))
	}
	if duplicates > 0 {
		reasons = append(reasons, fmt.Sprintf("duplicates=%d", duplicates))
	}
	if len(res.ExtraWavs) > 0 {
		reasons = append(reasons, fmt.Sprintf("extra_wav=%d", len(res.ExtraWavs)))
	}
	if e.rt.Required {
		if !res.RoundTrip.Ran {
			reasons = append(reasons, "round_trip_not_run")
		} else if n := res.RoundTrip.LowSimilarity + res.RoundTrip.Errors; n > 0 {
			reasons = append(reasons, fmt.Sprintf("round_trip_issues=%d", n))
		}
	}
	return reasons
}
