// Package align implements the sequential chunk-to-audio aligner: given the
// ASR word stream of one audio file and that file's ordered transcript
// chunks, it finds for each chunk the best-matching contiguous sub-span of
// the word stream, advancing a monotonic cursor so chunks are matched in
// narration order.
//
// The search is a heuristic, not an optimal global alignment. It tolerates
// ASR mis-transcriptions (similarity threshold instead of exact match),
// segmentation mismatches (variable window length), and long recordings
// (candidate capping bounds worst-case cost).
package align

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/dkrasnelis/voxprep/internal/cutlist"
	"github.com/dkrasnelis/voxprep/internal/manifest"
	"github.com/dkrasnelis/voxprep/internal/observe"
	"github.com/dkrasnelis/voxprep/internal/text"
	"github.com/dkrasnelis/voxprep/pkg/asr"
)

// Config holds the aligner's matching parameters.
type Config struct {
	// MinSim is the minimum similarity ratio to accept a match.
	MinSim float64

	// MaxExtraTokens allows the candidate window length to deviate from the
	// chunk's token count by ± this many tokens.
	MaxExtraTokens int

	// MaxCandidates caps anchored candidate start positions per chunk.
	MaxCandidates int

	// PadSeconds pads the accepted interval on both sides, clamped at zero.
	PadSeconds float64
}

// DefaultConfig returns the standard matching parameters.
func DefaultConfig() Config {
	return Config{
		MinSim:         0.80,
		MaxExtraTokens: 4,
		MaxCandidates:  2000,
		PadSeconds:     0.10,
	}
}

// Stats accumulates per-run chunk counters.
type Stats struct {
	Total      int
	Matched    int
	Unresolved int
}

// Aligner aligns chunk-list items against audio via an asr.WordAligner.
type Aligner struct {
	cfg     Config
	engine  asr.WordAligner
	metrics *observe.Metrics
}

// New returns an Aligner using the given engine and config. metrics may be
// nil to disable instrumentation.
func New(engine asr.WordAligner, cfg Config, metrics *observe.Metrics) *Aligner {
	return &Aligner{cfg: cfg, engine: engine, metrics: metrics}
}

// AlignItem aligns every chunk of one chunk-list item and returns the
// records in chunk order. The audio file is resolved against audioRoot. An
// engine failure or empty word stream is fatal: it indicates an environment
// problem, not a content problem.
func (a *Aligner) AlignItem(ctx context.Context, item manifest.Item, audioRoot string) ([]cutlist.Record, Stats, error) {
	var stats Stats

	audioPath := filepath.Join(audioRoot, item.AudioPath)
	words, err := a.engine.AlignWords(ctx, audioPath)
	if err != nil {
		return nil, stats, fmt.Errorf("align: word stream for %q: %w", item.AudioPath, err)
	}

	records := make([]cutlist.Record, 0, len(item.Sentences))
	cursor := 0

	for _, chunk := range item.Sentences {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		stats.Total++

		target := text.Tokenize(chunk)
		m, found := bestSequentialMatch(words, target, cursor, a.cfg.MaxExtraTokens, a.cfg.MaxCandidates)

		if !found || m.sim < a.cfg.MinSim {
			stats.Unresolved++
			rec := cutlist.Record{
				SrcAudio: item.AudioPath,
				Text:     chunk,
				Status:   cutlist.StatusUnmatched,
			}
			if found {
				rec.Similarity = ptr(round(m.sim, 4))
			}
			records = append(records, rec)
			a.countChunk(ctx, cutlist.StatusUnmatched)
			continue
		}

		start := clamp(words[m.start].Start-a.cfg.PadSeconds, 0, 1e9)
		end := clamp(words[m.end-1].End+a.cfg.PadSeconds, 0, 1e9)
		if end <= start {
			stats.Unresolved++
			records = append(records, cutlist.Record{
				SrcAudio:   item.AudioPath,
				Text:       chunk,
				Similarity: ptr(round(m.sim, 4)),
				Status:     cutlist.StatusBadTimes,
			})
			a.countChunk(ctx, cutlist.StatusBadTimes)
			continue
		}

		stats.Matched++
		if m.end > cursor {
			cursor = m.end
		}
		records = append(records, cutlist.Record{
			SrcAudio:   item.AudioPath,
			Start:      ptr(round(start, 3)),
			End:        ptr(round(end, 3)),
			Text:       chunk,
			Similarity: ptr(round(m.sim, 4)),
			Status:     cutlist.StatusOK,
		})
		a.countChunk(ctx, cutlist.StatusOK)
	}

	slog.Debug("aligned item",
		"audio", item.AudioPath,
		"chunks", stats.Total,
		"ok", stats.Matched,
		"unresolved", stats.Unresolved,
	)
	return records, stats, nil
}

func (a *Aligner) countChunk(ctx context.Context, status cutlist.Status) {
	if a.metrics != nil {
		a.metrics.RecordChunkAligned(ctx, string(status))
	}
}

// match is one candidate window: word indices [start, end) and its score.
type match struct {
	start int
	end   int // exclusive
	sim   float64
}

// bestSequentialMatch scans the word stream from cursor for the window most
// similar to the target tokens.
//
// Candidate start positions are those whose anchor equals the first target
// token, capped at maxCandidates. If the first token never occurs — an ASR
// substitution on the opening word — a sparse probe of roughly 2000 evenly
// spaced positions is used instead. Each candidate is tried at window
// lengths within ±maxExtra of the target token count.
//
// The comparison keeps a new window only on a strictly greater score, so
// ties resolve to the earliest position, then the shortest length. That
// exact tie-break keeps alignment output reproducible.
func bestSequentialMatch(words []asr.Word, target []string, cursor, maxExtra, maxCandidates int) (match, bool) {
	if len(target) == 0 {
		return match{}, false
	}

	var positions []int
	first := target[0]
	for i := cursor; i < len(words); i++ {
		if words[i].Anchor == first {
			positions = append(positions, i)
			if maxCandidates > 0 && len(positions) >= maxCandidates {
				break
			}
		}
	}
	if len(positions) == 0 {
		step := len(words) / 2000
		if step < 1 {
			step = 1
		}
		for i := cursor; i < len(words); i += step {
			positions = append(positions, i)
		}
	}

	minLen := len(target) - maxExtra
	if minLen < 1 {
		minLen = 1
	}
	maxLen := len(target) + maxExtra

	tgtJoin := strings.Join(target, " ")
	var (
		best  match
		found bool
	)

	for _, start := range positions {
		for l := minLen; l <= maxLen; l++ {
			end := start + l
			if end > len(words) {
				break
			}
			sim := text.Similarity(joinAnchors(words[start:end]), tgtJoin)
			if !found || sim > best.sim {
				best = match{start: start, end: end, sim: sim}
				found = true
			}
		}
	}
	return best, found
}

func joinAnchors(words []asr.Word) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.Anchor)
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func ptr(v float64) *float64 { return &v }
