package align

import (
	"context"
	"errors"
	"testing"

	"github.com/dkrasnelis/voxprep/internal/cutlist"
	"github.com/dkrasnelis/voxprep/internal/manifest"
	"github.com/dkrasnelis/voxprep/pkg/asr"
	"github.com/dkrasnelis/voxprep/pkg/asr/mock"
)

func newTestAligner(words map[string][]asr.Word) *Aligner {
	return New(&mock.Engine{Words: words}, DefaultConfig(), nil)
}

func item(audio string, chunks ...string) manifest.Item {
	return manifest.Item{AudioPath: audio, Sentences: chunks}
}

func TestAlignItemExactMatch(t *testing.T) {
	t.Parallel()

	a := newTestAligner(map[string][]asr.Word{
		"root/a.wav": {
			{Anchor: "привет", Start: 0.0, End: 0.4, Raw: "привет"},
			{Anchor: "мир", Start: 0.5, End: 0.9, Raw: "мир"},
		},
	})

	recs, stats, err := a.AlignItem(context.Background(), item("a.wav", "привет мир"), "root")
	if err != nil {
		t.Fatalf("AlignItem: %v", err)
	}
	if stats.Matched != 1 || stats.Unresolved != 0 {
		t.Fatalf("stats = %+v, want 1 matched", stats)
	}
	rec := recs[0]
	if rec.Status != cutlist.StatusOK {
		t.Fatalf("status = %q, want ok", rec.Status)
	}
	if rec.Start == nil || *rec.Start != 0.0 {
		t.Errorf("start = %v, want 0.0 (pad clamped at zero)", rec.Start)
	}
	if rec.End == nil || *rec.End != 1.0 {
		t.Errorf("end = %v, want 1.0 (0.9 + pad)", rec.End)
	}
	if rec.Similarity == nil || *rec.Similarity != 1.0 {
		t.Errorf("similarity = %v, want 1.0", rec.Similarity)
	}
	if rec.SrcAudio != "a.wav" {
		t.Errorf("src_audio = %q, want a.wav", rec.SrcAudio)
	}
}

func TestAlignItemUnmatched(t *testing.T) {
	t.Parallel()

	a := newTestAligner(map[string][]asr.Word{
		"root/a.wav": {
			{Anchor: "привет", Start: 0.0, End: 0.4},
			{Anchor: "мир", Start: 0.5, End: 0.9},
		},
	})

	recs, stats, err := a.AlignItem(context.Background(), item("a.wav", "совсем другое высказывание"), "root")
	if err != nil {
		t.Fatalf("AlignItem: %v", err)
	}
	if stats.Unresolved != 1 {
		t.Fatalf("stats = %+v, want 1 unresolved", stats)
	}
	rec := recs[0]
	if rec.Status != cutlist.StatusUnmatched {
		t.Fatalf("status = %q, want unmatched", rec.Status)
	}
	if rec.Start != nil || rec.End != nil {
		t.Errorf("unmatched record must carry null times, got start=%v end=%v", rec.Start, rec.End)
	}
	if rec.Text != "совсем другое высказывание" {
		t.Errorf("text = %q, original chunk text must be preserved", rec.Text)
	}
}

func TestAlignItemCursorAdvances(t *testing.T) {
	t.Parallel()

	a := newTestAligner(map[string][]asr.Word{
		"root/a.wav": {
			{Anchor: "привет", Start: 0.0, End: 0.4},
			{Anchor: "мир", Start: 0.5, End: 0.9},
			{Anchor: "привет", Start: 1.0, End: 1.4},
			{Anchor: "мир", Start: 1.5, End: 1.9},
		},
	})

	recs, stats, err := a.AlignItem(context.Background(),
		item("a.wav", "привет мир", "привет мир"), "root")
	if err != nil {
		t.Fatalf("AlignItem: %v", err)
	}
	if stats.Matched != 2 {
		t.Fatalf("stats = %+v, want 2 matched", stats)
	}

	// Repeated text must bind to successive occurrences, not rebind to the
	// first one.
	if *recs[0].Start != 0.0 || *recs[0].End != 1.0 {
		t.Errorf("first chunk = [%v, %v], want [0.0, 1.0]", *recs[0].Start, *recs[0].End)
	}
	if *recs[1].Start != 0.9 || *recs[1].End != 2.0 {
		t.Errorf("second chunk = [%v, %v], want [0.9, 2.0]", *recs[1].Start, *recs[1].End)
	}
}

func TestAlignItemBadTimes(t *testing.T) {
	t.Parallel()

	// A word stream with inverted timestamps: the match succeeds but the
	// padded interval collapses.
	a := newTestAligner(map[string][]asr.Word{
		"root/a.wav": {
			{Anchor: "привет", Start: 5.0, End: 0.0},
		},
	})

	recs, stats, err := a.AlignItem(context.Background(), item("a.wav", "привет"), "root")
	if err != nil {
		t.Fatalf("AlignItem: %v", err)
	}
	if stats.Unresolved != 1 {
		t.Fatalf("stats = %+v, want 1 unresolved", stats)
	}
	rec := recs[0]
	if rec.Status != cutlist.StatusBadTimes {
		t.Fatalf("status = %q, want bad_times", rec.Status)
	}
	if rec.Start != nil || rec.End != nil {
		t.Errorf("bad_times record must carry null times")
	}
	if rec.Similarity == nil {
		t.Errorf("bad_times record keeps the observed similarity")
	}
}

func TestAlignItemEngineFailureIsFatal(t *testing.T) {
	t.Parallel()

	engineErr := errors.New("model exploded")
	a := New(&mock.Engine{Err: engineErr}, DefaultConfig(), nil)

	_, _, err := a.AlignItem(context.Background(), item("a.wav", "привет"), "root")
	if !errors.Is(err, engineErr) {
		t.Fatalf("err = %v, want wrapped engine error", err)
	}
}

func TestAlignItemSkipsBlankChunks(t *testing.T) {
	t.Parallel()

	a := newTestAligner(map[string][]asr.Word{
		"root/a.wav": {{Anchor: "привет", Start: 0.0, End: 0.4}},
	})

	recs, stats, err := a.AlignItem(context.Background(), item("a.wav", "  ", "привет"), "root")
	if err != nil {
		t.Fatalf("AlignItem: %v", err)
	}
	if stats.Total != 1 || len(recs) != 1 {
		t.Fatalf("blank chunk must be dropped: stats=%+v records=%d", stats, len(recs))
	}
}

func TestBestSequentialMatchTieBreak(t *testing.T) {
	t.Parallel()

	// Two identical windows; the earlier one must win because the score
	// comparison is strictly-greater.
	words := []asr.Word{
		{Anchor: "да", Start: 0.0, End: 0.2},
		{Anchor: "да", Start: 0.3, End: 0.5},
	}
	m, found := bestSequentialMatch(words, []string{"да"}, 0, 4, 2000)
	if !found {
		t.Fatal("expected a match")
	}
	if m.start != 0 {
		t.Errorf("start = %d, want earliest candidate 0", m.start)
	}
	if m.end != 1 {
		t.Errorf("end = %d, want shortest window", m.end)
	}
}

func TestBestSequentialMatchRespectsCursor(t *testing.T) {
	t.Parallel()

	words := []asr.Word{
		{Anchor: "да", Start: 0.0, End: 0.2},
		{Anchor: "да", Start: 0.3, End: 0.5},
	}
	m, found := bestSequentialMatch(words, []string{"да"}, 1, 4, 2000)
	if !found {
		t.Fatal("expected a match")
	}
	if m.start != 1 {
		t.Errorf("start = %d, candidates before the cursor must be excluded", m.start)
	}
}

func TestBestSequentialMatchEmptyTarget(t *testing.T) {
	t.Parallel()

	if _, found := bestSequentialMatch(nil, nil, 0, 4, 2000); found {
		t.Error("empty target must not match")
	}
}
