// Package mock provides deterministic in-memory fakes of the asr interfaces
// for tests. No real engine is involved; results are scripted per audio path.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkrasnelis/voxprep/pkg/asr"
)

// Engine is a scripted asr.WordAligner and asr.Transcriber. Zero value is
// usable; all fields are optional. Safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	// Words maps an audio path to the word stream AlignWords returns for it.
	Words map[string][]asr.Word

	// Texts maps an audio path to the transcription Transcribe returns for it.
	Texts map[string]string

	// Segs maps an audio path to the segment timeline Segments returns for it.
	Segs map[string][]asr.Segment

	// Err, when non-nil, is returned by every call.
	Err error

	// AlignCalls, TranscribeCalls and SegmentCalls record the paths of every
	// invocation, in order.
	AlignCalls      []string
	TranscribeCalls []string
	SegmentCalls    []string
}

var (
	_ asr.WordAligner = (*Engine)(nil)
	_ asr.Transcriber = (*Engine)(nil)
	_ asr.Segmenter   = (*Engine)(nil)
)

// AlignWords returns the scripted word stream for wavPath. An unscripted
// path yields asr.ErrNoWords, mirroring a real engine that produces nothing.
func (e *Engine) AlignWords(ctx context.Context, wavPath string) ([]asr.Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.AlignCalls = append(e.AlignCalls, wavPath)
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	words, ok := e.Words[wavPath]
	if !ok || len(words) == 0 {
		return nil, fmt.Errorf("mock align %q: %w", wavPath, asr.ErrNoWords)
	}
	return words, nil
}

// Transcribe returns the scripted text for wavPath ("" when unscripted).
func (e *Engine) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	e.TranscribeCalls = append(e.TranscribeCalls, wavPath)
	e.mu.Unlock()

	if e.Err != nil {
		return "", e.Err
	}
	return e.Texts[wavPath], nil
}

// Segments returns the scripted segment timeline for wavPath (nil when
// unscripted).
func (e *Engine) Segments(ctx context.Context, wavPath string) ([]asr.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.SegmentCalls = append(e.SegmentCalls, wavPath)
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	return e.Segs[wavPath], nil
}
