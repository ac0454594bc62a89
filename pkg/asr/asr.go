// Package asr defines the capability interfaces over external
// speech-recognition engines consumed by the alignment and validation
// pipeline. The central abstraction is a word stream: a time-ordered
// sequence of recognized tokens with start/end timestamps for one audio
// file.
//
// Implementations wrap a concrete engine (see the whisper subpackage);
// test code uses the deterministic fakes in the mock subpackage instead of
// a live engine.
package asr

import (
	"context"
	"errors"
)

// ErrNoWords is returned by a WordAligner when the engine produced an empty
// word stream for a non-empty audio file. This indicates an engine or
// environment problem rather than a content problem, so callers must treat
// it as fatal and not retry.
var ErrNoWords = errors.New("asr: engine produced no words for non-empty audio")

// Word is one recognized word of an audio file's word stream.
//
// Anchor is the matching key: the first alphanumeric token of the raw engine
// output, lowercased, punctuation stripped. Raw preserves the engine output
// verbatim for diagnostics. End is always strictly greater than Start;
// zero- and negative-duration words are dropped at the adapter boundary.
type Word struct {
	Anchor string
	Start  float64 // seconds from file start
	End    float64 // seconds from file start
	Raw    string
}

// WordAligner produces the full word stream for one audio file. The returned
// slice is ordered by time with monotonic non-decreasing timestamps. Word
// tokens may contain recognition errors; timestamps are trusted.
type WordAligner interface {
	AlignWords(ctx context.Context, wavPath string) ([]Word, error)
}

// Transcriber produces a plain-text transcription of one audio file. Used by
// the round-trip validation pass, where the result is compared against the
// reference text after normalization.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Segment is one engine-delimited utterance of an audio file, typically a
// sentence-sized span of a few seconds. Text is the raw engine output for
// the span; End is strictly greater than Start.
type Segment struct {
	Start float64 // seconds from file start
	End   float64 // seconds from file start
	Text  string
}

// Segmenter produces the engine's segment timeline for one audio file,
// ordered by time. Used by dataset preparation, where long recordings are
// cut into per-segment clips.
type Segmenter interface {
	Segments(ctx context.Context, wavPath string) ([]Segment, error)
}
