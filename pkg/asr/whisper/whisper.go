// This file contains the Engine implementation backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

// Package whisper implements asr.WordAligner and asr.Transcriber on top of
// the whisper.cpp Go bindings. The model is loaded once at construction and
// shared across calls; each call creates a fresh whisper context, so an
// Engine is safe for sequential reuse across many audio files.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/dkrasnelis/voxprep/internal/text"
	"github.com/dkrasnelis/voxprep/pkg/asr"
)

// whisper.cpp consumes 16 kHz mono float32 samples regardless of the source
// file's format.
const engineSampleRate = 16000

const defaultLanguage = "auto"

// Compile-time assertions that Engine satisfies all asr capabilities.
var (
	_ asr.WordAligner = (*Engine)(nil)
	_ asr.Transcriber = (*Engine)(nil)
	_ asr.Segmenter   = (*Engine)(nil)
)

// Engine wraps a loaded whisper.cpp model.
type Engine struct {
	model    whisperlib.Model
	language string
	threads  uint
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithLanguage sets the transcription language code (e.g., "ru", "en").
// Defaults to "auto" (engine-side detection).
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		if lang != "" {
			e.language = lang
		}
	}
}

// WithThreads sets the number of CPU threads whisper.cpp may use per
// inference. Zero keeps the engine default.
func WithThreads(n uint) Option {
	return func(e *Engine) { e.threads = n }
}

// New loads the whisper.cpp model from modelPath. The caller must call Close
// when the engine is no longer needed.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	e := &Engine{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// AlignWords transcribes wavPath with token timestamps enabled and returns
// the word stream. Words with no alphanumeric content or a non-positive
// duration are dropped at this boundary. An empty result for a decodable
// file returns asr.ErrNoWords.
func (e *Engine) AlignWords(ctx context.Context, wavPath string) ([]asr.Word, error) {
	segments, err := e.run(ctx, wavPath, true)
	if err != nil {
		return nil, err
	}

	var out []asr.Word
	for _, seg := range segments {
		for _, span := range groupWordSpans(seg.tokens) {
			if span.end <= span.start {
				continue
			}
			toks := text.Tokenize(span.raw)
			if len(toks) == 0 {
				continue
			}
			out = append(out, asr.Word{
				Anchor: toks[0],
				Start:  span.start,
				End:    span.end,
				Raw:    span.raw,
			})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("whisper: %q: %w", wavPath, asr.ErrNoWords)
	}
	return out, nil
}

// Transcribe returns the concatenated segment text for wavPath.
func (e *Engine) Transcribe(ctx context.Context, wavPath string) (string, error) {
	segments, err := e.run(ctx, wavPath, false)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// Segments returns whisper's segment timeline for wavPath. Segments with no
// text after trimming or a non-positive duration are dropped at this
// boundary.
func (e *Engine) Segments(ctx context.Context, wavPath string) ([]asr.Segment, error) {
	segments, err := e.run(ctx, wavPath, false)
	if err != nil {
		return nil, err
	}
	var out []asr.Segment
	for _, seg := range segments {
		t := strings.TrimSpace(seg.text)
		if t == "" || seg.end <= seg.start {
			continue
		}
		out = append(out, asr.Segment{Start: seg.start, End: seg.end, Text: t})
	}
	return out, nil
}

// segment is the engine-independent view of one whisper segment, kept so the
// token-grouping logic is testable without the CGO binding.
type segment struct {
	text   string
	start  float64
	end    float64
	tokens []tokenSpan
}

// tokenSpan is one whisper token with timestamps in seconds.
type tokenSpan struct {
	text  string
	start float64
	end   float64
}

// run decodes the audio, executes inference, and drains all segments.
func (e *Engine) run(ctx context.Context, wavPath string, wordTimestamps bool) ([]segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context cancelled before inference: %w", err)
	}

	samples, err := LoadWAV(wavPath, engineSampleRate)
	if err != nil {
		return nil, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", e.language, "error", err)
	}
	if e.threads > 0 {
		wctx.SetThreads(e.threads)
	}
	wctx.SetTokenTimestamps(wordTimestamps)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process %q: %w", wavPath, err)
	}

	var out []segment
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("whisper: context cancelled while reading segments: %w", err)
		}
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		s := segment{
			text:  seg.Text,
			start: durToSeconds(seg.Start),
			end:   durToSeconds(seg.End),
		}
		for _, tok := range seg.Tokens {
			s.tokens = append(s.tokens, tokenSpan{
				text:  tok.Text,
				start: durToSeconds(tok.Start),
				end:   durToSeconds(tok.End),
			})
		}
		out = append(out, s)
	}
	return out, nil
}

// wordSpan is a whole word reassembled from sub-word tokens.
type wordSpan struct {
	raw   string
	start float64
	end   float64
}

// groupWordSpans reassembles whisper's sub-word tokens into words. A token
// whose text begins with a space starts a new word (BPE convention);
// bracketed special tokens such as "[_BEG_]" are skipped.
func groupWordSpans(tokens []tokenSpan) []wordSpan {
	var (
		out     []wordSpan
		current *wordSpan
	)
	flush := func() {
		if current != nil && strings.TrimSpace(current.raw) != "" {
			current.raw = strings.TrimSpace(current.raw)
			out = append(out, *current)
		}
		current = nil
	}

	for _, tok := range tokens {
		trimmed := strings.TrimSpace(tok.text)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			continue
		}
		if strings.HasPrefix(tok.text, " ") || current == nil {
			flush()
			current = &wordSpan{raw: tok.text, start: tok.start, end: tok.end}
			continue
		}
		current.raw += tok.text
		current.end = tok.end
	}
	flush()
	return out
}

func durToSeconds(d time.Duration) float64 {
	return d.Seconds()
}
