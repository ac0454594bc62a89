// Package prepare turns long source recordings into a training dataset by
// cutting them along ASR segment timecodes. Each kept segment becomes one
// short mono PCM clip under wavs/ plus one metadata row, producing the
// layout the validation tools consume: config.json, metadata_2col.csv and
// wavs/.
package prepare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkrasnelis/voxprep/internal/chunker"
	"github.com/dkrasnelis/voxprep/internal/corpus"
	"github.com/dkrasnelis/voxprep/internal/observe"
	"github.com/dkrasnelis/voxprep/pkg/asr"
)

// SourceMetadataFile is where the input dataset's metadata is preserved in
// the output for traceability. Segment text replaces it as the clip text.
const SourceMetadataFile = "metadata_source_2col.csv"

// InfoFile records the preparation settings next to the produced dataset.
const InfoFile = "PREPARE_INFO.txt"

// Default segment acceptance bounds.
const (
	DefaultMinSegSeconds = 1.0
	DefaultMaxSegSeconds = 15.0
	DefaultMinTextChars  = 2
	DefaultMaxTextChars  = 300
	DefaultSampleRate    = 22050
)

// Config holds the segment acceptance bounds and the output audio format.
type Config struct {
	// MinSegSeconds and MaxSegSeconds bound the duration of a kept segment.
	MinSegSeconds float64
	MaxSegSeconds float64

	// MinTextChars and MaxTextChars bound the cleaned segment text length
	// in runes.
	MinTextChars int
	MaxTextChars int

	// SampleRate is the output clip sample rate.
	SampleRate int
}

// DefaultConfig returns the standard preparation bounds.
func DefaultConfig() Config {
	return Config{
		MinSegSeconds: DefaultMinSegSeconds,
		MaxSegSeconds: DefaultMaxSegSeconds,
		MinTextChars:  DefaultMinTextChars,
		MaxTextChars:  DefaultMaxTextChars,
		SampleRate:    DefaultSampleRate,
	}
}

// Clip is one produced wav plus its text, in metadata order.
type Clip struct {
	WAV  string
	Text string
}

// FileStats summarizes one source recording.
type FileStats struct {
	Source  string
	Kept    int
	Skipped int
}

// Result is the outcome of one preparation run.
type Result struct {
	Clips []Clip
	Files []FileStats
}

// Preparer cuts source recordings into per-segment clips via an
// asr.Segmenter.
type Preparer struct {
	engine  asr.Segmenter
	cfg     Config
	metrics *observe.Metrics
}

// New creates a Preparer. metrics may be nil.
func New(engine asr.Segmenter, cfg Config, metrics *observe.Metrics) *Preparer {
	return &Preparer{engine: engine, cfg: cfg, metrics: metrics}
}

// Run prepares outDir from the source dataset: the trainer config is carried
// over with the target sample rate, every listed recording is segmented and
// cut, and the metadata file is written last. srcWavs are absolute paths.
// outDir must not already exist.
func (p *Preparer) Run(ctx context.Context, src *corpus.Dataset, srcWavs []string, outDir string) (*Result, error) {
	if err := os.MkdirAll(filepath.Join(outDir, corpus.WavsDir), 0o755); err != nil {
		return nil, fmt.Errorf("prepare: create output dataset: %w", err)
	}
	if err := carryConfig(filepath.Join(src.Dir, corpus.ConfigFile), filepath.Join(outDir, corpus.ConfigFile), p.cfg.SampleRate); err != nil {
		return nil, err
	}
	if err := preserveSourceMetadata(src.MetadataPath(), filepath.Join(outDir, SourceMetadataFile)); err != nil {
		return nil, err
	}

	res := &Result{}
	for i, srcWav := range srcWavs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("prepare: interrupted: %w", err)
		}
		clips, skipped, err := p.prepareFile(ctx, srcWav, filepath.Join(outDir, corpus.WavsDir))
		if err != nil {
			return nil, err
		}
		res.Clips = append(res.Clips, clips...)
		res.Files = append(res.Files, FileStats{Source: srcWav, Kept: len(clips), Skipped: skipped})
		if p.metrics != nil {
			p.metrics.ClipsCut.Add(ctx, int64(len(clips)))
		}
		slog.Info("recording segmented",
			"file", i+1, "of", len(srcWavs), "source", filepath.Base(srcWav),
			"kept", len(clips), "skipped", skipped)
	}

	lines := make([]string, 0, len(res.Clips))
	for _, c := range res.Clips {
		lines = append(lines, c.WAV+"|"+c.Text)
	}
	if err := corpus.WriteMetadata(filepath.Join(outDir, corpus.MetadataFile), lines); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if err := p.writeInfo(outDir, src.Dir); err != nil {
		return nil, err
	}
	return res, nil
}

// prepareFile segments one recording and writes a clip per kept segment.
// Returns the clips in segment order plus the count of rejected segments.
func (p *Preparer) prepareFile(ctx context.Context, srcWav, wavsOut string) ([]Clip, int, error) {
	segments, err := p.engine.Segments(ctx, srcWav)
	if err != nil {
		return nil, 0, fmt.Errorf("prepare: segment %q: %w", srcWav, err)
	}

	var audio *sourceAudio
	stem := strings.TrimSuffix(filepath.Base(srcWav), filepath.Ext(srcWav))

	var (
		clips   []Clip
		skipped int
	)
	for _, seg := range segments {
		if dur := seg.End - seg.Start; dur < p.cfg.MinSegSeconds || dur > p.cfg.MaxSegSeconds {
			skipped++
			continue
		}
		text := chunker.CleanText(seg.Text)
		if n := len([]rune(text)); n < p.cfg.MinTextChars || n > p.cfg.MaxTextChars {
			skipped++
			continue
		}

		if audio == nil {
			if audio, err = loadMono(srcWav); err != nil {
				return nil, 0, err
			}
		}
		samples := audio.cut(seg.Start, seg.End, p.cfg.SampleRate)
		if len(samples) == 0 {
			skipped++
			continue
		}

		name := fmt.Sprintf("%s_%04d.wav", stem, len(clips))
		if err := writeClip(filepath.Join(wavsOut, name), samples, p.cfg.SampleRate); err != nil {
			return nil, 0, err
		}
		clips = append(clips, Clip{WAV: name, Text: text})
	}
	return clips, skipped, nil
}

// carryConfig copies the trainer config as-is, overriding only
// audio.sample_rate so the produced dataset declares the clip format.
func carryConfig(srcPath, dstPath string, sampleRate int) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("prepare: read source config: %w", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("prepare: parse source config: %w", err)
	}
	audio, _ := cfg["audio"].(map[string]any)
	if audio == nil {
		audio = map[string]any{}
	}
	audio["sample_rate"] = sampleRate
	cfg["audio"] = audio

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("prepare: encode config: %w", err)
	}
	return os.WriteFile(dstPath, append(out, '\n'), 0o644)
}

// preserveSourceMetadata copies the input metadata when it exists; a source
// dataset of raw recordings may not have one yet.
func preserveSourceMetadata(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prepare: read source metadata: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("prepare: preserve source metadata: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("prepare: preserve source metadata: %w", err)
	}
	return dst.Close()
}

// writeInfo records the settings the dataset was produced with.
func (p *Preparer) writeInfo(outDir, srcDir string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "source_dataset=%s\n", srcDir)
	fmt.Fprintf(&b, "sample_rate=%d\n", p.cfg.SampleRate)
	fmt.Fprintf(&b, "min_seg_seconds=%g\n", p.cfg.MinSegSeconds)
	fmt.Fprintf(&b, "max_seg_seconds=%g\n", p.cfg.MaxSegSeconds)
	fmt.Fprintf(&b, "min_text_chars=%d\n", p.cfg.MinTextChars)
	fmt.Fprintf(&b, "max_text_chars=%d\n", p.cfg.MaxTextChars)
	if err := os.WriteFile(filepath.Join(outDir, InfoFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("prepare: write %s: %w", InfoFile, err)
	}
	return nil
}
