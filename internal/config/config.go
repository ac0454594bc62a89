// Package config provides the configuration schema and loader for the
// voxprep pipeline. A single YAML file carries defaults for every
// subcommand; command-line flags override individual values at the call
// site.
package config

import (
	"time"

	"github.com/dkrasnelis/voxprep/internal/align"
	"github.com/dkrasnelis/voxprep/internal/chunker"
	"github.com/dkrasnelis/voxprep/internal/prepare"
	"github.com/dkrasnelis/voxprep/internal/quality"
)

// LogLevel controls log verbosity for all subcommands.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxprep.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Empty means "info".
	LogLevel LogLevel `yaml:"log_level"`

	ASR     ASRConfig     `yaml:"asr"`
	Chunk   ChunkConfig   `yaml:"chunk"`
	Align   AlignConfig   `yaml:"align"`
	Prepare PrepareConfig `yaml:"prepare"`
	Quality QualityConfig `yaml:"quality"`
	Shard   ShardConfig   `yaml:"shard"`
}

// ASRConfig selects the speech-recognition model used by the aligner and
// the round-trip validation pass.
type ASRConfig struct {
	// ModelPath is the whisper.cpp GGML model file.
	ModelPath string `yaml:"model_path"`

	// Language is the transcription language hint (e.g., "ru").
	Language string `yaml:"language"`

	// Threads is the CPU thread count per transcription context.
	// 0 lets the engine decide.
	Threads int `yaml:"threads"`
}

// ChunkConfig holds text-chunking limits.
type ChunkConfig struct {
	// MaxLen is the hard per-chunk character budget.
	MaxLen int `yaml:"max_len"`

	// MinLen is the orphan threshold; a trailing chunk shorter than this is
	// merged backwards when the budget allows.
	MinLen int `yaml:"min_len"`
}

// AlignConfig holds forced-alignment matching parameters.
type AlignConfig struct {
	// MinSimilarity is the acceptance threshold for a candidate span.
	MinSimilarity float64 `yaml:"min_similarity"`

	// MaxExtraTokens widens the candidate window by ± this many tokens
	// around the chunk's own token count.
	MaxExtraTokens int `yaml:"max_extra_tokens"`

	// MaxCandidates caps candidate start positions per chunk.
	MaxCandidates int `yaml:"max_candidates"`

	// PadSeconds is the symmetric padding applied to accepted spans.
	PadSeconds float64 `yaml:"pad_seconds"`
}

// PrepareConfig holds the segment acceptance bounds and output audio format
// for dataset preparation.
type PrepareConfig struct {
	// MinSegSeconds and MaxSegSeconds bound the duration of a kept ASR
	// segment.
	MinSegSeconds float64 `yaml:"min_seg_seconds"`
	MaxSegSeconds float64 `yaml:"max_seg_seconds"`

	// MinTextChars and MaxTextChars bound the cleaned segment text length.
	MinTextChars int `yaml:"min_text_chars"`
	MaxTextChars int `yaml:"max_text_chars"`

	// SampleRate is the output clip sample rate.
	SampleRate int `yaml:"sample_rate"`
}

// QualityConfig holds the validation thresholds and report limits.
type QualityConfig struct {
	MinTextLen        int     `yaml:"min_text_len"`
	MaxTextLen        int     `yaml:"max_text_len"`
	MinCyrillicRatio  float64 `yaml:"min_cyrillic_ratio"`
	LatinSuspectRatio float64 `yaml:"latin_suspect_ratio"`
	RepetitionSuspect float64 `yaml:"repetition_suspect"`
	MinDurationSec    float64 `yaml:"min_duration_sec"`
	MaxDurationSec    float64 `yaml:"max_duration_sec"`
	NearDupHamming    int     `yaml:"near_dup_hamming"`

	// SuspectTop caps suspects.tsv; 0 means unlimited.
	SuspectTop int `yaml:"suspect_top"`

	// SampleN is the samples.tsv row count.
	SampleN int `yaml:"sample_n"`

	RoundTrip RoundTripConfig `yaml:"round_trip"`
}

// RoundTripConfig controls the ASR re-transcription pass.
type RoundTripConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Required   bool    `yaml:"required"`
	SampleN    int     `yaml:"sample_n"`
	Threshold  float64 `yaml:"threshold"`
	TimeoutSec float64 `yaml:"timeout_sec"`
}

// ShardConfig holds the sharded-run worker topology.
type ShardConfig struct {
	// Devices lists accelerator ids, one worker pool per device.
	Devices []string `yaml:"devices"`

	// WorkersPerDevice is the concurrent worker count per device.
	WorkersPerDevice int `yaml:"workers_per_device"`

	// DeviceEnv is the environment variable used to pin a worker.
	// Empty means CUDA_VISIBLE_DEVICES.
	DeviceEnv string `yaml:"device_env"`

	// MetricsAddr exposes a Prometheus /metrics endpoint during sharded
	// runs when non-empty (e.g., ":9090").
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a Config populated with the standard pipeline defaults.
// Loading merges the YAML file on top of these values.
func Default() *Config {
	ccfg := align.DefaultConfig()
	pcfg := prepare.DefaultConfig()
	qcfg := quality.DefaultCheckConfig()
	return &Config{
		LogLevel: LogInfo,
		ASR: ASRConfig{
			Language: "ru",
		},
		Chunk: ChunkConfig{
			MaxLen: chunker.DefaultMaxLen,
			MinLen: chunker.DefaultMinLen,
		},
		Align: AlignConfig{
			MinSimilarity:  ccfg.MinSim,
			MaxExtraTokens: ccfg.MaxExtraTokens,
			MaxCandidates:  ccfg.MaxCandidates,
			PadSeconds:     ccfg.PadSeconds,
		},
		Prepare: PrepareConfig{
			MinSegSeconds: pcfg.MinSegSeconds,
			MaxSegSeconds: pcfg.MaxSegSeconds,
			MinTextChars:  pcfg.MinTextChars,
			MaxTextChars:  pcfg.MaxTextChars,
			SampleRate:    pcfg.SampleRate,
		},
		Quality: QualityConfig{
			MinTextLen:        qcfg.MinTextLen,
			MaxTextLen:        qcfg.MaxTextLen,
			MinCyrillicRatio:  qcfg.MinCyrillicRatio,
			LatinSuspectRatio: qcfg.LatinSuspectRatio,
			RepetitionSuspect: qcfg.RepetitionSuspect,
			MinDurationSec:    qcfg.MinDuration,
			MaxDurationSec:    qcfg.MaxDuration,
			NearDupHamming:    qcfg.NearDupHamming,
			SuspectTop:        200,
			SampleN:           30,
			RoundTrip: RoundTripConfig{
				Threshold: 0.8,
			},
		},
		Shard: ShardConfig{
			WorkersPerDevice: 1,
		},
	}
}

// AlignSettings converts the YAML block to the aligner's config type.
func (c *Config) AlignSettings() align.Config {
	return align.Config{
		MinSim:         c.Align.MinSimilarity,
		MaxExtraTokens: c.Align.MaxExtraTokens,
		MaxCandidates:  c.Align.MaxCandidates,
		PadSeconds:     c.Align.PadSeconds,
	}
}

// PrepareSettings converts the YAML block to the preparer's config type.
func (c *Config) PrepareSettings() prepare.Config {
	return prepare.Config{
		MinSegSeconds: c.Prepare.MinSegSeconds,
		MaxSegSeconds: c.Prepare.MaxSegSeconds,
		MinTextChars:  c.Prepare.MinTextChars,
		MaxTextChars:  c.Prepare.MaxTextChars,
		SampleRate:    c.Prepare.SampleRate,
	}
}

// CheckSettings converts the YAML block to the quality engine's config type.
func (c *Config) CheckSettings() quality.CheckConfig {
	return quality.CheckConfig{
		MinTextLen:        c.Quality.MinTextLen,
		MaxTextLen:        c.Quality.MaxTextLen,
		MinCyrillicRatio:  c.Quality.MinCyrillicRatio,
		LatinSuspectRatio: c.Quality.LatinSuspectRatio,
		RepetitionSuspect: c.Quality.RepetitionSuspect,
		MinDuration:       c.Quality.MinDurationSec,
		MaxDuration:       c.Quality.MaxDurationSec,
		NearDupHamming:    c.Quality.NearDupHamming,
	}
}

// RoundTripSettings converts the YAML block to the quality engine's
// round-trip config type.
func (c *Config) RoundTripSettings() quality.RoundTripConfig {
	return quality.RoundTripConfig{
		Enabled:   c.Quality.RoundTrip.Enabled,
		Required:  c.Quality.RoundTrip.Required,
		SampleN:   c.Quality.RoundTrip.SampleN,
		Threshold: c.Quality.RoundTrip.Threshold,
		Timeout:   time.Duration(c.Quality.RoundTrip.TimeoutSec * float64(time.Second)),
	}
}
