package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, merged over [Default],
// and returns a validated [Config]. It is a convenience wrapper around
// [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			err = nil
		} else {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Chunk.MaxLen < 40 {
		errs = append(errs, fmt.Errorf("chunk.max_len %d is too small; minimum 40", cfg.Chunk.MaxLen))
	}
	if cfg.Chunk.MinLen < 10 {
		errs = append(errs, fmt.Errorf("chunk.min_len %d is too small; minimum 10", cfg.Chunk.MinLen))
	}
	if cfg.Chunk.MinLen >= cfg.Chunk.MaxLen {
		errs = append(errs, fmt.Errorf("chunk.min_len %d must be below chunk.max_len %d", cfg.Chunk.MinLen, cfg.Chunk.MaxLen))
	}

	if cfg.Align.MinSimilarity < 0 || cfg.Align.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("align.min_similarity %.2f is out of range [0, 1]", cfg.Align.MinSimilarity))
	}
	if cfg.Align.MaxExtraTokens < 0 {
		errs = append(errs, fmt.Errorf("align.max_extra_tokens %d must be non-negative", cfg.Align.MaxExtraTokens))
	}
	if cfg.Align.MaxCandidates < 1 {
		errs = append(errs, fmt.Errorf("align.max_candidates %d must be positive", cfg.Align.MaxCandidates))
	}
	if cfg.Align.PadSeconds < 0 {
		errs = append(errs, fmt.Errorf("align.pad_seconds %.2f must be non-negative", cfg.Align.PadSeconds))
	}

	if cfg.Prepare.MinSegSeconds <= 0 || cfg.Prepare.MaxSegSeconds < cfg.Prepare.MinSegSeconds {
		errs = append(errs, fmt.Errorf("prepare segment duration bounds [%.2f, %.2f] are inconsistent", cfg.Prepare.MinSegSeconds, cfg.Prepare.MaxSegSeconds))
	}
	if cfg.Prepare.MinTextChars < 0 || cfg.Prepare.MaxTextChars < cfg.Prepare.MinTextChars {
		errs = append(errs, fmt.Errorf("prepare text length bounds [%d, %d] are inconsistent", cfg.Prepare.MinTextChars, cfg.Prepare.MaxTextChars))
	}
	if cfg.Prepare.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("prepare.sample_rate %d is too low; minimum 8000", cfg.Prepare.SampleRate))
	}

	if cfg.Quality.MinTextLen < 0 || cfg.Quality.MaxTextLen < cfg.Quality.MinTextLen {
		errs = append(errs, fmt.Errorf("quality text length bounds [%d, %d] are inconsistent", cfg.Quality.MinTextLen, cfg.Quality.MaxTextLen))
	}
	if cfg.Quality.MinCyrillicRatio < 0 || cfg.Quality.MinCyrillicRatio > 1 {
		errs = append(errs, fmt.Errorf("quality.min_cyrillic_ratio %.2f is out of range [0, 1]", cfg.Quality.MinCyrillicRatio))
	}
	if cfg.Quality.MinDurationSec < 0 || cfg.Quality.MaxDurationSec < cfg.Quality.MinDurationSec {
		errs = append(errs, fmt.Errorf("quality duration bounds [%.2f, %.2f] are inconsistent", cfg.Quality.MinDurationSec, cfg.Quality.MaxDurationSec))
	}
	if rt := cfg.Quality.RoundTrip; rt.Threshold < 0 || rt.Threshold > 1 {
		errs = append(errs, fmt.Errorf("quality.round_trip.threshold %.2f is out of range [0, 1]", rt.Threshold))
	}
	if rt := cfg.Quality.RoundTrip; rt.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("quality.round_trip.timeout_sec %.2f must be non-negative", rt.TimeoutSec))
	}
	if cfg.Quality.RoundTrip.Required && !cfg.Quality.RoundTrip.Enabled {
		errs = append(errs, fmt.Errorf("quality.round_trip.required implies quality.round_trip.enabled"))
	}

	if cfg.Shard.WorkersPerDevice < 1 {
		errs = append(errs, fmt.Errorf("shard.workers_per_device %d must be at least 1", cfg.Shard.WorkersPerDevice))
	}
	seen := make(map[string]int, len(cfg.Shard.Devices))
	for i, d := range cfg.Shard.Devices {
		if d == "" {
			errs = append(errs, fmt.Errorf("shard.devices[%d] is empty", i))
			continue
		}
		if prev, ok := seen[d]; ok {
			errs = append(errs, fmt.Errorf("shard.devices[%d] %q is a duplicate of shard.devices[%d]", i, d, prev))
		}
		seen[d] = i
	}

	return errors.Join(errs...)
}
