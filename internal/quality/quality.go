// Package quality implements the corpus quality-heuristics engine: per-row
// textual and acoustic checks over a flat (wav, text) corpus, an optional
// ASR round-trip pass, summary statistics, report artifacts, and the
// corpus-level PASS/FAIL verdict.
//
// Checks are independent: every check runs on every row and a finding never
// blocks processing of subsequent rows. Only environment-level problems
// (unreadable metadata) abort a run.
package quality

import "time"

// Issue kinds attached to suspects. Structural kinds gate the verdict;
// heuristic kinds are review signals only.
const (
	IssueEmptyRow         = "empty_row"
	IssueMissingText      = "missing_text"
	IssueEmptyWavOrText   = "empty_wav_or_text"
	IssueMissingWav       = "missing_wav"
	IssueDuplicateWav     = "duplicate_wav"
	IssueExtraWav         = "extra_wav"
	IssueNonPrintable     = "non_printable"
	IssueTooShortText     = "too_short_text"
	IssueTooLongText      = "too_long_text"
	IssueLowCyrillicRatio = "low_cyrillic_ratio"
	IssueCodeSwitch       = "code_switch"
	IssueHighRepetition   = "high_token_repetition"
	IssueDuplicateText    = "duplicate_text"
	IssueNearDuplicate    = "near_duplicate_text"
	IssueInvalidAudio     = "invalid_audio"
	IssueNotMono          = "not_mono"
	IssueNotPCM16         = "not_pcm16"
	IssueSampleRate       = "sample_rate_mismatch"
	IssueTooShortAudio    = "too_short_audio"
	IssueTooLongAudio     = "too_long_audio"
	IssueASRLowSimilarity = "asr_low_similarity"
	IssueASRError         = "asr_error"
)

// Suspect is one non-fatal data-quality finding attached to a specific row.
// A single row may generate zero or many suspects.
type Suspect struct {
	Row     int
	WAV     string
	Issue   string
	Details string
	Text    string
}

// CheckConfig holds the per-row heuristic thresholds.
type CheckConfig struct {
	MinTextLen        int
	MaxTextLen        int
	MinCyrillicRatio  float64
	LatinSuspectRatio float64
	RepetitionSuspect float64
	MinDuration       float64
	MaxDuration       float64

	// NearDupHamming is the maximum simhash hamming distance at which two
	// texts are flagged as near duplicates. 0 disables the check.
	NearDupHamming int
}

// RoundTripConfig controls the optional re-transcription pass.
type RoundTripConfig struct {
	// Enabled turns the pass on.
	Enabled bool

	// Required makes round-trip findings (and failure to run the pass at
	// all) gate the verdict.
	Required bool

	// SampleN limits the pass to a random sample of rows; 0 means every
	// row with existing audio.
	SampleN int

	// Threshold is the minimum normalized similarity between reference and
	// hypothesis text.
	Threshold float64

	// Timeout bounds one transcription call; expiry is recorded as an
	// asr_error suspect. Zero disables the bound.
	Timeout time.Duration
}

// DefaultCheckConfig returns the standard heuristic thresholds.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		MinTextLen:        3,
		MaxTextLen:        400,
		MinCyrillicRatio:  0.6,
		LatinSuspectRatio: 0.1,
		RepetitionSuspect: 0.5,
		MinDuration:       0.2,
		MaxDuration:       15.5,
		NearDupHamming:    3,
	}
}

// DefaultRoundTripConfig returns the standard round-trip settings with the
// pass disabled.
func DefaultRoundTripConfig() RoundTripConfig {
	return RoundTripConfig{Threshold: 0.8}
}
