package quality

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dkrasnelis/voxprep/internal/corpus"
)

// Report artifact file names, stable so downstream tooling can glob them.
const (
	ReportFile   = "quality_report.md"
	SuspectsFile = "suspects.tsv"
	SamplesFile  = "samples.tsv"
	StatsFile    = "stats.json"
)

// durationBins are the histogram edges (seconds) for the Markdown report.
var durationBins = []float64{0, 0.5, 1, 2, 3, 5, 8, 12, 15, 20}

// ReportOptions controls artifact rendering.
type ReportOptions struct {
	// SuspectTop caps the number of rows written to suspects.tsv; 0 means
	// unlimited.
	SuspectTop int

	// SampleN is the number of random rows written to samples.tsv for
	// manual listening.
	SampleN int
}

// DefaultReportOptions returns the standard artifact limits.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{SuspectTop: 200, SampleN: 30}
}

// statsDoc is the machine-readable stats.json schema.
type statsDoc struct {
	Dataset           string            `json:"dataset"`
	GeneratedUTC      string            `json:"generated_utc"`
	Seed              int64             `json:"seed"`
	RowsTotal         int               `json:"rows_total"`
	RowsWithWav       int               `json:"rows_with_wav"`
	Duration          DistStats         `json:"duration_sec"`
	TextLen           DistStats         `json:"text_len"`
	DuplicateTextRows int               `json:"duplicate_text_rows"`
	SuspectsTotal     int               `json:"suspects_total"`
	SuspectsByIssue   map[string]int    `json:"suspects_by_issue"`
	ExtraWavs         int               `json:"extra_wavs"`
	Errors            []string          `json:"errors"`
	RoundTrip         *RoundTripSummary `json:"asr_round_trip,omitempty"`
	Verdict           string            `json:"verdict"`
	FailReasons       []string          `json:"fail_reasons"`
}

// WriteArtifacts renders the four report artifacts into outDir, creating it
// if needed. Sample selection is derived from the result's seed, so the same
// run always produces the same samples.tsv.
func WriteArtifacts(res *Result, outDir string, opts ReportOptions) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("quality: create report dir: %w", err)
	}
	if err := writeMarkdown(res, filepath.Join(outDir, ReportFile)); err != nil {
		return err
	}
	if err := writeSuspectsTSV(res.Suspects, filepath.Join(outDir, SuspectsFile), opts.SuspectTop); err != nil {
		return err
	}
	if err := writeSamplesTSV(res, filepath.Join(outDir, SamplesFile), opts.SampleN); err != nil {
		return err
	}
	if err := writeStatsJSON(res, filepath.Join(outDir, StatsFile)); err != nil {
		return err
	}
	return nil
}

// SuspectsByIssue tallies suspects per issue kind.
func SuspectsByIssue(suspects []Suspect) map[string]int {
	counts := make(map[string]int)
	for _, s := range suspects {
		counts[s.Issue]++
	}
	return counts
}

// sortSuspects orders by issue kind, then row number, then wav name. The
// order is total, so artifact output is deterministic.
func sortSuspects(suspects []Suspect) []Suspect {
	out := append([]Suspect(nil), suspects...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Issue != out[j].Issue {
			return out[i].Issue < out[j].Issue
		}
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].WAV < out[j].WAV
	})
	return out
}

func writeMarkdown(res *Result, path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Dataset quality report\n\n")
	fmt.Fprintf(&b, "- dataset: `%s`\n", res.Dataset)
	fmt.Fprintf(&b, "- generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- seed: %d\n", res.Seed)
	fmt.Fprintf(&b, "- verdict: **%s**\n\n", res.Verdict())

	if len(res.FailReasons) > 0 {
		fmt.Fprintf(&b, "## Fail reasons\n\n")
		for _, r := range res.FailReasons {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## Rows\n\n")
	fmt.Fprintf(&b, "- total: %d\n", len(res.Rows))
	fmt.Fprintf(&b, "- with audio: %d\n", res.ValidRows)
	fmt.Fprintf(&b, "- duplicate texts: %d\n", res.DuplicateRows)
	fmt.Fprintf(&b, "- extra wavs: %d\n\n", len(res.ExtraWavs))

	fmt.Fprintf(&b, "## Duration (sec)\n\n")
	writeDist(&b, NewDistStats(res.Durations))
	fmt.Fprintf(&b, "\n```\n")
	for _, line := range asciiHist(res.Durations, durationBins) {
		fmt.Fprintf(&b, "%s\n", line)
	}
	fmt.Fprintf(&b, "```\n\n")

	fmt.Fprintf(&b, "## Text length (runes)\n\n")
	writeDist(&b, NewDistStats(res.TextLens))
	fmt.Fprintf(&b, "\n")

	fmt.Fprintf(&b, "## Suspects (%d)\n\n", len(res.Suspects))
	counts := SuspectsByIssue(res.Suspects)
	issues := make([]string, 0, len(counts))
	for issue := range counts {
		issues = append(issues, issue)
	}
	sort.Strings(issues)
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s: %d\n", issue, counts[issue])
	}
	fmt.Fprintf(&b, "\n")

	if res.RoundTrip.Ran {
		fmt.Fprintf(&b, "## ASR round-trip\n\n")
		fmt.Fprintf(&b, "- sampled: %d\n", res.RoundTrip.SampleN)
		fmt.Fprintf(&b, "- low similarity: %d\n", res.RoundTrip.LowSimilarity)
		fmt.Fprintf(&b, "- errors: %d\n\n", res.RoundTrip.Errors)
		fmt.Fprintf(&b, "### Similarity\n\n")
		writeDist(&b, res.RoundTrip.Similarity)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("quality: write %s: %w", ReportFile, err)
	}
	return nil
}

func writeDist(b *strings.Builder, st DistStats) {
	fmt.Fprintf(b, "- count: %d\n", st.Count)
	fmt.Fprintf(b, "- min: %s\n", fmtF(st.Min))
	fmt.Fprintf(b, "- max: %s\n", fmtF(st.Max))
	fmt.Fprintf(b, "- mean: %s\n", fmtF(st.Mean))
	fmt.Fprintf(b, "- p50: %s\n", fmtF(st.P50))
	fmt.Fprintf(b, "- p95: %s\n", fmtF(st.P95))
}

func fmtF(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}

func writeSuspectsTSV(suspects []Suspect, path string, top int) error {
	sorted := sortSuspects(suspects)
	if top > 0 && len(sorted) > top {
		sorted = sorted[:top]
	}

	var b strings.Builder
	b.WriteString("row\twav\tissue\tdetails\ttext\n")
	for _, s := range sorted {
		fmt.Fprintf(&b, "%d\t%s\t%s\t%s\t%s\n", s.Row, s.WAV, s.Issue, tsvEscape(s.Details), tsvEscape(s.Text))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("quality: write %s: %w", SuspectsFile, err)
	}
	return nil
}

func writeSamplesTSV(res *Result, path string, sampleN int) error {
	var withText []corpus.Row
	for _, r := range res.Rows {
		if r.Issue == "" && r.WAV != "" && r.Text != "" {
			withText = append(withText, r)
		}
	}
	if sampleN > 0 && sampleN < len(withText) {
		rng := rand.New(rand.NewSource(res.Seed))
		rng.Shuffle(len(withText), func(i, j int) { withText[i], withText[j] = withText[j], withText[i] })
		withText = withText[:sampleN]
		sort.Slice(withText, func(i, j int) bool { return withText[i].Num < withText[j].Num })
	}

	var b strings.Builder
	b.WriteString("row\twav\ttext\n")
	for _, r := range withText {
		fmt.Fprintf(&b, "%d\t%s\t%s\n", r.Num, r.WAV, tsvEscape(r.Text))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("quality: write %s: %w", SamplesFile, err)
	}
	return nil
}

func writeStatsJSON(res *Result, path string) error {
	doc := statsDoc{
		Dataset:           res.Dataset,
		GeneratedUTC:      time.Now().UTC().Format(time.RFC3339),
		Seed:              res.Seed,
		RowsTotal:         len(res.Rows),
		RowsWithWav:       res.ValidRows,
		Duration:          NewDistStats(res.Durations),
		TextLen:           NewDistStats(res.TextLens),
		DuplicateTextRows: res.DuplicateRows,
		SuspectsTotal:     len(res.Suspects),
		SuspectsByIssue:   SuspectsByIssue(res.Suspects),
		ExtraWavs:         len(res.ExtraWavs),
		Errors:            res.Errors,
		Verdict:           res.Verdict(),
		FailReasons:       res.FailReasons,
	}
	if res.RoundTrip.Ran {
		rt := res.RoundTrip
		doc.RoundTrip = &rt
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("quality: marshal stats: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("quality: write %s: %w", StatsFile, err)
	}
	return nil
}

// tsvEscape keeps the TSV one physical line per record.
func tsvEscape(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}
