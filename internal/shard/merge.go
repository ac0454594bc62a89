package shard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dkrasnelis/voxprep/internal/quality"
)

// shardStats mirrors the subset of a worker's stats.json the merge needs.
type shardStats struct {
	RowsTotal         int                `json:"rows_total"`
	RowsWithWav       int                `json:"rows_with_wav"`
	Duration          quality.DistStats  `json:"duration_sec"`
	TextLen           quality.DistStats  `json:"text_len"`
	DuplicateTextRows int                `json:"duplicate_text_rows"`
	SuspectsTotal     int                `json:"suspects_total"`
	SuspectsByIssue   map[string]int     `json:"suspects_by_issue"`
	ExtraWavs         int                `json:"extra_wavs"`
	Errors            []string           `json:"errors"`
	Verdict           string             `json:"verdict"`
	FailReasons       []string           `json:"fail_reasons"`
}

// mergedStats is the corpus-level stats.json written after a sharded run.
// Percentiles are count-weighted estimates over shard percentiles; exact
// values would require re-streaming every shard's raw distribution.
type mergedStats struct {
	Dataset           string            `json:"dataset"`
	GeneratedUTC      string            `json:"generated_utc"`
	Shards            int               `json:"shards"`
	RowsTotal         int               `json:"rows_total"`
	RowsWithWav       int               `json:"rows_with_wav"`
	Duration          quality.DistStats `json:"duration_sec_estimate"`
	TextLen           quality.DistStats `json:"text_len_estimate"`
	DuplicateTextRows int               `json:"duplicate_text_rows"`
	SuspectsTotal     int               `json:"suspects_total"`
	SuspectsByIssue   map[string]int    `json:"suspects_by_issue"`
	ExtraWavs         int               `json:"extra_wavs"`
	Verdict           string            `json:"verdict"`
	FailReasons       []string          `json:"fail_reasons"`
}

// Merge combines per-shard artifacts and worker results into final artifacts
// under outDir: a merged stats.json, a merged suspects.tsv, and SUMMARY.txt.
// It returns the overall verdict. The run fails when any worker exited
// non-zero, any shard's stats.json is missing, or any shard's own verdict is
// FAIL.
func Merge(dataset string, shards []Shard, results []Result, outDir string, suspectTop int) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("shard: create merge dir: %w", err)
	}

	merged := mergedStats{
		Dataset:         dataset,
		GeneratedUTC:    time.Now().UTC().Format(time.RFC3339),
		Shards:          len(shards),
		SuspectsByIssue: make(map[string]int),
	}
	var (
		durParts  []quality.DistStats
		textParts []quality.DistStats
		suspects  []quality.Suspect
		summary   strings.Builder
	)

	resultByShard := make(map[int]Result, len(results))
	for _, r := range results {
		resultByShard[r.Shard] = r
	}

	for _, s := range shards {
		res := resultByShard[s.Index]
		st, err := readShardStats(filepath.Join(s.OutDir(), quality.StatsFile))
		if err != nil {
			merged.FailReasons = append(merged.FailReasons,
				fmt.Sprintf("shard_%02d: stats unreadable: %v", s.Index, err))
			fmt.Fprintf(&summary, "shard %02d: exit=%d verdict=MISSING rows=%d\n",
				s.Index, res.ExitCode, len(s.Rows))
			continue
		}

		merged.RowsTotal += st.RowsTotal
		merged.RowsWithWav += st.RowsWithWav
		merged.DuplicateTextRows += st.DuplicateTextRows
		merged.SuspectsTotal += st.SuspectsTotal
		merged.ExtraWavs += st.ExtraWavs
		for issue, n := range st.SuspectsByIssue {
			merged.SuspectsByIssue[issue] += n
		}
		durParts = append(durParts, st.Duration)
		textParts = append(textParts, st.TextLen)

		if res.Failed() {
			merged.FailReasons = append(merged.FailReasons,
				fmt.Sprintf("shard_%02d: worker exit=%d %s", s.Index, res.ExitCode, res.Err))
		} else if st.Verdict != "PASS" {
			merged.FailReasons = append(merged.FailReasons,
				fmt.Sprintf("shard_%02d: %s", s.Index, strings.Join(st.FailReasons, "; ")))
		}

		ss, err := readSuspectsTSV(filepath.Join(s.OutDir(), quality.SuspectsFile))
		if err == nil {
			suspects = append(suspects, ss...)
		}

		fmt.Fprintf(&summary, "shard %02d: exit=%d verdict=%s rows=%d suspects=%d elapsed=%s\n",
			s.Index, res.ExitCode, st.Verdict, st.RowsTotal, st.SuspectsTotal, res.Elapsed)
	}

	merged.Duration = mergeDist(durParts)
	merged.TextLen = mergeDist(textParts)
	merged.Verdict = "PASS"
	if len(merged.FailReasons) > 0 {
		merged.Verdict = "FAIL"
	}

	fmt.Fprintf(&summary, "\nTOTAL rows=%d suspects=%d verdict=%s\n",
		merged.RowsTotal, merged.SuspectsTotal, merged.Verdict)
	for _, r := range merged.FailReasons {
		fmt.Fprintf(&summary, "  %s\n", r)
	}

	if err := writeMergedArtifacts(merged, suspects, outDir, suspectTop, summary.String()); err != nil {
		return "", err
	}
	return merged.Verdict, nil
}

func writeMergedArtifacts(merged mergedStats, suspects []quality.Suspect, outDir string, suspectTop int, summary string) error {
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("shard: marshal merged stats: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, quality.StatsFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("shard: write merged stats: %w", err)
	}

	sort.Slice(suspects, func(i, j int) bool {
		if suspects[i].Issue != suspects[j].Issue {
			return suspects[i].Issue < suspects[j].Issue
		}
		return suspects[i].Row < suspects[j].Row
	})
	if suspectTop > 0 && len(suspects) > suspectTop {
		suspects = suspects[:suspectTop]
	}
	var b strings.Builder
	b.WriteString("row\twav\tissue\tdetails\ttext\n")
	for _, s := range suspects {
		fmt.Fprintf(&b, "%d\t%s\t%s\t%s\t%s\n", s.Row, s.WAV, s.Issue, s.Details, s.Text)
	}
	if err := os.WriteFile(filepath.Join(outDir, quality.SuspectsFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("shard: write merged suspects: %w", err)
	}

	if err := os.WriteFile(filepath.Join(outDir, "SUMMARY.txt"), []byte(summary), 0o644); err != nil {
		return fmt.Errorf("shard: write summary: %w", err)
	}
	return nil
}

func readShardStats(path string) (*shardStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	st := &shardStats{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

func readSuspectsTSV(path string) ([]quality.Suspect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	var out []quality.Suspect
	for i, line := range lines {
		if i == 0 || line == "" {
			continue
		}
		cols := strings.SplitN(line, "\t", 5)
		if len(cols) < 3 {
			continue
		}
		row, _ := strconv.Atoi(cols[0])
		s := quality.Suspect{Row: row, WAV: cols[1], Issue: cols[2]}
		if len(cols) > 3 {
			s.Details = cols[3]
		}
		if len(cols) > 4 {
			s.Text = cols[4]
		}
		out = append(out, s)
	}
	return out, nil
}

// mergeDist combines shard distributions. Count, min, max and mean are
// exact; p50 and p95 are count-weighted averages of shard percentiles.
func mergeDist(parts []quality.DistStats) quality.DistStats {
	out := quality.DistStats{}
	var sum, wp50, wp95 float64
	var p50w, p95w int
	for _, p := range parts {
		if p.Count == 0 {
			continue
		}
		out.Count += p.Count
		if p.Min != nil && (out.Min == nil || *p.Min < *out.Min) {
			v := *p.Min
			out.Min = &v
		}
		if p.Max != nil && (out.Max == nil || *p.Max > *out.Max) {
			v := *p.Max
			out.Max = &v
		}
		if p.Mean != nil {
			sum += *p.Mean * float64(p.Count)
		}
		if p.P50 != nil {
			wp50 += *p.P50 * float64(p.Count)
			p50w += p.Count
		}
		if p.P95 != nil {
			wp95 += *p.P95 * float64(p.Count)
			p95w += p.Count
		}
	}
	if out.Count > 0 {
		m := sum / float64(out.Count)
		out.Mean = &m
	}
	if p50w > 0 {
		v := wp50 / float64(p50w)
		out.P50 = &v
	}
	if p95w > 0 {
		v := wp95 / float64(p95w)
		out.P95 = &v
	}
	return out
}
