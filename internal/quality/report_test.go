package quality

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dkrasnelis/voxprep/internal/corpus"
)

func testResult() *Result {
	return &Result{
		Dataset: "/data/corpus",
		Seed:    42,
		Rows: []corpus.Row{
			{Num: 1, WAV: "a.wav", Text: "Первая строка"},
			{Num: 2, WAV: "b.wav", Text: "Вторая строка"},
			{Num: 3, WAV: "c.wav", Text: "Третья строка"},
		},
		Suspects: []Suspect{
			{Row: 3, WAV: "c.wav", Issue: IssueTooShortText, Details: "2"},
			{Row: 1, WAV: "a.wav", Issue: IssueDuplicateText, Details: "first_row=1"},
			{Row: 2, WAV: "b.wav", Issue: IssueDuplicateText, Details: "first_row=1"},
		},
		Durations:     []float64{1.0, 2.0, 3.0},
		TextLens:      []float64{13, 13, 13},
		DuplicateRows: 2,
		ValidRows:     3,
		FailReasons:   []string{"duplicates=2"},
	}
}

func TestWriteArtifacts(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "report")
	if err := WriteArtifacts(testResult(), dir, DefaultReportOptions()); err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}

	for _, name := range []string{ReportFile, SuspectsFile, SamplesFile, StatsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, StatsFile))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("stats.json is not valid JSON: %v", err)
	}
	if doc["verdict"] != "FAIL" {
		t.Errorf("verdict = %v, want FAIL", doc["verdict"])
	}
	if doc["rows_total"] != float64(3) {
		t.Errorf("rows_total = %v, want 3", doc["rows_total"])
	}

	md, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(md), "**FAIL**") {
		t.Error("markdown report must surface the verdict")
	}
}

func TestWriteSuspectsSortedAndCapped(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "report")
	res := testResult()
	if err := WriteArtifacts(res, dir, ReportOptions{SuspectTop: 2, SampleN: 30}); err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, SuspectsFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 { // header + 2 capped rows
		t.Fatalf("got %d lines, want header plus cap of 2:\n%s", len(lines), data)
	}
	// Sorted by issue then row: both duplicate_text rows come first.
	if !strings.Contains(lines[1], IssueDuplicateText) || !strings.HasPrefix(lines[1], "1\t") {
		t.Errorf("first data line = %q, want duplicate_text row 1", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2\t") {
		t.Errorf("second data line = %q, want duplicate_text row 2", lines[2])
	}
}

func TestWriteSamplesDeterministic(t *testing.T) {
	t.Parallel()

	read := func() string {
		dir := filepath.Join(t.TempDir(), "report")
		if err := WriteArtifacts(testResult(), dir, ReportOptions{SampleN: 2}); err != nil {
			t.Fatalf("WriteArtifacts: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, SamplesFile))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	if a, b := read(), read(); a != b {
		t.Errorf("same seed must produce identical samples:\n%s\nvs\n%s", a, b)
	}
}

func TestTSVEscape(t *testing.T) {
	t.Parallel()

	if got := tsvEscape("a\tb\nc\r"); strings.ContainsAny(got, "\t\n\r") {
		t.Errorf("tsvEscape left control characters: %q", got)
	}
}
