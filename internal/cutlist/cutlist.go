// Package cutlist defines the alignment-record schema shared with the
// external review tooling, and its line-delimited JSON encoding.
//
// A cutlist is the aligner's output: one record per transcript chunk, either
// carrying an accepted audio interval or marking the chunk as unresolved.
// Reviewers may amend records (text corrections, verdict annotations); any
// reviewer-local scratch field is prefixed with an underscore and is never
// persisted back by this package.
package cutlist

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Status classifies the outcome of aligning one chunk.
type Status string

const (
	// StatusOK means the chunk matched an audio interval at or above the
	// similarity threshold.
	StatusOK Status = "ok"

	// StatusUnmatched means no candidate window reached the similarity
	// threshold; Start and End are null.
	StatusUnmatched Status = "unmatched"

	// StatusBadTimes means a match was found but padding produced a
	// non-positive interval; Start and End are null.
	StatusBadTimes Status = "bad_times"
)

// IsValid reports whether s is a recognised status.
func (s Status) IsValid() bool {
	switch s {
	case StatusOK, StatusUnmatched, StatusBadTimes:
		return true
	}
	return false
}

// Record is one cutlist line. For StatusOK, Start, End, and Similarity are
// non-nil, End > Start, and Similarity is at least the threshold the aligner
// ran with. For the other statuses Start and End are nil and Similarity
// holds the best score observed, if any.
//
// Verdict and Note are reviewer annotations, empty until a reviewer sets
// them. Extra retains unknown fields read from disk so they round-trip;
// underscore-prefixed keys are dropped on write.
type Record struct {
	SrcAudio   string   `json:"src_audio"`
	Start      *float64 `json:"start"`
	End        *float64 `json:"end"`
	Text       string   `json:"text"`
	Similarity *float64 `json:"similarity"`
	Status     Status   `json:"status"`

	Verdict string `json:"verdict,omitempty"`
	Note    string `json:"note,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// knownKeys are the Record fields handled explicitly; everything else lands
// in Extra.
var knownKeys = map[string]bool{
	"src_audio": true, "start": true, "end": true, "text": true,
	"similarity": true, "status": true, "verdict": true, "note": true,
}

// UnmarshalJSON decodes a record, capturing unknown fields into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if knownKeys[k] {
			delete(raw, k)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}
	*r = Record(p)
	r.Extra = raw
	return nil
}

// MarshalJSON encodes a record including retained extra fields, except that
// underscore-prefixed keys are reviewer-local and never written.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if strings.HasPrefix(k, "_") || knownKeys[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged[k] = r.Extra[k]
	}
	return json.Marshal(merged)
}

// Write encodes records as UTF-8 JSONL, one record per line.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("cutlist: encode record %d: %w", i, err)
		}
		if _, err := bw.Write(data); err != nil {
			return fmt.Errorf("cutlist: write: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("cutlist: write: %w", err)
		}
	}
	return bw.Flush()
}

// Read decodes a JSONL cutlist. Blank lines are skipped; a malformed line is
// an error, since a cutlist is machine-written.
func Read(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("cutlist: line %d: %w", lineNum, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cutlist: read: %w", err)
	}
	return out, nil
}
