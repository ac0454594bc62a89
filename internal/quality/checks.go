package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mfonda/simhash"

	"github.com/dkrasnelis/voxprep/internal/text"
)

var (
	cyrillicRE     = regexp.MustCompile(`[А-Яа-яЁё]`)
	latinRE        = regexp.MustCompile(`[A-Za-z]`)
	nonPrintableRE = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F]")
)

// textSuspects runs the per-row textual checks and returns all findings.
// Checks are independent; an earlier finding never suppresses a later one.
func textSuspects(rowNum int, wav, txt string, cfg CheckConfig) []Suspect {
	var out []Suspect
	add := func(issue, details string) {
		out = append(out, Suspect{Row: rowNum, WAV: wav, Issue: issue, Details: details, Text: txt})
	}

	if nonPrintableRE.MatchString(txt) {
		add(IssueNonPrintable, "")
	}

	n := len([]rune(txt))
	if n < cfg.MinTextLen {
		add(IssueTooShortText, fmt.Sprintf("%d", n))
	}
	if n > cfg.MaxTextLen {
		add(IssueTooLongText, fmt.Sprintf("%d", n))
	}

	cyr := len(cyrillicRE.FindAllString(txt, -1))
	lat := len(latinRE.FindAllString(txt, -1))
	letters := cyr + lat
	if letters > 0 {
		cyrRatio := float64(cyr) / float64(letters)
		latRatio := float64(lat) / float64(letters)
		if cyrRatio < cfg.MinCyrillicRatio {
			add(IssueLowCyrillicRatio, fmt.Sprintf("cyr_ratio=%.3f", cyrRatio))
		}
		if cyr > 0 && lat > 0 && latRatio >= cfg.LatinSuspectRatio {
			add(IssueCodeSwitch, fmt.Sprintf("lat_ratio=%.3f", latRatio))
		}
	}

	if rep := tokenRepetitionScore(txt); rep >= cfg.RepetitionSuspect {
		add(IssueHighRepetition, fmt.Sprintf("score=%.3f", rep))
	}

	return out
}

// tokenRepetitionScore returns the most frequent token's share of all tokens
// in the normalized text. Texts with fewer than 6 tokens score 0 — short
// lines legitimately repeat words.
func tokenRepetitionScore(txt string) float64 {
	norm := text.Normalize(txt)
	if norm == "" {
		return 0
	}
	tokens := strings.Fields(norm)
	if len(tokens) < 6 {
		return 0
	}
	counts := make(map[string]int, len(tokens))
	most := 0
	for _, t := range tokens {
		counts[t]++
		if counts[t] > most {
			most = counts[t]
		}
	}
	return float64(most) / float64(len(tokens))
}

// DuplicateIndex is the corpus-wide duplicate-detection accumulator: a
// normalized-text → first-row map plus a simhash fingerprint list for
// near-duplicate detection. It is deliberately an explicit object passed
// through the row loop — never ambient state — so each shard's engine owns
// an independent instance and attribution stays deterministic under
// row-order processing.
type DuplicateIndex struct {
	firstSeen map[string]int
	hashes    []fingerprint
}

type fingerprint struct {
	row  int
	hash uint64
}

// NewDuplicateIndex returns an empty accumulator.
func NewDuplicateIndex() *DuplicateIndex {
	return &DuplicateIndex{firstSeen: make(map[string]int)}
}

// Check registers txt for rowNum and reports whether it is an exact
// duplicate of an earlier row (firstRow is that row when dup is true). Only
// the first occurrence of a normalized text is not a duplicate. Must be
// called in row order.
func (d *DuplicateIndex) Check(rowNum int, txt string) (firstRow int, dup bool) {
	norm := text.Normalize(txt)
	if norm == "" {
		return 0, false
	}
	if first, ok := d.firstSeen[norm]; ok {
		return first, true
	}
	d.firstSeen[norm] = rowNum
	return 0, false
}

// NearCheck reports whether txt is a near duplicate (simhash hamming
// distance ≤ maxHamming) of an earlier registered row. Exact duplicates are
// expected to be filtered by Check first; NearCheck still registers the
// fingerprint so later rows compare against this one. Texts shorter than 6
// tokens are skipped — simhash is noise at that length.
func (d *DuplicateIndex) NearCheck(rowNum int, txt string, maxHamming int) (firstRow int, near bool) {
	if maxHamming <= 0 {
		return 0, false
	}
	norm := text.Normalize(txt)
	if norm == "" || len(strings.Fields(norm)) < 6 {
		return 0, false
	}
	h := simhash.Simhash(simhash.NewWordFeatureSet([]byte(norm)))
	for _, fp := range d.hashes {
		if simhash.Compare(h, fp.hash) <= uint8(maxHamming) {
			d.hashes = append(d.hashes, fingerprint{row: rowNum, hash: h})
			return fp.row, true
		}
	}
	d.hashes = append(d.hashes, fingerprint{row: rowNum, hash: h})
	return 0, false
}
