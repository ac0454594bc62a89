// Package chunker turns a cleaned transcript into an ordered sequence of
// bounded-length chunks for audio alignment. Chunks respect sentence
// boundaries where possible; a single overlong sentence is cut at the
// strongest intra-sentence separator near the length budget.
//
// The stage is a pure text transform and cannot fail: malformed or
// whitespace-only input is filtered, never errored.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxLen is the target maximum chunk length in characters.
	DefaultMaxLen = 160

	// DefaultMinLen is the minimum final-chunk length before orphan repair
	// kicks in.
	DefaultMinLen = 35

	// orphanSlack is the extra length allowed when merging an orphan tail
	// chunk into its predecessor.
	orphanSlack = 50
)

// breakChars are the preferred intra-sentence cut points, in priority order.
var breakChars = []rune{';', ':', ',', '—'}

var (
	wsRE        = regexp.MustCompile(`\s+`)
	spacePunct  = regexp.MustCompile(`\s+([.,!?;:])`)
	hyphenDash  = regexp.MustCompile(`\s-\s`)
	sentenceEnd = regexp.MustCompile(`([.!?…]+["»”']?)\s+`)
)

// CleanText normalizes transcript text coming from manifests: whitespace and
// newlines collapse to single spaces, stray spaces before punctuation are
// removed, a spaced hyphen becomes an em dash, and the pipe metadata
// separator is stripped.
func CleanText(text string) string {
	text = wsRE.ReplaceAllString(text, " ")
	text = spacePunct.ReplaceAllString(text, "$1")
	text = hyphenDash.ReplaceAllString(text, " — ")
	text = strings.ReplaceAll(text, "|", " ")
	return strings.TrimSpace(text)
}

// SplitSentences splits cleaned text into sentences at terminal punctuation
// followed by whitespace. The terminal punctuation (and any closing quote)
// stays attached to its sentence. Text without terminal punctuation is
// returned as a single sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	var out []string
	for _, s := range strings.Split(marked, "\x00") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitLongSentence cuts a sentence longer than maxLen into parts, each at
// most maxLen characters. It prefers a break character found in the last 30%
// of the budget, then the right-most whitespace, then a hard cut.
func splitLongSentence(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var parts []string
	remaining := runes

	for len(remaining) > maxLen {
		window := remaining
		if len(window) > maxLen+1 {
			window = window[:maxLen+1]
		}

		startSearch := int(float64(maxLen) * 0.70)
		cut := -1
		for _, ch := range breakChars {
			if idx := lastIndexRune(window, ch, startSearch); idx != -1 {
				cut = idx + 1 // keep the punctuation on the head
				break
			}
		}
		if cut == -1 {
			if idx := lastIndexRune(window, ' ', startSearch); idx != -1 {
				cut = idx
			} else {
				cut = maxLen
			}
		}

		head := strings.TrimSpace(string(remaining[:cut]))
		if head != "" {
			parts = append(parts, head)
		}
		remaining = []rune(strings.TrimSpace(string(remaining[cut:])))
	}

	if len(remaining) > 0 {
		parts = append(parts, string(remaining))
	}
	return parts
}

// lastIndexRune returns the largest index ≥ from at which ch occurs in rs,
// or -1 when absent.
func lastIndexRune(rs []rune, ch rune, from int) int {
	for i := len(rs) - 1; i >= from; i-- {
		if rs[i] == ch {
			return i
		}
	}
	return -1
}

// Chunk greedily packs sentences into chunks of at most maxLen characters.
// Sentences longer than maxLen are first expanded via separator cuts so that
// every packed unit fits the budget. When the final chunk ends up shorter
// than minLen it is merged into the previous chunk, provided the combined
// length stays within maxLen plus a fixed slack; otherwise both are kept.
//
// Empty input yields empty output. Whitespace-only sentences are dropped.
func Chunk(sentences []string, maxLen, minLen int) []string {
	var expanded []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		expanded = append(expanded, splitLongSentence(s, maxLen)...)
	}

	var (
		chunks     []string
		current    []string
		currentLen int
	)

	for _, sent := range expanded {
		sentLen := len([]rune(sent))

		if len(current) > 0 && currentLen+1+sentLen <= maxLen {
			current = append(current, sent)
			currentLen += 1 + sentLen
			continue
		}
		if len(current) == 0 && sentLen <= maxLen {
			current = []string{sent}
			currentLen = sentLen
			continue
		}

		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
		current = []string{sent}
		currentLen = sentLen
	}

	if len(current) > 0 {
		last := strings.Join(current, " ")
		if len([]rune(last)) < minLen && len(chunks) > 0 {
			prev := chunks[len(chunks)-1]
			chunks = chunks[:len(chunks)-1]
			if len([]rune(prev))+1+len([]rune(last)) <= maxLen+orphanSlack {
				chunks = append(chunks, prev+" "+last)
			} else {
				chunks = append(chunks, prev, last)
			}
		} else {
			chunks = append(chunks, last)
		}
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
