// Package text provides the shared normalization, tokenization, and
// string-similarity helpers used by the aligner and the quality checks.
//
// Two distinct normal forms exist on purpose:
//
//   - Fold is the matching form used when comparing transcript chunks against
//     ASR output. It lowercases, unifies ё/е (ASR engines are inconsistent
//     about the diaeresis), and strips layout characters, but keeps
//     punctuation so that Tokenize can still anchor on token boundaries.
//
//   - Normalize is the identity form used for duplicate detection and
//     round-trip comparison. It additionally drops every character outside
//     the Cyrillic/Latin/digit alphabet, so "Привет!" and "привет" collapse
//     to the same key.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

var (
	wsRE    = regexp.MustCompile(`\s+`)
	tokenRE = regexp.MustCompile(`[0-9A-Za-zА-Яа-яЁё]+`)
	alnumRE = regexp.MustCompile(`[^a-zа-яё0-9\s]`)
)

// Fold returns the matching normal form of s: lowercased, ё unified to е,
// carriage returns, newlines, and metadata pipes replaced with spaces, and
// runs of whitespace collapsed.
func Fold(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "|", " ").Replace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.TrimSpace(wsRE.ReplaceAllString(s, " "))
}

// Tokenize splits s into its alphanumeric tokens after applying [Fold].
// Punctuation never appears in the result; an all-punctuation input yields
// an empty slice.
func Tokenize(s string) []string {
	return tokenRE.FindAllString(Fold(s), -1)
}

// Normalize returns the identity normal form of s used for duplicate keys
// and round-trip similarity: lowercased, every character outside
// [a-zа-яё0-9] replaced with a space, whitespace collapsed.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = alnumRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(wsRE.ReplaceAllString(s, " "))
}

// Similarity returns a normalized similarity ratio in [0, 1] between a and b,
// computed as 1 − levenshtein(a, b) / max(|a|, |b|) over runes. Two empty
// strings are identical by definition.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	dist := matchr.Levenshtein(a, b)
	sim := 1.0 - float64(dist)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}
