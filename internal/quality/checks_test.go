package quality

import (
	"strings"
	"testing"
)

func issueSet(suspects []Suspect) map[string]bool {
	out := make(map[string]bool, len(suspects))
	for _, s := range suspects {
		out[s.Issue] = true
	}
	return out
}

func TestTextSuspects(t *testing.T) {
	t.Parallel()

	cfg := DefaultCheckConfig()

	cases := []struct {
		name string
		text string
		want []string
	}{
		{"clean russian", "Обычное русское предложение для проверки.", nil},
		{"too short", "ал", []string{IssueTooShortText}},
		{"too long", strings.Repeat("а", 401), []string{IssueTooLongText}},
		{"control characters", "текст\x07тут", []string{IssueNonPrintable}},
		{"mostly latin", "This is an English sentence entirely", []string{IssueLowCyrillicRatio}},
		{"code switch", "мы запускаем новый сервис через docker сегодня вечером опять", []string{IssueCodeSwitch}},
		{"token repetition", "да да да да да да да да", []string{IssueHighRepetition}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := issueSet(textSuspects(1, "a.wav", tc.text, cfg))
			if len(got) != len(tc.want) {
				t.Fatalf("issues = %v, want %v", got, tc.want)
			}
			for _, w := range tc.want {
				if !got[w] {
					t.Errorf("missing issue %q in %v", w, got)
				}
			}
		})
	}
}

func TestTokenRepetitionScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"short text is exempt", "да да да", 0},
		{"all same", "да да да да да да", 1.0},
		{"half", "да да да нет так вот", 0.5},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tokenRepetitionScore(tc.text); got != tc.want {
				t.Errorf("tokenRepetitionScore(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestDuplicateIndexCheck(t *testing.T) {
	t.Parallel()

	idx := NewDuplicateIndex()

	if _, dup := idx.Check(1, "Привет, мир!"); dup {
		t.Fatal("first occurrence is not a duplicate")
	}
	first, dup := idx.Check(2, "привет мир")
	if !dup || first != 1 {
		t.Errorf("normalized duplicate must attribute to row 1, got dup=%v first=%d", dup, first)
	}
	first, dup = idx.Check(3, "ПРИВЕТ МИР")
	if !dup || first != 1 {
		t.Errorf("later duplicates still attribute to the first row, got first=%d", first)
	}
	if _, dup := idx.Check(4, ""); dup {
		t.Error("empty text is never a duplicate")
	}
}

func TestDuplicateIndexNearCheck(t *testing.T) {
	t.Parallel()

	idx := NewDuplicateIndex()
	base := "сегодня вечером мы пойдём гулять по набережной города"

	if _, near := idx.NearCheck(1, base, 3); near {
		t.Fatal("first occurrence is not a near duplicate")
	}
	first, near := idx.NearCheck(2, base+".", 3)
	if !near || first != 1 {
		t.Errorf("same normalized text is near at distance zero, got near=%v first=%d", near, first)
	}
	if _, near := idx.NearCheck(3, "совсем другой текст про железнодорожный вокзал и поезда", 3); near {
		t.Error("unrelated text must not be near")
	}
	if _, near := idx.NearCheck(4, "пять слов тут мало", 3); near {
		t.Error("texts under six tokens are exempt")
	}
	if _, near := NewDuplicateIndex().NearCheck(5, base, 0); near {
		t.Error("a zero hamming budget disables the check")
	}
}
