package chunker

import (
	"reflect"
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "а\n\nб\t в", "а б в"},
		{"space before punctuation", "привет , мир !", "привет, мир!"},
		{"spaced hyphen to dash", "он сказал - да", "он сказал — да"},
		{"strips pipes", "a|b", "a b"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CleanText(tc.in); got != tc.want {
				t.Errorf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			"terminal punctuation",
			"Первое предложение. Второе! Третье?",
			[]string{"Первое предложение.", "Второе!", "Третье?"},
		},
		{
			"ellipsis and closing quote",
			"Он ушёл… «Навсегда?» Да.",
			[]string{"Он ушёл…", "«Навсегда?»", "Да."},
		},
		{
			"no terminal punctuation",
			"одно длинное высказывание без точки",
			[]string{"одно длинное высказывание без точки"},
		},
		{"empty", "", nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SplitSentences(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSplitLongSentence(t *testing.T) {
	t.Parallel()

	t.Run("short sentence passes through", func(t *testing.T) {
		t.Parallel()
		got := splitLongSentence("короткое предложение", 160)
		want := []string{"короткое предложение"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("prefers break character near the budget", func(t *testing.T) {
		t.Parallel()
		head := strings.Repeat("а", 80)
		tail := strings.Repeat("б", 40)
		in := head + ", " + tail
		got := splitLongSentence(in, 100)
		if len(got) != 2 {
			t.Fatalf("got %d parts, want 2: %q", len(got), got)
		}
		if !strings.HasSuffix(got[0], ",") {
			t.Errorf("head %q should end at the comma", got[0])
		}
		if got[1] != tail {
			t.Errorf("tail = %q, want %q", got[1], tail)
		}
	})

	t.Run("falls back to whitespace", func(t *testing.T) {
		t.Parallel()
		in := strings.Repeat("слово ", 40) // 240 chars, no break chars
		for _, part := range splitLongSentence(in, 100) {
			if n := len([]rune(part)); n > 100 {
				t.Errorf("part length %d exceeds budget: %q", n, part)
			}
		}
	})

	t.Run("hard cut when unbreakable", func(t *testing.T) {
		t.Parallel()
		in := strings.Repeat("ю", 250)
		parts := splitLongSentence(in, 100)
		if len(parts) != 3 {
			t.Fatalf("got %d parts, want 3", len(parts))
		}
		for i, part := range parts[:2] {
			if n := len([]rune(part)); n != 100 {
				t.Errorf("part %d length = %d, want 100", i, n)
			}
		}
		if n := len([]rune(parts[2])); n != 50 {
			t.Errorf("last part length = %d, want 50", n)
		}
	})
}

func TestChunk(t *testing.T) {
	t.Parallel()

	t.Run("packs greedily within budget", func(t *testing.T) {
		t.Parallel()
		got := Chunk([]string{"Раз.", "Два.", "Три."}, 160, 35)
		want := []string{"Раз. Два. Три."}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("starts a new chunk when the budget would overflow", func(t *testing.T) {
		t.Parallel()
		a := strings.Repeat("а", 90) + "."
		b := strings.Repeat("б", 90) + "."
		got := Chunk([]string{a, b}, 160, 35)
		want := []string{a, b}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("merges a short orphan tail", func(t *testing.T) {
		t.Parallel()
		a := strings.Repeat("а", 157) + "."
		got := Chunk([]string{a, "Конец."}, 160, 35)
		if len(got) != 1 {
			t.Fatalf("got %d chunks, want 1 merged: %q", len(got), got)
		}
		if !strings.HasSuffix(got[0], "Конец.") {
			t.Errorf("merged chunk should end with the orphan: %q", got[0])
		}
	})

	t.Run("keeps the orphan when merging would blow the slack", func(t *testing.T) {
		t.Parallel()
		a := strings.Repeat("а", 99) + "."
		orphan := strings.Repeat("б", 69) + "."
		got := Chunk([]string{a, orphan}, 100, 80)
		if len(got) != 2 {
			t.Fatalf("got %d chunks, want 2: lengths would exceed maxLen+slack", len(got))
		}
	})

	t.Run("respects the budget everywhere", func(t *testing.T) {
		t.Parallel()
		var sentences []string
		for i := 0; i < 20; i++ {
			sentences = append(sentences, strings.Repeat("слово ", 10)+"конец.")
		}
		for _, c := range Chunk(sentences, 160, 35) {
			if n := len([]rune(c)); n > 160+orphanSlack {
				t.Errorf("chunk length %d exceeds budget plus slack: %q", n, c)
			}
		}
	})

	t.Run("empty and whitespace input", func(t *testing.T) {
		t.Parallel()
		if got := Chunk(nil, 160, 35); len(got) != 0 {
			t.Errorf("Chunk(nil) = %q, want empty", got)
		}
		if got := Chunk([]string{"  ", ""}, 160, 35); len(got) != 0 {
			t.Errorf("Chunk(whitespace) = %q, want empty", got)
		}
	})
}
