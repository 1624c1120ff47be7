package bridge

import (
	"strings"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	t.Parallel()
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"Stat", "Stats", 1},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("levenshtein(%q, %q): expected %d, got %d", tc.a, tc.b, tc.want, got)
		}
	}
}

func TestCloseMethodNames(t *testing.T) {
	t.Parallel()
	candidates := []string{"Delete", "Exists", "Glob", "IsDir", "Iterdir", "ReadBytes", "ReadText", "Stat", "WriteText"}

	got := closeMethodNames("ReadTxt", candidates)
	if len(got) == 0 || got[0] != "ReadText" {
		t.Fatalf("expected ReadText first, got %v", got)
	}

	got = closeMethodNames("readtext", candidates)
	if len(got) == 0 || got[0] != "ReadText" {
		t.Fatalf("expected case-insensitive match, got %v", got)
	}

	if got := closeMethodNames("Frobnicate", candidates); len(got) != 0 {
		t.Fatalf("expected no matches for unrelated name, got %v", got)
	}

	many := []string{"Handle1", "Handle2", "Handle3", "Handle4"}
	if got := closeMethodNames("Handle", many); len(got) > 3 {
		t.Fatalf("expected at most 3 suggestions, got %v", got)
	}
}

func TestRenderMethodSuggestions(t *testing.T) {
	t.Parallel()
	if got := renderMethodSuggestions("Nope", nil); got != "" {
		t.Fatalf("expected empty fragment without candidates, got %q", got)
	}
	if got := renderMethodSuggestions("Stats", []string{"Stat"}); got != " Did you mean 'Stat'?" {
		t.Fatalf("unexpected single suggestion %q", got)
	}
	got := renderMethodSuggestions("ReadTex", []string{"ReadText", "ReadTest"})
	if !strings.HasPrefix(got, " Did you mean one of: ") || !strings.Contains(got, "'ReadText'") || !strings.Contains(got, "'ReadTest'") {
		t.Fatalf("unexpected multi suggestion %q", got)
	}
}
