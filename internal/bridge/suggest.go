package bridge

import (
	"fmt"
	"sort"
	"strings"
)

// closeMethodNames returns up to three candidates near name, closest first.
// Distances are computed case-insensitively so a caller writing ReadText as
// "readtext" still gets pointed at the right method. A candidate qualifies
// when its edit distance stays within half the longer name, which keeps
// genuinely unrelated names out of the suggestion.
func closeMethodNames(name string, candidates []string) []string {
	type scored struct {
		name     string
		distance int
	}
	lowered := strings.ToLower(name)
	var matched []scored
	for _, candidate := range candidates {
		distance := levenshtein(lowered, strings.ToLower(candidate))
		longest := len(name)
		if len(candidate) > longest {
			longest = len(candidate)
		}
		if longest == 0 {
			continue
		}
		if distance*2 <= longest {
			matched = append(matched, scored{name: candidate, distance: distance})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].distance != matched[j].distance {
			return matched[i].distance < matched[j].distance
		}
		return matched[i].name < matched[j].name
	})
	if len(matched) > 3 {
		matched = matched[:3]
	}
	out := make([]string, len(matched))
	for i, item := range matched {
		out[i] = item.name
	}
	return out
}

// renderMethodSuggestions formats a "did you mean" fragment for an unknown
// method name, or "" when nothing is close enough.
func renderMethodSuggestions(name string, candidates []string) string {
	matches := closeMethodNames(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	if len(matches) == 1 {
		return fmt.Sprintf(" Did you mean '%s'?", matches[0])
	}
	quoted := make([]string, len(matches))
	for i, match := range matches {
		quoted[i] = "'" + match + "'"
	}
	return fmt.Sprintf(" Did you mean one of: %s?", strings.Join(quoted, ", "))
}

// levenshtein computes the edit distance between two strings using a
// single reusable row of the distance matrix.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	previous := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}

	for j := 1; j <= len(b); j++ {
		current := make([]int, len(a)+1)
		current[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}
		previous = current
	}

	return previous[len(a)]
}
