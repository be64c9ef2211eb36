package search

import (
	"strings"
	"unicode/utf8"
)

// DescriptionLimit is the stored description length for blog and RSS items.
const DescriptionLimit = 200

// MatchesKeyword reports whether keyword appears in any of the texts,
// ignoring case. Callers pass markup-free text.
func MatchesKeyword(keyword string, texts ...string) bool {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return false
	}
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Truncate cuts s to limit runes and appends "..." when it had to cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// SplitLines parses a newline-delimited endpoint list, dropping blanks.
func SplitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
